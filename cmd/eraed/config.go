package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/Ziforge/Erae-2-API-Interface/erae"
)

// Config is the daemon configuration, loadable from a TOML file. Command
// line flags override file values.
type Config struct {
	// Connection is the device link: socket://host:port for a network
	// MIDI bridge, or a serial device path.
	Connection string `toml:"connection"`

	// Listen is the HTTP bind address.
	Listen string `toml:"listen"`

	// Variant selects the product generation: "erae" or "erae2".
	Variant string `toml:"variant"`

	// ReceiverPrefix tags replies addressed to this daemon.
	ReceiverPrefix []byte `toml:"receiver_prefix"`

	// Baud is the serial line rate, ignored for network links.
	Baud int `toml:"baud"`
}

func defaultConfig() Config {
	return Config{
		Listen:         ":8037",
		Variant:        "erae2",
		ReceiverPrefix: []byte{0x01, 0x02, 0x03},
		Baud:           erae.DefaultBaud,
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks everything except Connection, which may still arrive via
// the -c flag.
func (c Config) validate() error {
	if _, err := c.variant(); err != nil {
		return err
	}
	if len(c.ReceiverPrefix) == 0 {
		return fmt.Errorf("receiver_prefix must not be empty")
	}
	for i, b := range c.ReceiverPrefix {
		if b >= 0x80 {
			return fmt.Errorf("receiver_prefix[%d] = 0x%02X exceeds the 7-bit SysEx range", i, b)
		}
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	return nil
}

func (c Config) variant() (erae.Variant, error) {
	switch c.Variant {
	case "erae", "erae1", "touch":
		return erae.EraeTouch, nil
	case "", "erae2":
		return erae.EraeII, nil
	}
	return 0, fmt.Errorf("unknown variant %q (want erae or erae2)", c.Variant)
}
