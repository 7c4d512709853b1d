package erae

import (
	"bytes"
	"testing"
)

var testPrefix = []byte{0x01, 0x02, 0x03}

func TestCommandBuilders(t *testing.T) {
	p := NewProtocol(EraeII, testPrefix)
	addr := []byte{0x00, 0x21, 0x50, 0x00, 0x01, 0x00, 0x02, 0x01, 0x01, 0x04}

	frame := func(tail ...byte) []byte {
		out := []byte{0xf0}
		out = append(out, addr...)
		out = append(out, tail...)
		return append(out, 0xf7)
	}

	tests := []struct {
		name     string
		build    func() ([]byte, error)
		expected []byte
	}{
		{
			name:     "enable api mode",
			build:    p.EnableAPIMode,
			expected: frame(0x01, 0x01, 0x02, 0x03),
		},
		{
			name:     "disable api mode",
			build:    p.DisableAPIMode,
			expected: frame(0x02),
		},
		{
			name:     "api version request",
			build:    p.APIVersionRequest,
			expected: frame(0x7f, 0x01, 0x02, 0x03),
		},
		{
			name:     "zone boundary request",
			build:    func() ([]byte, error) { return p.ZoneBoundaryRequest(5) },
			expected: frame(0x10, 0x05),
		},
		{
			name:     "clear zone",
			build:    func() ([]byte, error) { return p.ClearZone(2) },
			expected: frame(0x20, 0x02),
		},
		{
			name:     "draw pixel",
			build:    func() ([]byte, error) { return p.DrawPixel(0, 1, 2, 10, 20, 30) },
			expected: frame(0x21, 0x00, 0x01, 0x02, 0x0a, 0x14, 0x1e),
		},
		{
			name:     "draw rectangle",
			build:    func() ([]byte, error) { return p.DrawRectangle(1, 2, 3, 4, 5, 0x7f, 0x00, 0x40) },
			expected: frame(0x22, 0x01, 0x02, 0x03, 0x04, 0x05, 0x7f, 0x00, 0x40),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("got  % x\nwant % x", got, tt.expected)
			}
		})
	}
}

func TestVariantAddressing(t *testing.T) {
	p := NewProtocol(EraeTouch, nil)
	got, err := p.ClearZone(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []byte{0xf0, 0x00, 0x21, 0x50, 0x00, 0x01, 0x00, 0x01, 0x01, 0x01, 0x04, 0x20, 0x00, 0xf7}
	if !bytes.Equal(got, expected) {
		t.Errorf("got  % x\nwant % x", got, expected)
	}
}

func TestDrawPixelOutOfRange(t *testing.T) {
	p := NewProtocol(EraeII, testPrefix)
	_, err := p.DrawPixel(0, 1, 2, 0xff, 0x00, 0x00)
	if !IsOutOfRange(err) {
		t.Fatalf("expected a RangeError for a full-range color component, got %v", err)
	}
	// The offending byte sits after the 10-byte address, the command byte
	// and zone/x/y.
	if re := err.(*RangeError); re.Index != 14 || re.Value != 0xff {
		t.Errorf("RangeError = {Index: %d, Value: 0x%02X}, want {Index: 14, Value: 0xFF}", re.Index, re.Value)
	}
}

func TestDrawImageSinglePixel(t *testing.T) {
	p := NewProtocol(EraeII, testPrefix)
	msgs, err := p.DrawImage(0, 3, 4, 1, 1, []byte{0xff, 0x00, 0x80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	expected := []byte{0xf0,
		0x00, 0x21, 0x50, 0x00, 0x01, 0x00, 0x02, 0x01, 0x01, 0x04, // address
		0x23, 0x00, 0x03, 0x04, 0x01, 0x01, // cmd, zone, x, y, w, h
		0x50, 0x7f, 0x00, 0x00, // bitized rgb
		0x2f, // checksum
		0xf7}
	if !bytes.Equal(msgs[0], expected) {
		t.Errorf("got  % x\nwant % x", msgs[0], expected)
	}
}

func TestDrawImageChunking(t *testing.T) {
	const w, h = 2, 25 // one row taller than MaxImageRows
	rgb := testPattern(w * h * 3)

	p := NewProtocol(EraeII, testPrefix)
	msgs, err := p.DrawImage(1, 0, 2, w, h, rgb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	var rebuilt []byte
	wantY := []byte{2, 2 + MaxImageRows}
	wantH := []byte{MaxImageRows, 1}
	for i, msg := range msgs {
		payload, ok := StripFrame(msg)
		if !ok {
			t.Fatalf("message %d is not a valid frame", i)
		}
		body := payload[10:] // skip address
		if body[0] != CmdDrawImage || body[1] != 1 || body[2] != 0 {
			t.Errorf("message %d: unexpected cmd/zone/x bytes % x", i, body[:3])
		}
		if body[3] != wantY[i] || body[4] != w || body[5] != wantH[i] {
			t.Errorf("message %d: y/w/h = %d/%d/%d, want %d/%d/%d", i, body[3], body[4], body[5], wantY[i], w, wantH[i])
		}
		enc := body[6:]
		data, err := Unbitize7Checksum(enc[:len(enc)-1], enc[len(enc)-1])
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		rebuilt = append(rebuilt, data...)
	}
	if !bytes.Equal(rebuilt, rgb) {
		t.Error("reassembled image data does not match the input")
	}
}

func TestDrawImageSizeMismatch(t *testing.T) {
	p := NewProtocol(EraeII, testPrefix)
	if _, err := p.DrawImage(0, 0, 0, 2, 2, make([]byte, 5)); err == nil {
		t.Fatal("expected an error for mismatched rgb length")
	}
}
