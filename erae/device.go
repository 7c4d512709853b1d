package erae

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// DefaultBaud is the classic MIDI wire rate, used for direct serial links.
const DefaultBaud = 31250

// Device connects the protocol to a physical Erae surface over a serial
// MIDI link or a TCP MIDI bridge. Inbound SysEx frames are scanned out of
// the raw byte stream and dispatched one at a time; everything else on the
// wire is skipped.
type Device struct {
	proto  *Protocol
	parser *Parser

	conn         io.ReadWriteCloser
	r            *bufio.Reader
	rlock, wlock sync.Mutex

	connected bool
	done      chan struct{}

	// Done is closed when the read loop exits, e.g. on a dropped link.
	Done chan struct{}

	link string
	baud int

	mu         sync.Mutex
	handler    ReplyHandler
	zbWait     chan ZoneBoundary
	verWait    chan byte
	zoneW      byte
	zoneH      byte
	apiVersion int
}

// NewDevice returns an unconnected Device for the given product variant
// and receiver prefix.
func NewDevice(v Variant, prefix []byte) *Device {
	d := &Device{proto: NewProtocol(v, prefix), baud: DefaultBaud, apiVersion: -1}
	d.parser = &Parser{Prefix: d.proto.Prefix, Handler: deviceSink{d}}
	return d
}

// Protocol exposes the message builders the device sends with.
func (d *Device) Protocol() *Protocol { return d.proto }

// SetHandler registers the ReplyHandler decoded messages are forwarded to.
func (d *Device) SetHandler(h ReplyHandler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

// SetBaud overrides the serial line rate used by the next Connect.
func (d *Device) SetBaud(baud int) { d.baud = baud }

// Connect attaches to the device and starts the frame scanner. Use
// socket://host:port or tcp://host:port for a network MIDI bridge, or a
// plain device path for a direct serial link.
func (d *Device) Connect(link string) error {
	d.rlock.Lock()
	d.wlock.Lock()
	defer d.rlock.Unlock()
	defer d.wlock.Unlock()

	u, err := url.Parse(link)
	if err != nil {
		d.connected = false
		return err
	}

	var conn io.ReadWriteCloser
	if (u.Scheme == "socket") || (u.Scheme == "tcp") {
		// Connect via network
		c, err := net.Dial("tcp", u.Host)
		if err != nil {
			return err
		}
		c.(*net.TCPConn).SetKeepAlive(true)
		c.(*net.TCPConn).SetKeepAlivePeriod(30 * time.Second)
		conn = c
	} else if (u.Scheme == "file") || (u.Scheme == "") {
		// Connect via serial
		conn, err = serial.OpenPort(&serial.Config{Name: u.Path, Baud: d.baud, Size: 8, Parity: serial.ParityNone, StopBits: serial.Stop1})
		if err != nil {
			return err
		}
	} else {
		d.connected = false
		return fmt.Errorf("can not find a valid connection string in %q", link)
	}

	d.link = link
	d.attach(conn)
	return nil
}

// attach wires an established connection and starts the read loop.
func (d *Device) attach(conn io.ReadWriteCloser) {
	d.conn = conn
	d.r = bufio.NewReader(conn)
	d.connected = true
	d.done = make(chan struct{})
	d.Done = make(chan struct{})

	go d.readLoop()
}

// Reconnect re-establishes the previous connection.
func (d *Device) Reconnect() error {
	if d.link == "" {
		return fmt.Errorf("no previous connection to re-establish")
	}
	d.Close()
	return d.Connect(d.link)
}

// Close closes the Device, closing the underlying serial or network
// connection. The read lock is deliberately not taken: closing the
// connection is what unblocks a reader stuck in Read.
func (d *Device) Close() error {
	d.wlock.Lock()
	defer d.wlock.Unlock()

	select {
	case <-d.done:
		return io.ErrClosedPipe
	default:
		close(d.done)
	}
	d.connected = false
	return d.conn.Close()
}

func (d *Device) read(b []byte) (int, error) {
	d.rlock.Lock()
	defer d.rlock.Unlock()
	select {
	case <-d.done:
		return 0, io.EOF
	default:
		return d.r.Read(b)
	}
}

// Send transmits one framed message. Sends are fire and forget; the byte
// slice is not referenced after Send returns.
func (d *Device) Send(msg []byte) error {
	d.wlock.Lock()
	defer d.wlock.Unlock()
	if !d.connected {
		return io.EOF
	}
	select {
	case <-d.done:
		return io.EOF
	default:
	}
	log.Debugf("send b='%# x'", msg)
	_, err := d.conn.Write(msg)
	return err
}

// readLoop scans the raw inbound stream for SysEx frames. Interleaved
// non-SysEx traffic (notes, CCs, clock from the playing surface) is
// skipped.
func (d *Device) readLoop() {
	defer close(d.Done)

	var frame []byte
	inFrame := false
	buf := make([]byte, 512)
	for {
		select {
		case <-d.done:
			return
		default:
		}

		n, err := d.read(buf)
		if err != nil {
			select {
			case <-d.done:
				// closed on purpose
			default:
				if err != io.EOF {
					log.Errorf("read: %v", err)
				}
			}
			return
		}
		for _, b := range buf[:n] {
			switch {
			case b == SysExStart:
				frame = append(frame[:0], b)
				inFrame = true
			case !inFrame:
				// unrelated traffic between frames
			case b == SysExEnd:
				frame = append(frame, b)
				inFrame = false
				d.handleFrame(frame)
			case b >= 0xf8:
				// realtime bytes may interleave anywhere, even mid-frame
			case b >= 0x80:
				log.Debugf("dropping partial frame on status byte 0x%02x", b)
				inFrame = false
			default:
				frame = append(frame, b)
			}
		}
	}
}

func (d *Device) handleFrame(raw []byte) {
	payload, ok := StripFrame(raw)
	if !ok {
		return
	}
	log.Debugf("frame b='%# x'", raw)
	if err := d.parser.Dispatch(payload); err != nil {
		log.Warnf("dispatch: %v", err)
	}
}

// deviceSink sits between the parser and the user handler: it caches zone
// geometry and the api version, completes pending queries and forwards
// every reply.
type deviceSink struct{ d *Device }

func (s deviceSink) FingerDetection(ev FingerEvent) {
	s.d.mu.Lock()
	h := s.d.handler
	s.d.mu.Unlock()
	if h != nil {
		h.FingerDetection(ev)
	}
}

func (s deviceSink) ZoneBoundaryReply(zb ZoneBoundary) {
	s.d.mu.Lock()
	if zb.Valid() {
		s.d.zoneW, s.d.zoneH = zb.Width, zb.Height
	}
	ch := s.d.zbWait
	s.d.zbWait = nil
	h := s.d.handler
	s.d.mu.Unlock()
	if ch != nil {
		ch <- zb
	}
	if h != nil {
		h.ZoneBoundaryReply(zb)
	}
}

func (s deviceSink) APIVersion(version byte) {
	s.d.mu.Lock()
	s.d.apiVersion = int(version)
	ch := s.d.verWait
	s.d.verWait = nil
	h := s.d.handler
	s.d.mu.Unlock()
	if ch != nil {
		ch <- version
	}
	if h != nil {
		h.APIVersion(version)
	}
}

// EnableAPIMode puts the device into API mode and requests the geometry of
// zone 0, mirroring what the reference client does on connect.
func (d *Device) EnableAPIMode() error {
	msg, err := d.proto.EnableAPIMode()
	if err != nil {
		return err
	}
	if err := d.Send(msg); err != nil {
		return err
	}
	msg, err = d.proto.ZoneBoundaryRequest(0)
	if err != nil {
		return err
	}
	return d.Send(msg)
}

// DisableAPIMode returns the device to standalone operation.
func (d *Device) DisableAPIMode() error {
	msg, err := d.proto.DisableAPIMode()
	if err != nil {
		return err
	}
	return d.Send(msg)
}

// ClearZone blanks a zone.
func (d *Device) ClearZone(zone byte) error {
	msg, err := d.proto.ClearZone(zone)
	if err != nil {
		return err
	}
	return d.Send(msg)
}

// DrawPixel lights a single pixel.
func (d *Device) DrawPixel(zone, x, y, r, g, b byte) error {
	msg, err := d.proto.DrawPixel(zone, x, y, r, g, b)
	if err != nil {
		return err
	}
	return d.Send(msg)
}

// DrawRectangle fills a rectangle.
func (d *Device) DrawRectangle(zone, x, y, w, h, r, g, b byte) error {
	msg, err := d.proto.DrawRectangle(zone, x, y, w, h, r, g, b)
	if err != nil {
		return err
	}
	return d.Send(msg)
}

// DrawImage sends a full-range RGB image, split into row bands as needed.
func (d *Device) DrawImage(zone, x, y, w, h byte, rgb []byte) error {
	msgs, err := d.proto.DrawImage(zone, x, y, w, h, rgb)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := d.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// QueryZoneBoundary sends a zone boundary request and waits for the reply.
// The reply is also forwarded to the registered handler.
func (d *Device) QueryZoneBoundary(zone byte, timeout time.Duration) (ZoneBoundary, error) {
	ch := make(chan ZoneBoundary, 1)
	d.mu.Lock()
	d.zbWait = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		if d.zbWait == ch {
			d.zbWait = nil
		}
		d.mu.Unlock()
	}()

	msg, err := d.proto.ZoneBoundaryRequest(zone)
	if err != nil {
		return ZoneBoundary{}, err
	}
	if err := d.Send(msg); err != nil {
		return ZoneBoundary{}, err
	}

	select {
	case zb := <-ch:
		return zb, nil
	case <-time.After(timeout):
		return ZoneBoundary{}, fmt.Errorf("zone boundary request for zone %d timed out after %v", zone, timeout)
	}
}

// QueryAPIVersion sends an api version request and waits for the reply.
func (d *Device) QueryAPIVersion(timeout time.Duration) (byte, error) {
	ch := make(chan byte, 1)
	d.mu.Lock()
	d.verWait = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		if d.verWait == ch {
			d.verWait = nil
		}
		d.mu.Unlock()
	}()

	msg, err := d.proto.APIVersionRequest()
	if err != nil {
		return 0, err
	}
	if err := d.Send(msg); err != nil {
		return 0, err
	}

	select {
	case v := <-ch:
		return v, nil
	case <-time.After(timeout):
		return 0, fmt.Errorf("api version request timed out after %v", timeout)
	}
}

// ZoneSize returns the last zone geometry reported by the device. Zero
// values mean no valid boundary reply has been seen yet.
func (d *Device) ZoneSize() (w, h byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zoneW, d.zoneH
}
