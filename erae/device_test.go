package erae

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

type chanHandler struct {
	fingers  chan FingerEvent
	zones    chan ZoneBoundary
	versions chan byte
}

func newChanHandler() *chanHandler {
	return &chanHandler{
		fingers:  make(chan FingerEvent, 8),
		zones:    make(chan ZoneBoundary, 8),
		versions: make(chan byte, 8),
	}
}

func (h *chanHandler) FingerDetection(ev FingerEvent)    { h.fingers <- ev }
func (h *chanHandler) ZoneBoundaryReply(zb ZoneBoundary) { h.zones <- zb }
func (h *chanHandler) APIVersion(v byte)                 { h.versions <- v }

func testDevice(t *testing.T) (*Device, net.Conn, *chanHandler) {
	t.Helper()
	client, server := net.Pipe()
	d := NewDevice(EraeII, []byte{0x01, 0x02, 0x03})
	h := newChanHandler()
	d.SetHandler(h)
	d.attach(server)
	t.Cleanup(func() {
		d.Close()
		client.Close()
	})
	return d, client, h
}

func TestDeviceScansFramesFromStream(t *testing.T) {
	_, client, h := testDevice(t)

	// A shared bus: note data, then a reply frame with a realtime byte in
	// the middle, then active sensing.
	stream := []byte{
		0x90, 0x40, 0x64,
		0xf0, 0x01, 0x02, 0x03, 0x7f, 0x01, 0x03, 0x0a, 0xf8, 0x08, 0xf7,
		0xfe,
	}
	if _, err := client.Write(stream); err != nil {
		t.Fatal(err)
	}

	select {
	case zb := <-h.zones:
		if zb.Zone != 3 || zb.Width != 10 || zb.Height != 8 {
			t.Errorf("zone boundary = %+v, want zone 3, 10x8", zb)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the zone boundary reply")
	}
}

func TestDeviceAbortsPartialFrameOnStatusByte(t *testing.T) {
	_, client, h := testDevice(t)

	stream := []byte{
		0xf0, 0x01, 0x02, // frame interrupted by a status byte
		0x90, 0x40, 0x64,
		0xf0, 0x01, 0x02, 0x03, 0x7f, 0x02, 0x04, 0xf7, // complete version reply
	}
	if _, err := client.Write(stream); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-h.versions:
		if v != 4 {
			t.Errorf("api version = %d, want 4", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the api version reply")
	}
	select {
	case zb := <-h.zones:
		t.Errorf("unexpected zone reply %+v from the aborted frame", zb)
	default:
	}
}

func TestQueryZoneBoundary(t *testing.T) {
	d, client, _ := testDevice(t)

	go func() {
		buf := make([]byte, 64)
		n, err := client.Read(buf)
		if err != nil {
			return
		}
		expected := []byte{0xf0, 0x00, 0x21, 0x50, 0x00, 0x01, 0x00, 0x02, 0x01, 0x01, 0x04, 0x10, 0x00, 0xf7}
		if !bytes.Equal(buf[:n], expected) {
			t.Errorf("request on the wire: % x, want % x", buf[:n], expected)
		}
		client.Write([]byte{0xf0, 0x01, 0x02, 0x03, 0x7f, 0x01, 0x00, 0x2a, 0x18, 0xf7})
	}()

	zb, err := d.QueryZoneBoundary(0, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if zb.Zone != 0 || zb.Width != 42 || zb.Height != 24 {
		t.Errorf("zone boundary = %+v, want zone 0, 42x24", zb)
	}

	if w, h := d.ZoneSize(); w != 42 || h != 24 {
		t.Errorf("ZoneSize() = %dx%d, want 42x24", w, h)
	}
}

func TestQueryAPIVersion(t *testing.T) {
	d, client, _ := testDevice(t)

	go func() {
		buf := make([]byte, 64)
		if _, err := client.Read(buf); err != nil {
			return
		}
		client.Write([]byte{0xf0, 0x01, 0x02, 0x03, 0x7f, 0x02, 0x04, 0xf7})
	}()

	v, err := d.QueryAPIVersion(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if v != 4 {
		t.Errorf("api version = %d, want 4", v)
	}
}

func TestQueryTimeout(t *testing.T) {
	d, client, _ := testDevice(t)

	go func() {
		buf := make([]byte, 64)
		client.Read(buf) // swallow the request, never answer
	}()

	if _, err := d.QueryZoneBoundary(1, 50*time.Millisecond); err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestSendAfterClose(t *testing.T) {
	d, _, _ := testDevice(t)
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := d.Send([]byte{0xf0, 0xf7}); err != io.EOF {
		t.Errorf("Send after close = %v, want io.EOF", err)
	}
	if err := d.Close(); err != io.ErrClosedPipe {
		t.Errorf("second Close = %v, want io.ErrClosedPipe", err)
	}
}
