package erae

import "fmt"

// MaxImageRows caps the height of a single draw image message. Taller
// images are split into row bands, one message per band. Partial frame
// updates flash visibly on the surface, so the cap equals the full panel
// height and a whole frame normally goes out as one message.
const MaxImageRows = 24

// Protocol builds outbound SysEx messages for one device variant and one
// receiver prefix. Builders are stateless; each call returns a fresh
// framed message ready to hand to the transport.
type Protocol struct {
	Variant Variant

	// Prefix is the receiver prefix the device echoes on replies once API
	// mode is enabled. Inbound filtering matches on it verbatim.
	Prefix []byte
}

func NewProtocol(v Variant, prefix []byte) *Protocol {
	return &Protocol{Variant: v, Prefix: append([]byte(nil), prefix...)}
}

// build concatenates the device address, the command byte and its payload,
// and frames the result.
func (p *Protocol) build(cmd byte, payload ...byte) ([]byte, error) {
	addr := p.Variant.deviceAddress()
	msg := make([]byte, 0, len(addr)+1+len(payload))
	msg = append(msg, addr...)
	msg = append(msg, cmd)
	msg = append(msg, payload...)
	return BuildFrame(msg)
}

// EnableAPIMode switches the device into API mode. Replies and finger
// telemetry sent afterwards carry the receiver prefix.
//
// Payload structure:
//
//	[ADDR(10)][0x01][PREFIX...]
func (p *Protocol) EnableAPIMode() ([]byte, error) {
	return p.build(CmdAPIModeEnable, p.Prefix...)
}

// DisableAPIMode returns the device to standalone operation.
//
// Payload structure:
//
//	[ADDR(10)][0x02]
func (p *Protocol) DisableAPIMode() ([]byte, error) {
	return p.build(CmdAPIModeDisable)
}

// APIVersionRequest asks for the device API version. The reply arrives as
// an APIVersion callback.
//
// Payload structure:
//
//	[ADDR(10)][0x7F][PREFIX...]
func (p *Protocol) APIVersionRequest() ([]byte, error) {
	return p.build(CmdAPIVersionRequest, p.Prefix...)
}

// ZoneBoundaryRequest asks for the width and height of a zone. The reply
// arrives as a ZoneBoundaryReply callback.
//
// Payload structure:
//
//	[ADDR(10)][0x10][ZONE]
func (p *Protocol) ZoneBoundaryRequest(zone byte) ([]byte, error) {
	return p.build(CmdZoneBoundaryRequest, zone)
}

// ClearZone blanks all pixels of a zone.
//
// Payload structure:
//
//	[ADDR(10)][0x20][ZONE]
func (p *Protocol) ClearZone(zone byte) ([]byte, error) {
	return p.build(CmdClearZone, zone)
}

// DrawPixel lights a single pixel. Coordinates and color components use
// the 7-bit range by protocol convention; the frame builder rejects
// anything larger.
//
// Payload structure:
//
//	[ADDR(10)][0x21][ZONE][X][Y][R][G][B]
func (p *Protocol) DrawPixel(zone, x, y, r, g, b byte) ([]byte, error) {
	return p.build(CmdDrawPixel, zone, x, y, r, g, b)
}

// DrawRectangle fills a w by h rectangle at x,y.
//
// Payload structure:
//
//	[ADDR(10)][0x22][ZONE][X][Y][W][H][R][G][B]
func (p *Protocol) DrawRectangle(zone, x, y, w, h, r, g, b byte) ([]byte, error) {
	return p.build(CmdDrawRectangle, zone, x, y, w, h, r, g, b)
}

// DrawImage draws w by h pixels of full-range RGB data (3 bytes per pixel,
// row-major). Components may use all 8 bits, so the pixel data is
// septet-repacked with a trailing checksum. Images taller than
// MaxImageRows are split into one message per row band; the returned
// messages are sent in order.
//
// Payload structure, per band:
//
//	[ADDR(10)][0x23][ZONE][X][Y][W][H][BITIZED RGB...][CHECKSUM]
func (p *Protocol) DrawImage(zone, x, y, w, h byte, rgb []byte) ([][]byte, error) {
	if want := int(w) * int(h) * 3; len(rgb) != want {
		return nil, fmt.Errorf("rgb data is %d bytes, %dx%d image needs %d", len(rgb), w, h, want)
	}
	var msgs [][]byte
	for row := 0; row < int(h); row += MaxImageRows {
		band := int(h) - row
		if band > MaxImageRows {
			band = MaxImageRows
		}
		chunk := rgb[row*int(w)*3 : (row+band)*int(w)*3]
		payload := []byte{zone, x, y + byte(row), w, byte(band)}
		payload = append(payload, Bitize7Checksum(chunk)...)
		msg, err := p.build(CmdDrawImage, payload...)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
