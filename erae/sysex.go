package erae

// SysEx framing markers. Everything between them must stay below 0x80.
const (
	SysExStart byte = 0xf0
	SysExEnd   byte = 0xf7
)

// Command bytes understood by the device.
const (
	CmdAPIModeEnable       byte = 0x01
	CmdAPIModeDisable      byte = 0x02
	CmdZoneBoundaryRequest byte = 0x10
	CmdClearZone           byte = 0x20
	CmdDrawPixel           byte = 0x21
	CmdDrawRectangle       byte = 0x22
	CmdDrawImage           byte = 0x23
	CmdAPIVersionRequest   byte = 0x7f
)

// Tags on inbound messages, following the receiver prefix.
const (
	TagNonFinger      byte = 0x7f // control reply rather than a finger stream
	ReplyZoneBoundary byte = 0x01
	ReplyAPIVersion   byte = 0x02
)

// BoundaryInvalid is reported as width or height of a zone boundary reply
// when the requested zone id does not exist.
const BoundaryInvalid byte = 0x7f

// Variant selects the product family member the device address is built
// for.
type Variant byte

const (
	EraeTouch Variant = iota // first generation surface
	EraeII
)

func (v Variant) String() string {
	if v == EraeII {
		return "Erae II"
	}
	return "Erae Touch"
}

// memberCode returns the 2-byte product family member code.
func (v Variant) memberCode() [2]byte {
	if v == EraeII {
		return [2]byte{0x00, 0x02}
	}
	return [2]byte{0x00, 0x01}
}

// deviceAddress returns the fixed addressing preamble prepended to every
// outbound message: Embodme manufacturer id, hardware family, family
// member code, midi network id, service id, api id.
func (v Variant) deviceAddress() []byte {
	m := v.memberCode()
	return []byte{0x00, 0x21, 0x50, 0x00, 0x01, m[0], m[1], 0x01, 0x01, 0x04}
}

// BuildFrame wraps a payload in SysEx framing. Every payload byte must fit
// the 7-bit data domain; the first offending byte is reported with its
// position.
func BuildFrame(payload []byte) ([]byte, error) {
	for i, b := range payload {
		if b >= 0x80 {
			return nil, &RangeError{Index: i, Value: b}
		}
	}
	out := make([]byte, 0, len(payload)+2)
	out = append(out, SysExStart)
	out = append(out, payload...)
	out = append(out, SysExEnd)
	return out, nil
}

// StripFrame returns the payload of a framed SysEx message. Anything not
// framed by SysExStart/SysExEnd is not a message for us. Shared MIDI buses
// carry unrelated traffic, so ok is false and no error is raised.
func StripFrame(raw []byte) (payload []byte, ok bool) {
	if len(raw) < 2 || raw[0] != SysExStart || raw[len(raw)-1] != SysExEnd {
		return nil, false
	}
	return raw[1 : len(raw)-1], true
}
