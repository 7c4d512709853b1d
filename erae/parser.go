package erae

import (
	"bytes"
	"encoding/binary"
	"math"

	log "github.com/sirupsen/logrus"
)

// Bitized field sizes of a finger stream message.
var (
	fingerIDLen  = BitizedLen(8)  // 64-bit finger id, no checksum byte
	fingerXYZLen = BitizedLen(12) // 3 float32, followed by one checksum byte
)

// Parser turns inbound SysEx payloads into ReplyHandler calls. Payloads
// not starting with the receiver prefix, and control replies with unknown
// tags, are dropped silently: on a shared bus they are simply not
// addressed to us.
type Parser struct {
	Prefix  []byte
	Handler ReplyHandler
}

// Dispatch decodes one frame-stripped payload and invokes at most one
// handler method. A payload shorter than a declared field yields a
// TruncatedError; a checksum mismatch in the finger stream is logged,
// flagged on the event and delivered anyway. Failures are confined to the
// message at hand, the parser stays usable.
func (p *Parser) Dispatch(payload []byte) error {
	if len(payload) <= len(p.Prefix) || !bytes.HasPrefix(payload, p.Prefix) {
		return nil // not addressed to us
	}
	body := payload[len(p.Prefix):]

	tag := body[0]
	if tag != TagNonFinger {
		return p.dispatchFinger(tag, body[1:])
	}

	if len(body) < 2 {
		return &TruncatedError{Field: "reply tag", Need: 2, Have: len(body)}
	}
	switch body[1] {
	case ReplyZoneBoundary:
		if len(body) < 5 {
			return &TruncatedError{Field: "zone boundary reply", Need: 5, Have: len(body)}
		}
		p.Handler.ZoneBoundaryReply(ZoneBoundary{Zone: body[2], Width: body[3], Height: body[4]})
	case ReplyAPIVersion:
		if len(body) < 3 {
			return &TruncatedError{Field: "api version reply", Need: 3, Have: len(body)}
		}
		p.Handler.APIVersion(body[2])
	default:
		log.Debugf("ignoring control reply with unknown tag 0x%02x", body[1])
	}
	return nil
}

func (p *Parser) dispatchFinger(tag byte, body []byte) error {
	ev := FingerEvent{Action: Action(tag & 0x07), ChecksumOK: true}

	if len(body) < 1 {
		return &TruncatedError{Field: "finger zone", Need: 1, Have: len(body)}
	}
	ev.Zone = body[0]
	body = body[1:]

	if len(body) < fingerIDLen {
		return &TruncatedError{Field: "finger id", Need: fingerIDLen, Have: len(body)}
	}
	ev.FingerID = binary.LittleEndian.Uint64(Unbitize7(body[:fingerIDLen]))
	body = body[fingerIDLen:]

	if len(body) < fingerXYZLen+1 {
		return &TruncatedError{Field: "finger xyz", Need: fingerXYZLen + 1, Have: len(body)}
	}
	xyz, err := Unbitize7Checksum(body[:fingerXYZLen], body[fingerXYZLen])
	if err != nil {
		log.Warnf("finger stream: %v", err)
		ev.ChecksumOK = false
	}
	ev.X = math.Float32frombits(binary.LittleEndian.Uint32(xyz[0:4]))
	ev.Y = math.Float32frombits(binary.LittleEndian.Uint32(xyz[4:8]))
	ev.Z = math.Float32frombits(binary.LittleEndian.Uint32(xyz[8:12]))

	p.Handler.FingerDetection(ev)
	return nil
}
