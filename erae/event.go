package erae

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Action is the finger gesture phase carried in the low 3 bits of a finger
// stream tag byte. Values the firmware may add later are passed through
// unchanged.
type Action byte

const (
	ActionClick   Action = 0
	ActionSlide   Action = 1
	ActionRelease Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionClick:
		return "click"
	case ActionSlide:
		return "slide"
	case ActionRelease:
		return "release"
	}
	return fmt.Sprintf("action(%d)", byte(a))
}

// FingerEvent is one decoded finger stream message. Events are handed to
// the ReplyHandler as they are decoded and not retained.
type FingerEvent struct {
	FingerID uint64  `json:"finger_id"`
	Zone     byte    `json:"zone"`
	Action   Action  `json:"action"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Z        float32 `json:"z"`

	// ChecksumOK is false when the coordinate block arrived with a bad
	// checksum. The event is still delivered; strict callers check the
	// flag.
	ChecksumOK bool `json:"checksum_ok"`
}

// ZoneBoundary is the reply to a zone boundary request.
type ZoneBoundary struct {
	Zone   byte `json:"zone"`
	Width  byte `json:"width"`
	Height byte `json:"height"`
}

// Valid is false when the device flagged the requested zone id as unknown.
func (z ZoneBoundary) Valid() bool {
	return z.Width != BoundaryInvalid && z.Height != BoundaryInvalid
}

// ReplyHandler receives decoded inbound messages. Exactly one method is
// invoked per successfully decoded message, with at most one call in
// flight at a time.
type ReplyHandler interface {
	FingerDetection(ev FingerEvent)
	ZoneBoundaryReply(zb ZoneBoundary)
	APIVersion(version byte)
}

// LogHandler is a ReplyHandler that logs everything it sees.
type LogHandler struct{}

func (LogHandler) FingerDetection(ev FingerEvent) {
	log.Infof("finger %d zone %d %v x=%v y=%v z=%v", ev.FingerID, ev.Zone, ev.Action, ev.X, ev.Y, ev.Z)
}

func (LogHandler) ZoneBoundaryReply(zb ZoneBoundary) {
	if !zb.Valid() {
		log.Infof("zone %d: no such zone", zb.Zone)
		return
	}
	log.Infof("zone %d: %dx%d", zb.Zone, zb.Width, zb.Height)
}

func (LogHandler) APIVersion(version byte) {
	log.Infof("api version %d", version)
}
