// Package erae implements the SysEx control API of the Embodme Erae touch
// surfaces. A host enables API mode, draws on display zones and queries
// zone geometry, while the device streams finger telemetry and query
// replies back.
//
// The wire format is MIDI System-Exclusive: every message is framed by
// 0xF0/0xF7 and all payload bytes stay below 0x80. Full-range byte data
// (finger ids, float coordinates, RGB pixels) is carried through a 7-bit
// repacking scheme with an XOR checksum, see Bitize7 and friends.
//
// Protocol builds outbound messages, Parser dispatches inbound payloads to
// a ReplyHandler, and Device ties both to a serial or TCP MIDI link.
package erae
