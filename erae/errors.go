package erae

import "fmt"

// RangeError reports an outbound payload byte that does not fit the 7-bit
// SysEx data domain. The send is aborted; the caller must fix its input.
type RangeError struct {
	// Index is the position of the offending byte within the payload
	Index int

	// Value is the offending byte
	Value byte
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("byte 0x%02X at index %d exceeds SysEx data range (max 0x7F)", e.Value, e.Index)
}

// TruncatedError reports an inbound payload shorter than a declared field.
// It is fatal to that message only.
type TruncatedError struct {
	// Field names the field being decoded when the payload ran out
	Field string

	// Need is the number of bytes the field requires
	Need int

	// Have is the number of bytes that were left
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated %s: need %d bytes, have %d", e.Field, e.Need, e.Have)
}

// ChecksumError reports a checksum mismatch on a bitized block. Decoding
// still yields best-effort data, see Unbitize7Checksum.
type ChecksumError struct {
	// Want is the checksum carried on the wire
	Want byte

	// Got is the checksum recomputed from the received stream
	Got byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: message carries 0x%02X, computed 0x%02X", e.Want, e.Got)
}

// IsOutOfRange returns true if the error is a RangeError.
func IsOutOfRange(err error) bool {
	_, ok := err.(*RangeError)
	return ok
}

// IsTruncated returns true if the error is a TruncatedError.
func IsTruncated(err error) bool {
	_, ok := err.(*TruncatedError)
	return ok
}

// IsChecksumMismatch returns true if the error is a ChecksumError.
func IsChecksumMismatch(err error) bool {
	_, ok := err.(*ChecksumError)
	return ok
}
