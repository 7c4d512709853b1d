package erae

// 7-bit repacking for SysEx payloads. Plain bytes may use all 8 bits, but
// SysEx data bytes must stay below 0x80, so each group of up to 7 plain
// bytes becomes one header byte carrying the top bits followed by the
// low-7-bit remainders.

// BitizedLen returns the encoded length for n plain bytes.
func BitizedLen(n int) int {
	l := (n / 7) * 8
	if n%7 > 0 {
		l += 1 + n%7
	}
	return l
}

// PlainLen returns the decoded length for n bitized bytes. It is the exact
// inverse of BitizedLen for any well-formed encoded length.
func PlainLen(n int) int {
	l := (n / 8) * 7
	if n%8 > 0 {
		l += n%8 - 1
	}
	return l
}

// Bitize7 encodes data into its 7-bit-safe representation. The bit at
// position 6-j of each group's header byte is bit 7 of the j-th byte in
// that group.
func Bitize7(data []byte) []byte {
	out := make([]byte, 0, BitizedLen(len(data)))
	for i := 0; i < len(data); i += 7 {
		chunk := data[i:]
		if len(chunk) > 7 {
			chunk = chunk[:7]
		}
		var msb byte
		for j, b := range chunk {
			msb |= (b & 0x80) >> (j + 1)
		}
		out = append(out, msb)
		for _, b := range chunk {
			out = append(out, b&0x7f)
		}
	}
	return out
}

// Bitize7Checksum encodes data and appends the XOR checksum of the encoded
// stream. The checksum covers the bitized bytes, not the plain input.
func Bitize7Checksum(data []byte) []byte {
	out := Bitize7(data)
	return append(out, Checksum7(out))
}

// Checksum7 is the XOR of all bytes of a bitized stream.
func Checksum7(bitized []byte) byte {
	var chk byte
	for _, b := range bitized {
		chk ^= b
	}
	return chk
}

// Unbitize7 decodes a bitized stream back into plain bytes. A trailing
// partial group yields a proportionally shorter output per PlainLen.
func Unbitize7(bitized []byte) []byte {
	out := make([]byte, PlainLen(len(bitized)))
	o := 0
	for i := 0; i < len(bitized); i += 8 {
		header := bitized[i]
		for j := 0; j < 7 && i+1+j < len(bitized) && o < len(out); j++ {
			out[o] = (header<<(j+1))&0x80 | bitized[i+1+j]
			o++
		}
	}
	return out
}

// Unbitize7Checksum decodes a bitized stream and validates chk against the
// XOR of the encoded bytes. A mismatch is not fatal: the best-effort
// reconstruction is returned alongside a *ChecksumError and the caller
// decides whether to keep it.
func Unbitize7Checksum(bitized []byte, chk byte) ([]byte, error) {
	data := Unbitize7(bitized)
	if c := Checksum7(bitized); c != chk {
		return data, &ChecksumError{Want: chk, Got: c}
	}
	return data, nil
}
