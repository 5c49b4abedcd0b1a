package codec

import (
	"strings"
)

const hexDigits = "0123456789abcdef"

// Width returns the number of encoded bytes produced per input byte.
func Width(m Mode) int {
	switch m {
	case ModeHex, ModeZlib:
		return 2
	case ModeOctal:
		return 3
	case ModeBinary:
		return 8
	default:
		return 1
	}
}

// AppendByte appends the encoding of b in mode m to dst.
func AppendByte(dst []byte, m Mode, b byte) []byte {
	switch m {
	case ModeHex, ModeZlib:
		return append(dst, hexDigits[b>>4], hexDigits[b&0x0f])
	case ModeOctal:
		return append(dst, '0'+(b>>6), '0'+((b>>3)&0x07), '0'+(b&0x07))
	case ModeBinary:
		for shift := 7; shift >= 0; shift-- {
			dst = append(dst, '0'+((b>>uint(shift))&0x01))
		}
		return dst
	default:
		return append(dst, b)
	}
}

// EncodeByte returns the encoding of a single byte.
func EncodeByte(m Mode, b byte) string {
	return string(AppendByte(make([]byte, 0, Width(m)), m, b))
}

// Encode returns the wire form of data in mode m. Plaintext is returned
// unchanged (not copied).
func Encode(m Mode, data []byte) []byte {
	if m == ModePlaintext || !m.Valid() {
		return data
	}
	out := make([]byte, 0, len(data)*Width(m))
	for _, b := range data {
		out = AppendByte(out, m, b)
	}
	return out
}

// groupsPerLine is presentation only.
func groupsPerLine(m Mode) int {
	switch m {
	case ModeHex, ModeZlib:
		return 24
	case ModeOctal:
		return 16
	case ModeBinary:
		return 6
	default:
		return 0
	}
}

// Format renders data for display in mode m. Plaintext keeps printable ASCII
// and newlines only; the other modes print space separated groups broken into
// fixed-width lines.
func Format(m Mode, data []byte) string {
	var sb strings.Builder
	if m == ModePlaintext || !m.Valid() {
		for _, b := range data {
			if b == '\n' || (b >= 0x20 && b < 0x7f) {
				sb.WriteByte(b)
			}
		}
		return sb.String()
	}

	perLine := groupsPerLine(m)
	buf := make([]byte, 0, Width(m))
	for i, b := range data {
		buf = AppendByte(buf[:0], m, b)
		sb.Write(buf)
		if (i+1)%perLine == 0 {
			sb.WriteByte('\n')
		} else if i+1 < len(data) {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// TrimZeros returns data without its trailing zero bytes. It implements the
// auto-size-plaintext flag on fixed-size transmit buffers.
func TrimZeros(data []byte) []byte {
	n := len(data)
	for n > 0 && data[n-1] == 0 {
		n--
	}
	return data[:n]
}
