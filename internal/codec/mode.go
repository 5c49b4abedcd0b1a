// Package codec implements the byte/text modes used to display received
// frames and to encode transmitted ones.
package codec

import (
	"strings"

	"firestige.xyz/ifcli/internal/api"
)

// Mode selects the textual encoding of a byte stream.
type Mode int

const (
	ModePlaintext Mode = iota
	ModeHex
	ModeOctal
	ModeBinary
	// ModeZlib is declared for compatibility with saved sessions. It does not
	// compress: its wire bytes are identical to ModeHex.
	ModeZlib
)

// String returns the long mode name.
func (m Mode) String() string {
	switch m {
	case ModePlaintext:
		return "plaintext"
	case ModeHex:
		return "hex"
	case ModeOctal:
		return "octal"
	case ModeBinary:
		return "binary"
	case ModeZlib:
		return "zlib"
	default:
		return "unknown"
	}
}

// Short returns the one-letter tag shown by `ls`.
func (m Mode) Short() string {
	switch m {
	case ModePlaintext:
		return "a"
	case ModeHex:
		return "x"
	case ModeOctal:
		return "o"
	case ModeBinary:
		return "b"
	case ModeZlib:
		return "z"
	default:
		return "?"
	}
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m >= ModePlaintext && m <= ModeZlib
}

// ParseMode accepts the long names and the historical short aliases:
// z/zlib, a/pt/ascii/plaintext, h/x/hex, b/binary, o/octal.
func ParseMode(s string) (Mode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return ModePlaintext, api.ParseError("empty mode")
	}
	switch {
	case v == "zlib" || v[0] == 'z':
		return ModeZlib, nil
	case v == "pt" || v == "plaintext" || v == "ascii" || v[0] == 'a':
		return ModePlaintext, nil
	case v == "hex" || v[0] == 'h' || v[0] == 'x':
		return ModeHex, nil
	case v == "binary" || v[0] == 'b':
		return ModeBinary, nil
	case v == "octal" || v[0] == 'o':
		return ModeOctal, nil
	}
	return ModePlaintext, api.ParseError("mode %q unrecognized", s)
}

// MarshalText lets modes appear by name in YAML and config files.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
