package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ifcli/internal/api"
)

func TestEncodeByteTable(t *testing.T) {
	assert.Equal(t, "0a", EncodeByte(ModeHex, 0x0A))
	assert.Equal(t, "011", EncodeByte(ModeOctal, 0x09))
	assert.Equal(t, "x", EncodeByte(ModePlaintext, 'x'))
	assert.Equal(t, "00000001", EncodeByte(ModeBinary, 0x01))
	assert.Equal(t, "ff", EncodeByte(ModeHex, 0xff))
	assert.Equal(t, "377", EncodeByte(ModeOctal, 0xff))
	assert.Equal(t, "10000000", EncodeByte(ModeBinary, 0x80))
}

func TestZlibIsHexAlias(t *testing.T) {
	data := []byte{0x00, 0x7f, 0x80, 0xff, 'A'}
	assert.Equal(t, Encode(ModeHex, data), Encode(ModeZlib, data))
	assert.Equal(t, Format(ModeHex, data), Format(ModeZlib, data))
}

func TestEncodeWidths(t *testing.T) {
	data := []byte("hello")
	for _, m := range []Mode{ModePlaintext, ModeHex, ModeOctal, ModeBinary, ModeZlib} {
		assert.Len(t, Encode(m, data), len(data)*Width(m), m.String())
	}
}

func TestEncodePlaintextIsIdentity(t *testing.T) {
	data := []byte{0, 1, 2, 'a', '\n'}
	assert.True(t, bytes.Equal(data, Encode(ModePlaintext, data)))
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"zlib":      ModeZlib,
		"z":         ModeZlib,
		"pt":        ModePlaintext,
		"plaintext": ModePlaintext,
		"ascii":     ModePlaintext,
		"a":         ModePlaintext,
		"hex":       ModeHex,
		"h":         ModeHex,
		"x":         ModeHex,
		"binary":    ModeBinary,
		"b":         ModeBinary,
		"octal":     ModeOctal,
		"o":         ModeOctal,
		" HEX ":     ModeHex,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("qq")
	assert.True(t, errors.Is(err, api.ErrParse))
	_, err = ParseMode("")
	assert.True(t, errors.Is(err, api.ErrParse))
}

func TestModeTextRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModePlaintext, ModeHex, ModeOctal, ModeBinary, ModeZlib} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var back Mode
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}
}

func TestFormatHexLines(t *testing.T) {
	data := make([]byte, 30)
	out := Format(ModeHex, data)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Len(t, strings.Fields(lines[0]), 24)
	assert.Len(t, strings.Fields(lines[1]), 6)
}

func TestFormatPlaintextDropsControl(t *testing.T) {
	assert.Equal(t, "ab\nc", Format(ModePlaintext, []byte("a\x01b\n\x7fc\r")))
}

func TestTrimZeros(t *testing.T) {
	assert.Equal(t, []byte("abc"), TrimZeros([]byte{'a', 'b', 'c', 0, 0}))
	assert.Equal(t, []byte{}, TrimZeros([]byte{0, 0}))
	assert.Equal(t, []byte{0, 'a'}, TrimZeros([]byte{0, 'a'}))
}
