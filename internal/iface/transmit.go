package iface

import (
	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/rxlog"
)

// LineEnding holds the bytes appended by the acr and alf flags.
type LineEnding struct {
	CR byte
	LF byte
}

// DefaultLineEnding is CR LF.
var DefaultLineEnding = LineEnding{CR: '\r', LF: '\n'}

// Prepare lays data out in a transmit frame: a buffer-sized block padded
// with zeros, trimmed of its trailing zeros when as is set and the transmit
// mode is plaintext, then terminated per acr and alf.
func (i *Interface) Prepare(data []byte, le LineEnding) []byte {
	frame := make([]byte, i.buffer, i.buffer+2)
	copy(frame, data)
	if i.flags.Has(FlagAS) && i.txMode == codec.ModePlaintext {
		frame = codec.TrimZeros(frame)
	}
	if len(frame) > rxlog.MaxFrame-2 {
		frame = frame[:rxlog.MaxFrame-2]
	}
	if i.flags.Has(FlagACR) {
		frame = append(frame, le.CR)
	}
	if i.flags.Has(FlagALF) {
		frame = append(frame, le.LF)
	}
	return frame
}

// Transmit prepares data, writes it through the transport encoded in the
// transmit mode, and records the frame in the log as a loopback entry. It
// returns the loopback frame index.
func (i *Interface) Transmit(data []byte, le LineEnding) (int, error) {
	frame := i.Prepare(data, le)
	if _, err := i.tr.Write(codec.Encode(i.txMode, frame)); err != nil {
		return 0, err
	}
	return i.Record(frame)
}

// WriteRaw sends p unchanged and records it. Flush uses it for bare line
// terminators.
func (i *Interface) WriteRaw(p []byte) (int, error) {
	if _, err := i.tr.Write(p); err != nil {
		return 0, err
	}
	return i.Record(p)
}
