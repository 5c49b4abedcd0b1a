//go:build !linux

package transport

import (
	"errors"
	"os"
)

// SupportedBaud reports whether rate can be programmed on a serial line.
func SupportedBaud(rate int) bool { return rate > 0 }

func openSerial(dev string, baud int) (*os.File, error) {
	return nil, errors.New("serial lines are only supported on linux")
}
