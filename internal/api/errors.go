// Package api holds the error kinds shared by the table, log, transport and
// session layers.
package api

import (
	"errors"
	"fmt"
)

var (
	// ErrFull is returned when every slot of the interface table is taken.
	ErrFull = errors.New("interface table full")
	// ErrInvalidSlot is returned for an unused or out-of-range slot.
	ErrInvalidSlot = errors.New("invalid slot")
	// ErrInvalidEndpoints is returned when a link references a missing,
	// non-interface or identical slot.
	ErrInvalidEndpoints = errors.New("link must specify valid rx and tx interfaces")
	// ErrTransport wraps open/connect/read/write failures.
	ErrTransport = errors.New("transport error")
	// ErrParse is returned for malformed command arguments.
	ErrParse = errors.New("parse error")
	// ErrLogCorruption reports an index/payload mismatch found while opening
	// a log. It is a warning: the log stays usable.
	ErrLogCorruption = errors.New("rx log corruption")
	// ErrNotFound is returned when a frame index is outside the log.
	ErrNotFound = errors.New("frame not found")
)

// TransportError wraps an OS-level failure so that errors.Is(err,
// ErrTransport) holds while the underlying description is kept.
func TransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// ParseError builds an ErrParse with a formatted detail message.
func ParseError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
