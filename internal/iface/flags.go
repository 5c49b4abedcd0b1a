package iface

import (
	"strings"

	"firestige.xyz/ifcli/internal/api"
)

// Flags is the per-interface option set.
type Flags uint8

const (
	// FlagAsync prints frames as they arrive.
	FlagAsync Flags = 1 << iota
	// FlagALF appends a line feed to every transmit.
	FlagALF
	// FlagACR appends a carriage return to every transmit.
	FlagACR
	// FlagAS trims trailing zeros from plaintext transmits.
	FlagAS
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagAsync, "async"},
	{FlagALF, "alf"},
	{FlagACR, "acr"},
	{FlagAS, "as"},
}

func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	var names []string
	for _, n := range flagNames {
		if f.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

// ParseFlag maps a flag name to its bit.
func ParseFlag(s string) (Flags, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, n := range flagNames {
		if n.name == s {
			return n.flag, nil
		}
	}
	return 0, api.ParseError("unknown flag %q", s)
}

// ParseSwitch parses a flag value: on/off, true/false, yes/no or 1/0.
func ParseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, api.ParseError("expected on or off, got %q", s)
}
