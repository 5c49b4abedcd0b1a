package config

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/transport"
)

// Preset describes an interface created when a console session starts.
type Preset struct {
	Type    transport.Kind `mapstructure:"type"`
	Addr    string         `mapstructure:"ipaddr"`
	Port    int            `mapstructure:"ipport"`
	Device  string         `mapstructure:"devname"`
	Baud    int            `mapstructure:"baud"`
	Buffer  int            `mapstructure:"buffer"`
	RxMode  *codec.Mode    `mapstructure:"rxmode"`
	TxMode  *codec.Mode    `mapstructure:"txmode"`
	Flags   []string       `mapstructure:"flags"`
	Connect bool           `mapstructure:"connect"`
}

// Setting is one configure call.
type Setting struct {
	Key   string
	Value string
}

// Settings expands the preset into configure calls, type first.
func (p Preset) Settings() []Setting {
	out := []Setting{{"type", p.Type.String()}}
	add := func(k, v string) { out = append(out, Setting{k, v}) }
	if p.Addr != "" {
		add("ipaddr", p.Addr)
	}
	if p.Port != 0 {
		add("ipport", strconv.Itoa(p.Port))
	}
	if p.Device != "" {
		add("devname", p.Device)
	}
	if p.Baud != 0 {
		add("baud", strconv.Itoa(p.Baud))
	}
	if p.Buffer != 0 {
		add("buffer", strconv.Itoa(p.Buffer))
	}
	if p.RxMode != nil {
		add("rxmode", p.RxMode.String())
	}
	if p.TxMode != nil {
		add("txmode", p.TxMode.String())
	}
	for _, f := range p.Flags {
		add(f, "on")
	}
	return out
}

func decodePresets(raw []map[string]interface{}) ([]Preset, error) {
	out := make([]Preset, 0, len(raw))
	for i, m := range raw {
		var p Preset
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &p,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("presets[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}
