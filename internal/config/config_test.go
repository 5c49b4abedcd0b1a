package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ifcli.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultRoot(), cfg.Session.Root)
	assert.True(t, cfg.Session.Latest)
	assert.Equal(t, 50*time.Millisecond, cfg.Capture.PollTimeout)
	assert.Equal(t, 2*time.Second, cfg.Capture.JoinTimeout)
	assert.Equal(t, "\r", cfg.Console.CR)
	assert.Equal(t, "\n", cfg.Console.LF)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, filepath.Join(cfg.Session.Root, "ifcli.log"), cfg.Log.File.Filename)
	assert.Empty(t, cfg.InterfacePresets())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
ifcli:
  session:
    root: /tmp/ifcli-test
    latest: false
  capture:
    poll_timeout: 20ms
  console:
    prompt: "> "
  log:
    level: debug
    file:
      enabled: false
  presets:
    - type: tcp
      ipaddr: 10.1.1.1
      ipport: "502"
      txmode: hex
      flags: [alf, acr]
    - type: ser
      devname: /dev/ttyUSB0
      baud: 115200
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ifcli-test", cfg.Session.Root)
	assert.False(t, cfg.Session.Latest)
	assert.Equal(t, 20*time.Millisecond, cfg.Capture.PollTimeout)
	assert.Equal(t, "> ", cfg.Console.Prompt)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.Log.File.Filename)

	presets := cfg.InterfacePresets()
	require.Len(t, presets, 2)
	assert.Equal(t, transport.KindTCP, presets[0].Type)
	assert.Equal(t, 502, presets[0].Port)
	require.NotNil(t, presets[0].TxMode)
	assert.Equal(t, codec.ModeHex, *presets[0].TxMode)
	assert.Equal(t, []Setting{
		{"type", "tcp"},
		{"ipaddr", "10.1.1.1"},
		{"ipport", "502"},
		{"txmode", "hex"},
		{"alf", "on"},
		{"acr", "on"},
	}, presets[0].Settings())

	assert.Equal(t, transport.KindSerial, presets[1].Type)
	assert.Equal(t, 115200, presets[1].Baud)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("IFCLI_SESSION_ROOT", "/tmp/from-env")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", cfg.Session.Root)
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"bad level": `
ifcli:
  log:
    level: loud
`,
		"poll too long": `
ifcli:
  capture:
    poll_timeout: 1s
`,
		"long cr": `
ifcli:
  console:
    cr: "ab"
`,
		"bad preset type": `
ifcli:
  presets:
    - type: pigeon
`,
		"unknown preset key": `
ifcli:
  presets:
    - type: tcp
      colour: red
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
