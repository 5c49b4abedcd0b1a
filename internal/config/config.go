// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/ifcli/internal/log"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `ifcli:` root key in YAML.
type GlobalConfig struct {
	Session SessionConfig            `mapstructure:"session"`
	Capture CaptureConfig            `mapstructure:"capture"`
	Console ConsoleConfig            `mapstructure:"console"`
	Log     log.LoggerConfig         `mapstructure:"log"`
	Presets []map[string]interface{} `mapstructure:"presets"`

	presets []Preset
}

// ─── Session ───

// SessionConfig locates run directories.
type SessionConfig struct {
	Root   string `mapstructure:"root"`   // Empty = $TMPDIR/ifcli-<user>
	Latest bool   `mapstructure:"latest"` // maintain the `latest` symlink
}

// ─── Capture ───

// CaptureConfig tunes the background capture loop.
type CaptureConfig struct {
	PollTimeout time.Duration `mapstructure:"poll_timeout"` // capped at 100ms
	JoinTimeout time.Duration `mapstructure:"join_timeout"`
}

// ─── Console ───

// ConsoleConfig controls the interactive front end.
type ConsoleConfig struct {
	Prompt string `mapstructure:"prompt"`
	CR     string `mapstructure:"cr"` // single byte appended by acr
	LF     string `mapstructure:"lf"` // single byte appended by alf
	Color  bool   `mapstructure:"color"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `ifcli: ...`.
type configRoot struct {
	Ifcli GlobalConfig `mapstructure:"ifcli"`
}

// Load loads configuration from path. An empty path yields the defaults,
// still subject to environment overrides (e.g. IFCLI_SESSION_ROOT).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `ifcli.` key prefix maps to `IFCLI_` in env vars via the key
	// replacer (e.g. key "ifcli.log.level" → env "IFCLI_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Ifcli

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "ifcli." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Session defaults
	v.SetDefault("ifcli.session.root", "")
	v.SetDefault("ifcli.session.latest", true)

	// Capture defaults
	v.SetDefault("ifcli.capture.poll_timeout", "50ms")
	v.SetDefault("ifcli.capture.join_timeout", "2s")

	// Console defaults
	v.SetDefault("ifcli.console.prompt", "if%02x> ")
	v.SetDefault("ifcli.console.cr", "\r")
	v.SetDefault("ifcli.console.lf", "\n")
	v.SetDefault("ifcli.console.color", true)

	// Log defaults
	v.SetDefault("ifcli.log.level", "info")
	v.SetDefault("ifcli.log.pattern", log.DefaultPattern)
	v.SetDefault("ifcli.log.time", log.DefaultTime)
	v.SetDefault("ifcli.log.console", false)
	v.SetDefault("ifcli.log.file.enabled", true)
	v.SetDefault("ifcli.log.file.path", "")
	v.SetDefault("ifcli.log.file.max_size_mb", 10)
	v.SetDefault("ifcli.log.file.max_age_days", 7)
	v.SetDefault("ifcli.log.file.max_backups", 3)
	v.SetDefault("ifcli.log.file.compress", true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults that depend on the environment.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}

	// ── Session root ──
	if cfg.Session.Root == "" {
		cfg.Session.Root = DefaultRoot()
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Filename == "" {
		cfg.Log.File.Filename = filepath.Join(cfg.Session.Root, "ifcli.log")
	}

	// ── Capture ──
	if cfg.Capture.PollTimeout <= 0 || cfg.Capture.PollTimeout > 100*time.Millisecond {
		return fmt.Errorf("capture.poll_timeout must be in (0, 100ms], got %s", cfg.Capture.PollTimeout)
	}
	if cfg.Capture.JoinTimeout <= 0 {
		return fmt.Errorf("capture.join_timeout must be positive, got %s", cfg.Capture.JoinTimeout)
	}

	// ── Console ──
	if len(cfg.Console.CR) != 1 || len(cfg.Console.LF) != 1 {
		return fmt.Errorf("console.cr and console.lf must be single bytes")
	}

	// ── Presets ──
	presets, err := decodePresets(cfg.Presets)
	if err != nil {
		return err
	}
	cfg.presets = presets
	return nil
}

// InterfacePresets returns the decoded presets in file order.
func (cfg *GlobalConfig) InterfacePresets() []Preset { return cfg.presets }

// DefaultRoot is $TMPDIR/ifcli-<user>.
func DefaultRoot() string {
	name := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	if name == "" {
		name = "nobody"
	}
	return filepath.Join(os.TempDir(), "ifcli-"+filepath.Base(name))
}
