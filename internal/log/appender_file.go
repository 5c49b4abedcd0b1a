package log

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

type FileAppenderOpt struct {
	Enabled    bool   `mapstructure:"enabled"`
	Filename   string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AddFileAppender adds a rotating file writer. The directory is created if
// needed.
func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) error {
	if options.Filename == "" {
		return errors.New("file appender requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(options.Filename), 0o755); err != nil {
		return err
	}
	m.Add(&lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,    // megabytes
		MaxBackups: options.MaxBackups, // number of backups
		MaxAge:     options.MaxAge,     // days
		Compress:   options.Compress,   // compress the backups
	})
	return nil
}
