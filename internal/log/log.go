package log

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	once   sync.Once
	mu     sync.RWMutex
	logger Logger = discard()
)

// GetLogger returns the process logger. Before Init it discards everything,
// so packages can log freely under test.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init builds the process logger from cfg. Only the first call has any
// effect.
func Init(cfg *LoggerConfig) error {
	var err error
	once.Do(func() {
		var l Logger
		if l, err = New(cfg); err == nil {
			mu.Lock()
			logger = l
			mu.Unlock()
		}
	})
	return err
}

// Close releases the appenders of the process logger and falls back to
// discarding.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	a, ok := logger.(*logrusAdapter)
	logger = discard()
	if !ok || a.out == nil {
		return nil
	}
	return a.out.Close()
}

func discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusAdapter{entry: logrus.NewEntry(l)}
}
