package log

import (
	"io"
	"os"

	"go.uber.org/multierr"
)

// MultiWriter fans log output out to every appender. A failing appender
// does not stop the others.
type MultiWriter struct {
	writers []io.Writer
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if _, e := w.Write(p); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// Close closes the appenders that own a resource, such as rotating files.
// The standard streams are left open.
func (m *MultiWriter) Close() error {
	var err error
	for _, w := range m.writers {
		if w == os.Stderr || w == os.Stdout {
			continue
		}
		if c, ok := w.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}
