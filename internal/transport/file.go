package transport

import (
	"fmt"
	"io"
	"os"
)

// Stdout is where file transports naming StdoutName write.
var Stdout io.Writer = os.Stdout

type file struct {
	settings Settings
	f        *os.File
	open     bool
}

func (t *file) Kind() Kind { return KindFile }
func (t *file) Settings() Settings { return t.settings }
func (t *file) Connected() bool { return t.open }

func (t *file) stdout() bool { return t.settings.Device == StdoutName || t.settings.Device == "" }

func (t *file) Connect() error {
	if t.open {
		return nil
	}
	if !t.stdout() {
		f, err := os.OpenFile(t.settings.Device, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return transportErr("open", err)
		}
		t.f = f
	}
	t.open = true
	return nil
}

func (t *file) Disconnect() error {
	t.open = false
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return transportErr("close", err)
}

// Update switches the target. An open target is closed and the new one
// opened; stdout itself is never closed.
func (t *file) Update(n Settings) error {
	if n.Device == t.settings.Device {
		t.settings = n
		return nil
	}
	wasOpen := t.open
	if err := t.Disconnect(); err != nil {
		return err
	}
	t.settings = n
	if wasOpen {
		return t.Connect()
	}
	return nil
}

func (t *file) Write(p []byte) (int, error) {
	if !t.open {
		return 0, notConnected(t)
	}
	if t.f == nil {
		n, err := Stdout.Write(p)
		return n, transportErr("write", err)
	}
	n, err := t.f.Write(p)
	return n, transportErr("write", err)
}

func (t *file) String() string {
	if t.stdout() {
		return "file " + StdoutName
	}
	return fmt.Sprintf("file %s", t.settings.Device)
}
