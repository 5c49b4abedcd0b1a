package transport

import "bytes"

// Memory is an in-process sink. Everything written to it is kept until the
// transport is disconnected.
type Memory struct {
	buf  bytes.Buffer
	open bool
}

func (m *Memory) Kind() Kind { return KindMemory }
func (m *Memory) Settings() Settings { return Settings{} }
func (m *Memory) Update(Settings) error { return nil }
func (m *Memory) Connected() bool { return m.open }
func (m *Memory) String() string { return "memory" }

func (m *Memory) Connect() error {
	m.open = true
	return nil
}

func (m *Memory) Disconnect() error {
	m.open = false
	m.buf.Reset()
	return nil
}

func (m *Memory) Write(p []byte) (int, error) {
	if !m.open {
		return 0, notConnected(m)
	}
	return m.buf.Write(p)
}

// Bytes returns the bytes written since the last connect.
func (m *Memory) Bytes() []byte { return m.buf.Bytes() }
