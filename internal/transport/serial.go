package transport

import (
	"fmt"
	"os"
	"syscall"
)

type serial struct {
	settings Settings
	f        *os.File
}

func (s *serial) Kind() Kind { return KindSerial }
func (s *serial) Settings() Settings { return s.settings }
func (s *serial) Connected() bool { return s.f != nil }
func (s *serial) Update(n Settings) error {
	s.settings = n
	return nil
}

func (s *serial) Connect() error {
	if s.f != nil {
		return nil
	}
	f, err := openSerial(s.settings.Device, s.baud())
	if err != nil {
		return transportErr("open "+s.settings.Device, err)
	}
	s.f = f
	return nil
}

func (s *serial) baud() int {
	if s.settings.Baud <= 0 {
		return DefaultBaud
	}
	return s.settings.Baud
}

func (s *serial) Disconnect() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return transportErr("close", err)
}

func (s *serial) Write(p []byte) (int, error) {
	if s.f == nil {
		return 0, notConnected(s)
	}
	n, err := s.f.Write(p)
	return n, transportErr("write", err)
}

func (s *serial) SyscallConn() (syscall.RawConn, error) {
	if s.f == nil {
		return nil, notConnected(s)
	}
	return s.f.SyscallConn()
}

func (s *serial) String() string {
	return fmt.Sprintf("serial %s %d", s.settings.Device, s.baud())
}
