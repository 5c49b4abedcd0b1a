package transport

import (
	"fmt"
	"net"
	"strconv"
	"syscall"
)

type socket struct {
	kind     Kind
	settings Settings
	conn     net.Conn
}

func (s *socket) Kind() Kind { return s.kind }
func (s *socket) Settings() Settings { return s.settings }
func (s *socket) Connected() bool { return s.conn != nil }
func (s *socket) Update(n Settings) error {
	s.settings = n
	return nil
}

func (s *socket) address() string {
	return net.JoinHostPort(s.settings.Addr, strconv.Itoa(s.settings.Port))
}

func (s *socket) Connect() error {
	if s.conn != nil {
		return nil
	}
	network := "tcp"
	if s.kind == KindUDP {
		network = "udp"
	}
	conn, err := net.DialTimeout(network, s.address(), DialTimeout)
	if err != nil {
		return transportErr("connect", err)
	}
	s.conn = conn
	return nil
}

func (s *socket) Disconnect() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return transportErr("close", err)
}

func (s *socket) Write(p []byte) (int, error) {
	if s.conn == nil {
		return 0, notConnected(s)
	}
	n, err := s.conn.Write(p)
	return n, transportErr("write", err)
}

func (s *socket) SyscallConn() (syscall.RawConn, error) {
	if s.conn == nil {
		return nil, notConnected(s)
	}
	sc, ok := s.conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("%s: connection has no descriptor", s)
	}
	return sc.SyscallConn()
}

func (s *socket) String() string {
	return fmt.Sprintf("%s %s", s.kind, s.address())
}
