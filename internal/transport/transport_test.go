package transport

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"firestige.xyz/ifcli/internal/api"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"tcp":    KindTCP,
		"UDP":    KindUDP,
		"ser":    KindSerial,
		"serial": KindSerial,
		"fp":     KindFile,
		"file":   KindFile,
		"bin":    KindExec,
		"exec":   KindExec,
		"mem":    KindMemory,
		"memory": KindMemory,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("carrier-pigeon")
	assert.True(t, errors.Is(err, api.ErrParse))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, KindTCP.Pollable())
	assert.True(t, KindExec.Pollable())
	assert.False(t, KindFile.Pollable())
	assert.False(t, KindMemory.Pollable())

	assert.True(t, KindUDP.IP())
	assert.False(t, KindSerial.IP())
	assert.True(t, KindSerial.Device())
	assert.False(t, KindTCP.Device())
}

func TestDefaultSettings(t *testing.T) {
	assert.Equal(t, Settings{Addr: "127.0.0.1", Port: 80}, DefaultSettings(KindTCP))
	assert.Equal(t, Settings{Device: "/dev/ttyS0", Baud: 9600}, DefaultSettings(KindSerial))
	assert.Equal(t, Settings{Device: "stdout"}, DefaultSettings(KindFile))
	assert.Equal(t, Settings{Device: "cat"}, DefaultSettings(KindExec))
}

func settingsFor(addr net.Addr) Settings {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return Settings{Addr: a.IP.String(), Port: a.Port}
	case *net.UDPAddr:
		return Settings{Addr: a.IP.String(), Port: a.Port}
	}
	return Settings{}
}

func waitReadable(t *testing.T, rc syscall.RawConn) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ready, err := Poll([]syscall.RawConn{rc}, 20*time.Millisecond)
		require.NoError(t, err)
		if ready[0] {
			return
		}
	}
	t.Fatal("descriptor never became readable")
}

func TestTCPRoundTrip(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	tr, err := New(KindTCP, settingsFor(ln.Addr()))
	require.NoError(t, err)
	assert.False(t, tr.Connected())

	_, err = tr.Write([]byte("early"))
	assert.True(t, errors.Is(err, api.ErrTransport))

	require.NoError(t, tr.Connect())
	defer tr.Disconnect()

	var peer net.Conn
	select {
	case peer = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
	}
	defer peer.Close()

	n, err := tr.Write([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 16)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err = peer.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	rc, err := tr.(Pollable).SyscallConn()
	require.NoError(t, err)

	_, err = ReadFrame(rc, buf)
	assert.True(t, Spurious(err), "read with nothing pending should be spurious, got %v", err)

	_, err = peer.Write([]byte("pong"))
	require.NoError(t, err)
	waitReadable(t, rc)
	n, err = ReadFrame(rc, buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf[:n]))

	require.NoError(t, peer.Close())
	waitReadable(t, rc)
	n, err = ReadFrame(rc, buf)
	assert.NoError(t, err)
	assert.Equal(t, 0, n, "peer close reads as zero bytes")
}

func TestUDPRoundTrip(t *testing.T) {
	pc, err := nettest.NewLocalPacketListener("udp")
	require.NoError(t, err)
	defer pc.Close()

	tr, err := New(KindUDP, settingsFor(pc.LocalAddr()))
	require.NoError(t, err)
	require.NoError(t, tr.Connect())
	defer tr.Disconnect()

	_, err = tr.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, from, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	_, err = pc.WriteTo([]byte("back"), from)
	require.NoError(t, err)

	rc, err := tr.(Pollable).SyscallConn()
	require.NoError(t, err)
	waitReadable(t, rc)
	n, err = ReadFrame(rc, buf)
	require.NoError(t, err)
	assert.Equal(t, "back", string(buf[:n]))
}

func TestConnectRefused(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	s := settingsFor(ln.Addr())
	require.NoError(t, ln.Close())

	tr, err := New(KindTCP, s)
	require.NoError(t, err)
	err = tr.Connect()
	assert.True(t, errors.Is(err, api.ErrTransport))
	assert.False(t, tr.Connected())
}

func TestFileTransport(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	tr, err := New(KindFile, Settings{Device: first})
	require.NoError(t, err)
	require.NoError(t, tr.Connect())

	_, err = tr.Write([]byte("one "))
	require.NoError(t, err)
	_, err = tr.Write([]byte("two"))
	require.NoError(t, err)

	require.NoError(t, tr.Update(Settings{Device: second}))
	assert.True(t, tr.Connected())
	_, err = tr.Write([]byte("three"))
	require.NoError(t, err)
	require.NoError(t, tr.Disconnect())

	got, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one two", string(got))
	got, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "three", string(got))
}

func TestFileTransportStdout(t *testing.T) {
	var out bytes.Buffer
	saved := Stdout
	Stdout = &out
	defer func() { Stdout = saved }()

	tr, err := New(KindFile, DefaultSettings(KindFile))
	require.NoError(t, err)
	require.NoError(t, tr.Connect())
	_, err = tr.Write([]byte("to the screen"))
	require.NoError(t, err)
	require.NoError(t, tr.Disconnect())

	assert.Equal(t, "to the screen", out.String())
	assert.Equal(t, "file stdout", tr.String())
}

func TestMemoryTransport(t *testing.T) {
	tr, err := New(KindMemory, Settings{})
	require.NoError(t, err)

	_, err = tr.Write([]byte("x"))
	assert.True(t, errors.Is(err, api.ErrTransport))

	require.NoError(t, tr.Connect())
	_, err = tr.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(tr.(*Memory).Bytes()))
	_, isPollable := tr.(Pollable)
	assert.False(t, isPollable)
}

func TestExecTransport(t *testing.T) {
	tr, err := New(KindExec, DefaultSettings(KindExec))
	require.NoError(t, err)
	if err := tr.Connect(); err != nil {
		t.Skipf("cannot run cat on a pty here: %v", err)
	}
	defer tr.Disconnect()

	_, err = tr.Write([]byte("echo me\n"))
	require.NoError(t, err)

	rc, err := tr.(Pollable).SyscallConn()
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 256)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < len("echo me\n") && time.Now().Before(deadline) {
		waitReadable(t, rc)
		n, err := ReadFrame(rc, buf)
		if Spurious(err) {
			continue
		}
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, "echo me\n", string(got))
}

func TestPollWithoutSources(t *testing.T) {
	start := time.Now()
	ready, err := Poll(nil, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ready)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
