package iface

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ifcli/internal/api"
	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/transport"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	saved := transport.Stdout
	transport.Stdout = &out
	t.Cleanup(func() { transport.Stdout = saved })
	return &out
}

func newInterface(t *testing.T) (*Interface, string) {
	t.Helper()
	captureStdout(t)
	dir := t.TempDir()
	i, err := New(dir, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = i.Close() })
	return i, dir
}

func TestNewDefaults(t *testing.T) {
	i, _ := newInterface(t)

	assert.Equal(t, 1, i.Slot())
	assert.Equal(t, transport.KindFile, i.Kind())
	assert.Equal(t, "stdout", i.Settings().Device)
	assert.Equal(t, DefaultBuffer, i.Buffer())
	assert.Equal(t, codec.ModePlaintext, i.RxMode())
	assert.True(t, i.Active())
	assert.Equal(t, Cursor{}, i.Cursor())
}

func TestCursorClamping(t *testing.T) {
	i, _ := newInterface(t)
	const n = 4
	for k := 0; k < n; k++ {
		_, err := i.Record([]byte{byte(k)})
		require.NoError(t, err)
	}

	for k := 0; k < n; k++ {
		i.Move(1)
	}
	assert.Equal(t, n, i.Cursor().Rx)
	assert.Equal(t, n, i.Move(1), "moving past the tail stays at the tail")

	i.Head()
	assert.Equal(t, 0, i.Move(-1), "moving before the head stays at the head")

	i.Seek(2)
	i.Tail()
	assert.Equal(t, n, i.Cursor().Rx)
	assert.Equal(t, 2, i.Back())
	assert.Equal(t, n, i.Cursor().Last)

	i.Seek(1)
	frame, err := i.Peek()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, frame)

	i.Tail()
	_, err = i.Peek()
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

func TestConfigureKeysPerType(t *testing.T) {
	i, _ := newInterface(t)

	err := i.Configure("ipaddr", "10.0.0.1")
	assert.True(t, errors.Is(err, api.ErrParse), "file interfaces have no address")
	err = i.Configure("baud", "115200")
	assert.True(t, errors.Is(err, api.ErrParse))
	err = i.Configure("colour", "blue")
	assert.True(t, errors.Is(err, api.ErrParse))

	require.NoError(t, i.Configure("type", "tcp"))
	assert.Equal(t, transport.KindTCP, i.Kind())
	assert.False(t, i.Active(), "sockets start unconnected")
	assert.Equal(t, transport.Settings{Addr: "127.0.0.1", Port: 80}, i.Settings())

	require.NoError(t, i.Configure("ipaddr", "192.168.1.20"))
	require.NoError(t, i.Configure("ipport", "5020"))
	assert.Equal(t, transport.Settings{Addr: "192.168.1.20", Port: 5020}, i.Settings())

	assert.True(t, errors.Is(i.Configure("ipport", "70000"), api.ErrParse))
	assert.True(t, errors.Is(i.Configure("devname", "/dev/null"), api.ErrParse))
	assert.Equal(t, 5020, i.Settings().Port, "rejected values leave the interface unchanged")

	require.NoError(t, i.Configure("type", "serial"))
	require.NoError(t, i.Configure("baud", "115200"))
	assert.True(t, errors.Is(i.Configure("baud", "12345"), api.ErrParse))
	assert.Equal(t, 115200, i.Settings().Baud)
}

func TestConfigureBufferAndModes(t *testing.T) {
	i, _ := newInterface(t)

	require.NoError(t, i.Configure("buffer", "4"))
	assert.Equal(t, DefaultBuffer, i.Buffer(), "values below the minimum reset to the default")
	require.NoError(t, i.Configure("buffer", "64"))
	assert.Equal(t, 64, i.Buffer())
	require.NoError(t, i.Configure("buffer", "99999"))
	assert.Equal(t, MaxBuffer, i.Buffer())
	assert.True(t, errors.Is(i.Configure("buffer", "lots"), api.ErrParse))

	require.NoError(t, i.Configure("rxmode", "hex"))
	require.NoError(t, i.Configure("txmode", "b"))
	assert.Equal(t, codec.ModeHex, i.RxMode())
	assert.Equal(t, codec.ModeBinary, i.TxMode())

	require.NoError(t, i.Configure("alf", "on"))
	require.NoError(t, i.Configure("async", "1"))
	assert.True(t, i.Flags().Has(FlagALF|FlagAsync))
	require.NoError(t, i.Configure("alf", "off"))
	assert.False(t, i.Flags().Has(FlagALF))
	assert.True(t, errors.Is(i.Configure("acr", "maybe"), api.ErrParse))
}

func TestConfigureFileDevice(t *testing.T) {
	i, dir := newInterface(t)
	target := filepath.Join(dir, "out.txt")

	require.NoError(t, i.Configure("devname", target))
	assert.True(t, i.Active())
	_, err := i.Transmit([]byte("abc"), DefaultLineEnding)
	require.NoError(t, err)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Len(t, got, DefaultBuffer, "without as the whole buffer is sent")
}

func TestPrepare(t *testing.T) {
	i, _ := newInterface(t)
	require.NoError(t, i.Configure("buffer", "8"))

	assert.Equal(t, []byte{'h', 'i', 0, 0, 0, 0, 0, 0}, i.Prepare([]byte("hi"), DefaultLineEnding))

	require.NoError(t, i.SetFlag(FlagAS, true))
	assert.Equal(t, []byte("hi"), i.Prepare([]byte("hi"), DefaultLineEnding))

	require.NoError(t, i.SetFlag(FlagACR, true))
	require.NoError(t, i.SetFlag(FlagALF, true))
	assert.Equal(t, []byte("hi\r\n"), i.Prepare([]byte("hi"), DefaultLineEnding))
	assert.Equal(t, []byte("hi;!"), i.Prepare([]byte("hi"), LineEnding{CR: ';', LF: '!'}))

	assert.Equal(t, []byte("abcdefgh\r\n"), i.Prepare([]byte("abcdefghijk"), DefaultLineEnding), "input is cut at the buffer size")

	require.NoError(t, i.Configure("txmode", "hex"))
	assert.Len(t, i.Prepare([]byte("hi"), DefaultLineEnding), 10, "as only applies to plaintext")
}

func TestTransmitEncodesAndRecords(t *testing.T) {
	i, _ := newInterface(t)
	require.NoError(t, i.Configure("type", "memory"))
	require.NoError(t, i.Configure("txmode", "hex"))
	require.NoError(t, i.Configure("buffer", "8"))
	i.Connect()

	idx, err := i.Transmit([]byte{0x0a, 0xff}, DefaultLineEnding)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	mem := i.Transport().(*transport.Memory)
	assert.Equal(t, "0aff000000000000", string(mem.Bytes()))

	frame, err := i.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xff, 0, 0, 0, 0, 0, 0}, frame)
	assert.Equal(t, 1, i.Cursor().Count)
	assert.Equal(t, uint32(8), i.Cursor().Size)
}

func TestTransmitUnconnected(t *testing.T) {
	i, _ := newInterface(t)
	require.NoError(t, i.Configure("type", "udp"))

	_, err := i.Transmit([]byte("x"), DefaultLineEnding)
	assert.True(t, errors.Is(err, api.ErrTransport))
	assert.Equal(t, 0, i.Cursor().Count, "failed writes are not recorded")
}

func TestRestore(t *testing.T) {
	captureStdout(t)
	dir := t.TempDir()
	i, err := New(dir, 7)
	require.NoError(t, err)
	require.NoError(t, i.Configure("rxmode", "octal"))
	require.NoError(t, i.Configure("alf", "on"))
	for _, s := range []string{"a", "bb", "ccc"} {
		_, err := i.Transmit([]byte(s), DefaultLineEnding)
		require.NoError(t, err)
	}
	i.Seek(2)
	require.NoError(t, i.Close())

	r, err := Restore(dir, 7)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 7, r.Slot())
	assert.Equal(t, transport.KindFile, r.Kind())
	assert.Equal(t, codec.ModeOctal, r.RxMode())
	assert.True(t, r.Flags().Has(FlagALF))
	assert.False(t, r.Active())
	assert.False(t, r.Transport().Connected(), "files wait for an explicit connect")
	assert.Equal(t, 3, r.Cursor().Count)
	assert.Equal(t, 0, r.Cursor().Rx)
}

func TestRestoreSocketAndMemory(t *testing.T) {
	captureStdout(t)
	dir := t.TempDir()

	sock, err := New(dir, 0)
	require.NoError(t, err)
	require.NoError(t, sock.Configure("type", "tcp"))
	require.NoError(t, sock.Configure("ipport", "8080"))
	require.NoError(t, sock.Close())

	mem, err := New(dir, 1)
	require.NoError(t, err)
	require.NoError(t, mem.Configure("type", "mem"))
	require.NoError(t, mem.Close())

	rs, err := Restore(dir, 0)
	require.NoError(t, err)
	defer rs.Close()
	assert.Equal(t, transport.KindTCP, rs.Kind())
	assert.Equal(t, 8080, rs.Settings().Port)
	assert.False(t, rs.Transport().Connected())

	rm, err := Restore(dir, 1)
	require.NoError(t, err)
	defer rm.Close()
	assert.True(t, rm.Transport().Connected(), "memory comes back with a fresh buffer")
	assert.False(t, rm.Active())
}

func TestFlags(t *testing.T) {
	f, err := ParseFlag("ACR")
	require.NoError(t, err)
	assert.Equal(t, FlagACR, f)
	_, err = ParseFlag("turbo")
	assert.True(t, errors.Is(err, api.ErrParse))

	assert.Equal(t, "-", Flags(0).String())
	assert.Equal(t, "async,as", (FlagAsync | FlagAS).String())
}
