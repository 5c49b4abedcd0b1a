package capture

import (
	"bytes"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"firestige.xyz/ifcli/internal/iface"
	"firestige.xyz/ifcli/internal/table"
)

type fakeHost struct {
	sync.Mutex
	tbl    *table.Table
	frames map[int][][]byte
}

func newHost() *fakeHost {
	return &fakeHost{tbl: table.New(), frames: make(map[int][][]byte)}
}

func (h *fakeHost) Table() *table.Table { return h.tbl }

func (h *fakeHost) Ingest(ifc *iface.Interface, frame []byte) {
	if _, err := ifc.Record(frame); err != nil {
		panic(err)
	}
	h.frames[ifc.Slot()] = append(h.frames[ifc.Slot()], bytes.Clone(frame))
}

func (h *fakeHost) received(slot int) []byte {
	h.Lock()
	defer h.Unlock()
	return bytes.Join(h.frames[slot], nil)
}

func (h *fakeHost) active(t *testing.T, slot int) bool {
	h.Lock()
	defer h.Unlock()
	ifc, err := h.tbl.Interface(slot)
	require.NoError(t, err)
	return ifc.Active()
}

// dial adds a tcp interface connected to a fresh local listener and returns
// the server side of the connection.
func dial(t *testing.T, h *fakeHost, dir string) (int, net.Conn) {
	t.Helper()
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	addr := ln.Addr().(*net.TCPAddr)

	h.Lock()
	slot, err := h.tbl.Add(func(slot int) (*iface.Interface, error) { return iface.New(dir, slot) })
	require.NoError(t, err)
	ifc, _ := h.tbl.Interface(slot)
	require.NoError(t, ifc.Configure("type", "tcp"))
	require.NoError(t, ifc.Configure("ipaddr", addr.IP.String()))
	require.NoError(t, ifc.Configure("ipport", strconv.Itoa(addr.Port)))
	require.NoError(t, ifc.Connect())
	h.Unlock()
	t.Cleanup(func() { ifc.Close() })

	peer, err := ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })
	return slot, peer
}

func TestLoopRecordsFrames(t *testing.T) {
	h := newHost()
	dir := t.TempDir()
	a, peerA := dial(t, h, dir)
	b, peerB := dial(t, h, dir)

	loop := New(h, Options{PollTimeout: 10 * time.Millisecond})
	loop.Start()
	defer loop.Stop()

	_, err := peerA.Write([]byte("from a"))
	require.NoError(t, err)
	_, err = peerB.Write([]byte("from b"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return string(h.received(a)) == "from a" && string(h.received(b)) == "from b"
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, loop.Frames(), uint64(2))
}

func TestLoopIsolatesFailures(t *testing.T) {
	h := newHost()
	dir := t.TempDir()
	a, peerA := dial(t, h, dir)
	b, peerB := dial(t, h, dir)

	loop := New(h, Options{PollTimeout: 10 * time.Millisecond})
	loop.Start()
	defer loop.Stop()

	require.NoError(t, peerA.Close())
	assert.Eventually(t, func() bool { return !h.active(t, a) }, 2*time.Second, 10*time.Millisecond)

	_, err := peerB.Write([]byte("still here"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return string(h.received(b)) == "still here" }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, h.active(t, b))
}

func TestLoopStopsPromptly(t *testing.T) {
	h := newHost()
	loop := New(h, Options{PollTimeout: 20 * time.Millisecond, JoinTimeout: time.Second})
	loop.Start()
	loop.Start()

	start := time.Now()
	require.NoError(t, loop.Stop())
	assert.Less(t, time.Since(start), time.Second)
	require.NoError(t, loop.Stop(), "stopping twice is harmless")
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	n.Bump()
	n.Bump()

	select {
	case <-n.C():
	default:
		t.Fatal("expected a wake-up")
	}
	assert.Equal(t, 2, n.Drain())
	assert.Equal(t, 0, n.Drain())
}
