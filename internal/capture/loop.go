// Package capture runs the background loop that waits on every active,
// descriptor-backed interface and records what arrives.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"

	"firestige.xyz/ifcli/internal/api"
	"firestige.xyz/ifcli/internal/iface"
	"firestige.xyz/ifcli/internal/log"
	"firestige.xyz/ifcli/internal/rxlog"
	"firestige.xyz/ifcli/internal/table"
	"firestige.xyz/ifcli/internal/transport"
)

const (
	DefaultPollTimeout = 50 * time.Millisecond
	DefaultJoinTimeout = 2 * time.Second
)

// ErrJoinTimeout is returned by Stop when the loop did not exit in time.
var ErrJoinTimeout = errors.New("capture loop did not stop in time")

// Host is the session side of the loop. Lock guards the table; Ingest is
// called with the lock held for every frame read, and frame is only valid
// for the duration of the call.
type Host interface {
	sync.Locker
	Table() *table.Table
	Ingest(ifc *iface.Interface, frame []byte)
}

// Options tune the loop.
type Options struct {
	PollTimeout time.Duration
	JoinTimeout time.Duration
}

// Loop is the capture goroutine.
type Loop struct {
	host Host
	opts Options
	log  log.Logger

	exiting atomic.Bool
	running atomic.Bool
	frames  atomic.Uint64
	wg      conc.WaitGroup
	buf     []byte
}

type source struct {
	handle table.Handle
	conn   syscall.RawConn
}

func New(host Host, opts Options) *Loop {
	if opts.PollTimeout <= 0 || opts.PollTimeout > transport.MaxPollTimeout {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	return &Loop{
		host: host,
		opts: opts,
		log:  log.GetLogger().WithField("component", "capture"),
		buf:  make([]byte, rxlog.MaxFrame),
	}
}

// Start launches the loop goroutine. It is a no-op if already running.
func (l *Loop) Start() {
	if !l.running.CAS(false, true) {
		return
	}
	l.exiting.Store(false)
	l.wg.Go(l.run)
}

// Stop asks the loop to exit and waits for it up to the join timeout. A
// panic inside the loop is returned as an error.
func (l *Loop) Stop() error {
	if !l.running.Load() {
		return nil
	}
	l.exiting.Store(true)

	done := make(chan *panics.Recovered, 1)
	go func() { done <- l.wg.WaitAndRecover() }()

	select {
	case r := <-done:
		l.running.Store(false)
		if r != nil {
			return fmt.Errorf("capture loop panicked: %w", r.AsError())
		}
		return nil
	case <-time.After(l.opts.JoinTimeout):
		return ErrJoinTimeout
	}
}

// Frames returns the number of frames recorded since the loop started.
func (l *Loop) Frames() uint64 { return l.frames.Load() }

func (l *Loop) run() {
	l.log.Debug("capture loop started")
	for !l.exiting.Load() {
		l.iterate()
	}
	l.log.Debug("capture loop stopped")
}

func (l *Loop) iterate() {
	sources := l.collect()

	conns := make([]syscall.RawConn, len(sources))
	for i, s := range sources {
		conns[i] = s.conn
	}
	ready, err := transport.Poll(conns, l.opts.PollTimeout)
	if err != nil {
		l.log.WithError(err).Warn("poll failed")
		time.Sleep(l.opts.PollTimeout)
		return
	}

	for i, s := range sources {
		if !ready[i] || l.exiting.Load() {
			continue
		}
		l.service(s)
	}
}

// collect snapshots the pollable interfaces under the lock.
func (l *Loop) collect() []source {
	l.host.Lock()
	defer l.host.Unlock()

	tbl := l.host.Table()
	var out []source
	for _, ifc := range tbl.Interfaces() {
		p, ok := ifc.Pollable()
		if !ok {
			continue
		}
		rc, err := p.SyscallConn()
		if err != nil {
			continue
		}
		h, err := tbl.Handle(ifc.Slot())
		if err != nil {
			continue
		}
		out = append(out, source{handle: h, conn: rc})
	}
	return out
}

// service reads one frame from a ready source. The interface is looked up
// again under the lock; if it was freed, replaced or closed since the
// snapshot, the wake-up is dropped.
func (l *Loop) service(s source) {
	l.host.Lock()
	defer l.host.Unlock()

	ifc, ok := l.host.Table().Resolve(s.handle)
	if !ok {
		return
	}
	p, ok := ifc.Pollable()
	if !ok {
		return
	}
	rc, err := p.SyscallConn()
	if err != nil {
		return
	}

	n, err := transport.ReadFrame(rc, l.buf[:ifc.ReadSize()])
	switch {
	case err != nil && transport.Spurious(err):
		return
	case err != nil || n <= 0:
		if err == nil {
			err = errors.New("end of stream")
		}
		l.log.WithFields(map[string]interface{}{
			"slot":   ifc.Slot(),
			"target": ifc.Target(),
		}).WithError(api.TransportError("read", err)).Warn("interface deactivated")
		if cerr := ifc.Deactivate(); cerr != nil {
			l.log.WithError(cerr).Debug("close after read failure")
		}
		return
	}

	l.frames.Inc()
	l.host.Ingest(ifc, l.buf[:n])
}
