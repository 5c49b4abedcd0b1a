package capture

import "sync"

// Notifier counts frames waiting to be shown by the console. It has its own
// lock, independent of the session lock, and a one-slot channel that wakes
// the console's input loop.
type Notifier struct {
	mu      sync.Mutex
	pending int
	wake    chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{wake: make(chan struct{}, 1)}
}

// Bump records one more pending redraw.
func (n *Notifier) Bump() {
	n.mu.Lock()
	n.pending++
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// C is signalled after Bump.
func (n *Notifier) C() <-chan struct{} { return n.wake }

// Drain returns the pending count and resets it.
func (n *Notifier) Drain() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := n.pending
	n.pending = 0
	return p
}
