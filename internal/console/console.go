// Package console is the interactive front end: a line editor on the
// terminal, the command dispatcher, and the printer for frames arriving on
// async interfaces.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"
	"golang.org/x/term"

	"firestige.xyz/ifcli/internal/log"
	"firestige.xyz/ifcli/internal/session"
)

// Options configure a console.
type Options struct {
	// Prompt may hold one integer verb, filled with the selected slot.
	Prompt  string
	Color   bool
	History *History
}

// Console drives one session from a terminal or a script.
type Console struct {
	sess *session.Session
	opts Options
	st   styles
	hist *History
	echo bool
	out  io.Writer
	log  log.Logger
}

// New builds a console for sess writing to stdout.
func New(sess *session.Session, opts Options) *Console {
	return &Console{
		sess: sess,
		opts: opts,
		st:   newStyles(opts.Color),
		hist: opts.History,
		out:  &lockedWriter{w: os.Stdout},
		log:  log.GetLogger().WithField("component", "console"),
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) prompt() string {
	if !strings.Contains(c.opts.Prompt, "%") {
		return c.opts.Prompt
	}
	slot, ok := c.sess.Selected()
	if !ok {
		return strings.SplitN(c.opts.Prompt, "%", 2)[0] + "--> "
	}
	return fmt.Sprintf(c.opts.Prompt, slot)
}

// Run edits lines on a terminal in raw mode until quit, end of input or
// ctx is done.
func (c *Console) Run(ctx context.Context, rw io.ReadWriter) error {
	t := term.NewTerminal(rw, c.prompt())
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		_ = t.SetSize(w, h)
	}
	c.out = t
	return c.loop(ctx, t.ReadLine, func() { t.SetPrompt(c.prompt()) })
}

// RunScript reads one command per line from r, for piped input.
func (c *Console) RunScript(ctx context.Context, r io.Reader, w io.Writer) error {
	c.out = &lockedWriter{w: w}
	sc := bufio.NewScanner(r)
	read := func() (string, error) {
		if sc.Scan() {
			return sc.Text(), nil
		}
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.loop(ctx, read, func() {})
}

func (c *Console) loop(ctx context.Context, read func() (string, error), redraw func()) error {
	var wg conc.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wg.Go(func() { c.pump(ctx) })

	for ctx.Err() == nil {
		line, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if c.hist != nil {
			if herr := c.hist.Add(line); herr != nil {
				c.log.WithError(herr).Warn("history not saved")
			}
		}
		if err := c.Dispatch(line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			c.printf("%s\n", c.st.err.Render("Error: "+err.Error()))
		}
		redraw()
	}
	return nil
}

// pump prints frames from async interfaces as the notifier signals them.
func (c *Console) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.sess.Notifier().C():
			c.printAsync()
		}
	}
}

func (c *Console) printAsync() {
	for _, f := range c.sess.PendingAsync() {
		c.printf("%s%s", c.st.async.Render(fmt.Sprintf("[%02x] ", f.Slot)), formatFrame(f.Mode, f.Data))
	}
}
