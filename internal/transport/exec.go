package transport

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"firestige.xyz/ifcli/internal/api"
)

// process runs a command line on a pseudo terminal; bytes written go to the
// process's stdin and its output is captured.
type process struct {
	settings Settings
	cmd      *exec.Cmd
	ptmx     *os.File
}

func (p *process) Kind() Kind { return KindExec }
func (p *process) Settings() Settings { return p.settings }
func (p *process) Connected() bool { return p.ptmx != nil }
func (p *process) Update(n Settings) error {
	p.settings = n
	return nil
}

func (p *process) Connect() error {
	if p.ptmx != nil {
		return nil
	}
	argv := strings.Fields(p.settings.Device)
	if len(argv) == 0 {
		return api.ParseError("exec interface has no command")
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return transportErr("open pty", err)
	}
	defer tty.Close()

	// No echo or line discipline: the process sees exactly what is sent.
	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		_ = ptmx.Close()
		return transportErr("raw pty", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}
	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		return transportErr("start "+argv[0], err)
	}
	// Reads happen under the session lock and must never wait.
	if rc, err := ptmx.SyscallConn(); err == nil {
		_ = rc.Control(func(fd uintptr) { _ = unix.SetNonblock(int(fd), true) })
	}
	p.cmd, p.ptmx = cmd, ptmx
	return nil
}

func (p *process) Disconnect() error {
	if p.ptmx == nil {
		return nil
	}
	err := p.ptmx.Close()
	if p.cmd.ProcessState == nil {
		_ = p.cmd.Process.Kill()
		var exitErr *exec.ExitError
		if werr := p.cmd.Wait(); werr != nil && !errors.As(werr, &exitErr) && err == nil {
			err = werr
		}
	}
	p.cmd, p.ptmx = nil, nil
	return transportErr("stop", err)
}

func (p *process) Write(b []byte) (int, error) {
	if p.ptmx == nil {
		return 0, notConnected(p)
	}
	n, err := p.ptmx.Write(b)
	return n, transportErr("write", err)
}

func (p *process) SyscallConn() (syscall.RawConn, error) {
	if p.ptmx == nil {
		return nil, notConnected(p)
	}
	return p.ptmx.SyscallConn()
}

func (p *process) String() string {
	return fmt.Sprintf("exec %s", p.settings.Device)
}
