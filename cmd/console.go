package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"firestige.xyz/ifcli/internal/console"
	"firestige.xyz/ifcli/internal/log"
	"firestige.xyz/ifcli/internal/session"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start an interactive session (default)",
	Long: `Start an interactive session in a new run directory under the session
root, or resume an existing run with --reload.

The console reads commands from the terminal with line editing. When stdin is
not a terminal, commands are read one per line, which allows scripting:

  printf 'if set type tcp\nif set ipport 7\nconnect\ntx hello\n' | ifcli`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole(cmd.Context(), reloadDir)
	},
}

var reloadDir string

func init() {
	consoleCmd.Flags().StringVarP(&reloadDir, "reload", "r", "",
		"resume the run in this directory (or a run id / latest under the root)")
}

func runConsole(ctx context.Context, reload string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	opts := session.OptionsFrom(cfg)
	sess, err := openSession(opts, reload)
	if err != nil {
		exitWithError("cannot start session", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.GetLogger().WithError(err).Error("session close")
		}
	}()

	hist, err := console.OpenHistory(filepath.Join(opts.Root, console.HistoryFile))
	if err != nil {
		log.GetLogger().WithError(err).Warn("history disabled")
		hist = nil
	}
	c := console.New(sess, console.Options{
		Prompt:  cfg.Console.Prompt,
		Color:   cfg.Console.Color,
		History: hist,
	})

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return c.RunScript(ctx, os.Stdin, os.Stdout)
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw terminal: %w", err)
	}
	defer term.Restore(fd, state)

	fmt.Printf("ifcli session %s\r\n", session.RunName(sess.RunID()))
	return c.Run(ctx, struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout})
}

func openSession(opts session.Options, reload string) (*session.Session, error) {
	if reload == "" {
		return session.New(opts)
	}
	dir, err := session.ResolveRun(opts.Root, reload)
	if err != nil {
		return nil, err
	}
	sess, err := session.Open(opts, dir)
	if sess == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return sess, nil
}
