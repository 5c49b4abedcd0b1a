package console

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"firestige.xyz/ifcli/internal/api"
	"firestige.xyz/ifcli/internal/iface"
	"firestige.xyz/ifcli/internal/session"
	"firestige.xyz/ifcli/internal/table"
)

// ErrQuit is returned by Dispatch for quit, exit and q.
var ErrQuit = errors.New("quit")

type handler func(c *Console, arg string) error

type command struct {
	fn   handler
	help string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"ls":       {(*Console).cmdList, "list interfaces and links"},
		"cd":       {(*Console).cmdSelect, "cd <slot>: select an interface or link"},
		"if":       {(*Console).cmdIf, "if [set <key>=<value>]: show or configure the selection"},
		"add":      {(*Console).cmdAdd, "add a file interface on stdout"},
		"tie":      {(*Console).cmdTie, "tie <tx> <rx>: always forward rx frames out of tx"},
		"ex":       {(*Console).cmdExchange, "ex <tx> <rx>: forward while the link is selected"},
		"rx":       {(*Console).cmdRx, "rx [?|>][+n|-n|.|$|^]: replay received frames"},
		"tx":       {(*Console).cmdTx, "tx <text> | tx:<raw>: transmit on the selection"},
		"flush":    {(*Console).cmdFlush, "send a bare line ending"},
		"connect":  {(*Console).cmdConnect, "open the selected interface"},
		"close":    {(*Console).cmdClose, "close the selected interface"},
		"async":    {flagCommand("async", "asynchronous rx"), "toggle printing frames as they arrive"},
		"as":       {flagCommand("as", "auto sizing of plaintext"), "toggle trimming of plaintext transmits"},
		"alf":      {flagCommand("alf", "auto line-feed"), "toggle appending LF"},
		"acr":      {flagCommand("acr", "auto carriage return"), "toggle appending CR"},
		"save":     {(*Console).cmdSave, "save [file]: archive the session"},
		"load":     {(*Console).cmdLoad, "load <archive|run>: import or reload a session"},
		"sess":     {(*Console).cmdSession, "show the session id"},
		"sessions": {(*Console).cmdSessions, "list runs under the session root"},
		"cwd":      {(*Console).cmdCwd, "print the working directory"},
		"history":  {(*Console).cmdHistory, "show recent commands"},
		"echo":     {(*Console).cmdEcho, "toggle command echo"},
		"clear":    {(*Console).cmdClear, "clear the screen"},
		"help":     {(*Console).cmdHelp, "this list"},
	}
}

// splitCommand cuts line into its leading command word and the rest, so
// that `tx:abc`, `rx?` and `async?` work without a space.
func splitCommand(line string) (string, string) {
	i := 0
	for i < len(line) && line[i] >= 'a' && line[i] <= 'z' {
		i++
	}
	return line[:i], line[i:]
}

// Dispatch runs one command line.
func (c *Console) Dispatch(line string) error {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	name, arg := splitCommand(trimmed)
	switch name {
	case "q", "quit", "exit":
		return ErrQuit
	}
	cmd, ok := commands[name]
	if !ok {
		return api.ParseError("unknown command %q", trimmed)
	}
	if name == "tx" {
		// tx: keeps its payload verbatim, including leading spaces.
		_, arg = splitCommand(strings.TrimLeft(line, " \t"))
	}
	err := cmd.fn(c, arg)
	if c.echo {
		c.printf("`%s'\n", trimmed)
	}
	return err
}

func (c *Console) selected() (int, error) {
	slot, ok := c.sess.Selected()
	if !ok {
		return 0, fmt.Errorf("%w: nothing selected", api.ErrInvalidSlot)
	}
	return slot, nil
}

func parseSlot(s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 0)
	if err != nil {
		return 0, api.ParseError("%q is not a slot", s)
	}
	return int(n), nil
}

func (c *Console) cmdList(string) error {
	for _, r := range c.sess.List() {
		c.printf("%s\n", c.renderRow(r))
	}
	c.printf("\n")
	return nil
}

func (c *Console) cmdSelect(arg string) error {
	slot, err := parseSlot(arg)
	if err != nil {
		return err
	}
	cur, _ := c.sess.Selected()
	if err := c.sess.Select(slot); err != nil {
		return err
	}
	if cur != slot {
		c.printf("Selecting interface %d.\n", slot)
	}
	return nil
}

func (c *Console) cmdIf(arg string) error {
	slot, err := c.selected()
	if err != nil {
		return err
	}
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		row, err := c.sess.Status(slot)
		if err != nil {
			return err
		}
		c.renderStatus(c.out, row)
		return nil
	}
	if fields[0] != "set" {
		return api.ParseError("unknown `if' command %q", fields[0])
	}
	key, value, err := parseAssignment(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(arg), "set")))
	if err != nil {
		return err
	}
	return c.sess.Configure(slot, key, value)
}

// parseAssignment accepts `key=value` and `key value`. The value is the rest
// of the line, so exec commands may contain spaces.
func parseAssignment(s string) (string, string, error) {
	var key, value string
	if i := strings.IndexByte(s, '='); i >= 0 {
		key, value = s[:i], s[i+1:]
	} else if i := strings.IndexAny(s, " \t"); i >= 0 {
		key, value = s[:i], s[i+1:]
	} else {
		key = s
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return "", "", api.ParseError("`if set' must specify variable name")
	}
	if value == "" {
		return "", "", api.ParseError("`if set' must specify value")
	}
	return key, value, nil
}

func (c *Console) cmdAdd(string) error {
	slot, err := c.sess.Add()
	if err != nil {
		return err
	}
	c.printf("Added interface %d.\n", slot)
	return nil
}

func (c *Console) link(kind table.LinkKind, arg string) error {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return api.ParseError("malformed `%s' command", strings.TrimSpace(linkName(kind)))
	}
	tx, err := parseSlot(fields[0])
	if err != nil {
		return err
	}
	rx, err := parseSlot(fields[1])
	if err != nil {
		return err
	}
	slot, err := c.sess.CreateLink(kind, tx, rx)
	if err != nil {
		return err
	}
	c.printf("Link %d: %d -> %d.\n", slot, tx, rx)
	return nil
}

func (c *Console) cmdTie(arg string) error      { return c.link(table.LinkTie, arg) }
func (c *Console) cmdExchange(arg string) error { return c.link(table.LinkExchange, arg) }

// cmdRx prints the frame under the cursor and moves on. `?` reports the
// cursor, a leading `>` moves without printing, then `+n`/`-n` step, `.`
// returns to the previous position, `$` and `^` jump to the end and start.
// Without a move argument the cursor advances by one.
func (c *Console) cmdRx(arg string) error {
	slot, err := c.selected()
	if err != nil {
		return err
	}
	arg = strings.TrimSpace(arg)
	cur, err := c.sess.Cursor(slot)
	if err != nil {
		return err
	}
	if strings.HasPrefix(arg, "?") {
		c.printf("  %d / %d  %d byte(s)\n", cur.Rx, cur.Count, cur.Size)
		return nil
	}
	if cur.Count == 0 {
		return fmt.Errorf("%w: nothing to read", api.ErrNotFound)
	}

	if strings.HasPrefix(arg, ">") {
		arg = strings.TrimSpace(arg[1:])
	} else if cur.Rx < cur.Count {
		f, err := c.sess.Peek(slot, false)
		if err != nil {
			return err
		}
		c.printf("%s", formatFrame(f.Mode, f.Data))
	}

	nav := session.Nav{Kind: session.NavRelative, Delta: 1}
	if arg != "" {
		switch arg[0] {
		case '-', '+':
			n, err := strconv.Atoi(strings.TrimSpace(arg[1:]))
			if err != nil {
				n = 1
			}
			if arg[0] == '-' {
				n = -n
			}
			nav.Delta = n
		case '.':
			nav = session.Nav{Kind: session.NavLast}
		case '$':
			nav = session.Nav{Kind: session.NavTail}
		case '^':
			nav = session.Nav{Kind: session.NavHead}
		}
	}
	_, err = c.sess.Navigate(slot, nav)
	return err
}

func (c *Console) cmdTx(arg string) error {
	slot, err := c.selected()
	if err != nil {
		return err
	}
	if strings.HasPrefix(arg, ":") {
		arg = arg[1:]
	} else {
		arg = strings.TrimLeft(arg, " \t")
	}
	_, err = c.sess.Transmit(slot, []byte(arg))
	return err
}

func (c *Console) cmdFlush(string) error {
	slot, err := c.selected()
	if err != nil {
		return err
	}
	return c.sess.Flush(slot)
}

func (c *Console) cmdConnect(string) error {
	slot, err := c.selected()
	if err != nil {
		return err
	}
	if err := c.sess.Connect(slot); err != nil {
		return err
	}
	row, err := c.sess.Status(slot)
	if err != nil {
		return err
	}
	c.printf("Connected to %s.\n", row.Target)
	return nil
}

func (c *Console) cmdClose(string) error {
	slot, err := c.selected()
	if err != nil {
		return err
	}
	return c.sess.Disconnect(slot)
}

// flagCommand toggles a flag on the selection; a trailing `?` only reports
// it.
func flagCommand(name, desc string) handler {
	return func(c *Console, arg string) error {
		slot, err := c.selected()
		if err != nil {
			return err
		}
		var on bool
		if strings.HasPrefix(strings.TrimSpace(arg), "?") {
			row, err := c.sess.Status(slot)
			if err != nil {
				return err
			}
			if row.IsLink {
				return fmt.Errorf("%w: slot %d is a link", api.ErrInvalidSlot, slot)
			}
			f, err := iface.ParseFlag(name)
			if err != nil {
				return err
			}
			on = row.Flags.Has(f)
		} else if on, err = c.sess.ToggleFlag(slot, name); err != nil {
			return err
		}
		c.printf("%s is %s\n", desc, onOff(on))
		return nil
	}
}

func (c *Console) cmdSave(arg string) error {
	path := strings.TrimSpace(arg)
	if path == "" {
		path = session.ArchiveName(c.sess.RunID())
	}
	if err := c.sess.Save(path); err != nil {
		return err
	}
	c.printf("Session saved to %s.\n", path)
	return nil
}

// cmdLoad imports an archive when arg names a file, otherwise reloads the
// run it names under the session root.
func (c *Console) cmdLoad(arg string) error {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return api.ParseError("`load' command must specify session or filename")
	}
	if st, err := os.Stat(arg); err == nil && st.Mode().IsRegular() {
		dir, warn, err := c.sess.Import(arg)
		c.warnings(warn)
		if err != nil {
			return err
		}
		c.printf("Imported %s into %s.\n", arg, dir)
		return nil
	}
	dir, err := session.ResolveRun(c.sess.Root(), arg)
	if err != nil {
		return err
	}
	warn, err := c.sess.Reload(dir)
	c.warnings(warn)
	if err != nil {
		return err
	}
	c.printf("Reloaded %s.\n", c.sess.Dir())
	return nil
}

func (c *Console) cmdSession(string) error {
	c.printf("  sessionid: 0x%08x\n", c.sess.RunID())
	c.printf("  directory: %s\n", c.sess.Dir())
	return nil
}

func (c *Console) cmdSessions(string) error {
	runs, err := session.Runs(c.sess.Root())
	if err != nil {
		return err
	}
	c.printf("Available sessions:\n")
	for _, r := range runs {
		mark := " "
		if r.Dir == c.sess.Dir() {
			mark = "*"
		}
		c.printf("%s %s  %3d if  %s\n", mark, session.RunName(r.ID), r.Interfaces, r.Modified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (c *Console) cmdCwd(string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	c.printf("%s\n", wd)
	return nil
}

const historyShown = 20

func (c *Console) cmdHistory(string) error {
	if c.hist == nil {
		c.printf("history is off\n")
		return nil
	}
	c.printf("histfile: %s\n", c.hist.Path())
	c.printf(" records %8d\n", c.hist.Len())
	lines, err := c.hist.Lines(historyShown)
	if err != nil {
		return err
	}
	first := c.hist.Len() - len(lines)
	for i, l := range lines {
		c.printf("%5d  %s\n", first+i+1, l)
	}
	return nil
}

func (c *Console) cmdEcho(arg string) error {
	if !strings.HasPrefix(strings.TrimSpace(arg), "?") {
		c.echo = !c.echo
	}
	c.printf("cli command echo is %s\n", onOff(c.echo))
	return nil
}

func (c *Console) cmdClear(string) error {
	c.printf("\x1b[H\x1b[2J")
	return nil
}

func (c *Console) cmdHelp(string) error {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c.printf("  %-9s %s\n", n, commands[n].help)
	}
	c.printf("  %-9s %s\n", "quit", "leave the console")
	return nil
}

func (c *Console) warnings(err error) {
	for _, w := range multierr.Errors(err) {
		c.printf("%s\n", c.st.warn.Render("Warning: "+w.Error()))
	}
}
