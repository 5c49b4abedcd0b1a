package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/session"
	"firestige.xyz/ifcli/internal/table"
)

type styles struct {
	selected lipgloss.Style
	inactive lipgloss.Style
	link     lipgloss.Style
	async    lipgloss.Style
	warn     lipgloss.Style
	err      lipgloss.Style
}

func newStyles(color bool) styles {
	plain := lipgloss.NewStyle()
	if !color {
		return styles{plain, plain, plain, plain, plain, plain}
	}
	return styles{
		selected: plain.Bold(true),
		inactive: plain.Foreground(lipgloss.Color("245")),
		link:     plain.Foreground(lipgloss.Color("75")),
		async:    plain.Foreground(lipgloss.Color("114")),
		warn:     plain.Foreground(lipgloss.Color("214")),
		err:      plain.Foreground(lipgloss.Color("203")).Bold(true),
	}
}

func linkName(k table.LinkKind) string {
	if k == table.LinkExchange {
		return "ex "
	}
	return "tie"
}

// renderRow formats one `ls` line. Interfaces show the selection mark, '#'
// when inactive, the flag bits, slot, rx/tx mode tags, target and cursor.
// Links show their direction as tx -> rx.
func (c *Console) renderRow(r session.Row) string {
	mark := " "
	if r.Selected {
		mark = "*"
	}
	if r.IsLink {
		line := fmt.Sprintf("%s    %3d  %s %d -> %d", mark, r.Slot, linkName(r.LinkKind), r.Tx, r.Rx)
		switch {
		case r.Stale:
			return c.st.inactive.Render(line + "  (stale)")
		case r.LinkKind == table.LinkExchange && r.Armed:
			line += "  (armed)"
		}
		return c.st.link.Render(line)
	}

	act := " "
	if !r.Active {
		act = "#"
	}
	line := fmt.Sprintf("%s%s%02x %3d  if  m:%s%s  %s  [%d/%d]",
		mark, act, uint8(r.Flags), r.Slot, r.RxMode.Short(), r.TxMode.Short(),
		r.Target, r.Cursor.Rx, r.Cursor.Count)
	switch {
	case r.Selected:
		return c.st.selected.Render(line)
	case !r.Active:
		return c.st.inactive.Render(line)
	}
	return line
}

func (c *Console) renderStatus(w io.Writer, r session.Row) {
	if r.IsLink {
		state := "idle"
		switch {
		case r.Stale:
			state = "stale"
		case r.Armed:
			state = "armed"
		}
		fmt.Fprintf(w, "Link %d status\n", r.Slot)
		fmt.Fprintf(w, "  kind     %s\n", r.LinkKind)
		fmt.Fprintf(w, "  tx       %d\n", r.Tx)
		fmt.Fprintf(w, "  rx       %d\n", r.Rx)
		fmt.Fprintf(w, "  state    %s\n", state)
		return
	}
	fmt.Fprintf(w, "Interface %d status\n", r.Slot)
	fmt.Fprintf(w, "  type     %s\n", r.Kind)
	fmt.Fprintf(w, "  target   %s\n", r.Target)
	fmt.Fprintf(w, "  active   %s\n", onOff(r.Active))
	fmt.Fprintf(w, "  rxmode   %s\n", r.RxMode)
	fmt.Fprintf(w, "  txmode   %s\n", r.TxMode)
	fmt.Fprintf(w, "  buffer   %d\n", r.Buffer)
	fmt.Fprintf(w, "  flags    %s\n", r.Flags)
	fmt.Fprintf(w, "  rx       %d / %d  %d byte(s)\n", r.Cursor.Rx, r.Cursor.Count, r.Cursor.Size)
}

// formatFrame renders a frame in its interface's rx mode, always ending
// with a newline.
func formatFrame(m codec.Mode, data []byte) string {
	s := codec.Format(m, data)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
