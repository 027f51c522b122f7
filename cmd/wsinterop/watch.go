package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/wsinterop/internal/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream toplevel and workspace changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// eventStyles colours the event kind column; the zero value prints plain
// text.
type eventStyles struct {
	enabled bool
	added   lipgloss.Style
	removed lipgloss.Style
	changed lipgloss.Style
	muted   lipgloss.Style
}

func newEventStyles(color bool) eventStyles {
	if !color {
		return eventStyles{}
	}
	return eventStyles{
		enabled: true,
		added:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		removed: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		changed: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (s eventStyles) kind(k client.EventKind) string {
	label := fmt.Sprintf("%-17s", k)
	if !s.enabled {
		return label
	}
	switch k {
	case client.ToplevelAdded, client.WorkspaceAdded, client.Entered:
		return s.added.Render(label)
	case client.ToplevelClosed, client.WorkspaceRemoved, client.Left:
		return s.removed.Render(label)
	default:
		return s.changed.Render(label)
	}
}

func (s eventStyles) dim(text string) string {
	if !s.enabled {
		return text
	}
	return s.muted.Render(text)
}

func formatEvent(s eventStyles, ev client.Event) string {
	var b strings.Builder
	b.WriteString(s.kind(ev.Kind))
	b.WriteString(" ")
	switch ev.Kind {
	case client.WorkspaceAdded, client.WorkspaceRenamed, client.WorkspaceRemoved:
		b.WriteString(ev.Workspace)
	default:
		b.WriteString(ev.Toplevel.Title)
		if ev.Toplevel.AppID != "" {
			b.WriteString(s.dim(" (" + ev.Toplevel.AppID + ")"))
		}
		if ev.Workspace != "" {
			b.WriteString(" -> ")
			b.WriteString(ev.Workspace)
		}
		b.WriteString(s.dim(" " + ev.Toplevel.Identifier))
	}
	return b.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	session, err := dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	styles := newEventStyles(term.IsTerminal(int(os.Stdout.Fd())))
	out := cmd.OutOrStdout()
	printStatus(out, statusReport{Workspaces: session.Workspaces(), Toplevels: session.Snapshot()})
	fmt.Fprintln(out)
	return watchEvents(ctx.Done(), session.Events(), out, styles, session.Err)
}

func watchEvents(done <-chan struct{}, events <-chan client.Event, out io.Writer, styles eventStyles, sessionErr func() error) error {
	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-events:
			if !ok {
				err := sessionErr()
				if err == nil {
					err = client.ErrClosed
				}
				return fmt.Errorf("daemon connection lost: %w", err)
			}
			fmt.Fprintln(out, formatEvent(styles, ev))
		}
	}
}
