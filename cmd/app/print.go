package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/starford/cardsync/internal/ledger"
	"github.com/starford/cardsync/internal/reconcile"
	"github.com/starford/cardsync/internal/syncservice"
)

var (
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(reconcile.StatusCreated), string(reconcile.StatusUpdated), syncservice.StateSynced:
		return green
	case string(reconcile.StatusFailed):
		return red
	case string(reconcile.StatusPending), syncservice.StateChanged, syncservice.StateNew:
		return yellow
	}
	return gray
}

func printSyncReports(w io.Writer, reports []syncservice.FileReport) {
	var sb strings.Builder
	for idx, fr := range reports {
		if idx > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(cyan.Bold(true).Render(fr.Path) + "\n")
		if fr.Skipped {
			sb.WriteString("  " + gray.Render("unchanged since last sync") + "\n")
			continue
		}
		if fr.Err != nil {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", red.Render("ERROR"), fr.Err))
		}
		if fr.Report == nil {
			continue
		}
		for _, o := range fr.Report.Outcomes {
			line := fmt.Sprintf("  %-9s %s", statusStyle(string(o.Status)).Render(string(o.Status)), o.Card.Key)
			if o.NoteID != 0 {
				line += gray.Render(fmt.Sprintf(" (note %d)", o.NoteID))
			}
			if o.Reason != "" {
				line += " " + red.Render(o.Reason)
			}
			sb.WriteString(line + "\n")
		}
	}
	fmt.Fprint(w, sb.String())
}

func printCards(w io.Writer, path string, views []syncservice.CardView) {
	if len(views) == 0 {
		fmt.Fprintf(w, "No cards in '%s'\n", cyan.Render(path))
		return
	}
	var sb strings.Builder
	for _, v := range views {
		sb.WriteString(fmt.Sprintf("%s %-8s %s",
			gray.Render(fmt.Sprintf("%4d", v.Line)),
			statusStyle(v.State).Render(v.State),
			v.Key))
		if v.NoteID != 0 {
			sb.WriteString(gray.Render(fmt.Sprintf(" (note %d)", v.NoteID)))
		}
		if v.LastStatus == string(reconcile.StatusFailed) {
			sb.WriteString(" " + red.Render("last sync failed: "+v.LastReason))
		}
		sb.WriteString("\n")
	}
	fmt.Fprint(w, sb.String())
}

func printHistory(w io.Writer, path string, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No sync history for '%s'\n", cyan.Render(path))
		return
	}
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%-16s %-9s %s",
			gray.Render(humanize.Time(e.SyncedAt)),
			statusStyle(e.Status).Render(e.Status),
			e.CardKey))
		if e.NoteID != 0 {
			sb.WriteString(gray.Render(fmt.Sprintf(" (note %d)", e.NoteID)))
		}
		if e.Reason != "" {
			sb.WriteString(" " + red.Render(e.Reason))
		}
		sb.WriteString("\n")
	}
	fmt.Fprint(w, sb.String())
}
