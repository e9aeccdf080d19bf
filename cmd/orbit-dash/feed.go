package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"orbit/pkg/protocol"
	"orbit/pkg/telemetry"
)

// renderGates formats the latest quality gate verdicts as a compact panel
// under the board.
func renderGates(gates []telemetry.GateRow, theme Theme) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render("Quality gates")
	if len(gates) == 0 {
		muted := lipgloss.NewStyle().Foreground(theme.Muted).Render("none recorded")
		return header + "\n" + muted
	}

	tsStyle := lipgloss.NewStyle().Foreground(theme.Muted)

	var b strings.Builder
	b.WriteString(header)
	for _, g := range gates {
		b.WriteString("\n")
		b.WriteString(tsStyle.Render(g.CreatedAt))
		b.WriteString("  ")
		b.WriteString(g.MissionID)
		b.WriteString("  ")
		b.WriteString(g.Gate)
		style := lipgloss.NewStyle().Foreground(statusFeedColor(theme, g.Status))
		b.WriteString("  [" + style.Render(g.Status) + "]")
		if g.Detail != "" {
			b.WriteString("  " + g.Detail)
		}
	}
	return b.String()
}

// renderFeed formats history records as one line each, newest first.
func renderFeed(events []protocol.HistoryRecord, theme Theme) string {
	if len(events) == 0 {
		return lipgloss.NewStyle().Foreground(theme.Muted).Render("No history yet")
	}

	tsStyle := lipgloss.NewStyle().Foreground(theme.Muted)
	missionStyle := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true)

	var b strings.Builder
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		b.WriteString(tsStyle.Render(ev.TS))
		b.WriteString("  ")
		b.WriteString(missionStyle.Render(ev.Mission))
		b.WriteString("  ")
		b.WriteString(ev.Action)
		if ev.Status != "" {
			style := lipgloss.NewStyle().Foreground(statusFeedColor(theme, ev.Status))
			b.WriteString("  [" + style.Render(ev.Status) + "]")
		}
		if ev.Summary != "" {
			b.WriteString("  " + ev.Summary)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// statusFeedColor maps a history status to its feed color.
func statusFeedColor(theme Theme, status string) lipgloss.Color {
	switch status {
	case "failed", "blocked":
		return theme.Error
	case "completed", "passed":
		return theme.Success
	case "in_progress", "current", "warning":
		return theme.Warning
	default:
		return theme.Muted
	}
}
