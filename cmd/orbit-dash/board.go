package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// BoardModel holds the kanban-style board state with mission columns.
type BoardModel struct {
	columns []boardColumn
}

// boardColumn represents a single column in the board view.
type boardColumn struct {
	title      string
	missions   []boardCard
	totalCount int // Total count of missions (may exceed len(missions) if limited)
}

// boardCard is one mission entry on the board.
type boardCard struct {
	id    string
	phase string
	sub   string
}

// columnForStatus returns the board column title for a given mission status.
func columnForStatus(status protocol.Status) string {
	switch status {
	case protocol.StatusCurrent, protocol.StatusInProgress:
		return "Active"
	case protocol.StatusPaused:
		return "Paused"
	case protocol.StatusBlocked:
		return "Blocked"
	case protocol.StatusCompleted:
		return "Done"
	default:
		return "Queued"
	}
}

// NewBoardModel groups missions into 5 columns by status:
//   - "Queued"  = status "queued"
//   - "Active"  = status "current" or "in_progress"
//   - "Paused"  = status "paused"
//   - "Blocked" = status "blocked"
//   - "Done"    = status "completed" (limited to most recent 10)
func NewBoardModel(snap *state.Snapshot) BoardModel {
	buckets := map[string][]boardCard{
		"Queued":  {},
		"Active":  {},
		"Paused":  {},
		"Blocked": {},
		"Done":    {},
	}

	if snap != nil {
		ids := make([]string, 0, len(snap.Missions))
		for id := range snap.Missions {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			mission := snap.Missions[id]
			col := columnForStatus(mission.Status)
			buckets[col] = append(buckets[col], boardCard{
				id:    id,
				phase: string(mission.Phase),
				sub:   mission.CurrentSubMission,
			})
		}
	}

	// Preserve column ordering: Queued, Active, Paused, Blocked, Done.
	titles := []string{"Queued", "Active", "Paused", "Blocked", "Done"}
	columns := make([]boardColumn, 0, len(titles))
	for _, t := range titles {
		cards := buckets[t]
		totalCount := len(cards)

		// Limit Done column to most recent 10 missions
		if t == "Done" && len(cards) > 10 {
			cards = cards[len(cards)-10:]
		}

		columns = append(columns, boardColumn{
			title:      t,
			missions:   cards,
			totalCount: totalCount,
		})
	}

	return BoardModel{columns: columns}
}

// Render renders the board columns side-by-side using lipgloss.
func (bm BoardModel) Render() string {
	theme := DefaultTheme()

	colWidth := 26

	cardStyle := lipgloss.NewStyle().
		Width(colWidth-2).
		Padding(0, 1)

	subStyle := lipgloss.NewStyle().
		Foreground(theme.Muted)

	columnStyle := lipgloss.NewStyle().
		Width(colWidth).
		Padding(0, 1)

	rendered := make([]string, 0, len(bm.columns))
	for _, col := range bm.columns {
		headerColor := theme.Primary
		switch col.title {
		case "Done":
			headerColor = theme.Success
		case "Blocked":
			headerColor = theme.Error
		case "Paused":
			headerColor = theme.Warning
		}

		headerStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(headerColor).
			Width(colWidth).
			Align(lipgloss.Center).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder())

		// Format header with visible/total count for Done column
		headerText := col.title
		if col.title == "Done" && col.totalCount > 0 {
			headerText = fmt.Sprintf("%s (%d/%d)", col.title, len(col.missions), col.totalCount)
		}

		header := headerStyle.Render(headerText)

		var cardsBuilder strings.Builder
		for _, card := range col.missions {
			line := card.id
			detail := card.phase
			if card.sub != "" {
				detail += " · " + card.sub
			}
			phaseStyle := lipgloss.NewStyle().Foreground(phaseColor(theme, card.phase))
			cardsBuilder.WriteString(cardStyle.Render(
				fmt.Sprintf("%s\n%s", phaseStyle.Render(line), subStyle.Render(detail)),
			))
			cardsBuilder.WriteString("\n")
		}
		cards := cardsBuilder.String()

		full := columnStyle.Render(header + "\n" + cards)
		rendered = append(rendered, full)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}
