package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

type historyRow struct {
	label    string
	events   int
	devices  int // peak per day within the period
	errors   int
	warnings int
}

func (m Model) renderHistory() string {
	var sb strings.Builder

	sb.WriteString(m.renderHeader(" [History]", "d:Daily w:Weekly m:Monthly  Tab:Dashboard  q:Quit "))
	sb.WriteByte('\n')

	if !m.isPersistent {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  persistence is disabled, history only covers events held in memory"))
		sb.WriteByte('\n')
	}

	var summaries []state.DailySummary
	if m.store != nil {
		switch m.historyGranularity {
		case "weekly":
			summaries = m.store.DailySummaries(28)
		case "monthly":
			summaries = m.store.DailySummaries(90)
		default:
			summaries = m.store.DailySummaries(7)
		}
	}

	if len(summaries) == 0 {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  No historical data available"))
		sb.WriteByte('\n')
		return sb.String()
	}

	var rows []historyRow
	var dateHeader string
	switch m.historyGranularity {
	case "weekly":
		rows = aggregateHistory(summaries, weekLabel)
		dateHeader = "Week"
	case "monthly":
		rows = aggregateHistory(summaries, func(date string) string { return date[:7] })
		dateHeader = "Month"
	default:
		rows = aggregateHistory(summaries, func(date string) string { return date })
		dateHeader = "Date"
	}

	sb.WriteByte('\n')
	sb.WriteString(fmt.Sprintf("  %-14s %10s %8s %8s %9s",
		dateHeader, "Events", "Devices", "Errors", "Warnings"))
	sb.WriteByte('\n')
	sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", 53)))
	sb.WriteByte('\n')

	visibleH := m.height - 5
	if visibleH < 1 {
		visibleH = 1
	}
	startIdx := m.historyScrollPos
	if startIdx > len(rows)-visibleH {
		startIdx = len(rows) - visibleH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + visibleH
	if endIdx > len(rows) {
		endIdx = len(rows)
	}

	for i := startIdx; i < endIdx; i++ {
		r := rows[i]
		sb.WriteString(fmt.Sprintf("  %-14s %10s %8d %8s %9s",
			r.label, formatNumber(int64(r.events)), r.devices,
			formatNumber(int64(r.errors)), formatNumber(int64(r.warnings))))
		sb.WriteByte('\n')
	}

	return sb.String()
}

func weekLabel(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	y, w := t.ISOWeek()
	return fmt.Sprintf("Week %d-%02d", y, w)
}

// aggregateHistory groups summaries by label, keeping first-seen order.
// Summaries with malformed dates are skipped.
func aggregateHistory(summaries []state.DailySummary, label func(date string) string) []historyRow {
	byLabel := make(map[string]*historyRow)
	var order []string

	for _, ds := range summaries {
		if len(ds.Date) != len(time.DateOnly) {
			continue
		}
		l := label(ds.Date)
		r, ok := byLabel[l]
		if !ok {
			r = &historyRow{label: l}
			byLabel[l] = r
			order = append(order, l)
		}
		r.events += ds.EventCount
		r.errors += ds.KindCounts[events.KindError]
		r.warnings += ds.KindCounts[events.KindWarning]
		if ds.Devices > r.devices {
			r.devices = ds.Devices
		}
	}

	result := make([]historyRow, 0, len(order))
	for _, l := range order {
		result = append(result, *byLabel[l])
	}
	return result
}
