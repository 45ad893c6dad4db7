package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

// kindIcons maps event kinds to their display icons.
var kindIcons = map[events.Kind]string{
	events.KindError:   "!!",
	events.KindWarning: "W:",
	events.KindSuccess: "OK",
	events.KindInfo:    "i:",
	events.KindSystem:  "SY",
}

// kindStyles maps event kinds to their display styles.
var kindStyles = map[events.Kind]lipgloss.Style{
	events.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	events.KindWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("222")),
	events.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	events.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	events.KindSystem:  lipgloss.NewStyle().Foreground(lipgloss.Color("183")),
}

// renderEventStreamPanel renders the bundled event stream, newest first.
func (m Model) renderEventStreamPanel(w, h int) string {
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}
	contentH := h - 4 // borders + title
	if contentH < 1 {
		contentH = 1
	}

	var lines []string

	title := panelTitleStyle.Render("Events")
	if m.selectedDevice != "" {
		title += dimStyle.Render(" [" + state.TruncateDeviceID(m.selectedDevice, 16) + "]")
	}
	lines = append(lines, title)

	rows := m.getRows()

	if len(rows) == 0 {
		lines = append(lines, "")
		lines = append(lines, dimStyle.Render("No data received yet"))
		return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusEvents))
	}

	visibleLines := contentH - 1 // subtract title line
	if visibleLines < 1 {
		visibleLines = 1
	}

	startIdx := 0
	switch {
	case m.panelFocus == FocusEvents:
		if m.eventCursor >= visibleLines {
			startIdx = m.eventCursor - visibleLines + 1
		}
	case !m.autoScroll:
		startIdx = m.eventScrollPos
	}
	if startIdx > len(rows)-visibleLines {
		startIdx = len(rows) - visibleLines
	}
	if startIdx < 0 {
		startIdx = 0
	}

	endIdx := startIdx + visibleLines
	if endIdx > len(rows) {
		endIdx = len(rows)
	}

	for i := startIdx; i < endIdx; i++ {
		line := renderEventLine(rows[i], contentW)
		if m.panelFocus == FocusEvents && i == m.eventCursor {
			line = cursorStyle.Render(stripAnsi(line))
		}
		lines = append(lines, line)
	}

	if len(rows) > visibleLines {
		pos := formatScrollPos(startIdx+1, endIdx, len(rows))
		pad := contentW - lipgloss.Width(pos)
		if pad < 0 {
			pad = 0
		}
		lines = append(lines, dimStyle.Render(strings.Repeat(" ", pad)+pos))
	}

	return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusEvents))
}

// sourceEvents returns the raw events for the current device selection,
// preferring the live feed over the store.
func (m Model) sourceEvents() []events.Event {
	if m.feed != nil {
		if m.selectedDevice != "" {
			return m.feed.ListByDevice(m.selectedDevice)
		}
		return m.feed.ListAll()
	}
	if m.store != nil {
		return m.store.Events(state.Query{
			Device: m.selectedDevice,
			Limit:  m.cfg.Display.EventBufferSize,
		})
	}
	return nil
}

// getRows returns the filtered event stream, bundled unless raw mode is on.
func (m Model) getRows() []events.BundledEvent {
	if !m.filterMenu.anyKind() {
		return nil
	}
	filtered := m.filterMenu.Filter(m.selectedDevice).Apply(m.sourceEvents())
	if len(filtered) == 0 {
		return nil
	}
	if m.bundling {
		return m.bundler.Bundle(filtered)
	}
	return m.bundler.Singles(filtered)
}

// renderEventLine formats a single row for display.
func renderEventLine(be events.BundledEvent, maxW int) string {
	icon := kindIcons[be.Kind]
	if icon == "" {
		icon = "??"
	}

	style, ok := kindStyles[be.Kind]
	if !ok {
		style = dimStyle
	}

	text := formatClock(be.Event) + " " + state.TruncateDeviceID(be.Device, 12) + " " + be.Message
	if be.IsBundle {
		text += fmt.Sprintf(" (x%d)", be.Count)
	}
	if be.HasExpandableDetails {
		text += " +"
	}

	maxText := maxW - len(icon) - 1
	if runes := []rune(text); len(runes) > maxText && maxText > 3 {
		text = string(runes[:maxText-3]) + "..."
	}

	return style.Render(icon + " " + text)
}

// formatClock shows the local wall-clock time of e, or dashes when its
// timestamp does not parse.
func formatClock(e events.Event) string {
	at, ok := e.Time()
	if !ok {
		return "--:--:--"
	}
	return at.Local().Format("15:04:05")
}

// formatScrollPos returns a string like "[10-20/100]".
func formatScrollPos(start, end, total int) string {
	return "[" + formatNumber(int64(start)) + "-" + formatNumber(int64(end)) +
		"/" + formatNumber(int64(total)) + "]"
}

// lookupEvent finds a member event in the store, then in the live feed.
func (m Model) lookupEvent(id events.ID) (events.Event, bool) {
	if m.store != nil {
		if e, ok := m.store.GetEvent(id); ok {
			return e, true
		}
	}
	if m.feed != nil {
		for _, e := range m.feed.ListAll() {
			if e.ID == id {
				return e, true
			}
		}
	}
	return events.Event{}, false
}

func (m Model) formatEventDetail(be events.BundledEvent) string {
	var lines []string
	lines = append(lines, "Kind:      "+string(be.Kind))
	lines = append(lines, "Device:    "+be.Device)
	lines = append(lines, "Timestamp: "+be.TS)
	lines = append(lines, "ID:        "+string(be.ID))
	if be.IsBundle {
		kinds := make([]string, len(be.BundledKinds))
		for i, k := range be.BundledKinds {
			kinds[i] = string(k)
		}
		lines = append(lines, fmt.Sprintf("Events:    %d (%s)", be.Count, strings.Join(kinds, ", ")))
	}
	lines = append(lines, "")
	lines = append(lines, "Message:")
	lines = append(lines, be.Message)

	if len(be.ErrorMessages) > 0 {
		lines = append(lines, "", "Errors:")
		for _, msg := range be.ErrorMessages {
			lines = append(lines, "  - "+msg)
		}
	}
	if len(be.WarningMessages) > 0 {
		lines = append(lines, "", "Warnings:")
		for _, msg := range be.WarningMessages {
			lines = append(lines, "  - "+msg)
		}
	}
	if len(be.FailedItems) > 0 {
		lines = append(lines, "", "Failed items:")
		for _, it := range be.FailedItems {
			lines = append(lines, "  - "+itemLine(it.Name, it.DisplayName, it.Error))
		}
	}
	if len(be.WarningItems) > 0 {
		lines = append(lines, "", "Items with warnings:")
		for _, it := range be.WarningItems {
			lines = append(lines, "  - "+itemLine(it.Name, it.DisplayName, it.Warning))
		}
	}

	for _, id := range be.EventIDs {
		lines = append(lines, "")
		e, ok := m.lookupEvent(id)
		if !ok {
			lines = append(lines, "--- "+string(id)+" (no longer available)")
			continue
		}
		lines = append(lines, fmt.Sprintf("--- %s [%s] %s", e.ID, e.Kind, e.TS))
		if e.Message != "" {
			lines = append(lines, e.Message)
		}
		lines = append(lines, "Payload:")
		lines = append(lines, formatPayload(e.Payload))
	}

	return strings.Join(lines, "\n")
}

func itemLine(name, display, detail string) string {
	label := name
	if display != "" && display != name {
		label = display + " (" + name + ")"
	}
	if detail != "" {
		label += ": " + detail
	}
	return label
}

// formatPayload renders a payload as indented JSON.
func formatPayload(p any) string {
	if p == nil {
		return "null"
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", p)
	}
	return string(data)
}
