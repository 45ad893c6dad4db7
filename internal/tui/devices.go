package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nixlim/fleetwatch/internal/state"
)

// renderDeviceListPanel renders the device list with status, last seen,
// event count and alarm columns.
func (m Model) renderDeviceListPanel(w, h int) string {
	devices := m.getDevices()

	contentW := w - 4
	if contentW < 16 {
		contentW = 16
	}

	contentH := h - 4 // borders + title
	if contentH < 2 {
		contentH = 2
	}

	var lines []string

	title := panelTitleStyle.Render("Devices")
	if m.selectedDevice != "" {
		title += dimStyle.Render(" [" + state.TruncateDeviceID(m.selectedDevice, 16) + "]")
	} else {
		title += dimStyle.Render(" [Fleet]")
	}
	lines = append(lines, title)

	if len(devices) == 0 {
		lines = append(lines, "")
		lines = append(lines, dimStyle.Render("No devices reporting"))
		return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusDevices))
	}

	header := formatDeviceHeader(contentW)
	lines = append(lines, dimStyle.Render(header))
	lines = append(lines, dimStyle.Render(strings.Repeat("─", min(contentW, len(header)))))

	now := time.Now()
	var rows []string
	for i, d := range devices {
		line := formatDeviceRow(d, contentW, now)
		switch {
		case i == m.deviceCursor && m.panelFocus == FocusDevices:
			line = selectedStyle.Render(stripAnsi(line))
		case d.Device == m.selectedDevice:
			line = activeStyle.Render("> ") + line
		}
		rows = append(rows, line)
	}

	// Keep the header fixed and scroll the rows so the cursor stays visible.
	visibleRows := contentH - 2
	if visibleRows < 1 {
		visibleRows = 1
	}
	offset := m.deviceScrollOffset
	if m.deviceCursor >= offset+visibleRows {
		offset = m.deviceCursor - visibleRows + 1
	}
	if offset > len(rows)-visibleRows {
		offset = len(rows) - visibleRows
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + visibleRows
	if end > len(rows) {
		end = len(rows)
	}
	lines = append(lines, rows[offset:end]...)

	return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusDevices))
}

// formatDeviceHeader returns the column header string.
func formatDeviceHeader(maxW int) string {
	if maxW >= 60 {
		return fmt.Sprintf("%-18s %-7s %-14s %8s %6s",
			"Device", "Status", "Last seen", "Events", "Alarms")
	}
	return fmt.Sprintf("%-12s %-7s %6s", "Device", "Status", "Alarms")
}

// formatDeviceRow formats a single device row based on available width.
func formatDeviceRow(d state.DeviceSummary, maxW int, now time.Time) string {
	status := renderStatus(d.Status())
	// Pad on the raw width; the styled string carries escape codes.
	status += strings.Repeat(" ", max(7-len(d.Status()), 0))
	alarms := formatAlarms(d.Alarms())

	if maxW >= 60 {
		return fmt.Sprintf("%-18s %s %-14s %8s %s",
			state.TruncateDeviceID(d.Device, 18), status, formatLastSeen(d.LastSeen, now),
			formatNumber(int64(d.EventCount)), alarms)
	}
	return fmt.Sprintf("%-12s %s %s", state.TruncateDeviceID(d.Device, 12), status, alarms)
}

func formatAlarms(n int) string {
	s := fmt.Sprintf("%6d", n)
	if n > 0 {
		return alarmStyle.Render(s)
	}
	return s
}

// formatLastSeen renders a relative time such as "3 minutes ago".
func formatLastSeen(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// renderStatus returns a styled string for the device status.
func renderStatus(s state.DeviceStatus) string {
	switch s {
	case state.StatusOnline:
		return activeStyle.Render("online")
	case state.StatusIdle:
		return idleStyle.Render("idle")
	case state.StatusOffline:
		return exitedStyle.Render("offline")
	default:
		return string(s)
	}
}
