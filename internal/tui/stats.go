package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

const topAlarmDevices = 10

func (m Model) renderStats() string {
	var sb strings.Builder

	sb.WriteString(m.renderHeader(" [Stats]", "Tab:History  q:Quit "))
	sb.WriteByte('\n')

	devices := m.getDevices()
	if m.selectedDevice != "" {
		devices = selectDevice(devices, m.selectedDevice)
	}

	sections := []string{
		renderStatusSection(devices),
		renderKindSection(devices),
		renderAlarmSection(devices),
	}

	var allLines []string
	for _, section := range sections {
		allLines = append(allLines, strings.Split(section, "\n")...)
		allLines = append(allLines, "")
	}

	visibleH := m.height - 3
	if visibleH < 1 {
		visibleH = 1
	}
	startIdx := m.statsScrollPos
	if startIdx > len(allLines)-visibleH {
		startIdx = len(allLines) - visibleH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + visibleH
	if endIdx > len(allLines) {
		endIdx = len(allLines)
	}

	for i := startIdx; i < endIdx; i++ {
		sb.WriteString(allLines[i])
		sb.WriteByte('\n')
	}

	return sb.String()
}

func selectDevice(devices []state.DeviceSummary, name string) []state.DeviceSummary {
	for _, d := range devices {
		if d.Device == name {
			return []state.DeviceSummary{d}
		}
	}
	return nil
}

func renderStatusSection(devices []state.DeviceSummary) string {
	counts := make(map[state.DeviceStatus]int)
	for _, d := range devices {
		counts[d.Status()]++
	}
	lines := []string{
		panelTitleStyle.Render("Devices"),
		fmt.Sprintf("  Online:  %s", formatNumber(int64(counts[state.StatusOnline]))),
		fmt.Sprintf("  Idle:    %s", formatNumber(int64(counts[state.StatusIdle]))),
		fmt.Sprintf("  Offline: %s", formatNumber(int64(counts[state.StatusOffline]))),
	}
	return strings.Join(lines, "\n")
}

func renderKindSection(devices []state.DeviceSummary) string {
	title := panelTitleStyle.Render("Events by Kind")
	totals := make(map[events.Kind]int)
	all := 0
	for _, d := range devices {
		for k, n := range d.KindCounts {
			totals[k] += n
			all += n
		}
	}
	if all == 0 {
		return title + "\n" + dimStyle.Render("  No kind data")
	}

	lines := []string{title}
	for _, k := range events.AllKinds {
		ratio := float64(totals[k]) / float64(all)
		lines = append(lines, fmt.Sprintf("  %-10s %s %s",
			kindLabels[k], renderProgressBar(ratio, 20), formatNumber(int64(totals[k]))))
	}
	return strings.Join(lines, "\n")
}

func renderAlarmSection(devices []state.DeviceSummary) string {
	title := panelTitleStyle.Render("Top Alarming Devices")

	var alarming []state.DeviceSummary
	for _, d := range devices {
		if d.Alarms() > 0 {
			alarming = append(alarming, d)
		}
	}
	if len(alarming) == 0 {
		return title + "\n" + dimStyle.Render("  No alarms")
	}

	sort.SliceStable(alarming, func(i, j int) bool {
		return alarming[i].Alarms() > alarming[j].Alarms()
	})
	if len(alarming) > topAlarmDevices {
		alarming = alarming[:topAlarmDevices]
	}

	maxAlarms := alarming[0].Alarms()
	lines := []string{title}
	for _, d := range alarming {
		ratio := float64(d.Alarms()) / float64(maxAlarms)
		lines = append(lines, fmt.Sprintf("  %-18s %s %d (%d err, %d warn)",
			state.TruncateDeviceID(d.Device, 18), renderProgressBar(ratio, 20), d.Alarms(),
			d.KindCounts[events.KindError], d.KindCounts[events.KindWarning]))
	}
	return strings.Join(lines, "\n")
}

func renderProgressBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if ratio >= 0.8 {
		return barHighStyle.Render(bar)
	}
	if ratio >= 0.5 {
		return barMidStyle.Render(bar)
	}
	return barLowStyle.Render(bar)
}
