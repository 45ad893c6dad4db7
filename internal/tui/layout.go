package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

type panelDimensions struct {
	deviceListW, deviceListH   int
	eventStreamW, eventStreamH int
	fleetBarW, fleetBarH       int
	headerH                    int
}

const (
	minWidth  = 40
	minHeight = 10

	headerHeight = 1

	fleetBarHeight = 3
)

func computeDimensions(totalW, totalH int) panelDimensions {
	if totalW < minWidth {
		totalW = minWidth
	}
	if totalH < minHeight {
		totalH = minHeight
	}

	d := panelDimensions{
		headerH: headerHeight,
	}

	usableH := totalH - headerHeight - fleetBarHeight
	if usableH < 4 {
		usableH = 4
	}

	d.deviceListW = totalW * 40 / 100
	if d.deviceListW < 20 {
		d.deviceListW = 20
	}
	if d.deviceListW > totalW-20 {
		d.deviceListW = totalW - 20
	}
	d.deviceListH = usableH

	d.eventStreamW = totalW - d.deviceListW
	if d.eventStreamW < 20 {
		d.eventStreamW = 20
	}
	d.eventStreamH = usableH

	d.fleetBarW = totalW
	d.fleetBarH = fleetBarHeight

	return d
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	focusedBorderStyle = panelBorderStyle.
				BorderForeground(lipgloss.Color("63"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	exitedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	alarmStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	barLowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	barMidStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	barHighStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	filterMenuStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	detailOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("69")).
				Padding(1, 2)
)

func renderBorderedPanel(content string, w, h int) string {
	return renderBorderedPanelStyled(content, w, h, panelBorderStyle)
}

func renderBorderedPanelStyled(content string, w, h int, style lipgloss.Style) string {
	contentH := h - 2
	if contentH < 1 {
		contentH = 1
	}

	lines := strings.Split(content, "\n")
	if len(lines) > contentH {
		lines = lines[:contentH]
		content = strings.Join(lines, "\n")
	}

	return style.
		Width(w - 2).
		Height(contentH).
		Render(content)
}

// panelStyle highlights the border of the focused panel.
func (m Model) panelStyle(p PanelFocus) lipgloss.Style {
	if m.panelFocus == p {
		return focusedBorderStyle
	}
	return panelBorderStyle
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func (m Model) renderDashboard() string {
	dims := computeDimensions(m.width, m.height)

	header := m.renderHeader(" [Dashboard]", m.headerHelp())

	deviceList := m.renderDeviceListPanel(dims.deviceListW, dims.deviceListH)
	eventStream := m.renderEventStreamPanel(dims.eventStreamW, dims.eventStreamH)
	fleetBar := m.renderFleetBar(dims.fleetBarW, dims.fleetBarH)

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, deviceList, eventStream)

	usableH := m.height - dims.headerH - dims.fleetBarH
	if usableH < 4 {
		usableH = 4
	}
	mcLines := strings.Split(mainContent, "\n")
	if len(mcLines) > usableH {
		mcLines = mcLines[:usableH]
		mainContent = strings.Join(mcLines, "\n")
	}

	layout := lipgloss.JoinVertical(lipgloss.Left, header, mainContent, fleetBar)

	if m.filterMenu.Active {
		layout = m.overlayFilterMenu(layout)
	}

	if m.detailOverlay {
		layout = m.overlayDetail(layout)
	}

	return layout
}

// renderHeader renders the title bar shared by every view.
func (m Model) renderHeader(viewLabel, help string) string {
	title := " fleetwatch"
	if m.selectedDevice != "" {
		viewLabel += " Device: " + state.TruncateDeviceID(m.selectedDevice, 16)
	} else {
		viewLabel += " Fleet"
	}

	indicators := m.headerIndicators()

	padding := m.width - lipgloss.Width(title) - lipgloss.Width(viewLabel) - lipgloss.Width(indicators) - lipgloss.Width(help)
	if padding < 0 {
		padding = 0
	}

	return headerStyle.Width(m.width).Render(title + viewLabel + indicators + strings.Repeat(" ", padding) + help)
}

func (m Model) headerHelp() string {
	if m.panelFocus == FocusEvents {
		return "Enter:Detail  Esc:Back  b:Bundle  n:Noise  f:Filter  q:Quit "
	}
	return "Enter:Select  e:Events  b:Bundle  n:Noise  f:Filter  Tab:Stats  q:Quit "
}

// renderFleetBar renders the bottom bar with fleet-wide alarm totals.
func (m Model) renderFleetBar(w, h int) string {
	devices := m.getDevices()
	if len(devices) == 0 {
		return renderBorderedPanel(dimStyle.Render("Waiting for devices"), w, h)
	}

	var online, errs, warns int
	for _, d := range devices {
		if d.Status() == state.StatusOnline {
			online++
		}
		errs += d.KindCounts[events.KindError]
		warns += d.KindCounts[events.KindWarning]
	}

	parts := []string{
		fmt.Sprintf("%d devices (%d online)", len(devices), online),
		kindStyles[events.KindError].Render(formatNumber(int64(errs)) + " errors"),
		kindStyles[events.KindWarning].Render(formatNumber(int64(warns)) + " warnings"),
	}
	return renderBorderedPanel(strings.Join(parts, "  |  "), w, h)
}

// formatNumber formats n with comma separators (e.g., 1,234,567).
func formatNumber(n int64) string {
	return humanize.Comma(n)
}

func (m Model) overlayFilterMenu(base string) string {
	content := panelTitleStyle.Render("Event Filter") + "\n\n"
	for i, opt := range m.filterMenu.Options {
		cursor := "  "
		if i == m.filterMenu.Cursor {
			cursor = "> "
		}
		check := "[ ]"
		if opt.Enabled {
			check = "[x]"
		}
		line := cursor + check + " " + opt.Label
		if i == m.filterMenu.Cursor {
			line = selectedStyle.Render(line)
		}
		content += line + "\n"
	}
	content += "\nEnter: Toggle  Esc: Close"

	dialog := filterMenuStyle.Render(content)
	dialogW := lipgloss.Width(dialog)
	dialogH := lipgloss.Height(dialog)
	x := (m.width - dialogW) / 2
	y := (m.height - dialogH) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	return placeOverlay(x, y, dialog, base)
}

func (m Model) overlayDetail(base string) string {
	overlayW := m.width * 70 / 100
	if overlayW < 40 {
		overlayW = 40
	}
	if overlayW > m.width-4 {
		overlayW = m.width - 4
	}
	overlayH := m.height * 60 / 100
	if overlayH < 10 {
		overlayH = 10
	}
	if overlayH > m.height-4 {
		overlayH = m.height - 4
	}

	contentW := overlayW - 6
	if contentW < 10 {
		contentW = 10
	}
	contentH := overlayH - 4
	if contentH < 3 {
		contentH = 3
	}

	allLines := strings.Split(m.detailContent, "\n")

	var wrapped []string
	for _, line := range allLines {
		if len(line) <= contentW {
			wrapped = append(wrapped, line)
		} else {
			for len(line) > contentW {
				cutAt := contentW
				for i := contentW; i > 0; i-- {
					if line[i] == ' ' {
						cutAt = i
						break
					}
				}
				wrapped = append(wrapped, line[:cutAt])
				line = line[cutAt:]
				if len(line) > 0 && line[0] == ' ' {
					line = line[1:]
				}
			}
			if line != "" {
				wrapped = append(wrapped, line)
			}
		}
	}

	startIdx := m.detailScrollPos
	if startIdx > len(wrapped)-contentH {
		startIdx = len(wrapped) - contentH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + contentH
	if endIdx > len(wrapped) {
		endIdx = len(wrapped)
	}

	visibleLines := wrapped[startIdx:endIdx]
	body := strings.Join(visibleLines, "\n")

	title := panelTitleStyle.Render(m.detailTitle)
	footer := dimStyle.Render("Esc/Enter: Close")
	if len(wrapped) > contentH {
		footer += dimStyle.Render("  Up/Down: Scroll")
	}

	content := title + "\n\n" + body + "\n\n" + footer

	dialog := detailOverlayStyle.
		Width(overlayW - 2).
		Render(content)

	return placeOverlay(0, 0, dialog, base)
}

func placeOverlay(x, y int, fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}
