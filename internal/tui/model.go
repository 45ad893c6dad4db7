package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewStats
	ViewHistory
)

type PanelFocus int

const (
	FocusDevices PanelFocus = iota
	FocusEvents
)

type tickMsg time.Time

// StoreProvider is the read side of the event store.
type StoreProvider interface {
	GetEvent(id events.ID) (events.Event, bool)
	Events(q state.Query) []events.Event
	ListDevices() []state.DeviceSummary
	DailySummaries(days int) []state.DailySummary
	DroppedWrites() int64
}

// FeedProvider supplies the live feed. *events.RingBuffer satisfies it.
type FeedProvider interface {
	ListAll() []events.Event
	ListByDevice(device string) []events.Event
}

type Model struct {
	view     ViewState
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config

	store   StoreProvider
	feed    FeedProvider
	bundler *events.Bundler

	selectedDevice     string
	deviceCursor       int
	deviceScrollOffset int

	panelFocus     PanelFocus
	eventCursor    int
	eventScrollPos int
	autoScroll     bool
	filterMenu     FilterMenuState
	bundling       bool

	detailOverlay   bool
	detailContent   string
	detailTitle     string
	detailScrollPos int

	statsScrollPos int

	isPersistent bool

	historyGranularity string
	historyScrollPos   int

	refreshRate time.Duration

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	m := Model{
		view:               ViewDashboard,
		keys:               DefaultKeyMap(),
		cfg:                cfg,
		autoScroll:         true,
		filterMenu:         NewFilterMenu(),
		bundling:           true,
		historyGranularity: "daily",
		refreshRate:        time.Duration(cfg.Display.RefreshRateMS) * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&m)
	}

	if m.bundler == nil {
		m.bundler = events.NewBundler(
			events.WithWindow(cfg.Bundler.Window()),
			events.WithMaxResults(cfg.Bundler.MaxResults),
		)
	}

	return m
}

type ModelOption func(*Model)

func WithStoreProvider(s StoreProvider) ModelOption {
	return func(m *Model) { m.store = s }
}

func WithFeedProvider(f FeedProvider) ModelOption {
	return func(m *Model) { m.feed = f }
}

func WithBundler(b *events.Bundler) ModelOption {
	return func(m *Model) { m.bundler = b }
}

func WithStartView(v ViewState) ModelOption {
	return func(m *Model) { m.view = v }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func WithPersistenceFlag(isPersistent bool) ModelOption {
	return func(m *Model) { m.isPersistent = isPersistent }
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.clampCursors()
		return m, m.tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// clampCursors keeps cursors inside lists that shrank since the last tick.
func (m *Model) clampCursors() {
	if n := len(m.getDevices()); m.deviceCursor >= n {
		m.deviceCursor = max(n-1, 0)
	}
	if m.panelFocus == FocusEvents {
		if n := len(m.getRows()); m.eventCursor >= n {
			m.eventCursor = max(n-1, 0)
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.detailOverlay {
		return m.handleDetailOverlayKey(msg)
	}

	if m.filterMenu.Active {
		return m.handleFilterMenuKey(msg)
	}

	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit
	}

	switch m.view {
	case ViewDashboard:
		return m.handleDashboardKey(msg)
	case ViewStats:
		return m.handleStatsKey(msg)
	case ViewHistory:
		return m.handleHistoryKey(msg)
	}

	return m, nil
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		m.panelFocus = FocusDevices
		m.view = ViewStats
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.filterMenu.Active = true
		m.filterMenu.Cursor = 0
		return m, nil

	case key.Matches(msg, m.keys.ToggleBundle):
		m.bundling = !m.bundling
		m.resetEventScroll()
		return m, nil

	case key.Matches(msg, m.keys.ToggleNoise):
		m.filterMenu.toggle(noiseOptionKey)
		m.resetEventScroll()
		return m, nil

	case key.Matches(msg, m.keys.FocusEvents):
		if m.panelFocus != FocusEvents {
			m.panelFocus = FocusEvents
			m.autoScroll = false
			m.eventCursor = 0
			m.eventScrollPos = 0
		}
		return m, nil
	}

	if m.panelFocus == FocusEvents {
		return m.handleEventsPanelKey(msg)
	}
	return m.handleDevicesPanelKey(msg)
}

func (m *Model) resetEventScroll() {
	m.eventCursor = 0
	m.eventScrollPos = 0
}

func (m Model) handleDevicesPanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.deviceCursor > 0 {
			m.deviceCursor--
		}
		if m.deviceCursor < m.deviceScrollOffset {
			m.deviceScrollOffset = m.deviceCursor
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.deviceCursor < len(m.getDevices())-1 {
			m.deviceCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		devices := m.getDevices()
		if m.deviceCursor >= 0 && m.deviceCursor < len(devices) {
			m.selectedDevice = devices[m.deviceCursor].Device
			m.resetEventScroll()
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.selectedDevice = ""
		m.resetEventScroll()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.autoScroll = false
		m.eventScrollPos++
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		if m.eventScrollPos > 0 {
			m.eventScrollPos--
		}
		if m.eventScrollPos == 0 {
			m.autoScroll = true
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleEventsPanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.getRows()

	switch {
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.ScrollUp):
		if m.eventCursor > 0 {
			m.eventCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.ScrollDown):
		if m.eventCursor < len(rows)-1 {
			m.eventCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.eventCursor >= 0 && m.eventCursor < len(rows) {
			be := rows[m.eventCursor]
			m.detailOverlay = true
			m.detailTitle = "Event Detail"
			if be.IsBundle {
				m.detailTitle = "Bundle Detail"
			}
			m.detailContent = m.formatEventDetail(be)
			m.detailScrollPos = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.panelFocus = FocusDevices
		m.autoScroll = true
		m.resetEventScroll()
		return m, nil
	}

	return m, nil
}

func (m Model) handleDetailOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Enter):
		m.detailOverlay = false
		m.detailContent = ""
		m.detailTitle = ""
		m.detailScrollPos = 0
		return m, nil

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.ScrollUp):
		if m.detailScrollPos > 0 {
			m.detailScrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.ScrollDown):
		m.detailScrollPos++
		return m, nil
	}

	return m, nil
}

func (m Model) handleStatsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		m.view = ViewHistory
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.statsScrollPos > 0 {
			m.statsScrollPos--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.statsScrollPos++
		return m, nil
	}
	return m, nil
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		m.view = ViewDashboard
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.historyScrollPos > 0 {
			m.historyScrollPos--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.historyScrollPos++
		return m, nil
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		switch msg.Runes[0] {
		case 'd':
			m.historyGranularity = "daily"
			m.historyScrollPos = 0
			return m, nil
		case 'w':
			m.historyGranularity = "weekly"
			m.historyScrollPos = 0
			return m, nil
		case 'm':
			m.historyGranularity = "monthly"
			m.historyScrollPos = 0
			return m, nil
		}
	}

	return m, nil
}

func (m Model) handleFilterMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Filter):
		m.filterMenu.Active = false
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.filterMenu.Cursor > 0 {
			m.filterMenu.Cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.filterMenu.Cursor < len(m.filterMenu.Options)-1 {
			m.filterMenu.Cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.filterMenu.Cursor >= 0 && m.filterMenu.Cursor < len(m.filterMenu.Options) {
			opt := &m.filterMenu.Options[m.filterMenu.Cursor]
			opt.Enabled = !opt.Enabled
			m.resetEventScroll()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) getDevices() []state.DeviceSummary {
	if m.store == nil {
		return nil
	}
	return m.store.ListDevices()
}

func (m Model) headerIndicators() string {
	var parts []string
	if !m.isPersistent {
		parts = append(parts, "[No persistence]")
	}
	if m.store != nil && m.store.DroppedWrites() > 0 {
		parts = append(parts, "[!] Writes dropped")
	}
	if !m.bundling {
		parts = append(parts, "[Raw]")
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + dimStyle.Render(strings.Join(parts, " "))
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var output string
	switch m.view {
	case ViewDashboard:
		output = m.renderDashboard()
	case ViewStats:
		output = m.renderStats()
	case ViewHistory:
		output = m.renderHistory()
	}

	if m.height > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			output = strings.Join(lines, "\n")
		}
	}

	return output
}
