package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"fiveradio/model"
	"fiveradio/player"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FocusMode 焦点模式
type FocusMode int

const (
	FocusStations FocusMode = iota // 焦点在电台列表
	FocusGenre                     // 焦点在流派选择
)

const (
	allGenres     = "All"
	spectrumEvery = 100 * time.Millisecond
	volumeStep    = 0.05
	eventBacklog  = 64
)

// KeyMap 定义快捷键
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Select  key.Binding
	Pause   key.Binding
	Stop    key.Binding
	VolUp   key.Binding
	VolDown key.Binding
	Mute    key.Binding
	Retry   key.Binding
	Quit    key.Binding
}

// ShortHelp 返回简短的帮助信息
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Pause, k.VolUp, k.VolDown, k.Quit}
}

// FullHelp 返回详细帮助信息
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Select},
		{k.Pause, k.Stop, k.VolUp, k.VolDown, k.Mute, k.Retry, k.Quit},
	}
}

// 默认快捷键
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←", "prev genre"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→", "next genre"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("Enter", "play"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause/resume"),
	),
	Stop: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "stop"),
	),
	VolUp: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "vol+"),
	),
	VolDown: key.NewBinding(
		key.WithKeys("-", "_"),
		key.WithHelp("-", "vol-"),
	),
	Mute: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "mute"),
	),
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "retry"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("Esc", "quit/back"),
	),
}

// 样式定义
var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#10B981")
	accentColor    = lipgloss.Color("#F59E0B")
	textColor      = lipgloss.Color("#CDD6F4")
	dimTextColor   = lipgloss.Color("#6C7086")
	playingColor   = lipgloss.Color("#A6E3A1")
	genreColor     = lipgloss.Color("#89B4FA")

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	genreItemStyle = lipgloss.NewStyle().
			Foreground(textColor)

	genreSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(genreColor).
				Bold(true).
				Padding(0, 1)

	genreCurrentStyle = lipgloss.NewStyle().
				Foreground(secondaryColor).
				Bold(true)

	stationItemStyle = lipgloss.NewStyle().
				Foreground(textColor)

	stationSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(primaryColor).
				Bold(true).
				Padding(0, 1)

	stationPlayingStyle = lipgloss.NewStyle().
				Foreground(playingColor).
				Bold(true)

	stationSelectedPlayingStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("#1E1E2E")).
					Background(secondaryColor).
					Bold(true).
					Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(dimTextColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8"))

	volumeStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	spectrumStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	focusIndicatorStyle = lipgloss.NewStyle().
				Foreground(accentColor).
				Bold(true)
)

var bars = []rune("▁▂▃▄▅▆▇█")

// Model TUI 模型
type Model struct {
	stations []model.Station // 全部电台
	visible  []model.Station // 当前流派下的电台
	cursor   int
	width    int
	height   int
	keys     KeyMap

	statusMessage string
	errorMessage  string

	// 流派
	genres        []string
	currentGenre  int // 已确认的流派索引
	selectedGenre int // 选择中的流派索引（在流派模式下）
	focus         FocusMode

	ctrl     *player.Controller
	events   *eventPipe
	subID    player.SubscriptionID
	status   player.Status
	spectrum []float64
}

// NewModel 创建模型. It subscribes to ctrl; Run ends the subscription on exit.
func NewModel(stations []model.Station, ctrl *player.Controller) Model {
	events := newEventPipe(eventBacklog)
	subID := ctrl.Subscribe(events.send)

	return Model{
		stations: stations,
		visible:  stations,
		keys:     DefaultKeyMap,
		genres:   append([]string{allGenres}, model.Genres(stations)...),
		focus:    FocusStations,
		ctrl:     ctrl,
		events:   events,
		subID:    subID,
		status:   ctrl.Snapshot(),
	}
}

// eventPipe carries controller events into the bubbletea loop. It is closed
// once on shutdown, which releases the pending waitForEvent.
type eventPipe struct {
	mu     sync.Mutex
	closed bool
	ch     chan player.Event
}

func newEventPipe(size int) *eventPipe {
	return &eventPipe{ch: make(chan player.Event, size)}
}

// send never blocks. The UI only needs the latest state; a full backlog drops events.
func (p *eventPipe) send(ev player.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- ev:
	default:
	}
}

func (p *eventPipe) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// 消息类型
type playerEventMsg struct {
	event player.Event
}
type spectrumTickMsg time.Time

func waitForEvent(events <-chan player.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return playerEventMsg{event: ev}
	}
}

func tickSpectrum() tea.Cmd {
	return tea.Tick(spectrumEvery, func(t time.Time) tea.Msg {
		return spectrumTickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events.ch), tickSpectrum())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case playerEventMsg:
		m.applyEvent(msg.event)
		return m, waitForEvent(m.events.ch)

	case spectrumTickMsg:
		m.spectrum = m.ctrl.SpectrumSample()
		return m, tickSpectrum()

	case tea.KeyMsg:
		m.errorMessage = ""

		// 根据焦点模式处理按键
		if m.focus == FocusGenre {
			return m.handleGenreKeys(msg)
		}
		return m.handleStationKeys(msg)
	}

	return m, nil
}

func (m *Model) applyEvent(ev player.Event) {
	m.status = m.ctrl.Snapshot()

	switch ev := ev.(type) {
	case player.PlayStateChanged:
		switch ev.State {
		case player.StateLoading:
			m.statusMessage = "Connecting..."
		case player.StatePlaying:
			m.statusMessage = "Playing"
		case player.StatePaused:
			m.statusMessage = "Paused"
		case player.StateIdle:
			m.statusMessage = "Stopped"
		}
	case player.ErrorEvent:
		m.errorMessage = ev.Message
		m.statusMessage = ""
	}
}

// handleStationKeys 处理电台模式下的按键
func (m Model) handleStationKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		} else {
			// 在顶部按上，跳到流派选择
			m.focus = FocusGenre
			m.selectedGenre = m.currentGenre
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Left):
		// 快速切换上一个流派
		if m.currentGenre > 0 {
			m.setGenre(m.currentGenre - 1)
		}
		return m, nil

	case key.Matches(msg, m.keys.Right):
		if m.currentGenre < len(m.genres)-1 {
			m.setGenre(m.currentGenre + 1)
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.cursor < 0 || m.cursor >= len(m.visible) {
			return m, nil
		}
		return m, m.playStation(m.visible[m.cursor])

	case key.Matches(msg, m.keys.Retry):
		if st, ok := m.ctrl.CurrentStation(); ok {
			return m, m.playStation(st)
		}
		return m, nil

	case key.Matches(msg, m.keys.Pause):
		switch m.ctrl.State() {
		case player.StatePlaying:
			m.ctrl.Pause()
		case player.StatePaused:
			m.ctrl.Resume()
		}
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		m.ctrl.Stop()
		return m, nil

	case key.Matches(msg, m.keys.VolUp):
		m.setVolume(m.ctrl.Volume() + volumeStep)
		return m, nil

	case key.Matches(msg, m.keys.VolDown):
		m.setVolume(m.ctrl.Volume() - volumeStep)
		return m, nil

	case key.Matches(msg, m.keys.Mute):
		m.ctrl.SetMuted(!m.ctrl.IsMuted())
		m.status = m.ctrl.Snapshot()
		return m, nil

	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	// 数字键设置音量
	case len(msg.String()) == 1 && msg.String() >= "0" && msg.String() <= "9":
		m.setVolume(float64(msg.String()[0]-'0') / 10.0)
		return m, nil
	}

	return m, nil
}

// handleGenreKeys 处理流派模式下的按键
func (m Model) handleGenreKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Left):
		if m.selectedGenre > 0 {
			m.selectedGenre--
		}
		return m, nil

	case key.Matches(msg, m.keys.Right):
		if m.selectedGenre < len(m.genres)-1 {
			m.selectedGenre++
		}
		return m, nil

	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.Quit):
		// 按下或Esc返回电台列表，不切换流派
		m.focus = FocusStations
		m.selectedGenre = m.currentGenre
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.selectedGenre != m.currentGenre {
			m.setGenre(m.selectedGenre)
		}
		m.focus = FocusStations
		return m, nil
	}

	return m, nil
}

func (m *Model) setGenre(idx int) {
	m.currentGenre = idx
	m.selectedGenre = idx
	m.cursor = 0
	if idx == 0 {
		m.visible = m.stations
	} else {
		m.visible = model.FilterByGenre(m.stations, m.genres[idx])
	}
	m.statusMessage = fmt.Sprintf("%s (%d stations)", m.genres[idx], len(m.visible))
}

// setVolume 调整音量并取消静音
func (m *Model) setVolume(v float64) {
	// Round away float drift from repeated steps.
	m.ctrl.SetVolume(math.Round(v*100) / 100)
	if m.ctrl.IsMuted() {
		m.ctrl.SetMuted(false)
	}
	m.status = m.ctrl.Snapshot()
}

func (m *Model) playStation(st model.Station) tea.Cmd {
	ctrl := m.ctrl
	m.statusMessage = "Connecting..."
	return func() tea.Msg {
		ctrl.PlayStation(context.Background(), st)
		return nil
	}
}

// View 渲染视图
func (m Model) View() string {
	var b strings.Builder

	title := titleStyle.Render("📻 Five Radio")
	b.WriteString(fmt.Sprintf("%s  %s\n", title, m.renderVolume()))
	b.WriteString(m.renderGenreLine() + "\n")
	b.WriteString(strings.Repeat("─", 40) + "\n")

	b.WriteString(m.renderStationList())
	b.WriteString(spectrumStyle.Render(m.renderSpectrum()) + "\n")

	// 状态行
	if m.errorMessage != "" {
		b.WriteString(errorStyle.Render("✗ "+m.errorMessage) + "\n")
	} else if m.status.Station != nil {
		b.WriteString(statusStyle.Render(m.renderNowPlaying()) + "\n")
	} else if m.statusMessage != "" {
		b.WriteString(statusStyle.Render(m.statusMessage) + "\n")
	}

	// 帮助提示
	if m.focus == FocusGenre {
		b.WriteString(statusStyle.Render("← → genre  Enter confirm  ↓/Esc back"))
	} else {
		b.WriteString(statusStyle.Render("↑↓ select  Enter play  p pause  s stop  ← → genre  +- volume  m mute  Esc quit"))
	}

	return b.String()
}

func (m Model) renderNowPlaying() string {
	st := m.status.Station
	icon := "■"
	switch m.status.State {
	case player.StateLoading:
		icon = "⏳"
	case player.StatePlaying:
		icon = "▶"
	case player.StatePaused:
		icon = "⏸"
	}
	return fmt.Sprintf("%s %s  %s · %s", icon, st.Name, st.Artist, st.Track)
}

// renderVolume 渲染音量
func (m Model) renderVolume() string {
	vol := int(math.Round(m.status.Volume * 100))
	if m.status.Muted {
		return statusStyle.Render(fmt.Sprintf("🔇 %d%%", vol))
	}
	return volumeStyle.Render(fmt.Sprintf("🔊 %d%%", vol))
}

func (m Model) renderSpectrum() string {
	if len(m.spectrum) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("  ")
	for _, v := range m.spectrum {
		idx := int(v / 256 * float64(len(bars)))
		idx = max(0, min(len(bars)-1, idx))
		b.WriteRune(bars[idx])
	}
	return b.String()
}

// renderGenreLine 渲染流派选择行
func (m Model) renderGenreLine() string {
	var parts []string

	if m.focus == FocusGenre {
		parts = append(parts, focusIndicatorStyle.Render("▶ "))
	} else {
		parts = append(parts, "  ")
	}

	// 显示当前流派附近的几个流派
	visibleCount := 5
	startIdx := max(0, m.selectedGenre-visibleCount/2)
	endIdx := startIdx + visibleCount
	if endIdx > len(m.genres) {
		endIdx = len(m.genres)
		startIdx = max(0, endIdx-visibleCount)
	}

	if startIdx > 0 {
		parts = append(parts, statusStyle.Render("◀ "))
	}

	for i := startIdx; i < endIdx; i++ {
		name := m.genres[i]
		var styled string

		switch {
		case m.focus == FocusGenre && i == m.selectedGenre:
			styled = genreSelectedStyle.Render(name)
		case i == m.currentGenre:
			styled = genreCurrentStyle.Render(name)
		default:
			styled = genreItemStyle.Render(name)
		}

		parts = append(parts, styled)
		if i < endIdx-1 {
			parts = append(parts, " ")
		}
	}

	if endIdx < len(m.genres) {
		parts = append(parts, statusStyle.Render(" ▶"))
	}

	parts = append(parts, statusStyle.Render(fmt.Sprintf(" [%d/%d]", m.selectedGenre+1, len(m.genres))))

	return strings.Join(parts, "")
}

// renderStationList 渲染电台列表
func (m Model) renderStationList() string {
	if len(m.visible) == 0 {
		return statusStyle.Render("  No stations") + "\n"
	}

	var lines []string

	maxVisible := 12
	if m.height > 0 {
		maxVisible = max(5, m.height-9)
	}
	maxVisible = min(maxVisible, len(m.visible))

	startIdx := 0
	if m.cursor >= maxVisible {
		startIdx = m.cursor - maxVisible + 1
	}
	endIdx := startIdx + maxVisible
	if endIdx > len(m.visible) {
		endIdx = len(m.visible)
		startIdx = max(0, endIdx-maxVisible)
	}

	if startIdx > 0 {
		lines = append(lines, statusStyle.Render("  ↑ more"))
	}

	playingID := ""
	if m.status.Station != nil && m.status.State != player.StateIdle && m.status.State != player.StateError {
		playingID = m.status.Station.ID
	}

	for i := startIdx; i < endIdx; i++ {
		station := m.visible[i]
		isSelected := i == m.cursor && m.focus == FocusStations
		isPlaying := station.ID == playingID

		prefix := "  "
		if isPlaying {
			prefix = "▶ "
		}

		text := fmt.Sprintf("%s%-6s %s", prefix, station.Frequency, station.Name)

		var styled string
		switch {
		case isSelected && isPlaying:
			styled = stationSelectedPlayingStyle.Render(text)
		case isSelected:
			styled = stationSelectedStyle.Render(text)
		case isPlaying:
			styled = stationPlayingStyle.Render(text)
		default:
			styled = stationItemStyle.Render(text)
		}

		lines = append(lines, styled)
	}

	if endIdx < len(m.visible) {
		lines = append(lines, statusStyle.Render("  ↓ more"))
	}

	return strings.Join(lines, "\n") + "\n"
}

// Run 运行 TUI
func Run(stations []model.Station, ctrl *player.Controller) error {
	m := NewModel(stations, ctrl)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	m.teardown()
	return err
}

// teardown ends the model's subscription and stops playback.
func (m Model) teardown() {
	m.ctrl.Unsubscribe(m.subID)
	m.events.close()
	m.ctrl.Stop()
}
