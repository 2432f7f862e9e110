package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/podassist/podassist/internal/audio"
	"github.com/podassist/podassist/internal/orchestrator"
)

// controller is the orchestrator surface the UI polls. All coordination
// lives behind it; the UI never touches the pipeline components directly.
type controller interface {
	StartSession(deviceIndex int) error
	StopSession() error
	SessionActive() bool
	PumpEvents()
	Intermediate() string
	TranscriptSnapshot() string
	AskQuestion(question string) error
	HandleWake()
	WakeEvents() <-chan struct{}
	Answers() <-chan orchestrator.Answer
	Notices() <-chan string
	QuestionInFlight() bool
}

// Config holds the UI settings.
type Config struct {
	PollInterval    time.Duration
	PreferredDevice string   // substring match against device names, preselects the capture device
	Degraded        []string // services missing configuration, for the status bar
	CanTranscribe   bool
	CanAnswer       bool
}

type tickMsg time.Time

type devicesLoadedMsg struct {
	devices []audio.DeviceInfo
	err     error
}

// Model is the Bubbletea model for the assistant.
type Model struct {
	width  int
	height int
	ready  bool

	ctrl controller
	cfg  Config

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	devices        []audio.DeviceInfo
	deviceIndex    int
	showDeviceList bool

	lastQuestion string
	lastAnswer   string
	notice       string
	err          error
}

// New creates the assistant UI.
func New(ctrl controller, cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about the podcast... (Enter to send)"
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return Model{
		ctrl:    ctrl,
		cfg:     cfg,
		input:   ti,
		spinner: sp,
	}
}

// Init starts the poll loop and loads the device list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.tick(),
		loadDevices,
		tea.EnterAltScreen,
	)
}

// tick schedules the next poll. Every mutation of UI state flows through the
// resulting tickMsg handler; nothing else reads the orchestrator queues.
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.PollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadDevices() tea.Msg {
	devices, err := audio.ListDevices()
	return devicesLoadedMsg{devices: devices, err: err}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 10 // answer panel + input + status + help
		viewportHeight := msg.Height - headerHeight - footerHeight
		if viewportHeight < 3 {
			viewportHeight = 3
		}

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = viewportHeight
		}
		m.input.Width = msg.Width - 8
		m.refreshTranscript()

	case tickMsg:
		m.poll()
		return m, m.tick()

	case spinner.TickMsg:
		if m.ctrl.QuestionInFlight() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case devicesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.devices = msg.devices
			m.deviceIndex = m.preferredDeviceIndex()
		}
	}

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// poll is the single place UI state absorbs pipeline output.
func (m *Model) poll() {
	m.ctrl.PumpEvents()

	// Wake triggers feed back into the orchestrator; it decides whether a
	// spoken-question flow may start.
	if wake := m.ctrl.WakeEvents(); wake != nil {
		select {
		case <-wake:
			m.ctrl.HandleWake()
		default:
		}
	}

	select {
	case a := <-m.ctrl.Answers():
		m.lastQuestion = a.Question
		if a.Err != nil {
			// Failed answers render in the answer pane as text, like any
			// other answer.
			m.lastAnswer = "AI Error: " + a.Err.Error()
		} else {
			m.lastAnswer = a.Text
		}
		m.err = nil
	default:
	}

	select {
	case n := <-m.ctrl.Notices():
		m.notice = n
	default:
	}

	m.refreshTranscript()
}

// preferredDeviceIndex matches the configured device name against the ranked
// list. No match, or no preference, selects the first (best-ranked) device.
func (m Model) preferredDeviceIndex() int {
	if m.cfg.PreferredDevice == "" {
		return 0
	}
	want := strings.ToLower(m.cfg.PreferredDevice)
	for i, dev := range m.devices {
		if strings.Contains(strings.ToLower(dev.Name), want) {
			return i
		}
	}
	return 0
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	var b strings.Builder
	b.WriteString(m.ctrl.TranscriptSnapshot())
	if interim := m.ctrl.Intermediate(); interim != "" {
		b.WriteString(" ")
		b.WriteString(IntermediateStyle.Render(interim))
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(b.String()))
	m.viewport.GotoBottom()
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showDeviceList {
		switch msg.Type {
		case tea.KeyUp:
			if m.deviceIndex > 0 {
				m.deviceIndex--
			}
			return m, nil
		case tea.KeyDown:
			if m.deviceIndex < len(m.devices)-1 {
				m.deviceIndex++
			}
			return m, nil
		case tea.KeyEnter, tea.KeyEsc:
			m.showDeviceList = false
			m.input.Focus()
			return m, nil
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.ctrl.SessionActive() {
			_ = m.ctrl.StopSession()
		}
		return m, tea.Quit

	case tea.KeyCtrlD:
		if !m.ctrl.SessionActive() {
			m.showDeviceList = true
			m.input.Blur()
		}
		return m, nil

	case tea.KeyCtrlS:
		return m.toggleSession()

	case tea.KeyEnter:
		return m.submitQuestion()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) toggleSession() (tea.Model, tea.Cmd) {
	if m.ctrl.SessionActive() {
		if err := m.ctrl.StopSession(); err != nil {
			m.err = err
		} else {
			m.notice = "Session stopped"
			m.err = nil
		}
		return m, nil
	}

	if !m.cfg.CanTranscribe {
		m.notice = "Speech-to-text is not configured"
		return m, nil
	}
	if len(m.devices) == 0 {
		m.notice = "No input devices available"
		return m, nil
	}

	device := m.devices[m.deviceIndex]
	if err := m.ctrl.StartSession(device.Index); err != nil {
		m.err = err
		return m, nil
	}
	m.notice = fmt.Sprintf("Recording from %s", device.Name)
	m.err = nil
	return m, nil
}

func (m Model) submitQuestion() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}
	if !m.cfg.CanAnswer {
		m.notice = "Question answering is not configured"
		return m, nil
	}

	if err := m.ctrl.AskQuestion(question); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrQuestionInFlight):
			m.notice = "Still answering the previous question"
		default:
			m.err = err
		}
		return m, nil
	}

	m.lastQuestion = question
	m.lastAnswer = ""
	m.err = nil
	m.input.Reset()
	return m, m.spinner.Tick
}

// View renders the UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render("Podcast Assistant"))
	b.WriteString("\n")

	if m.showDeviceList {
		b.WriteString(m.renderDevicePicker())
	} else {
		b.WriteString(TranscriptPanelStyle.Width(m.width - 2).Render(m.viewport.View()))
		b.WriteString("\n")
		b.WriteString(m.renderAnswerPanel())
		b.WriteString("\n")
		b.WriteString(InputStyle.Width(m.width - 2).Render(m.input.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())

	return b.String()
}

func (m Model) renderDevicePicker() string {
	var content strings.Builder
	content.WriteString("Select capture device (loopback devices record the podcast itself)\n\n")
	for i, dev := range m.devices {
		if i == m.deviceIndex {
			content.WriteString(SelectedDeviceStyle.Render(" > " + dev.Label()))
		} else {
			content.WriteString(DeviceItemStyle.Render("   " + dev.Label()))
		}
		content.WriteString("\n")
	}
	content.WriteString("\n")
	content.WriteString(HelpStyle.Render("up/down select - Enter confirm"))
	return TranscriptPanelStyle.Width(m.width - 2).Render(content.String())
}

func (m Model) renderAnswerPanel() string {
	var content strings.Builder

	if m.lastQuestion != "" {
		content.WriteString(QuestionLabelStyle.Render("Q: " + m.lastQuestion))
		content.WriteString("\n")
	}

	switch {
	case m.err != nil:
		content.WriteString(ErrorStyle.Render(m.err.Error()))
	case m.ctrl.QuestionInFlight():
		content.WriteString(m.spinner.View() + " Thinking...")
	case strings.HasPrefix(m.lastAnswer, "AI Error: "):
		content.WriteString(ErrorStyle.Render(m.lastAnswer))
	case m.lastAnswer != "":
		content.WriteString(AnswerTextStyle.Render(m.lastAnswer))
	default:
		content.WriteString(HelpStyle.Render("Answers appear here"))
	}

	if m.notice != "" {
		content.WriteString("\n")
		content.WriteString(NoticeStyle.Render(m.notice))
	}

	return AnswerPanelStyle.Width(m.width - 2).Render(content.String())
}

func (m Model) renderStatusBar() string {
	var status string
	if m.ctrl.SessionActive() {
		status = StatusRecordingStyle.Render("REC")
	} else {
		status = StatusIdleStyle.Render("idle")
	}

	parts := []string{status}
	if len(m.devices) > 0 && m.deviceIndex < len(m.devices) {
		parts = append(parts, m.devices[m.deviceIndex].Name)
	}
	if len(m.cfg.Degraded) > 0 {
		parts = append(parts, DegradedStyle.Render("disabled: "+strings.Join(m.cfg.Degraded, ", ")))
	}

	return StatusBarStyle.Width(m.width - 2).Render(strings.Join(parts, "  |  "))
}

func (m Model) renderHelpBar() string {
	items := []string{
		"Ctrl+S start/stop",
		"Enter ask",
		"Ctrl+D device",
		"Ctrl+C quit",
	}
	return HelpStyle.Render(strings.Join(items, "  "))
}

// Run starts the UI and blocks until it exits.
func Run(ctrl controller, cfg Config) error {
	p := tea.NewProgram(New(ctrl, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
