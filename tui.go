package main

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"spiritbox/audio"
	"spiritbox/clipboard"
	"spiritbox/log"
	"spiritbox/mode"
)

// TUI message types
type LevelMsg struct{ Level float64 }
type WordMsg struct{ Word string }
type StatusMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type PromptMsg struct{ Open bool }
type tickMsg time.Time

const tuiFPS = 30

type keyMap struct {
	Energy     key.Binding
	Dictionary key.Binding
	Proximity  key.Binding
	Copy       key.Binding
	Quit       key.Binding
	Allow      key.Binding
	Deny       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Energy, k.Dictionary, k.Proximity, k.Copy, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Allow, k.Deny}}
}

var keys = keyMap{
	Energy:     key.NewBinding(key.WithKeys("1", "e"), key.WithHelp("1/e", "energy")),
	Dictionary: key.NewBinding(key.WithKeys("2", "d"), key.WithHelp("2/d", "dictionary")),
	Proximity:  key.NewBinding(key.WithKeys("3", "p"), key.WithHelp("3/p", "proximity")),
	Copy:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy word")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Allow:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "allow mic")),
	Deny:       key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "deny mic")),
}

type tuiModel struct {
	nBars      int
	target     float64
	pos, vel   float64
	spring     harmonica.Spring
	word       string
	status     string
	deviceLine string
	prompting  bool
	copied     bool
	width      int
	help       help.Model

	selections chan mode.Mode
	answers    chan bool
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	barLitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	barHotStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	barDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Bold(true)
	wordStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	deviceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	copiedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	frameStyle    = lipgloss.NewStyle().Padding(1, 2)
	failureStatus = map[string]bool{
		mode.StatusNoMic:    true,
		mode.StatusNoData:   true,
		mode.StatusNoSensor: true,
	}
)

func newTUIModel(nBars int, selections chan mode.Mode, answers chan bool) tuiModel {
	return tuiModel{
		nBars:      nBars,
		spring:     harmonica.NewSpring(harmonica.FPS(tuiFPS), 12.0, 0.9),
		help:       help.New(),
		selections: selections,
		answers:    answers,
	}
}

func NewTUIProgram(nBars int, selections chan mode.Mode, answers chan bool) *tea.Program {
	return tea.NewProgram(newTUIModel(nBars, selections, answers), tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(time.Second/tuiFPS, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Energy):
			offer(m.selections, mode.Energy)
		case key.Matches(msg, keys.Dictionary):
			offer(m.selections, mode.Dictionary)
		case key.Matches(msg, keys.Proximity):
			offer(m.selections, mode.Proximity)
		case key.Matches(msg, keys.Copy):
			if m.word != "" {
				if err := clipboard.Copy(m.word); err != nil {
					log.Warnf("clipboard: %v", err)
				} else {
					m.copied = true
				}
			}
		case m.prompting && key.Matches(msg, keys.Allow):
			offer(m.answers, true)
		case m.prompting && key.Matches(msg, keys.Deny):
			offer(m.answers, false)
		}

	case tickMsg:
		m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
		return m, tuiTick()

	case LevelMsg:
		m.target = msg.Level

	case WordMsg:
		m.word = msg.Word
		m.copied = false

	case StatusMsg:
		m.status = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case PromptMsg:
		m.prompting = msg.Open
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("S P I R I T   B O X"))
	b.WriteString("\n\n")
	b.WriteString(renderBars(m.pos, m.nBars))
	b.WriteString("\n\n")

	word := m.word
	if word == "" {
		word = "·"
	}
	b.WriteString(wordStyle.Render(word))
	if m.copied {
		b.WriteString(" " + copiedStyle.Render("[✓ copied]"))
	}
	b.WriteString("\n\n")

	if m.status != "" {
		style := statusStyle
		if failureStatus[m.status] {
			style = failStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}
	if m.prompting {
		b.WriteString(promptStyle.Render("ALLOW MICROPHONE? y/n"))
		b.WriteString("\n")
	}
	if m.deviceLine != "" {
		b.WriteString(deviceStyle.Render(m.deviceLine))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(keys))

	return frameStyle.Render(b.String())
}

// renderBars draws n segments per side growing outward from the centre.
// Segment i on either side is lit when i < floor(level*n).
func renderBars(level float64, n int) string {
	lit := mode.LitBars(level, n)
	seg := func(i int) string {
		switch {
		case i >= lit:
			return barDimStyle.Render("▮")
		case i >= n*3/4:
			return barHotStyle.Render("▮")
		default:
			return barLitStyle.Render("▮")
		}
	}

	var b strings.Builder
	for i := n - 1; i >= 0; i-- {
		b.WriteString(seg(i))
	}
	b.WriteString(" ")
	for i := range n {
		b.WriteString(seg(i))
	}
	return b.String()
}

// offer delivers v on a one-slot channel without blocking; a stale unread
// value is replaced.
func offer[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiView forwards presenter calls to the running program.
type tuiView struct{}

func (tuiView) SetLevel(level float64) { tuiSend(LevelMsg{Level: level}) }
func (tuiView) ShowWord(word string)   { tuiSend(WordMsg{Word: word}) }
func (tuiView) SetStatus(text string)  { tuiSend(StatusMsg{Text: text}) }

// promptGate asks on the TUI before the first microphone open. A yes is
// remembered for the session; a no is asked again on the next attempt.
type promptGate struct {
	answers chan bool
	granted atomic.Bool
	show    func(open bool)
}

func newPromptGate() *promptGate {
	return &promptGate{
		answers: make(chan bool, 1),
		show:    func(open bool) { tuiSend(PromptMsg{Open: open}) },
	}
}

func (g *promptGate) Request(ctx context.Context) error {
	if g.granted.Load() {
		return ctx.Err()
	}
	select {
	case <-g.answers:
	default:
	}

	g.show(true)
	defer g.show(false)

	select {
	case ok := <-g.answers:
		if !ok {
			return audio.ErrPermissionDenied
		}
		g.granted.Store(true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func deviceLineText(name string) string {
	if name == "" {
		name = "system default"
	}
	suffix := ""
	if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix
}
