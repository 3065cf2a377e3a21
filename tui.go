package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nexus/log"
	"nexus/priority"
)

// TUI message types
type replyMsg struct {
	Text string
	Err  error
}
type noticeMsg struct{ Text string }
type tickMsg time.Time

var pages = []string{
	"/",
	"/ghost-chat",
	"/haunted-journal",
	"/frankenstein-stitcher",
	"/haunted-map",
	"/reanimator",
	"/cursed-atelier",
}

type tuiModel struct {
	app           *app
	frame         int
	width, height int
	st            status
	page          string
	chatting      bool
	input         []rune
	waiting       bool
	lastText      string
	copied        bool
	notice        string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

// Orb colours per ring, dim to bright. Index 0 is empty.
var (
	orbColorsHeld = []string{"", "196", "160", "124", "88", "52", "236", "236", "236"}
	orbColorsCalm = []string{"", "231", "153", "111", "69", "61", "236", "236", "236"}
	orbStylesHeld [9]lipgloss.Style
	orbStylesCalm [9]lipgloss.Style
	orbBgHeld     [9][9]lipgloss.Style
	orbBgCalm     [9][9]lipgloss.Style
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	replyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	copiedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	channelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	inputStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Bold(true)
)

func init() {
	fill := func(colors []string, fg *[9]lipgloss.Style, bg *[9][9]lipgloss.Style) {
		for i, c := range colors {
			if c == "" {
				continue
			}
			fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
			for j, b := range colors {
				if b != "" {
					bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(b))
				}
			}
		}
	}
	fill(orbColorsHeld, &orbStylesHeld, &orbBgHeld)
	fill(orbColorsCalm, &orbStylesCalm, &orbBgCalm)
}

func NewTUIProgram(a *app) *tea.Program {
	m := tuiModel{app: a, page: a.currentPage(), st: a.status()}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
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
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.chatting {
			return m.chatKey(msg)
		}
		return m.commandKey(msg)

	case tickMsg:
		m.frame++
		m.st = m.app.status()
		return m, tuiTick()

	case replyMsg:
		m.waiting = false
		m.copied = false
		if msg.Err != nil {
			m.notice = msg.Err.Error()
		}
		if msg.Text != "" {
			m.lastText = msg.Text
		}

	case noticeMsg:
		m.notice = msg.Text
	}
	return m, nil
}

func (m tuiModel) commandKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := m.app
	key := msg.String()
	if len(key) == 1 && key[0] >= '1' && key[0] < '1'+byte(len(pages)) {
		path := pages[key[0]-'1']
		reload := path == m.page
		m.page = path
		a.switchPage(path, reload)
		m.notice = "entered " + path
		return m, nil
	}
	switch key {
	case "q":
		return m, tea.Quit
	case "enter", "/":
		m.chatting = true
		m.notice = ""
	case "m":
		if a.amb.ToggleMute() {
			m.notice = "ambience muted"
		} else {
			m.notice = "ambience unmuted"
		}
	case "i":
		m.notice = "intensity " + string(a.amb.NextIntensity())
	case "v":
		m.notice = "master volume " + string(a.cycleMaster())
	case "c":
		if a.toggleCursed() {
			m.notice = "cursed mode on"
		} else {
			m.notice = "cursed mode off"
		}
	case "f":
		if a.toggleFootsteps() {
			m.notice = "footsteps wander"
		} else {
			m.notice = "footsteps stilled"
		}
	case "p":
		m.notice = "persona " + a.cyclePersona().Name
	case "s":
		a.voice.Stop()
		a.steps.Stop()
		m.notice = "silenced"
	case "y":
		if m.lastText == "" {
			break
		}
		if err := clipboard.WriteAll(m.lastText); err != nil {
			log.Warnf("clipboard: %v", err)
			m.notice = "copy failed"
		} else {
			m.copied = true
		}
	}
	return m, nil
}

func (m tuiModel) chatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := m.app
	switch msg.Type {
	case tea.KeyEsc:
		m.chatting = false
		m.input = nil
		return m, nil
	case tea.KeyEnter:
		text := string(m.input)
		m.chatting = false
		m.input = nil
		if strings.TrimSpace(text) == "" || m.waiting {
			return m, nil
		}
		m.waiting = true
		return m, func() tea.Msg {
			reply, err := a.chat(context.Background(), text)
			return replyMsg{Text: reply, Err: err}
		}
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeyRunes, tea.KeySpace:
		m.input = append(m.input, msg.Runes...)
		if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
			m.input = append(m.input, ' ')
		}
		if a.voice.CursedMode() {
			a.ghost.PlayTypingSound()
		} else {
			a.keys.PlayTypingSound()
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Summoning..."
	}

	const orbWidth = 33
	held := m.st.Arbiter.Playing && m.st.Arbiter.Channel != priority.Ambient
	orb := renderOrb(m.frame, m.st.Effective, held)

	var info []string
	if held {
		info = append(info, channelStyle.Render(fmt.Sprintf("● %s", m.st.Arbiter.Channel)))
	} else {
		info = append(info, idleStyle.Render("○ ambience"))
	}
	info = append(info,
		dimStyle.Render(fmt.Sprintf("scene %s", m.st.Scene)),
		dimStyle.Render(fmt.Sprintf("ambient %.2f (%s)", m.st.Effective, ambientLabel(m.st))),
		dimStyle.Render(fmt.Sprintf("master %s", m.st.Master)),
	)
	if m.st.Cursed {
		info = append(info, channelStyle.Render("cursed"))
	}
	if m.st.Footsteps {
		info = append(info, dimStyle.Render("footsteps wandering"))
	}
	info = append(info, "", helpStyle.Render("nexus "+version))

	left := orb + strings.Join(info, "\n")

	rightWidth := max(m.width-orbWidth-1, 20)
	wrapWidth := max(rightWidth-2, 10)
	var right strings.Builder

	for i, p := range pages {
		label := fmt.Sprintf("%d %s", i+1, p)
		if p == m.page {
			right.WriteString(selectedStyle.Render(label))
		} else {
			right.WriteString(dimStyle.Render(label))
		}
		right.WriteString("\n")
	}
	right.WriteString("\n")

	switch {
	case m.waiting:
		right.WriteString(dimStyle.Render("the spirits stir...") + "\n")
	case m.lastText != "":
		lines := wrapText(m.lastText, wrapWidth)
		for i, line := range lines {
			right.WriteString(replyStyle.Render(line))
			if i == len(lines)-1 && m.copied {
				right.WriteString(" " + copiedStyle.Render("[✓ copied]"))
			}
			right.WriteString("\n")
		}
	default:
		right.WriteString(dimStyle.Render("The spirits are waiting") + "\n")
	}
	right.WriteString("\n")

	if m.chatting {
		right.WriteString(inputStyle.Render("> "+string(m.input)+"_") + "\n")
	}
	if m.notice != "" {
		right.WriteString(errorStyle.Render(m.notice) + "\n")
	}
	right.WriteString("\n")
	right.WriteString(helpKeyStyle.Render("1-7") + helpStyle.Render(" page  ") +
		helpKeyStyle.Render("enter") + helpStyle.Render(" speak  ") +
		helpKeyStyle.Render("m") + helpStyle.Render(" mute  ") +
		helpKeyStyle.Render("i") + helpStyle.Render(" intensity\n"))
	right.WriteString(helpKeyStyle.Render("v") + helpStyle.Render(" volume  ") +
		helpKeyStyle.Render("c") + helpStyle.Render(" curse  ") +
		helpKeyStyle.Render("f") + helpStyle.Render(" footsteps  ") +
		helpKeyStyle.Render("p") + helpStyle.Render(" persona  ") +
		helpKeyStyle.Render("y") + helpStyle.Render(" copy  ") +
		helpKeyStyle.Render("q") + helpStyle.Render(" quit"))

	leftPanel := lipgloss.NewStyle().Width(orbWidth - 1).Height(m.height).Render(left)
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).Render(right.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func ambientLabel(s status) string {
	switch {
	case s.Ambient.Muted:
		return "muted"
	case s.Ambient.Speaking:
		return "ducked for speech"
	case s.Ambient.Footsteps:
		return "ducked for footsteps"
	case s.Ambient.Whisper:
		return "whisper"
	}
	return string(s.Intensity)
}

// renderOrb draws a breathing orb in half-block pixels. It swells with the
// ambient level and turns red while a channel holds the floor.
func renderOrb(frame int, level float64, held bool) string {
	const charsW = 32
	const charsH = 11
	const pixH = charsH * 2

	cx := float64(charsW) / 2
	cy := float64(pixH) / 2
	breathe := math.Sin(float64(frame)*0.07)*0.4 + level*3

	radii := []float64{1.0, 2.2, 3.4, 4.6, 5.8, 7.0, 8.4, 9.8}
	styles, bg := &orbStylesCalm, &orbBgCalm
	if held {
		styles, bg = &orbStylesHeld, &orbBgHeld
		breathe = math.Sin(float64(frame)*0.25) * 0.8
	}

	pixel := func(x, y int) int {
		dx := float64(x) - cx
		dy := float64(y) - cy
		dist := math.Sqrt(dx*dx + dy*dy)
		for i, r := range radii {
			grow := breathe * float64(len(radii)-i) / float64(len(radii))
			if dist < min(r+grow, 10.5) {
				return i + 1
			}
		}
		return 0
	}

	var b strings.Builder
	for row := 0; row < charsH; row++ {
		for x := 0; x < charsW; x++ {
			top, bot := pixel(x, row*2), pixel(x, row*2+1)
			switch {
			case top == 0 && bot == 0:
				b.WriteString(" ")
			case top == bot:
				b.WriteString(styles[top].Render("█"))
			case bot == 0:
				b.WriteString(styles[top].Render("▀"))
			case top == 0:
				b.WriteString(styles[bot].Render("▄"))
			default:
				b.WriteString(bg[top][bot].Render("▀"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func notifyTUI(format string, args ...any) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()

	if p != nil {
		p.Send(noticeMsg{Text: fmt.Sprintf(format, args...)})
	}
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
