package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ytmetube/internal/progress"
)

const maxLogLines = 200

type logLine struct {
	level progress.Level
	text  string
}

type livePage struct {
	ctx     context.Context
	spinner spinner.Model
	bar     bar.Model
	pending *startJobMsg

	label   string
	running bool
	current int
	total   int
	status  string
	lines   []logLine
	summary *progress.Summary
	err     error

	width  int
	height int
}

func newLivePage(ctx context.Context) livePage {
	return livePage{
		ctx:     ctx,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(darkBlue()))),
		bar:     bar.New(bar.WithSolidFill(string(darkBlue()))),
	}
}

func (m livePage) Init() tea.Cmd {
	if m.pending == nil {
		return nil
	}
	start := *m.pending
	return func() tea.Msg { return start }
}

func (m livePage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startJobMsg:
		if m.running {
			return m, nil
		}
		m.pending = nil
		m.label = msg.label
		m.running = true
		m.current, m.total = 0, 0
		m.status = ""
		m.lines = nil
		m.summary = nil
		m.err = nil
		job, ctx := msg.job, m.ctx
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
			sum, err := job(ctx)
			return jobDoneMsg{sum: sum, err: err}
		})
	case jobDoneMsg:
		m.running = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		if m.summary == nil && msg.sum.Total > 0 {
			s := msg.sum.Progress()
			m.summary = &s
		}
		return m, nil
	case eventMsg:
		m.apply(progress.Event(msg))
		return m, nil
	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		if next, ok := menuKey(msg.String()); ok {
			return m, func() tea.Msg { return next }
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width - 4
		m.height = msg.Height - 4
		m.bar.Width = max(10, m.width-12)
	}
	return m, nil
}

func (m *livePage) apply(e progress.Event) {
	switch e.Kind {
	case progress.KindLog:
		m.appendLine(e.Level, e.Message)
	case progress.KindProgress:
		m.current, m.total = e.Current, e.Total
		m.status = e.Message
	case progress.KindVideosFound:
		m.appendLine(progress.LevelInfo, fmt.Sprintf("Found %d videos", len(e.Videos)))
	case progress.KindComplete:
		m.summary = e.Summary
	}
}

func (m *livePage) appendLine(level progress.Level, text string) {
	m.lines = append(m.lines, logLine{level: level, text: text})
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

func (m livePage) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.current) / float64(m.total)
}

func (m livePage) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(darkBlue())

	var title string
	switch {
	case m.running:
		title = m.spinner.View() + " " + titleStyle.Render(m.label)
	case m.label != "":
		title = titleStyle.Render("Finished: " + m.label)
	default:
		title = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Nothing running. Press 3 to submit a video.")
	}

	counter := ""
	if m.total > 0 {
		counter = fmt.Sprintf(" %d/%d", m.current, m.total)
	}
	progressLine := m.bar.ViewAs(m.percent()) + counter
	status := lipgloss.NewStyle().Foreground(lightBlue()).Render(truncateString(m.status, max(20, m.width)))

	tail := max(3, m.height-12)
	start := max(0, len(m.lines)-tail)
	var log []string
	for _, l := range m.lines[start:] {
		log = append(log, lipgloss.NewStyle().Foreground(levelColor(l.level)).Render(truncateString(l.text, max(20, m.width))))
	}

	sections := []string{renderMenu(menuLive, m.width), title, progressLine, status, strings.Join(log, "\n")}
	if m.summary != nil {
		sections = append(sections, summaryLine(*m.summary))
	}
	if m.err != nil {
		sections = append(sections, lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render("Error: "+m.err.Error()))
	}
	sections = append(sections, helpBar([]string{"1/2/3: switch page", "q: quit"}))
	return pageLayout(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func summaryLine(s progress.Summary) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(levelColor(progress.LevelSuccess))
	if s.Failed > 0 {
		style = style.Foreground(levelColor(progress.LevelWarning))
	}
	return style.Render(fmt.Sprintf("Successful: %d  Failed: %d  Total: %d", s.Successful, s.Failed, s.Total))
}
