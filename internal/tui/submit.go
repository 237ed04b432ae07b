package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ytmetube/internal/metube"
	"ytmetube/internal/run"
	"ytmetube/internal/youtube"
)

type submitPage struct {
	runner  *run.Runner
	width   int
	height  int
	err     error
	input   textinput.Model
	quality int
}

func newSubmitPage(runner *run.Runner) submitPage {
	return submitPage{runner: runner, input: initializeInput()}
}

func initializeInput() textinput.Model {
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	input.Width = 50
	input.Focus()
	return input
}

func (m submitPage) Init() tea.Cmd {
	return nil
}

func (m submitPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			if m.input.Focused() {
				return m, m.submit()
			}
		case tea.KeyTab:
			if m.input.Focused() {
				m.input.Blur()
			} else {
				m.input.Focus()
			}
			return m, nil
		}
		if !m.input.Focused() {
			switch msg.String() {
			case "esc", "q", "ctrl+c":
				return m, tea.Quit
			case "left", "h":
				m.quality = (m.quality + len(metube.Qualities) - 1) % len(metube.Qualities)
				return m, nil
			case "right", "l":
				m.quality = (m.quality + 1) % len(metube.Qualities)
				return m, nil
			}
			if next, ok := menuKey(msg.String()); ok {
				return m, func() tea.Msg { return next }
			}
			return m, nil
		}
		switch msg.String() {
		case "esc":
			m.input.Blur()
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	case goToSubmitMsg:
		m.err = nil
		m.input.Focus()
		return m, textinput.Blink
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m *submitPage) submit() tea.Cmd {
	videoURL := strings.TrimSpace(m.input.Value())
	if videoURL == "" {
		m.err = errors.New("enter a video URL")
		return nil
	}
	if youtube.ExtractYouTubeID(videoURL) == "" {
		m.err = fmt.Errorf("%q does not look like a YouTube video URL", videoURL)
		return nil
	}
	if m.runner == nil {
		m.err = errors.New("no runner configured")
		return nil
	}
	if m.runner.Busy() {
		m.err = errors.New("an operation is already in progress")
		return nil
	}
	m.err = nil
	m.input.SetValue("")
	runner := m.runner
	prefs := metube.Preferences{Quality: metube.Qualities[m.quality]}
	start := startJobMsg{
		label: fmt.Sprintf("Submitting %s (%s)", videoURL, prefs.Quality),
		job: func(ctx context.Context) (metube.Summary, error) {
			return runner.Single(ctx, videoURL, prefs)
		},
	}
	return func() tea.Msg { return start }
}

func (m submitPage) View() string {
	instructions := lipgloss.NewStyle().
		MarginTop(min(m.height/4, 10)).
		MarginBottom(2).
		Render("Paste a video URL to send it straight to MeTube")

	borderColor := lipgloss.Color("8")
	if m.input.Focused() {
		borderColor = lipgloss.Color("15")
	}
	input := lipgloss.NewStyle().
		Width(50).
		AlignHorizontal(lipgloss.Left).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(m.input.View())

	quality := lipgloss.NewStyle().MarginTop(1).Render(
		"Quality: " + lipgloss.NewStyle().Foreground(lightBlue()).Bold(!m.input.Focused()).Render("‹ "+string(metube.Qualities[m.quality])+" ›"))

	var help string
	if m.input.Focused() {
		help = helpBar([]string{"Enter: submit", "Tab: choose quality", "Esc: unfocus"})
	} else {
		help = helpBar([]string{"←/→: quality", "Tab: edit URL", "1: live", "2: runs", "q: quit"})
	}

	var errLine string
	if m.err != nil {
		errLine = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error())
	}

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		renderMenu(menuSubmit, m.width),
		instructions,
		input,
		quality,
		errLine,
		lipgloss.NewStyle().MarginTop(2).Render(help),
	)
	return pageLayout(content)
}
