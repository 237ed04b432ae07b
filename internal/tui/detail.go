package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"ytmetube/internal/history"
)

type detailPage struct {
	width    int
	height   int
	viewport viewport.Model
	run      *history.Run
	subs     []history.Submission
}

func (m detailPage) Init() tea.Cmd {
	return nil
}

func (m detailPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "backspace":
			return m, func() tea.Msg { return goToRunsMsg{} }
		case "ctrl+c":
			return m, tea.Quit
		case "k", "up":
			m.viewport.ScrollUp(1)
			return m, nil
		case "j", "down":
			m.viewport.ScrollDown(1)
			return m, nil
		case "g":
			m.viewport.GotoTop()
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width - 4
		m.height = msg.Height - 4
		if m.run != nil {
			m.viewport = setupViewport(m.width, m.height, *m.run, m.subs)
		}
		return m, nil
	case goToDetailMsg:
		r := msg.run
		m.run = &r
		m.subs = msg.subs
		m.viewport = setupViewport(m.width, m.height, r, m.subs)
		return m, nil
	}

	return m, nil
}

func (m detailPage) View() string {
	if m.run == nil {
		return "No run selected"
	}
	r := *m.run

	titleStyle := lipgloss.NewStyle().
		Foreground(darkBlue()).
		Bold(true).
		MarginBottom(1).
		Width(max(20, m.width-8))
	metadataStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		MarginBottom(1)

	title := titleStyle.Render(fmt.Sprintf("%s run: %s", r.Kind, runTarget(r)))
	meta := metadataStyle.Render(fmt.Sprintf("Started: %s • Finished: %s • Quality: %s • Format: %s • Status: %s",
		formatWhen(r.StartedAt), formatWhen(r.FinishedAt), r.Quality, r.Format, runStatus(r)))

	scrollPercent := min(1, max(0, m.viewport.ScrollPercent()))
	scroll := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Bold(true).
		Render(fmt.Sprintf("Scroll: %d%%", int(scrollPercent*100)))
	help := helpBar([]string{"j/k: scroll", "g/G: top/bottom", "esc/q: back"})

	content := lipgloss.JoinVertical(lipgloss.Left, title, meta, m.viewport.View(), scroll, help)
	border := lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(darkBlue())
	return pageLayout(border.Render(content))
}

func setupViewport(width, height int, r history.Run, subs []history.Submission) viewport.Model {
	contentWidth := max(20, width)
	vp := viewport.New(contentWidth, max(5, height-10))
	vp.SetContent(renderMarkdown(runMarkdown(r, subs), contentWidth))
	return vp
}

// runMarkdown lists a run's submissions as a markdown document.
func runMarkdown(r history.Run, subs []history.Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %d submitted, %d failed\n\n", r.Successful, r.Failed)
	if r.Kind == history.KindChannel {
		fmt.Fprintf(&b, "Asked for **%d** videos, discovered **%d**", r.Target, r.Discovered)
		if r.Filter {
			b.WriteString(" after filtering")
		}
		b.WriteString(".\n\n")
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "> Error: %s\n\n", r.Error)
	}
	if len(subs) == 0 {
		b.WriteString("_No videos were submitted._\n")
		return b.String()
	}
	b.WriteString("| # | Video | Quality | Result |\n|---|---|---|---|\n")
	for _, s := range subs {
		result := "ok"
		if !s.Succeeded {
			result = "failed"
			if s.Error != "" {
				result += ": " + strings.ReplaceAll(s.Error, "|", "/")
			}
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", s.Seq, s.URL, s.Quality, result)
	}
	return b.String()
}

func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithWordWrap(width),
		glamour.WithStandardStyle("dark"),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
