package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ytmetube/internal/history"
)

var errHistoryDisabled = errors.New("history is disabled; set history.enabled: true in the config file")

type runsLoadedMsg struct {
	runs []history.Run
	err  error
}

type runsPage struct {
	store *history.Store
	items []history.Run
	table *table.Table
	err   error

	ready       bool
	cursor      int
	currentPage int
	totalPages  int
	pageSize    int
	tableWidth  int
	tableHeight int
	whenWidth   int
	kindWidth   int
	targetWidth int
	countsWidth int
	statusWidth int
}

func newRunsPage(store *history.Store) runsPage {
	return runsPage{store: store, pageSize: 10}
}

func (m runsPage) load() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		if store == nil {
			return runsLoadedMsg{err: errHistoryDisabled}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runs, err := store.RecentRuns(ctx, 500)
		return runsLoadedMsg{runs: runs, err: err}
	}
}

func (m runsPage) open(r history.Run) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		subs, err := store.Submissions(ctx, r.ID)
		if err != nil {
			return runsLoadedMsg{err: err}
		}
		return goToDetailMsg{run: r, subs: subs}
	}
}

func (m runsPage) Init() tea.Cmd {
	return nil
}

func (m runsPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.items = msg.runs
		}
		if m.ready {
			m.configureTable(m.tableWidth+2, m.tableHeight-4)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "enter":
			globalCursor := m.currentPage*m.pageSize + m.cursor
			if m.store != nil && globalCursor < len(m.items) {
				return m, m.open(m.items[globalCursor])
			}
			return m, nil
		case "r":
			return m, m.load()
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			} else if m.currentPage > 0 {
				m.currentPage--
				m.cursor = m.pageSize - 1
			}
			m.updateTableRows()
			return m, nil
		case "j", "down":
			itemsOnCurrentPage := min(m.pageSize, len(m.items)-m.currentPage*m.pageSize)
			if m.cursor < itemsOnCurrentPage-1 {
				m.cursor++
			} else if m.currentPage < m.totalPages-1 {
				m.currentPage++
				m.cursor = 0
			}
			m.updateTableRows()
			return m, nil
		case "g":
			m.currentPage = 0
			m.cursor = 0
			m.updateTableRows()
			return m, nil
		case "G":
			if m.totalPages == 0 {
				return m, nil
			}
			m.currentPage = m.totalPages - 1
			lastPageItems := len(m.items) % m.pageSize
			if lastPageItems == 0 {
				lastPageItems = m.pageSize
			}
			m.cursor = lastPageItems - 1
			m.updateTableRows()
			return m, nil
		case "l":
			if m.currentPage < m.totalPages-1 {
				m.currentPage++
				m.cursor = 0
				m.updateTableRows()
				// border rendering glitches without a full redraw
				return m, tea.ClearScreen
			}
			return m, nil
		case "h":
			if m.currentPage > 0 {
				m.currentPage--
				m.cursor = 0
				m.updateTableRows()
				return m, tea.ClearScreen
			}
			return m, nil
		}
		if next, ok := menuKey(msg.String()); ok {
			return m, func() tea.Msg { return next }
		}
	case tea.WindowSizeMsg:
		m.tableWidth = msg.Width - 2
		m.tableHeight = msg.Height
		m.configureTable(msg.Width, msg.Height-4)
		m.ready = true
		return m, tea.ClearScreen
	}

	return m, nil
}

func (m runsPage) View() string {
	if !m.ready {
		return "...Loading"
	}

	menu := renderMenu(menuRuns, m.tableWidth)
	if m.err != nil {
		msg := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error())
		return pageLayout(lipgloss.JoinVertical(lipgloss.Left, menu, msg))
	}
	if len(m.items) == 0 || m.table == nil {
		return pageLayout(lipgloss.JoinVertical(lipgloss.Left, menu, "No runs recorded yet"))
	}

	pageInfo := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).
		Render(fmt.Sprintf("Page %d/%d • %d runs", m.currentPage+1, max(1, m.totalPages), len(m.items)))
	help := helpBar([]string{"j/k: move", "l/h: page", "g/G: home/end", "Space: submissions", "r: reload", "q: quit"})

	return pageLayout(lipgloss.JoinVertical(lipgloss.Left, menu, m.table.Render(), pageInfo, help))
}

func (m *runsPage) updateTableRows() {
	if len(m.items) == 0 {
		m.table = nil
		return
	}

	headers := []string{
		truncateString("Started", m.whenWidth),
		truncateString("Kind", m.kindWidth),
		truncateString("Channel", m.targetWidth),
		truncateString("OK/Failed/Total", m.countsWidth),
		truncateString("Status", m.statusWidth),
	}

	var rows [][]string
	startIdx := m.currentPage * m.pageSize
	endIdx := min(startIdx+m.pageSize, len(m.items))
	for i := startIdx; i < endIdx; i++ {
		r := m.items[i]
		rows = append(rows, []string{
			truncateString(formatWhen(r.StartedAt), m.whenWidth),
			truncateString(r.Kind, m.kindWidth),
			truncateString(runTarget(r), m.targetWidth),
			truncateString(fmt.Sprintf("%d/%d/%d", r.Successful, r.Failed, r.Total), m.countsWidth),
			truncateString(runStatus(r), m.statusWidth),
		})
	}

	if n := len(rows); n > 0 {
		if m.cursor >= n {
			m.cursor = n - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
	}

	lightBlue := lightBlue()
	darkBlue := darkBlue()
	headerStyle := lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(darkBlue).
		Align(lipgloss.Center)
	cursor := m.cursor

	m.table = table.New().
		Width(m.tableWidth).
		Border(lipgloss.ThickBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(darkBlue)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row == cursor {
				return lipgloss.NewStyle().
					Padding(0, 1).
					Background(lightBlue).
					Foreground(lipgloss.Color("0"))
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// configureTable sizes the columns to the terminal and repaginates.
func (m *runsPage) configureTable(width, height int) {
	m.pageSize = max(5, height-6)
	m.totalPages = (len(m.items) + m.pageSize - 1) / m.pageSize

	if m.currentPage >= m.totalPages {
		m.currentPage = max(0, m.totalPages-1)
	}
	if m.currentPage < 0 {
		m.currentPage = 0
	}
	if len(m.items) > 0 {
		globalCursor := m.currentPage*m.pageSize + m.cursor
		if globalCursor >= len(m.items) {
			globalCursor = len(m.items) - 1
			m.currentPage = globalCursor / m.pageSize
			m.cursor = globalCursor % m.pageSize
		}
	}

	m.whenWidth = 16
	m.kindWidth = 7
	m.countsWidth = 15
	// 2 border chars each side plus 3 padding per column
	borderPaddingWidth := 4 + 3*5
	remaining := width - m.whenWidth - m.kindWidth - m.countsWidth - borderPaddingWidth
	m.targetWidth = max(20, remaining*70/100)
	m.statusWidth = max(8, remaining-m.targetWidth)

	m.updateTableRows()
}
