package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	menuLive = iota
	menuRuns
	menuSubmit
)

var menuLabels = []string{"Live", "Runs", "Submit"}

func pageLayout(content string) string {
	return lipgloss.NewStyle().
		Padding(0, 1).
		Render(content)
}

func renderMenu(activeItem int, width int) string {
	divider := strings.Repeat("─", max(0, width))

	styledItems := []string{}
	for index, label := range menuLabels {
		var style lipgloss.Style
		content := label + " [" + strconv.Itoa(index+1) + "]"
		if activeItem == index {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Underline(true)
		} else {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		}

		fullContent := style.Render(content)
		if index != len(menuLabels)-1 {
			fullContent = fullContent + " | "
		}
		styledItems = append(styledItems, fullContent)
	}

	menu := lipgloss.JoinHorizontal(lipgloss.Left, styledItems...)
	return lipgloss.JoinVertical(lipgloss.Left, menu, divider)
}

// menuKey maps the number keys to navigation messages.
func menuKey(key string) (any, bool) {
	switch key {
	case "1":
		return goToLiveMsg{}, true
	case "2":
		return goToRunsMsg{}, true
	case "3":
		return goToSubmitMsg{}, true
	}
	return nil, false
}
