package tui

import (
	"github.com/charmbracelet/lipgloss"

	"ytmetube/internal/progress"
)

func lightBlue() lipgloss.Color {
	return lipgloss.Color("#87CEEB")
}

func darkBlue() lipgloss.Color {
	return lipgloss.Color("#4682B4")
}

func levelColor(l progress.Level) lipgloss.Color {
	switch l {
	case progress.LevelSuccess:
		return lipgloss.Color("2")
	case progress.LevelWarning:
		return lipgloss.Color("3")
	case progress.LevelError:
		return lipgloss.Color("1")
	default:
		return lipgloss.Color("7")
	}
}
