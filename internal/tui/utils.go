package tui

import (
	"time"

	"ytmetube/internal/history"
)

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func runStatus(r history.Run) string {
	switch {
	case r.Error != "":
		return "error"
	case r.FinishedAt.IsZero():
		return "running"
	case r.Total == 0:
		return "nothing to do"
	case r.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}

func runTarget(r history.Run) string {
	if r.Channel != "" {
		return r.Channel
	}
	return r.Kind
}
