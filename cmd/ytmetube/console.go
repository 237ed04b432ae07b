package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ytmetube/internal/history"
	"ytmetube/internal/metube"
	"ytmetube/internal/progress"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4682B4"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// console prints pipeline events as styled lines.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) Emit(e progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.Kind {
	case progress.KindLog:
		fmt.Fprintln(c.w, levelPrefix(e.Level)+" "+e.Message)
	case progress.KindVideosFound:
		fmt.Fprintf(c.w, "%s Found %d videos\n", levelPrefix(progress.LevelInfo), len(e.Videos))
		for i, v := range e.Videos {
			fmt.Fprintln(c.w, dimStyle.Render(fmt.Sprintf("  %d. %s", i+1, v)))
		}
	case progress.KindProgress:
		fmt.Fprintln(c.w, dimStyle.Render(fmt.Sprintf("[%d/%d] %s", e.Current, e.Total, e.Message)))
	}
}

func levelPrefix(l progress.Level) string {
	switch l {
	case progress.LevelSuccess:
		return successStyle.Render("✓")
	case progress.LevelWarning:
		return warningStyle.Render("!")
	case progress.LevelError:
		return errorStyle.Render("✗")
	default:
		return dimStyle.Render("•")
	}
}

func (c *console) Header(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, headerStyle.Render(title))
}

func (c *console) Summary(s progress.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, headerStyle.Render("Summary"))
	fmt.Fprintf(c.w, "Successful: %s\n", successStyle.Render(fmt.Sprint(s.Successful)))
	fmt.Fprintf(c.w, "Failed:     %s\n", failedCount(s.Failed))
	fmt.Fprintf(c.w, "Total:      %d\n", s.Total)
}

func failedCount(n int) string {
	if n == 0 {
		return fmt.Sprint(n)
	}
	return errorStyle.Render(fmt.Sprint(n))
}

func newTable(headers ...string) *table.Table {
	head := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#4682B4"))
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return head
			}
			return cell
		})
}

func renderRuns(runs []history.Run) string {
	t := newTable("ID", "Started", "Kind", "Target", "OK", "Failed", "Total", "Status")
	for _, r := range runs {
		target := r.Channel
		if target == "" {
			target = "-"
		}
		t.Row(shortID(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04"), r.Kind, target,
			fmt.Sprint(r.Successful), fmt.Sprint(r.Failed), fmt.Sprint(r.Total), status(r))
	}
	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func status(r history.Run) string {
	switch {
	case r.FinishedAt.IsZero():
		return "running"
	case r.Error != "":
		return "error: " + r.Error
	case r.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}

func renderSubmissions(subs []history.Submission) string {
	t := newTable("#", "Video", "Quality", "Result", "At")
	for _, s := range subs {
		result := "ok"
		if !s.Succeeded {
			result = "failed"
			if s.Error != "" {
				result += ": " + s.Error
			}
		}
		t.Row(fmt.Sprint(s.Seq), s.URL, s.Quality, result, s.SubmittedAt.Local().Format(time.TimeOnly))
	}
	return t.Render()
}

func renderQueue(h metube.History) string {
	if len(h.Queue)+len(h.Pending)+len(h.Done) == 0 {
		return "MeTube has no queued or finished downloads"
	}
	t := newTable("List", "ID", "Title", "Quality", "Status")
	add := func(list string, items []metube.Download) {
		for _, d := range items {
			title := d.Title
			if title == "" {
				title = d.URL
			}
			st := d.Status
			if d.Msg != "" {
				st = strings.TrimSpace(st + " " + d.Msg)
			}
			t.Row(list, d.ID, title, d.Quality, st)
		}
	}
	add("pending", h.Pending)
	add("queue", h.Queue)
	add("done", h.Done)
	return t.Render()
}
