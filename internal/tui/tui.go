// Package tui is the terminal interface: follow a run live, browse past runs and submit
// single videos.
package tui

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"ytmetube/internal/history"
	"ytmetube/internal/metube"
	"ytmetube/internal/progress"
	"ytmetube/internal/run"
)

type viewMode int

const (
	liveView viewMode = iota
	runsView
	detailView
	submitView
)

// Job is a unit of work shown on the live page.
type Job func(ctx context.Context) (metube.Summary, error)

// Navigation messages
type goToLiveMsg struct{}
type goToRunsMsg struct{}
type goToSubmitMsg struct{}
type goToDetailMsg struct {
	run  history.Run
	subs []history.Submission
}

type eventMsg progress.Event

type startJobMsg struct {
	label string
	job   Job
}

type jobDoneMsg struct {
	sum metube.Summary
	err error
}

// Bridge forwards runner events into a running program. It drops events until the
// program is attached.
type Bridge struct {
	mu sync.Mutex
	p  *tea.Program
}

func NewBridge() *Bridge { return &Bridge{} }

func (b *Bridge) Emit(e progress.Event) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p != nil {
		p.Send(eventMsg(e))
	}
}

func (b *Bridge) attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

// Options configure Run. Store may be nil when history is disabled.
type Options struct {
	Runner *run.Runner
	Store  *history.Store
	// Bridge must be the sink (or part of it) the runner was built with.
	Bridge *Bridge
	// Job starts on the live page as soon as the program does. Its result is not
	// reported by Run; capture it in the closure.
	Job      Job
	JobLabel string
}

type rootPage struct {
	ctx        context.Context
	viewMode   viewMode
	livePage   livePage
	runsPage   runsPage
	detailPage detailPage
	submitPage submitPage
	width      int
	height     int
	err        error
}

func newRoot(ctx context.Context, opts Options) rootPage {
	m := rootPage{
		ctx:        ctx,
		livePage:   newLivePage(ctx),
		runsPage:   newRunsPage(opts.Store),
		submitPage: newSubmitPage(opts.Runner),
	}
	if opts.Job != nil {
		m.livePage.pending = &startJobMsg{label: opts.JobLabel, job: opts.Job}
	} else if opts.Store != nil {
		m.viewMode = runsView
	} else {
		m.viewMode = submitView
	}
	return m
}

func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newRoot(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if opts.Bridge != nil {
		opts.Bridge.attach(p)
		defer opts.Bridge.attach(nil)
	}
	_, err := p.Run()
	return err
}

func (m rootPage) Init() tea.Cmd {
	cmds := []tea.Cmd{m.livePage.Init()}
	if m.viewMode == runsView {
		cmds = append(cmds, m.runsPage.load())
	}
	return tea.Batch(cmds...)
}

func (m rootPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case eventMsg, jobDoneMsg, spinner.TickMsg:
		m.livePage, cmd = update[livePage](m.livePage, msg)
		return m, cmd
	case startJobMsg:
		m.viewMode = liveView
		m.livePage, cmd = update[livePage](m.livePage, msg)
		return m, cmd
	case runsLoadedMsg:
		m.runsPage, cmd = update[runsPage](m.runsPage, msg)
		return m, cmd
	case goToLiveMsg:
		m.viewMode = liveView
		return m, nil
	case goToRunsMsg:
		m.viewMode = runsView
		return m, m.runsPage.load()
	case goToSubmitMsg:
		m.viewMode = submitView
		m.submitPage, cmd = update[submitPage](m.submitPage, msg)
		return m, cmd
	case goToDetailMsg:
		m.viewMode = detailView
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
		return m, cmd
	case tea.WindowSizeMsg:
		var cmds []tea.Cmd

		m.livePage, cmd = update[livePage](m.livePage, msg)
		cmds = append(cmds, cmd)

		m.runsPage, cmd = update[runsPage](m.runsPage, msg)
		cmds = append(cmds, cmd)

		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
		cmds = append(cmds, cmd)

		m.submitPage, cmd = update[submitPage](m.submitPage, msg)
		cmds = append(cmds, cmd)

		m.width = msg.Width - 4
		m.height = msg.Height - 4
		return m, tea.Batch(cmds...)
	}

	switch m.viewMode {
	case liveView:
		m.livePage, cmd = update[livePage](m.livePage, msg)
	case runsView:
		m.runsPage, cmd = update[runsPage](m.runsPage, msg)
	case detailView:
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
	case submitView:
		m.submitPage, cmd = update[submitPage](m.submitPage, msg)
	}
	return m, cmd
}

func (m rootPage) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v", m.err)
	}

	switch m.viewMode {
	case liveView:
		return m.livePage.View()
	case runsView:
		return m.runsPage.View()
	case detailView:
		return m.detailPage.View()
	case submitView:
		return m.submitPage.View()
	default:
		return "Unknown View"
	}
}

func update[T any](model tea.Model, msg tea.Msg) (T, tea.Cmd) {
	newModel, cmd := model.Update(msg)
	return newModel.(T), cmd
}
