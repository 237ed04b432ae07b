package setup

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmetube/internal/config"
)

func typeText(m *wizardModel, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func enter(m *wizardModel) {
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestWizard_FreshConfig(t *testing.T) {
	m := newWizardModel(config.Defaults(), false)

	enter(m)
	require.Equal(t, stepMeTube, m.step)
	typeText(m, "http://nas.local:8081/")
	enter(m)
	require.Equal(t, stepChannel, m.step)

	typeText(m, "@ExampleChannel")
	enter(m)
	require.Equal(t, stepQuality, m.step)

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	enter(m)
	require.Equal(t, stepInterval, m.step)

	typeText(m, "30")
	enter(m)
	require.Equal(t, stepSummary, m.step)
	assert.True(t, m.schedule)
	assert.Contains(t, m.View(), "Sync every 30 minutes")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.Equal(t, stepDone, m.step)

	ac := m.result()
	assert.Equal(t, "http://nas.local:8081", ac.MeTube.URL)
	assert.Equal(t, "1080p", ac.Discovery.Quality)
	assert.Equal(t, "@ExampleChannel", ac.Schedule.Channel)
	assert.Equal(t, 30, ac.Schedule.IntervalMinutes)
}

func TestWizard_RejectsBadInput(t *testing.T) {
	m := newWizardModel(config.Defaults(), false)
	enter(m)

	typeText(m, "ftp://nas")
	enter(m)
	assert.Equal(t, stepMeTube, m.step)
	assert.Contains(t, m.errMsg, "metube.url")

	m.metubeInput.SetValue("")
	enter(m)
	require.Equal(t, stepChannel, m.step)
	assert.Equal(t, "http://localhost:8081", m.metubeURL)

	typeText(m, "https://www.youtube.com/playlist?list=PL123")
	enter(m)
	assert.Equal(t, stepChannel, m.step)
	assert.NotEmpty(t, m.errMsg)

	m.channelInput.SetValue("")
	enter(m)
	require.Equal(t, stepQuality, m.step)
	enter(m)
	assert.Equal(t, stepSummary, m.step, "no channel skips the schedule step")
}

func TestWizard_KeepExisting(t *testing.T) {
	base := config.Defaults()
	base.MeTube.URL = "http://existing:8081"
	m := newWizardModel(base, true)

	enter(m)
	require.Equal(t, stepConfigChoice, m.step)
	typeText(m, "k")
	assert.Equal(t, stepSummary, m.step)
	assert.False(t, m.override)
	assert.Equal(t, base, m.result())
}

func TestWizard_Cancel(t *testing.T) {
	m := newWizardModel(config.Defaults(), false)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotNil(t, cmd)
	assert.True(t, m.cancelled)
}

func TestScheduleArgs(t *testing.T) {
	ac := config.Defaults()
	ac.Schedule.Channel = "@ExampleChannel"
	assert.Equal(t,
		[]string{"--config", "/etc/ytmetube.yaml", "--channel", "@ExampleChannel", "--log-format", "json", "--count", "5"},
		ScheduleArgs(ac, "/etc/ytmetube.yaml"))
}
