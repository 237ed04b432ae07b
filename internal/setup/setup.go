// Package setup is the interactive first-run wizard: it asks for the MeTube instance,
// a channel to follow and download preferences, then writes the config file and
// optionally installs the schedule.
package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ytmetube/internal/config"
	"ytmetube/internal/launchd"
	"ytmetube/internal/metube"
	"ytmetube/internal/youtube"
)

var ErrCancelled = errors.New("setup cancelled")

// Run executes the interactive setup flow and writes the result to cfgPath.
func Run(ctx context.Context, cfgPath string) error {
	existing, err := config.LoadFile(cfgPath)
	if err != nil {
		return err
	}
	wiz := newWizardModel(existing, fileExists(cfgPath))
	res, err := tea.NewProgram(wiz, tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	wm, ok := res.(*wizardModel)
	if !ok || wm.cancelled {
		return ErrCancelled
	}

	ac := wm.result()
	if wm.override {
		if err := config.WriteConfig(cfgPath, ac); err != nil {
			return err
		}
		fmt.Printf("\nConfig written to %s\n", cfgPath)
	}

	if ac.Schedule.Channel != "" && wm.schedule {
		if runtime.GOOS != "darwin" {
			fmt.Println("\nNote: scheduling is only implemented for macOS (launchd).")
			fmt.Printf("Use cron or a systemd timer to run 'ytmetube --channel %s' periodically.\n", ac.Schedule.Channel)
		} else if path, err := InstallSchedule(ac, cfgPath, ""); err != nil {
			fmt.Printf("launchd install failed: %v\n", err)
		} else {
			fmt.Printf("launchd agent installed: %s\n", path)
		}
	}

	fmt.Println("\nSetup complete!")
	fmt.Println("- Run 'ytmetube --tui' to browse past runs")
	fmt.Println("- Run 'ytmetube mcp' to expose the tools to an MCP client")
	return nil
}

// InstallSchedule installs the launchd agent running ac's scheduled channel.
func InstallSchedule(ac config.AppConfig, cfgPath, label string) (string, error) {
	exe, err := os.Executable()
	if err != nil || strings.TrimSpace(exe) == "" {
		return "", fmt.Errorf("cannot discover program path")
	}
	if label == "" {
		label = launchd.DefaultLabel
	}
	return launchd.Install(launchd.InstallOptions{
		Label:           label,
		IntervalMinutes: ac.Schedule.IntervalMinutes,
		ProgramPath:     exe,
		ProgramArgs:     ScheduleArgs(ac, cfgPath),
	})
}

// ScheduleArgs are the arguments of one scheduled sync.
func ScheduleArgs(ac config.AppConfig, cfgPath string) []string {
	args := []string{"--config", cfgPath, "--channel", ac.Schedule.Channel, "--log-format", "json"}
	if ac.Discovery.Count > 0 {
		args = append(args, "--count", strconv.Itoa(ac.Discovery.Count))
	}
	return args
}

type wizardStep int

const (
	stepIntro wizardStep = iota
	stepConfigChoice
	stepMeTube
	stepChannel
	stepQuality
	stepInterval
	stepSummary
	stepDone
)

type wizardModel struct {
	step      wizardStep
	base      config.AppConfig
	hasCfg    bool
	override  bool
	cancelled bool
	schedule  bool

	metubeInput   textinput.Model
	channelInput  textinput.Model
	intervalInput textinput.Model
	quality       int

	metubeURL string
	channel   string
	interval  int

	errMsg string
}

func newWizardModel(base config.AppConfig, hasCfg bool) *wizardModel {
	mt := textinput.New()
	mt.Placeholder = base.MeTube.URL
	mt.Focus()

	ch := textinput.New()
	ch.Placeholder = "https://www.youtube.com/@SomeChannel (optional)"
	ch.SetValue(base.Schedule.Channel)

	iv := textinput.New()
	iv.Placeholder = strconv.Itoa(base.Schedule.IntervalMinutes)

	quality := 0
	for i, q := range metube.Qualities {
		if string(q) == base.Discovery.Quality {
			quality = i
		}
	}

	return &wizardModel{
		step:          stepIntro,
		base:          base,
		hasCfg:        hasCfg,
		metubeInput:   mt,
		channelInput:  ch,
		intervalInput: iv,
		quality:       quality,
		metubeURL:     base.MeTube.URL,
		channel:       base.Schedule.Channel,
		interval:      base.Schedule.IntervalMinutes,
	}
}

func (m *wizardModel) Init() tea.Cmd { return textinput.Blink }

func (m *wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if key.Type == tea.KeyCtrlC || (key.Type == tea.KeyEsc && m.step != stepDone) {
		m.cancelled = true
		return m, tea.Quit
	}

	switch m.step {
	case stepIntro:
		if key.Type == tea.KeyEnter {
			if m.hasCfg {
				m.step = stepConfigChoice
			} else {
				m.override = true
				m.step = stepMeTube
			}
		}
	case stepConfigChoice:
		switch strings.ToLower(key.String()) {
		case "o":
			m.override = true
			m.step = stepMeTube
		case "k":
			m.override = false
			m.step = stepSummary
		}
	case stepMeTube:
		if key.Type == tea.KeyEnter {
			v := strings.TrimRight(strings.TrimSpace(m.metubeInput.Value()), "/")
			if v == "" {
				v = m.base.MeTube.URL
			}
			candidate := m.base
			candidate.MeTube.URL = v
			if err := candidate.Validate(); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
			m.metubeURL = v
			m.errMsg = ""
			m.step = stepChannel
			m.channelInput.Focus()
			return m, nil
		}
		var cmd tea.Cmd
		m.metubeInput, cmd = m.metubeInput.Update(msg)
		return m, cmd
	case stepChannel:
		if key.Type == tea.KeyEnter {
			v := strings.TrimSpace(m.channelInput.Value())
			if v != "" {
				if _, err := youtube.ParseChannelRef(v); err != nil {
					m.errMsg = err.Error()
					return m, nil
				}
			}
			m.channel = v
			m.errMsg = ""
			m.step = stepQuality
			return m, nil
		}
		var cmd tea.Cmd
		m.channelInput, cmd = m.channelInput.Update(msg)
		return m, cmd
	case stepQuality:
		switch key.String() {
		case "left", "h":
			m.quality = (m.quality + len(metube.Qualities) - 1) % len(metube.Qualities)
		case "right", "l":
			m.quality = (m.quality + 1) % len(metube.Qualities)
		case "enter":
			if m.channel == "" {
				m.step = stepSummary
			} else {
				m.step = stepInterval
				m.intervalInput.Focus()
			}
		}
	case stepInterval:
		if key.Type == tea.KeyEnter {
			v := strings.TrimSpace(m.intervalInput.Value())
			switch n, err := strconv.Atoi(v); {
			case v == "":
				m.schedule = true
			case err != nil || n < 0:
				m.errMsg = "Please enter a number of minutes (0 to skip scheduling)."
				return m, nil
			case n == 0:
				m.schedule = false
			default:
				m.interval = n
				m.schedule = true
			}
			m.errMsg = ""
			m.step = stepSummary
			return m, nil
		}
		var cmd tea.Cmd
		m.intervalInput, cmd = m.intervalInput.Update(msg)
		return m, cmd
	case stepSummary:
		if key.Type == tea.KeyEnter {
			m.step = stepDone
			return m, tea.Quit
		}
	}
	return m, nil
}

// result merges the answers into the starting configuration.
func (m *wizardModel) result() config.AppConfig {
	ac := m.base
	if !m.override {
		return ac
	}
	ac.MeTube.URL = m.metubeURL
	ac.Discovery.Quality = string(metube.Qualities[m.quality])
	ac.Schedule.Channel = m.channel
	ac.Schedule.IntervalMinutes = m.interval
	return ac
}

func (m *wizardModel) View() string {
	b := &strings.Builder{}
	switch m.step {
	case stepIntro:
		fmt.Fprintln(b, "Welcome to ytmetube setup!")
		fmt.Fprintln(b, "This wizard points ytmetube at your MeTube instance and can schedule a channel sync.")
		fmt.Fprintln(b, "\nPress Enter to begin · Esc to quit")
	case stepConfigChoice:
		fmt.Fprintln(b, "Found an existing config file.")
		fmt.Fprintln(b, "Override it (a .bak copy is kept) or keep it?")
		fmt.Fprintln(b, "[o] Override    [k] Keep existing")
	case stepMeTube:
		fmt.Fprintln(b, "Step 1 – MeTube")
		fmt.Fprintln(b, "Base URL of your MeTube instance:")
		fmt.Fprintln(b, m.metubeInput.View())
	case stepChannel:
		fmt.Fprintln(b, "Step 2 – Channel (optional)")
		fmt.Fprintln(b, "Channel URL, @handle or channel id to sync on a schedule. Leave empty to skip.")
		fmt.Fprintln(b, m.channelInput.View())
	case stepQuality:
		fmt.Fprintln(b, "Step 3 – Quality")
		fmt.Fprintf(b, "Download quality: ‹ %s ›  (←/→ to change)\n", metube.Qualities[m.quality])
	case stepInterval:
		fmt.Fprintln(b, "Step 4 – Schedule")
		fmt.Fprintf(b, "Sync %s every how many minutes? [%d] (0 skips scheduling)\n", m.channel, m.interval)
		fmt.Fprintln(b, m.intervalInput.View())
	case stepSummary:
		ac := m.result()
		fmt.Fprintln(b, "Summary")
		fmt.Fprintf(b, "MeTube:  %s\n", ac.MeTube.URL)
		fmt.Fprintf(b, "Quality: %s\n", ac.Discovery.Quality)
		if ac.Schedule.Channel != "" {
			fmt.Fprintf(b, "Channel: %s\n", ac.Schedule.Channel)
			if m.schedule {
				fmt.Fprintf(b, "Sync every %d minutes\n", ac.Schedule.IntervalMinutes)
			}
		}
		if !m.override {
			fmt.Fprintln(b, "\nKeeping existing config.")
		}
		fmt.Fprintln(b, "\nPress Enter to finish · Esc to cancel")
	case stepDone:
		fmt.Fprintln(b, "Finishing…")
	}
	if m.errMsg != "" {
		fmt.Fprintf(b, "\n%s\n", m.errMsg)
	}
	if m.step > stepIntro && m.step < stepSummary {
		fmt.Fprintln(b, "\nPress Enter to continue")
	}
	return b.String()
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(config.ExpandPath(p))
	return err == nil
}
