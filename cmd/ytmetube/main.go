package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"ytmetube/internal/config"
	"ytmetube/internal/history"
	"ytmetube/internal/launchd"
	"ytmetube/internal/logger"
	"ytmetube/internal/metube"
	"ytmetube/internal/progress"
	"ytmetube/internal/run"
	"ytmetube/internal/server"
	"ytmetube/internal/setup"
	"ytmetube/internal/tui"
	"ytmetube/internal/version"
	"ytmetube/internal/web"
	"ytmetube/internal/youtube"
)

// usageError marks invalid invocations; they exit with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, "run 'ytmetube --help' for usage")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "ytmetube",
		Usage:   "Send the latest videos of a YouTube channel to MeTube",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (default ~/.config/ytmetube/config.yaml)"},
			&cli.StringFlag{Name: "metube-url", Usage: "MeTube base URL", Sources: cli.EnvVars("METUBE_URL")},
			&cli.StringFlag{Name: "channel", Aliases: []string{"c"}, Usage: "channel URL, @handle, /c/ or /user/ URL"},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "number of videos to submit (default from config: 5)"},
			&cli.StringFlag{Name: "quality", Usage: "best, 2160p, 1440p, 1080p, 720p, 480p, worst or audio"},
			&cli.StringFlag{Name: "format", Usage: "any, mp4, m4a, mp3, opus, wav or flac"},
			&cli.StringFlag{Name: "test-video", Usage: "submit this single video URL and exit"},
			&cli.BoolFlag{Name: "no-filter", Usage: "submit the latest uploads without skipping Shorts, livestreams or member-only videos"},
			&cli.BoolFlag{Name: "tui", Usage: "show the terminal interface"},
			&cli.BoolFlag{Name: "no-history", Usage: "do not record this run in the history database"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "console or json"},
		},
		Action: rootAction,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the dashboard HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default from config: 127.0.0.1:8080)"},
					&cli.StringSliceFlag{Name: "allow-origin", Usage: "CORS origin allowed to call the API (repeatable)"},
				},
				Action: serveAction,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdio",
				Action: mcpAction,
			},
			{
				Name:  "history",
				Usage: "Show recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of runs"},
					&cli.StringFlag{Name: "run", Usage: "show the submissions of this run id"},
				},
				Action: historyAction,
			},
			{
				Name:   "queue",
				Usage:  "Show the MeTube queue and finished downloads",
				Action: queueAction,
			},
			{
				Name:      "delete",
				Usage:     "Remove entries from the MeTube queue or history",
				ArgsUsage: "<id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "where", Value: string(metube.WhereQueue), Usage: "queue or done"},
				},
				Action: deleteAction,
			},
			{
				Name:  "schedule",
				Usage: "Run a channel sync periodically (macOS launchd)",
				Commands: []*cli.Command{
					{
						Name:  "install",
						Usage: "Install and load the launchd agent",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "label", Value: launchd.DefaultLabel, Usage: "launchd label"},
							&cli.IntFlag{Name: "interval-minutes", Usage: "minutes between runs (default from config: 60)"},
							&cli.StringFlag{Name: "plist", Usage: "custom plist path (default ~/Library/LaunchAgents/<label>.plist)"},
							&cli.StringFlag{Name: "log-file", Usage: "agent log file"},
						},
						Action: scheduleInstallAction,
					},
					{
						Name:  "uninstall",
						Usage: "Unload and remove the launchd agent",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "label", Value: launchd.DefaultLabel, Usage: "launchd label"},
							&cli.StringFlag{Name: "plist", Usage: "path to plist (default ~/Library/LaunchAgents/<label>.plist)"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							if err := launchd.Uninstall(c.String("label"), c.String("plist")); err != nil {
								return err
							}
							fmt.Println("launchd agent unloaded and removed")
							return nil
						},
					},
					{
						Name:  "status",
						Usage: "Show whether the agent is loaded",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "label", Value: launchd.DefaultLabel, Usage: "launchd label"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							_, state := launchd.Status(c.String("label"))
							fmt.Println(state)
							return nil
						},
					},
				},
			},
			{
				Name:  "setup",
				Usage: "Interactive first-run configuration",
				Action: func(ctx context.Context, c *cli.Command) error {
					return setup.Run(ctx, configPath(c))
				},
			},
			{
				Name:  "config",
				Usage: "Manage the config file",
				Commands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a config file with the default settings",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file (a backup is kept)"},
						},
						Action: configInitAction,
					},
					{
						Name:  "path",
						Usage: "Print the config file location",
						Action: func(ctx context.Context, c *cli.Command) error {
							fmt.Println(configPath(c))
							return nil
						},
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Println("ytmetube", version.GetVersion())
					return nil
				},
			},
		},
	}
}

func configPath(c *cli.Command) string {
	if p := strings.TrimSpace(c.String("config")); p != "" {
		return config.ExpandPath(p)
	}
	p, err := config.DefaultConfigPath()
	if err != nil {
		return ""
	}
	return p
}

// loadConfig reads the config file and applies the command line on top.
func loadConfig(c *cli.Command) (config.AppConfig, error) {
	ac, err := config.LoadFile(configPath(c))
	if err != nil {
		return ac, err
	}
	if c.IsSet("metube-url") {
		ac.MeTube.URL = strings.TrimRight(strings.TrimSpace(c.String("metube-url")), "/")
	}
	if c.IsSet("count") {
		ac.Discovery.Count = c.Int("count")
	}
	if c.IsSet("quality") {
		ac.Discovery.Quality = c.String("quality")
	}
	if c.IsSet("format") {
		ac.Discovery.Format = c.String("format")
	}
	if c.Bool("no-filter") {
		ac.Discovery.Filter = false
	}
	if c.Bool("no-history") {
		ac.History.Enabled = false
	}
	if c.IsSet("log-level") {
		ac.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		ac.Log.Format = c.String("log-format")
	}
	if err := ac.Validate(); err != nil {
		return ac, usageError{msg: err.Error()}
	}
	if _, err := run.Preferences(ac); err != nil {
		return ac, usageError{msg: err.Error()}
	}
	return ac, nil
}

func newLogger(ac config.AppConfig) logger.Logger {
	return logger.New(logger.Options{Level: ac.Log.Level, Format: ac.Log.Format})
}

// openHistory opens the history store, or returns nil when it is disabled or broken.
func openHistory(ac config.AppConfig, log logger.Logger) *history.Store {
	if !ac.History.Enabled {
		return nil
	}
	store, err := history.OpenStore(ac.HistoryPath())
	if err != nil {
		log.Warn().Err(err).Str("path", ac.HistoryPath()).Msg("history disabled for this run")
		return nil
	}
	return store
}

func rootAction(ctx context.Context, c *cli.Command) error {
	testVideo := strings.TrimSpace(c.String("test-video"))
	channel := strings.TrimSpace(c.String("channel"))
	useTUI := c.Bool("tui")

	if testVideo == "" && channel == "" && !useTUI {
		return usagef("either --channel or --test-video is required")
	}
	if testVideo != "" && channel != "" {
		return usagef("--channel and --test-video cannot be combined")
	}
	if channel != "" {
		if _, err := youtube.ParseChannelRef(channel); err != nil {
			return usagef("invalid --channel: %v", err)
		}
	}
	ac, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(ac)
	store := openHistory(ac, log)
	if store != nil {
		defer store.Close()
	}

	if useTUI {
		return runTUI(ctx, ac, store, log, channel, testVideo)
	}

	out := newConsole(os.Stdout)
	runner, err := run.Build(ac, store, out, log)
	if err != nil {
		return usageError{msg: err.Error()}
	}

	var sum metube.Summary
	if testVideo != "" {
		out.Header("Testing with single video")
		sum, err = runner.Single(ctx, testVideo, metube.Preferences{})
	} else {
		out.Header(fmt.Sprintf("Processing channel %s", channel))
		sum, err = runner.Channel(ctx, run.ChannelOptions{Channel: channel, Count: ac.Discovery.Count, Filter: ac.Discovery.Filter})
	}
	out.Summary(sum.Progress())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runTUI(ctx context.Context, ac config.AppConfig, store *history.Store, log logger.Logger, channel, testVideo string) error {
	// the alt screen owns the terminal; progress events replace the logs
	log = logger.Nop()
	bridge := tui.NewBridge()
	runner, err := run.Build(ac, store, bridge, log)
	if err != nil {
		return usageError{msg: err.Error()}
	}

	opts := tui.Options{Runner: runner, Store: store, Bridge: bridge}
	var sum metube.Summary
	var jobErr error
	switch {
	case channel != "":
		opts.JobLabel = "Processing " + channel
		opts.Job = func(ctx context.Context) (metube.Summary, error) {
			sum, jobErr = runner.Channel(ctx, run.ChannelOptions{Channel: channel, Count: ac.Discovery.Count, Filter: ac.Discovery.Filter})
			return sum, jobErr
		}
	case testVideo != "":
		opts.JobLabel = "Submitting " + testVideo
		opts.Job = func(ctx context.Context) (metube.Summary, error) {
			sum, jobErr = runner.Single(ctx, testVideo, metube.Preferences{})
			return sum, jobErr
		}
	}
	if err := tui.Run(ctx, opts); err != nil {
		return err
	}
	if opts.Job != nil && sum.Total > 0 {
		newConsole(os.Stdout).Summary(sum.Progress())
	}
	if errors.Is(jobErr, context.Canceled) {
		return nil
	}
	return jobErr
}

func serveAction(ctx context.Context, c *cli.Command) error {
	ac, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(ac)
	store := openHistory(ac, log)
	if store != nil {
		defer store.Close()
	}

	hub := web.NewHub(0)
	runner, err := run.Build(ac, store, hub, log)
	if err != nil {
		return err
	}
	addr := ac.Server.Addr
	if v := strings.TrimSpace(c.String("addr")); v != "" {
		addr = v
	}
	srv := web.New(web.Options{
		Runner:         runner,
		Hub:            hub,
		MeTube:         run.NewMeTubeClient(ac, log),
		History:        store,
		AllowedOrigins: c.StringSlice("allow-origin"),
		Log:            log.With().Str("component", "web").Logger(),
	})
	return srv.Run(ctx, addr)
}

func mcpAction(ctx context.Context, c *cli.Command) error {
	ac, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(ac)
	store := openHistory(ac, log)
	if store != nil {
		defer store.Close()
	}

	journal := progress.NewRecorder(server.JournalSize)
	runner, err := run.Build(ac, store, journal, log)
	if err != nil {
		return err
	}
	return server.Run(ctx, server.NewTools(runner, store, journal))
}

func historyAction(ctx context.Context, c *cli.Command) error {
	ac, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !ac.History.Enabled {
		return usagef("history is disabled (history.enabled: false)")
	}
	store, err := history.OpenStore(ac.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	if id := strings.TrimSpace(c.String("run")); id != "" {
		subs, err := store.Submissions(ctx, id)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("No submissions recorded for run", id)
			return nil
		}
		fmt.Println(renderSubmissions(subs))
		return nil
	}

	runs, err := store.RecentRuns(ctx, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}
	fmt.Println(renderRuns(runs))
	return nil
}

func queueAction(ctx context.Context, c *cli.Command) error {
	ac, err := loadConfig(c)
	if err != nil {
		return err
	}
	client := run.NewMeTubeClient(ac, newLogger(ac))
	h, err := client.History(ctx)
	if err != nil {
		return err
	}
	fmt.Println(renderQueue(h))
	return nil
}

func deleteAction(ctx context.Context, c *cli.Command) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return usagef("delete needs at least one id")
	}
	where := metube.Where(strings.ToLower(c.String("where")))
	if where != metube.WhereQueue && where != metube.WhereDone {
		return usagef("invalid --where %q (want queue or done)", where)
	}
	ac, err := loadConfig(c)
	if err != nil {
		return err
	}
	client := run.NewMeTubeClient(ac, newLogger(ac))
	if err := client.Delete(ctx, where, ids); err != nil {
		return err
	}
	fmt.Printf("Removed %d entries from %s\n", len(ids), where)
	return nil
}

func scheduleInstallAction(ctx context.Context, c *cli.Command) error {
	ac, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(c.String("channel")); v != "" {
		ac.Schedule.Channel = v
	}
	if ac.Schedule.Channel == "" {
		return usagef("schedule install needs --channel or schedule.channel in the config file")
	}
	if _, err := youtube.ParseChannelRef(ac.Schedule.Channel); err != nil {
		return usagef("invalid channel: %v", err)
	}
	if n := c.Int("interval-minutes"); n > 0 {
		ac.Schedule.IntervalMinutes = n
	}

	exe, err := os.Executable()
	if err != nil || strings.TrimSpace(exe) == "" {
		return fmt.Errorf("cannot discover program path")
	}
	env := map[string]string{}
	if v := os.Getenv("METUBE_URL"); v != "" {
		env["METUBE_URL"] = v
	}
	path, err := launchd.Install(launchd.InstallOptions{
		Label:           c.String("label"),
		IntervalMinutes: ac.Schedule.IntervalMinutes,
		ProgramPath:     exe,
		ProgramArgs:     setup.ScheduleArgs(ac, configPath(c)),
		Env:             env,
		StdOutPath:      c.String("log-file"),
		StdErrPath:      c.String("log-file"),
		PlistPath:       c.String("plist"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("launchd agent installed and loaded: %s\n", path)
	return nil
}

func configInitAction(ctx context.Context, c *cli.Command) error {
	path := configPath(c)
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return usagef("%s already exists (use --force to overwrite)", path)
	}
	ac := config.Defaults()
	ac.History.Path = config.FallbackHistoryPath()
	if err := config.WriteConfig(path, ac); err != nil {
		return err
	}
	fmt.Println("Config written to", path)
	return nil
}
