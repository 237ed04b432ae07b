package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MeTubeConfig describes the downstream MeTube instance and submission defaults.
type MeTubeConfig struct {
	URL              string `yaml:"url"`
	Folder           string `yaml:"folder"`
	CustomNamePrefix string `yaml:"custom_name_prefix"`
	AutoStart        bool   `yaml:"auto_start"`
	TimeoutSec       int    `yaml:"timeout"`
}

// YouTubeConfig controls how channel and video pages are fetched.
type YouTubeConfig struct {
	BaseURL    string `yaml:"base_url"`
	UserAgent  string `yaml:"user_agent"`
	TimeoutSec int    `yaml:"timeout"`
	ProxyURL   string `yaml:"proxy_url"`
	// RequestsPerSecond caps YouTube requests; 0 leaves them uncapped.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// ChannelAliases maps a handle or legacy name to a known channel id.
	ChannelAliases map[string]string `yaml:"channel_aliases"`
}

type DiscoveryConfig struct {
	Count           int    `yaml:"count"`
	Quality         string `yaml:"quality"`
	Format          string `yaml:"format"`
	Filter          bool   `yaml:"filter"`
	ClassifyDelayMS int    `yaml:"classify_delay_ms"`
	SubmitDelayMS   int    `yaml:"submit_delay_ms"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// SkipSubmitted drops discovered videos that an earlier run already queued.
	SkipSubmitted bool `yaml:"skip_submitted"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ScheduleConfig is what the launchd agent runs.
type ScheduleConfig struct {
	Channel         string `yaml:"channel"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// AppConfig carries every setting of ytmetube.
type AppConfig struct {
	MeTube    MeTubeConfig    `yaml:"metube"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() AppConfig {
	return AppConfig{
		MeTube: MeTubeConfig{
			URL:        "http://localhost:8081",
			AutoStart:  true,
			TimeoutSec: 30,
		},
		YouTube: YouTubeConfig{
			BaseURL:    "https://www.youtube.com",
			TimeoutSec: 30,
		},
		Discovery: DiscoveryConfig{
			Count:           5,
			Quality:         "best",
			Format:          "any",
			Filter:          true,
			ClassifyDelayMS: 500,
			SubmitDelayMS:   1000,
		},
		History:  HistoryConfig{Enabled: true},
		Log:      LogConfig{Level: "info", Format: "console"},
		Server:   ServerConfig{Addr: "127.0.0.1:8080"},
		Schedule: ScheduleConfig{IntervalMinutes: 60},
	}
}

// LoadFile parses the config at path over the defaults.
func LoadFile(path string) (AppConfig, error) {
	ac := Defaults()
	b, err := os.ReadFile(expandPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ac, nil
		}
		return ac, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &ac); err != nil {
		return ac, fmt.Errorf("parse config %s: %w", path, err)
	}
	ac.MeTube.URL = strings.TrimRight(strings.TrimSpace(ac.MeTube.URL), "/")
	ac.YouTube.BaseURL = strings.TrimRight(strings.TrimSpace(ac.YouTube.BaseURL), "/")
	ac.History.Path = expandPath(ac.History.Path)
	return ac, nil
}

// Validate reports the first setting that would make a run fail.
func (ac AppConfig) Validate() error {
	if err := checkURL("metube.url", ac.MeTube.URL); err != nil {
		return err
	}
	if err := checkURL("youtube.base_url", ac.YouTube.BaseURL); err != nil {
		return err
	}
	if ac.Discovery.Count <= 0 {
		return fmt.Errorf("discovery.count must be positive, got %d", ac.Discovery.Count)
	}
	if ac.YouTube.RequestsPerSecond < 0 {
		return fmt.Errorf("youtube.requests_per_second must not be negative, got %v", ac.YouTube.RequestsPerSecond)
	}
	if ac.Discovery.ClassifyDelayMS < 0 || ac.Discovery.SubmitDelayMS < 0 {
		return fmt.Errorf("discovery delays must not be negative")
	}
	return nil
}

func checkURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	return nil
}

func (d DiscoveryConfig) ClassifyDelay() time.Duration {
	return time.Duration(d.ClassifyDelayMS) * time.Millisecond
}

func (d DiscoveryConfig) SubmitDelay() time.Duration {
	return time.Duration(d.SubmitDelayMS) * time.Millisecond
}

func (y YouTubeConfig) Timeout() time.Duration {
	return seconds(y.TimeoutSec)
}

func (m MeTubeConfig) Timeout() time.Duration {
	return seconds(m.TimeoutSec)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		n = 30
	}
	return time.Duration(n) * time.Second
}

// HistoryPath returns the sqlite path of the submission history.
func (ac AppConfig) HistoryPath() string {
	if p := strings.TrimSpace(ac.History.Path); p != "" {
		return expandPath(p)
	}
	return FallbackHistoryPath()
}

func FallbackHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ytmetube.db"
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "ytmetube", "history.db")
	}
	return filepath.Join(home, ".local", "share", "ytmetube", "history.db")
}

// DefaultConfigPath is ~/.config/ytmetube/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ytmetube", "config.yaml"), nil
}

// ExpandPath expands leading ~ and environment variables in a filesystem path.
func ExpandPath(p string) string { return expandPath(p) }

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}
