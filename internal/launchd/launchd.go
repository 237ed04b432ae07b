// Package launchd installs a per-user launchd agent that runs a channel sync on an
// interval (macOS only).
package launchd

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

const DefaultLabel = "com.ytmetube.sync"

// InstallOptions config for creating/loading a launchd agent.
type InstallOptions struct {
	Label           string
	IntervalMinutes int
	ProgramPath     string   // absolute path to this binary
	ProgramArgs     []string // args after ProgramPath
	Env             map[string]string
	StdOutPath      string
	StdErrPath      string
	PlistPath       string // optional custom plist path
}

var ErrUnsupported = errors.New("launchd is only available on macOS")

func DefaultAgentPath(label string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), nil
}

// DefaultLogPath is where the agent's output goes unless overridden.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ytmetube.schedule.log")
	}
	return filepath.Join(home, "Library", "Logs", "ytmetube", "schedule.log")
}

// BuildPlist renders a plist that runs the program every IntervalMinutes. Unlike a
// daemon the sync exits after each run, so KeepAlive stays off.
func BuildPlist(opt InstallOptions) ([]byte, error) {
	if opt.Label == "" {
		return nil, errors.New("label required")
	}
	if opt.ProgramPath == "" {
		return nil, errors.New("program path required")
	}
	if opt.IntervalMinutes <= 0 {
		opt.IntervalMinutes = 60
	}
	if opt.StdOutPath == "" {
		opt.StdOutPath = DefaultLogPath()
	}
	if opt.StdErrPath == "" {
		opt.StdErrPath = opt.StdOutPath
	}

	var buf bytes.Buffer
	str := func(s string) {
		buf.WriteString("<string>")
		_ = xml.EscapeText(&buf, []byte(s))
		buf.WriteString("</string>")
	}
	key := func(indent, k string) {
		buf.WriteString(indent + "<key>")
		_ = xml.EscapeText(&buf, []byte(k))
		buf.WriteString("</key>\n")
	}

	buf.WriteString(xml.Header)
	buf.WriteString("<!DOCTYPE plist PUBLIC \"-//Apple//DTD PLIST 1.0//EN\" \"http://www.apple.com/DTDs/PropertyList-1.0.dtd\">\n")
	buf.WriteString("<plist version=\"1.0\">\n  <dict>\n")

	key("    ", "Label")
	buf.WriteString("    ")
	str(opt.Label)
	buf.WriteString("\n")

	key("    ", "ProgramArguments")
	buf.WriteString("    <array>\n")
	for _, a := range append([]string{opt.ProgramPath}, opt.ProgramArgs...) {
		buf.WriteString("      ")
		str(a)
		buf.WriteString("\n")
	}
	buf.WriteString("    </array>\n")

	if len(opt.Env) > 0 {
		key("    ", "EnvironmentVariables")
		buf.WriteString("    <dict>\n")
		names := make([]string, 0, len(opt.Env))
		for k := range opt.Env {
			names = append(names, k)
		}
		slices.Sort(names)
		for _, k := range names {
			key("      ", k)
			buf.WriteString("      ")
			str(opt.Env[k])
			buf.WriteString("\n")
		}
		buf.WriteString("    </dict>\n")
	}

	key("    ", "StartInterval")
	buf.WriteString("    <integer>" + strconv.Itoa(opt.IntervalMinutes*60) + "</integer>\n")
	key("    ", "RunAtLoad")
	buf.WriteString("    <true/>\n")
	key("    ", "StandardOutPath")
	buf.WriteString("    ")
	str(opt.StdOutPath)
	buf.WriteString("\n")
	key("    ", "StandardErrorPath")
	buf.WriteString("    ")
	str(opt.StdErrPath)
	buf.WriteString("\n")
	buf.WriteString("  </dict>\n</plist>\n")
	return buf.Bytes(), nil
}

// Install writes the plist and loads it via launchctl.
func Install(opt InstallOptions) (string, error) {
	if runtime.GOOS != "darwin" {
		return "", ErrUnsupported
	}
	plistPath := opt.PlistPath
	if strings.TrimSpace(plistPath) == "" {
		var err error
		plistPath, err = DefaultAgentPath(opt.Label)
		if err != nil {
			return "", err
		}
	}
	data, err := BuildPlist(opt)
	if err != nil {
		return "", err
	}
	logPath := opt.StdOutPath
	if logPath == "" {
		logPath = DefaultLogPath()
	}
	_ = os.MkdirAll(filepath.Dir(logPath), 0o755)
	if err := os.MkdirAll(filepath.Dir(plistPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(plistPath, data, 0o644); err != nil {
		return "", err
	}

	lctl := launchctlPath()
	if lctl == "" {
		return plistPath, errors.New("launchctl not found in /bin, /usr/bin, or PATH")
	}

	domain := fmt.Sprintf("gui/%d", os.Getuid())
	// reinstalling over a loaded agent fails bootstrap
	_ = exec.Command(lctl, "bootout", domain, plistPath).Run()
	if err := exec.Command(lctl, "bootstrap", domain, plistPath).Run(); err != nil {
		if err2 := exec.Command(lctl, "load", "-w", plistPath).Run(); err2 != nil {
			return plistPath, fmt.Errorf("launchctl bootstrap/load failed: %v / %v", err, err2)
		}
	} else {
		_ = exec.Command(lctl, "enable", domain+"/"+opt.Label).Run()
	}
	return plistPath, nil
}

// Uninstall unloads and removes the plist.
func Uninstall(label string, plistPath string) error {
	if runtime.GOOS != "darwin" {
		return ErrUnsupported
	}
	if strings.TrimSpace(plistPath) == "" {
		var err error
		plistPath, err = DefaultAgentPath(label)
		if err != nil {
			return err
		}
	}
	lctl := launchctlPath()
	if lctl == "" {
		return errors.New("launchctl not found")
	}
	domain := fmt.Sprintf("gui/%d", os.Getuid())
	if err := exec.Command(lctl, "bootout", domain, plistPath).Run(); err != nil {
		_ = exec.Command(lctl, "unload", "-w", plistPath).Run()
	}
	if err := os.Remove(plistPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Status returns whether the agent is loaded and a short human string.
func Status(label string) (bool, string) {
	if runtime.GOOS != "darwin" || strings.TrimSpace(label) == "" {
		return false, "unsupported"
	}
	lctl := launchctlPath()
	if lctl == "" {
		return false, "launchctl not found"
	}
	out, err := exec.Command(lctl, "print", fmt.Sprintf("gui/%d/%s", os.Getuid(), label)).CombinedOutput()
	if err != nil {
		return false, "not loaded"
	}
	for _, ln := range strings.Split(string(out), "\n") {
		if strings.Contains(ln, "state = ") {
			return true, strings.TrimSpace(ln)
		}
	}
	return true, "loaded"
}

func launchctlPath() string {
	for _, c := range []string{"/bin/launchctl", "/usr/bin/launchctl"} {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	if p, err := exec.LookPath("launchctl"); err == nil {
		return p
	}
	return ""
}

// ExtractStartInterval best-effort parse of StartInterval seconds from a plist file.
func ExtractStartInterval(plistPath string) (int, error) {
	b, err := os.ReadFile(plistPath)
	if err != nil {
		return 0, err
	}
	s := string(b)
	i := strings.Index(s, "<key>StartInterval</key>")
	if i < 0 {
		return 0, errors.New("StartInterval not found")
	}
	sub := s[i:]
	open := strings.Index(sub, "<integer>")
	end := strings.Index(sub, "</integer>")
	if open < 0 || end < 0 || end <= open+9 {
		return 0, errors.New("invalid integer tag")
	}
	return strconv.Atoi(strings.TrimSpace(sub[open+9 : end]))
}
