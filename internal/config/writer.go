package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const header = "# ytmetube configuration\n# Flags and the METUBE_URL environment variable override these values.\n"

// WriteConfig renders ac as YAML at path. An existing file is backed up first.
func WriteConfig(path string, ac AppConfig) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := BackupFile(path); err != nil {
			return fmt.Errorf("failed to back up %s: %w", path, err)
		}
	}

	b, err := yaml.Marshal(ac)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	return os.WriteFile(path, append([]byte(header), b...), 0o644)
}

// BackupFile creates a backup of the specified file with a timestamp
func BackupFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ts := time.Now().Format("20060102-150405")
	bak := path + ".bak-" + ts
	return os.WriteFile(bak, b, 0o644)
}
