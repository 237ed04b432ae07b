package version

import "fmt"

const (
	// Version is the current version of ytmetube
	Version = "0.3.0"
)

// GetVersion returns the current version string
func GetVersion() string {
	return fmt.Sprintf("ytmetube %s", Version)
}

// UserAgent identifies ytmetube towards MeTube.
func UserAgent() string {
	return "ytmetube/" + Version
}
