// Package progress renders scan progress on interactive terminals.
package progress

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// IsCI reports whether the process runs under a known CI system.
func IsCI() bool {
	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"JENKINS_URL",
		"TRAVIS",
		"BITBUCKET_BUILD_NUMBER",
		"AZURE_PIPELINES",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}

// Tracker counts finished files.
type Tracker interface {
	Add(n int) error
	Finish() error
}

type nopTracker struct{}

func (nopTracker) Add(int) error { return nil }
func (nopTracker) Finish() error { return nil }

// NewFiles returns a tracker for total files written to w. It is a no-op
// when disabled, under CI, or for fewer than two files.
func NewFiles(w io.Writer, total int, description string, disabled bool) Tracker {
	if disabled || IsCI() || total < 2 {
		return nopTracker{}
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
	)
}
