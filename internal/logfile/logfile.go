// Package logfile provides forward-only reading of growing JSONL logs.
// The real implementation reads from disk; the fake allows testing
// without files.
package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Source yields newly appended complete lines from a log.
type Source interface {
	// ReadNewLines returns the complete lines appended since the last
	// call, without their trailing newline. A partial line at the end
	// of the data is held back until its newline arrives.
	ReadNewLines() ([]string, error)

	// Path returns the path the source reads from.
	Path() string

	// Close releases the underlying file.
	Close() error
}

// LogGlob matches the controller's log naming scheme.
const LogGlob = "cn616a_log_*.jsonl"

// ErrNoLogFiles is returned by FindMostRecent when the directory holds
// nothing matching LogGlob.
var ErrNoLogFiles = errors.New("no log files found")

// FindMostRecent returns the most recently modified log file in dir.
func FindMostRecent(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, LogGlob))
	if err != nil {
		return "", fmt.Errorf("glob logs: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrNoLogFiles, LogGlob, dir)
	}
	return newest, nil
}
