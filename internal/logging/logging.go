package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const fileTimeLayout = "2006-01-02_150405"

// LogFilePath names the log file of one process run. The start time is
// written in UTC so that files sort the same on every host.
func LogFilePath(logsDir, component string, start time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", component, start.UTC().Format(fileTimeLayout)))
}

// CreateLogFile creates logsDir if needed and opens a fresh log file in it.
func CreateLogFile(logsDir, component string, start time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	path := LogFilePath(logsDir, component, start)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}
	return f, nil
}
