package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name      string
		logsDir   string
		component string
		start     time.Time
		want      string
	}{
		{"relative", "consistlogs", "consist", start, filepath.Join("consistlogs", "consist_2026-02-12_213836.log")},
		{"dot prefix is cleaned", "./consistlogs", "consist-otel", start, filepath.Join("consistlogs", "consist-otel_2026-02-12_213836.log")},
		{"local time written as utc", "logs", "consist", start.In(time.FixedZone("CET", 3600)), filepath.Join("logs", "consist_2026-02-12_213836.log")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, tt.component, tt.start))
		})
	}
}

func TestCreateLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	start := time.Date(2026, 2, 12, 8, 0, 0, 0, time.UTC)

	f, err := CreateLogFile(dir, "consist", start)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, LogFilePath(dir, "consist", start), f.Name())
	_, err = f.WriteString("line\n")
	require.NoError(t, err)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}

func TestCreateLogFile_DirIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := CreateLogFile(blocker, "consist", time.Now())
	assert.Error(t, err)
}
