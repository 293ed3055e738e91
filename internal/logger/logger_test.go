package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerServiceDefaults(t *testing.T) {
	l := NewLoggerService(map[string]interface{}{})
	assert.Equal(t, defaultFolder, l.folderPath)
	assert.Equal(t, int64(defaultMaxFileMB)*1024*1024, l.maxFileBytes)
	assert.Equal(t, defaultRetentionDays, l.retentionDays)
	assert.Equal(t, "logger", l.Name())
}

func TestNewLoggerServiceYamlNumbers(t *testing.T) {
	// yaml.v3 hands numeric config values over as float64 through the
	// generic map; both decodings must land on the same result.
	l := NewLoggerService(map[string]interface{}{
		"folder_path":    "/tmp/finreports-logs",
		"max_file_mb":    float64(5),
		"retention_days": 3,
	})
	assert.Equal(t, int64(5*1024*1024), l.maxFileBytes)
	assert.Equal(t, 3, l.retentionDays)
	assert.Equal(t, "/tmp/finreports-logs", l.folderPath)
}

func TestNextLogFileNamePrefix(t *testing.T) {
	l := NewLoggerService(map[string]interface{}{"folder_path": "/var/log/x"})
	name := filepath.Base(l.nextLogFileName())
	assert.True(t, strings.HasPrefix(name, "finreports_"), "got %s", name)
	assert.True(t, strings.HasSuffix(name, ".log"), "got %s", name)
}

func TestArchiveOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "finreports_old.log")
	recent := filepath.Join(dir, "finreports_recent.log")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0644))
	require.NoError(t, os.WriteFile(recent, []byte("recent"), 0644))
	stale := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, stale, stale))

	l := NewLoggerService(map[string]interface{}{
		"folder_path":    dir,
		"retention_days": 2,
	})
	l.archiveOldLogs()

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err), "old log should be removed after archiving")
	_, err = os.Stat(recent)
	assert.NoError(t, err, "recent log must survive")

	matches, err := filepath.Glob(filepath.Join(dir, "logs_*.zip"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
