package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, dir string) []map[string]any {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerAdapter_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLoggerAdapter(Options{Dir: dir, Name: "how many cows?", Level: "debug"})
	require.NoError(t, err)

	log.WithField("session_id", "s-1").Info("Tool executed", "tool", "clip_query", "clips", 2)
	log.Debug("Planner call")
	require.NoError(t, log.Close())

	entries := readEntries(t, dir)
	require.Len(t, entries, 2)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "Tool executed", entries[0]["message"])
	assert.Equal(t, "s-1", entries[0]["session_id"])
	assert.Equal(t, "clip_query", entries[0]["tool"])
	assert.Equal(t, float64(2), entries[0]["clips"])
	assert.NotContains(t, entries[1], "session_id")
}

func TestLoggerAdapter_LevelFilters(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLoggerAdapter(Options{Dir: dir, Name: "q", Level: "warn"})
	require.NoError(t, err)

	log.Info("hidden")
	log.WithFields(map[string]any{"a": 1}).Warn("shown")
	require.NoError(t, log.Close())

	entries := readEntries(t, dir)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, float64(1), entries[0]["a"])
}

func TestNewLoggerAdapter_BadLevel(t *testing.T) {
	_, err := NewLoggerAdapter(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "how_many_cows_", sanitize("how many cows?"))
	assert.Equal(t, "session", sanitize(""))
	assert.Len(t, sanitize(string(make([]byte, 100))), 60)
}
