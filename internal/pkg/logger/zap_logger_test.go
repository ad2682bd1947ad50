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

func TestIsolatedLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := NewIsolatedLogger(path)

	l.Info("Audit", "request", map[string]interface{}{"session_id": "s-1"})
	l.Debug("Audit", "below file level", nil)
	_ = l.Sync()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}

	require.Len(t, lines, 1)
	assert.Equal(t, "request", lines[0]["message"])
	assert.Equal(t, "Audit", lines[0]["module"])
	assert.Equal(t, "INFO", lines[0]["level"])
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("X", "ignored", map[string]interface{}{"error": "boom"})
	assert.NoError(t, l.Sync())
}

// openHandles counts this process's descriptors pointing at path.
func openHandles(t *testing.T, path string) int {
	t.Helper()
	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd on this platform")
	}
	n := 0
	for _, fd := range fds {
		if target, err := os.Readlink(filepath.Join("/proc/self/fd", fd.Name())); err == nil && target == path {
			n++
		}
	}
	return n
}

func TestCloseReleasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	l := NewIsolatedLogger(path)
	l.Info("Audit", "request", nil)
	assert.Equal(t, 1, openHandles(t, path))

	require.NoError(t, l.Close())
	assert.Zero(t, openHandles(t, path))
	require.NoError(t, NewNopLogger().Close())
}
