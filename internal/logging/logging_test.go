package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineWriterPrefixesCompleteLines(t *testing.T) {
	var out bytes.Buffer
	w := newLineWriter(&out)
	w.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	_, err := w.Write([]byte("first\nsec"))
	require.NoError(t, err)
	_, err = w.Write([]byte("ond\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "line=1 time=2024-01-02T03:04:05Z first", lines[0])
	assert.Equal(t, "line=2 time=2024-01-02T03:04:05Z second", lines[1])
	assert.Equal(t, "line=3 time=2024-01-02T03:04:05Z partial", lines[2])
}

func TestFanoutHandlerRespectsLevels(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("pass", "p1")

	logger.Debug("hashing", "path", "a.png")
	logger.Warn("corrupt state")

	assert.Contains(t, debugBuf.String(), "hashing")
	assert.Contains(t, debugBuf.String(), "corrupt state")
	assert.NotContains(t, warnBuf.String(), "hashing")
	assert.Contains(t, warnBuf.String(), "pass=p1")
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestSetupWithLogFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer devNull.Close()

	logFile := filepath.Join(t.TempDir(), "logs", "runway.log")
	closer, err := Setup(Options{Level: slog.LevelInfo, Output: devNull, LogFile: logFile})
	require.NoError(t, err)

	slog.Info("sync finished", "synced", 2)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "line=1")
	assert.Contains(t, string(data), "synced=2")
}

func TestLevelFromFlags(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromFlags(true, false))
	assert.Equal(t, slog.LevelWarn, LevelFromFlags(false, true))
	assert.Equal(t, slog.LevelInfo, LevelFromFlags(false, false))
}
