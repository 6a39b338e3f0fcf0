package watch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ForwardsFilteredEvents(t *testing.T) {
	// macos tmp dirs are symlinks; notify reports resolved paths
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	assets := filepath.Join(root, "assets")
	require.NoError(t, os.MkdirAll(assets, 0o755))

	w := NewWatcher([]string{assets}, func(path string) bool {
		return strings.HasSuffix(path, ".tmp")
	})
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(assets, "ignored.tmp"), []byte("x"), 0o644))
	target := filepath.Join(assets, "a.png")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case path := <-w.Events():
			assert.False(t, strings.HasSuffix(path, ".tmp"), path)
			if path == target {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for file event")
		}
	}
}

func TestWatcher_DirectoryMovedIn(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	root := filepath.Join(base, "root")
	assets := filepath.Join(root, "assets")
	icons := filepath.Join(base, "outside", "icons")
	require.NoError(t, os.MkdirAll(assets, 0o755))
	require.NoError(t, os.MkdirAll(icons, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(icons, "x.png"), []byte("x"), 0o644))

	w := NewWatcher([]string{root}, MatchFilter(func(path string) bool {
		return strings.HasSuffix(path, ".png")
	}))
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	require.NoError(t, os.Rename(icons, filepath.Join(assets, "icons")))

	select {
	case path := <-w.Events():
		assert.True(t, strings.HasPrefix(path, assets), path)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for directory event")
	}
}

func TestMatchFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tmp"), []byte("x"), 0o644))
	filter := MatchFilter(func(path string) bool {
		return strings.HasSuffix(path, ".png")
	})

	assert.False(t, filter(filepath.Join(dir, "a.png")))
	assert.True(t, filter(filepath.Join(dir, "a.tmp")))
	assert.False(t, filter(dir))
	assert.False(t, filter(filepath.Join(dir, "gone")))
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher([]string{root}, nil)
	require.NoError(t, w.Start(t.Context()))
	w.Stop()
	w.Stop()

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestExistingRoots(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))

	got := existingRoots([]string{
		filepath.Join(root, "a"),
		filepath.Join(root, "missing", "deeper"),
		filepath.Join(root, "other"),
	})
	assert.Equal(t, []string{filepath.Join(root, "a"), root}, got)
}
