package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
	}
}

func idents(inputs []asset.Input) []asset.Ident {
	out := make([]asset.Ident, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, in.Ident)
	}
	return out
}

func TestResolve_OrderAndDedup(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"assets/b/c.png",
		"assets/a.png",
		"assets/z.ogg",
		"assets/.DS_Store",
		"other/x.png",
		".runway/cache/1.png",
	)

	r, err := New(root, []string{"assets/**/*.png", "assets/**/*", "missing/*.png"})
	require.NoError(t, err)

	inputs, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []asset.Ident{"assets/a.png", "assets/b/c.png", "assets/z.ogg"}, idents(inputs))
	assert.Equal(t, filepath.Join(root, "assets", "a.png"), inputs[0].Path)
}

func TestResolve_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "assets/keep.png", "assets/wip/draft.png")
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("wip/\n"), 0o644))

	r, err := New(root, []string{"assets/**/*.png"})
	require.NoError(t, err)

	inputs, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []asset.Ident{"assets/keep.png"}, idents(inputs))
}

func TestNew_InvalidPatterns(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"", "/abs/*.png", "../up/*.png", "assets/[.png"} {
		_, err := New(root, []string{p})
		assert.ErrorIs(t, err, config.ErrConfig, p)
	}
}

func TestMatch(t *testing.T) {
	root := t.TempDir()
	r, err := New(root, []string{"assets/**/*.png"})
	require.NoError(t, err)

	ident, ok := r.Match(filepath.Join(root, "assets", "b", "c.png"))
	assert.True(t, ok)
	assert.Equal(t, asset.Ident("assets/b/c.png"), ident)

	_, ok = r.Match(filepath.Join(root, "assets", "c.ogg"))
	assert.False(t, ok)
	_, ok = r.Match(filepath.Join(root, "assets", ".c.png.tmp-123"))
	assert.False(t, ok)
	_, ok = r.Match(filepath.Join(t.TempDir(), "assets", "c.png"))
	assert.False(t, ok)
}

func TestWatchRoots(t *testing.T) {
	root := t.TempDir()
	r, err := New(root, []string{"assets/ui/*.png", "assets/**/*.ogg", "assets-extra/*.png"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "assets"),
		filepath.Join(root, "assets-extra"),
	}, r.WatchRoots())
}
