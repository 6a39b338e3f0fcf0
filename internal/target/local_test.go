package target

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/runway-sync/runway/internal/asset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInput(ident asset.Ident, data string) *Input {
	return &Input{
		Ident:       ident,
		Data:        []byte(data),
		Fingerprint: asset.HashBytes([]byte(data)),
	}
}

func TestLocalAdapter_SyncOne(t *testing.T) {
	root := t.TempDir()
	a := NewLocalAdapter(root, "game")

	in := newInput("b/c.PNG", "Y")
	rec, err := a.SyncOne(t.Context(), in, nil)
	require.NoError(t, err)

	wantRel := ".runway/game/" + in.Fingerprint.String() + ".png"
	assert.Equal(t, in.Fingerprint, rec.Fingerprint)
	assert.Equal(t, wantRel, rec.LocalPath)
	assert.Equal(t, LocalScheme+wantRel, rec.ID)
	assert.False(t, rec.SyncedAt.IsZero())

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(wantRel)))
	require.NoError(t, err)
	assert.Equal(t, "Y", string(data))
	assert.True(t, a.Verify(rec))
}

func TestLocalAdapter_SharedContent(t *testing.T) {
	root := t.TempDir()
	a := NewLocalAdapter(root, "game")

	r1, err := a.SyncOne(t.Context(), newInput("a.png", "same"), nil)
	require.NoError(t, err)
	r2, err := a.SyncOne(t.Context(), newInput("dir/copy.png", "same"), nil)
	require.NoError(t, err)
	assert.Equal(t, r1.LocalPath, r2.LocalPath)

	entries, err := os.ReadDir(a.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalAdapter_VerifyMissing(t *testing.T) {
	root := t.TempDir()
	a := NewLocalAdapter(root, "game")

	rec, err := a.SyncOne(t.Context(), newInput("a.png", "X"), nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, filepath.FromSlash(rec.LocalPath))))
	assert.False(t, a.Verify(rec))

	rec.LocalPath = ""
	assert.False(t, a.Verify(rec))
}

func TestLocalAdapter_WriteFailure(t *testing.T) {
	root := t.TempDir()
	// a file where the cache directory should be
	require.NoError(t, os.WriteFile(filepath.Join(root, ".runway"), []byte("x"), 0o644))
	a := NewLocalAdapter(root, "game")

	_, err := a.SyncOne(t.Context(), newInput("a.png", "X"), nil)
	assert.ErrorIs(t, err, ErrIO)
	assert.False(t, IsFatal(err))
	assert.True(t, strings.Contains(err.Error(), ".runway/game"))
}
