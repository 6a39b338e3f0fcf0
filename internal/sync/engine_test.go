package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/state"
	"github.com/runway-sync/runway/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	mu    gosync.Mutex
	calls []asset.Ident
	errs  map[asset.Ident]error
	delay time.Duration
	// onCall runs with the number of calls so far, including this one
	onCall func(calls int)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeAdapter) SyncOne(ctx context.Context, in *target.Input, _ *state.Record) (*state.Record, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, in.Ident)
	err := f.errs[in.Ident]
	calls := len(f.calls)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(calls)
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return nil, err
	}
	if in.Fingerprint != asset.HashBytes(in.Data) {
		return nil, errors.New("fingerprint does not match data")
	}
	return &state.Record{Fingerprint: in.Fingerprint, ID: "id-" + in.Fingerprint.Short()}, nil
}

func (f *fakeAdapter) Calls() []asset.Ident {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.calls)
	slices.Sort(out)
	return out
}

type project struct {
	root   string
	inputs []asset.Input
}

func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()
	p := &project{root: t.TempDir()}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p.write(t, name, files[name])
		p.inputs = append(p.inputs, asset.Input{
			Ident: asset.Ident(name),
			Path:  filepath.Join(p.root, filepath.FromSlash(name)),
		})
	}
	return p
}

func (p *project) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(p.root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	// the hash cache keys on mtime; make every write visible
	ts := time.Now().Add(time.Duration(len(content)) * time.Second)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestEngine_LocalTargetScenarios(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b/c.png": "Y"})
	store, err := state.OpenLocalStore(filepath.Join(p.root, ".runway", "local.db"))
	require.NoError(t, err)
	defer store.Close()

	engine := NewEngine("local", target.NewLocalAdapter(p.root, "game"), store, nil)

	// first pass: everything is new
	report, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 2, report.Synced)
	assert.True(t, report.Clean())

	loaded, err := store.Load("local")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	for _, ident := range loaded.Idents() {
		rec, _ := loaded.Get(ident)
		assert.FileExists(t, filepath.Join(p.root, filepath.FromSlash(rec.LocalPath)))
	}

	// second pass: only the modified file is dispatched
	p.write(t, "a.png", "X-prime")
	report, err = engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Modified)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.Synced)

	rec, ok := report.Records.Get("a.png")
	require.True(t, ok)
	assert.Equal(t, asset.HashBytes([]byte("X-prime")), rec.Fingerprint)
}

func TestEngine_UnchangedMakesNoCalls(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b/c.png": "Y"})
	store := state.NewDurableStore(filepath.Join(p.root, "runway-state.toml"))
	adapter := &fakeAdapter{}
	engine := NewEngine("cloud", adapter, store, nil)

	_, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	report, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Unchanged)
	assert.Equal(t, 0, report.Synced)
	assert.Len(t, adapter.Calls(), 2)

	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestEngine_Force(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b/c.png": "Y"})
	adapter := &fakeAdapter{}
	engine := NewEngine("cloud", adapter, state.NewDurableStore(filepath.Join(p.root, "s.toml")), nil)

	_, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	report, err := engine.Run(t.Context(), p.inputs, true)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Modified)
	assert.Equal(t, 2, report.Synced)
	assert.Len(t, adapter.Calls(), 4)
}

func TestEngine_PerAssetFailuresContinue(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b.txt": "T", "c.png": "Z"})
	adapter := &fakeAdapter{errs: map[asset.Ident]error{
		"b.txt": fmt.Errorf("%w: txt", target.ErrUnsupportedType),
		"c.png": fmt.Errorf("%w: 503", target.ErrTransient),
	}}
	store := state.NewDurableStore(filepath.Join(p.root, "s.toml"))
	engine := NewEngine("cloud", adapter, store, nil)

	report, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	require.Equal(t, 2, report.Failed())
	assert.Equal(t, asset.Ident("b.txt"), report.Failures[0].Ident)
	assert.ErrorIs(t, report.Failures[0].Err, target.ErrUnsupportedType)
	assert.Equal(t, asset.Ident("c.png"), report.Failures[1].Ident)
	assert.False(t, report.Clean())

	loaded, err := store.Load("cloud")
	require.NoError(t, err)
	assert.Equal(t, []asset.Ident{"a.png"}, loaded.Idents())
}

func TestEngine_AuthErrorAborts(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b.png": "Y", "c.png": "Z"})
	authErr := fmt.Errorf("%w: 401", target.ErrAuth)
	adapter := &fakeAdapter{errs: map[asset.Ident]error{"a.png": authErr, "b.png": authErr, "c.png": authErr}}
	store := state.NewDurableStore(filepath.Join(p.root, "s.toml"))
	engine := NewEngine("cloud", adapter, store, &Options{Concurrency: 1})

	report, err := engine.Run(t.Context(), p.inputs, false)
	require.Error(t, err)
	assert.True(t, target.IsFatal(err))
	assert.Equal(t, 0, report.Synced)
	assert.Equal(t, 2, report.Skipped)
	assert.Len(t, adapter.Calls(), 1)

	loaded, err := store.Load("cloud")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestEngine_FatalKeepsEarlierSuccesses(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b.png": "Y", "c.png": "Z"})
	adapter := &fakeAdapter{errs: map[asset.Ident]error{"b.png": fmt.Errorf("%w: revoked", target.ErrAuth)}}
	store := state.NewDurableStore(filepath.Join(p.root, "s.toml"))
	engine := NewEngine("cloud", adapter, store, &Options{Concurrency: 1})

	_, err := engine.Run(t.Context(), p.inputs, false)
	require.ErrorIs(t, err, target.ErrAuth)

	loaded, err := store.Load("cloud")
	require.NoError(t, err)
	assert.Equal(t, []asset.Ident{"a.png"}, loaded.Idents())
}

func TestEngine_ConcurrencyCeiling(t *testing.T) {
	files := make(map[string]string)
	for i := range 12 {
		files[fmt.Sprintf("f%02d.png", i)] = fmt.Sprintf("content-%d", i)
	}
	p := newProject(t, files)
	adapter := &fakeAdapter{delay: 20 * time.Millisecond}
	engine := NewEngine("cloud", adapter, state.NewDurableStore(filepath.Join(p.root, "s.toml")), &Options{Concurrency: 3})

	report, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Synced)
	assert.LessOrEqual(t, adapter.maxInFlight.Load(), int32(3))
	assert.Greater(t, adapter.maxInFlight.Load(), int32(1))
}

func TestEngine_CancelLetsInFlightFinish(t *testing.T) {
	files := make(map[string]string)
	for i := range 6 {
		files[fmt.Sprintf("f%d.png", i)] = fmt.Sprintf("c%d", i)
	}
	p := newProject(t, files)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	adapter := &fakeAdapter{delay: 50 * time.Millisecond, onCall: func(calls int) {
		if calls == 2 {
			cancel()
		}
	}}
	store := state.NewDurableStore(filepath.Join(p.root, "s.toml"))
	engine := NewEngine("cloud", adapter, store, &Options{Concurrency: 2})

	report, err := engine.Run(ctx, p.inputs, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, report.Synced)
	assert.Equal(t, 4, report.Skipped)

	loaded, err := store.Load("cloud")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestEngine_CorruptStateTreatedAsEmpty(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X"})
	statePath := filepath.Join(p.root, "s.toml")
	require.NoError(t, os.WriteFile(statePath, []byte("{{{"), 0o644))
	engine := NewEngine("cloud", &fakeAdapter{}, state.NewDurableStore(statePath), nil)

	report, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 1, report.Synced)
}

func TestEngine_UnreadableInput(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X"})
	p.inputs = append(p.inputs, asset.Input{Ident: "missing.png", Path: filepath.Join(p.root, "missing.png")})
	engine := NewEngine("cloud", &fakeAdapter{}, state.NewDurableStore(filepath.Join(p.root, "s.toml")), nil)

	report, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	require.Equal(t, 1, report.Failed())
	assert.ErrorIs(t, report.Failures[0].Err, target.ErrIO)
}

func TestEngine_RemovedIsReportOnly(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b.png": "Y"})
	store := state.NewDurableStore(filepath.Join(p.root, "s.toml"))
	engine := NewEngine("cloud", &fakeAdapter{}, store, nil)

	_, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)

	report, err := engine.Run(t.Context(), p.inputs[:1], false)
	require.NoError(t, err)
	assert.Equal(t, []asset.Ident{"b.png"}, report.RemovedIdents)
	assert.Equal(t, 2, report.Records.Len())
}

func TestEngine_PendingJournal(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b.png": "Y"})
	journal, err := state.OpenLocalStore(filepath.Join(p.root, ".runway", "local.db"))
	require.NoError(t, err)
	defer journal.Close()

	adapter := &fakeAdapter{errs: map[asset.Ident]error{"b.png": fmt.Errorf("%w: timeout", target.ErrTransient)}}
	store := state.NewDurableStore(filepath.Join(p.root, "s.toml"))
	engine := NewEngine("cloud", adapter, store, &Options{Journal: journal})

	_, err = engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)

	pending, err := journal.Pending("cloud")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending["b.png"].LastError, "timeout")

	// the retry succeeds and clears the marker
	adapter.errs = nil
	report, err := engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)

	pending, err = journal.Pending("cloud")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEngine_PendingClearedWhenNoLongerOwed(t *testing.T) {
	p := newProject(t, map[string]string{"a.png": "X", "b.png": "Y"})
	journal, err := state.OpenLocalStore(filepath.Join(p.root, ".runway", "local.db"))
	require.NoError(t, err)
	defer journal.Close()

	adapter := &fakeAdapter{}
	store := state.NewDurableStore(filepath.Join(p.root, "s.toml"))
	engine := NewEngine("cloud", adapter, store, &Options{Journal: journal})

	_, err = engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)

	// both edits fail to upload and leave markers behind
	p.write(t, "a.png", "XX")
	p.write(t, "b.png", "YY")
	transient := fmt.Errorf("%w: timeout", target.ErrTransient)
	adapter.errs = map[asset.Ident]error{"a.png": transient, "b.png": transient}
	_, err = engine.Run(t.Context(), p.inputs, false)
	require.NoError(t, err)

	pending, err := journal.Pending("cloud")
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// a.png goes back to its recorded content, b.png stops resolving
	p.write(t, "a.png", "X")
	adapter.errs = nil
	report, err := engine.Run(t.Context(), p.inputs[:1], false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, []asset.Ident{"b.png"}, report.RemovedIdents)

	pending, err = journal.Pending("cloud")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
