// Package sync runs sync passes: hash the resolved inputs, diff them against
// the stored records, dispatch changed assets to a target adapter and
// persist the outcome.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/state"
	"github.com/runway-sync/runway/internal/target"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// PendingJournal records uploads that are in flight, so a pass interrupted
// mid-upload is recognised by the next one.
type PendingJournal interface {
	MarkPending(targetKey string, ident asset.Ident, fp asset.Fingerprint) error
	FailPending(targetKey string, ident asset.Ident, cause error) error
	ClearPending(targetKey string, idents []asset.Ident) error
	Pending(targetKey string) (map[asset.Ident]state.Pending, error)
}

type Options struct {
	// Concurrency caps simultaneous adapter calls.
	Concurrency int
	// HashConcurrency caps files hashed in parallel.
	HashConcurrency int
	// Hasher is reused across passes so unchanged files are not re-read.
	Hasher *asset.Hasher
	// Journal is optional.
	Journal PendingJournal
}

// Engine syncs one target. It owns the record set for the duration of Run;
// Run must not be called concurrently on the same engine.
type Engine struct {
	targetKey string
	adapter   target.Adapter
	store     state.Store
	opts      Options
}

func NewEngine(targetKey string, adapter target.Adapter, store state.Store, opts *Options) *Engine {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.HashConcurrency <= 0 {
		o.HashConcurrency = runtime.GOMAXPROCS(0)
	}
	if o.Hasher == nil {
		o.Hasher = asset.NewHasher(0)
	}
	return &Engine{targetKey: targetKey, adapter: adapter, store: store, opts: o}
}

// pass is the mutable state of one Run.
type pass struct {
	log     *slog.Logger
	records *state.RecordSet
	report  *Report

	hashFailures []Failure

	mu        sync.Mutex
	failures  map[int]Failure
	succeeded []asset.Ident
}

// Run performs one sync pass over inputs. Per-asset failures are collected in
// the report. A fatal adapter error stops new dispatches and is returned
// after the successes so far have been persisted. Cancelling ctx also stops
// new dispatches; in-flight adapter calls finish and are persisted.
func (e *Engine) Run(ctx context.Context, inputs []asset.Input, force bool) (*Report, error) {
	start := time.Now()
	passID := uuid.NewString()
	p := &pass{
		log:      slog.With("pass", passID[:8], "target", e.targetKey),
		failures: make(map[int]Failure),
	}
	p.report = &Report{PassID: passID, Target: e.targetKey}

	records, err := e.store.Load(e.targetKey)
	if errors.Is(err, state.ErrCorruptState) {
		p.log.Warn("state unreadable, treating every asset as new", "error", err)
	} else if err != nil {
		return p.report, fmt.Errorf("load state: %w", err)
	}
	p.records = records

	var pending map[asset.Ident]state.Pending
	if e.opts.Journal != nil {
		if pending, err = e.opts.Journal.Pending(e.targetKey); err != nil {
			p.log.Warn("read pending uploads", "error", err)
		}
	}

	hashed, unreadable, err := e.hashAll(ctx, p, inputs)
	if err != nil {
		return p.report, err
	}

	opts := PlanOptions{Force: force, Pending: pending, Unreadable: unreadable}
	if v, ok := e.adapter.(target.Verifier); ok {
		opts.Verify = v.Verify
	}
	plan := Plan(hashed, p.records, opts)
	changed := plan.Changed()

	p.report.Unchanged = plan.Count(ActionUnchanged)
	p.report.New = plan.Count(ActionNew)
	p.report.Modified = plan.Count(ActionModified)
	p.report.RemovedIdents = plan.Removed
	for _, ident := range plan.Removed {
		p.log.Info("asset no longer resolves", "path", ident)
	}
	p.log.Info("sync plan",
		"inputs", len(inputs),
		"new", p.report.New,
		"modified", p.report.Modified,
		"unchanged", p.report.Unchanged,
		"removed", len(plan.Removed),
	)

	runErr := e.dispatch(ctx, p, changed)

	if err := e.store.Persist(e.targetKey, p.records); err != nil {
		return p.report, errors.Join(runErr, fmt.Errorf("persist state: %w", err))
	}
	e.clearPending(p, pending, plan, unreadable)

	p.report.Records = p.records
	p.report.collectFailures(p.hashFailures, p.failures)
	p.report.Elapsed = time.Since(start)
	p.log.Info("sync done",
		"synced", p.report.Synced,
		"unchanged", p.report.Unchanged,
		"failed", p.report.Failed(),
		"elapsed", p.report.Elapsed.Round(time.Millisecond),
	)
	return p.report, runErr
}

// hashAll fingerprints inputs in parallel. Unreadable files become failures.
func (e *Engine) hashAll(ctx context.Context, p *pass, inputs []asset.Input) ([]HashedInput, []asset.Ident, error) {
	hashed := make([]HashedInput, len(inputs))
	errs := make([]error, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.HashConcurrency)
	for i, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fp, size, err := e.opts.Hasher.HashFile(in.Path)
			if err != nil {
				errs[i] = err
				return nil
			}
			hashed[i] = HashedInput{Input: in, Fingerprint: fp, Size: size}
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	out := make([]HashedInput, 0, len(inputs))
	var unreadable []asset.Ident
	var total int64
	for i, in := range inputs {
		if errs[i] != nil {
			p.log.Warn("hash failed", "path", in.Ident, "error", errs[i])
			unreadable = append(unreadable, in.Ident)
			p.hashFailures = append(p.hashFailures, Failure{Ident: in.Ident, Err: fmt.Errorf("%w: %w", target.ErrIO, errs[i])})
			continue
		}
		total += hashed[i].Size
		out = append(out, hashed[i])
	}
	p.log.Debug("hashed inputs", "files", len(out), "size", humanize.Bytes(uint64(total)))
	return out, unreadable, nil
}

// dispatch sends changed entries to the adapter with bounded concurrency.
func (e *Engine) dispatch(ctx context.Context, p *pass, changed []PlanEntry) error {
	if len(changed) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	// in-flight calls are not abandoned when the pass is cancelled
	callCtx := context.WithoutCancel(ctx)

	var started atomic.Int32
	for i, entry := range changed {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Go may have blocked on the limit while the pass was aborted
			if gctx.Err() != nil {
				return nil
			}
			started.Add(1)
			return e.syncOne(callCtx, p, i, entry)
		})
	}

	err := g.Wait()
	p.report.Skipped = len(changed) - int(started.Load())
	if err != nil {
		p.log.Error("sync aborted", "error", err, "skipped", p.report.Skipped)
		return err
	}
	if ctx.Err() != nil {
		p.log.Info("sync cancelled", "skipped", p.report.Skipped)
		return ctx.Err()
	}
	return nil
}

// syncOne returns an error only when it is fatal to the pass.
func (e *Engine) syncOne(ctx context.Context, p *pass, idx int, entry PlanEntry) error {
	log := p.log.With("path", entry.Ident)

	// the file may have changed since hashing; upload what is on disk now and
	// record the fingerprint of exactly those bytes
	data, err := os.ReadFile(entry.Input.Path)
	if err != nil {
		p.fail(idx, entry.Ident, fmt.Errorf("%w: %w", target.ErrIO, err))
		log.Warn("read failed", "error", err)
		return nil
	}
	fp := asset.HashBytes(data)
	if fp != entry.Input.Fingerprint {
		log.Debug("file changed during pass", "planned", entry.Input.Fingerprint.Short(), "current", fp.Short())
	}

	if entry.Retry {
		log.Info("retrying interrupted upload")
	}
	if e.opts.Journal != nil {
		if err := e.opts.Journal.MarkPending(e.targetKey, entry.Ident, fp); err != nil {
			log.Warn("mark pending", "error", err)
		}
	}

	in := &target.Input{Ident: entry.Ident, Path: entry.Input.Path, Data: data, Fingerprint: fp}
	rec, err := e.adapter.SyncOne(ctx, in, entry.Prior)
	if err != nil {
		if e.opts.Journal != nil {
			if jerr := e.opts.Journal.FailPending(e.targetKey, entry.Ident, err); jerr != nil {
				log.Warn("record pending failure", "error", jerr)
			}
		}
		if target.IsFatal(err) {
			return fmt.Errorf("%s: %w", entry.Ident, err)
		}
		log.Warn("sync failed", "error", err)
		p.fail(idx, entry.Ident, err)
		return nil
	}

	p.mu.Lock()
	p.records.Upsert(entry.Ident, rec)
	p.succeeded = append(p.succeeded, entry.Ident)
	p.report.Synced++
	p.mu.Unlock()

	log.Info("synced", "action", entry.Action, "id", rec.ID)
	return nil
}

func (p *pass) fail(idx int, ident asset.Ident, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[idx] = Failure{Ident: ident, Err: err}
}

// clearPending drops every marker that no longer describes an upload still
// owed: persisted uploads, assets whose content matches their record again,
// and assets that stopped resolving. Markers of assets that failed or were
// never dispatched this pass, or could not be read, are kept.
func (e *Engine) clearPending(p *pass, pending map[asset.Ident]state.Pending, plan *SyncPlan, unreadable []asset.Ident) {
	if e.opts.Journal == nil {
		return
	}
	owed := mapset.NewThreadUnsafeSet(unreadable...)
	for _, entry := range plan.Entries {
		if entry.Action != ActionUnchanged {
			owed.Add(entry.Ident)
		}
	}
	for _, ident := range p.succeeded {
		owed.Remove(ident)
	}

	done := slices.Clone(p.succeeded)
	for ident := range pending {
		if !owed.Contains(ident) && !slices.Contains(done, ident) {
			done = append(done, ident)
		}
	}
	if err := e.opts.Journal.ClearPending(e.targetKey, done); err != nil {
		p.log.Warn("clear pending uploads", "error", err)
	}
}
