package runway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/runway-sync/runway/internal/resolver"
	"github.com/runway-sync/runway/internal/target"
	"github.com/runway-sync/runway/internal/watch"
)

// Watch syncs the target once, then again whenever a matching file changes,
// until ctx is cancelled. Per-asset failures are reported through OnPass and
// watching continues; a fatal error ends the watch and is returned.
func (p *Project) Watch(ctx context.Context, targetKey string, opts WatchOptions) error {
	s, err := p.open(ctx, targetKey)
	if err != nil {
		return err
	}

	res, err := resolver.New(p.cfg.Root(), p.cfg.Globs())
	if err != nil {
		return err
	}

	watcher := watch.NewWatcher(res.WatchRoots(), watch.MatchFilter(func(path string) bool {
		_, ok := res.Match(path)
		return ok
	}))
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	orch := watch.NewOrchestrator(watcher.Events(), func(ctx context.Context) error {
		result, err := s.pass(ctx, false)
		if result != nil && opts.OnPass != nil {
			opts.OnPass(result)
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.Canceled):
			return nil
		case target.IsFatal(err):
			return err
		default:
			slog.Error("sync pass failed", "target", targetKey, "error", err)
			return nil
		}
	}, watch.Options{
		Debounce:    opts.Debounce,
		InitialPass: true,
	})

	slog.Info("watching for changes", "target", targetKey)
	return orch.Run(ctx)
}
