package sync

import (
	"maps"
	"slices"
	"time"

	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/state"
)

type Failure struct {
	Ident asset.Ident
	Err   error
}

// Report is the outcome of a pass. It is returned even when the pass aborts.
type Report struct {
	PassID    string
	Target    string
	Synced    int
	Unchanged int
	New       int
	Modified  int
	// Skipped counts changed assets never dispatched because the pass
	// aborted or was cancelled.
	Skipped int

	Failures      []Failure
	RemovedIdents []asset.Ident

	// Records is the persisted record set after the pass.
	Records *state.RecordSet
	Elapsed time.Duration
}

func (r *Report) Failed() int {
	return len(r.Failures)
}

func (r *Report) Removed() int {
	return len(r.RemovedIdents)
}

// Clean reports whether every asset is in sync.
func (r *Report) Clean() bool {
	return r.Failed() == 0 && r.Skipped == 0
}

// collectFailures lists hash failures first, then dispatch failures in plan
// order.
func (r *Report) collectFailures(hashFailures []Failure, failures map[int]Failure) {
	r.Failures = slices.Clone(hashFailures)
	for _, idx := range slices.Sorted(maps.Keys(failures)) {
		r.Failures = append(r.Failures, failures[idx])
	}
}
