package sync

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/state"
)

type Action int

const (
	ActionUnchanged Action = iota
	ActionNew
	ActionModified
	ActionRemoved
)

func (a Action) String() string {
	switch a {
	case ActionUnchanged:
		return "unchanged"
	case ActionNew:
		return "new"
	case ActionModified:
		return "modified"
	case ActionRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// HashedInput is a resolved file with the fingerprint of its current bytes.
type HashedInput struct {
	asset.Input
	Fingerprint asset.Fingerprint
	Size        int64
}

type PlanEntry struct {
	Ident  asset.Ident
	Action Action
	Input  *HashedInput
	Prior  *state.Record
	// Retry is set when an earlier upload of this asset never got confirmed.
	Retry bool
	// Drift is set when the stored record matched but its artifact is gone.
	Drift bool
}

// SyncPlan classifies every resolved asset, in resolver order, and lists the
// recorded assets that no longer resolve.
type SyncPlan struct {
	Entries []PlanEntry
	Removed []asset.Ident
}

// Changed returns the entries that need an adapter call.
func (p *SyncPlan) Changed() []PlanEntry {
	var out []PlanEntry
	for _, e := range p.Entries {
		if e.Action == ActionNew || e.Action == ActionModified {
			out = append(out, e)
		}
	}
	return out
}

func (p *SyncPlan) Count(action Action) int {
	if action == ActionRemoved {
		return len(p.Removed)
	}
	n := 0
	for _, e := range p.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

type PlanOptions struct {
	// Force classifies every resolved asset as new or modified.
	Force bool
	// Verify, when set, is asked about records whose fingerprint matches.
	// A false answer re-syncs the asset.
	Verify func(*state.Record) bool
	// Pending are unconfirmed uploads from earlier passes.
	Pending map[asset.Ident]state.Pending
	// Unreadable idents were resolved but could not be hashed. They are
	// neither planned nor reported as removed.
	Unreadable []asset.Ident
}

// Plan compares freshly hashed inputs to the stored records.
func Plan(resolved []HashedInput, records *state.RecordSet, opts PlanOptions) *SyncPlan {
	plan := &SyncPlan{Entries: make([]PlanEntry, 0, len(resolved))}
	seen := mapset.NewThreadUnsafeSetWithSize[asset.Ident](len(resolved))

	for i := range resolved {
		in := &resolved[i]
		if !seen.Add(in.Ident) {
			continue
		}

		entry := PlanEntry{Ident: in.Ident, Input: in}
		prior, ok := records.Get(in.Ident)
		switch {
		case !ok:
			entry.Action = ActionNew
		case opts.Force || prior.Fingerprint != in.Fingerprint:
			entry.Action = ActionModified
			entry.Prior = prior
		case opts.Verify != nil && !opts.Verify(prior):
			entry.Action = ActionModified
			entry.Prior = prior
			entry.Drift = true
		default:
			entry.Action = ActionUnchanged
			entry.Prior = prior
		}

		if p, pending := opts.Pending[in.Ident]; pending && entry.Action != ActionUnchanged {
			entry.Retry = entry.Prior == nil || p.Fingerprint != entry.Prior.Fingerprint
		}
		plan.Entries = append(plan.Entries, entry)
	}

	seen.Append(opts.Unreadable...)
	removed := mapset.NewThreadUnsafeSet(records.Idents()...).Difference(seen).ToSlice()
	slices.Sort(removed)
	plan.Removed = removed

	return plan
}
