// Package state persists what has been synced to each target.
//
// Records for network targets live in the durable state file next to the
// config, meant to be committed. Records for the local target, and markers
// for uploads that were started but not confirmed, live in a machine-local
// SQLite database.
package state

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/runway-sync/runway/internal/asset"
)

// ErrCorruptState is returned by Load alongside an empty RecordSet when the
// persisted data cannot be parsed. Callers warn and carry on.
var ErrCorruptState = errors.New("state: corrupt state")

// Record is what a target produced for one asset. Fingerprint and ID are
// always replaced together.
type Record struct {
	Fingerprint asset.Fingerprint
	ID          string
	// LocalPath is the cache file for local targets, relative to the project root.
	LocalPath string
	SyncedAt  time.Time
}

// RecordSet is the in-memory state of one target. It is not safe for
// concurrent use; the sync engine serializes access.
type RecordSet struct {
	records map[asset.Ident]*Record
}

func NewRecordSet() *RecordSet {
	return &RecordSet{records: make(map[asset.Ident]*Record)}
}

func (s *RecordSet) Get(ident asset.Ident) (*Record, bool) {
	r, ok := s.records[ident]
	return r, ok
}

func (s *RecordSet) Upsert(ident asset.Ident, r *Record) {
	s.records[ident] = r
}

func (s *RecordSet) Remove(ident asset.Ident) {
	delete(s.records, ident)
}

func (s *RecordSet) Len() int {
	return len(s.records)
}

// Idents returns every ident in lexicographic order.
func (s *RecordSet) Idents() []asset.Ident {
	return slices.Sorted(maps.Keys(s.records))
}

// Clone returns a copy that shares no records with s.
func (s *RecordSet) Clone() *RecordSet {
	out := NewRecordSet()
	for ident, r := range s.records {
		cp := *r
		out.records[ident] = &cp
	}
	return out
}

// Equal reports whether both sets hold the same records. SyncedAt is compared
// with time.Time.Equal.
func (s *RecordSet) Equal(o *RecordSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for ident, a := range s.records {
		b, ok := o.records[ident]
		if !ok {
			return false
		}
		if a.Fingerprint != b.Fingerprint || a.ID != b.ID || a.LocalPath != b.LocalPath || !a.SyncedAt.Equal(b.SyncedAt) {
			return false
		}
	}
	return true
}

// Store loads and persists the record set of a target.
type Store interface {
	// Load returns the records of targetKey. A store that cannot parse its
	// data returns an empty set and an error wrapping ErrCorruptState.
	Load(targetKey string) (*RecordSet, error)
	// Persist replaces the records of targetKey. Readers never observe a
	// partially written set.
	Persist(targetKey string, set *RecordSet) error
}
