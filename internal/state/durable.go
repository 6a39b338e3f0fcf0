package state

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/utils"
)

const (
	durableVersion = 1
	durableHeader  = "# This file is @generated by runway. Commit it, do not edit it.\n\n"
)

type durableRecord struct {
	Hash string `toml:"hash"`
	ID   string `toml:"id"`
}

type durableFile struct {
	Version int                                 `toml:"version"`
	Targets map[string]map[string]durableRecord `toml:"targets,omitempty"`
}

// DurableStore keeps records in a TOML file meant for version control. Each
// target has its own table; persisting one target keeps the others.
type DurableStore struct {
	path string
	mu   sync.Mutex
}

func NewDurableStore(path string) *DurableStore {
	return &DurableStore{path: path}
}

func (s *DurableStore) Path() string {
	return s.path
}

func (s *DurableStore) Load(targetKey string) (*RecordSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return NewRecordSet(), err
	}

	set := NewRecordSet()
	for ident, rec := range file.Targets[targetKey] {
		if rec.Hash == "" || rec.ID == "" {
			slog.Warn("state entry incomplete, ignoring", "path", ident, "target", targetKey)
			continue
		}
		set.Upsert(asset.Ident(ident), &Record{
			Fingerprint: asset.Fingerprint(rec.Hash),
			ID:          rec.ID,
		})
	}
	return set, nil
}

func (s *DurableStore) Persist(targetKey string, set *RecordSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		if !errors.Is(err, ErrCorruptState) {
			return err
		}
		// the corrupt content is replaced by what this run knows
		slog.Warn("overwriting corrupt state file", "path", s.path, "error", err)
		file = &durableFile{}
	}
	file.Version = durableVersion
	if file.Targets == nil {
		file.Targets = make(map[string]map[string]durableRecord)
	}

	table := make(map[string]durableRecord, set.Len())
	for _, ident := range set.Idents() {
		r, _ := set.Get(ident)
		table[ident.String()] = durableRecord{Hash: r.Fingerprint.String(), ID: r.ID}
	}
	if len(table) == 0 {
		delete(file.Targets, targetKey)
	} else {
		file.Targets[targetKey] = table
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append([]byte(durableHeader), data...)

	if err := utils.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	slog.Debug("state persisted", "path", s.path, "target", targetKey, "records", set.Len())
	return nil
}

func (s *DurableStore) read() (*durableFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &durableFile{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var file durableFile
	if len(bytes.TrimSpace(data)) == 0 {
		return &file, nil
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, s.path, err)
	}
	if file.Version != durableVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorruptState, s.path, file.Version)
	}
	return &file, nil
}
