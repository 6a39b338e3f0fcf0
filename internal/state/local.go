package state

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/db"
)

const localSchema = `
CREATE TABLE IF NOT EXISTS asset_records (
    target TEXT NOT NULL,
    path TEXT NOT NULL,
    hash TEXT NOT NULL,
    remote_id TEXT NOT NULL,
    local_path TEXT NOT NULL DEFAULT '',
    synced_at TEXT NOT NULL, -- RFC3339
    PRIMARY KEY (target, path)
);

CREATE TABLE IF NOT EXISTS pending_uploads (
    target TEXT NOT NULL,
    path TEXT NOT NULL,
    hash TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 1,
    started_at TEXT NOT NULL, -- RFC3339
    last_error TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (target, path)
);
`

type dbRecord struct {
	Target    string `db:"target"`
	Path      string `db:"path"`
	Hash      string `db:"hash"`
	RemoteID  string `db:"remote_id"`
	LocalPath string `db:"local_path"`
	SyncedAt  string `db:"synced_at"`
}

type dbPending struct {
	Path      string `db:"path"`
	Hash      string `db:"hash"`
	Attempts  int    `db:"attempts"`
	StartedAt string `db:"started_at"`
	LastError string `db:"last_error"`
}

// Pending marks an upload that was started and not yet confirmed by a
// persisted record.
type Pending struct {
	Ident       asset.Ident
	Fingerprint asset.Fingerprint
	Attempts    int
	StartedAt   time.Time
	LastError   string
}

// LocalStore is the machine-local store. It holds the records of local
// targets and the pending upload journal of every target.
type LocalStore struct {
	db     *sqlx.DB
	dbPath string
}

// OpenLocalStore opens or creates the database at dbPath. A file that is not
// a readable database is moved aside and replaced by an empty one.
func OpenLocalStore(dbPath string) (*LocalStore, error) {
	conn, err := openLocalDB(dbPath)
	if err != nil && isCorruptDB(err) {
		backup := fmt.Sprintf("%s.%s.bak", dbPath, time.Now().Format("20060102150405"))
		slog.Warn("local state is corrupt, starting fresh", "path", dbPath, "backup", backup, "error", err)
		if rerr := os.Rename(dbPath, backup); rerr != nil {
			return nil, fmt.Errorf("move corrupt local state: %w", rerr)
		}
		conn, err = openLocalDB(dbPath)
	}
	if err != nil {
		return nil, err
	}
	return &LocalStore{db: conn, dbPath: dbPath}, nil
}

func openLocalDB(dbPath string) (*sqlx.DB, error) {
	conn, err := db.NewSqliteDB(db.WithPath(dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}
	if _, err := conn.Exec(localSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init local state schema: %w", err)
	}
	return conn, nil
}

func isCorruptDB(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not a database") || strings.Contains(msg, "malformed")
}

func (s *LocalStore) Path() string {
	return s.dbPath
}

func (s *LocalStore) Close() error {
	if err := s.db.Close(); err != nil {
		slog.Error("close local state", "error", err)
		return err
	}
	return nil
}

func (s *LocalStore) Load(targetKey string) (*RecordSet, error) {
	var rows []dbRecord
	err := s.db.Select(&rows, `SELECT target, path, hash, remote_id, local_path, synced_at
		FROM asset_records WHERE target = ?`, targetKey)
	if err != nil {
		return NewRecordSet(), fmt.Errorf("%w: query records: %w", ErrCorruptState, err)
	}

	set := NewRecordSet()
	for _, row := range rows {
		syncedAt, err := time.Parse(time.RFC3339, row.SyncedAt)
		if err != nil {
			// the record is still usable, the time is informational
			slog.Warn("local record has bad timestamp", "path", row.Path, "value", row.SyncedAt, "error", err)
		}
		set.Upsert(asset.Ident(row.Path), &Record{
			Fingerprint: asset.Fingerprint(row.Hash),
			ID:          row.RemoteID,
			LocalPath:   row.LocalPath,
			SyncedAt:    syncedAt,
		})
	}
	return set, nil
}

// Persist replaces every record of targetKey in a single transaction.
func (s *LocalStore) Persist(targetKey string, set *RecordSet) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM asset_records WHERE target = ?", targetKey); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	const insert = `INSERT INTO asset_records (target, path, hash, remote_id, local_path, synced_at)
		VALUES (:target, :path, :hash, :remote_id, :local_path, :synced_at)`
	for _, ident := range set.Idents() {
		r, _ := set.Get(ident)
		row := dbRecord{
			Target:    targetKey,
			Path:      ident.String(),
			Hash:      r.Fingerprint.String(),
			RemoteID:  r.ID,
			LocalPath: r.LocalPath,
			SyncedAt:  r.SyncedAt.UTC().Format(time.RFC3339),
		}
		if _, err := tx.NamedExec(insert, row); err != nil {
			return fmt.Errorf("insert record %s: %w", ident, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Debug("local state persisted", "target", targetKey, "records", set.Len())
	return nil
}

// MarkPending records that an upload of ident with fp is starting.
func (s *LocalStore) MarkPending(targetKey string, ident asset.Ident, fp asset.Fingerprint) error {
	_, err := s.db.Exec(`INSERT INTO pending_uploads (target, path, hash, attempts, started_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (target, path) DO UPDATE SET
			hash = excluded.hash,
			attempts = pending_uploads.attempts + 1,
			started_at = excluded.started_at`,
		targetKey, ident.String(), fp.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark pending %s: %w", ident, err)
	}
	return nil
}

// FailPending keeps the marker and remembers why the upload failed.
func (s *LocalStore) FailPending(targetKey string, ident asset.Ident, cause error) error {
	_, err := s.db.Exec("UPDATE pending_uploads SET last_error = ? WHERE target = ? AND path = ?",
		cause.Error(), targetKey, ident.String())
	if err != nil {
		return fmt.Errorf("fail pending %s: %w", ident, err)
	}
	return nil
}

// ClearPending drops the markers of idents whose records have been persisted.
func (s *LocalStore) ClearPending(targetKey string, idents []asset.Ident) error {
	if len(idents) == 0 {
		return nil
	}
	paths := make([]string, 0, len(idents))
	for _, ident := range idents {
		paths = append(paths, ident.String())
	}

	query, args, err := sqlx.In("DELETE FROM pending_uploads WHERE target = ? AND path IN (?)", targetKey, paths)
	if err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	if _, err := s.db.Exec(s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	return nil
}

// Pending returns the unconfirmed uploads of targetKey.
func (s *LocalStore) Pending(targetKey string) (map[asset.Ident]Pending, error) {
	var rows []dbPending
	err := s.db.Select(&rows, `SELECT path, hash, attempts, started_at, last_error
		FROM pending_uploads WHERE target = ?`, targetKey)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}

	pending := make(map[asset.Ident]Pending, len(rows))
	for _, row := range rows {
		startedAt, _ := time.Parse(time.RFC3339, row.StartedAt)
		pending[asset.Ident(row.Path)] = Pending{
			Ident:       asset.Ident(row.Path),
			Fingerprint: asset.Fingerprint(row.Hash),
			Attempts:    row.Attempts,
			StartedAt:   startedAt,
			LastError:   row.LastError,
		}
	}
	return pending, nil
}
