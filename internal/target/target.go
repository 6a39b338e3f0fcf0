// Package target implements the sync destinations. Each adapter turns the
// bytes of one changed asset into a record with a durable identifier.
package target

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/config"
	"github.com/runway-sync/runway/internal/state"
)

var (
	// ErrIO is a local filesystem failure. Reported per asset.
	ErrIO = errors.New("target: io error")
	// ErrTransient covers throttling, timeouts and server errors that
	// outlasted the retries. Reported per asset.
	ErrTransient = errors.New("target: transient error")
	// ErrRejected means the remote refused this asset. Reported per asset.
	ErrRejected = errors.New("target: asset rejected")
	// ErrAuth means the credentials are invalid or lack permission. Fatal.
	ErrAuth = errors.New("target: authentication failed")
	// ErrUnsupportedType means the target cannot host this kind of file.
	ErrUnsupportedType = errors.New("target: unsupported asset type")
)

// Input is one asset handed to an adapter. Data holds exactly the bytes that
// Fingerprint was computed from.
type Input struct {
	Ident       asset.Ident
	Path        string
	Data        []byte
	Fingerprint asset.Fingerprint
}

// Adapter syncs single assets. SyncOne is called concurrently for distinct
// idents on the same adapter.
type Adapter interface {
	SyncOne(ctx context.Context, in *Input, prior *state.Record) (*state.Record, error)
}

// Verifier is implemented by adapters that can check whether the artifact
// behind an unchanged record still exists.
type Verifier interface {
	Verify(rec *state.Record) bool
}

// IsFatal reports whether err must abort the whole pass.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, config.ErrConfig)
}

func wrap(kind error, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
