package target

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/cloudsdk"
	"github.com/runway-sync/runway/internal/state"
	"github.com/runway-sync/runway/internal/utils"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// CloudScheme prefixes identifiers of hosted assets.
const CloudScheme = "rbxassetid://"

const (
	limitKeyCreate = "create"
	limitKeyPoll   = "poll"
)

type CloudOptions struct {
	Creator cloudsdk.Creator

	// CreateAttempts bounds tries of the upload itself.
	CreateAttempts int
	// PollFailures is how many failed polls of one operation are tolerated.
	PollFailures int
	// MaxPolls bounds polls of an operation that never finishes.
	MaxPolls int
	// DeliveryAttempts bounds decal to image id lookups.
	DeliveryAttempts int

	// RetryWait is the first backoff step; it doubles per retry.
	RetryWait   time.Duration
	PollWait    time.Duration
	MaxPollWait time.Duration

	// RateLimit is the formatted limit for create and poll calls, e.g. "60-M".
	RateLimit string
}

func (o *CloudOptions) setDefaults() {
	if o.CreateAttempts <= 0 {
		o.CreateAttempts = 3
	}
	if o.PollFailures <= 0 {
		o.PollFailures = 3
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = 10
	}
	if o.DeliveryAttempts <= 0 {
		o.DeliveryAttempts = 3
	}
	if o.RetryWait <= 0 {
		o.RetryWait = time.Second
	}
	if o.PollWait <= 0 {
		o.PollWait = time.Second
	}
	if o.MaxPollWait <= 0 {
		o.MaxPollWait = 30 * time.Second
	}
	if o.RateLimit == "" {
		o.RateLimit = "60-M"
	}
}

// CloudAdapter uploads assets to the hosting service. Upload creates an
// operation which is polled until the service assigns an asset id. Images
// are uploaded as decals and resolved to the id of their image asset.
type CloudAdapter struct {
	sdk         *cloudsdk.Client
	opts        CloudOptions
	createLimit *limiter.Limiter
	pollLimit   *limiter.Limiter
}

func NewCloudAdapter(sdk *cloudsdk.Client, opts CloudOptions) (*CloudAdapter, error) {
	opts.setDefaults()
	if (opts.Creator.UserID == "") == (opts.Creator.GroupID == "") {
		return nil, errors.New("cloud adapter: exactly one of user or group creator is required")
	}

	rate, err := limiter.NewRateFromFormatted(opts.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("cloud adapter: rate limit: %w", err)
	}
	store := memory.NewStore()

	return &CloudAdapter{
		sdk:         sdk,
		opts:        opts,
		createLimit: limiter.New(store, rate),
		pollLimit:   limiter.New(store, rate),
	}, nil
}

func (a *CloudAdapter) SyncOne(ctx context.Context, in *Input, _ *state.Record) (*state.Record, error) {
	assetType := asset.TypeOf(in.Ident)
	typeName, err := assetType.CloudName()
	if err != nil {
		return nil, wrap(ErrUnsupportedType, err)
	}

	params := &cloudsdk.CreateAssetParams{
		Request: cloudsdk.CreateAssetRequest{
			AssetType:       typeName,
			DisplayName:     in.Ident.Base(),
			Description:     "Uploaded by runway",
			CreationContext: cloudsdk.CreationContext{Creator: a.opts.Creator},
		},
		FileName:    in.Ident.Base(),
		ContentType: utils.DetectContentType(in.Ident.Base()),
		Content:     in.Data,
	}

	slog.Debug("cloud upload", "path", in.Ident, "type", typeName, "size", humanize.Bytes(uint64(len(in.Data))))
	op, err := a.create(ctx, params)
	if err != nil {
		return nil, err
	}

	result, err := a.await(ctx, op)
	if err != nil {
		return nil, err
	}

	id := result.AssetID
	if assetType == asset.TypeImage {
		decalID := id
		id, err = a.textureID(ctx, decalID)
		if err != nil {
			slog.Warn("decal uploaded but image id unresolved", "path", in.Ident, "decal", decalID, "error", err)
			return nil, err
		}
	}

	return &state.Record{
		Fingerprint: in.Fingerprint,
		ID:          CloudScheme + id,
		SyncedAt:    now(),
	}, nil
}

func (a *CloudAdapter) create(ctx context.Context, params *cloudsdk.CreateAssetParams) (*cloudsdk.Operation, error) {
	var lastErr error
	for attempt := 1; attempt <= a.opts.CreateAttempts; attempt++ {
		if attempt > 1 {
			wait := a.opts.RetryWait << (attempt - 2)
			slog.Debug("cloud upload retry", "file", params.FileName, "attempt", attempt, "wait", wait, "error", lastErr)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, wrap(ErrTransient, err)
			}
		}
		if err := a.wait(ctx, a.createLimit, limitKeyCreate); err != nil {
			return nil, wrap(ErrTransient, err)
		}

		op, err := a.sdk.Assets.Create(ctx, params)
		if err == nil {
			return op, nil
		}
		lastErr = classifyCloudError(err)
		if !errors.Is(lastErr, ErrTransient) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("upload failed after %d attempts: %w", a.opts.CreateAttempts, lastErr)
}

// await polls op until it is done, doubling the wait between polls.
func (a *CloudAdapter) await(ctx context.Context, op *cloudsdk.Operation) (*cloudsdk.AssetResult, error) {
	wait := a.opts.PollWait
	failures := 0

	for polls := 0; !op.Done; polls++ {
		if polls >= a.opts.MaxPolls {
			return nil, wrap(ErrTransient, fmt.Errorf("operation %s not done after %d polls", op.ID(), polls))
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, wrap(ErrTransient, err)
		}
		wait = min(wait*2, a.opts.MaxPollWait)

		if err := a.wait(ctx, a.pollLimit, limitKeyPoll); err != nil {
			return nil, wrap(ErrTransient, err)
		}
		next, err := a.sdk.Assets.GetOperation(ctx, op.ID())
		if err != nil {
			classified := classifyCloudError(err)
			if IsFatal(classified) {
				return nil, classified
			}
			failures++
			if failures >= a.opts.PollFailures {
				return nil, fmt.Errorf("operation %s: %d failed polls: %w", op.ID(), failures, classified)
			}
			slog.Debug("operation poll failed", "operation", op.ID(), "failures", failures, "error", err)
			continue
		}
		op = next
	}

	if op.Error != nil {
		return nil, wrap(ErrRejected, op.Error)
	}
	if op.Response == nil || op.Response.AssetID == "" {
		return nil, wrap(ErrTransient, fmt.Errorf("operation %s finished without an asset id", op.ID()))
	}
	return op.Response, nil
}

func (a *CloudAdapter) textureID(ctx context.Context, decalID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= a.opts.DeliveryAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, a.opts.RetryWait<<(attempt-2)); err != nil {
				return "", wrap(ErrTransient, err)
			}
		}
		id, err := a.sdk.Delivery.TextureID(ctx, decalID)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return "", wrap(ErrTransient, fmt.Errorf("resolve image of decal %s: %w", decalID, lastErr))
}

// wait blocks until the limiter admits one more call for key.
func (a *CloudAdapter) wait(ctx context.Context, l *limiter.Limiter, key string) error {
	for {
		lctx, err := l.Get(ctx, key)
		if err != nil {
			return err
		}
		if !lctx.Reached {
			return nil
		}
		wait := max(time.Until(time.Unix(lctx.Reset, 0)), 50*time.Millisecond)
		slog.Debug("rate limit reached", "calls", key, "wait", wait)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func classifyCloudError(err error) error {
	switch {
	case errors.Is(err, cloudsdk.ErrUnauthorized):
		return wrap(ErrAuth, err)
	case errors.Is(err, cloudsdk.ErrBadRequest), errors.Is(err, cloudsdk.ErrOperation):
		return wrap(ErrRejected, err)
	default:
		return wrap(ErrTransient, err)
	}
}
