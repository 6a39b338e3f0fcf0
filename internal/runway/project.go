// Package runway wires a loaded project configuration to the sync engine:
// it picks the adapter and store for a target, runs passes, regenerates
// codegen outputs and drives watch mode.
package runway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/cloudsdk"
	"github.com/runway-sync/runway/internal/codegen"
	"github.com/runway-sync/runway/internal/config"
	"github.com/runway-sync/runway/internal/resolver"
	"github.com/runway-sync/runway/internal/state"
	"github.com/runway-sync/runway/internal/sync"
	"github.com/runway-sync/runway/internal/target"
	"github.com/runway-sync/runway/internal/utils"
	"github.com/runway-sync/runway/internal/workspace"
)

// hasherCacheSize bounds the fingerprints kept between watch passes.
const hasherCacheSize = 4096

type Options struct {
	Credentials config.Credentials
	Concurrency int

	// Cloud endpoint overrides, empty for the public service.
	CloudBaseURL     string
	CloudDeliveryURL string
	// Cloud tunes the cloud adapter; the creator is filled from Credentials.
	Cloud target.CloudOptions
}

// Project is an opened, locked project. Close releases it.
type Project struct {
	cfg     *config.Config
	opts    Options
	ws      *workspace.Workspace
	local   *state.LocalStore
	durable *state.DurableStore
	outputs []codegen.Output
	hasher  *asset.Hasher
}

// Open validates everything that can be checked without I/O against a
// target, then locks the workspace and opens the local store.
func Open(cfg *config.Config, opts Options) (*Project, error) {
	outputs, err := codegen.OutputsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := resolver.New(cfg.Root(), cfg.Globs()); err != nil {
		return nil, err
	}

	ws, err := workspace.NewWorkspace(cfg)
	if err != nil {
		return nil, err
	}
	if err := ws.Setup(); err != nil {
		return nil, err
	}

	local, err := state.OpenLocalStore(ws.LocalDBPath())
	if err != nil {
		_ = ws.Unlock()
		return nil, err
	}

	return &Project{
		cfg:     cfg,
		opts:    opts,
		ws:      ws,
		local:   local,
		durable: state.NewDurableStore(ws.StatePath),
		outputs: outputs,
		hasher:  asset.NewHasher(hasherCacheSize),
	}, nil
}

func (p *Project) Config() *config.Config {
	return p.cfg
}

func (p *Project) Close() error {
	return errors.Join(p.local.Close(), p.ws.Unlock())
}

// Result is the outcome of one pass including codegen.
type Result struct {
	*sync.Report
	// Generated counts codegen outputs rewritten.
	Generated  int
	CodegenErr error
}

// Clean reports whether every asset synced and every output was written.
func (r *Result) Clean() bool {
	return r.Report.Clean() && r.CodegenErr == nil
}

// session is a target ready for passes.
type session struct {
	project *Project
	engine  *sync.Engine
}

func (p *Project) open(ctx context.Context, targetKey string) (*session, error) {
	tc, err := p.cfg.Target(targetKey)
	if err != nil {
		return nil, err
	}
	adapter, err := p.newAdapter(ctx, tc)
	if err != nil {
		return nil, err
	}

	opts := &sync.Options{
		Concurrency: p.opts.Concurrency,
		Hasher:      p.hasher,
	}
	if tc.Type.Durable() {
		opts.Journal = p.local
	}

	return &session{
		project: p,
		engine:  sync.NewEngine(tc.Key, adapter, p.store(tc), opts),
	}, nil
}

// store picks where records of a target live: remote identifiers are shared
// through the committed state file, local cache paths stay on this machine.
func (p *Project) store(tc *config.TargetConfig) state.Store {
	if tc.Type.Durable() {
		return p.durable
	}
	return p.local
}

func (p *Project) newAdapter(ctx context.Context, tc *config.TargetConfig) (target.Adapter, error) {
	creds := p.opts.Credentials

	switch tc.Type {
	case config.TargetLocal:
		adapter := target.NewLocalAdapter(p.ws.Root, p.cfg.Name)
		linkStudio(adapter)
		return adapter, nil

	case config.TargetCloud:
		if err := creds.ValidateCloud(); err != nil {
			return nil, err
		}
		sdk, err := cloudsdk.New(cloudsdk.Config{
			BaseURL:     p.opts.CloudBaseURL,
			DeliveryURL: p.opts.CloudDeliveryURL,
			APIKey:      creds.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
		}
		cloudOpts := p.opts.Cloud
		cloudOpts.Creator = cloudsdk.Creator{UserID: creds.UserID, GroupID: creds.GroupID}
		slog.Debug("cloud target", "target", tc.Key, "apiKey", utils.MaskSecret(creds.APIKey),
			"user", creds.UserID, "group", creds.GroupID)
		adapter, err := target.NewCloudAdapter(sdk, cloudOpts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
		}
		return adapter, nil

	case config.TargetS3:
		if err := creds.ValidateS3(); err != nil {
			return nil, err
		}
		client, err := target.NewS3Client(ctx, target.S3ClientConfig{
			Region:    tc.Region,
			Endpoint:  tc.Endpoint,
			AccessKey: creds.S3AccessKey,
			SecretKey: creds.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
		}
		return target.NewS3Adapter(client, target.S3Options{
			Bucket:    tc.Bucket,
			Prefix:    tc.Prefix,
			PublicURL: tc.PublicURL,
		}), nil
	}

	return nil, fmt.Errorf("%w: unknown target type '%s'", config.ErrConfig, tc.Type)
}

// linkStudio makes local cache files loadable in Studio. Syncing still works
// without the links, so failures only warn.
func linkStudio(adapter *target.LocalAdapter) {
	dirs, err := target.StudioContentFolders()
	if err != nil {
		slog.Warn("failed to find studio content folders", "error", err)
		return
	}
	if err := adapter.LinkContent(dirs); err != nil {
		slog.Warn("failed to link studio content folders", "error", err)
	}
}

func (s *session) resolve() ([]asset.Input, error) {
	res, err := resolver.New(s.project.cfg.Root(), s.project.cfg.Globs())
	if err != nil {
		return nil, err
	}
	return res.Resolve()
}

// pass runs resolve, sync and codegen. Outputs are regenerated only when the
// pass was not aborted, so generated files never reflect half a pass.
func (s *session) pass(ctx context.Context, force bool) (*Result, error) {
	inputs, err := s.resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve inputs: %w", err)
	}

	report, err := s.engine.Run(ctx, inputs, force)
	result := &Result{Report: report}
	if err != nil {
		return result, err
	}

	result.Generated, result.CodegenErr = codegen.Generate(s.project.outputs, report.Records)
	return result, nil
}

// Sync runs one pass against the target.
func (p *Project) Sync(ctx context.Context, targetKey string, force bool) (*Result, error) {
	s, err := p.open(ctx, targetKey)
	if err != nil {
		return nil, err
	}
	return s.pass(ctx, force)
}

// Codegen rewrites the outputs from the persisted records of the target
// without touching any asset.
func (p *Project) Codegen(targetKey string) (int, error) {
	tc, err := p.cfg.Target(targetKey)
	if err != nil {
		return 0, err
	}
	records, err := p.store(tc).Load(tc.Key)
	if errors.Is(err, state.ErrCorruptState) {
		slog.Warn("state unreadable, generating from no records", "target", tc.Key, "error", err)
	} else if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	return codegen.Generate(p.outputs, records)
}

// Prune deletes the records of assets that no longer resolve. Remote assets
// are left alone.
func (p *Project) Prune(targetKey string) ([]asset.Ident, error) {
	tc, err := p.cfg.Target(targetKey)
	if err != nil {
		return nil, err
	}
	store := p.store(tc)
	records, err := store.Load(tc.Key)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	res, err := resolver.New(p.cfg.Root(), p.cfg.Globs())
	if err != nil {
		return nil, err
	}
	inputs, err := res.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve inputs: %w", err)
	}
	resolved := make(map[asset.Ident]struct{}, len(inputs))
	for _, in := range inputs {
		resolved[in.Ident] = struct{}{}
	}

	var pruned []asset.Ident
	for _, ident := range records.Idents() {
		if _, ok := resolved[ident]; !ok {
			records.Remove(ident)
			pruned = append(pruned, ident)
			slog.Info("pruned", "target", tc.Key, "path", ident)
		}
	}
	if len(pruned) == 0 {
		return nil, nil
	}

	if err := store.Persist(tc.Key, records); err != nil {
		return nil, fmt.Errorf("persist state: %w", err)
	}
	if _, err := codegen.Generate(p.outputs, records); err != nil {
		return pruned, err
	}
	return pruned, nil
}

// WatchOptions configures Watch.
type WatchOptions struct {
	Debounce time.Duration
	// OnPass, when set, receives the result of every pass.
	OnPass func(*Result)
}
