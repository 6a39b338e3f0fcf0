package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const DefaultDebounce = 50 * time.Millisecond

var ErrEventsClosed = errors.New("watch: event source closed")

type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateSyncing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// PassFunc runs one sync pass. A returned error stops the orchestrator;
// failures that should not stop watching must be handled inside.
type PassFunc func(ctx context.Context) error

type Options struct {
	Debounce time.Duration
	// InitialPass runs a pass before waiting for the first event.
	InitialPass bool
}

// Orchestrator turns a stream of change events into sync passes.
//
// Events in Idle start the debounce timer; events while Debouncing restart
// it. When the timer fires a pass runs. Events during a pass are coalesced
// into a single follow-up, which goes through debouncing again once the pass
// is done. Cancellation waits for a running pass to return.
type Orchestrator struct {
	events <-chan string
	pass   PassFunc
	opts   Options

	mu     sync.Mutex
	state  State
	passes int
}

func NewOrchestrator(events <-chan string, pass PassFunc, opts Options) *Orchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Orchestrator{events: events, pass: pass, opts: opts}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Passes is the number of completed passes.
func (o *Orchestrator) Passes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.passes
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	if prev != s {
		slog.Debug("watch state", "from", prev, "to", s)
	}
}

// Run loops until ctx is cancelled, the event source closes or a pass
// returns an error.
func (o *Orchestrator) Run(ctx context.Context) error {
	timer := time.NewTimer(o.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	passDone := make(chan error, 1)
	followUp := false

	startPass := func() {
		o.setState(StateSyncing)
		go func() {
			passDone <- o.pass(ctx)
		}()
	}

	if o.opts.InitialPass {
		startPass()
	}

	for {
		select {
		case <-ctx.Done():
			if o.State() == StateSyncing {
				slog.Info("waiting for the running pass to finish")
				<-passDone
				o.finishPass()
			}
			o.setState(StateIdle)
			return nil

		case _, ok := <-o.events:
			if !ok {
				if o.State() == StateSyncing {
					<-passDone
					o.finishPass()
				}
				o.setState(StateIdle)
				return ErrEventsClosed
			}
			switch o.State() {
			case StateIdle:
				o.setState(StateDebouncing)
				timer.Reset(o.opts.Debounce)
			case StateDebouncing:
				timer.Reset(o.opts.Debounce)
			case StateSyncing:
				followUp = true
			}

		case <-timer.C:
			startPass()

		case err := <-passDone:
			o.finishPass()
			if err != nil && ctx.Err() == nil {
				o.setState(StateIdle)
				return err
			}
			if followUp {
				followUp = false
				o.setState(StateDebouncing)
				timer.Reset(o.opts.Debounce)
			} else {
				o.setState(StateIdle)
			}
		}
	}
}

func (o *Orchestrator) finishPass() {
	o.mu.Lock()
	o.passes++
	o.mu.Unlock()
}
