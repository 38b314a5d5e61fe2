// Package dispatch turns queue notifications into pipeline runs. It
// owns the worker pool and the reconciliation sweep that picks up jobs
// whose notification was lost.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CZERTAINLY/Prospector/internal/model"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Listener yields notification payloads. An idle period returns
// ok=false with no error.
type Listener interface {
	Wait(ctx context.Context, timeout time.Duration) (payload string, ok bool, err error)
}

// Jobs lists jobs still waiting to be claimed.
type Jobs interface {
	QueuedIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Processor runs one job to a terminal state.
type Processor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

type Dispatcher struct {
	Listener      Listener
	Jobs          Jobs
	Processor     Processor
	Concurrency   int
	WaitTimeout   time.Duration
	SweepInterval time.Duration

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func New(listener Listener, jobs Jobs, processor Processor, concurrency int, waitTimeout, sweepInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		Listener:      listener,
		Jobs:          jobs,
		Processor:     processor,
		Concurrency:   concurrency,
		WaitTimeout:   waitTimeout,
		SweepInterval: sweepInterval,
		inflight:      map[uuid.UUID]struct{}{},
	}
}

// Run blocks until ctx is cancelled, then drains the pool. Jobs queued
// before startup are picked up by the initial sweep, so a worker that
// was down while the API kept accepting scans catches up on its own.
func (d *Dispatcher) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(d.Concurrency)

	d.sweep(ctx, &g)
	lastSweep := time.Now()

	for ctx.Err() == nil {
		payload, ok, err := d.Listener.Wait(ctx, d.WaitTimeout)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				break
			}
			slog.ErrorContext(ctx, "listener failed, retrying", "error", err)
			d.pause(ctx)
		case ok:
			d.notified(ctx, &g, payload)
		}

		if time.Since(lastSweep) >= d.SweepInterval {
			d.sweep(ctx, &g)
			lastSweep = time.Now()
		}
	}

	slog.InfoContext(ctx, "dispatcher stopping, draining workers")
	_ = g.Wait()
	return nil
}

// notified handles one notification payload. A payload that is not a
// job id is logged and dropped, it must not take the dispatcher down.
func (d *Dispatcher) notified(ctx context.Context, g *errgroup.Group, payload string) {
	id, err := uuid.Parse(payload)
	if err != nil {
		perr := &model.NotificationParseError{Payload: payload, Err: err}
		slog.WarnContext(ctx, "dropping malformed notification", "error", perr)
		return
	}
	d.submit(ctx, g, id)
}

func (d *Dispatcher) sweep(ctx context.Context, g *errgroup.Group) {
	ids, err := d.Jobs.QueuedIDs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.ErrorContext(ctx, "sweeping queued jobs", "error", err)
		}
		return
	}
	if len(ids) > 0 {
		slog.DebugContext(ctx, "sweep found queued jobs", "count", len(ids))
	}
	for _, id := range ids {
		d.submit(ctx, g, id)
	}
}

// submit hands the job to the pool unless it is already inflight on
// this instance. The store claim stays the cross-instance guard; the
// inflight set only keeps one instance from burning a pool slot on a
// duplicate notification.
func (d *Dispatcher) submit(ctx context.Context, g *errgroup.Group, id uuid.UUID) {
	d.mu.Lock()
	if _, dup := d.inflight[id]; dup {
		d.mu.Unlock()
		return
	}
	d.inflight[id] = struct{}{}
	d.mu.Unlock()

	g.Go(func() error {
		defer func() {
			d.mu.Lock()
			delete(d.inflight, id)
			d.mu.Unlock()
		}()
		if err := d.Processor.Process(ctx, id); err != nil {
			slog.ErrorContext(ctx, "job processing failed", "job", id, "error", err)
		}
		return nil
	})
}

func (d *Dispatcher) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
}
