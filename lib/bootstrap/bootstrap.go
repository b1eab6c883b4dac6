// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/hostlock"
	"github.com/bureau-foundation/rendezvous/lib/liveness"
)

// Default timeouts applied when the corresponding [Config] field is
// zero.
const (
	DefaultDiscoverTimeout = 500 * time.Millisecond
	DefaultTimeout         = 30 * time.Second
)

// Config parameterizes [Run]. C is the connection type returned by
// Dial.
type Config[C io.Closer] struct {
	// Slot locates the record and lock files. Required.
	Slot Slot

	// Dial attempts one connection to the service. The context carries
	// the per-attempt timeout. Required.
	Dial func(ctx context.Context) (C, error)

	// HealthCheck optionally verifies a fresh connection. A failing
	// connection is closed and treated as no instance at all.
	HealthCheck func(ctx context.Context, conn C) error

	// Create starts the service. It should return once the start has
	// been initiated; readiness is detected by connect-after-create.
	// Required.
	Create func(ctx context.Context) error

	// Checker validates the owner named in the slot's liveness record
	// before creating. Nil skips the record check entirely.
	Checker *liveness.Checker

	// Logger receives progress at debug level and reclaim decisions at
	// info level. Nil discards.
	Logger *slog.Logger

	// Clock drives every wait. Nil means the real clock.
	Clock clock.Clock

	// DiscoverTimeout bounds each individual dial and health check.
	DiscoverTimeout time.Duration

	// Timeout bounds the entire call.
	Timeout time.Duration

	// Retry paces connect-after-create. The zero value means
	// [DefaultRetry].
	Retry RetryPolicy

	// Contention paces retries while another process holds the
	// creation lock. The zero value means [DefaultContention].
	Contention RetryPolicy
}

// Result describes a successful [Run].
type Result[C io.Closer] struct {
	// Conn is the established connection. The caller owns it.
	Conn C

	// State is StateConnected when the first discovery succeeded and
	// StateBootstrapped when the connection came through the creation
	// path.
	State State

	// Path reports how the connection was obtained.
	Path Path

	// Contentions counts how many times the creation lock was found
	// held by another process.
	Contentions int

	// ConnectAttempts counts connect-after-create attempts.
	ConnectAttempts int

	// Elapsed is the time from start to success.
	Elapsed time.Duration
}

// Created reports whether this call started the service.
func (r Result[C]) Created() bool { return r.Path == PathCreated }

// Run connects to the service for config.Slot, creating it if no
// instance is reachable. At most one of any number of concurrent
// callers on the host invokes Create for a given slot at a time.
func Run[C io.Closer](ctx context.Context, config Config[C]) (Result[C], error) {
	if config.Dial == nil {
		return Result[C]{}, errors.New("bootstrap: Config.Dial is required")
	}
	if config.Create == nil {
		return Result[C]{}, errors.New("bootstrap: Config.Create is required")
	}
	if config.Slot.Name == "" {
		return Result[C]{}, errors.New("bootstrap: Config.Slot is required")
	}

	r := newRunner(config)
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	return r.run(ctx)
}

type runner[C io.Closer] struct {
	config   Config[C]
	clock    clock.Clock
	logger   *slog.Logger
	store    *liveness.Store
	started  time.Time
	deadline time.Time
	state    State
	result   Result[C]
}

func newRunner[C io.Closer](config Config[C]) *runner[C] {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.DiscoverTimeout <= 0 {
		config.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Retry == (RetryPolicy{}) {
		config.Retry = DefaultRetry()
	}
	if config.Retry.MaxAttempts < 1 {
		config.Retry.MaxAttempts = 1
	}
	if config.Contention == (RetryPolicy{}) {
		config.Contention = DefaultContention()
	}
	logger := config.Logger.With("slot", config.Slot.Name)
	started := config.Clock.Now()
	return &runner[C]{
		config:   config,
		clock:    config.Clock,
		logger:   logger,
		store:    liveness.NewStore(config.Slot.RecordPath(), logger),
		started:  started,
		deadline: started.Add(config.Timeout),
		state:    StateDiscovering,
	}
}

func (r *runner[C]) run(ctx context.Context) (Result[C], error) {
	for {
		r.transition(StateDiscovering)
		if conn, ok := r.tryConnect(ctx); ok {
			return r.succeed(conn, StateConnected, PathDiscovered), nil
		}
		if err := r.checkDeadline(ctx); err != nil {
			return r.fail(err)
		}

		r.transition(StateCreating)
		guard, err := hostlock.TryAcquire(r.config.Slot.LockPath())
		if errors.Is(err, hostlock.ErrWouldBlock) {
			r.result.Contentions++
			delay := r.config.Contention.Delay(r.result.Contentions)
			r.logger.Debug("creation lock held by another process, waiting",
				"contentions", r.result.Contentions,
				"delay", delay,
			)
			if err := r.sleep(ctx, delay); err != nil {
				return r.fail(err)
			}
			continue
		}
		if err != nil {
			return r.fail(&Error{Kind: ErrIO, Err: err})
		}

		conn, path, err := r.createLocked(ctx, guard)
		if err != nil {
			return r.fail(err)
		}
		if path == PathDoubleChecked {
			return r.succeed(conn, StateBootstrapped, path), nil
		}
		result, restart, err := r.connectAfterCreate(ctx, path)
		if restart {
			continue
		}
		return result, err
	}
}

// createLocked runs with the creation lock held and always releases it
// before returning. It returns a connection only for PathDoubleChecked.
func (r *runner[C]) createLocked(ctx context.Context, guard *hostlock.Guard) (C, Path, error) {
	var zero C
	defer func() {
		if err := guard.Release(); err != nil {
			r.logger.Warn("releasing creation lock", "error", err)
		}
	}()

	if conn, ok := r.tryConnect(ctx); ok {
		r.logger.Debug("instance appeared while acquiring the creation lock")
		return conn, PathDoubleChecked, nil
	}

	if r.config.Checker != nil {
		if record, ok := r.store.Read(); ok {
			if r.config.Checker.IsOwnerAlive(record) {
				r.logger.Info("slot owner is alive but not yet reachable, waiting for it",
					"pid", record.ProcessID,
				)
				return zero, PathAwaitedOwner, nil
			}
			r.logger.Info("reclaiming stale liveness record",
				"pid", record.ProcessID,
				"start_time", record.StartTime,
			)
			r.store.RemoveIfOwned(record)
		}
	}

	r.logger.Debug("creating service")
	if err := r.config.Create(ctx); err != nil {
		if ctx.Err() != nil {
			return zero, 0, contextError(ctx)
		}
		return zero, 0, &Error{Kind: ErrCreationFailed, Err: err}
	}
	return zero, PathCreated, nil
}

// connectAfterCreate retries the connection per config.Retry. For
// PathAwaitedOwner it reports restart when the awaited owner exits
// without ever accepting connections, so that the caller goes back to
// discovery and may create in its place.
func (r *runner[C]) connectAfterCreate(ctx context.Context, path Path) (result Result[C], restart bool, err error) {
	var lastErr error
	for attempt := 1; attempt <= r.config.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, r.config.Retry.Delay(attempt-1)); err != nil {
				result, err = r.fail(err)
				return result, false, err
			}
		}
		r.result.ConnectAttempts++
		conn, err := r.connect(ctx)
		if err == nil {
			return r.succeed(conn, StateBootstrapped, path), false, nil
		}
		lastErr = err
		r.logger.Debug("connect after create failed",
			"attempt", attempt,
			"error", err,
		)
		if err := r.checkDeadline(ctx); err != nil {
			result, err = r.fail(err)
			return result, false, err
		}
		if path == PathAwaitedOwner && !r.ownerAlive() {
			r.logger.Info("awaited slot owner exited before accepting connections, starting over")
			return Result[C]{}, true, nil
		}
	}
	result, err = r.fail(&Error{Kind: ErrServiceUnreachable, Err: lastErr})
	return result, false, err
}

// ownerAlive re-reads the liveness record and checks its owner.
func (r *runner[C]) ownerAlive() bool {
	record, ok := r.store.Read()
	return ok && r.config.Checker.IsOwnerAlive(record)
}

func (r *runner[C]) tryConnect(ctx context.Context) (C, bool) {
	conn, err := r.connect(ctx)
	if err != nil {
		r.logger.Debug("no usable instance", "error", err)
		return conn, false
	}
	return conn, true
}

// connect dials once and runs the health check. A connection that
// fails the health check is closed.
func (r *runner[C]) connect(ctx context.Context) (C, error) {
	var zero C
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.config.DiscoverTimeout)
	defer cancel()

	conn, err := r.config.Dial(attemptCtx)
	if err != nil {
		return zero, fmt.Errorf("dial: %w", err)
	}
	if r.config.HealthCheck != nil {
		if err := r.config.HealthCheck(attemptCtx, conn); err != nil {
			conn.Close()
			return zero, fmt.Errorf("health check: %w", err)
		}
	}
	return conn, nil
}

// sleep waits d on the injected clock, returning early with an error
// when the context ends or the overall deadline would pass first.
func (r *runner[C]) sleep(ctx context.Context, d time.Duration) error {
	remaining := r.deadline.Sub(r.clock.Now())
	if remaining <= 0 {
		return &Error{Kind: ErrDeadlineExceeded}
	}
	wait := d
	if wait > remaining {
		wait = remaining
	}
	if wait > 0 {
		select {
		case <-ctx.Done():
			return contextError(ctx)
		case <-r.clock.After(wait):
		}
	}
	return r.checkDeadline(ctx)
}

func (r *runner[C]) checkDeadline(ctx context.Context) error {
	if ctx.Err() != nil {
		return contextError(ctx)
	}
	if !r.clock.Now().Before(r.deadline) {
		return &Error{Kind: ErrDeadlineExceeded}
	}
	return nil
}

func contextError(ctx context.Context) *Error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrDeadlineExceeded, Err: err}
	}
	return &Error{Kind: context.Canceled, Err: err}
}

func (r *runner[C]) transition(state State) {
	if r.state != state {
		r.logger.Debug("bootstrap state", "from", r.state, "to", state)
	}
	r.state = state
}

func (r *runner[C]) succeed(conn C, state State, path Path) Result[C] {
	r.transition(state)
	r.result.Conn = conn
	r.result.State = state
	r.result.Path = path
	r.result.Elapsed = r.clock.Now().Sub(r.started)
	r.logger.Debug("bootstrap complete",
		"path", path,
		"contentions", r.result.Contentions,
		"connect_attempts", r.result.ConnectAttempts,
		"elapsed", r.result.Elapsed,
	)
	return r.result
}

// fail stamps err with the current state and counters.
func (r *runner[C]) fail(err error) (Result[C], error) {
	failedIn := r.state
	r.transition(StateFailed)
	var bootstrapErr *Error
	if !errors.As(err, &bootstrapErr) {
		bootstrapErr = &Error{Kind: ErrIO, Err: err}
	}
	bootstrapErr.State = failedIn
	bootstrapErr.Attempts = r.result.ConnectAttempts
	bootstrapErr.Elapsed = r.clock.Now().Sub(r.started)
	return Result[C]{}, bootstrapErr
}
