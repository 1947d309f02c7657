package asyncjob

import (
	"context"
	"sync"
)

// RunFunc executes one unit of work for a SingleJob and returns its result.
// It receives the context passed to Spawn so long-running git operations can
// observe cancellation.
type RunFunc[J any, R any] func(ctx context.Context, job J) (R, error)

// SingleJob is a single-slot, coalescing job scheduler: at most one instance
// of J is ever running at a time, and at most one more is queued behind it.
// Spawning while a job is already queued overwrites the queued job instead of
// growing a backlog, so a burst of identical requests (for example, the UI
// re-requesting a diff on every keystroke) collapses into running the
// latest one only. This mirrors AsyncSingleJob's dispatch algorithm in the
// original_source implementation.
type SingleJob[J any, R any] struct {
	mu        sync.Mutex
	pending   bool
	queued    *J
	last      R
	lastErr   error
	hasResult bool

	run    RunFunc[J, R]
	onDone func(R, error)
}

// NewSingleJob creates a SingleJob that executes run for each spawned job.
// onDone, if non-nil, is invoked exactly once per job that actually runs
// (not for jobs overwritten while still queued), from the worker goroutine.
func NewSingleJob[J any, R any](run RunFunc[J, R], onDone func(R, error)) *SingleJob[J, R] {
	return &SingleJob[J, R]{
		run:    run,
		onDone: onDone,
	}
}

// Spawn queues job to run. It returns true if this call started the worker
// loop, and false if a job was already pending and this one simply replaced
// whatever was queued behind it — the caller in that case does nothing
// further, since the already-running drain loop will pick it up.
func (s *SingleJob[J, R]) Spawn(ctx context.Context, job J) bool {
	s.mu.Lock()

	if s.pending {
		s.queued = &job
		s.mu.Unlock()

		return false
	}

	s.pending = true
	s.queued = &job
	s.mu.Unlock()

	go s.drain(ctx)

	return true
}

// Cancel removes a job queued behind one that is already running. It
// returns true iff a queued job was actually removed. A job that is already
// running is never interrupted — Cancel only ever prevents a not-yet-started
// request from starting.
func (s *SingleJob[J, R]) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queued == nil {
		return false
	}

	s.queued = nil

	return true
}

// IsPending reports whether a job is currently running or queued.
func (s *SingleJob[J, R]) IsPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending
}

// Last returns the most recently completed result, if any.
func (s *SingleJob[J, R]) Last() (R, error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last, s.lastErr, s.hasResult
}

// drain runs the queued job, then re-checks for a newer one queued while it
// ran, looping under the same lock that guards Spawn's pending check until
// the slot is empty. This re-check-after-run step is what prevents a job
// spawned mid-run from being silently dropped: Spawn never starts a second
// drain loop while pending is true, so there is always exactly one drain
// goroutine per SingleJob.
func (s *SingleJob[J, R]) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		job := s.queued
		s.queued = nil

		if job == nil {
			s.pending = false
			s.mu.Unlock()

			return
		}

		s.mu.Unlock()

		result, err := s.run(ctx, *job)

		s.mu.Lock()
		s.last = result
		s.lastErr = err
		s.hasResult = true
		s.mu.Unlock()

		if s.onDone != nil {
			s.onDone(result, err)
		}
	}
}
