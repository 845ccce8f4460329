// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package scheduler runs the pipeline jobs on fixed intervals.
//
// Every job has its own timer loop and executes on a shared bounded worker
// pool, so different jobs overlap freely. A job never overlaps itself: a tick
// that arrives while the previous run is still going is skipped. Failures and
// panics are logged and recorded in the job's last result.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

// JobFunc is the work performed on every tick.
type JobFunc func(ctx context.Context) error

// JobResult describes the most recent run of a job.
type JobResult struct {
	Name      string
	StartedAt time.Time
	EndedAt   time.Time
	Err       error
	Runs      int // completed runs since Start
	Skipped   int // ticks dropped because the job was still running
}

type job struct {
	name    string
	config  JobConfig
	fn      JobFunc
	running atomic.Bool
}

// Scheduler dispatches registered jobs into a worker pool.
type Scheduler struct {
	pool   *ants.Pool
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	results map[string]JobResult
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	tasks   sync.WaitGroup
	release sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// antsLoggerAdapter adapts slog.Logger to the ants.Logger interface.
type antsLoggerAdapter struct {
	logger *slog.Logger
}

func (a *antsLoggerAdapter) Printf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

// NewScheduler creates a scheduler executing at most poolSize jobs at once.
func NewScheduler(poolSize int, opts ...Option) (*Scheduler, error) {
	if poolSize < 1 {
		return nil, fmt.Errorf("%w: pool size must be greater than 0", ErrInvalidJob)
	}

	s := &Scheduler{
		logger:  slog.Default(),
		jobs:    make(map[string]*job),
		results: make(map[string]JobResult),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "scheduler")

	pool, err := ants.NewPool(poolSize,
		ants.WithNonblocking(true),
		ants.WithLogger(&antsLoggerAdapter{logger: s.logger}))
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Register adds a job. Disabled jobs are accepted but never scheduled;
// they can still be triggered.
func (s *Scheduler) Register(name string, config JobConfig, fn JobFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: %s has no function", ErrInvalidJob, name)
	}
	if config.Enabled {
		if err := config.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	s.jobs[name] = &job{name: name, config: config, fn: fn}
	s.order = append(s.order, name)
	return nil
}

// Start launches the timer loop of every enabled job and returns.
// Jobs stop when ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range s.order {
		j := s.jobs[name]
		if !j.config.Enabled {
			s.logger.Info("job disabled", "job", name)
			continue
		}
		s.loops.Add(1)
		go s.loop(s.ctx, j)
		s.logger.Info("job scheduled", "job", name, "interval", j.config.Interval, "start_delay", j.config.StartDelay)
	}
	return nil
}

// Stop ends the timer loops, waits for running jobs and releases the pool.
// A stopped scheduler cannot be started again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.started = true
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.loops.Wait()
		s.tasks.Wait()
	}
	s.release.Do(func() {
		s.pool.Release()
		s.logger.Info("scheduler stopped")
	})
}

// Trigger runs a job once outside its schedule.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	ctx := s.ctx
	running := s.started && s.cancel != nil
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !running {
		return ErrNotRunning
	}
	return s.dispatch(ctx, j)
}

// Results returns the last result of every job that has run.
func (s *Scheduler) Results() map[string]JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]JobResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.loops.Done()

	timer := time.NewTimer(j.config.StartDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			_ = s.dispatch(ctx, j)
			timer.Reset(j.config.Interval)
		}
	}
}

// dispatch hands j to the pool. The running check and tasks.Add share s.mu
// with Stop, so no task is added once Stop has begun waiting.
func (s *Scheduler) dispatch(ctx context.Context, j *job) error {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn("job still running, skipping tick", "job", j.name)
		s.update(j.name, func(r *JobResult) { r.Skipped++ })
		return nil
	}

	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		j.running.Store(false)
		return ErrNotRunning
	}
	s.tasks.Add(1)
	s.mu.Unlock()

	err := s.pool.Submit(func() {
		defer s.tasks.Done()
		defer j.running.Store(false)
		s.execute(ctx, j)
	})
	if err != nil {
		s.tasks.Done()
		j.running.Store(false)
		s.logger.Error("failed to dispatch job", "job", j.name, "err", err)
		s.update(j.name, func(r *JobResult) { r.Skipped++ })
	}
	return nil
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	started := time.Now()
	s.logger.Info("job started", "job", j.name)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("job panicked", "job", j.name, "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
			}
		}()
		return j.fn(ctx)
	}()

	ended := time.Now()
	if err != nil {
		s.logger.Error("job failed", "job", j.name, "duration", ended.Sub(started), "err", err)
	} else {
		s.logger.Info("job finished", "job", j.name, "duration", ended.Sub(started))
	}

	s.update(j.name, func(r *JobResult) {
		r.StartedAt = started
		r.EndedAt = ended
		r.Err = err
		r.Runs++
	})
}

func (s *Scheduler) update(name string, fn func(*JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.results[name]
	r.Name = name
	fn(&r)
	s.results[name] = r
}
