package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func every(d time.Duration) JobConfig {
	return JobConfig{Enabled: true, Interval: d}
}

func newTestScheduler(t *testing.T, poolSize int) *Scheduler {
	t.Helper()
	s, err := NewScheduler(poolSize, WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, time.Hour, c.Fetch.Interval)
	assert.Zero(t, c.Fetch.StartDelay)
	assert.Equal(t, 2*time.Minute, c.Embed.StartDelay)
	assert.Equal(t, 24*time.Hour, c.Reap.Interval)
	assert.Equal(t, 3*time.Minute, c.Reap.StartDelay)
}

func TestConfig_Validate(t *testing.T) {
	c := DefaultConfig()
	c.Embed.Interval = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidJob)

	c.Embed.Enabled = false
	assert.NoError(t, c.Validate())

	c.PoolSize = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidJob)
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(t, 1)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register("a", every(time.Hour), noop))
	assert.ErrorIs(t, s.Register("a", every(time.Hour), noop), ErrDuplicateJob)
	assert.ErrorIs(t, s.Register("b", every(0), noop), ErrInvalidJob)
	assert.ErrorIs(t, s.Register("c", every(time.Hour), nil), ErrInvalidJob)
	assert.NoError(t, s.Register("disabled", JobConfig{}, noop))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Register("late", every(time.Hour), noop), ErrAlreadyStarted)
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestNewScheduler_InvalidPoolSize(t *testing.T) {
	_, err := NewScheduler(0)
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	s := newTestScheduler(t, 2)
	var runs atomic.Int32
	require.NoError(t, s.Register("tick", every(20*time.Millisecond), func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	r := s.Results()["tick"]
	assert.GreaterOrEqual(t, r.Runs, 3)
	assert.NoError(t, r.Err)
	assert.False(t, r.EndedAt.Before(r.StartedAt))
}

func TestScheduler_StartDelay(t *testing.T) {
	s := newTestScheduler(t, 1)
	var runs atomic.Int32
	require.NoError(t, s.Register("delayed", JobConfig{Enabled: true, Interval: time.Hour, StartDelay: time.Hour},
		func(context.Context) error {
			runs.Add(1)
			return nil
		}))
	require.NoError(t, s.Start(context.Background()))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

func TestScheduler_DisabledJobNeverScheduled(t *testing.T) {
	s := newTestScheduler(t, 1)
	var runs atomic.Int32
	require.NoError(t, s.Register("off", JobConfig{Interval: time.Millisecond}, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	// Manual triggers still work.
	require.NoError(t, s.Trigger("off"))
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RecoversFailures(t *testing.T) {
	s := newTestScheduler(t, 2)
	jobErr := errors.New("upstream down")
	var healthy atomic.Int32

	require.NoError(t, s.Register("failing", every(time.Hour), func(context.Context) error { return jobErr }))
	require.NoError(t, s.Register("panicking", every(time.Hour), func(context.Context) error { panic("boom") }))
	require.NoError(t, s.Register("healthy", every(time.Hour), func(context.Context) error {
		healthy.Add(1)
		return nil
	}))
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(s.Results()) == 3 }, 2*time.Second, 5*time.Millisecond)

	results := s.Results()
	assert.ErrorIs(t, results["failing"].Err, jobErr)
	assert.ErrorIs(t, results["panicking"].Err, ErrJobPanicked)
	assert.NoError(t, results["healthy"].Err)
	assert.Equal(t, int32(1), healthy.Load())

	// A panicking job can run again.
	require.NoError(t, s.Trigger("panicking"))
	assert.Eventually(t, func() bool { return s.Results()["panicking"].Runs == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_JobsOverlapButNeverWithThemselves(t *testing.T) {
	s := newTestScheduler(t, 4)
	release := make(chan struct{})
	var slowRuns, fastRuns atomic.Int32

	require.NoError(t, s.Register("slow", every(time.Hour), func(ctx context.Context) error {
		slowRuns.Add(1)
		<-release
		return nil
	}))
	require.NoError(t, s.Register("fast", every(time.Hour), func(context.Context) error {
		fastRuns.Add(1)
		return nil
	}))
	require.NoError(t, s.Start(context.Background()))

	// fast completes while slow is still blocked.
	assert.Eventually(t, func() bool { return fastRuns.Load() == 1 && slowRuns.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Trigger("slow"))
	assert.Equal(t, 1, s.Results()["slow"].Skipped)
	assert.Equal(t, int32(1), slowRuns.Load())

	close(release)
	assert.Eventually(t, func() bool { return s.Results()["slow"].Runs == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	s, err := NewScheduler(1)
	require.NoError(t, err)

	started := make(chan struct{})
	require.NoError(t, s.Register("blocking", every(time.Hour), func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, s.Start(context.Background()))
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.ErrorIs(t, s.Results()["blocking"].Err, context.Canceled)
	assert.ErrorIs(t, s.Trigger("blocking"), ErrNotRunning)
	assert.ErrorIs(t, s.Trigger("missing"), ErrUnknownJob)
}

func TestScheduler_TriggerRacingStop(t *testing.T) {
	s, err := NewScheduler(4, WithLogger(nil))
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Register("manual", JobConfig{}, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Start(context.Background()))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				err := s.Trigger("manual")
				if err != nil {
					assert.ErrorIs(t, err, ErrNotRunning)
					return
				}
			}
		}()
	}
	s.Stop()
	wg.Wait()

	assert.ErrorIs(t, s.Trigger("manual"), ErrNotRunning)
	// Every dispatched run finished before Stop returned.
	assert.Equal(t, runs.Load(), int32(s.Results()["manual"].Runs))
}
