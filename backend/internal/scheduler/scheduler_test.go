package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "notegraph/backend/pkg/errors"
)

func TestScheduler_RunsJobsPeriodically(t *testing.T) {
	var runs int64
	s := New(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if got := atomic.LoadInt64(&runs); got < 2 {
		t.Errorf("expected at least 2 runs, got %d", got)
	}
}

func TestScheduler_StopHaltsJobs(t *testing.T) {
	var runs int64
	s := New(Job{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	after := atomic.LoadInt64(&runs)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != after {
		t.Errorf("job kept running after Stop: %d -> %d", after, got)
	}
}

func TestScheduler_FailingJobKeepsTicking(t *testing.T) {
	var runs int64
	s := New(Job{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return errors.New("transient failure")
		},
	})

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if got := atomic.LoadInt64(&runs); got < 2 {
		t.Errorf("expected the job to keep ticking despite failures, got %d runs", got)
	}
}

func TestScheduler_Trigger(t *testing.T) {
	var runs int64
	s := New(Job{
		Name:     "statistics",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	if err := s.Trigger(context.Background(), "statistics"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Errorf("expected exactly 1 run, got %d", got)
	}
}

func TestScheduler_TriggerReturnsJobError(t *testing.T) {
	wantErr := errors.New("no database")
	s := New(Job{
		Name:     "data_cleanup",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			return wantErr
		},
	})

	if err := s.Trigger(context.Background(), "data_cleanup"); !errors.Is(err, wantErr) {
		t.Errorf("expected the job error, got %v", err)
	}
}

func TestScheduler_TriggerUnknownJob(t *testing.T) {
	s := New()

	err := s.Trigger(context.Background(), "missing")
	if !apperrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestScheduler_StartAndStopAreIdempotent(t *testing.T) {
	s := New(Job{
		Name:     "tick",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { return nil },
	})

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

func TestScheduler_JobNames(t *testing.T) {
	s := New(
		Job{Name: "relation_weight_update", Interval: time.Hour, Run: func(ctx context.Context) error { return nil }},
		Job{Name: "embedding_sync", Interval: time.Hour, Run: func(ctx context.Context) error { return nil }},
	)

	names := s.JobNames()
	if len(names) != 2 || names[0] != "relation_weight_update" || names[1] != "embedding_sync" {
		t.Errorf("unexpected job names: %v", names)
	}
}
