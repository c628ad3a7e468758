package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

const stopGrace = 5 * time.Second

// Job is one named periodic task
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs named jobs at fixed intervals, each in its own goroutine.
// A failed run is logged and waited out; the job fires again at its next
// tick. Jobs can also be triggered by name for operational recovery.
type Scheduler struct {
	jobs   []Job
	byName map[string]Job
	logger *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler over the given jobs
func New(jobs ...Job) *Scheduler {
	byName := make(map[string]Job, len(jobs))
	for _, job := range jobs {
		byName[job.Name] = job
	}
	return &Scheduler{
		jobs:   jobs,
		byName: byName,
		logger: logger.Named("scheduler"),
	}
}

// Start launches every job loop
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("Scheduler already running")
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(job, s.stopChan)
	}

	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop halts all job loops and waits for in-flight runs to finish, up to a
// grace period
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
	case <-time.After(stopGrace):
		s.logger.Warn("Jobs did not stop within the grace period")
	}
}

// Trigger runs one job immediately by name and returns its error
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	job, ok := s.byName[name]
	if !ok {
		return apperrors.NewJobNotFound(name)
	}

	s.logger.Info("Job triggered", zap.String("job", name))
	return job.Run(ctx)
}

// JobNames lists the registered jobs
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		names = append(names, job.Name)
	}
	return names
}

func (s *Scheduler) runLoop(job Job, stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-time.After(job.Interval):
			s.runJob(job)
		}
	}
}

func (s *Scheduler) runJob(job Job) {
	start := time.Now()
	// Runs own their lifetime; stopping the scheduler does not cancel a run
	// already in flight.
	if err := job.Run(context.Background()); err != nil {
		s.logger.Error("Job failed",
			zap.String("job", job.Name),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Job complete",
		zap.String("job", job.Name),
		zap.Duration("took", time.Since(start)),
	)
}
