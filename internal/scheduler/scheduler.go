package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var ErrStarted = errors.New("scheduler already started")

// Job is one recurring cycle.
type Job struct {
	Name     string
	Schedule cron.Schedule
	Run      func(ctx context.Context, cycleID string) error
}

// Scheduler fires each job once at Start and then on its schedule. Every
// firing runs in its own goroutine, so a slow cycle may overlap the next.
type Scheduler struct {
	Logger *zap.Logger
	Jobs   []Job
	Now    func() time.Time
	After  func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	loops  sync.WaitGroup
	runs   sync.WaitGroup
}

func New(logger *zap.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		Logger: logger,
		Jobs:   jobs,
		Now:    time.Now,
		After:  time.After,
	}
}

// Start launches one loop per job. The loops stop when ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.Jobs {
		s.loops.Add(1)
		go s.loop(ctx, j)
	}
	s.Logger.Info("scheduler_started", zap.Int("jobs", len(s.Jobs)))
	return nil
}

// Stop cancels the loops and in-flight cycles and waits for them to
// return. The scheduler can be started again afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.loops.Wait()
	s.runs.Wait()
	s.Logger.Info("scheduler_stopped")
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	defer s.loops.Done()

	s.fire(ctx, j)
	for {
		now := s.Now()
		wait := j.Schedule.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-s.After(wait):
			s.fire(ctx, j)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	id := uuid.NewString()
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		start := s.Now()
		log := s.Logger.With(zap.String("job", j.Name), zap.String("cycle_id", id))
		log.Debug("cycle_started")
		if err := j.Run(ctx, id); err != nil {
			log.Warn("cycle_failed", zap.Error(err), zap.Duration("took", s.Now().Sub(start)))
			return
		}
		log.Debug("cycle_finished", zap.Duration("took", s.Now().Sub(start)))
	}()
}
