package worker

import (
	"context"
	"fmt"
	"time"

	"mini-erp/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Locker coordinates sweeps across replicas
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// Scheduler runs jobs on cron schedules, one replica at a time when a
// Locker is configured.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
	ctx     context.Context
}

// NewScheduler creates a scheduler; locker may be nil
func NewScheduler(locker Locker, lockTTL time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  util.GetLogger(),
		ctx:     context.Background(),
	}
}

// Register adds a job under spec, which is either a five-field cron
// expression or a descriptor such as "@every 1h".
func (s *Scheduler) Register(name, spec string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runLocked(s.ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start runs the scheduler until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// runLocked runs job while holding the job's lock. When the lock service
// fails the job runs anyway; when another replica holds it the run is skipped.
func (s *Scheduler) runLocked(ctx context.Context, name string, job func(ctx context.Context)) {
	if s.locker == nil {
		job(ctx)
		return
	}

	lockName := "sweep:" + name
	token, ok, err := s.locker.AcquireLock(ctx, lockName, s.lockTTL)
	switch {
	case err != nil:
		s.logger.Warn("Could not acquire job lock, running unlocked", zap.String("job", name), zap.Error(err))
		job(ctx)
		return
	case !ok:
		s.logger.Info("Job already running elsewhere, skipping", zap.String("job", name))
		return
	}

	defer func() {
		if err := s.locker.ReleaseLock(ctx, lockName, token); err != nil {
			s.logger.Warn("Failed to release job lock", zap.String("job", name), zap.Error(err))
		}
	}()
	job(ctx)
}
