package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ecclesiahq/ecclesia/internal/config"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	"github.com/ecclesiahq/ecclesia/internal/sweep"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
)

const (
	JobOverdue   = "overdue"
	JobReminders = "reminders"

	jobTimeout = 30 * time.Minute
)

var ErrUnknownJob = errors.New("unknown_job")

type Sweeper interface {
	RunOverdue(ctx context.Context) (*sweep.OverdueSummary, error)
	RunReminders(ctx context.Context) (*sweep.ReminderSummary, error)
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
}

// Scheduler runs the billing sweeps on cron schedules (UTC).
type Scheduler struct {
	cron   *cron.Cron
	jobs   map[string]job
	locker Locker
	log    *zap.Logger
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Sweeper *sweep.Service
	Redis   *redis.Client `optional:"true"`
}

func New(p Params) (*Scheduler, error) {
	var locker Locker = noopLocker{}
	if p.Redis != nil {
		locker = NewRedisLocker(p.Redis, "ecclesia:scheduler:")
	}
	return newScheduler(p.Config.Sweep, p.Sweeper, locker, p.Log)
}

func newScheduler(cfg config.SweepConfig, sweeper Sweeper, locker Locker, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		jobs:   map[string]job{},
		locker: locker,
		log:    log.Named("scheduler"),
	}

	overdue := job{name: JobOverdue, schedule: cfg.OverdueSchedule, run: func(ctx context.Context) error {
		summary, err := sweeper.RunOverdue(ctx)
		if err != nil {
			return err
		}
		s.log.Info("overdue job done",
			zap.Int("processed", summary.Processed),
			zap.Int("suspended", summary.Suspended),
			zap.Int("errors", len(summary.Errors)),
		)
		return nil
	}}
	reminders := job{name: JobReminders, schedule: cfg.ReminderSchedule, run: func(ctx context.Context) error {
		summary, err := sweeper.RunReminders(ctx)
		if err != nil {
			return err
		}
		s.log.Info("reminder job done",
			zap.Int("sent", summary.Sent),
			zap.Int("errors", len(summary.Errors)),
		)
		return nil
	}}

	for _, j := range []job{overdue, reminders} {
		s.jobs[j.name] = j
		if j.schedule == "" {
			s.log.Info("job not scheduled", zap.String("job", j.name))
			continue
		}
		name := j.name
		if _, err := s.cron.AddFunc(j.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := s.RunJob(ctx, name); err != nil {
				s.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", j.schedule, j.name, err)
		}
	}
	return s, nil
}

// RunJob runs a job now. When another replica holds the job lock the call
// returns nil without running.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return ErrUnknownJob
	}

	token, owner, err := s.locker.Acquire(ctx, name, jobTimeout)
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", name, err)
	}
	if !owner {
		s.log.Info("job already running elsewhere", zap.String("job", name))
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.Background(), name, token); err != nil {
			s.log.Warn("release job lock failed", zap.String("job", name), zap.Error(err))
		}
	}()

	start := time.Now()
	s.log.Info("job started", zap.String("job", name))
	if err := j.run(ctx); err != nil {
		observability.CaptureError(err)
		return err
	}
	s.log.Info("job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Register ties the cron loop to the fx lifecycle.
func Register(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop(ctx)
			return nil
		},
	})
}
