package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// Job is a periodic job.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Locker grants a single instance the right to run a job.
type Locker interface {
	// TryLock returns ok=false without error when another holder owns the lock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker wraps a redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// TryLock acquires key for ttl.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// the lock expires on its own if the release fails
		_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// Scheduler runs registered jobs on cron specs, once per cluster per tick.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	jobs    map[string]Job
	baseCtx context.Context
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithCron supplies a preconfigured cron instance.
func WithCron(c *cron.Cron) SchedulerOption {
	return func(s *Scheduler) { s.cron = c }
}

// WithLocker sets the distributed lock. Without one every instance runs every job.
func WithLocker(l Locker, ttl time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.locker = l
		s.lockTTL = ttl
	}
}

// WithMetrics records job runs.
func WithMetrics(m *observability.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler builds a scheduler.
func NewScheduler(logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{logger: logger, jobs: map[string]Job{}, lockTTL: time.Minute, baseCtx: context.Background()}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLocation(time.UTC))
	}
	return s
}

// Register schedules job. Names must be unique.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("scheduler: job needs a name and a run func")
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("scheduler: job %s already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.Trigger(s.baseCtx, job.Name) }); err != nil {
		return fmt.Errorf("scheduler: invalid spec %q for %s: %w", job.Spec, job.Name, err)
	}
	s.jobs[job.Name] = job
	return nil
}

// Trigger runs a registered job now, honouring the lock. It reports whether the job ran.
func (s *Scheduler) Trigger(ctx context.Context, name string) bool {
	job, ok := s.jobs[name]
	if !ok {
		return false
	}
	logger := s.logger.With(zap.String("job", name))

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, "jobs:lock:"+name, s.lockTTL)
		if err != nil {
			logger.Warn("job lock unavailable; skipping run", zap.Error(err))
			return false
		}
		if !acquired {
			logger.Debug("job locked by another instance")
			return false
		}
		defer release()
	}

	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = job.Run(ctx)
	}()
	s.metrics.RecordJob(name, err, time.Since(start))
	if err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
	} else {
		logger.Debug("job finished", zap.Duration("duration", time.Since(start)))
	}
	return true
}

// Run starts the cron loop and blocks until ctx is cancelled and running jobs return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.baseCtx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}
