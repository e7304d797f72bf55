package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/metrics"
)

const outboxRetention = 7 * 24 * time.Hour

// JobFunc runs one scheduled job and reports how many items it touched.
type JobFunc func(ctx context.Context) (int64, error)

type scheduledJob struct {
	name string
	spec string
	run  JobFunc
}

// SchedulerService runs the periodic maintenance jobs on cron schedules.
type SchedulerService struct {
	cron    *cron.Cron
	jobs    []scheduledJob
	timeout time.Duration
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
}

// NewSchedulerService creates a scheduler. Jobs with an empty spec are not registered.
func NewSchedulerService(cfg config.SchedulerConfig, logger *zap.Logger) *SchedulerService {
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cronLogger := cronZapLogger{logger: logger}
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a job. It must be called before Start.
func (s *SchedulerService) Register(name, spec string, run JobFunc) error {
	if spec == "" {
		s.logger.Info("Scheduled job disabled", zap.String("job", name))
		return nil
	}
	job := scheduledJob{name: name, spec: spec, run: run}
	if _, err := s.cron.AddFunc(spec, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// RegisterDefaults wires the CRM maintenance jobs to their configured schedules.
func (s *SchedulerService) RegisterDefaults(cfg config.SchedulerConfig, sm *ServiceManager) error {
	jobs := []scheduledJob{
		{name: "expire_quotations", spec: cfg.ExpireQuotations, run: func(ctx context.Context) (int64, error) {
			n, err := sm.Quotations.ExpireOverdue(ctx)
			return int64(n), err
		}},
		{name: "reconcile_invoices", spec: cfg.ReconcileInvoices, run: func(ctx context.Context) (int64, error) {
			n, err := sm.Payments.ReconcilePending(ctx)
			return int64(n), err
		}},
		{name: "purge_outbox", spec: cfg.PurgeOutbox, run: func(ctx context.Context) (int64, error) {
			return sm.Outbox.CleanupProcessed(ctx, outboxRetention)
		}},
		{name: "refresh_google_tokens", spec: cfg.RefreshGoogle, run: func(ctx context.Context) (int64, error) {
			n, err := sm.Integrations.RefreshExpiring(ctx)
			return int64(n), err
		}},
		{name: "purge_sessions", spec: cfg.PurgeSessions, run: sm.Auth.PurgeExpiredSessions},
	}
	for _, job := range jobs {
		if err := s.Register(job.name, job.spec, job.run); err != nil {
			return err
		}
	}
	return nil
}

func (s *SchedulerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *SchedulerService) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out, jobs still running")
	}
}

// RunNow executes a registered job synchronously.
func (s *SchedulerService) RunNow(name string) error {
	for _, job := range s.jobs {
		if job.name == name {
			return s.execute(job)
		}
	}
	return fmt.Errorf("unknown job %s", name)
}

func (s *SchedulerService) execute(job scheduledJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	count, err := job.run(ctx)
	duration := time.Since(start)
	metrics.RecordJobRun(job.name, err == nil, duration)

	if err != nil {
		s.logger.Error("Scheduled job failed",
			zap.String("job", job.name),
			zap.Duration("duration", duration),
			zap.Error(err))
		return err
	}
	s.logger.Info("Scheduled job completed",
		zap.String("job", job.name),
		zap.Int64("affected", count),
		zap.Duration("duration", duration))
	return nil
}

// cronZapLogger adapts zap to cron.Logger.
type cronZapLogger struct {
	logger *zap.Logger
}

func (l cronZapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronZapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
