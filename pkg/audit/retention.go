package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/gemeos/tenant-auth/pkg/observability"
)

// DefaultRetentionSchedule runs the purge once a day
const DefaultRetentionSchedule = "@daily"

// Retention periodically deletes audit logs older than a number of days
type Retention struct {
	backend  Backend
	days     int
	schedule string
	clock    clockwork.Clock
	logger   *observability.Logger
	metrics  *observability.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

// RetentionOption configures a Retention
type RetentionOption func(*Retention)

// WithRetentionClock overrides the clock used to compute the cutoff
func WithRetentionClock(c clockwork.Clock) RetentionOption {
	return func(r *Retention) { r.clock = c }
}

// WithRetentionLogger sets the logger
func WithRetentionLogger(l *observability.Logger) RetentionOption {
	return func(r *Retention) { r.logger = l }
}

// WithRetentionMetrics sets the metrics sink
func WithRetentionMetrics(m *observability.Metrics) RetentionOption {
	return func(r *Retention) { r.metrics = m }
}

// NewRetention creates a purge job keeping days of history. days <= 0
// disables purging.
func NewRetention(backend Backend, days int, schedule string, opts ...RetentionOption) *Retention {
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	r := &Retention{
		backend:  backend,
		days:     days,
		schedule: schedule,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = observability.NewNopLogger()
	}
	r.logger = r.logger.WithField("component", "audit_retention")
	return r
}

// Enabled reports whether purging is configured
func (r *Retention) Enabled() bool {
	return r.days > 0
}

// Cutoff returns the instant before which logs are purged
func (r *Retention) Cutoff() time.Time {
	return r.clock.Now().UTC().AddDate(0, 0, -r.days)
}

// PurgeOnce deletes everything older than the cutoff
func (r *Retention) PurgeOnce(ctx context.Context) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}

	cutoff := r.Cutoff()
	n, err := r.backend.PurgeAuditLogs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit logs: %w", err)
	}

	r.metrics.AddAuditPurged(n)
	r.logger.WithFields(map[string]interface{}{
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": n,
	}).Info("Purged audit logs")
	return n, nil
}

// Start schedules PurgeOnce on the configured cron schedule. It is a no-op
// when purging is disabled.
func (r *Retention) Start(ctx context.Context) error {
	if !r.Enabled() {
		r.logger.Debug("Audit retention disabled")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		defer observability.RecoverPanic(r.logger, "audit retention")
		if _, err := r.PurgeOnce(ctx); err != nil {
			r.logger.WithError(err).Error("Audit retention run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}

	c.Start()
	r.cron = c
	r.logger.WithFields(map[string]interface{}{
		"schedule": r.schedule,
		"days":     r.days,
	}).Info("Audit retention scheduled")
	return nil
}

// Stop halts the schedule and waits for a running purge to finish
func (r *Retention) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
