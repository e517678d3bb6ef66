package audit

import (
	"context"
	"sync"
	"time"

	"github.com/gemeos/tenant-auth/pkg/async"
	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway"
	"github.com/gemeos/tenant-auth/pkg/observability"
	"github.com/gemeos/tenant-auth/pkg/storage"
)

// DefaultLimit caps the number of rows returned by Logs
const DefaultLimit = 100

// DefaultAsyncTimeout bounds each RecordAsync write
const DefaultAsyncTimeout = 5 * time.Second

// Backend is the subset of the gateway the audit logger needs
type Backend interface {
	CreateAuditLog(ctx context.Context, entry gateway.AuditEntry) error
	ListAuditLogs(ctx context.Context, tenantID string, filter auth.AuditFilter, limit int) ([]auth.AuditLog, error)
	PurgeAuditLogs(ctx context.Context, before time.Time) (int64, error)
}

// Logger records mutating actions against the current tenant. Writes are
// best-effort: failures are logged and counted, never returned.
type Logger struct {
	backend      Backend
	tenant       *storage.CurrentTenant
	asyncTimeout time.Duration
	logger       *observability.Logger
	metrics      *observability.Metrics

	pending sync.WaitGroup
}

// Option configures a Logger
type Option func(*Logger)

// WithAsyncTimeout overrides DefaultAsyncTimeout
func WithAsyncTimeout(d time.Duration) Option {
	return func(l *Logger) { l.asyncTimeout = d }
}

// WithLogger sets the application logger
func WithLogger(logger *observability.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// NewLogger creates an audit logger that attributes entries to tenant's current value
func NewLogger(backend Backend, tenant *storage.CurrentTenant, opts ...Option) *Logger {
	l := &Logger{
		backend:      backend,
		tenant:       tenant,
		asyncTimeout: DefaultAsyncTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = observability.NewNopLogger()
	}
	l.logger = l.logger.WithField("component", "audit")
	if l.tenant == nil {
		l.tenant = storage.NewCurrentTenant(nil)
	}
	return l
}

func (l *Logger) currentTenantID(ctx context.Context) string {
	id, err := l.tenant.Get(ctx)
	if err != nil {
		l.logger.WithError(err).Warn("Failed to read persisted tenant")
	}
	return id
}

// Record writes an entry for the current tenant and waits for the result.
// Without a current tenant the entry is sent with a NULL tenant and the
// backend decides whether to accept it.
func (l *Logger) Record(ctx context.Context, action, resourceType, resourceID string, changes map[string]any) {
	l.write(ctx, gateway.AuditEntry{
		TenantID:     l.currentTenantID(ctx),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Changes:      changes,
	})
}

// RecordAsync is Record without waiting. The tenant is resolved before
// returning, and the write outlives cancellation of ctx.
func (l *Logger) RecordAsync(ctx context.Context, action, resourceType, resourceID string, changes map[string]any) {
	entry := gateway.AuditEntry{
		TenantID:     l.currentTenantID(ctx),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Changes:      changes,
	}

	l.pending.Add(1)
	async.SafeGoNoError(context.WithoutCancel(ctx), l.logger, l.asyncTimeout, "audit write", func(ctx context.Context) {
		defer l.pending.Done()
		l.write(ctx, entry)
	})
}

func (l *Logger) write(ctx context.Context, entry gateway.AuditEntry) {
	if err := l.backend.CreateAuditLog(ctx, entry); err != nil {
		l.metrics.IncAuditWrite("error")
		l.logger.WithError(err).WithFields(map[string]interface{}{
			"tenant_id":     entry.TenantID,
			"action":        entry.Action,
			"resource_type": entry.ResourceType,
			"resource_id":   entry.ResourceID,
			"policy":        string(auth.PolicyFor(auth.OpAuditWrite)),
		}).Warn("Failed to create audit log")
		return
	}
	l.metrics.IncAuditWrite("ok")
}

// Flush waits for outstanding RecordAsync writes or for ctx to end
func (l *Logger) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Logs returns up to DefaultLimit entries for the current tenant, newest
// first. It returns an empty slice without a remote call when no tenant is
// selected, and an empty slice when the query fails.
func (l *Logger) Logs(ctx context.Context, filter auth.AuditFilter) []auth.AuditLog {
	tenantID := l.currentTenantID(ctx)
	if tenantID == "" {
		return []auth.AuditLog{}
	}

	logs, err := l.backend.ListAuditLogs(ctx, tenantID, filter, DefaultLimit)
	if err != nil {
		l.logger.WithError(err).WithFields(map[string]interface{}{
			"tenant_id": tenantID,
			"policy":    string(auth.PolicyFor(auth.OpAuditRead)),
		}).Warn("Failed to fetch audit logs")
		fallback, _ := auth.Fallback(auth.OpAuditRead, []auth.AuditLog{}, []auth.AuditLog{})
		return fallback
	}
	if logs == nil {
		logs = []auth.AuditLog{}
	}
	return logs
}
