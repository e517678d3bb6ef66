package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/observability"
)

// Traced decorates a Gateway so that every remote call gets its own span,
// a per-call timeout, and a duration observation.
type Traced struct {
	next    Gateway
	tracer  trace.Tracer
	metrics *observability.Metrics
	timeout time.Duration
}

// TracedOption configures a Traced gateway
type TracedOption func(*Traced)

// WithTimeout bounds every remote call. Zero disables the bound.
func WithTimeout(d time.Duration) TracedOption {
	return func(t *Traced) { t.timeout = d }
}

// WithMetrics records call durations and failures
func WithMetrics(m *observability.Metrics) TracedOption {
	return func(t *Traced) { t.metrics = m }
}

// WithTracerProvider overrides the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) TracedOption {
	return func(t *Traced) { t.tracer = tp.Tracer(observability.TracerName) }
}

// NewTraced wraps next
func NewTraced(next Gateway, opts ...TracedOption) *Traced {
	t := &Traced{
		next:   next,
		tracer: otel.Tracer(observability.TracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ Gateway = (*Traced)(nil)

// call runs fn inside a span bounded by the configured timeout
func (t *Traced) call(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	t.metrics.ObserveRemoteCall(op, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *Traced) GetSession(ctx context.Context) (s *AuthSession, err error) {
	err = t.call(ctx, "GetSession", nil, func(ctx context.Context) error {
		s, err = t.next.GetSession(ctx)
		return err
	})
	return s, err
}

func (t *Traced) GetUser(ctx context.Context) (u *AuthUser, err error) {
	err = t.call(ctx, "GetUser", nil, func(ctx context.Context) error {
		u, err = t.next.GetUser(ctx)
		return err
	})
	return u, err
}

func (t *Traced) SignOut(ctx context.Context) error {
	return t.call(ctx, "SignOut", nil, t.next.SignOut)
}

func (t *Traced) InviteUserByEmail(ctx context.Context, email string, metadata map[string]any) error {
	return t.call(ctx, "InviteUserByEmail", nil, func(ctx context.Context) error {
		return t.next.InviteUserByEmail(ctx, email, metadata)
	})
}

func (t *Traced) ListActiveMemberships(ctx context.Context, userID string) (ms []auth.Membership, err error) {
	err = t.call(ctx, "ListActiveMemberships", []attribute.KeyValue{attribute.String("authz.user_id", userID)}, func(ctx context.Context) error {
		ms, err = t.next.ListActiveMemberships(ctx, userID)
		return err
	})
	return ms, err
}

func (t *Traced) GetTenantsByIDs(ctx context.Context, ids []string) (ts []auth.Tenant, err error) {
	err = t.call(ctx, "GetTenantsByIDs", []attribute.KeyValue{attribute.Int("authz.ids", len(ids))}, func(ctx context.Context) error {
		ts, err = t.next.GetTenantsByIDs(ctx, ids)
		return err
	})
	return ts, err
}

func (t *Traced) GetRolesByIDs(ctx context.Context, ids []string) (rs []auth.Role, err error) {
	err = t.call(ctx, "GetRolesByIDs", []attribute.KeyValue{attribute.Int("authz.ids", len(ids))}, func(ctx context.Context) error {
		rs, err = t.next.GetRolesByIDs(ctx, ids)
		return err
	})
	return rs, err
}

func (t *Traced) GetRoleByName(ctx context.Context, name string) (r *auth.Role, err error) {
	err = t.call(ctx, "GetRoleByName", []attribute.KeyValue{attribute.String("authz.role", name)}, func(ctx context.Context) error {
		r, err = t.next.GetRoleByName(ctx, name)
		return err
	})
	return r, err
}

func (t *Traced) FindUserIDByEmail(ctx context.Context, email string) (id string, err error) {
	err = t.call(ctx, "FindUserIDByEmail", nil, func(ctx context.Context) error {
		id, err = t.next.FindUserIDByEmail(ctx, email)
		return err
	})
	return id, err
}

func (t *Traced) CreateTenant(ctx context.Context, input auth.CreateTenantInput) (tenant *auth.Tenant, err error) {
	err = t.call(ctx, "CreateTenant", []attribute.KeyValue{attribute.String("authz.tenant_slug", input.Slug)}, func(ctx context.Context) error {
		tenant, err = t.next.CreateTenant(ctx, input)
		return err
	})
	return tenant, err
}

func (t *Traced) GetTenant(ctx context.Context, tenantID string) (tenant *auth.Tenant, err error) {
	err = t.call(ctx, "GetTenant", []attribute.KeyValue{attribute.String("authz.tenant_id", tenantID)}, func(ctx context.Context) error {
		tenant, err = t.next.GetTenant(ctx, tenantID)
		return err
	})
	return tenant, err
}

func (t *Traced) UpdateTenant(ctx context.Context, tenantID string, update auth.TenantUpdate) (tenant *auth.Tenant, err error) {
	err = t.call(ctx, "UpdateTenant", []attribute.KeyValue{attribute.String("authz.tenant_id", tenantID)}, func(ctx context.Context) error {
		tenant, err = t.next.UpdateTenant(ctx, tenantID, update)
		return err
	})
	return tenant, err
}

func (t *Traced) UpsertMembership(ctx context.Context, m auth.Membership) error {
	return t.call(ctx, "UpsertMembership", []attribute.KeyValue{
		attribute.String("authz.user_id", m.UserID),
		attribute.String("authz.tenant_id", m.TenantID),
	}, func(ctx context.Context) error {
		return t.next.UpsertMembership(ctx, m)
	})
}

func (t *Traced) SetMembershipStatus(ctx context.Context, userID, tenantID string, status auth.MembershipStatus) error {
	return t.call(ctx, "SetMembershipStatus", []attribute.KeyValue{
		attribute.String("authz.user_id", userID),
		attribute.String("authz.tenant_id", tenantID),
	}, func(ctx context.Context) error {
		return t.next.SetMembershipStatus(ctx, userID, tenantID, status)
	})
}

func (t *Traced) ListRolePermissions(ctx context.Context, roleID, tenantID string) (ps []auth.Permission, err error) {
	err = t.call(ctx, "ListRolePermissions", []attribute.KeyValue{
		attribute.String("authz.role_id", roleID),
		attribute.String("authz.tenant_id", tenantID),
	}, func(ctx context.Context) error {
		ps, err = t.next.ListRolePermissions(ctx, roleID, tenantID)
		return err
	})
	return ps, err
}

func (t *Traced) ListAuditLogs(ctx context.Context, tenantID string, filter auth.AuditFilter, limit int) (logs []auth.AuditLog, err error) {
	err = t.call(ctx, "ListAuditLogs", []attribute.KeyValue{attribute.String("authz.tenant_id", tenantID)}, func(ctx context.Context) error {
		logs, err = t.next.ListAuditLogs(ctx, tenantID, filter, limit)
		return err
	})
	return logs, err
}

func (t *Traced) PurgeAuditLogs(ctx context.Context, before time.Time) (n int64, err error) {
	err = t.call(ctx, "PurgeAuditLogs", nil, func(ctx context.Context) error {
		n, err = t.next.PurgeAuditLogs(ctx, before)
		return err
	})
	return n, err
}

func (t *Traced) UserHasPermission(ctx context.Context, userID, tenantID string, resource auth.Resource, action auth.Action) (ok bool, err error) {
	err = t.call(ctx, "UserHasPermission", []attribute.KeyValue{
		attribute.String("authz.user_id", userID),
		attribute.String("authz.tenant_id", tenantID),
		attribute.String("authz.resource", string(resource)),
		attribute.String("authz.action", string(action)),
	}, func(ctx context.Context) error {
		ok, err = t.next.UserHasPermission(ctx, userID, tenantID, resource, action)
		return err
	})
	return ok, err
}

func (t *Traced) CreateAuditLog(ctx context.Context, entry AuditEntry) error {
	return t.call(ctx, "CreateAuditLog", []attribute.KeyValue{
		attribute.String("authz.tenant_id", entry.TenantID),
		attribute.String("authz.audit_action", entry.Action),
	}, func(ctx context.Context) error {
		return t.next.CreateAuditLog(ctx, entry)
	})
}
