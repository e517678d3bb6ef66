package rbac

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway"
	"github.com/gemeos/tenant-auth/pkg/observability"
	"github.com/gemeos/tenant-auth/pkg/session"
	"github.com/gemeos/tenant-auth/pkg/storage"
)

// DefaultBulkCheckWorkers bounds concurrent remote checks in CheckPermissions
const DefaultBulkCheckWorkers = 4

// Auditor records mutating actions. *audit.Logger satisfies it.
type Auditor interface {
	RecordAsync(ctx context.Context, action, resourceType, resourceID string, changes map[string]any)
}

// Deps are the collaborators an Engine needs
type Deps struct {
	Gateway     gateway.Gateway
	Sessions    *session.Cache
	Tenant      *storage.CurrentTenant
	Permissions PermissionCache
	// Audit is optional
	Audit Auditor
}

// Engine answers tenant and permission questions for the logged-in user.
// Construct one per process.
type Engine struct {
	gw          gateway.Gateway
	sessions    *session.Cache
	tenant      *storage.CurrentTenant
	permissions PermissionCache
	audit       Auditor

	// permMu serializes permission cache writes against clears. generation
	// is bumped on every clear so a fetch that started earlier cannot store
	// its result afterwards.
	permMu     sync.Mutex
	generation uint64

	clock       clockwork.Clock
	bulkWorkers int
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the clock used for membership timestamps
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithBulkCheckWorkers bounds concurrency in CheckPermissions
func WithBulkCheckWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.bulkWorkers = n
		}
	}
}

// NewEngine creates an engine. Sessions, Tenant and Permissions default to
// in-memory components over deps.Gateway when nil.
func NewEngine(deps Deps, opts ...Option) (*Engine, error) {
	if deps.Gateway == nil {
		return nil, errors.New("gateway is required")
	}

	e := &Engine{
		gw:          deps.Gateway,
		sessions:    deps.Sessions,
		tenant:      deps.Tenant,
		permissions: deps.Permissions,
		audit:       deps.Audit,
		clock:       clockwork.NewRealClock(),
		bulkWorkers: DefaultBulkCheckWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = observability.NewNopLogger()
	}
	e.logger = e.logger.WithField("component", "rbac")

	if e.sessions == nil {
		e.sessions = session.NewCache(deps.Gateway, session.WithLogger(e.logger), session.WithMetrics(e.metrics))
	}
	if e.tenant == nil {
		e.tenant = storage.NewCurrentTenant(nil)
	}
	if e.permissions == nil {
		cache, err := NewLRUPermissionCache(DefaultPermissionCacheSize)
		if err != nil {
			return nil, err
		}
		e.permissions = cache
	}

	return e, nil
}

// Session returns the current session, or nil when nobody is logged in
func (e *Engine) Session(ctx context.Context) *auth.Session {
	return e.sessions.Current(ctx)
}

// Sessions exposes the session cache
func (e *Engine) Sessions() *session.Cache {
	return e.sessions
}

// Permissions exposes the permission cache
func (e *Engine) Permissions() PermissionCache {
	return e.permissions
}

// SwitchTenant makes tenantID current. It returns false without error when
// nobody is logged in, and an *auth.AuthorizationError when the user is not a
// member of tenantID. On success the permission cache is cleared and the
// choice is persisted.
func (e *Engine) SwitchTenant(ctx context.Context, tenantID string) (bool, error) {
	s := e.sessions.Current(ctx)
	if s == nil {
		e.metrics.IncTenantSwitch("no_session")
		return false, nil
	}

	if !s.HasTenant(tenantID) {
		e.metrics.IncTenantSwitch("denied")
		e.logger.WithFields(map[string]interface{}{
			"user_id":   s.UserID,
			"tenant_id": tenantID,
		}).Warn("Rejected switch to tenant outside memberships")
		return false, auth.NewAuthorizationError("You do not have access to this tenant", tenantID)
	}

	persistErr := e.tenant.Set(ctx, tenantID)
	e.clearPermissions(ctx)

	if persistErr != nil {
		e.degrade(auth.OpPersistTenant, persistErr, map[string]interface{}{"tenant_id": tenantID})
	}

	e.metrics.IncTenantSwitch("ok")
	e.logger.WithFields(map[string]interface{}{
		"user_id":   s.UserID,
		"tenant_id": tenantID,
	}).Info("Switched tenant")
	return true, nil
}

// CurrentTenantID returns the in-memory tenant pointer, else the persisted
// value, else ""
func (e *Engine) CurrentTenantID(ctx context.Context) string {
	id, err := e.tenant.Get(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to read persisted tenant")
	}
	return id
}

// HasPermission reports whether the user may perform action on resource in
// the current tenant. Platform admins are allowed without a remote call.
// Any remote failure denies.
func (e *Engine) HasPermission(ctx context.Context, resource auth.Resource, action auth.Action) bool {
	s := e.sessions.Current(ctx)
	if s == nil {
		e.metrics.IncPermissionCheck("no_session")
		return false
	}
	if s.IsPlatformAdmin {
		e.metrics.IncPermissionCheck("admin")
		return true
	}

	tenantID := e.CurrentTenantID(ctx)
	if tenantID == "" {
		e.metrics.IncPermissionCheck("no_tenant")
		return false
	}

	allowed, _ := e.checkRemote(ctx, s.UserID, tenantID, resource, action)
	return allowed
}

// checkRemote asks the backend and records the outcome
func (e *Engine) checkRemote(ctx context.Context, userID, tenantID string, resource auth.Resource, action auth.Action) (bool, error) {
	allowed, err := e.gw.UserHasPermission(ctx, userID, tenantID, resource, action)
	if err != nil {
		e.metrics.IncPermissionCheck("error")
		e.degrade(auth.OpHasPermission, err, map[string]interface{}{
			"user_id":   userID,
			"tenant_id": tenantID,
			"resource":  string(resource),
			"action":    string(action),
		})
		denied, _ := auth.Fallback(auth.OpHasPermission, false, false)
		return denied, err
	}
	if allowed {
		e.metrics.IncPermissionCheck("allowed")
	} else {
		e.metrics.IncPermissionCheck("denied")
	}
	return allowed, nil
}

// UserPermissions returns the permissions granted to the user's role in the
// current tenant. It returns an empty slice when there is no session, no
// current tenant, no membership in that tenant, or the fetch fails.
func (e *Engine) UserPermissions(ctx context.Context) []auth.Permission {
	s := e.sessions.Current(ctx)
	if s == nil {
		return []auth.Permission{}
	}
	tenantID := e.CurrentTenantID(ctx)
	if tenantID == "" {
		return []auth.Permission{}
	}
	return e.permissionsFor(ctx, s, s.Membership(tenantID))
}

func (e *Engine) permissionsFor(ctx context.Context, s *auth.Session, m *auth.Membership) []auth.Permission {
	if m == nil {
		return []auth.Permission{}
	}

	cached, ok, err := e.permissions.Get(ctx, s.UserID, m.TenantID)
	if err != nil {
		e.logger.WithError(err).Warn("Permission cache read failed")
	}
	if ok {
		e.metrics.IncPermissionCache("hit")
		return cached
	}
	e.metrics.IncPermissionCache("miss")

	e.permMu.Lock()
	generation := e.generation
	e.permMu.Unlock()

	perms, err := e.gw.ListRolePermissions(ctx, m.RoleID, m.TenantID)
	if err != nil {
		e.degrade(auth.OpUserPermissions, err, map[string]interface{}{
			"user_id":   s.UserID,
			"tenant_id": m.TenantID,
			"role_id":   m.RoleID,
		})
		fallback, _ := auth.Fallback(auth.OpUserPermissions, []auth.Permission{}, []auth.Permission{})
		return fallback
	}
	if perms == nil {
		perms = []auth.Permission{}
	}

	e.permMu.Lock()
	defer e.permMu.Unlock()
	if e.generation != generation {
		// Cleared mid-fetch; the caller still gets its result, the cache does not.
		e.metrics.IncPermissionCache("stale")
		return perms
	}
	if err := e.permissions.Set(ctx, s.UserID, m.TenantID, perms); err != nil {
		e.logger.WithError(err).Warn("Permission cache write failed")
	}
	return perms
}

// effectiveMembership is the membership for the selected tenant, or the
// session's default membership when no tenant has been selected
func (e *Engine) effectiveMembership(ctx context.Context, s *auth.Session) *auth.Membership {
	if s == nil {
		return nil
	}
	if tenantID := e.CurrentTenantID(ctx); tenantID != "" {
		return s.Membership(tenantID)
	}
	return s.CurrentTenant
}

// TenantContext bundles the current tenant, the user's role in it, and the
// role's permissions. It is nil without a session or current tenant.
func (e *Engine) TenantContext(ctx context.Context) *auth.TenantContext {
	s := e.sessions.Current(ctx)
	m := e.effectiveMembership(ctx, s)
	if m == nil {
		return nil
	}
	return &auth.TenantContext{
		Tenant:      m.Tenant,
		Role:        m.Role,
		Permissions: e.permissionsFor(ctx, s, m),
	}
}

// IsPlatformAdmin reports whether the user has universal access
func (e *Engine) IsPlatformAdmin(ctx context.Context) bool {
	s := e.sessions.Current(ctx)
	return s != nil && s.IsPlatformAdmin
}

// IsTenantAdmin reports whether the user administers the current tenant
func (e *Engine) IsTenantAdmin(ctx context.Context) bool {
	return e.hasRole(ctx, auth.RoleTenantAdmin)
}

// IsTeacher reports whether the user teaches in the current tenant
func (e *Engine) IsTeacher(ctx context.Context) bool {
	return e.hasRole(ctx, auth.RoleTeacher)
}

// IsStudent reports whether the user is a student in the current tenant
func (e *Engine) IsStudent(ctx context.Context) bool {
	return e.hasRole(ctx, auth.RoleStudent)
}

func (e *Engine) hasRole(ctx context.Context, role string) bool {
	s := e.sessions.Current(ctx)
	return e.effectiveMembership(ctx, s).RoleName() == role
}

// ClearCache drops every cached permission set
func (e *Engine) ClearCache(ctx context.Context) {
	e.clearPermissions(ctx)
}

func (e *Engine) clearPermissions(ctx context.Context) {
	e.permMu.Lock()
	defer e.permMu.Unlock()
	e.generation++
	if err := e.permissions.Clear(ctx); err != nil {
		e.logger.WithError(err).Warn("Permission cache clear failed")
	}
}

// Logout signs out remotely and then forgets the identity locally. Local
// state is cleared even when the remote sign-out fails; that error is
// returned. The selected tenant is kept.
func (e *Engine) Logout(ctx context.Context) error {
	err := e.gw.SignOut(ctx)
	e.sessions.Clear()
	e.clearPermissions(ctx)

	if err != nil {
		e.logger.WithError(err).Warn("Remote sign-out failed")
		return err
	}
	e.logger.Info("Logged out")
	return nil
}

// Reset clears every cache and the in-memory tenant pointer. The persisted
// tenant is kept.
func (e *Engine) Reset(ctx context.Context) {
	e.sessions.Clear()
	e.tenant.Reset()
	e.clearPermissions(ctx)
}

// degrade logs a remote failure for an operation whose policy hides it.
// The caller serves auth.Fallback in place of the result.
func (e *Engine) degrade(op auth.Operation, err error, fields map[string]interface{}) {
	logger := e.logger.WithError(err).WithFields(fields).WithField("policy", string(auth.PolicyFor(op)))
	logger.Warnf("%s failed", op)
}

func (e *Engine) record(ctx context.Context, action, resourceType, resourceID string, changes map[string]any) {
	if e.audit == nil {
		return
	}
	e.audit.RecordAsync(ctx, action, resourceType, resourceID, changes)
}
