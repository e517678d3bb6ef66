// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway"
)

// Fake is an in-memory Gateway. Populate it with the Add* helpers, inject
// failures with FailOn, and inspect traffic with Calls.
type Fake struct {
	mu sync.Mutex

	user        *gateway.AuthUser
	users       map[string]string // email -> id
	tenants     map[string]auth.Tenant
	roles       map[string]auth.Role
	memberships []auth.Membership
	grants      map[string][]auth.Permission // roleID -> permissions
	checks      map[string]bool              // user:tenant:resource:action
	auditLogs   []auth.AuditLog
	invites     []Invite

	failures map[string]error
	calls    map[string]int
	hooks    map[string]func(ctx context.Context)

	Now func() time.Time
}

// Invite records an InviteUserByEmail call
type Invite struct {
	Email    string
	Metadata map[string]any
}

// NewFake creates an empty fake with nobody logged in
func NewFake() *Fake {
	return &Fake{
		users:    make(map[string]string),
		tenants:  make(map[string]auth.Tenant),
		roles:    make(map[string]auth.Role),
		grants:   make(map[string][]auth.Permission),
		checks:   make(map[string]bool),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		hooks:    make(map[string]func(ctx context.Context)),
		Now:      time.Now,
	}
}

var _ gateway.Gateway = (*Fake)(nil)

// LogIn sets the logged-in user
func (f *Fake) LogIn(id, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = &gateway.AuthUser{ID: id, Email: email}
	f.users[email] = id
}

// AddUser registers a user that is not logged in
func (f *Fake) AddUser(id, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = id
}

// AddTenant stores a tenant
func (f *Fake) AddTenant(t auth.Tenant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[t.ID] = t
}

// AddRole stores a role
func (f *Fake) AddRole(r auth.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[r.ID] = r
}

// AddMembership stores a membership; Status defaults to active
func (f *Fake) AddMembership(m auth.Membership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.Status == "" {
		m.Status = auth.MembershipActive
	}
	f.memberships = append(f.memberships, m)
}

// Grant gives roleID a permission
func (f *Fake) Grant(roleID string, p auth.Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[roleID] = append(f.grants[roleID], p)
}

// Allow makes UserHasPermission answer true for the tuple
func (f *Fake) Allow(userID, tenantID string, resource auth.Resource, action auth.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[checkKey(userID, tenantID, resource, action)] = true
}

// AddAuditLog stores an audit log directly
func (f *Fake) AddAuditLog(l auth.AuditLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditLogs = append(f.auditLogs, l)
}

// FailOn makes op return err until cleared with a nil err
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// OnCall runs hook at the start of op, outside the fake's lock. Tests use it
// to block or to interleave operations.
func (f *Fake) OnCall(op string, hook func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[op] = hook
}

// Calls returns how many times op was invoked
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls across all operations
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// ResetCalls zeroes all call counters
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
}

// Memberships returns a copy of all stored memberships
func (f *Fake) Memberships() []auth.Membership {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]auth.Membership(nil), f.memberships...)
}

// AuditLogs returns a copy of all stored audit logs
func (f *Fake) AuditLogs() []auth.AuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]auth.AuditLog(nil), f.auditLogs...)
}

// Invites returns a copy of all recorded invitations
func (f *Fake) Invites() []Invite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Invite(nil), f.invites...)
}

// enter counts the call, runs any hook, and returns the injected failure
func (f *Fake) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	hook := f.hooks[op]
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.failures[op]
}

func checkKey(userID, tenantID string, resource auth.Resource, action auth.Action) string {
	return fmt.Sprintf("%s:%s:%s:%s", userID, tenantID, resource, action)
}

func (f *Fake) GetSession(ctx context.Context) (*gateway.AuthSession, error) {
	if err := f.enter(ctx, "GetSession"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil, nil
	}
	return &gateway.AuthSession{User: *f.user, ExpiresAt: f.Now().Add(time.Hour)}, nil
}

func (f *Fake) GetUser(ctx context.Context) (*gateway.AuthUser, error) {
	if err := f.enter(ctx, "GetUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil, nil
	}
	u := *f.user
	return &u, nil
}

func (f *Fake) SignOut(ctx context.Context) error {
	if err := f.enter(ctx, "SignOut"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = nil
	return nil
}

func (f *Fake) InviteUserByEmail(ctx context.Context, email string, metadata map[string]any) error {
	if err := f.enter(ctx, "InviteUserByEmail"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = append(f.invites, Invite{Email: email, Metadata: metadata})
	return nil
}

func (f *Fake) ListActiveMemberships(ctx context.Context, userID string) ([]auth.Membership, error) {
	if err := f.enter(ctx, "ListActiveMemberships"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []auth.Membership
	for _, m := range f.memberships {
		if m.UserID == userID && m.Status == auth.MembershipActive {
			m.Tenant, m.Role = nil, nil
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *Fake) GetTenantsByIDs(ctx context.Context, ids []string) ([]auth.Tenant, error) {
	if err := f.enter(ctx, "GetTenantsByIDs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []auth.Tenant
	for _, id := range ids {
		if t, ok := f.tenants[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *Fake) GetRolesByIDs(ctx context.Context, ids []string) ([]auth.Role, error) {
	if err := f.enter(ctx, "GetRolesByIDs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []auth.Role
	for _, id := range ids {
		if r, ok := f.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *Fake) GetRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	if err := f.enter(ctx, "GetRoleByName"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			role := r
			return &role, nil
		}
	}
	return nil, nil
}

func (f *Fake) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	if err := f.enter(ctx, "FindUserIDByEmail"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email], nil
}

func (f *Fake) CreateTenant(ctx context.Context, input auth.CreateTenantInput) (*auth.Tenant, error) {
	if err := f.enter(ctx, "CreateTenant"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.Now()
	t := auth.Tenant{
		ID:               uuid.NewString(),
		Name:             input.Name,
		Slug:             input.Slug,
		Description:      input.Description,
		Status:           auth.TenantStatusActive,
		SubscriptionTier: input.SubscriptionTier,
		MaxUsers:         input.MaxUsers,
		MaxDomains:       input.MaxDomains,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if t.SubscriptionTier == "" {
		t.SubscriptionTier = auth.TierFree
	}
	f.tenants[t.ID] = t
	return &t, nil
}

func (f *Fake) GetTenant(ctx context.Context, tenantID string) (*auth.Tenant, error) {
	if err := f.enter(ctx, "GetTenant"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[tenantID]
	if !ok {
		return nil, &auth.TenantNotFoundError{TenantID: tenantID}
	}
	return &t, nil
}

func (f *Fake) UpdateTenant(ctx context.Context, tenantID string, update auth.TenantUpdate) (*auth.Tenant, error) {
	if err := f.enter(ctx, "UpdateTenant"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[tenantID]
	if !ok {
		return nil, &auth.TenantNotFoundError{TenantID: tenantID}
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.Settings != nil {
		t.Settings = update.Settings
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.SubscriptionTier != nil {
		t.SubscriptionTier = *update.SubscriptionTier
	}
	if update.MaxUsers != nil {
		t.MaxUsers = *update.MaxUsers
	}
	if update.MaxDomains != nil {
		t.MaxDomains = *update.MaxDomains
	}
	t.UpdatedAt = f.Now()
	f.tenants[tenantID] = t
	return &t, nil
}

func (f *Fake) UpsertMembership(ctx context.Context, m auth.Membership) error {
	if err := f.enter(ctx, "UpsertMembership"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.memberships {
		if f.memberships[i].UserID == m.UserID && f.memberships[i].TenantID == m.TenantID {
			m.ID = f.memberships[i].ID
			f.memberships[i] = m
			return nil
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	f.memberships = append(f.memberships, m)
	return nil
}

func (f *Fake) SetMembershipStatus(ctx context.Context, userID, tenantID string, status auth.MembershipStatus) error {
	if err := f.enter(ctx, "SetMembershipStatus"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.memberships {
		if f.memberships[i].UserID == userID && f.memberships[i].TenantID == tenantID {
			f.memberships[i].Status = status
		}
	}
	return nil
}

func (f *Fake) ListRolePermissions(ctx context.Context, roleID, tenantID string) ([]auth.Permission, error) {
	if err := f.enter(ctx, "ListRolePermissions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]auth.Permission(nil), f.grants[roleID]...), nil
}

func (f *Fake) ListAuditLogs(ctx context.Context, tenantID string, filter auth.AuditFilter, limit int) ([]auth.AuditLog, error) {
	if err := f.enter(ctx, "ListAuditLogs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []auth.AuditLog
	for _, l := range f.auditLogs {
		if l.TenantID != tenantID {
			continue
		}
		if filter.ResourceType != "" && l.ResourceType != filter.ResourceType {
			continue
		}
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		if filter.StartDate != nil && l.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && l.CreatedAt.After(*filter.EndDate) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) PurgeAuditLogs(ctx context.Context, before time.Time) (int64, error) {
	if err := f.enter(ctx, "PurgeAuditLogs"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.auditLogs[:0]
	var removed int64
	for _, l := range f.auditLogs {
		if l.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	f.auditLogs = kept
	return removed, nil
}

func (f *Fake) UserHasPermission(ctx context.Context, userID, tenantID string, resource auth.Resource, action auth.Action) (bool, error) {
	if err := f.enter(ctx, "UserHasPermission"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks[checkKey(userID, tenantID, resource, action)], nil
}

func (f *Fake) CreateAuditLog(ctx context.Context, entry gateway.AuditEntry) error {
	if err := f.enter(ctx, "CreateAuditLog"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID := ""
	if f.user != nil {
		userID = f.user.ID
	}
	f.auditLogs = append(f.auditLogs, auth.AuditLog{
		ID:           uuid.NewString(),
		TenantID:     entry.TenantID,
		UserID:       userID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Changes:      entry.Changes,
		CreatedAt:    f.Now(),
	})
	return nil
}
