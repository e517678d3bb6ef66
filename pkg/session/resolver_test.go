package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway"
	"github.com/gemeos/tenant-auth/pkg/gateway/gatewaytest"
)

func seedDirectory(f *gatewaytest.Fake) {
	f.AddTenant(auth.Tenant{ID: "t1", Name: "North High", Slug: "north", Status: auth.TenantStatusActive})
	f.AddTenant(auth.Tenant{ID: "t2", Name: "South High", Slug: "south", Status: auth.TenantStatusActive})
	f.AddTenant(auth.Tenant{ID: "t3", Name: "East High", Slug: "east", Status: auth.TenantStatusActive})
	f.AddRole(auth.Role{ID: "r-teacher", Name: auth.RoleTeacher})
	f.AddRole(auth.Role{ID: "r-admin", Name: auth.RoleTenantAdmin})
	f.AddRole(auth.Role{ID: "r-platform", Name: auth.RolePlatformAdmin})
}

func TestResolver_BatchesLookups(t *testing.T) {
	f := gatewaytest.NewFake()
	seedDirectory(f)
	f.AddMembership(auth.Membership{UserID: "u1", TenantID: "t1", RoleID: "r-teacher"})
	f.AddMembership(auth.Membership{UserID: "u1", TenantID: "t2", RoleID: "r-admin", IsPrimary: true})
	f.AddMembership(auth.Membership{UserID: "u1", TenantID: "t3", RoleID: "r-teacher"})

	r := NewResolver(f, DefaultPlatformAdminRoles, "")
	s, err := r.Resolve(context.Background(), gateway.AuthUser{ID: "u1", Email: "teacher@example.com"})
	require.NoError(t, err)

	assert.Equal(t, 3, f.TotalCalls(), "memberships, tenants and roles in one call each")
	assert.Equal(t, 1, f.Calls("GetTenantsByIDs"))
	assert.Equal(t, 1, f.Calls("GetRolesByIDs"))

	require.Len(t, s.Tenants, 3)
	for _, m := range s.Tenants {
		require.NotNil(t, m.Tenant)
		require.NotNil(t, m.Role)
		assert.Equal(t, m.TenantID, m.Tenant.ID)
	}
	require.NotNil(t, s.CurrentTenant)
	assert.Equal(t, "t2", s.CurrentTenant.TenantID, "primary membership wins")
	assert.False(t, s.IsPlatformAdmin)
}

func TestResolver_NoMemberships(t *testing.T) {
	f := gatewaytest.NewFake()

	r := NewResolver(f, DefaultPlatformAdminRoles, "")
	s, err := r.Resolve(context.Background(), gateway.AuthUser{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.TotalCalls())
	assert.Empty(t, s.Tenants)
	assert.Nil(t, s.CurrentTenant)
}

func TestResolver_FirstMembershipWhenNoPrimary(t *testing.T) {
	f := gatewaytest.NewFake()
	seedDirectory(f)
	f.AddMembership(auth.Membership{UserID: "u1", TenantID: "t3", RoleID: "r-teacher"})
	f.AddMembership(auth.Membership{UserID: "u1", TenantID: "t1", RoleID: "r-teacher"})

	s, err := NewResolver(f, nil, "").Resolve(context.Background(), gateway.AuthUser{ID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, s.CurrentTenant)
	assert.Equal(t, "t3", s.CurrentTenant.TenantID)
}

func TestResolver_PlatformAdmin(t *testing.T) {
	tests := []struct {
		name      string
		roleID    string
		email     string
		seedEmail string
		want      bool
	}{
		{name: "platform role", roleID: "r-platform", email: "ops@example.com", seedEmail: DefaultSeedAdminEmail, want: true},
		{name: "seed email", roleID: "r-teacher", email: "Admin@Gemeos.ai", seedEmail: DefaultSeedAdminEmail, want: true},
		{name: "seed email disabled", roleID: "r-teacher", email: DefaultSeedAdminEmail, seedEmail: "", want: false},
		{name: "ordinary user", roleID: "r-admin", email: "head@example.com", seedEmail: DefaultSeedAdminEmail, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := gatewaytest.NewFake()
			seedDirectory(f)
			f.AddMembership(auth.Membership{UserID: "u1", TenantID: "t1", RoleID: tt.roleID})

			r := NewResolver(f, DefaultPlatformAdminRoles, tt.seedEmail)
			s, err := r.Resolve(context.Background(), gateway.AuthUser{ID: "u1", Email: tt.email})
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.IsPlatformAdmin)
		})
	}
}

func TestResolver_PropagatesErrors(t *testing.T) {
	f := gatewaytest.NewFake()
	seedDirectory(f)
	f.AddMembership(auth.Membership{UserID: "u1", TenantID: "t1", RoleID: "r-teacher"})
	f.FailOn("GetRolesByIDs", errors.New("connection reset"))

	_, err := NewResolver(f, nil, "").Resolve(context.Background(), gateway.AuthUser{ID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve roles")
}
