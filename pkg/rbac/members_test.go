package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

func findMembership(ms []auth.Membership, userID, tenantID string) *auth.Membership {
	for i := range ms {
		if ms[i].UserID == userID && ms[i].TenantID == tenantID {
			return &ms[i]
		}
	}
	return nil
}

func TestEngine_AssignRoleToUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.engine.AssignRoleToUser(ctx, auth.AssignRoleInput{UserID: "u2", TenantID: "tenant-1", Role: auth.RoleStudent})
	require.NoError(t, err)

	m := findMembership(env.fake.Memberships(), "u2", "tenant-1")
	require.NotNil(t, m)
	assert.Equal(t, "r-student", m.RoleID)
	assert.Equal(t, auth.MembershipActive, m.Status)
	require.NotNil(t, m.JoinedAt)
	assert.True(t, m.JoinedAt.Equal(env.clock.Now()))

	records := env.audit.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "assign_role", records[0].Action)
}

func TestEngine_AssignRoleToUser_UnknownRole(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.AssignRoleToUser(context.Background(), auth.AssignRoleInput{UserID: "u1", TenantID: "t1", Role: "ghost_role"})
	require.Error(t, err)
	assert.EqualError(t, err, "Role ghost_role not found")

	var notFound *auth.RoleNotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Zero(t, env.fake.Calls("UpsertMembership"))
}

func TestEngine_AssignRoleToUser_Reactivates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.engine.RemoveUserFromTenant(ctx, "u1", "tenant-2"))

	require.NoError(t, env.engine.AssignRoleToUser(ctx, auth.AssignRoleInput{UserID: "u1", TenantID: "tenant-2", Role: auth.RoleTenantAdmin}))

	m := findMembership(env.fake.Memberships(), "u1", "tenant-2")
	require.NotNil(t, m)
	assert.Equal(t, auth.MembershipActive, m.Status)
	assert.Equal(t, "r-admin", m.RoleID)
}

func TestEngine_RemoveUserFromTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.engine.RemoveUserFromTenant(ctx, "u1", "tenant-2"))

	m := findMembership(env.fake.Memberships(), "u1", "tenant-2")
	require.NotNil(t, m, "row is kept")
	assert.Equal(t, auth.MembershipInactive, m.Status)
}

func TestEngine_RemoveUserFromTenant_Propagates(t *testing.T) {
	env := newTestEnv(t)
	env.fake.FailOn("SetMembershipStatus", errors.New("permission denied for table user_tenants"))

	err := env.engine.RemoveUserFromTenant(context.Background(), "u1", "tenant-2")
	assert.Error(t, err)
	assert.Empty(t, env.audit.Records())
}

func TestEngine_InviteUser_ExistingUser(t *testing.T) {
	env := newTestEnv(t)
	env.fake.AddUser("u7", "teacher@example.com")

	err := env.engine.InviteUser(context.Background(), auth.InviteUserInput{
		Email:    "teacher@example.com",
		TenantID: "tenant-1",
		Role:     auth.RoleTeacher,
	})
	require.NoError(t, err)

	m := findMembership(env.fake.Memberships(), "u7", "tenant-1")
	require.NotNil(t, m)
	assert.Equal(t, "r-teacher", m.RoleID)
	assert.Empty(t, env.fake.Invites())
}

func TestEngine_InviteUser_NewUser(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.InviteUser(context.Background(), auth.InviteUserInput{
		Email:    "new@example.com",
		TenantID: "tenant-1",
		Role:     auth.RoleTeacher,
		Domains:  []string{"d1"},
	})
	require.NoError(t, err)

	invites := env.fake.Invites()
	require.Len(t, invites, 1)
	assert.Equal(t, "new@example.com", invites[0].Email)
	assert.Equal(t, "tenant-1", invites[0].Metadata["tenant_id"])
	assert.Equal(t, auth.RoleTeacher, invites[0].Metadata["role"])
	assert.Equal(t, []string{"d1"}, invites[0].Metadata["domains"])

	records := env.audit.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "invite", records[0].Action)
}

func TestEngine_InviteUser_Propagates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	input := auth.InviteUserInput{Email: "new@example.com", TenantID: "tenant-1", Role: auth.RoleTeacher}

	env.fake.FailOn("InviteUserByEmail", errors.New("rate limited"))
	assert.Error(t, env.engine.InviteUser(ctx, input))

	env.fake.FailOn("InviteUserByEmail", nil)
	env.fake.FailOn("FindUserIDByEmail", errors.New("connection reset"))
	assert.Error(t, env.engine.InviteUser(ctx, input))

	env.fake.FailOn("FindUserIDByEmail", nil)
	env.fake.AddUser("u9", "known@example.com")
	err := env.engine.InviteUser(ctx, auth.InviteUserInput{Email: "known@example.com", TenantID: "tenant-1", Role: "ghost_role"})
	assert.EqualError(t, err, "Role ghost_role not found")
}

func TestEngine_InviteUser_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.Error(t, env.engine.InviteUser(ctx, auth.InviteUserInput{TenantID: "tenant-1", Role: auth.RoleTeacher}))
	assert.Error(t, env.engine.InviteUser(ctx, auth.InviteUserInput{Email: "a@example.com", Role: auth.RoleTeacher}))
	assert.Zero(t, env.fake.Calls("FindUserIDByEmail"))
}
