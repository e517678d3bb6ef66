package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway/gatewaytest"
)

func TestEngine_CheckPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.engine.SwitchTenant(ctx, "tenant-2")
	require.NoError(t, err)
	env.fake.Allow("u1", "tenant-2", auth.ResourceDomains, auth.ActionCreate)
	env.fake.Allow("u1", "tenant-2", auth.ResourceConcepts, auth.ActionPublish)

	refs := []auth.PermissionRef{
		{Resource: auth.ResourceDomains, Action: auth.ActionCreate},
		{Resource: auth.ResourceTenants, Action: auth.ActionDelete},
		{Resource: auth.ResourceConcepts, Action: auth.ActionPublish},
		{Resource: auth.ResourceDomains, Action: auth.ActionCreate},
	}
	got := env.engine.CheckPermissions(ctx, refs)

	assert.Equal(t, map[string]bool{
		"domains:create":   true,
		"tenants:delete":   false,
		"concepts:publish": true,
	}, got)
	assert.Equal(t, 3, env.fake.Calls("UserHasPermission"), "duplicates are checked once")
}

func TestEngine_CheckPermissions_NoTenant(t *testing.T) {
	env := newTestEnv(t)
	refs := []auth.PermissionRef{{Resource: auth.ResourceDomains, Action: auth.ActionRead}}

	got := env.engine.CheckPermissions(context.Background(), refs)
	assert.Equal(t, map[string]bool{"domains:read": false}, got)
	assert.Zero(t, env.fake.Calls("UserHasPermission"))
}

func TestEngine_CheckPermissions_PlatformAdmin(t *testing.T) {
	f := gatewaytest.NewFake()
	f.LogIn("root", "admin@gemeos.ai")
	engine, err := NewEngine(Deps{Gateway: f})
	require.NoError(t, err)

	got := engine.CheckPermissions(context.Background(), []auth.PermissionRef{
		{Resource: auth.ResourceTenants, Action: auth.ActionDelete},
		{Resource: auth.ResourceReports, Action: auth.ActionExport},
	})
	assert.Equal(t, map[string]bool{"tenants:delete": true, "reports:export": true}, got)
	assert.Zero(t, f.Calls("UserHasPermission"))
}

func TestEngine_CheckPermissions_FailureDeniesEach(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.engine.SwitchTenant(ctx, "tenant-1")
	require.NoError(t, err)
	env.fake.Allow("u1", "tenant-1", auth.ResourceUsers, auth.ActionInvite)
	env.fake.FailOn("UserHasPermission", errors.New("too many connections"))

	got := env.engine.CheckPermissions(ctx, []auth.PermissionRef{{Resource: auth.ResourceUsers, Action: auth.ActionInvite}})
	assert.Equal(t, map[string]bool{"users:invite": false}, got)
}

func TestEngine_CheckAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.engine.CheckAccess(ctx, auth.ResourceDomains, auth.ActionCreate)
	assert.Equal(t, AccessResult{Reason: ReasonNoTenant}, res)

	_, err := env.engine.SwitchTenant(ctx, "tenant-2")
	require.NoError(t, err)
	env.fake.Allow("u1", "tenant-2", auth.ResourceDomains, auth.ActionCreate)

	res = env.engine.CheckAccess(ctx, auth.ResourceDomains, auth.ActionCreate)
	assert.True(t, res.Allowed)
	assert.Equal(t, "granted by role teacher in tenant tenant-2", res.Reason)

	res = env.engine.CheckAccess(ctx, auth.ResourceTenants, auth.ActionDelete)
	assert.Equal(t, AccessResult{Reason: ReasonNotGranted}, res)

	env.fake.FailOn("UserHasPermission", errors.New("timeout"))
	res = env.engine.CheckAccess(ctx, auth.ResourceDomains, auth.ActionCreate)
	assert.Equal(t, AccessResult{Reason: ReasonCheckFailed}, res)
}

func TestEngine_CheckAccess_NoSession(t *testing.T) {
	engine, err := NewEngine(Deps{Gateway: gatewaytest.NewFake()})
	require.NoError(t, err)

	res := engine.CheckAccess(context.Background(), auth.ResourceDomains, auth.ActionRead)
	assert.Equal(t, AccessResult{Reason: ReasonNoSession}, res)
}
