package rbac

import "context"

// State is the engine's position in NoSession -> SessionNoTenant -> SessionWithTenant
type State string

const (
	StateNoSession         State = "no_session"
	StateSessionNoTenant   State = "session_no_tenant"
	StateSessionWithTenant State = "session_with_tenant"
)

// State reports the current tenant-context state
func (e *Engine) State(ctx context.Context) State {
	s := e.sessions.Current(ctx)
	if s == nil {
		return StateNoSession
	}
	if e.effectiveMembership(ctx, s) == nil {
		return StateSessionNoTenant
	}
	return StateSessionWithTenant
}
