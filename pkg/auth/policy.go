package auth

// FailureMode says what an operation does when a remote call fails
type FailureMode string

const (
	// FailOpen serves the last known good value
	FailOpen FailureMode = "fail_open"
	// FailClosed denies
	FailClosed FailureMode = "fail_closed"
	// FailEmpty returns an empty result
	FailEmpty FailureMode = "fail_empty"
	// Swallow logs and carries on as if the call succeeded
	Swallow FailureMode = "swallow"
	// Propagate returns the error to the caller
	Propagate FailureMode = "propagate"
)

// Operation names a remote-backed operation in the failure policy
type Operation string

const (
	OpSessionFetch         Operation = "session_fetch"
	OpHasPermission        Operation = "has_permission"
	OpUserPermissions      Operation = "user_permissions"
	OpGetTenant            Operation = "get_tenant"
	OpAuditWrite           Operation = "audit_write"
	OpAuditRead            Operation = "audit_read"
	OpCreateTenant         Operation = "create_tenant"
	OpUpdateTenant         Operation = "update_tenant"
	OpInviteUser           Operation = "invite_user"
	OpAssignRole           Operation = "assign_role"
	OpRemoveUserFromTenant Operation = "remove_user_from_tenant"
	OpPersistTenant        Operation = "persist_tenant"
	OpLogout               Operation = "logout"
)

// Policies maps each operation to its failure mode. Read and derive paths
// degrade; mutations propagate. Session fetch and permission checks fail in
// opposite directions on purpose: a backend hiccup must not log the user out,
// and it must not grant access either.
var Policies = map[Operation]FailureMode{
	OpSessionFetch:         FailOpen,
	OpHasPermission:        FailClosed,
	OpUserPermissions:      FailEmpty,
	OpGetTenant:            FailEmpty,
	OpAuditWrite:           Swallow,
	OpAuditRead:            FailEmpty,
	OpCreateTenant:         Propagate,
	OpUpdateTenant:         Propagate,
	OpInviteUser:           Propagate,
	OpAssignRole:           Propagate,
	OpRemoveUserFromTenant: Propagate,
	OpPersistTenant:        Swallow,
	OpLogout:               Propagate,
}

// PolicyFor returns the failure mode for op. Unknown operations propagate.
func PolicyFor(op Operation) FailureMode {
	if mode, ok := Policies[op]; ok {
		return mode
	}
	return Propagate
}

// Degrades reports whether op hides remote failures from its caller
func Degrades(op Operation) bool {
	return PolicyFor(op) != Propagate
}

// Fallback returns the value op serves in place of a failed remote result:
// lastGood when op fails open, empty when it fails closed, fails empty or
// swallows. ok is false when op propagates; the caller returns its error.
func Fallback[T any](op Operation, lastGood, empty T) (v T, ok bool) {
	switch PolicyFor(op) {
	case FailOpen:
		return lastGood, true
	case FailClosed, FailEmpty, Swallow:
		return empty, true
	default:
		return v, false
	}
}
