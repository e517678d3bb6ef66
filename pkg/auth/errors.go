package auth

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned by mutating operations that require a logged-in user
var ErrNoSession = errors.New("no active session")

// AuthorizationError is returned when a caller attempts something outside
// their memberships, such as switching to a tenant they do not belong to.
type AuthorizationError struct {
	Message  string
	Resource Resource
	Action   Action
	TenantID string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// NewAuthorizationError creates an authorization error for a tenant
func NewAuthorizationError(message, tenantID string) *AuthorizationError {
	return &AuthorizationError{Message: message, TenantID: tenantID}
}

// IsAuthorizationError reports whether err is or wraps an AuthorizationError
func IsAuthorizationError(err error) bool {
	var authzErr *AuthorizationError
	return errors.As(err, &authzErr)
}

// RoleNotFoundError is returned when a role name does not resolve
type RoleNotFoundError struct {
	Role string
}

func (e *RoleNotFoundError) Error() string {
	return fmt.Sprintf("Role %s not found", e.Role)
}

// TenantNotFoundError is returned when a tenant id does not resolve
type TenantNotFoundError struct {
	TenantID string
}

func (e *TenantNotFoundError) Error() string {
	return fmt.Sprintf("Tenant %s not found", e.TenantID)
}

// ValidationError is returned when input is rejected before any remote call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
