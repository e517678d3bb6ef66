package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteError maps err to a status code and writes it. Typed auth errors
// become 4xx; anything else is treated as a failed backend call.
func WriteError(w http.ResponseWriter, err error) {
	var (
		validationErr *auth.ValidationError
		authzErr      *auth.AuthorizationError
		roleErr       *auth.RoleNotFoundError
		tenantErr     *auth.TenantNotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		details := map[string]string{}
		if validationErr.Field != "" {
			details["field"] = validationErr.Field
		}
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationErr.Message, Details: details})
	case errors.Is(err, auth.ErrNoSession):
		WriteErrorMessage(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &authzErr):
		WriteErrorMessage(w, http.StatusForbidden, authzErr.Message)
	case errors.As(err, &roleErr), errors.As(err, &tenantErr):
		WriteErrorMessage(w, http.StatusNotFound, err.Error())
	default:
		WriteErrorMessage(w, http.StatusBadGateway, err.Error())
	}
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}
