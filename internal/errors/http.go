// Package errors maps application errors onto the HTTP error envelope
// shared by every API response.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adlift/adlift/pkg/storage"
)

// HTTPErrorResponse is the JSON envelope for every error response.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError carries a stable machine-readable code plus a human message.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the standard envelope with the given status.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message},
	})
}

// RespondWithError translates err into a status and code. Storage
// sentinels get precise mappings; anything else is a 500.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	_ = r
	switch {
	case storage.IsNotFound(err):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case storage.IsAccessDenied(err):
		WriteError(w, http.StatusForbidden, "ACCESS_DENIED", err.Error())
	case storage.IsInvalidPath(err):
		WriteError(w, http.StatusBadRequest, "INVALID_PATH", err.Error())
	case isConfigError(err):
		WriteError(w, http.StatusBadRequest, "CONFIGURATION_ERROR", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func isConfigError(err error) bool {
	var ce *storage.ConfigError
	return errors.As(err, &ce)
}

// NotFoundHandler serves the envelope for unmatched routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "NOT_FOUND", "route not found: "+r.URL.Path)
}

// MethodNotAllowedHandler serves the envelope for wrong-method requests.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed for "+r.URL.Path)
}
