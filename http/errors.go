package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/agdev/storagegate"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// First match wins.
var errorMappings = []errorMapping{
	{storagegate.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "Missing or invalid bearer token"},
	{storagegate.ErrAccessDenied, http.StatusForbidden, "access_denied", "Access denied"},
	{storagegate.ErrObjectNotFound, http.StatusNotFound, "object_not_found", "Object not found in storage"},
	{storagegate.ErrNotFound, http.StatusNotFound, "not_found", "Resource not found"},
	{storagegate.ErrInvalidInput, http.StatusBadRequest, "invalid_input", ""},
	{storagegate.ErrInvalidState, http.StatusConflict, "invalid_state", ""},
	{storagegate.ErrUpstream, http.StatusBadGateway, "upstream_failure", "Storage backend unavailable"},
}

// HandleError writes the response matching the first sentinel err wraps.
// Input and state errors carry their own message; everything unmapped is a 500.
func HandleError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.message
		if message == "" {
			message = err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			slog.Error("request error", "status", m.status, "err", err)
		} else {
			slog.Warn("request rejected", "status", m.status, "err", err)
		}
		WriteError(w, m.status, m.code, message)
		return
	}

	slog.Error("request error", "status", http.StatusInternalServerError, "err", err)
	WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}
