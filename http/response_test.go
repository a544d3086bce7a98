package http_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agdev/storagegate"
	gatehttp "github.com/agdev/storagegate/http"
)

func TestHandleError(t *testing.T) {
	tt := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "unauthenticated", err: storagegate.ErrUnauthenticated, status: http.StatusUnauthorized, code: "unauthenticated"},
		{name: "access denied", err: storagegate.ErrAccessDenied, status: http.StatusForbidden, code: "access_denied"},
		{name: "not found", err: storagegate.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
		{name: "object not found", err: storagegate.ErrObjectNotFound, status: http.StatusNotFound, code: "object_not_found"},
		{name: "invalid input", err: storagegate.ErrInvalidInput, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "invalid state", err: storagegate.ErrInvalidState, status: http.StatusConflict, code: "invalid_state"},
		{name: "upstream", err: storagegate.ErrUpstream, status: http.StatusBadGateway, code: "upstream_failure"},
		{name: "internal", err: errors.New("some unexpected error"), status: http.StatusInternalServerError, code: "internal_error"},
		{name: "wrapped", err: fmt.Errorf("get group: %w", storagegate.ErrNotFound), status: http.StatusNotFound, code: "not_found"},
		{name: "joined", err: errors.Join(errors.New("context"), storagegate.ErrAccessDenied), status: http.StatusForbidden, code: "access_denied"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			gatehttp.HandleError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"`+tc.code+`"`)
		})
	}
}

func TestHandleError_InputMessagePassedThrough(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.HandleError(rec, fmt.Errorf("%w: invalid relative key %q", storagegate.ErrInvalidInput, "../x"))

	assert.Contains(t, rec.Body.String(), "invalid relative key")
}

func TestHandleError_InternalMessageHidden(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.HandleError(rec, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestWriteError_Success(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.WriteError(rec, http.StatusBadRequest, "bad_request", "Invalid request")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"error":"bad_request"`)
	assert.Contains(t, rec.Body.String(), `"message":"Invalid request"`)
}

func TestWriteJSON_Success(t *testing.T) {
	rec := httptest.NewRecorder()

	data := map[string]string{"key": "value"}
	err := gatehttp.WriteJSON(rec, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"key":"value"`)
}

func TestWriteJSON_EncodingError(t *testing.T) {
	rec := httptest.NewRecorder()

	// Channels cannot be JSON encoded
	data := make(chan int)
	err := gatehttp.WriteJSON(rec, http.StatusOK, data)

	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.WriteText(rec, http.StatusOK, "https://example.com/a?sig=1")

	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "https://example.com/a?sig=1", rec.Body.String())
}
