package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agdev/storagegate"
	gatehttp "github.com/agdev/storagegate/http"
)

// MockService is a mock implementation of http.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) StaticUploadURL(ctx context.Context, caller storagegate.Caller, ref storagegate.StaticObjectRef, opts storagegate.UploadOptions) (string, error) {
	args := m.Called(ctx, caller, ref, opts)
	return args.String(0), args.Error(1)
}

func (m *MockService) StaticDownloadURL(ctx context.Context, caller storagegate.Caller, ref storagegate.StaticObjectRef, opts storagegate.DownloadOptions) (string, error) {
	args := m.Called(ctx, caller, ref, opts)
	return args.String(0), args.Error(1)
}

func (m *MockService) NewGroup(ctx context.Context, caller storagegate.Caller, req storagegate.NewGroupRequest) (storagegate.DynamicObjectGroup, error) {
	args := m.Called(ctx, caller, req)
	return args.Get(0).(storagegate.DynamicObjectGroup), args.Error(1)
}

func (m *MockService) DynamicUploadURL(ctx context.Context, caller storagegate.Caller, ref storagegate.DynamicObjectRef, opts storagegate.UploadOptions) (string, error) {
	args := m.Called(ctx, caller, ref, opts)
	return args.String(0), args.Error(1)
}

func (m *MockService) DynamicDownloadURL(ctx context.Context, caller storagegate.Caller, ref storagegate.DynamicObjectRef, opts storagegate.DownloadOptions) (string, error) {
	args := m.Called(ctx, caller, ref, opts)
	return args.String(0), args.Error(1)
}

func (m *MockService) GetGroup(ctx context.Context, caller storagegate.Caller, id uuid.UUID) (storagegate.DynamicObjectGroup, error) {
	args := m.Called(ctx, caller, id)
	return args.Get(0).(storagegate.DynamicObjectGroup), args.Error(1)
}

func (m *MockService) FinalizeGroup(ctx context.Context, caller storagegate.Caller, id uuid.UUID) (storagegate.DynamicObjectGroup, error) {
	args := m.Called(ctx, caller, id)
	return args.Get(0).(storagegate.DynamicObjectGroup), args.Error(1)
}

func (m *MockService) ListGroupObjects(ctx context.Context, caller storagegate.Caller, id uuid.UUID, q storagegate.ListQuery) (storagegate.PendingObjectPage, error) {
	args := m.Called(ctx, caller, id, q)
	return args.Get(0).(storagegate.PendingObjectPage), args.Error(1)
}

func (m *MockService) ValidateObject(ctx context.Context, caller storagegate.Caller, objectID uuid.UUID) (storagegate.PendingObject, error) {
	args := m.Called(ctx, caller, objectID)
	return args.Get(0).(storagegate.PendingObject), args.Error(1)
}

// stubVerifier accepts exactly one token.
type stubVerifier struct {
	token  string
	caller storagegate.Caller
}

func (v stubVerifier) Verify(token string) (storagegate.Caller, error) {
	if token != v.token {
		return storagegate.Caller{}, storagegate.ErrUnauthenticated
	}
	return v.caller, nil
}

const validToken = "good-token"

var imageClient = storagegate.Caller{UserID: "u-1", ClientID: "agimage"}

func newTestHandler(t *testing.T) (*MockService, http.Handler) {
	t.Helper()
	service := new(MockService)
	t.Cleanup(func() { service.AssertExpectations(t) })

	handler := gatehttp.NewHandler(&gatehttp.HandlerConfig{
		Verifier: stubVerifier{token: validToken, caller: imageClient},
	}, service)
	return service, handler.Router()
}

func authedRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+validToken)
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func ptr[T any](v T) *T { return &v }
