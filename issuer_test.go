package storagegate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agdev/storagegate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCredentialIssuer_IssueUploadURL(t *testing.T) {
	ctx := context.Background()
	key := "static/env=dev/domain=agcore/a.txt"

	tests := []struct {
		name        string
		opts        storagegate.UploadOptions
		wantExpires time.Duration
		wantErr     error
	}{
		{name: "default expiry", opts: storagegate.UploadOptions{ContentType: "text/plain"}, wantExpires: time.Hour},
		{name: "custom expiry", opts: storagegate.UploadOptions{ExpiresIn: 60}, wantExpires: time.Minute},
		{name: "max expiry", opts: storagegate.UploadOptions{ExpiresIn: storagegate.MaxExpiresSeconds}, wantExpires: 7 * 24 * time.Hour},
		{name: "over max", opts: storagegate.UploadOptions{ExpiresIn: storagegate.MaxExpiresSeconds + 1}, wantErr: storagegate.ErrInvalidInput},
		{name: "negative", opts: storagegate.UploadOptions{ExpiresIn: -5}, wantErr: storagegate.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(SpyObjectStore)
			issuer := newTestIssuer(store)

			if tt.wantErr == nil {
				store.On("PresignPut", ctx, mainEndpoint, key, tt.opts, tt.wantExpires).Return("https://signed/put", nil).Once()
			}

			url, err := issuer.IssueUploadURL(ctx, key, mainEndpoint, tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				store.AssertNotCalled(t, "PresignPut", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://signed/put", url)
			store.AssertExpectations(t)
		})
	}
}

func TestCredentialIssuer_CheckUploadOptions(t *testing.T) {
	store := new(SpyObjectStore)
	issuer := newTestIssuer(store)

	assert.NoError(t, issuer.CheckUploadOptions(storagegate.UploadOptions{}))
	assert.NoError(t, issuer.CheckUploadOptions(storagegate.UploadOptions{ExpiresIn: storagegate.MaxExpiresSeconds}))
	assert.ErrorIs(t, issuer.CheckUploadOptions(storagegate.UploadOptions{ExpiresIn: storagegate.MaxExpiresSeconds + 1}), storagegate.ErrInvalidInput)
	assert.ErrorIs(t, issuer.CheckUploadOptions(storagegate.UploadOptions{ExpiresIn: -1}), storagegate.ErrInvalidInput)
	store.AssertNotCalled(t, "PresignPut", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCredentialIssuer_IssueUploadURL_SignerFailure(t *testing.T) {
	store := new(SpyObjectStore)
	issuer := newTestIssuer(store)
	store.On("PresignPut", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("no credentials")).Once()

	_, err := issuer.IssueUploadURL(context.Background(), "k", mainEndpoint, storagegate.UploadOptions{})
	assert.ErrorIs(t, err, storagegate.ErrUpstream)
	store.AssertNumberOfCalls(t, "PresignPut", 1)
}

func TestCredentialIssuer_IssueDownloadURL(t *testing.T) {
	ctx := context.Background()
	key := "static/env=dev/domain=agcore/a.txt"
	opts := storagegate.DownloadOptions{ResponseContentType: "text/plain", ResponseContentDisposition: `attachment; filename="a.txt"`}

	t.Run("object exists", func(t *testing.T) {
		store := new(SpyObjectStore)
		issuer := newTestIssuer(store)
		store.On("Exists", mock.Anything, mainEndpoint, key).Return(true, nil).Once()
		store.On("PresignGet", ctx, mainEndpoint, key, opts, time.Hour).Return("https://signed/get", nil).Once()

		url, err := issuer.IssueDownloadURL(ctx, key, mainEndpoint, opts)
		require.NoError(t, err)
		assert.Equal(t, "https://signed/get", url)
		store.AssertExpectations(t)
	})

	t.Run("object missing", func(t *testing.T) {
		store := new(SpyObjectStore)
		issuer := newTestIssuer(store)
		store.On("Exists", mock.Anything, mainEndpoint, key).Return(false, nil).Once()

		_, err := issuer.IssueDownloadURL(ctx, key, mainEndpoint, opts)
		assert.ErrorIs(t, err, storagegate.ErrObjectNotFound)
		store.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		store := new(SpyObjectStore)
		issuer := newTestIssuer(store)
		store.On("Exists", mock.Anything, mainEndpoint, key).Return(false, errors.New("503 slow down")).Once()
		store.On("Exists", mock.Anything, mainEndpoint, key).Return(true, nil).Once()
		store.On("PresignGet", ctx, mainEndpoint, key, opts, time.Hour).Return("https://signed/get", nil).Once()

		url, err := issuer.IssueDownloadURL(ctx, key, mainEndpoint, opts)
		require.NoError(t, err)
		assert.Equal(t, "https://signed/get", url)
		store.AssertNumberOfCalls(t, "Exists", 2)
	})

	t.Run("store unreachable", func(t *testing.T) {
		store := new(SpyObjectStore)
		issuer := newTestIssuer(store)
		store.On("Exists", mock.Anything, mainEndpoint, key).Return(false, errors.New("connection refused"))

		_, err := issuer.IssueDownloadURL(ctx, key, mainEndpoint, opts)
		assert.ErrorIs(t, err, storagegate.ErrUpstream)
		store.AssertNumberOfCalls(t, "Exists", 3)
	})
}

func TestCredentialIssuer_ObjectExists_Canceled(t *testing.T) {
	store := new(SpyObjectStore)
	issuer := newTestIssuer(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store.On("Exists", mock.Anything, mainEndpoint, "k").Return(false, context.Canceled)

	_, err := issuer.ObjectExists(ctx, "k", mainEndpoint)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCredentialIssuer_DirectUpload(t *testing.T) {
	ctx := context.Background()
	data := []byte(`{"id":"x"}`)

	store := new(SpyObjectStore)
	issuer := newTestIssuer(store)
	store.On("Put", ctx, mainEndpoint, "p/manifest.json", data, "application/json").Return(errors.New("boom")).Once()

	err := issuer.DirectUpload(ctx, "p/manifest.json", data, "application/json", mainEndpoint)
	assert.ErrorIs(t, err, storagegate.ErrUpstream)
	store.AssertNumberOfCalls(t, "Put", 1)
}
