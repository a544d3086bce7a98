package s3store_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/keybackend"
	"github.com/agdev/storagegate/s3store"
)

// fakeS3 serves path-style HEAD and PUT requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	heads   int
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	if strings.HasPrefix(path, "forbidden/") {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}

	switch r.Method {
	case http.MethodHead:
		f.heads++
		if _, ok := f.objects[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[path] = data
		f.types[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func testCredentials() *keybackend.MapCredentialStore {
	return keybackend.NewMapCredentialStore(map[string]keybackend.Credential{
		"minio": {Name: "minio", AccessKey: "AKIAEXAMPLE", SecretKey: "secret"},
	})
}

func endpoint(url string) storagegate.StorageEndpoint {
	return storagegate.StorageEndpoint{
		ID:            1,
		Name:          "main",
		URL:           url,
		Region:        "us-east-1",
		Bucket:        "agdev",
		CredentialRef: "minio",
		Type:          "s3",
	}
}

func newStore() *s3store.Store {
	return s3store.New(s3store.WithPathStyle(true), s3store.WithCredentials(testCredentials()))
}

func TestPresignPut(t *testing.T) {
	store := newStore()
	ep := endpoint("http://localhost:9000")

	raw, err := store.PresignPut(context.Background(), ep, "dev/static/env=dev/domain=avatars/a.png",
		storagegate.UploadOptions{ContentType: "image/png"}, 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/agdev/dev/static/env=dev/domain=avatars/a.png", u.Path)
	q := u.Query()
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.Equal(t, "AWS4-HMAC-SHA256", q.Get("X-Amz-Algorithm"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.True(t, strings.HasPrefix(q.Get("X-Amz-Credential"), "AKIAEXAMPLE/"))
	assert.Contains(t, q.Get("X-Amz-SignedHeaders"), "content-type")
}

func TestPresignGet(t *testing.T) {
	store := newStore()
	ep := endpoint("http://localhost:9000")

	raw, err := store.PresignGet(context.Background(), ep, "dev/key.json", storagegate.DownloadOptions{
		ResponseContentType:        "application/json",
		ResponseContentDisposition: `attachment; filename="key.json"`,
	}, time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/agdev/dev/key.json", u.Path)
	q := u.Query()
	assert.Equal(t, "3600", q.Get("X-Amz-Expires"))
	assert.Equal(t, "application/json", q.Get("response-content-type"))
	assert.Equal(t, `attachment; filename="key.json"`, q.Get("response-content-disposition"))
}

func TestPresignVirtualHostedStyle(t *testing.T) {
	store := s3store.New(s3store.WithPathStyle(false), s3store.WithCredentials(testCredentials()))
	ep := endpoint("https://s3.example.com")

	raw, err := store.PresignGet(context.Background(), ep, "dev/key.json", storagegate.DownloadOptions{}, time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "agdev.s3.example.com", u.Host)
	assert.Equal(t, "/dev/key.json", u.Path)
}

func TestUnknownCredential(t *testing.T) {
	store := newStore()
	ep := endpoint("http://localhost:9000")
	ep.CredentialRef = "missing"

	_, err := store.PresignPut(context.Background(), ep, "dev/a", storagegate.UploadOptions{}, time.Minute)
	assert.ErrorIs(t, err, keybackend.ErrCredentialNotFound)
}

func TestCredentialRefWithoutSource(t *testing.T) {
	store := s3store.New()

	_, err := store.PresignPut(context.Background(), endpoint("http://localhost:9000"), "dev/a", storagegate.UploadOptions{}, time.Minute)
	assert.ErrorIs(t, err, keybackend.ErrCredentialNotFound)
}

func TestPutAndExists(t *testing.T) {
	fake, srv := newFakeS3(t)
	store := newStore()
	ep := endpoint(srv.URL)
	ctx := context.Background()

	exists, err := store.Exists(ctx, ep, "dev/prefix/manifest.json")
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.Put(ctx, ep, "dev/prefix/manifest.json", []byte(`{"id":"x"}`), "application/json")
	require.NoError(t, err)

	fake.mu.Lock()
	assert.Equal(t, []byte(`{"id":"x"}`), fake.objects["agdev/dev/prefix/manifest.json"])
	assert.Equal(t, "application/json", fake.types["agdev/dev/prefix/manifest.json"])
	fake.mu.Unlock()

	exists, err = store.Exists(ctx, ep, "dev/prefix/manifest.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExistsError(t *testing.T) {
	_, srv := newFakeS3(t)
	store := newStore()
	ep := endpoint(srv.URL)
	ep.Bucket = "forbidden"

	exists, err := store.Exists(context.Background(), ep, "dev/a")
	assert.Error(t, err)
	assert.False(t, exists)
}

func TestClientReused(t *testing.T) {
	fake, srv := newFakeS3(t)
	store := newStore()
	ep := endpoint(srv.URL)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Exists(ctx, ep, "dev/a")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 8, fake.heads)
}
