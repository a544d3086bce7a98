package storagegate_test

import (
	"context"
	"testing"
	"time"

	"github.com/agdev/storagegate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type SpyCatalog struct {
	mock.Mock
}

func (s *SpyCatalog) GetEndpointByName(ctx context.Context, name string) (storagegate.StorageEndpoint, error) {
	args := s.Called(ctx, name)
	return args.Get(0).(storagegate.StorageEndpoint), args.Error(1)
}

func (s *SpyCatalog) GetEndpoint(ctx context.Context, id int64) (storagegate.StorageEndpoint, error) {
	args := s.Called(ctx, id)
	return args.Get(0).(storagegate.StorageEndpoint), args.Error(1)
}

func (s *SpyCatalog) CreateEndpoint(ctx context.Context, ep storagegate.StorageEndpoint) (storagegate.StorageEndpoint, error) {
	args := s.Called(ctx, ep)
	return args.Get(0).(storagegate.StorageEndpoint), args.Error(1)
}

func (s *SpyCatalog) ListEndpoints(ctx context.Context) ([]storagegate.StorageEndpoint, error) {
	args := s.Called(ctx)
	return args.Get(0).([]storagegate.StorageEndpoint), args.Error(1)
}

// CreateGroup accepts either a fixed group or a func(draft, prefix) group as
// the first return value, so tests can exercise the prefix callback.
func (s *SpyCatalog) CreateGroup(ctx context.Context, draft storagegate.DynamicObjectGroup, prefix storagegate.GroupPrefixFunc) (storagegate.DynamicObjectGroup, error) {
	args := s.Called(ctx, draft, prefix)
	if fn, ok := args.Get(0).(func(storagegate.DynamicObjectGroup, storagegate.GroupPrefixFunc) storagegate.DynamicObjectGroup); ok {
		return fn(draft, prefix), args.Error(1)
	}
	return args.Get(0).(storagegate.DynamicObjectGroup), args.Error(1)
}

func (s *SpyCatalog) GetGroup(ctx context.Context, id uuid.UUID) (storagegate.DynamicObjectGroup, error) {
	args := s.Called(ctx, id)
	return args.Get(0).(storagegate.DynamicObjectGroup), args.Error(1)
}

func (s *SpyCatalog) FinalizeGroup(ctx context.Context, id uuid.UUID, at time.Time) (storagegate.DynamicObjectGroup, error) {
	args := s.Called(ctx, id, at)
	return args.Get(0).(storagegate.DynamicObjectGroup), args.Error(1)
}

func (s *SpyCatalog) CreatePendingObject(ctx context.Context, obj storagegate.PendingObject) (storagegate.PendingObject, bool, error) {
	args := s.Called(ctx, obj)
	return args.Get(0).(storagegate.PendingObject), args.Bool(1), args.Error(2)
}

func (s *SpyCatalog) GetPendingObject(ctx context.Context, id uuid.UUID) (storagegate.PendingObject, error) {
	args := s.Called(ctx, id)
	return args.Get(0).(storagegate.PendingObject), args.Error(1)
}

func (s *SpyCatalog) MarkUploadValidated(ctx context.Context, id uuid.UUID, at time.Time) (storagegate.PendingObject, error) {
	args := s.Called(ctx, id, at)
	return args.Get(0).(storagegate.PendingObject), args.Error(1)
}

func (s *SpyCatalog) ListPendingObjects(ctx context.Context, groupID uuid.UUID, q storagegate.ListQuery) (storagegate.PendingObjectPage, error) {
	args := s.Called(ctx, groupID, q)
	return args.Get(0).(storagegate.PendingObjectPage), args.Error(1)
}

type SpyObjectStore struct {
	mock.Mock
}

func (s *SpyObjectStore) PresignPut(ctx context.Context, ep storagegate.StorageEndpoint, key string, opts storagegate.UploadOptions, expires time.Duration) (string, error) {
	args := s.Called(ctx, ep, key, opts, expires)
	return args.String(0), args.Error(1)
}

func (s *SpyObjectStore) PresignGet(ctx context.Context, ep storagegate.StorageEndpoint, key string, opts storagegate.DownloadOptions, expires time.Duration) (string, error) {
	args := s.Called(ctx, ep, key, opts, expires)
	return args.String(0), args.Error(1)
}

func (s *SpyObjectStore) Exists(ctx context.Context, ep storagegate.StorageEndpoint, key string) (bool, error) {
	args := s.Called(ctx, ep, key)
	return args.Bool(0), args.Error(1)
}

func (s *SpyObjectStore) Put(ctx context.Context, ep storagegate.StorageEndpoint, key string, data []byte, contentType string) error {
	args := s.Called(ctx, ep, key, data, contentType)
	return args.Error(0)
}

var (
	mainEndpoint = storagegate.StorageEndpoint{ID: 1, Name: "main", URL: "http://localhost:9000", Region: "us-east-1", Bucket: "agdev", Type: "s3"}
	fixedNow     = time.Date(2024, time.March, 2, 10, 11, 12, 123456789, time.UTC)
)

// persistGroup mimics the catalog's two-step insert.
func persistGroup(draft storagegate.DynamicObjectGroup, prefix storagegate.GroupPrefixFunc) storagegate.DynamicObjectGroup {
	draft.CommonPrefix = prefix(draft)
	return draft
}

// sequentialIDs returns a generator yielding ids in order.
func sequentialIDs(ids ...uuid.UUID) func() (uuid.UUID, error) {
	i := 0
	return func() (uuid.UUID, error) {
		id := ids[i%len(ids)]
		i++
		return id, nil
	}
}

func newTestIssuer(store storagegate.ObjectStore) *storagegate.CredentialIssuer {
	return storagegate.NewCredentialIssuer(store, storagegate.IssuerConfig{
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
	})
}

func NewGroupManager(t *testing.T, ids ...uuid.UUID) (*storagegate.GroupManager, *SpyCatalog, *SpyObjectStore) {
	t.Helper()
	catalog := new(SpyCatalog)
	store := new(SpyObjectStore)

	opts := []storagegate.GroupManagerOption{
		storagegate.WithClock(func() time.Time { return fixedNow }),
	}
	if len(ids) > 0 {
		opts = append(opts, storagegate.WithIDGenerator(sequentialIDs(ids...)))
	}

	m, err := storagegate.NewGroupManager(catalog, newTestIssuer(store), storagegate.NewKeyDeriver("dev"), mainEndpoint, opts...)
	require.NoError(t, err, "new group manager")
	return m, catalog, store
}
