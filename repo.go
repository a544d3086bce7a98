package storagegate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GroupPrefixFunc computes the common prefix of a group whose identifier and
// creation timestamp are already persisted.
type GroupPrefixFunc func(DynamicObjectGroup) string

// Catalog defines durable storage of endpoints, groups and pending objects.
// Implementations must enforce unique identifiers and foreign-key integrity
// and be safe for concurrent use.
//
// All methods accept a context for cancellation and timeout control.
type Catalog interface {
	// GetEndpointByName retrieves a storage endpoint by its unique name.
	//
	// Returns:
	//   - StorageEndpoint: The endpoint if found
	//   - error: ErrNotFound if no endpoint has that name, or other database errors
	GetEndpointByName(ctx context.Context, name string) (StorageEndpoint, error)

	// GetEndpoint retrieves a storage endpoint by id.
	GetEndpoint(ctx context.Context, id int64) (StorageEndpoint, error)

	// CreateEndpoint inserts a new endpoint and returns it with its id and
	// creation time assigned. A duplicate name yields ErrInvalidState.
	CreateEndpoint(ctx context.Context, ep StorageEndpoint) (StorageEndpoint, error)

	// ListEndpoints returns every endpoint ordered by id.
	ListEndpoints(ctx context.Context) ([]StorageEndpoint, error)

	// CreateGroup persists a new group using a two-step protocol executed in a
	// single transaction:
	//  1. insert the draft row (identifier and creation time already set, empty prefix)
	//  2. compute the prefix with prefix(row) and store it
	//
	// The prefix is never modified afterwards. If any step fails the
	// transaction is rolled back and no row remains.
	//
	// Returns:
	//   - DynamicObjectGroup: The committed group with CommonPrefix populated
	//   - error: ErrNotFound if the draft references an unknown endpoint, or other database errors
	CreateGroup(ctx context.Context, draft DynamicObjectGroup, prefix GroupPrefixFunc) (DynamicObjectGroup, error)

	// GetGroup retrieves a group by id.
	//
	// Returns:
	//   - error: ErrNotFound if the group does not exist
	GetGroup(ctx context.Context, id uuid.UUID) (DynamicObjectGroup, error)

	// FinalizeGroup sets finalized_at on an open group.
	//
	// Returns:
	//   - DynamicObjectGroup: The finalized group
	//   - error: ErrNotFound if the group does not exist, ErrInvalidState if already finalized
	FinalizeGroup(ctx context.Context, id uuid.UUID, at time.Time) (DynamicObjectGroup, error)

	// CreatePendingObject registers a member of an open group. Registering a
	// relative key that already exists in the group returns the existing row.
	//
	// Returns:
	//   - PendingObject: The created or existing row
	//   - bool: true if a new row was created
	//   - error: ErrNotFound if the group does not exist, ErrInvalidState if it is finalized
	CreatePendingObject(ctx context.Context, obj PendingObject) (PendingObject, bool, error)

	// GetPendingObject retrieves a pending object by id.
	GetPendingObject(ctx context.Context, id uuid.UUID) (PendingObject, error)

	// MarkUploadValidated sets upload_validated_at if it is not set yet and
	// returns the row. An earlier validation timestamp is kept.
	MarkUploadValidated(ctx context.Context, id uuid.UUID, at time.Time) (PendingObject, error)

	// ListPendingObjects returns a page of a group's members in creation order.
	// The cursor is opaque; pass NextCursor from the previous page.
	ListPendingObjects(ctx context.Context, groupID uuid.UUID, q ListQuery) (PendingObjectPage, error)
}

// ObjectStore is the capability surface of an S3-compatible blob store.
// Signing mechanics are left to the implementation.
type ObjectStore interface {
	// PresignPut returns a URL granting PUT on exactly one bucket and key.
	PresignPut(ctx context.Context, ep StorageEndpoint, key string, opts UploadOptions, expires time.Duration) (string, error)

	// PresignGet returns a URL granting GET on exactly one bucket and key.
	PresignGet(ctx context.Context, ep StorageEndpoint, key string, opts DownloadOptions, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key. A missing object is
	// (false, nil); errors are reserved for failed round trips.
	Exists(ctx context.Context, ep StorageEndpoint, key string) (bool, error)

	// Put writes data at key, replacing any existing object.
	Put(ctx context.Context, ep StorageEndpoint, key string, data []byte, contentType string) error
}
