package storagegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// GroupManager creates dynamic object groups and registers their members.
// New groups always target the endpoint given at construction.
type GroupManager struct {
	catalog  Catalog
	issuer   *CredentialIssuer
	keys     KeyDeriver
	endpoint StorageEndpoint
	now      func() time.Time
	newID    func() (uuid.UUID, error)
}

// GroupManagerOption configures a GroupManager.
type GroupManagerOption func(*GroupManager)

// WithClock overrides the time source used for creation and lifecycle timestamps.
func WithClock(now func() time.Time) GroupManagerOption {
	return func(m *GroupManager) {
		m.now = now
	}
}

// WithIDGenerator overrides the identifier source. Identifiers must be time-sortable.
func WithIDGenerator(newID func() (uuid.UUID, error)) GroupManagerOption {
	return func(m *GroupManager) {
		m.newID = newID
	}
}

func NewGroupManager(catalog Catalog, issuer *CredentialIssuer, keys KeyDeriver, endpoint StorageEndpoint, opts ...GroupManagerOption) (*GroupManager, error) {
	if endpoint.ID == 0 || endpoint.Bucket == "" {
		return nil, fmt.Errorf("new group manager: %w: default endpoint %q is not persisted", ErrInvalidInput, endpoint.Name)
	}
	if keys.Env == "" {
		return nil, fmt.Errorf("new group manager: %w: environment tag cannot be empty", ErrInvalidInput)
	}

	m := &GroupManager{
		catalog:  catalog,
		issuer:   issuer,
		keys:     keys,
		endpoint: endpoint,
		now:      time.Now,
		newID:    uuid.NewV7,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Keys returns the key deriver shared with the gateway.
func (m *GroupManager) Keys() KeyDeriver {
	return m.keys
}

// DefaultEndpoint returns the endpoint new groups and static objects target.
func (m *GroupManager) DefaultEndpoint() StorageEndpoint {
	return m.endpoint
}

// timestamp returns the current time in UTC at the precision every catalog
// backend can round trip.
func (m *GroupManager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// CreateGroup allocates an identifier and timestamp, persists the group with
// its derived prefix, and then writes the manifest to <prefix>/manifest.json.
//
// The catalog commit happens strictly before the manifest write. If the
// manifest write fails, the committed group is returned together with an
// error wrapping ErrUpstream; RewriteManifest repairs it.
func (m *GroupManager) CreateGroup(ctx context.Context, req NewGroupRequest) (DynamicObjectGroup, error) {
	if err := ctx.Err(); err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("create group: %w", err)
	}

	if req.Domain == "" {
		return DynamicObjectGroup{}, fmt.Errorf("create group: %w: domain cannot be empty", ErrInvalidInput)
	}

	for name, v := range map[string]string{"domain": req.Domain, "project_id": req.ProjectID, "category": req.Category} {
		if !isValidSegmentValue(v) {
			return DynamicObjectGroup{}, fmt.Errorf("create group: %w: invalid %s %q", ErrInvalidInput, name, v)
		}
	}

	id, err := m.newID()
	if err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("create group: allocate id: %w", err)
	}

	draft := DynamicObjectGroup{
		ID:        id,
		CreatedAt: m.timestamp(),
		Domain:    req.Domain,
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Category:  req.Category,
		StorageID: m.endpoint.ID,
	}

	group, err := m.catalog.CreateGroup(ctx, draft, m.keys.GroupPrefix)
	if err != nil {
		slog.Error("create group failed", "op", "create_group", "domain", req.Domain, "group_id", id, "err", err)
		return DynamicObjectGroup{}, fmt.Errorf("create group: %w", err)
	}

	slog.Info("group created", "op", "create_group", "domain", group.Domain, "group_id", group.ID, "prefix", group.CommonPrefix)

	if err := m.writeManifest(ctx, group, m.endpoint); err != nil {
		return group, fmt.Errorf("create group %s: %w", group.ID, err)
	}

	return group, nil
}

func (m *GroupManager) writeManifest(ctx context.Context, group DynamicObjectGroup, ep StorageEndpoint) error {
	data, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("write manifest: marshal: %w", err)
	}

	key := ManifestKey(group)
	if err := m.issuer.DirectUpload(ctx, key, data, "application/json", ep); err != nil {
		slog.Error("manifest write failed", "op", "write_manifest", "key", key, "domain", group.Domain, "group_id", group.ID, "err", err)
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// RewriteManifest writes the manifest of an existing group again.
func (m *GroupManager) RewriteManifest(ctx context.Context, id uuid.UUID) (DynamicObjectGroup, error) {
	group, err := m.LookupGroup(ctx, id)
	if err != nil {
		return DynamicObjectGroup{}, err
	}

	ep, err := m.EndpointFor(ctx, group)
	if err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("rewrite manifest: %w", err)
	}

	if err := m.writeManifest(ctx, group, ep); err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("rewrite manifest %s: %w", id, err)
	}

	return group, nil
}

// LookupGroup returns the group with id or ErrNotFound.
func (m *GroupManager) LookupGroup(ctx context.Context, id uuid.UUID) (DynamicObjectGroup, error) {
	if err := ctx.Err(); err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("lookup group: %w", err)
	}

	group, err := m.catalog.GetGroup(ctx, id)
	if err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("lookup group %s: %w", id, err)
	}

	return group, nil
}

// EndpointFor resolves the endpoint a group was created on.
func (m *GroupManager) EndpointFor(ctx context.Context, group DynamicObjectGroup) (StorageEndpoint, error) {
	if group.StorageID == m.endpoint.ID {
		return m.endpoint, nil
	}

	ep, err := m.catalog.GetEndpoint(ctx, group.StorageID)
	if err != nil {
		return StorageEndpoint{}, fmt.Errorf("resolve endpoint %d of group %s: %w", group.StorageID, group.ID, err)
	}

	return ep, nil
}

// RegisterPendingObject records a member of an open group.
//
// Error types returned:
//   - ErrInvalidInput: relativeKey fails IsValidRelativeKey
//   - ErrInvalidState: the group is finalized
//   - ErrNotFound: the group no longer exists
func (m *GroupManager) RegisterPendingObject(ctx context.Context, group DynamicObjectGroup, relativeKey, purpose, mimeType string) (PendingObject, error) {
	if err := ctx.Err(); err != nil {
		return PendingObject{}, fmt.Errorf("register pending object: %w", err)
	}

	if !IsValidRelativeKey(relativeKey) {
		return PendingObject{}, fmt.Errorf("register pending object %q: %w", relativeKey, ErrInvalidInput)
	}

	if group.IsFinalized() {
		return PendingObject{}, fmt.Errorf("register pending object: %w: group %s is finalized", ErrInvalidState, group.ID)
	}

	id, err := m.newID()
	if err != nil {
		return PendingObject{}, fmt.Errorf("register pending object: allocate id: %w", err)
	}

	obj := PendingObject{
		ID:          id,
		CreatedAt:   m.timestamp(),
		RelativeKey: relativeKey,
		Purpose:     purpose,
		GroupID:     group.ID,
		StorageID:   group.StorageID,
	}
	if mimeType != "" {
		obj.MimeType = &mimeType
	}

	created, inserted, err := m.catalog.CreatePendingObject(ctx, obj)
	if err != nil {
		return PendingObject{}, fmt.Errorf("register pending object %q in group %s: %w", relativeKey, group.ID, err)
	}

	if inserted {
		slog.Info("pending object registered", "op", "register_pending_object", "group_id", group.ID, "object_id", created.ID, "relative_key", relativeKey)
	}

	return created, nil
}

// LookupPendingObject returns a pending object together with its group.
func (m *GroupManager) LookupPendingObject(ctx context.Context, id uuid.UUID) (PendingObject, DynamicObjectGroup, error) {
	obj, err := m.catalog.GetPendingObject(ctx, id)
	if err != nil {
		return PendingObject{}, DynamicObjectGroup{}, fmt.Errorf("lookup pending object %s: %w", id, err)
	}

	group, err := m.LookupGroup(ctx, obj.GroupID)
	if err != nil {
		return PendingObject{}, DynamicObjectGroup{}, fmt.Errorf("lookup pending object %s: %w", id, err)
	}

	return obj, group, nil
}

// FinalizeGroup closes a group to new members and refreshes its manifest.
func (m *GroupManager) FinalizeGroup(ctx context.Context, id uuid.UUID) (DynamicObjectGroup, error) {
	if err := ctx.Err(); err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("finalize group: %w", err)
	}

	group, err := m.catalog.FinalizeGroup(ctx, id, m.timestamp())
	if err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("finalize group %s: %w", id, err)
	}

	slog.Info("group finalized", "op", "finalize_group", "domain", group.Domain, "group_id", group.ID)

	ep, err := m.EndpointFor(ctx, group)
	if err != nil {
		return group, fmt.Errorf("finalize group: %w", err)
	}

	if err := m.writeManifest(ctx, group, ep); err != nil {
		return group, fmt.Errorf("finalize group %s: %w", id, err)
	}

	return group, nil
}

// ValidateUpload is the explicit validation step of a pending object: it
// confirms the object is present in the store and records upload_validated_at.
// Validating an already validated object returns it unchanged.
func (m *GroupManager) ValidateUpload(ctx context.Context, obj PendingObject, group DynamicObjectGroup) (PendingObject, error) {
	if err := ctx.Err(); err != nil {
		return PendingObject{}, fmt.Errorf("validate upload: %w", err)
	}

	if obj.IsValidated() {
		return obj, nil
	}

	ep, err := m.EndpointFor(ctx, group)
	if err != nil {
		return PendingObject{}, fmt.Errorf("validate upload: %w", err)
	}

	key := m.keys.ResolvePending(group, obj, ep).FullKey()
	exists, err := m.issuer.ObjectExists(ctx, key, ep)
	if err != nil {
		return PendingObject{}, fmt.Errorf("validate upload %s: %w", obj.ID, err)
	}
	if !exists {
		return PendingObject{}, fmt.Errorf("validate upload %s: %w", key, ErrObjectNotFound)
	}

	validated, err := m.catalog.MarkUploadValidated(ctx, obj.ID, m.timestamp())
	if err != nil {
		return PendingObject{}, fmt.Errorf("validate upload %s: %w", obj.ID, err)
	}

	slog.Info("upload validated", "op", "validate_upload", "group_id", group.ID, "object_id", obj.ID, "key", key)
	return validated, nil
}

// ListPendingObjects pages through a group's members.
func (m *GroupManager) ListPendingObjects(ctx context.Context, groupID uuid.UUID, q ListQuery) (PendingObjectPage, error) {
	if err := ctx.Err(); err != nil {
		return PendingObjectPage{}, fmt.Errorf("list pending objects: %w", err)
	}

	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	q.Limit = min(q.Limit, MaxListLimit)

	page, err := m.catalog.ListPendingObjects(ctx, groupID, q)
	if err != nil {
		return PendingObjectPage{}, fmt.Errorf("list pending objects of group %s: %w", groupID, err)
	}

	return page, nil
}

// EnsureEndpoint returns the endpoint named def.Name, creating it from def
// when the catalog does not have it yet.
func EnsureEndpoint(ctx context.Context, catalog Catalog, def StorageEndpoint) (StorageEndpoint, error) {
	ep, err := catalog.GetEndpointByName(ctx, def.Name)
	if err == nil {
		return ep, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return StorageEndpoint{}, fmt.Errorf("ensure endpoint %s: %w", def.Name, err)
	}

	if def.Type == "" {
		def.Type = "s3"
	}

	ep, err = catalog.CreateEndpoint(ctx, def)
	if errors.Is(err, ErrInvalidState) {
		// created concurrently by another process
		return catalog.GetEndpointByName(ctx, def.Name)
	}
	if err != nil {
		return StorageEndpoint{}, fmt.Errorf("ensure endpoint %s: %w", def.Name, err)
	}

	slog.Info("storage endpoint created", "name", ep.Name, "bucket", ep.Bucket, "url", ep.URL)
	return ep, nil
}
