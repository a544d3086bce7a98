package storagegate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Gateway runs the request flow of the storage service: access policy first,
// then key derivation or group resolution, then credential issuance.
// It holds no per-request state and is safe for concurrent use.
type Gateway struct {
	policy *AccessPolicy
	groups *GroupManager
	issuer *CredentialIssuer
}

func NewGateway(policy *AccessPolicy, groups *GroupManager, issuer *CredentialIssuer) (*Gateway, error) {
	if policy == nil || groups == nil || issuer == nil {
		return nil, fmt.Errorf("new gateway: %w: policy, group manager and issuer are required", ErrInvalidInput)
	}
	return &Gateway{
		policy: policy,
		groups: groups,
		issuer: issuer,
	}, nil
}

func validateStaticRef(ref StaticObjectRef) error {
	if !IsValidRelativeKey(ref.RelativeKey) {
		return fmt.Errorf("%w: invalid relative key %q", ErrInvalidInput, ref.RelativeKey)
	}
	if !isValidSegmentValue(ref.Domain) {
		return fmt.Errorf("%w: invalid domain %q", ErrInvalidInput, ref.Domain)
	}
	if ref.ProjectID != nil && !isValidSegmentValue(*ref.ProjectID) {
		return fmt.Errorf("%w: invalid project id %q", ErrInvalidInput, *ref.ProjectID)
	}
	if ref.UserID != nil && !isValidSegmentValue(*ref.UserID) {
		return fmt.Errorf("%w: invalid user id %q", ErrInvalidInput, *ref.UserID)
	}
	return nil
}

// StaticUploadURL issues a PUT URL for a static object. The caller must hold
// write access to the ref's domain.
func (g *Gateway) StaticUploadURL(ctx context.Context, caller Caller, ref StaticObjectRef, opts UploadOptions) (string, error) {
	if _, err := g.policy.CheckWrite(ref.Domain, caller.ClientID); err != nil {
		slog.Warn("static upload denied", "op", "static_upload", "domain", ref.Domain, "client_id", caller.ClientID, "err", err)
		return "", fmt.Errorf("static upload url: %w", err)
	}

	if err := validateStaticRef(ref); err != nil {
		return "", fmt.Errorf("static upload url: %w", err)
	}

	resolved := g.groups.Keys().ResolveStatic(ref, g.groups.DefaultEndpoint())

	url, err := g.issuer.IssueUploadURL(ctx, resolved.FullKey(), resolved.Endpoint(), opts)
	if err != nil {
		slog.Error("static upload url failed", "op", "static_upload", "domain", ref.Domain, "key", resolved.FullKey(), "err", err)
		return "", fmt.Errorf("static upload url: %w", err)
	}

	slog.Info("issued upload url", "op", "static_upload", "domain", ref.Domain, "key", resolved.FullKey(), "user_id", caller.UserID)
	return url, nil
}

// StaticDownloadURL issues a GET URL for an existing static object. Any
// authenticated caller may read a known domain.
func (g *Gateway) StaticDownloadURL(ctx context.Context, caller Caller, ref StaticObjectRef, opts DownloadOptions) (string, error) {
	if _, err := g.policy.CheckRead(ref.Domain); err != nil {
		slog.Warn("static download denied", "op", "static_download", "domain", ref.Domain, "client_id", caller.ClientID, "err", err)
		return "", fmt.Errorf("static download url: %w", err)
	}

	if err := validateStaticRef(ref); err != nil {
		return "", fmt.Errorf("static download url: %w", err)
	}

	resolved := g.groups.Keys().ResolveStatic(ref, g.groups.DefaultEndpoint())

	url, err := g.issuer.IssueDownloadURL(ctx, resolved.FullKey(), resolved.Endpoint(), opts)
	if err != nil {
		slog.Error("static download url failed", "op", "static_download", "domain", ref.Domain, "key", resolved.FullKey(), "err", err)
		return "", fmt.Errorf("static download url: %w", err)
	}

	slog.Info("issued download url", "op", "static_download", "domain", ref.Domain, "key", resolved.FullKey(), "user_id", caller.UserID)
	return url, nil
}

// NewGroup creates a dynamic object group in a domain the caller may write
// to. The owning user defaults to the caller.
func (g *Gateway) NewGroup(ctx context.Context, caller Caller, req NewGroupRequest) (DynamicObjectGroup, error) {
	if _, err := g.policy.CheckWrite(req.Domain, caller.ClientID); err != nil {
		slog.Warn("create group denied", "op", "create_group", "domain", req.Domain, "client_id", caller.ClientID, "err", err)
		return DynamicObjectGroup{}, fmt.Errorf("new group: %w", err)
	}

	if req.UserID == "" {
		req.UserID = caller.UserID
	}

	group, err := g.groups.CreateGroup(ctx, req)
	if err != nil {
		return group, fmt.Errorf("new group: %w", err)
	}

	return group, nil
}

// DynamicUploadURL registers a pending object in an open group and issues a
// PUT URL for its full key. The caller must hold write access to the group's domain.
func (g *Gateway) DynamicUploadURL(ctx context.Context, caller Caller, ref DynamicObjectRef, opts UploadOptions) (string, error) {
	group, err := g.groups.LookupGroup(ctx, ref.GroupID)
	if err != nil {
		return "", fmt.Errorf("dynamic upload url: %w", err)
	}

	if _, err := g.policy.CheckWrite(group.Domain, caller.ClientID); err != nil {
		slog.Warn("dynamic upload denied", "op", "dynamic_upload", "domain", group.Domain, "group_id", group.ID, "client_id", caller.ClientID, "err", err)
		return "", fmt.Errorf("dynamic upload url: %w", err)
	}

	if err := g.issuer.CheckUploadOptions(opts); err != nil {
		return "", fmt.Errorf("dynamic upload url: %w", err)
	}

	obj, err := g.groups.RegisterPendingObject(ctx, group, ref.RelativeKey, ref.Purpose, opts.ContentType)
	if err != nil {
		return "", fmt.Errorf("dynamic upload url: %w", err)
	}

	ep, err := g.groups.EndpointFor(ctx, group)
	if err != nil {
		return "", fmt.Errorf("dynamic upload url: %w", err)
	}

	resolved := g.groups.Keys().ResolvePending(group, obj, ep)

	url, err := g.issuer.IssueUploadURL(ctx, resolved.FullKey(), resolved.Endpoint(), opts)
	if err != nil {
		slog.Error("dynamic upload url failed", "op", "dynamic_upload", "domain", group.Domain, "key", resolved.FullKey(), "err", err)
		return "", fmt.Errorf("dynamic upload url: %w", err)
	}

	slog.Info("issued upload url", "op", "dynamic_upload", "domain", group.Domain, "group_id", group.ID, "key", resolved.FullKey())
	return url, nil
}

// DynamicDownloadURL issues a GET URL for an object stored under a group's prefix.
func (g *Gateway) DynamicDownloadURL(ctx context.Context, caller Caller, ref DynamicObjectRef, opts DownloadOptions) (string, error) {
	group, err := g.groups.LookupGroup(ctx, ref.GroupID)
	if err != nil {
		return "", fmt.Errorf("dynamic download url: %w", err)
	}

	if _, err := g.policy.CheckRead(group.Domain); err != nil {
		slog.Warn("dynamic download denied", "op", "dynamic_download", "domain", group.Domain, "group_id", group.ID, "client_id", caller.ClientID, "err", err)
		return "", fmt.Errorf("dynamic download url: %w", err)
	}

	if !IsValidRelativeKey(ref.RelativeKey) {
		return "", fmt.Errorf("dynamic download url: %w: invalid relative key %q", ErrInvalidInput, ref.RelativeKey)
	}

	ep, err := g.groups.EndpointFor(ctx, group)
	if err != nil {
		return "", fmt.Errorf("dynamic download url: %w", err)
	}

	resolved := g.groups.Keys().ResolvePending(group, PendingObject{GroupID: group.ID, RelativeKey: ref.RelativeKey}, ep)

	url, err := g.issuer.IssueDownloadURL(ctx, resolved.FullKey(), resolved.Endpoint(), opts)
	if err != nil {
		slog.Error("dynamic download url failed", "op", "dynamic_download", "domain", group.Domain, "key", resolved.FullKey(), "err", err)
		return "", fmt.Errorf("dynamic download url: %w", err)
	}

	slog.Info("issued download url", "op", "dynamic_download", "domain", group.Domain, "group_id", group.ID, "key", resolved.FullKey())
	return url, nil
}

// GetGroup returns a group the caller may read.
func (g *Gateway) GetGroup(ctx context.Context, caller Caller, id uuid.UUID) (DynamicObjectGroup, error) {
	group, err := g.groups.LookupGroup(ctx, id)
	if err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("get group: %w", err)
	}

	if _, err := g.policy.CheckRead(group.Domain); err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("get group: %w", err)
	}

	return group, nil
}

// FinalizeGroup closes a group the caller may write to.
func (g *Gateway) FinalizeGroup(ctx context.Context, caller Caller, id uuid.UUID) (DynamicObjectGroup, error) {
	group, err := g.groups.LookupGroup(ctx, id)
	if err != nil {
		return DynamicObjectGroup{}, fmt.Errorf("finalize group: %w", err)
	}

	if _, err := g.policy.CheckWrite(group.Domain, caller.ClientID); err != nil {
		slog.Warn("finalize group denied", "op", "finalize_group", "domain", group.Domain, "group_id", id, "client_id", caller.ClientID, "err", err)
		return DynamicObjectGroup{}, fmt.Errorf("finalize group: %w", err)
	}

	finalized, err := g.groups.FinalizeGroup(ctx, id)
	if err != nil {
		return finalized, fmt.Errorf("finalize group: %w", err)
	}

	return finalized, nil
}

// ListGroupObjects pages through the members of a group the caller may read.
func (g *Gateway) ListGroupObjects(ctx context.Context, caller Caller, id uuid.UUID, q ListQuery) (PendingObjectPage, error) {
	group, err := g.groups.LookupGroup(ctx, id)
	if err != nil {
		return PendingObjectPage{}, fmt.Errorf("list group objects: %w", err)
	}

	if _, err := g.policy.CheckRead(group.Domain); err != nil {
		return PendingObjectPage{}, fmt.Errorf("list group objects: %w", err)
	}

	page, err := g.groups.ListPendingObjects(ctx, id, q)
	if err != nil {
		return PendingObjectPage{}, fmt.Errorf("list group objects: %w", err)
	}

	return page, nil
}

// ValidateObject runs the explicit upload validation of a pending object in a
// domain the caller may write to.
func (g *Gateway) ValidateObject(ctx context.Context, caller Caller, objectID uuid.UUID) (PendingObject, error) {
	obj, group, err := g.groups.LookupPendingObject(ctx, objectID)
	if err != nil {
		return PendingObject{}, fmt.Errorf("validate object: %w", err)
	}

	if _, err := g.policy.CheckWrite(group.Domain, caller.ClientID); err != nil {
		slog.Warn("validate object denied", "op", "validate_upload", "domain", group.Domain, "object_id", objectID, "client_id", caller.ClientID, "err", err)
		return PendingObject{}, fmt.Errorf("validate object: %w", err)
	}

	validated, err := g.groups.ValidateUpload(ctx, obj, group)
	if err != nil {
		return PendingObject{}, fmt.Errorf("validate object: %w", err)
	}

	return validated, nil
}
