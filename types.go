package storagegate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StorageEndpoint identifies one backing S3-compatible object store.
// Endpoints are shared read-only by every group that references them.
type StorageEndpoint struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	Region        string    `json:"region"`
	Bucket        string    `json:"bucket"`
	CredentialRef string    `json:"credential_ref"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
}

// DynamicObjectGroup is a batch of objects sharing a lifecycle and a common key prefix.
// Its JSON encoding is the manifest written next to the group's objects.
type DynamicObjectGroup struct {
	ID           uuid.UUID  `json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	Domain       string     `json:"domain"`
	UserID       string     `json:"user_id"`
	ProjectID    string     `json:"project_id"`
	Category     string     `json:"category"`
	CommonPrefix string     `json:"common_prefix"`
	FinalizedAt  *time.Time `json:"finalized_at"`
	StorageID    int64      `json:"storage_id"`
}

// IsFinalized reports whether the group has stopped accepting new members.
func (g DynamicObjectGroup) IsFinalized() bool {
	return g.FinalizedAt != nil
}

// PendingObject is a single object awaiting or having completed upload within a group.
// The full storage key is not stored; see KeyDeriver.PendingObjectKey.
type PendingObject struct {
	ID                uuid.UUID  `json:"id"`
	CreatedAt         time.Time  `json:"created_at"`
	RelativeKey       string     `json:"relative_key"`
	Purpose           string     `json:"purpose"`
	GroupID           uuid.UUID  `json:"group_id"`
	StorageID         int64      `json:"storage_id"`
	UploadValidatedAt *time.Time `json:"upload_validated_at"`
	MimeType          *string    `json:"mime_type"`
}

// IsValidated reports whether the upload of the object was confirmed.
func (o PendingObject) IsValidated() bool {
	return o.UploadValidatedAt != nil
}

// StaticObjectRef addresses an object whose key is fully determined by the caller.
type StaticObjectRef struct {
	Domain      string  `json:"domain" validate:"required"`
	ProjectID   *string `json:"project_id,omitempty"`
	UserID      *string `json:"user_id,omitempty"`
	RelativeKey string  `json:"relative_key" validate:"required"`
}

// DynamicObjectRef addresses an object inside a dynamic group.
type DynamicObjectRef struct {
	GroupID     uuid.UUID `json:"group_id" validate:"required"`
	RelativeKey string    `json:"relative_key" validate:"required"`
	Purpose     string    `json:"purpose,omitempty"`
}

// NewGroupRequest carries the caller-supplied attributes of a new group.
type NewGroupRequest struct {
	Domain    string `json:"domain" validate:"required"`
	UserID    string `json:"user_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Category  string `json:"category,omitempty"`
}

// UploadOptions constrains a presigned PUT URL.
type UploadOptions struct {
	ContentType string `json:"content_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// DownloadOptions constrains a presigned GET URL.
type DownloadOptions struct {
	ResponseContentType        string `json:"response_content_type,omitempty"`
	ResponseContentDisposition string `json:"response_content_disposition,omitempty"`
	ExpiresIn                  int    `json:"expires_in,omitempty"`
}

// Caller is the identity established by the authentication layer.
type Caller struct {
	UserID   string
	ClientID string
}

type ListQuery struct {
	Limit  int
	Cursor string
}

type PendingObjectPage struct {
	Items      []PendingObject `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

const (
	// DefaultExpiresSeconds is used when a request does not set expires_in.
	DefaultExpiresSeconds = 3600
	// MaxExpiresSeconds is the longest validity S3 accepts for a presigned URL (7 days).
	MaxExpiresSeconds = 604800

	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// expiry converts a request's expires_in into a duration, applying the default.
func expiry(seconds, fallback int) (time.Duration, error) {
	if seconds == 0 {
		seconds = fallback
	}
	if seconds < 1 || seconds > MaxExpiresSeconds {
		return 0, fmt.Errorf("%w: expires_in must be between 1 and %d, got %d", ErrInvalidInput, MaxExpiresSeconds, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}
