package clientcli

import (
	"github.com/google/uuid"

	"github.com/agdev/storagegate"
)

// Location addresses either the static namespace of a domain or a dynamic
// object group. A non-nil GroupID selects the group.
type Location struct {
	Domain    string
	ProjectID string
	UserID    string
	GroupID   uuid.UUID
}

// IsGroup reports whether the location points at a dynamic object group.
func (l Location) IsGroup() bool {
	return l.GroupID != uuid.Nil
}

func (l Location) validate() error {
	if !l.IsGroup() && l.Domain == "" {
		return ErrMissingTarget
	}
	return nil
}

func (l Location) staticRef(relativeKey string) storagegate.StaticObjectRef {
	ref := storagegate.StaticObjectRef{
		Domain:      l.Domain,
		RelativeKey: relativeKey,
	}
	if l.ProjectID != "" {
		ref.ProjectID = &l.ProjectID
	}
	if l.UserID != "" {
		ref.UserID = &l.UserID
	}
	return ref
}

// UploadOptions configures upload operations.
type UploadOptions struct {
	Location
	LocalPath   string
	RelativeKey string
	Purpose     string
	ContentType string
	ExpiresIn   int
	Recursive   bool
}

// UploadResult is the outcome of one file upload.
type UploadResult struct {
	LocalPath   string
	RelativeKey string
	ContentType string
	ETag        string
	Size        int64
	Err         error
}

// DownloadOptions configures download operations. A LocalPath of "-" streams
// the object to the caller instead of a file.
type DownloadOptions struct {
	Location
	RelativeKey string
	LocalPath   string
	ExpiresIn   int
}

// DownloadResult contains download metadata.
type DownloadResult struct {
	RelativeKey string `json:"relative_key"`
	LocalPath   string `json:"local_path"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
	Size        int64  `json:"size_bytes"`
}

// ListOptions configures listing of a group's members.
type ListOptions struct {
	GroupID uuid.UUID
	Limit   int
	Cursor  string
	All     bool
}

// ListResult contains one or more pages of group members.
type ListResult struct {
	Items      []storagegate.PendingObject `json:"items"`
	NextCursor string                      `json:"next_cursor,omitempty"`
}

// ValidatedCount returns how many members have a confirmed upload.
func (r *ListResult) ValidatedCount() int {
	n := 0
	for i := range r.Items {
		if r.Items[i].UploadValidatedAt != nil {
			n++
		}
	}
	return n
}

type uploadRequest struct {
	Ref    any                       `json:"ref"`
	Option storagegate.UploadOptions `json:"option"`
}

type downloadRequest struct {
	Ref    any                         `json:"ref"`
	Option storagegate.DownloadOptions `json:"option"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
