package clientcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agdev/storagegate"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultExpires is the default presigned URL expiry in seconds (15 minutes).
	DefaultExpires = 900
)

// Client talks to a storagegate server. Object bytes never pass through the
// gateway: the client asks for a presigned URL and transfers directly
// against the blob store.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()

	c := &Client{
		config: &Config{
			Endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
			Token:    cfg.Token,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// UploadURL asks the gateway for a presigned PUT URL.
func (c *Client) UploadURL(ctx context.Context, loc Location, relativeKey, purpose string, opts storagegate.UploadOptions) (string, error) {
	if err := loc.validate(); err != nil {
		return "", fmt.Errorf("upload url: %w", err)
	}
	if relativeKey == "" {
		return "", fmt.Errorf("upload url: %w", ErrEmptyKey)
	}

	path := "/static_object/upload"
	req := uploadRequest{Ref: loc.staticRef(relativeKey), Option: opts}
	if loc.IsGroup() {
		path = "/dynamic_object/upload"
		req.Ref = storagegate.DynamicObjectRef{GroupID: loc.GroupID, RelativeKey: relativeKey, Purpose: purpose}
	}

	body, err := c.call(ctx, http.MethodPost, path, req)
	if err != nil {
		return "", fmt.Errorf("upload url: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// DownloadURL asks the gateway for a presigned GET URL.
func (c *Client) DownloadURL(ctx context.Context, loc Location, relativeKey string, opts storagegate.DownloadOptions) (string, error) {
	if err := loc.validate(); err != nil {
		return "", fmt.Errorf("download url: %w", err)
	}
	if relativeKey == "" {
		return "", fmt.Errorf("download url: %w", ErrEmptyKey)
	}

	path := "/static_object/download"
	req := downloadRequest{Ref: loc.staticRef(relativeKey), Option: opts}
	if loc.IsGroup() {
		path = "/dynamic_object/download"
		req.Ref = storagegate.DynamicObjectRef{GroupID: loc.GroupID, RelativeKey: relativeKey}
	}

	body, err := c.call(ctx, http.MethodPost, path, req)
	if err != nil {
		return "", fmt.Errorf("download url: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// Upload uploads file(s). With Recursive set, a directory is walked and
// each file is stored under RelativeKey joined with its path inside the
// directory.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if opts.Recursive {
		return c.uploadRecursive(ctx, opts)
	}

	key := opts.RelativeKey
	if key == "" {
		key = NormalizeLocalToRemotePath(filepath.Base(opts.LocalPath))
	}
	result, err := c.uploadSingle(ctx, opts, opts.LocalPath, key, opts.ContentType)
	if err != nil {
		return nil, err
	}
	return []UploadResult{result}, nil
}

func (c *Client) uploadRecursive(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		opts.Recursive = false
		return c.Upload(ctx, opts)
	}

	var results []UploadResult
	baseDir := opts.LocalPath
	prefix := strings.Trim(opts.RelativeKey, "/")

	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			results = append(results, UploadResult{
				LocalPath: path,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}

		key := filepath.ToSlash(relPath)
		if prefix != "" {
			key = prefix + "/" + key
		}

		result, uploadErr := c.uploadSingle(ctx, opts, path, key, "")
		if uploadErr != nil {
			result = UploadResult{
				LocalPath:   path,
				RelativeKey: key,
				Err:         uploadErr,
			}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

func (c *Client) uploadSingle(ctx context.Context, opts UploadOptions, localPath, key, contentType string) (UploadResult, error) {
	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}

	if contentType == "" {
		contentType = detectContentType(localPath)
	}

	expires := opts.ExpiresIn
	if expires == 0 {
		expires = DefaultExpires
	}

	presignURL, err := c.UploadURL(ctx, opts.Location, key, opts.Purpose, storagegate.UploadOptions{
		ContentType: contentType,
		ExpiresIn:   expires,
	})
	if err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignURL, file)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = info.Size()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return UploadResult{}, parseServerError(resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return UploadResult{
		LocalPath:   localPath,
		RelativeKey: key,
		ContentType: contentType,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		Size:        info.Size(),
	}, nil
}

// Download fetches an object through a presigned GET URL.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.RelativeKey == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyKey)
	}

	expires := opts.ExpiresIn
	if expires == 0 {
		expires = DefaultExpires
	}

	presignURL, err := c.DownloadURL(ctx, opts.Location, opts.RelativeKey, storagegate.DownloadOptions{ExpiresIn: expires})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, presignURL, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		RelativeKey: opts.RelativeKey,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = filepath.Base(filepath.FromSlash(opts.RelativeKey))
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// NewGroup creates a dynamic object group and returns its id.
func (c *Client) NewGroup(ctx context.Context, req storagegate.NewGroupRequest) (uuid.UUID, error) {
	var id string
	if err := c.callJSON(ctx, http.MethodPost, "/dynamic_object/new_group", req, &id); err != nil {
		return uuid.Nil, fmt.Errorf("new group: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("new group: parse id %q: %w", id, err)
	}
	return parsed, nil
}

// GetGroup fetches a group's metadata.
func (c *Client) GetGroup(ctx context.Context, id uuid.UUID) (storagegate.DynamicObjectGroup, error) {
	var group storagegate.DynamicObjectGroup
	if err := c.callJSON(ctx, http.MethodGet, "/dynamic_object/groups/"+id.String(), nil, &group); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("get group: %w", err)
	}
	return group, nil
}

// FinalizeGroup closes a group to further registrations.
func (c *Client) FinalizeGroup(ctx context.Context, id uuid.UUID) (storagegate.DynamicObjectGroup, error) {
	var group storagegate.DynamicObjectGroup
	if err := c.callJSON(ctx, http.MethodPost, "/dynamic_object/groups/"+id.String()+"/finalize", nil, &group); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("finalize group: %w", err)
	}
	return group, nil
}

// Validate asks the gateway to confirm that a member's bytes landed.
func (c *Client) Validate(ctx context.Context, objectID uuid.UUID) (storagegate.PendingObject, error) {
	var obj storagegate.PendingObject
	if err := c.callJSON(ctx, http.MethodPost, "/dynamic_object/objects/"+objectID.String()+"/validate", nil, &obj); err != nil {
		return storagegate.PendingObject{}, fmt.Errorf("validate object: %w", err)
	}
	return obj, nil
}

// List returns members of a group, a single page or all of them.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.GroupID == uuid.Nil {
		return nil, fmt.Errorf("list: %w", ErrMissingTarget)
	}
	if opts.All {
		return c.listAll(ctx, opts)
	}
	return c.listPage(ctx, opts)
}

func (c *Client) listPage(ctx context.Context, opts ListOptions) (*ListResult, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	path := "/dynamic_object/groups/" + opts.GroupID.String() + "/objects"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var page storagegate.PendingObjectPage
	if err := c.callJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	return &ListResult{Items: page.Items, NextCursor: page.NextCursor}, nil
}

func (c *Client) listAll(ctx context.Context, opts ListOptions) (*ListResult, error) {
	all := &ListResult{}
	opts.Cursor = ""

	for {
		page, err := c.listPage(ctx, opts)
		if err != nil {
			return nil, err
		}
		all.Items = append(all.Items, page.Items...)
		if page.NextCursor == "" {
			return all, nil
		}
		opts.Cursor = page.NextCursor
	}
}

// callJSON performs an authenticated gateway call and decodes a JSON reply.
func (c *Client) callJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := c.call(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.Endpoint+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseServerError(resp.StatusCode, body)
	}

	return body, nil
}

// NormalizeLocalToRemotePath converts a local path to a clean relative key.
// It handles:
//   - Leading "./" is stripped (./foo/bar.txt -> foo/bar.txt)
//   - Leading "/" is stripped (/abs/path/file.txt -> abs/path/file.txt)
//   - Parent traversal is resolved (../sibling/file.txt -> sibling/file.txt)
//   - Backslashes are converted to forward slashes (Windows)
func NormalizeLocalToRemotePath(localPath string) string {
	path := filepath.ToSlash(filepath.Clean(filepath.ToSlash(localPath)))

	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")

	for strings.HasPrefix(path, "../") {
		path = strings.TrimPrefix(path, "../")
	}

	if path == ".." || path == "." {
		return ""
	}

	return path
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}

	return mimeType
}

// parseServerError builds an APIError, lifting the gateway's JSON error
// code when the body carries one.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{
		StatusCode: statusCode,
		Body:       string(body),
	}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		apiErr.Code = eb.Error
		apiErr.Message = eb.Message
	}
	return apiErr
}

// APIError represents an error response from the gateway or the blob store.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return "server error: " + strconv.Itoa(e.StatusCode) + " " + e.Code + " - " + e.Message
	}
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is reports whether target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the object or group does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrUnauthorized is returned when the bearer token is missing or invalid (401).
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}

	// ErrForbidden is returned when the client may not write to the domain (403).
	ErrForbidden = &APIError{StatusCode: http.StatusForbidden}

	// ErrConflict is returned when the group is already finalized (409).
	ErrConflict = &APIError{StatusCode: http.StatusConflict}
)
