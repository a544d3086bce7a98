package storagegate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// IssuerConfig holds configuration options for CredentialIssuer.
type IssuerConfig struct {
	DefaultExpires int           // Seconds, used when a request leaves expires_in unset (default: 3600)
	MaxRetries     uint64        // Retries of idempotent existence checks (default: 3)
	RetryBase      time.Duration // First backoff interval (default: 100ms)
}

// CredentialIssuer hands out presigned URLs for resolved keys.
// It never touches the catalog.
type CredentialIssuer struct {
	store          ObjectStore
	defaultExpires int
	maxRetries     uint64
	retryBase      time.Duration
}

func NewCredentialIssuer(store ObjectStore, cfg IssuerConfig) *CredentialIssuer {
	defaultExpires := cfg.DefaultExpires
	if defaultExpires <= 0 {
		defaultExpires = DefaultExpiresSeconds
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = 100 * time.Millisecond
	}
	return &CredentialIssuer{
		store:          store,
		defaultExpires: defaultExpires,
		maxRetries:     maxRetries,
		retryBase:      retryBase,
	}
}

// CheckUploadOptions fails with ErrInvalidInput if opts cannot be signed.
// Callers with side effects run it before committing them.
func (c *CredentialIssuer) CheckUploadOptions(opts UploadOptions) error {
	if _, err := expiry(opts.ExpiresIn, c.defaultExpires); err != nil {
		return fmt.Errorf("check upload options: %w", err)
	}
	return nil
}

// IssueUploadURL returns a presigned PUT URL for key. The object does not need
// to exist. The write is not retried on failure.
func (c *CredentialIssuer) IssueUploadURL(ctx context.Context, key string, ep StorageEndpoint, opts UploadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("issue upload url: %w", err)
	}

	expires, err := expiry(opts.ExpiresIn, c.defaultExpires)
	if err != nil {
		return "", fmt.Errorf("issue upload url %s: %w", key, err)
	}

	slog.Debug("generating presigned upload url",
		"key", key, "endpoint", ep.Name, "expires_in", expires, "content_type", opts.ContentType)

	url, err := c.store.PresignPut(ctx, ep, key, opts, expires)
	if err != nil {
		return "", fmt.Errorf("issue upload url %s: %w: %w", key, ErrUpstream, err)
	}

	return url, nil
}

// IssueDownloadURL returns a presigned GET URL for key after confirming the
// object exists. The existence check is a fresh round trip on every call.
//
// Error types returned:
//   - ErrObjectNotFound: No object is stored at key; no URL is generated
//   - ErrInvalidInput: expires_in out of range
//   - ErrUpstream: The store could not be reached after retries
func (c *CredentialIssuer) IssueDownloadURL(ctx context.Context, key string, ep StorageEndpoint, opts DownloadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("issue download url: %w", err)
	}

	expires, err := expiry(opts.ExpiresIn, c.defaultExpires)
	if err != nil {
		return "", fmt.Errorf("issue download url %s: %w", key, err)
	}

	slog.Debug("generating presigned download url",
		"key", key, "endpoint", ep.Name, "expires_in", expires,
		"response_content_type", opts.ResponseContentType,
		"response_content_disposition", opts.ResponseContentDisposition)

	exists, err := c.ObjectExists(ctx, key, ep)
	if err != nil {
		return "", fmt.Errorf("issue download url: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("issue download url %s: %w", key, ErrObjectNotFound)
	}

	url, err := c.store.PresignGet(ctx, ep, key, opts, expires)
	if err != nil {
		return "", fmt.Errorf("issue download url %s: %w: %w", key, ErrUpstream, err)
	}

	return url, nil
}

// ObjectExists asks the store whether key exists. Transient failures are
// retried with exponential backoff since the check is idempotent.
func (c *CredentialIssuer) ObjectExists(ctx context.Context, key string, ep StorageEndpoint) (bool, error) {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))

	var exists bool
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		ok, existsErr := c.store.Exists(ctx, ep, key)
		if existsErr != nil {
			if errors.Is(existsErr, context.Canceled) || errors.Is(existsErr, context.DeadlineExceeded) {
				return existsErr
			}
			slog.Warn("object existence check failed", "key", key, "endpoint", ep.Name, "attempt", attempt, "err", existsErr)
			return retry.RetryableError(existsErr)
		}
		exists = ok
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check object %s: %w: %w", key, ErrUpstream, err)
	}

	return exists, nil
}

// DirectUpload writes system-generated bytes, such as a group manifest, in-process.
// It is not retried.
func (c *CredentialIssuer) DirectUpload(ctx context.Context, key string, data []byte, contentType string, ep StorageEndpoint) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("direct upload: %w", err)
	}

	if err := c.store.Put(ctx, ep, key, data, contentType); err != nil {
		return fmt.Errorf("direct upload %s: %w: %w", key, ErrUpstream, err)
	}

	slog.Debug("direct upload complete", "key", key, "endpoint", ep.Name, "bytes", len(data))
	return nil
}
