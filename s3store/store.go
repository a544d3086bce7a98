// Package s3store implements storagegate.ObjectStore for S3-compatible
// object stores using the AWS SDK for Go v2.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/keybackend"
)

// CredentialSource resolves the credential named by an endpoint's credential_ref.
type CredentialSource interface {
	Lookup(name string) (keybackend.Credential, error)
}

// Store signs and performs requests against the endpoint passed to each call.
// One SDK client is built per endpoint and reused.
type Store struct {
	creds      CredentialSource
	pathStyle  bool
	httpClient *http.Client

	mu      sync.RWMutex
	clients map[string]*s3.Client
}

type Option func(*Store)

// WithPathStyle addresses buckets as http://host/bucket/key instead of
// virtual-hosted style. MinIO and most self-hosted stores need this.
func WithPathStyle(enabled bool) Option {
	return func(s *Store) {
		s.pathStyle = enabled
	}
}

// WithCredentials sets the source for endpoints that carry a credential_ref.
// Endpoints without one use the SDK's default credential chain.
func WithCredentials(src CredentialSource) Option {
	return func(s *Store) {
		s.creds = src
	}
}

// WithHTTPClient overrides the HTTP client used for store round trips.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		s.httpClient = c
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		pathStyle: true,
		clients:   make(map[string]*s3.Client),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(ep storagegate.StorageEndpoint) string {
	return ep.Name + "|" + ep.URL + "|" + ep.Region + "|" + ep.CredentialRef
}

func (s *Store) client(ctx context.Context, ep storagegate.StorageEndpoint) (*s3.Client, error) {
	key := cacheKey(ep)

	s.mu.RLock()
	c, ok := s.clients[key]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[key]; ok {
		return c, nil
	}

	c, err := s.newClient(ctx, ep)
	if err != nil {
		return nil, err
	}
	s.clients[key] = c
	return c, nil
}

func (s *Store) newClient(ctx context.Context, ep storagegate.StorageEndpoint) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(ep.Region),
	}
	if s.httpClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(s.httpClient))
	}

	if ep.CredentialRef != "" {
		if s.creds == nil {
			return nil, fmt.Errorf("endpoint %s: credential %q: %w", ep.Name, ep.CredentialRef, keybackend.ErrCredentialNotFound)
		}
		cred, err := s.creds.Lookup(ep.CredentialRef)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", ep.Name, err)
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cred.AccessKey, cred.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: load aws config: %w", ep.Name, err)
	}

	slog.Debug("s3 client created", "endpoint", ep.Name, "url", ep.URL, "region", ep.Region, "path_style", s.pathStyle)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep.URL != "" {
			o.BaseEndpoint = aws.String(ep.URL)
		}
		o.UsePathStyle = s.pathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}), nil
}

func (s *Store) PresignPut(ctx context.Context, ep storagegate.StorageEndpoint, key string, opts storagegate.UploadOptions, expires time.Duration) (string, error) {
	c, err := s.client(ctx, ep)
	if err != nil {
		return "", err
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(ep.Bucket),
		Key:    aws.String(key),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}

	req, err := s3.NewPresignClient(c).PresignPutObject(ctx, in, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign put %s/%s: %w", ep.Bucket, key, err)
	}
	return req.URL, nil
}

func (s *Store) PresignGet(ctx context.Context, ep storagegate.StorageEndpoint, key string, opts storagegate.DownloadOptions, expires time.Duration) (string, error) {
	c, err := s.client(ctx, ep)
	if err != nil {
		return "", err
	}

	in := &s3.GetObjectInput{
		Bucket: aws.String(ep.Bucket),
		Key:    aws.String(key),
	}
	if opts.ResponseContentType != "" {
		in.ResponseContentType = aws.String(opts.ResponseContentType)
	}
	if opts.ResponseContentDisposition != "" {
		in.ResponseContentDisposition = aws.String(opts.ResponseContentDisposition)
	}

	req, err := s3.NewPresignClient(c).PresignGetObject(ctx, in, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get %s/%s: %w", ep.Bucket, key, err)
	}
	return req.URL, nil
}

func (s *Store) Exists(ctx context.Context, ep storagegate.StorageEndpoint, key string) (bool, error) {
	c, err := s.client(ctx, ep)
	if err != nil {
		return false, err
	}

	_, err = c.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ep.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head %s/%s: %w", ep.Bucket, key, err)
	}
	return true, nil
}

func (s *Store) Put(ctx context.Context, ep storagegate.StorageEndpoint, key string, data []byte, contentType string) error {
	c, err := s.client(ctx, ep)
	if err != nil {
		return err
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(ep.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := c.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put %s/%s: %w", ep.Bucket, key, err)
	}
	return nil
}

func httpStatusCode(err error) (int, bool) {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode(), true
	}
	return 0, false
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	if status, ok := httpStatusCode(err); ok {
		return status == http.StatusNotFound && !isNoSuchBucket(err)
	}
	return false
}

// isNoSuchBucket separates a misconfigured endpoint from a missing object.
func isNoSuchBucket(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket"
}
