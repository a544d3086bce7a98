package e2e_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin-secret"
)

// MinioInfo describes the shared MinIO container.
type MinioInfo struct {
	URL       string
	AccessKey string
	SecretKey string
}

var (
	minioOnce    sync.Once
	minioInfo    MinioInfo
	minioCleanup func()
	minioErr     error
	bucketSeq    int
	bucketMu     sync.Mutex
)

// getSharedMinio starts one MinIO container for all E2E tests.
func getSharedMinio(t *testing.T) MinioInfo {
	t.Helper()

	minioOnce.Do(func() {
		ctx := context.Background()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "minio/minio:latest",
				Cmd:          []string{"server", "/data"},
				ExposedPorts: []string{"9000/tcp"},
				Env: map[string]string{
					"MINIO_ROOT_USER":     minioUser,
					"MINIO_ROOT_PASSWORD": minioPassword,
				},
				WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
			},
			Started: true,
		})
		if err != nil {
			minioErr = fmt.Errorf("start minio container: %w", err)
			return
		}

		minioCleanup = func() {
			_ = testcontainers.TerminateContainer(container)
		}

		endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "http")
		if err != nil {
			minioErr = fmt.Errorf("minio endpoint: %w", err)
			return
		}

		minioInfo = MinioInfo{URL: endpoint, AccessKey: minioUser, SecretKey: minioPassword}
	})

	if minioErr != nil {
		t.Fatalf("minio: %v", minioErr)
	}
	return minioInfo
}

func newS3Client(t *testing.T, info MinioInfo) *s3.Client {
	t.Helper()

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(info.AccessKey, info.SecretKey, "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(info.URL)
		o.UsePathStyle = true
	})
}

// createBucket makes a fresh bucket so tests sharing the container stay isolated.
func createBucket(t *testing.T, info MinioInfo) string {
	t.Helper()

	bucketMu.Lock()
	bucketSeq++
	name := fmt.Sprintf("e2e-%d", bucketSeq)
	bucketMu.Unlock()

	_, err := newS3Client(t, info).CreateBucket(context.Background(), &s3.CreateBucketInput{Bucket: aws.String(name)})
	require.NoError(t, err, "create bucket %s", name)
	return name
}

// readObject fetches an object directly from MinIO, bypassing the gateway.
func readObject(t *testing.T, info MinioInfo, bucket, key string) []byte {
	t.Helper()

	out, err := newS3Client(t, info).GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	require.NoError(t, err, "get object %s", key)
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	return data
}

func deleteObject(t *testing.T, info MinioInfo, bucket, key string) {
	t.Helper()

	_, err := newS3Client(t, info).DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	require.NoError(t, err, "delete object %s", key)
}
