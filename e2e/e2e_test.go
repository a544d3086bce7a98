package e2e_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/clientcli"
)

// gatewayEnv is a running gateway with its blob store.
type gatewayEnv struct {
	baseURL    string
	configPath string
	minio      MinioInfo
	bucket     string
}

func (e gatewayEnv) client(t *testing.T, user, clientID string) *clientcli.Client {
	t.Helper()

	token := ""
	if clientID != "" {
		token = mintToken(t, e.configPath, user, clientID)
	}

	client, err := clientcli.New(&clientcli.Config{Endpoint: e.baseURL, Token: token})
	require.NoError(t, err)
	return client
}

func startGateway(t *testing.T, dbType, dsn string) gatewayEnv {
	t.Helper()

	info := getSharedMinio(t)
	bucket := createBucket(t, info)

	baseURL, configPath, cleanup := startServer(t, ServerConfig{
		Port:   getOpenPort(t),
		DBType: dbType,
		DBDSN:  dsn,
		S3:     info,
		Bucket: bucket,
	})
	t.Cleanup(cleanup)

	return gatewayEnv{baseURL: baseURL, configPath: configPath, minio: info, bucket: bucket}
}

func TestE2E_SQLite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	dsn := filepath.Join(t.TempDir(), "storagegate.db")
	runGatewayTests(t, startGateway(t, "sqlite", dsn))
}

func TestE2E_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	dsn := getSharedPostgresDatabase(t)
	runGatewayTests(t, startGateway(t, "postgres", dsn))
}

func runGatewayTests(t *testing.T, env gatewayEnv) {
	t.Run("static round trip", func(t *testing.T) { testStaticRoundTrip(t, env) })
	t.Run("static write denied", func(t *testing.T) { testStaticWriteDenied(t, env) })
	t.Run("static download missing", func(t *testing.T) { testStaticDownloadMissing(t, env) })
	t.Run("unauthenticated", func(t *testing.T) { testUnauthenticated(t, env) })
	t.Run("group lifecycle", func(t *testing.T) { testGroupLifecycle(t, env) })
	t.Run("webhook", func(t *testing.T) { testWebhook(t, env) })
}

func testStaticRoundTrip(t *testing.T, env gatewayEnv) {
	ctx := context.Background()
	client := env.client(t, "u1", "agcore")

	localFile := filepath.Join(t.TempDir(), "report.txt")
	content := []byte("quarterly numbers")
	require.NoError(t, os.WriteFile(localFile, content, 0o600))

	loc := clientcli.Location{Domain: "agcore", ProjectID: "p1"}
	results, err := client.Upload(ctx, clientcli.UploadOptions{
		Location:    loc,
		LocalPath:   localFile,
		RelativeKey: "docs/report.txt",
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	stored := readObject(t, env.minio, env.bucket, "static/env="+testEnv+"/project_id=p1/domain=agcore/docs/report.txt")
	assert.Equal(t, content, stored)

	// Any authenticated caller may read a known domain.
	reader := env.client(t, "u2", "agvideo")
	result, body, err := reader.Download(ctx, clientcli.DownloadOptions{
		Location:    loc,
		RelativeKey: "docs/report.txt",
		LocalPath:   "-",
	})
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "text/plain", result.ContentType)
}

func testStaticWriteDenied(t *testing.T, env gatewayEnv) {
	client := env.client(t, "u1", "agvideo")

	_, err := client.UploadURL(context.Background(),
		clientcli.Location{Domain: "agcore"}, "docs/x.txt", "", storagegate.UploadOptions{})
	assert.ErrorIs(t, err, clientcli.ErrForbidden)

	_, err = client.UploadURL(context.Background(),
		clientcli.Location{Domain: "unknown"}, "docs/x.txt", "", storagegate.UploadOptions{})
	assert.ErrorIs(t, err, clientcli.ErrForbidden)
}

func testStaticDownloadMissing(t *testing.T, env gatewayEnv) {
	client := env.client(t, "u1", "agcore")

	_, err := client.DownloadURL(context.Background(),
		clientcli.Location{Domain: "agcore"}, "never/uploaded.bin", storagegate.DownloadOptions{})
	require.ErrorIs(t, err, clientcli.ErrNotFound)

	var apiErr *clientcli.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "object_not_found", apiErr.Code)
}

func testUnauthenticated(t *testing.T, env gatewayEnv) {
	client := env.client(t, "", "")

	_, err := client.NewGroup(context.Background(), storagegate.NewGroupRequest{Domain: "agcore"})
	assert.ErrorIs(t, err, clientcli.ErrUnauthorized)

	resp, err := http.Get(env.baseURL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func testGroupLifecycle(t *testing.T, env gatewayEnv) {
	ctx := context.Background()
	client := env.client(t, "u1", "agcore")

	id, err := client.NewGroup(ctx, storagegate.NewGroupRequest{Domain: "agcore", ProjectID: "p1", Category: "frames"})
	require.NoError(t, err)

	group, err := client.GetGroup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, group.ID)
	assert.Equal(t, "u1", group.UserID)
	assert.Nil(t, group.FinalizedAt)
	assert.True(t, strings.HasPrefix(group.CommonPrefix, "dynamic/env="+testEnv+"/project_id=p1/years="))
	assert.True(t, strings.HasSuffix(group.CommonPrefix, "/domain=agcore/category=frames/id="+id.String()))

	manifest := readObject(t, env.minio, env.bucket, group.CommonPrefix+"/manifest.json")
	assert.Contains(t, string(manifest), id.String())

	// Another client may not write into the group.
	_, err = env.client(t, "u2", "agvideo").UploadURL(ctx,
		clientcli.Location{GroupID: id}, "frames/0001.png", "frame", storagegate.UploadOptions{})
	assert.ErrorIs(t, err, clientcli.ErrForbidden)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "frames"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frames", "0001.png"), []byte("frame-1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frames", "0002.png"), []byte("frame-2"), 0o600))

	results, err := client.Upload(ctx, clientcli.UploadOptions{
		Location:  clientcli.Location{GroupID: id},
		LocalPath: dir,
		Purpose:   "frame",
		Recursive: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	stored := readObject(t, env.minio, env.bucket, testEnv+"/"+group.CommonPrefix+"/frames/0001.png")
	assert.Equal(t, []byte("frame-1"), stored)

	list, err := client.List(ctx, clientcli.ListOptions{GroupID: id, All: true})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, 0, list.ValidatedCount())

	keys := []string{list.Items[0].RelativeKey, list.Items[1].RelativeKey}
	assert.ElementsMatch(t, []string{"frames/0001.png", "frames/0002.png"}, keys)

	validated, err := client.Validate(ctx, list.Items[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, validated.UploadValidatedAt)

	var buf bytes.Buffer
	_, body, err := client.Download(ctx, clientcli.DownloadOptions{
		Location:    clientcli.Location{GroupID: id},
		RelativeKey: "frames/0002.png",
		LocalPath:   "-",
	})
	require.NoError(t, err)
	_, err = io.Copy(&buf, body)
	_ = body.Close()
	require.NoError(t, err)
	assert.Equal(t, "frame-2", buf.String())

	_, err = client.DownloadURL(ctx, clientcli.Location{GroupID: id}, "frames/9999.png", storagegate.DownloadOptions{})
	assert.ErrorIs(t, err, clientcli.ErrNotFound)

	finalized, err := client.FinalizeGroup(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, finalized.FinalizedAt)

	_, err = client.UploadURL(ctx, clientcli.Location{GroupID: id}, "frames/0003.png", "frame", storagegate.UploadOptions{})
	assert.ErrorIs(t, err, clientcli.ErrConflict)

	// Finalized groups remain readable.
	_, err = client.DownloadURL(ctx, clientcli.Location{GroupID: id}, "frames/0001.png", storagegate.DownloadOptions{})
	assert.NoError(t, err)

	_, err = client.GetGroup(ctx, uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, clientcli.ErrNotFound)

	manifestKey := group.CommonPrefix + "/manifest.json"
	deleteObject(t, env.minio, env.bucket, manifestKey)
	out := runCommand(t, env.configPath, "manifest", "rewrite", id.String())
	assert.Contains(t, out, manifestKey)
	assert.Contains(t, string(readObject(t, env.minio, env.bucket, manifestKey)), id.String())
}

func testWebhook(t *testing.T, env gatewayEnv) {
	post := func(body string) string {
		resp, err := http.Post(env.baseURL+"/webhook/minio", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(data)
	}

	assert.JSONEq(t, `{"ok":false,"reason":"invalid json"}`, post("{not json"))
	assert.JSONEq(t, `{"ok":true}`, post(`{"EventName":"s3:ObjectCreated:Put","Key":"agdev/x"}`))
}
