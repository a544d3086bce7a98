package e2e_test

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	binaryPath     string
	binaryBuildErr error
	binaryOnce     sync.Once
	sharedTempDir  string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	var err error
	sharedTempDir, err = os.MkdirTemp("", "storagegate-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if minioCleanup != nil {
		minioCleanup()
	}
	if testCleanup != nil {
		testCleanup()
	}
	_ = os.RemoveAll(sharedTempDir)

	os.Exit(code)
}

const (
	testJWTSecret = "e2e-secret-at-least-16-bytes"
	testEnv       = "e2e"
)

// ServerConfig holds configuration for starting the storagegate server.
type ServerConfig struct {
	Port   int
	DBType string // sqlite, postgres
	DBDSN  string
	S3     MinioInfo
	Bucket string
}

// buildBinary compiles the storagegate binary once per test run.
func buildBinary(t *testing.T) string {
	t.Helper()

	binaryOnce.Do(func() {
		binaryPath = filepath.Join(sharedTempDir, "storagegate")

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/storagegate")
		cmd.Dir = getProjectRoot(t)
		output, err := cmd.CombinedOutput()
		if err != nil {
			binaryBuildErr = fmt.Errorf("build binary: %w\nOutput: %s", err, output)
			return
		}
	})

	if binaryBuildErr != nil {
		t.Fatalf("failed to build binary: %v", binaryBuildErr)
	}

	return binaryPath
}

// getProjectRoot returns the directory holding go.mod.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile writes a config file for the server and returns its path.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	var sb strings.Builder
	fmt.Fprintf(&sb, `env: %s

server:
  port: %d

database:
  type: %s
  dsn: "%s"

storage:
  default_endpoint: main
  url: "%s"
  region: us-east-1
  bucket: %s
  path_style: true
  access_key: %s
  secret_key: %s

auth:
  jwt_secret: %s

issuer:
  max_retries: 1
  retry_base_ms: 10

domains:
  agcore:
    folder: agcore
  agvideo:
    folder: agvideo

log:
  level: error
`,
		testEnv,
		cfg.Port,
		cfg.DBType,
		cfg.DBDSN,
		cfg.S3.URL,
		cfg.Bucket,
		cfg.S3.AccessKey,
		cfg.S3.SecretKey,
		testJWTSecret,
	)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(sb.String()), 0o600)
	require.NoError(t, err, "write config file")

	return configPath
}

// runCommand runs the binary with a config file and returns its stdout.
func runCommand(t *testing.T, configPath string, args ...string) string {
	t.Helper()

	cmd := exec.Command(buildBinary(t), append(args, "--config", configPath)...)
	cmd.Stderr = os.Stderr
	output, err := cmd.Output()
	require.NoError(t, err, "run %v", args)
	return strings.TrimSpace(string(output))
}

// startServer migrates the catalog and starts the storagegate binary.
// Returns the base URL, the config path and a cleanup function that stops the server.
func startServer(t *testing.T, cfg ServerConfig) (string, string, func()) {
	t.Helper()

	configPath := createConfigFile(t, cfg)
	runCommand(t, configPath, "migrate", "up")

	cmd := exec.Command(buildBinary(t), "serve", "--config", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Start()
	require.NoError(t, err, "start server")

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)

	cleanup := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}
	}

	if !waitForServer(baseURL, 15*time.Second) {
		cleanup()
		t.Fatalf("server failed to start within 15s")
	}

	return baseURL, configPath, cleanup
}

// mintToken uses the token command to sign a bearer token.
func mintToken(t *testing.T, configPath, user, client string) string {
	t.Helper()
	return runCommand(t, configPath, "token", "--user", user, "--client", client, "--ttl", "10m")
}

// waitForServer polls /healthz until it answers 200 or the timeout passes.
func waitForServer(baseURL string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return false
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "find open port")

	port := l.Addr().(*net.TCPAddr).Port

	err = l.Close()
	require.NoError(t, err, "close port")

	return port
}
