package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/movian/movian-api/internal/service"
)

const defaultMinioTestImage = "docker.io/minio/minio:RELEASE.2025-09-07T16-13-09Z"

type minioEnv struct {
	bucket string
	store  *service.MinIOAvatarStore
	client *minio.Client
}

// newMinIOEnv starts a throwaway MinIO container. Tests are skipped when no
// container runtime is reachable.
func newMinIOEnv(t *testing.T, maxBytes int64) *minioEnv {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	image := strings.TrimSpace(os.Getenv("MINIO_TEST_IMAGE"))
	if image == "" {
		image = defaultMinioTestImage
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: image,
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data", "--address", ":9000"},
			WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(45 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("minio host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		t.Fatalf("minio port: %v", err)
	}
	endpoint := net.JoinHostPort(host, port.Port())
	bucket := fmt.Sprintf("movian-avatars-%d", time.Now().UnixNano())

	store, err := service.NewMinIOAvatarStore(endpoint, "minioadmin", "minioadmin", bucket, false, maxBytes)
	if err != nil {
		t.Fatalf("avatar store: %v", err)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	if err != nil {
		t.Fatalf("minio client: %v", err)
	}
	waitForMinIO(t, client)
	return &minioEnv{bucket: bucket, store: store, client: client}
}

func waitForMinIO(t *testing.T, client *minio.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		_, err := client.ListBuckets(ctx)
		if err == nil {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("minio not ready: %v", err)
		case <-ticker.C:
		}
	}
}

func (e *minioEnv) objectExists(t *testing.T, key string) bool {
	t.Helper()
	_, err := e.client.StatObject(context.Background(), e.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true
	}
	var errResp minio.ErrorResponse
	if errors.As(err, &errResp) && (errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket") {
		return false
	}
	t.Fatalf("stat %q: %v", key, err)
	return false
}

func (e *minioEnv) stat(t *testing.T, key string) minio.ObjectInfo {
	t.Helper()
	info, err := e.client.StatObject(context.Background(), e.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		t.Fatalf("stat %q: %v", key, err)
	}
	return info
}
