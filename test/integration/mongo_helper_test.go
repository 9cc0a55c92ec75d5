package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/movian/movian-api/internal/config"
	"github.com/movian/movian-api/internal/database"
)

const defaultMongoTestImage = "docker.io/library/mongo:7"

// startMongo runs a throwaway mongod for the calling test and returns its URI.
// Tests are skipped when no container runtime is reachable.
func startMongo(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	image := strings.TrimSpace(os.Getenv("MONGO_TEST_IMAGE"))
	if image == "" {
		image = defaultMongoTestImage
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Waiting for connections"),
				wait.ForListeningPort("27017/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start mongo container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("mongo host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatalf("mongo port: %v", err)
	}
	return "mongodb://" + net.JoinHostPort(host, port.Port())
}

// useMongo points a harness config at a fresh database on uri.
func useMongo(uri string) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.StoreDriver = database.DriverMongo
		cfg.MongoURI = uri
		cfg.MongoDatabase = fmt.Sprintf("movian_%d", time.Now().UnixNano())
	}
}
