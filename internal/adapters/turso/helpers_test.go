package turso_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/emiliopalmerini/mtrack/internal/adapters/turso"
	"github.com/emiliopalmerini/mtrack/internal/migrate"
)

// testDB opens a fresh database file with all migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := turso.NewDB(ctx, filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := migrate.RunAll(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testServerDB starts a libsql-server container. It is slow and needs Docker,
// so it only runs when MTRACK_TEST_CONTAINERS=1.
func testServerDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("MTRACK_TEST_CONTAINERS") != "1" {
		t.Skip("set MTRACK_TEST_CONTAINERS=1 to run libsql-server container tests")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "ghcr.io/tursodatabase/libsql-server:latest",
		ExposedPorts: []string{"8080/tcp"},
		WaitingFor:   wait.ForHTTP("/health").WithPort("8080/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start libsql-server container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "8080")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	db, err := sql.Open(turso.DriverName, fmt.Sprintf("http://%s:%s", host, port.Port()))
	if err != nil {
		t.Fatalf("Failed to connect to libsql-server: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping libsql-server: %v", err)
	}
	if err := migrate.RunAll(ctx, db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }
