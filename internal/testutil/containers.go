// Package testutil starts the throwaway Postgres ledger and S3 mirror used by
// integration and e2e tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/insightd/internal/database"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	ledgerUser     = "insightd"
	ledgerPassword = "insightd"
	ledgerDatabase = "insightd"

	// RustFSAccessKey and RustFSSecretKey are the mirror store credentials.
	RustFSAccessKey = "rustfsadmin"
	RustFSSecretKey = "rustfsadmin"
)

// ledgerTables lists tables in truncation order.
var ledgerTables = []string{"item_outcomes", "cycles"}

type container struct {
	testcontainers.Container
	Host string
	Port string
	once sync.Once
}

// start runs req and resolves the mapped port. The container is terminated
// when the test ends, or earlier through Terminate.
func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port string) *container {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("resolve %s host: %v", req.Image, err)
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("resolve %s port: %v", req.Image, err)
	}

	out := &container{Container: c, Host: host, Port: mapped.Port()}
	t.Cleanup(func() { _ = out.Terminate(context.Background()) })
	return out
}

// Terminate stops and removes the container. Repeated calls are no-ops.
func (c *container) Terminate(context.Context) error {
	var err error
	c.once.Do(func() { err = c.Container.Terminate(context.Background()) })
	return err
}

// PostgresContainer hosts a scan ledger database.
type PostgresContainer struct {
	*container
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	return &PostgresContainer{start(ctx, t, testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     ledgerUser,
			"POSTGRES_PASSWORD": ledgerPassword,
			"POSTGRES_DB":       ledgerDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}, "5432")}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		ledgerUser, ledgerPassword, pc.Host, pc.Port, ledgerDatabase)
}

// RustFSContainer is an S3-compatible store for knowledge mirror tests.
type RustFSContainer struct {
	*container
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	return &RustFSContainer{start(ctx, t, testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSAccessKey,
			"RUSTFS_SECRET_KEY": RustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000")}
}

func (rc *RustFSContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", rc.Host, rc.Port)
}

// NewTestPool connects to the container, applies the embedded ledger
// migrations and closes the pool when the test ends.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	t.Helper()

	pool, err := database.NewPool(ctx, database.Config{
		URL:            pc.ConnectionString(),
		MaxConns:       4,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("connect to ledger: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := database.Migrate(pc.ConnectionString(), nil); err != nil {
		t.Fatalf("migrate ledger: %v", err)
	}
	return pool
}

// TruncateAll empties the ledger between tests.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range ledgerTables {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
