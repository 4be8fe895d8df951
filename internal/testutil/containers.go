package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cloo-solutions/docqa/internal/database"
)

const (
	rustFSAccessKey = "rustfsadmin"
	rustFSSecretKey = "rustfsadmin"
)

// startedContainer is a running container with its mapped address. It is
// terminated when the test ends, or earlier by Terminate.
type startedContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string

	terminate sync.Once
}

func startContainer(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port nat.Port) *startedContainer {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get %s host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("failed to get %s port: %v", req.Image, err)
	}

	return &startedContainer{Container: container, Host: host, Port: mapped.Port()}
}

func (c *startedContainer) Terminate(context.Context) error {
	var err error
	c.terminate.Do(func() { err = testcontainers.TerminateContainer(c.Container) })
	return err
}

// PostgresContainer is a pgvector-enabled Postgres for the vector store tests.
type PostgresContainer struct {
	*startedContainer
	User     string
	Password string
	Database string
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	pc := &PostgresContainer{User: "docqa", Password: "docqa", Database: "docqa"}
	pc.startedContainer = startContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:0.8.1-pg18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pc.User,
			"POSTGRES_PASSWORD": pc.Password,
			"POSTGRES_DB":       pc.Database,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })
	return pc
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.User, pc.Password, pc.Host, pc.Port, pc.Database)
}

// RustFSContainer is an S3-compatible object store for upload archiving.
// Credentials are rustfsadmin/rustfsadmin.
type RustFSContainer struct {
	*startedContainer
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	rc := &RustFSContainer{}
	rc.startedContainer = startContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": rustFSAccessKey,
			"RUSTFS_SECRET_KEY": rustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000/tcp")
	t.Cleanup(func() { _ = rc.Terminate(context.Background()) })
	return rc
}

func (rc *RustFSContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", rc.Host, rc.Port)
}

// S3 returns a plain SDK client for inspecting what the service wrote.
func (rc *RustFSContainer) S3(t *testing.T) *s3.Client {
	t.Helper()
	return s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(rc.Endpoint()),
		Credentials:  credentials.NewStaticCredentialsProvider(rustFSAccessKey, rustFSSecretKey, ""),
		UsePathStyle: true,
	})
}

// NewTestPool creates a pgxpool connected to the test container and applies the embedded migrations
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	var pool *pgxpool.Pool
	var err error
	for i := 0; i < 5; i++ {
		pool, err = pgxpool.New(ctx, pc.ConnectionString())
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to create pool after retries: %v", err)
	}

	if err := database.MigratePostgres(pc.ConnectionString()); err != nil {
		pool.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return pool
}

// NewTestSQLite opens a migrated SQLite store file inside a temp directory.
func NewTestSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "docqa.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.MigrateSQLite(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TruncateAll truncates all tables in the database for test isolation
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"chunks", "store_meta"} {
		_, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}
