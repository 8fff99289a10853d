package testutil

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"db-initializer/internal/models"
	"db-initializer/pkg/db"
)

const (
	PostgresUser     = "testuser"
	PostgresPassword = "testpassword"
	PostgresDB       = "postgres"
)

type PostgresHelper struct {
	Container *postgres.PostgresContainer
	ConnInfo  db.ConnInfo
}

func NewPostgresContainer(t require.TestingT, ctx context.Context) (*PostgresHelper, error) {
	hostPort, err := getPortManager().reservePort()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve port: %w", err)
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase(PostgresDB),
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithSQLDriver("pgx"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(1*time.Minute),
			wait.ForExposedPort().WithStartupTimeout(1*time.Minute),
		),
		testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) {
			hostConfig.PortBindings = nat.PortMap{
				nat.Port("5432/tcp"): []nat.PortBinding{{HostPort: strconv.Itoa(hostPort)}},
			}
		}),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	host, err := pgContainer.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}

	portNat, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	port, err := strconv.Atoi(portNat.Port())
	if err != nil {
		return nil, fmt.Errorf("failed to convert port to integer: %w", err)
	}

	return &PostgresHelper{
		Container: pgContainer,
		ConnInfo: db.ConnInfo{
			Host:     host,
			Port:     port,
			Username: PostgresUser,
			Password: PostgresPassword,
			Database: PostgresDB,
			SSLMode:  "disable",
		},
	}, nil
}

// SecretRecord returns the credentials of the container in the shape the
// secret store holds them.
func (p *PostgresHelper) SecretRecord() *models.SecretRecord {
	return &models.SecretRecord{
		Host:     p.ConnInfo.Host,
		Port:     models.SecretPort(p.ConnInfo.Port),
		Username: p.ConnInfo.Username,
		Password: p.ConnInfo.Password,
	}
}

func (p *PostgresHelper) DatabaseExists(ctx context.Context, name string) (bool, error) {
	conn, err := sqlx.ConnectContext(ctx, "pgx", db.BuildPostgresDSN(p.ConnInfo))
	if err != nil {
		return false, err
	}
	defer conn.Close()

	var exists bool
	err = conn.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name)
	return exists, err
}

func (p *PostgresHelper) DropDatabase(ctx context.Context, name string) error {
	conn, err := sqlx.ConnectContext(ctx, "pgx", db.BuildPostgresDSN(p.ConnInfo))
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, name))
	return err
}

// OpenConnections counts backends of the test user other than the caller.
func (p *PostgresHelper) OpenConnections(ctx context.Context) (int, error) {
	conn, err := sqlx.ConnectContext(ctx, "pgx", db.BuildPostgresDSN(p.ConnInfo))
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var count int
	err = conn.GetContext(ctx, &count,
		`SELECT count(*) FROM pg_stat_activity WHERE usename = $1 AND pid <> pg_backend_pid()`, PostgresUser)
	return count, err
}

func (p *PostgresHelper) Terminate(ctx context.Context) error {
	if p.Container != nil {
		return p.Container.Terminate(ctx)
	}
	return nil
}

func (p *PostgresHelper) Stop(ctx context.Context, timeout *time.Duration) error {
	if p.Container != nil {
		return p.Container.Stop(ctx, timeout)
	}
	return nil
}

func (p *PostgresHelper) Start(ctx context.Context) error {
	if p.Container != nil {
		return p.Container.Start(ctx)
	}
	return nil
}
