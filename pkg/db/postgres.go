package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // this is required to register the pgx driver with database/sql
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"db-initializer/pkg/log"
)

const driverName = "pgx"

var (
	ErrConnect = errors.New("failed to connect to postgres")
	ErrExec    = errors.New("failed to execute statement")
	ErrClosed  = errors.New("connection already closed")
)

// ConnInfo describes a single administrative connection.
type ConnInfo struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Database       string
	SSLMode        string
	ConnectTimeout time.Duration
}

// AdminConn is one open connection to a database server. Close must be called
// on every path once Connect succeeded.
type AdminConn interface {
	Exec(ctx context.Context, statement string) error
	Close() error
}

type Connector interface {
	Connect(ctx context.Context, info ConnInfo) (AdminConn, error)
}

type PostgresConnector struct {
	logger zerolog.Logger
}

func NewPostgresConnector() *PostgresConnector {
	return &PostgresConnector{
		logger: log.Component("postgres_connector"),
	}
}

// Connect opens and pings a connection. The pool behind it is capped at one
// connection so the statement and the release act on the same session.
func (c *PostgresConnector) Connect(ctx context.Context, info ConnInfo) (AdminConn, error) {
	connectionString := BuildPostgresDSN(info)
	redactedConnectionString := RedactDSN(connectionString)

	c.logger.Info().Str("dsn", redactedConnectionString).Msg("Attempting to connect to PostgreSQL")

	db, err := sqlx.ConnectContext(ctx, driverName, connectionString)
	if err != nil {
		c.logger.Error().Err(err).Str("dsn", redactedConnectionString).Msg("Failed to connect to PostgreSQL")
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c.logger.Info().Str("dsn", redactedConnectionString).Msg("Successfully connected to PostgreSQL")

	return &postgresAdminConn{
		db:     db,
		logger: c.logger.With().Str("host", info.Host).Logger(),
	}, nil
}

type postgresAdminConn struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func (c *postgresAdminConn) Exec(ctx context.Context, statement string) error {
	if c.db == nil {
		return ErrClosed
	}
	if _, err := c.db.ExecContext(ctx, statement); err != nil {
		c.logger.Error().Err(err).Msg("Failed to execute administrative statement")
		return fmt.Errorf("%w: %w", ErrExec, err)
	}
	return nil
}

func (c *postgresAdminConn) Close() error {
	if c.db == nil {
		return nil
	}
	c.logger.Debug().Msg("Closing PostgreSQL connection")
	err := c.db.Close()
	c.db = nil
	return err
}

// BuildPostgresDSN renders a postgres:// URL. An empty SSL mode becomes "prefer".
func BuildPostgresDSN(info ConnInfo) string {
	sslMode := info.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(info.Username, info.Password),
		Host:   net.JoinHostPort(info.Host, strconv.Itoa(info.Port)),
		Path:   info.Database,
	}
	query := dsn.Query()
	query.Set("sslmode", sslMode)
	if info.ConnectTimeout > 0 {
		seconds := int(info.ConnectTimeout.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		query.Set("connect_timeout", strconv.Itoa(seconds))
	}
	dsn.RawQuery = query.Encode()

	return dsn.String()
}

// RedactDSN masks the password of a DSN produced by BuildPostgresDSN.
func RedactDSN(dsnStr string) string {
	parsedDSN, err := url.Parse(dsnStr)
	if err != nil {
		return "<unparseable dsn>"
	}

	if parsedDSN.User != nil {
		username := parsedDSN.User.Username()
		parsedDSN.User = url.UserPassword(username, "xxxxx")
	}

	return parsedDSN.String()
}
