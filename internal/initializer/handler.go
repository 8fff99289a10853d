// Package initializer implements the lifecycle callback that creates the
// application database when the owning resource is created.
package initializer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"db-initializer/internal/models"
	"db-initializer/internal/secretstore"
	"db-initializer/pkg/db"
	"db-initializer/pkg/log"
)

// Detail kinds reported in CallbackResult.Err.Detail.
const (
	DetailInvalidPayload         = "invalid_payload"
	DetailInvalidDatabaseName    = "invalid_database_name"
	DetailInvalidSecretName      = "invalid_secret_name"
	DetailSecretNotFound         = "secret_not_found"
	DetailSecretAccessDenied     = "secret_access_denied"
	DetailSecretMalformed        = "secret_malformed"
	DetailSecretStoreUnavailable = "secret_store_unavailable"
	DetailConnectFailed          = "connect_failed"
	DetailCreateDatabaseFailed   = "create_database_failed"
	DetailPanic                  = "panic"
)

const (
	defaultPort          = 5432
	defaultMaintenanceDB = "postgres"
	defaultSSLMode       = "prefer"

	redactedValue             = "xxxxx"
	minRedactedPasswordLength = 4
)

var ErrPanic = errors.New("initializer panicked")

// Options control how the administrative connection is opened. The port of the
// secret record is never used; Port applies to every connection.
type Options struct {
	Port           int
	MaintenanceDB  string
	SSLMode        string
	ConnectTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Port == 0 {
		o.Port = defaultPort
	}
	if o.MaintenanceDB == "" {
		o.MaintenanceDB = defaultMaintenanceDB
	}
	if o.SSLMode == "" {
		o.SSLMode = defaultSSLMode
	}
	return o
}

// Handler is stateless between invocations and safe for concurrent use as long
// as its Fetcher and Connector are.
type Handler struct {
	secrets   secretstore.Fetcher
	connector db.Connector
	opts      Options
	logger    zerolog.Logger
}

func NewHandler(secrets secretstore.Fetcher, connector db.Connector, opts Options) *Handler {
	return &Handler{
		secrets:   secrets,
		connector: connector,
		opts:      opts.withDefaults(),
		logger:    log.Component("initializer"),
	}
}

// HandleRaw decodes an invocation payload and handles it. The error is always
// nil: every failure is reported through the result.
func (h *Handler) HandleRaw(ctx context.Context, raw json.RawMessage) (models.CallbackResult, error) {
	event, params, err := models.DecodeEvent(raw)
	switch {
	case errors.Is(err, models.ErrUnknownAction):
		h.logger.Warn().
			Str("event", "handle").
			Str("action", params.Action.String()).
			Msg("Unrecognized lifecycle action, skipping")
		return models.NewSkipResult(), nil
	case err != nil:
		h.logger.Error().Str("event", "handle").Err(err).Msg("Failed to decode invocation payload")
		return models.NewErrorResult(err, DetailInvalidPayload, "Invalid invocation payload"), nil
	}

	return h.Handle(ctx, event), nil
}

// Handle runs one lifecycle event. Only CreateEvent has side effects; every
// other event returns OK/Skip without touching the secret store or the server.
func (h *Handler) Handle(ctx context.Context, event models.Event) (result models.CallbackResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, r)
			h.logger.Error().Str("event", "handle").Err(err).Msg("Recovered from panic")
			result = models.NewErrorResult(err, DetailPanic, "Unexpected failure while initializing database")
		}
	}()

	create, ok := event.(models.CreateEvent)
	if !ok {
		action := ""
		if event != nil {
			action = event.Params().Action.String()
		}
		h.logger.Info().Str("event", "handle").Str("action", action).Msg("Nothing to do for lifecycle action")
		return models.NewSkipResult()
	}

	return h.createDatabase(ctx, create.Params())
}

func (h *Handler) createDatabase(ctx context.Context, params models.RequestParams) models.CallbackResult {
	logger := h.logger.With().
		Str("event", "create_database").
		Str("secret_name", params.SecretName).
		Str("database_name", params.DatabaseName).
		Logger()

	statement, err := CreateDatabaseStatement(params.DatabaseName)
	if err != nil {
		logger.Error().Err(err).Msg("Rejected database name")
		return models.NewErrorResult(err, DetailInvalidDatabaseName, "Invalid database name")
	}

	logger.Debug().Msg("Fetching database credentials")
	secret, err := h.secrets.Fetch(ctx, params.SecretName)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch database credentials")
		return models.NewErrorResult(err, secretErrorDetail(err), "Failed to fetch database credentials")
	}

	conn, err := h.connector.Connect(ctx, h.connInfo(secret))
	if err != nil {
		err = redactSecret(err, secret)
		logger.Error().Err(err).Object("secret", secret).Msg("Failed to connect to database server")
		return models.NewErrorResult(err, DetailConnectFailed, "Failed to connect to database server")
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn().Err(redactSecret(closeErr, secret)).Msg("Failed to release database connection")
		}
	}()

	if err := conn.Exec(ctx, statement); err != nil {
		err = redactSecret(err, secret)
		logger.Error().Err(err).Msg("Failed to create database")
		return models.NewErrorResult(err, DetailCreateDatabaseFailed, "Failed to create database")
	}

	summary := models.SecretRecord{
		Host:     secret.Host,
		Port:     models.SecretPort(h.opts.Port),
		Username: secret.Username,
	}
	logger.Info().Object("server", summary).Msg("Database created")
	return models.NewOKResult(summary.String())
}

func (h *Handler) connInfo(secret *models.SecretRecord) db.ConnInfo {
	return db.ConnInfo{
		Host:           secret.Host,
		Port:           h.opts.Port,
		Username:       secret.Username,
		Password:       secret.Password,
		Database:       h.opts.MaintenanceDB,
		SSLMode:        h.opts.SSLMode,
		ConnectTimeout: h.opts.ConnectTimeout,
	}
}

func secretErrorDetail(err error) string {
	switch {
	case errors.Is(err, secretstore.ErrInvalidSecretID):
		return DetailInvalidSecretName
	case errors.Is(err, secretstore.ErrSecretNotFound):
		return DetailSecretNotFound
	case errors.Is(err, secretstore.ErrAccessDenied):
		return DetailSecretAccessDenied
	case errors.Is(err, secretstore.ErrMalformedSecret):
		return DetailSecretMalformed
	default:
		return DetailSecretStoreUnavailable
	}
}

// redactSecret masks the password should a driver error ever echo it.
func redactSecret(err error, secret *models.SecretRecord) error {
	if err == nil || secret == nil || secret.Password == "" {
		return err
	}
	msg := err.Error()
	redacted := redactPassword(msg, secret.Password)
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, cause: err}
}

// redactPassword always masks the password in DSN userinfo form, raw or
// escaped. Bare occurrences are masked only from minRedactedPasswordLength
// bytes on, so a short password does not eat unrelated words.
func redactPassword(msg, password string) string {
	userinfo := ":" + redactedValue + "@"
	msg = strings.ReplaceAll(msg, ":"+password+"@", userinfo)
	msg = strings.ReplaceAll(msg, url.UserPassword("", password).String()+"@", userinfo)
	if len(password) >= minRedactedPasswordLength {
		msg = strings.ReplaceAll(msg, password, redactedValue)
	}
	return msg
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }

// Unwrap keeps errors.Is working against the sentinels of pkg/db.
func (e *redactedError) Unwrap() error { return e.cause }
