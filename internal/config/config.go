package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	ProviderSecretsManager = "secretsmanager"
	ProviderVault          = "vault"

	// DefaultPostgresPort is used for every administrative connection; the port
	// stored in the secret is not consulted.
	DefaultPostgresPort = 5432

	redactedValue = "xxxxx"
)

// Config represents the configuration for db-initializer
type Config struct {
	ID          string      `mapstructure:"id" yaml:"id" json:"id" validate:"required"`
	LogLevel    string      `mapstructure:"log_level" yaml:"log_level" json:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	SecretStore SecretStore `mapstructure:"secret_store" yaml:"secret_store" json:"secret_store"`
	Postgres    Postgres    `mapstructure:"postgres" yaml:"postgres" json:"postgres"`
	Request     Request     `mapstructure:"request" yaml:"request" json:"request"`
	Transport   Transport   `mapstructure:"transport" yaml:"transport" json:"transport"`
}

type SecretStore struct {
	Provider       string         `mapstructure:"provider" yaml:"provider" json:"provider" validate:"required,oneof=secretsmanager vault"`
	SecretsManager SecretsManager `mapstructure:"secrets_manager" yaml:"secrets_manager" json:"secrets_manager"`
	Vault          Vault          `mapstructure:"vault" yaml:"vault" json:"vault"`
}

type SecretsManager struct {
	Region   string `mapstructure:"region" yaml:"region" json:"region"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint" validate:"omitempty,url"`
}

// Vault holds either a static token or AppRole credentials.
type Vault struct {
	Address       string `mapstructure:"address" yaml:"address" json:"address" validate:"omitempty,url"`
	Token         string `mapstructure:"token" yaml:"token" json:"token"`
	AppRoleID     string `mapstructure:"app_role" yaml:"app_role" json:"app_role"`
	AppRoleSecret string `mapstructure:"app_secret" yaml:"app_secret" json:"app_secret"`
	AppRoleMount  string `mapstructure:"app_role_mount" yaml:"app_role_mount" json:"app_role_mount"`
	Mount         string `mapstructure:"mount" yaml:"mount" json:"mount"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify" json:"tls_skip_verify"`
	TLSCertFile   string `mapstructure:"tls_cert_file" yaml:"tls_cert_file" json:"tls_cert_file"`
}

func (v Vault) UsesAppRole() bool {
	return v.Token == "" && v.AppRoleID != ""
}

type Postgres struct {
	Port           int           `mapstructure:"port" yaml:"port" json:"port" validate:"required,gt=0,lt=65536"`
	MaintenanceDB  string        `mapstructure:"maintenance_db" yaml:"maintenance_db" json:"maintenance_db" validate:"required"`
	SSLMode        string        `mapstructure:"ssl_mode" yaml:"ssl_mode" json:"ssl_mode" validate:"required,oneof=disable allow prefer require verify-ca verify-full"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout" validate:"gte=0"`
}

// Request carries the defaults the request commands use to build descriptors.
type Request struct {
	StackID         string `mapstructure:"stack_id" yaml:"stack_id" json:"stack_id"`
	FunctionName    string `mapstructure:"function_name" yaml:"function_name" json:"function_name"`
	FunctionVersion string `mapstructure:"function_version" yaml:"function_version" json:"function_version"`
	SecretName      string `mapstructure:"secret_name" yaml:"secret_name" json:"secret_name"`
	DatabaseName    string `mapstructure:"database_name" yaml:"database_name" json:"database_name"`
}

type Transport struct {
	MaxTries        uint          `mapstructure:"max_tries" yaml:"max_tries" json:"max_tries" validate:"gte=1"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval" json:"initial_interval" validate:"gt=0"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval" json:"max_interval" validate:"gtefield=InitialInterval"`
	Breaker         Breaker       `mapstructure:"breaker" yaml:"breaker" json:"breaker"`
}

type Breaker struct {
	MaxRequests      uint32        `mapstructure:"max_requests" yaml:"max_requests" json:"max_requests" validate:"gte=1"`
	Interval         time.Duration `mapstructure:"interval" yaml:"interval" json:"interval" validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `mapstructure:"failure_threshold" yaml:"failure_threshold" json:"failure_threshold" validate:"gte=1"`
}

//nolint:gochecknoglobals
var defaults = map[string]interface{}{
	"log_level":                           "info",
	"secret_store.provider":               ProviderSecretsManager,
	"secret_store.vault.app_role_mount":   "approle",
	"secret_store.vault.mount":            "secret",
	"postgres.port":                       DefaultPostgresPort,
	"postgres.maintenance_db":             "postgres",
	"postgres.ssl_mode":                   "prefer",
	"postgres.connect_timeout":            "10s",
	"transport.max_tries":                 5,
	"transport.initial_interval":          "1s",
	"transport.max_interval":              "30s",
	"transport.breaker.max_requests":      1,
	"transport.breaker.interval":          "60s",
	"transport.breaker.timeout":           "30s",
	"transport.breaker.failure_threshold": 5,
}

// keys without a default still need an explicit binding to be read from the environment
//
//nolint:gochecknoglobals
var envOnlyKeys = []string{
	"id",
	"secret_store.secrets_manager.region",
	"secret_store.secrets_manager.endpoint",
	"secret_store.vault.address",
	"secret_store.vault.token",
	"secret_store.vault.app_role",
	"secret_store.vault.app_secret",
	"secret_store.vault.tls_skip_verify",
	"secret_store.vault.tls_cert_file",
	"request.stack_id",
	"request.function_name",
	"request.function_version",
	"request.secret_name",
	"request.database_name",
}

// NewConfig decodes and validates the configuration held by the global viper
// instance. Defaults are applied for every optional key.
func NewConfig() (*Config, error) {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
	for _, key := range envOnlyKeys {
		if err := viper.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterStructValidation(secretStoreStructLevelValidation, SecretStore{})

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, describeFieldError(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, ", "))
}

func secretStoreStructLevelValidation(sl validator.StructLevel) {
	store := sl.Current().Interface().(SecretStore)
	if store.Provider != ProviderVault {
		return
	}

	if store.Vault.Address == "" {
		sl.ReportError(store.Vault.Address, "Vault.Address", "Address", "required", "")
	}
	if store.Vault.Token == "" && store.Vault.AppRoleID == "" {
		sl.ReportError(store.Vault.Token, "Vault.Token", "Token", "required_without", "AppRoleID")
	}
	if store.Vault.UsesAppRole() && store.Vault.AppRoleSecret == "" {
		sl.ReportError(store.Vault.AppRoleSecret, "Vault.AppRoleSecret", "AppRoleSecret", "required_with", "AppRoleID")
	}
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not set", field, fe.Param())
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	redact := func(s string) string {
		if s == "" {
			return ""
		}
		return redactedValue
	}
	c.SecretStore.Vault.Token = redact(c.SecretStore.Vault.Token)
	c.SecretStore.Vault.AppRoleSecret = redact(c.SecretStore.Vault.AppRoleSecret)
	return c
}
