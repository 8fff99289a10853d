package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"

	"db-initializer/internal/config"
	"db-initializer/internal/initializer"
	"db-initializer/internal/secretstore"
	"db-initializer/internal/transport"
	"db-initializer/pkg/db"
	"db-initializer/pkg/log"
)

// LoadConfig decodes the configuration and initializes the global logger from it.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	log.Init(cfg.ID, cfg.LogLevel)
	return cfg, nil
}

type Wiring struct {
	config *config.Config
	logger zerolog.Logger

	awsOnce   sync.Once
	awsConfig aws.Config
	awsErr    error
}

func NewWiring(cfg *config.Config) *Wiring {
	return &Wiring{
		config: cfg,
		logger: log.Component("wiring"),
	}
}

func (w *Wiring) GetConfig() *config.Config {
	return w.config
}

// LoadAWSConfig resolves credentials and region once per process.
func (w *Wiring) LoadAWSConfig(ctx context.Context) (aws.Config, error) {
	w.awsOnce.Do(func() {
		w.awsConfig, w.awsErr = awsconfig.LoadDefaultConfig(ctx)
		if w.awsErr != nil {
			w.logger.Error().Err(w.awsErr).Msg("Failed to load AWS configuration")
			w.awsErr = fmt.Errorf("failed to load AWS configuration: %w", w.awsErr)
		}
	})
	return w.awsConfig, w.awsErr
}

func (w *Wiring) InitSecretFetcher(ctx context.Context) (secretstore.Fetcher, error) {
	store := w.config.SecretStore
	switch store.Provider {
	case config.ProviderSecretsManager:
		awsCfg, err := w.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if store.SecretsManager.Region != "" {
				o.Region = store.SecretsManager.Region
			}
			if store.SecretsManager.Endpoint != "" {
				o.BaseEndpoint = aws.String(store.SecretsManager.Endpoint)
			}
		})
		return secretstore.NewSecretsManagerFetcher(client), nil
	case config.ProviderVault:
		fetcher, err := secretstore.NewVaultFetcher(ctx, store.Vault)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to create Vault fetcher")
			return nil, err
		}
		return fetcher, nil
	default:
		return nil, fmt.Errorf("%w: %q", secretstore.ErrUnsupportedStore, store.Provider)
	}
}

func (w *Wiring) InitHandler(ctx context.Context) (*initializer.Handler, error) {
	fetcher, err := w.InitSecretFetcher(ctx)
	if err != nil {
		return nil, err
	}

	pg := w.config.Postgres
	return initializer.NewHandler(fetcher, db.NewPostgresConnector(), initializer.Options{
		Port:           pg.Port,
		MaintenanceDB:  pg.MaintenanceDB,
		SSLMode:        pg.SSLMode,
		ConnectTimeout: pg.ConnectTimeout,
	}), nil
}

func (w *Wiring) InitInvoker(ctx context.Context) (*transport.LambdaInvoker, error) {
	awsCfg, err := w.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return transport.NewLambdaInvoker(lambda.NewFromConfig(awsCfg), w.config.Transport), nil
}
