package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"db-initializer/internal/models"
	"db-initializer/pkg/log"
)

const accessDeniedCode = "AccessDeniedException"

// SecretsManagerAPI is the subset of the Secrets Manager client the fetcher uses.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsManagerFetcher struct {
	client SecretsManagerAPI
	logger zerolog.Logger
}

func NewSecretsManagerFetcher(client SecretsManagerAPI) *SecretsManagerFetcher {
	return &SecretsManagerFetcher{
		client: client,
		logger: log.Component("secrets_manager_fetcher"),
	}
}

func (f *SecretsManagerFetcher) Fetch(ctx context.Context, secretID string) (*models.SecretRecord, error) {
	logger := f.logger.With().Str("secret_id", secretID).Logger()
	if secretID == "" {
		return nil, ErrInvalidSecretID
	}

	logger.Debug().Msg("Fetching secret value")
	out, err := f.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		classified := classifySecretsManagerError(err)
		logger.Error().Err(err).Msg("Failed to fetch secret value")
		return nil, fmt.Errorf("failed to fetch secret %s: %w", secretID, classified)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(aws.ToString(out.SecretString))
	case len(out.SecretBinary) > 0:
		raw = out.SecretBinary
	default:
		logger.Error().Msg("Secret has neither a string nor a binary value")
		return nil, fmt.Errorf("%w: secret %s has no value", ErrMalformedSecret, secretID)
	}

	record, err := ParseSecret(raw)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse secret value")
		return nil, err
	}

	logger.Info().Object("secret", record).Msg("Fetched secret value")
	return record, nil
}

func classifySecretsManagerError(err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", ErrSecretNotFound, err)
	}

	var decryptionFailure *types.DecryptionFailure
	if errors.As(err, &decryptionFailure) {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == accessDeniedCode {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}

	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
