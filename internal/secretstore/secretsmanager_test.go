package secretstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"db-initializer/internal/models"
	"db-initializer/testutil/testbuilder"
)

const rdsSecret = `{"engine":"postgres","host":"db.internal","port":5432,"username":"admin","password":"hunter2","dbInstanceIdentifier":"labeling"}`

func secretIDMatcher(id string) interface{} {
	return mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return aws.ToString(in.SecretId) == id
	})
}

func TestSecretsManagerFetcher(t *testing.T) {
	t.Run("parses a secret string", func(t *testing.T) {
		client := new(testbuilder.MockSecretsManagerClient)
		client.On("GetSecretValue", mock.Anything, secretIDMatcher("DatabaseSecret")).
			Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(rdsSecret)}, nil)

		record, err := NewSecretsManagerFetcher(client).Fetch(context.Background(), "DatabaseSecret")

		require.NoError(t, err)
		assert.Equal(t, &models.SecretRecord{Host: "db.internal", Port: 5432, Username: "admin", Password: "hunter2"}, record)
		client.AssertNumberOfCalls(t, "GetSecretValue", 1)
	})

	t.Run("parses a binary secret", func(t *testing.T) {
		client := new(testbuilder.MockSecretsManagerClient)
		client.On("GetSecretValue", mock.Anything, mock.Anything).
			Return(&secretsmanager.GetSecretValueOutput{SecretBinary: []byte(rdsSecret)}, nil)

		record, err := NewSecretsManagerFetcher(client).Fetch(context.Background(), "DatabaseSecret")

		require.NoError(t, err)
		assert.Equal(t, "admin", record.Username)
	})

	t.Run("empty secret id makes no call", func(t *testing.T) {
		client := new(testbuilder.MockSecretsManagerClient)

		_, err := NewSecretsManagerFetcher(client).Fetch(context.Background(), "")

		require.ErrorIs(t, err, ErrInvalidSecretID)
		client.AssertNotCalled(t, "GetSecretValue", mock.Anything, mock.Anything)
	})

	t.Run("secret without a value is malformed", func(t *testing.T) {
		client := new(testbuilder.MockSecretsManagerClient)
		client.On("GetSecretValue", mock.Anything, mock.Anything).
			Return(&secretsmanager.GetSecretValueOutput{}, nil)

		_, err := NewSecretsManagerFetcher(client).Fetch(context.Background(), "DatabaseSecret")

		require.ErrorIs(t, err, ErrMalformedSecret)
	})

	t.Run("invalid document is malformed and does not echo the value", func(t *testing.T) {
		client := new(testbuilder.MockSecretsManagerClient)
		client.On("GetSecretValue", mock.Anything, mock.Anything).
			Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"host":"h","password":"hunter2"}`)}, nil)

		_, err := NewSecretsManagerFetcher(client).Fetch(context.Background(), "DatabaseSecret")

		require.ErrorIs(t, err, ErrMalformedSecret)
		assert.Contains(t, err.Error(), "username")
		assert.NotContains(t, err.Error(), "hunter2")
	})

	t.Run("classifies service errors", func(t *testing.T) {
		tests := []struct {
			name     string
			err      error
			expected error
		}{
			{
				name:     "resource not found",
				err:      &types.ResourceNotFoundException{Message: aws.String("Secrets Manager can't find the specified secret.")},
				expected: ErrSecretNotFound,
			},
			{
				name:     "access denied",
				err:      &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"},
				expected: ErrAccessDenied,
			},
			{
				name:     "decryption failure",
				err:      &types.DecryptionFailure{Message: aws.String("kms denied")},
				expected: ErrAccessDenied,
			},
			{
				name:     "internal service error",
				err:      &types.InternalServiceError{Message: aws.String("try again")},
				expected: ErrStoreUnavailable,
			},
			{
				name:     "network failure",
				err:      errors.New("dial tcp: i/o timeout"),
				expected: ErrStoreUnavailable,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				client := new(testbuilder.MockSecretsManagerClient)
				client.On("GetSecretValue", mock.Anything, mock.Anything).Return(nil, tt.err)

				record, err := NewSecretsManagerFetcher(client).Fetch(context.Background(), "DatabaseSecret")

				assert.Nil(t, record)
				require.ErrorIs(t, err, tt.expected)
				assert.ErrorIs(t, err, tt.err, "the service error stays in the chain")
			})
		}
	})
}
