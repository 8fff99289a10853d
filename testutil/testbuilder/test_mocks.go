package testbuilder

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/mock"

	"db-initializer/internal/models"
	"db-initializer/pkg/db"
)

// ********
//
// mockFetcher is a mock implementation of the secretstore.Fetcher interface
//
// ********
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, secretID string) (*models.SecretRecord, error) {
	args := m.Called(ctx, secretID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SecretRecord), args.Error(1)
}

// ********
//
// mockConnector is a mock implementation of the db.Connector interface
//
// ********
type mockConnector struct {
	mock.Mock
}

func (m *mockConnector) Connect(ctx context.Context, info db.ConnInfo) (db.AdminConn, error) {
	args := m.Called(ctx, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(db.AdminConn), args.Error(1)
}

// ********
//
// mockAdminConn is a mock implementation of the db.AdminConn interface
//
// ********
type mockAdminConn struct {
	mock.Mock
}

func (m *mockAdminConn) Exec(ctx context.Context, statement string) error {
	args := m.Called(ctx, statement)
	return args.Error(0)
}

func (m *mockAdminConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ********
//
// MockSecretsManagerClient is a mock implementation of secretstore.SecretsManagerAPI
//
// ********
type MockSecretsManagerClient struct {
	mock.Mock
}

func (m *MockSecretsManagerClient) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsmanager.GetSecretValueOutput), args.Error(1)
}

// ********
//
// MockLambdaClient is a mock implementation of transport.LambdaAPI
//
// ********
type MockLambdaClient struct {
	mock.Mock
}

func (m *MockLambdaClient) Invoke(
	ctx context.Context,
	params *lambda.InvokeInput,
	optFns ...func(*lambda.Options),
) (*lambda.InvokeOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lambda.InvokeOutput), args.Error(1)
}
