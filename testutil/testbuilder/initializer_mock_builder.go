package testbuilder

import (
	"github.com/stretchr/testify/mock"

	"db-initializer/internal/models"
)

const (
	FetcherFetch     = "Fetch"
	ConnectorConnect = "Connect"
	AdminConnExec    = "Exec"
	AdminConnClose   = "Close"
)

// Fluent interface for building initializer test scenarios
type (
	MockSecretStage interface {
		WithSecret(secret *models.SecretRecord) MockDatabaseStage
		WithFetchError(err error) MockBuildableStage
		WithFetchPanic(value any) MockBuildableStage
	}

	MockDatabaseStage interface {
		WithConnectError(err error) MockBuildableStage
		WithExecError(err error) MockDatabaseStage
		WithCloseError(err error) MockDatabaseStage
		SwitchToBuildableStage() MockBuildableStage
	}

	MockBuildableStage interface {
		Build() (*mockFetcher, *mockConnector, *mockAdminConn)
	}
)

// initializerMockBuilder wires a fetcher, a connector and the connection the
// connector hands out.
type initializerMockBuilder struct {
	secretName string
	secret     *models.SecretRecord

	// operation:error
	// e.g. "Fetch": secretstore.ErrSecretNotFound
	errors     map[string]error
	fetchPanic any
}

func NewInitializerMockBuilder(secretName string) MockSecretStage {
	return &initializerMockBuilder{
		secretName: secretName,
		errors:     make(map[string]error),
	}
}

func (b *initializerMockBuilder) WithSecret(secret *models.SecretRecord) MockDatabaseStage {
	b.secret = secret
	return b
}

func (b *initializerMockBuilder) WithFetchError(err error) MockBuildableStage {
	b.errors[FetcherFetch] = err
	return b
}

func (b *initializerMockBuilder) WithFetchPanic(value any) MockBuildableStage {
	b.fetchPanic = value
	return b
}

func (b *initializerMockBuilder) WithConnectError(err error) MockBuildableStage {
	b.errors[ConnectorConnect] = err
	return b
}

func (b *initializerMockBuilder) WithExecError(err error) MockDatabaseStage {
	b.errors[AdminConnExec] = err
	return b
}

func (b *initializerMockBuilder) WithCloseError(err error) MockDatabaseStage {
	b.errors[AdminConnClose] = err
	return b
}

func (b *initializerMockBuilder) SwitchToBuildableStage() MockBuildableStage {
	return b
}

func (b *initializerMockBuilder) Build() (*mockFetcher, *mockConnector, *mockAdminConn) {
	fetcher := new(mockFetcher)
	connector := new(mockConnector)
	conn := new(mockAdminConn)

	// Setup Fetch mock
	fetchCall := fetcher.On(FetcherFetch, mock.Anything, b.secretName)
	switch {
	case b.fetchPanic != nil:
		fetchCall.Run(func(mock.Arguments) { panic(b.fetchPanic) }).Return(nil, nil)
	case b.errors[FetcherFetch] != nil:
		fetchCall.Return(nil, b.errors[FetcherFetch])
	default:
		fetchCall.Return(b.secret, nil)
	}

	// Setup Connect mock
	if connectErr, hasError := b.errors[ConnectorConnect]; hasError {
		connector.On(ConnectorConnect, mock.Anything, mock.Anything).Return(nil, connectErr)
	} else {
		connector.On(ConnectorConnect, mock.Anything, mock.Anything).Return(conn, nil)
	}

	// Setup connection mocks
	conn.On(AdminConnExec, mock.Anything, mock.Anything).Return(b.errors[AdminConnExec])
	conn.On(AdminConnClose).Return(b.errors[AdminConnClose])

	return fetcher, connector, conn
}
