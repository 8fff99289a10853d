// Package secretstore fetches database credentials by secret identifier.
package secretstore

import (
	"context"

	"db-initializer/internal/models"
)

// Fetcher resolves a secret identifier to a credential record. Implementations
// are built once per process and reused across invocations.
type Fetcher interface {
	Fetch(ctx context.Context, secretID string) (*models.SecretRecord, error)
}
