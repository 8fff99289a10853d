package secretstore

import (
	"errors"
)

var (
	ErrSecretNotFound    = errors.New("secret not found")
	ErrAccessDenied      = errors.New("access to secret denied")
	ErrMalformedSecret   = errors.New("secret value is malformed")
	ErrStoreUnavailable  = errors.New("secret store is unavailable")
	ErrInvalidSecretID   = errors.New("secret id cannot be empty")
	ErrUnsupportedStore  = errors.New("unsupported secret store provider")
	ErrMissingCredential = errors.New("no credentials configured for secret store")
)
