package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"

	"db-initializer/internal/config"
	"db-initializer/internal/models"
	"db-initializer/pkg/converter"
	"db-initializer/pkg/log"
)

const minTokenTTL = 5 * time.Minute

// VaultFetcher reads credential documents from a KV v2 mount.
type VaultFetcher struct {
	client *api.Client
	config config.Vault
	mu     sync.Mutex
}

func NewVaultFetcher(ctx context.Context, cfg config.Vault) (*VaultFetcher, error) {
	if cfg.Token == "" && !cfg.UsesAppRole() {
		return nil, ErrMissingCredential
	}

	vaultCfg := api.DefaultConfig()
	vaultCfg.Address = cfg.Address
	if err := vaultCfg.ConfigureTLS(&api.TLSConfig{
		Insecure: cfg.TLSSkipVerify,
		CACert:   cfg.TLSCertFile,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure Vault TLS: %w", err)
	}

	client, err := api.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	f := &VaultFetcher{client: client, config: cfg}
	if cfg.UsesAppRole() {
		if err := f.authenticate(ctx); err != nil {
			return nil, err
		}
	} else {
		client.SetToken(cfg.Token)
	}
	return f, nil
}

// Fetch reads the secret stored at secretID under the configured mount. A
// secretID of the form "mount/path" is not split; the mount always comes from
// configuration.
func (f *VaultFetcher) Fetch(ctx context.Context, secretID string) (*models.SecretRecord, error) {
	secretID = strings.Trim(secretID, "/")
	if secretID == "" {
		return nil, ErrInvalidSecretID
	}

	if err := f.ensureValidToken(ctx); err != nil {
		f.decorateLog(log.Logger.Error, "fetch").Err(err).Msg("Failed to ensure valid token")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	f.decorateLog(log.Logger.Debug, "fetch").Str("secret_id", secretID).Msg("Reading secret from Vault")
	kv, err := f.client.KVv2(f.config.Mount).Get(ctx, secretID)
	if err != nil {
		f.decorateLog(log.Logger.Error, "fetch").Str("secret_id", secretID).Err(err).Msg("Failed to read secret")
		return nil, fmt.Errorf("failed to fetch secret %s: %w", secretID, classifyVaultError(err))
	}
	if kv == nil || kv.Data == nil {
		return nil, fmt.Errorf("%w: secret %s has no data", ErrMalformedSecret, secretID)
	}

	raw, err := json.Marshal(kv.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSecret, err)
	}

	record, err := ParseSecret(raw)
	if err != nil {
		f.decorateLog(log.Logger.Error, "fetch").
			Str("secret_id", secretID).
			Strs("fields", converter.SortedKeys(kv.Data)).
			Err(err).
			Msg("Failed to parse secret")
		return nil, err
	}

	f.decorateLog(log.Logger.Info, "fetch").
		Str("secret_id", secretID).
		Object("secret", record).
		Msg("Fetched secret from Vault")
	return record, nil
}

// authenticate logs in with AppRole and sets the client token on success.
func (f *VaultFetcher) authenticate(ctx context.Context) error {
	f.decorateLog(log.Logger.Info, "authenticate").Msg("Authenticating with Vault")

	secret, err := f.client.Logical().WriteWithContext(ctx, "auth/"+f.config.AppRoleMount+"/login", map[string]interface{}{
		"role_id":   f.config.AppRoleID,
		"secret_id": f.config.AppRoleSecret,
	})
	if err != nil {
		f.decorateLog(log.Logger.Error, "authenticate").Err(err).Msg("AppRole login failed")
		return fmt.Errorf("failed to authenticate with role ID: %s at mount %s. (%w)", f.config.AppRoleID, f.config.AppRoleMount, classifyLoginError(err))
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return fmt.Errorf("%w: AppRole login returned no token", ErrAccessDenied)
	}

	f.client.SetToken(secret.Auth.ClientToken)
	return nil
}

// ensureValidToken re-authenticates when the token is unreadable or close to
// expiry. Static tokens are never renewed.
func (f *VaultFetcher) ensureValidToken(ctx context.Context) error {
	if !f.config.UsesAppRole() {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	reauthenticate := func(msg string, ttl time.Duration, err error) error {
		f.decorateLog(log.Logger.Warn, "ensure_valid_token").
			Dur("ttl", ttl).
			Err(err).
			Msg(msg)
		return f.authenticate(ctx)
	}

	secret, err := f.client.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil {
		return reauthenticate("Failed to look up token, re-authenticating", 0, err)
	}

	ttl, err := secret.TokenTTL()
	if err != nil {
		return reauthenticate("Could not parse token TTL, re-authenticating", 0, err)
	}
	if ttl < minTokenTTL {
		return reauthenticate("Token TTL is low, re-authenticating", ttl, nil)
	}

	f.decorateLog(log.Logger.Debug, "ensure_valid_token").Dur("ttl", ttl).Msg("Token is valid")
	return nil
}

func classifyVaultError(err error) error {
	if errors.Is(err, api.ErrSecretNotFound) {
		return fmt.Errorf("%w: %w", ErrSecretNotFound, err)
	}

	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrSecretNotFound, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// classifyLoginError treats rejected credentials as access denied; Vault
// answers an invalid role or secret id with 400.
func classifyLoginError(err error) error {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return classifyVaultError(err)
}

func (f *VaultFetcher) decorateLog(eventFactory func() *zerolog.Event, event string) *zerolog.Event {
	return eventFactory().
		Str("component", "vault_fetcher").
		Str("vault_address", f.config.Address).
		Str("mount", f.config.Mount).
		Str("event", event)
}
