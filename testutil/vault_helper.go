package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/exec"
	"github.com/testcontainers/testcontainers-go/modules/vault"
	"github.com/testcontainers/testcontainers-go/wait"

	"db-initializer/internal/models"
	"db-initializer/pkg/converter"
)

const (
	VaultRootToken = "root-token"
	VaultKVMount   = "databases"
)

type VaultHelper struct {
	container *vault.VaultContainer
	Address   string
	Token     string
}

// NewVaultContainer starts a dev-mode Vault with a KV v2 mount at VaultKVMount.
func NewVaultContainer(t require.TestingT, ctx context.Context) (*VaultHelper, error) {
	hostPort, err := getPortManager().reservePort()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve port: %w", err)
	}

	vaultContainer, err := vault.Run(ctx,
		"hashicorp/vault:1.13.0",
		vault.WithToken(VaultRootToken),
		vault.WithInitCommand(fmt.Sprintf("secrets enable -path=%s -version=2 kv", VaultKVMount)),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/v1/sys/health").
				WithPort("8200/tcp").
				WithStartupTimeout(30*time.Second),
			wait.ForExposedPort().WithStartupTimeout(1*time.Minute)),
		testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) {
			hostConfig.PortBindings = nat.PortMap{
				nat.Port("8200/tcp"): []nat.PortBinding{{HostPort: strconv.Itoa(hostPort)}},
			}
		}),
	)
	require.NoError(t, err, "Failed to start Vault container")

	address, err := vaultContainer.HttpHostAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get vault address: %w", err)
	}

	return &VaultHelper{
		container: vaultContainer,
		Address:   address,
		Token:     VaultRootToken,
	}, nil
}

func (v *VaultHelper) Terminate(ctx context.Context) error {
	if v.container != nil {
		return v.container.Terminate(ctx)
	}
	return nil
}

// EnableAppRoleAuth enables the AppRole authentication method in Vault.
func (v *VaultHelper) EnableAppRoleAuth(ctx context.Context) error {
	if _, err := v.ExecuteVaultCommand(ctx, "vault auth enable approle"); err != nil {
		return fmt.Errorf("failed to enable AppRole auth: %w", err)
	}
	return nil
}

// CreateReadOnlyAppRole creates an AppRole allowed to read secrets of the
// given mount and returns its role id and secret id.
func (v *VaultHelper) CreateReadOnlyAppRole(ctx context.Context, approle, mount string) (string, string, error) {
	policyName := "read-" + mount
	policy := strings.Join([]string{
		`path "auth/token/lookup-self" { capabilities = ["read"] }`,
		fmt.Sprintf(`path "%s/data/*" { capabilities = ["read"] }`, mount),
	}, "\n")

	if _, err := v.ExecuteVaultCommand(ctx, fmt.Sprintf("vault policy write %s -<<EOF\n%s\nEOF", policyName, policy)); err != nil {
		return "", "", err
	}
	if _, err := v.ExecuteVaultCommand(ctx, fmt.Sprintf("vault write auth/approle/role/%s policies=%s", approle, policyName)); err != nil {
		return "", "", fmt.Errorf("failed to create AppRole: %w", err)
	}

	roleID, err := v.ExecuteVaultCommand(ctx, fmt.Sprintf("vault read -field=role_id auth/approle/role/%s/role-id", approle))
	if err != nil {
		return "", "", fmt.Errorf("failed to read AppRole ID: %w", err)
	}
	secretID, err := v.ExecuteVaultCommand(ctx, fmt.Sprintf("vault write -force -field=secret_id auth/approle/role/%s/secret-id", approle))
	if err != nil {
		return "", "", fmt.Errorf("failed to read AppRole secret: %w", err)
	}
	return strings.TrimSpace(roleID), strings.TrimSpace(secretID), nil
}

// SetTokenTTL sets the token TTL and max TTL for the specified AppRole.
func (v *VaultHelper) SetTokenTTL(ctx context.Context, approle, ttl, maxTTL string) (string, error) {
	cmd := fmt.Sprintf("vault write auth/approle/role/%s token_ttl=%s token_max_ttl=%s", approle, ttl, maxTTL)
	return v.ExecuteVaultCommand(ctx, cmd)
}

// WriteDatabaseSecret stores a credential document in the layout the
// initializer reads.
func (v *VaultHelper) WriteDatabaseSecret(ctx context.Context, mount, path string, record *models.SecretRecord) error {
	return v.WriteSecret(ctx, mount, path, map[string]string{
		"host":     record.Host,
		"port":     strconv.Itoa(int(record.Port)),
		"username": record.Username,
		"password": record.Password,
	})
}

// WriteSecret writes a secret to the specified path in the KV store.
func (v *VaultHelper) WriteSecret(ctx context.Context, mount, path string, data map[string]string) error {
	cmd := fmt.Sprintf("vault kv put %s/%s %s", mount, path, formatDataForVault(data))
	if _, err := v.ExecuteVaultCommand(ctx, cmd); err != nil {
		return fmt.Errorf("failed to write secret %s/%s: %w", mount, path, err)
	}
	return nil
}

// ExecuteVaultCommand executes a command in the Vault container and returns the output.
// It uses `sh -c` to allow heredocs and redirection.
func (v *VaultHelper) ExecuteVaultCommand(ctx context.Context, command string) (string, error) {
	exitCode, output, err := v.container.Exec(ctx, []string{"sh", "-c", command}, exec.Multiplexed())
	if err != nil {
		return "", fmt.Errorf("failed to execute command %q in Vault container: %w", command, err)
	}

	byteOutput, _ := io.ReadAll(output)
	if os.Getenv("DEBUG_TESTCONTAINERS") != "" {
		fmt.Printf("Command: %s\nOutput: %s\n", command, string(byteOutput))
	}
	if exitCode != 0 {
		return string(byteOutput), fmt.Errorf("command %q exited with %d", command, exitCode)
	}
	return string(byteOutput), nil
}

func formatDataForVault(data map[string]string) string {
	formatted := make([]string, 0, len(data))
	for _, key := range converter.SortedKeys(data) {
		formatted = append(formatted, fmt.Sprintf("%s=%q", key, data[key]))
	}
	return strings.Join(formatted, " ")
}
