package secret

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"db-initializer/internal/core"
	"db-initializer/internal/models"
	"db-initializer/pkg/log"
)

var SecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Read database credentials from the configured secret store",
}

var envCmd = &cobra.Command{
	Use:   "env <secret-id>",
	Short: "Print shell exports for the database user and password",
	Long: `Fetch the credential document and print
  export POSTGRES_USER=<username> POSTGRES_PASSWORD=<password>
for a container entrypoint to eval. Values are single-quoted for the shell.`,
	Example: `  eval "$(db-initializer secret env DatabaseSecret)"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runEnv,
}

func init() {
	SecretCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	logger := log.Component("secret_env")

	appConfig, err := core.LoadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return err
	}
	logger = log.Component("secret_env")

	fetcher, err := core.NewWiring(appConfig).InitSecretFetcher(cmd.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Error wiring secret store")
		return err
	}

	record, err := fetcher.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeExports(cmd.OutOrStdout(), record)
}

func writeExports(w io.Writer, record *models.SecretRecord) error {
	_, err := fmt.Fprintf(w, "export POSTGRES_USER=%s POSTGRES_PASSWORD=%s\n",
		shellQuote(record.Username), shellQuote(record.Password))
	return err
}

// shellQuote wraps s in single quotes, closing and reopening around embedded ones.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
