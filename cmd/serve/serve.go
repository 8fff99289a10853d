package serve

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"db-initializer/internal/core"
	"db-initializer/pkg/log"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lifecycle callback inside the Lambda runtime",
	Long: `Start the Lambda runtime loop and handle one lifecycle event per invocation.
Only onCreate creates the database; onUpdate and onDelete are acknowledged
with {"status":"OK","results":"Skip"}.`,
	Example: `  # the function image runs this by default when AWS_LAMBDA_RUNTIME_API is set
  db-initializer serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := log.Component("serve")

	appConfig, err := core.LoadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return err
	}
	logger = log.Component("serve")

	handler, err := core.NewWiring(appConfig).InitHandler(cmd.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Error wiring handler")
		return err
	}

	logger.Info().Str("secret_store", appConfig.SecretStore.Provider).Msg("Starting Lambda runtime")
	lambda.StartWithOptions(handler.HandleRaw, lambda.WithContext(cmd.Context()))
	return nil
}
