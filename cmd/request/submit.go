package request

import (
	"errors"

	"github.com/spf13/cobra"

	"db-initializer/internal/core"
	"db-initializer/internal/models"
	"db-initializer/pkg/log"
)

var ErrCallbackFailed = errors.New("callback returned an error result")

var actionFlag string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit one lifecycle request to the initializer function",
	Long: `Build the request for one lifecycle phase and invoke the initializer function
synchronously. Transport failures are retried with exponential backoff behind a
circuit breaker; an ERROR result from the function is printed and not retried.`,
	Example: `  db-initializer request submit --action onCreate --config config.yaml`,
	RunE:    runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&actionFlag, "action", "a", models.ActionCreate.String(), "lifecycle phase (onCreate|onUpdate|onDelete)")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	action, err := models.ParseAction(actionFlag)
	if err != nil {
		return err
	}

	lifecycle, err := lifecycleFromConfig()
	if err != nil {
		return err
	}
	descriptor, err := lifecycle.ForAction(action)
	if err != nil {
		return err
	}

	logger := log.Component("request_submit")

	appConfig, err := core.LoadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return err
	}
	logger = log.Component("request_submit")

	invoker, err := core.NewWiring(appConfig).InitInvoker(cmd.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Error wiring invoker")
		return err
	}

	result, err := invoker.Submit(cmd.Context(), descriptor)
	if err != nil {
		return err
	}
	if err := writeResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.IsOK() {
		return ErrCallbackFailed
	}
	return nil
}
