package invoke

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"db-initializer/internal/core"
	"db-initializer/internal/models"
	"db-initializer/pkg/log"
)

var ErrCallbackFailed = errors.New("callback returned an error result")

var eventFile string

var InvokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Run the lifecycle callback once against a local event",
	Long: `Decode an invocation payload of the form
{"params":{"secretName":"...","databaseName":"...","action":"onCreate"}}
run the callback once and print its result as JSON. The command exits non-zero
when the result status is ERROR.`,
	Example: `  db-initializer invoke --event event.json
  echo '{"params":{"secretName":"DatabaseSecret","databaseName":"label_studio","action":"onCreate"}}' | db-initializer invoke --event -`,
	RunE: runInvoke,
}

func init() {
	InvokeCmd.Flags().StringVarP(&eventFile, "event", "e", "-", "path to the event payload, - for stdin")
}

func runInvoke(cmd *cobra.Command, _ []string) error {
	raw, err := readEvent(cmd.InOrStdin(), eventFile)
	if err != nil {
		return err
	}

	logger := log.Component("invoke")

	appConfig, err := core.LoadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return err
	}
	logger = log.Component("invoke")

	handler, err := core.NewWiring(appConfig).InitHandler(cmd.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Error wiring handler")
		return err
	}

	result, _ := handler.HandleRaw(cmd.Context(), raw)
	if err := writeResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.IsOK() {
		return ErrCallbackFailed
	}
	return nil
}

func readEvent(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	if path == "" || path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	return json.RawMessage(raw), nil
}

func writeResult(w io.Writer, result models.CallbackResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
