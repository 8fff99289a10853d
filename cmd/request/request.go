package request

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"db-initializer/internal/models"
	builder "db-initializer/internal/request"
)

var formatFlag string

var RequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Build and submit provisioning requests",
	Long: `Build the onCreate, onUpdate and onDelete invocation requests for a database
and optionally submit one of them to the initializer function.`,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Print the SDK calls for every lifecycle phase",
	Example: `  db-initializer request build \
    --stack-id LabelingStack \
    --function-name LabelingStack-ResInitLabelingStack \
    --function-version 3 \
    --secret-name DatabaseSecret \
    --database-name label_studio`,
	RunE: runBuild,
}

type requestFlag struct {
	name  string
	key   string
	usage string
}

//nolint:gochecknoglobals
var requestFlags = []requestFlag{
	{name: "stack-id", key: "request.stack_id", usage: "stack id prefixing the physical resource id"},
	{name: "function-name", key: "request.function_name", usage: "initializer function name or ARN"},
	{name: "function-version", key: "request.function_version", usage: "initializer function version"},
	{name: "secret-name", key: "request.secret_name", usage: "secret holding the database credentials"},
	{name: "database-name", key: "request.database_name", usage: "database to create"},
}

func init() {
	for _, f := range requestFlags {
		RequestCmd.PersistentFlags().String(f.name, "", f.usage)
		_ = viper.BindPFlag(f.key, RequestCmd.PersistentFlags().Lookup(f.name))
	}

	buildCmd.Flags().StringVarP(&formatFlag, "format", "f", "json", "output format (yaml|json)")

	RequestCmd.AddCommand(buildCmd)
	RequestCmd.AddCommand(submitCmd)
}

// lifecycleFromConfig builds the descriptors from flags, environment and the
// config file, in that order of precedence.
func lifecycleFromConfig() (builder.Lifecycle, error) {
	values := make(map[string]string, len(requestFlags))
	for _, f := range requestFlags {
		value := viper.GetString(f.key)
		if value == "" {
			return builder.Lifecycle{}, fmt.Errorf("--%s (or %s) is required", f.name, f.key)
		}
		values[f.name] = value
	}

	return builder.BuildLifecycle(
		values["secret-name"],
		values["database-name"],
		values["function-name"],
		values["function-version"],
		values["stack-id"],
	), nil
}

func runBuild(cmd *cobra.Command, _ []string) error {
	lifecycle, err := lifecycleFromConfig()
	if err != nil {
		return err
	}
	return writeSDKCalls(cmd.OutOrStdout(), lifecycle, formatFlag)
}

type sdkCalls struct {
	OnCreate builder.SDKCall `json:"onCreate" yaml:"onCreate"`
	OnUpdate builder.SDKCall `json:"onUpdate" yaml:"onUpdate"`
	OnDelete builder.SDKCall `json:"onDelete" yaml:"onDelete"`
}

func writeSDKCalls(w io.Writer, lifecycle builder.Lifecycle, format string) error {
	calls := sdkCalls{
		OnCreate: builder.NewSDKCall(lifecycle.OnCreate),
		OnUpdate: builder.NewSDKCall(lifecycle.OnUpdate),
		OnDelete: builder.NewSDKCall(lifecycle.OnDelete),
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(calls); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(calls)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", format)
	}
}

func writeResult(w io.Writer, result *models.CallbackResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
