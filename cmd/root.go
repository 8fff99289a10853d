package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-initializer/cmd/configprint"
	"db-initializer/cmd/invoke"
	"db-initializer/cmd/request"
	"db-initializer/cmd/secret"
	"db-initializer/cmd/serve"
	"db-initializer/cmd/version"
	"db-initializer/pkg/log"
)

var cfgFile string

const (
	CFG_FLAG_NAME = "config"

	lambdaRuntimeEnv = "AWS_LAMBDA_RUNTIME_API"
)

var RootCmd = &cobra.Command{
	Use:   "db-initializer",
	Short: "Creates the application database when its stack is provisioned",
	Long: `db-initializer builds the invocation requests a provisioning engine sends on
create, update and delete of a database stack, and runs the callback that
creates the application database on create.

Inside the Lambda runtime it serves the callback; locally it can build, submit
and replay requests.`,
	SilenceUsage: true,
}

func SetVersionInfo(v, c, d, b string) {
	version.SetVersionInfo(v, c, d, b)
}

func Execute() {
	// the function image has no arguments; default to serving the callback
	if len(os.Args) == 1 && os.Getenv(lambdaRuntimeEnv) != "" {
		RootCmd.SetArgs([]string{serve.ServeCmd.Name()})
	}

	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVarP(&cfgFile, CFG_FLAG_NAME, "c", "", "path to config file")

	viper.SetEnvPrefix("db_initializer")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(invoke.InvokeCmd)
	RootCmd.AddCommand(request.RequestCmd)
	RootCmd.AddCommand(secret.SecretCmd)
	RootCmd.AddCommand(configprint.ConfigPrintCmd)
	RootCmd.AddCommand(version.VersionCmd)
}

// initConfig reads the config file when one is given or found. A missing file
// is fine: the function runtime is configured through the environment only.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("db-initializer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")                     // For running from project root
		viper.AddConfigPath("/etc/db-initializer/")  // For container images
		viper.AddConfigPath("$HOME/.db-initializer") // For user-specific config
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && cfgFile == "" {
			return
		}
		log.Logger.Error().Err(err).Str("config_file", cfgFile).Msg("Failed to read config file")
		os.Exit(1)
	}
	log.Logger.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("Loaded config file")
}
