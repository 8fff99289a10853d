package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const serviceName = "db-initializer"

//nolint:gochecknoglobals
var Logger zerolog.Logger

// Init replaces the global logger once the configuration is known.
// Unknown levels fall back to info.
func Init(appID string, levelStr string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	ctx := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Str("app_id", appID)
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		ctx = ctx.Str("function_name", fn)
	}
	Logger = ctx.Logger()
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

//nolint:gochecknoinits
func init() {
	if isTestSilentMode() {
		Logger = zerolog.New(io.Discard)
		zerolog.SetGlobalLevel(zerolog.Disabled)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

func isTestSilentMode() bool {
	if isTestMode() &&
		(os.Getenv("TEST_SILENT") == "1" || os.Getenv("TEST_SILENT") == "true") {
		return true
	}

	return false
}

func isTestMode() bool {
	for _, arg := range os.Args {
		if strings.HasSuffix(arg, ".test") || strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}
