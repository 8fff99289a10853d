package configprint

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"db-initializer/internal/config"
	"db-initializer/internal/core"
	"db-initializer/pkg/log"
)

var (
	sectionFlag string
	formatFlag  string
)

var ConfigPrintCmd = &cobra.Command{
	Use:   "config-print",
	Short: "Print the current configuration",
	Long: `Print the loaded configuration or a specific section of it, with
credentials redacted. Supports YAML and JSON output formats.`,
	Example: `  # Print entire config
  db-initializer config-print

  # Print specific section
  db-initializer config-print --section secret_store
  db-initializer config-print --section postgres

  # Print in YAML format
  db-initializer config-print --section transport --format yaml`,
	RunE: run,
}

func init() {
	ConfigPrintCmd.Flags().StringVarP(&sectionFlag, "section", "s", "",
		"print only a specific section (secret_store, postgres, request, transport, id, log_level)")
	ConfigPrintCmd.Flags().StringVarP(&formatFlag, "format", "f", "json",
		"output format (yaml|json)")
}

func run(cmd *cobra.Command, _ []string) error {
	logger := log.Component("config_print")

	cfg, err := core.LoadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	if err := render(cmd.OutOrStdout(), cfg.Redacted(), sectionFlag, formatFlag); err != nil {
		logger.Error().Err(err).Str("section", sectionFlag).Msg("Failed to print configuration")
		return err
	}
	return nil
}

func render(w io.Writer, cfg config.Config, section, format string) error {
	var output interface{} = cfg
	if section != "" {
		var err error
		if output, err = getSection(cfg, section); err != nil {
			return err
		}
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(output); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", format)
	}
}

func getSection(cfg config.Config, section string) (interface{}, error) {
	switch section {
	case "secret_store":
		return cfg.SecretStore, nil
	case "postgres":
		return cfg.Postgres, nil
	case "request":
		return cfg.Request, nil
	case "transport":
		return cfg.Transport, nil
	case "log_level":
		return map[string]string{"log_level": cfg.LogLevel}, nil
	case "id":
		return map[string]string{"id": cfg.ID}, nil
	default:
		return nil,
			fmt.Errorf(
				"unknown section: %s (valid: secret_store, postgres, request, transport, id, log_level)",
				section,
			)
	}
}
