package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-emutos-install/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file, EMUTOS_*
environment variables and flags have been applied.

Examples:
  # Show where settings come from
  emutos-install config -v

  # Use a specific config file
  emutos-install config --config ./emutos-install.yaml -o json`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig(cmd)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command) error {
	ctx := newContext(cmd)
	if used := viper.ConfigFileUsed(); used != "" {
		ctx.Log(fmt.Sprintf("Config file: %s", used))
	} else {
		ctx.Log("No config file found, using defaults and environment")
	}
	return formatConfig(cmd.OutOrStdout(), settings, ctx.OutputFormat)
}

func formatConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml", "table", "":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
