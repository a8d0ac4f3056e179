package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	config "github.com/mwantia/loadoutsync/internal/config/server"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management utilities",
		Long: `Manage loadoutsync agent configuration files.

This command provides utilities for generating configuration files
with every option set to its default.`,
	}

	cmd.AddCommand(newConfigGenerateCommand())

	return cmd
}

// marshalConfig renders cfg in format, which is yaml or toml.
func marshalConfig(cfg config.BaseServerConfig, format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	case "toml":
		return toml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unsupported config format '%s'", format)
	}
}

func newConfigGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a default configuration file",
		Long: `Generate a configuration file holding the default of every option.

The file can be passed to the agent with --config after adjusting it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir, _ := cmd.Flags().GetString("output")
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			format, _ := cmd.Flags().GetString("format")

			data, err := marshalConfig(config.GetServerDefault(), format)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			ext := format
			if ext == "yml" {
				ext = "yaml"
			}
			filename := filepath.Join(outputDir, "loadoutsync."+ext)

			if _, err := os.Stat(filename); err == nil && !overwrite {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipping %s (file exists, use --overwrite to replace)\n", filename)
				return nil
			}

			if err := os.WriteFile(filename, data, 0644); err != nil {
				return fmt.Errorf("failed to write config file %s: %w", filename, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", filename)
			return nil
		},
	}

	cmd.Flags().String("output", ".", "output directory for configuration files")
	cmd.Flags().String("format", "yaml", "file format, yaml or toml")
	cmd.Flags().Bool("overwrite", false, "overwrite existing files")

	return cmd
}
