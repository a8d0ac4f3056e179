package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mwantia/loadoutsync/internal/banktag"
	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/spf13/cobra"
)

func NewBankTagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banktag",
		Short: "Convert bank tag text",
		Long: `Parse and export the two bank tag text formats.

Both commands read from the argument, or from stdin when it is "-" or missing.`,
	}

	cmd.AddCommand(newBankTagParseCommand())
	cmd.AddCommand(newBankTagExportCommand())

	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func newBankTagParseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [text|-]",
		Short: "Parse bank tag text into its JSON layout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			category, _ := cmd.Flags().GetString("category")

			var out any
			if category == "" {
				out, err = banktag.Parse(text)
			} else {
				out, err = loadout.FromBankTag(text, loadout.Category(category))
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().String("category", "", "emit a complete loadout of this category instead of the layout")

	return cmd
}

func newBankTagExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [layout.json|-]",
		Short: "Render a JSON layout as bank tag text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) > 0 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read layout: %w", err)
			}

			var layout banktag.Layout
			if err := json.Unmarshal(data, &layout); err != nil {
				return fmt.Errorf("failed to decode layout: %w", err)
			}

			if regenerate, _ := cmd.Flags().GetBool("regenerate"); regenerate {
				layout.OriginalFormat = ""
			}

			fmt.Fprintln(cmd.OutOrStdout(), banktag.Export(&layout))
			return nil
		},
	}

	cmd.Flags().Bool("regenerate", false, "ignore preserved original text and encode the items")

	return cmd
}
