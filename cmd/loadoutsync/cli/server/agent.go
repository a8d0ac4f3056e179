package server

import (
	"fmt"

	"github.com/mwantia/loadoutsync/internal/agent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	config "github.com/mwantia/loadoutsync/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the loadout sync agent",
		Long: `Start the loadout sync agent.

The agent opens the configured store, follows the session user, keeps the
aggregate stats current and serves the local loadout view over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			return agent.NewAgent(cfg).Serve(cmd.Context())
		},
	}

	cmd.Flags().String("listen", "", "address of the HTTP surface (overrides http.listen)")
	cmd.Flags().String("user", "", "signed in user of a headless agent (overrides session.user_id)")
	cmd.Flags().String("storage", "", "storage type, sqlite or memory (overrides storage.type)")

	viper.BindPFlag("http.listen", cmd.Flags().Lookup("listen"))
	viper.BindPFlag("session.user_id", cmd.Flags().Lookup("user"))
	viper.BindPFlag("storage.type", cmd.Flags().Lookup("storage"))

	return cmd
}
