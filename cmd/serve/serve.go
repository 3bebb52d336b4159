// Package serve implements the serve command, which runs the analysis service.
package serve

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/server"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Reefey analysis service",
		Long:  "Start the HTTP API, quota gate, reconciler and configured integrations, and serve until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.WebServer.Enabled = true
			return server.Run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the HTTP server")
	return viper.BindPFlags(cmd.Flags())
}
