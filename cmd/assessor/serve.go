package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/assessor/internal/config"
	"github.com/jackzampolin/assessor/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assessor server",
	Long: `Start the assessor HTTP server.

The server provides:
  - POST /process-assessment - Process one Airtable record
  - /health                  - Basic server health check
  - /ready                   - Readiness check
  - /status                  - Active extractor and record store settings

Editing the config file while the server runs swaps the extractor and
record store settings without a restart.

Examples:
  assessor serve                    # Start on server.port (default 3000, or $PORT)
  assessor serve --port 8080        # Start on custom port
  assessor serve --host 127.0.0.1   # Bind to loopback only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger()
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		if f := mgr.ConfigFile(); f != "" {
			logger.Info("loaded config", "file", f)
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides server.port)")

	rootCmd.AddCommand(serveCmd)
}
