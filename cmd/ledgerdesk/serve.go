package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerdesk/ledgerdesk/bootstrap"
	"github.com/ledgerdesk/ledgerdesk/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the back-office HTTP server",
	Long: `Start the ledgerdesk HTTP server.

The server will:
  - Load configuration from ledgerdesk.yaml (or --config)
  - Or load configuration from LEDGERDESK_* environment variables
  - Connect to the database and run migrations
  - Serve the management API and the Asaas webhook receiver
  - Run the billing reconciler and the CRM delivery retry worker

Environment variables (for Docker deployments):
  LEDGERDESK_ASAAS_WEBHOOK_TOKEN  - Webhook auth token (required)
  LEDGERDESK_ASAAS_API_KEY        - Asaas API key
  LEDGERDESK_DATABASE_DSN         - Database path (default: ledgerdesk.db)
  LEDGERDESK_SERVER_PORT          - Server port (default: 8080)
  LEDGERDESK_LOG_LEVEL            - Log level: debug, info, warn, error

Examples:
  ledgerdesk serve
  ledgerdesk serve --config /etc/ledgerdesk/config.yaml

  # Docker (env vars only):
  LEDGERDESK_ASAAS_WEBHOOK_TOKEN=secret ledgerdesk serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	hasEnvConfig := config.HasEnvConfig()

	// No configuration at all
	if !hasConfigFile && !hasEnvConfig {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s\n", cfgFile)
		fmt.Println("Option 2: Set LEDGERDESK_ASAAS_WEBHOOK_TOKEN environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  LEDGERDESK_ASAAS_WEBHOOK_TOKEN=secret ledgerdesk serve")
		return nil
	}

	if !hasConfigFile {
		fmt.Println("Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
