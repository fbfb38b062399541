package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledgerdesk",
	Short: "Financial back-office for clients, contracts, and billing",
	Long: `Ledgerdesk is a self-hosted financial back-office service.

It manages clients, service contracts, and billing records, receives
payment webhooks from Asaas, syncs clients and service orders to the
Omie ERP, notifies the Clint CRM of lifecycle changes, and proxies the
BomControle partner API behind a cache and a call budget.

Quick start:
  ledgerdesk serve            # Start the HTTP server
  ledgerdesk validate         # Validate configuration
  ledgerdesk users create     # Create an operator account`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "ledgerdesk.yaml", "config file path")
}
