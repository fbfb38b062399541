package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ledgerdesk/ledgerdesk/adapters/sqlite"
	"github.com/ledgerdesk/ledgerdesk/config"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Inspect client records",
	Long: `Inspect ledgerdesk client records.

Read-only view of the client table, including the external sync state
against the payment provider and the ERP. Writes go through the API.

Examples:
  ledgerdesk clients list
  ledgerdesk clients get cli_123`,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE:  runClientsList,
}

var clientsGetCmd = &cobra.Command{
	Use:   "get <client-id>",
	Short: "Get client details",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientsGet,
}

func init() {
	rootCmd.AddCommand(clientsCmd)

	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsGetCmd)
}

func openClientStore() (*sqlite.ClientStore, *sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, nil, fmt.Errorf("clients command requires the sqlite driver, configured driver is %q", cfg.Database.Driver)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return sqlite.NewClientStore(db), db, nil
}

func runClientsList(cmd *cobra.Command, args []string) error {
	store, db, err := openClientStore()
	if err != nil {
		return err
	}
	defer db.Close()

	clients, err := store.List(context.Background(), 1000, 0)
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}

	if len(clients) == 0 {
		fmt.Println("No clients found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDOCUMENT\tACTIVE\tPAY SYNC\tERP SYNC")
	fmt.Fprintln(w, "--\t----\t--------\t------\t--------\t--------")

	for _, c := range clients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n", c.ID, c.Name, c.Document, c.Active, c.PaySync, c.ERPSync)
	}

	w.Flush()
	return nil
}

func runClientsGet(cmd *cobra.Command, args []string) error {
	store, db, err := openClientStore()
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := store.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("client not found: %s", args[0])
	}

	fmt.Printf("ID:        %s\n", c.ID)
	fmt.Printf("Name:      %s\n", c.Name)
	fmt.Printf("Email:     %s\n", c.Email)
	fmt.Printf("Document:  %s\n", c.Document)
	if c.Phone != "" {
		fmt.Printf("Phone:     %s\n", c.Phone)
	}
	if c.City != "" {
		fmt.Printf("City:      %s/%s\n", c.City, c.State)
	}
	fmt.Printf("Active:    %v\n", c.Active)
	fmt.Printf("Payments:  %s", c.PaySync)
	if c.CustomerID != "" {
		fmt.Printf(" (customer %s)", c.CustomerID)
	}
	fmt.Println()
	fmt.Printf("ERP:       %s", c.ERPSync)
	if c.ERPCode != "" {
		fmt.Printf(" (code %s)", c.ERPCode)
	}
	fmt.Println()
	fmt.Printf("Created:   %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
