package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ledgerdesk/ledgerdesk/adapters/clock"
	"github.com/ledgerdesk/ledgerdesk/adapters/hasher"
	"github.com/ledgerdesk/ledgerdesk/adapters/idgen"
	"github.com/ledgerdesk/ledgerdesk/adapters/sqlite"
	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/config"
	"github.com/ledgerdesk/ledgerdesk/domain/permission"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage operator accounts",
	Long: `Manage ledgerdesk operator accounts.

Operators are the back-office staff who use the management API. Each
account carries a set of permissions that gate the endpoints it may
call.

Examples:
  ledgerdesk users list
  ledgerdesk users create --email=ops@example.com --name="Ops"
  ledgerdesk users deactivate ops@example.com`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all operator accounts",
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an operator account",
	RunE:  runUsersCreate,
}

var usersGetCmd = &cobra.Command{
	Use:   "get <user-id-or-email>",
	Short: "Get account details",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersGet,
}

var usersDeactivateCmd = &cobra.Command{
	Use:   "deactivate <user-id-or-email>",
	Short: "Deactivate an account and invalidate its sessions",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDeactivate,
}

var usersSetPasswordCmd = &cobra.Command{
	Use:   "set-password <user-id-or-email>",
	Short: "Set or reset an account password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersSetPassword,
}

var (
	userEmail    string
	userName     string
	userPassword string
	userPerms    string
)

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersGetCmd)
	usersCmd.AddCommand(usersDeactivateCmd)
	usersCmd.AddCommand(usersSetPasswordCmd)

	usersCreateCmd.Flags().StringVar(&userEmail, "email", "", "account email (required)")
	usersCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "password (will prompt if not provided)")
	usersCreateCmd.Flags().StringVar(&userPerms, "perms", "", "comma-separated permissions (default: all)")
	usersCreateCmd.MarkFlagRequired("email")

	usersSetPasswordCmd.Flags().StringVar(&userPassword, "password", "", "new password (will prompt if not provided)")
}

// openUserService opens the configured database and builds the user
// service on top of it. The caller closes the returned DB.
func openUserService() (*app.UserService, *sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, nil, fmt.Errorf("users command requires the sqlite driver, configured driver is %q", cfg.Database.Driver)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	svc := app.NewUserService(
		sqlite.NewUserStore(db),
		hasher.NewBcrypt(0),
		clock.Real{},
		idgen.UUID{},
		zerolog.Nop(),
	)
	return svc, db, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	svc, db, err := openUserService()
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := svc.List(context.Background(), 1000, 0)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No accounts found.")
		fmt.Println()
		fmt.Println("Create one with: ledgerdesk users create --email=ops@example.com")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tACTIVE\tPERMISSIONS")
	fmt.Fprintln(w, "--\t-----\t----\t------\t-----------")

	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", u.ID, u.Email, u.Name, u.Active, permission.Join(u.Permissions))
	}

	w.Flush()
	return nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	svc, db, err := openUserService()
	if err != nil {
		return err
	}
	defer db.Close()

	password := userPassword
	if password == "" {
		password, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if password == "" {
			return fmt.Errorf("password cannot be empty")
		}
	}

	perms := permission.All()
	if userPerms != "" {
		perms = permission.Parse(userPerms)
		if len(perms) == 0 {
			return fmt.Errorf("no valid permissions in %q", userPerms)
		}
	}

	user, err := svc.Create(context.Background(), app.CreateUserInput{
		Email:       userEmail,
		Name:        userName,
		Password:    password,
		Permissions: perms,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("%s Created account: %s\n", checkMark, user.ID)
	fmt.Printf("   Email: %s\n", user.Email)
	if user.Name != "" {
		fmt.Printf("   Name:  %s\n", user.Name)
	}
	fmt.Printf("   Perms: %s\n", permission.Join(user.Permissions))
	return nil
}

// getUserByIDOrEmail retrieves an account by ID or email address
func getUserByIDOrEmail(svc *app.UserService, db *sqlite.DB, identifier string) (ports.User, error) {
	ctx := context.Background()

	// If it contains @, treat as email
	if strings.Contains(identifier, "@") {
		return sqlite.NewUserStore(db).GetByEmail(ctx, identifier)
	}

	return svc.Get(ctx, identifier)
}

func runUsersGet(cmd *cobra.Command, args []string) error {
	svc, db, err := openUserService()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := getUserByIDOrEmail(svc, db, args[0])
	if err != nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	fmt.Printf("ID:      %s\n", user.ID)
	fmt.Printf("Email:   %s\n", user.Email)
	if user.Name != "" {
		fmt.Printf("Name:    %s\n", user.Name)
	}
	fmt.Printf("Active:  %v\n", user.Active)
	fmt.Printf("Perms:   %s\n", permission.Join(user.Permissions))
	fmt.Printf("Created: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
	if !user.UpdatedAt.IsZero() {
		fmt.Printf("Updated: %s\n", user.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runUsersDeactivate(cmd *cobra.Command, args []string) error {
	svc, db, err := openUserService()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := getUserByIDOrEmail(svc, db, args[0])
	if err != nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	if !user.Active {
		fmt.Printf("Account %s is already deactivated\n", user.Email)
		return nil
	}

	if !confirm(fmt.Sprintf("Deactivate account %s?", user.Email)) {
		fmt.Println("Aborted.")
		return nil
	}

	inactive := false
	if _, err := svc.Update(context.Background(), user.ID, app.UpdateUserInput{Active: &inactive}); err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	fmt.Printf("%s Deactivated account: %s (%s)\n", checkMark, user.Email, user.ID)
	return nil
}

func runUsersSetPassword(cmd *cobra.Command, args []string) error {
	svc, db, err := openUserService()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := getUserByIDOrEmail(svc, db, args[0])
	if err != nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	password := userPassword
	if password == "" {
		password, err = promptPassword("New password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if password == "" {
			return fmt.Errorf("password cannot be empty")
		}
	}

	if _, err := svc.Update(context.Background(), user.ID, app.UpdateUserInput{Password: &password}); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Printf("%s Password updated for account: %s (%s)\n", checkMark, user.Email, user.ID)
	return nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Print newline after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func confirm(message string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("? %s [y/N]: ", message)
	input, _ := reader.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}
