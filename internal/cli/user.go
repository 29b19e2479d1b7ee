package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/railchat/internal/models"
)

var (
	userFirstName string
	userPassword  string
	userRole      string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create [email]",
	Short: "Create a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var userRoleCmd = &cobra.Command{
	Use:   "role [email] [role]",
	Short: "Change a user's role",
	Long: `Sets the role of an existing account to User, Admin or Superadmin.
The change applies from the user's next login.`,
	Args: cobra.ExactArgs(2),
	RunE: runUserRole,
}

func init() {
	userCreateCmd.Flags().StringVar(&userFirstName, "name", "", "first name")
	userCreateCmd.Flags().StringVarP(&userPassword, "password", "p", "", "initial password")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleUser), "User, Admin or Superadmin")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd, userRoleCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	if svc == nil || svc.Users == nil {
		return errors.New("user service not configured")
	}
	role, ok := models.ParseRole(userRole)
	if !ok {
		return fmt.Errorf("unknown role %q", userRole)
	}
	u, err := svc.Users.Create(commandContext(cmd), userFirstName, args[0], userPassword, role)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	cmd.Printf("Created %s (%s) with id %s\n", u.Email, u.Role, u.ID)
	return nil
}

func runUserRole(cmd *cobra.Command, args []string) error {
	if svc == nil || svc.Users == nil {
		return errors.New("user service not configured")
	}
	role, ok := models.ParseRole(args[1])
	if !ok {
		return fmt.Errorf("unknown role %q", args[1])
	}
	u, err := svc.Users.SetRole(commandContext(cmd), args[0], role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	cmd.Printf("%s is now %s\n", u.Email, u.Role)
	return nil
}
