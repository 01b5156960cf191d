package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cape/internal/cli/prompt"
)

var flagPermission string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage server user accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Create a user account",
	Long: `Create a user account on the server. The caller's permission level
must be at least the new account's level.

Permission levels:
  read        list and download files
  read-write  also upload, mkdir, and delete
  admin       also create and delete users`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		perm, err := parsePermission(flagPermission)
		if err != nil {
			return err
		}

		newPassword, err := prompt.PasswordWithConfirmation(
			fmt.Sprintf("Password for new user %s", args[0]),
			"Confirm password", 6)
		if err != nil {
			return err
		}

		client, persist, err := newClient()
		if err != nil {
			return err
		}
		if err := client.CreateUser(args[0], newPassword, perm); err != nil {
			return err
		}
		persist()
		fmt.Printf("Created user %s\n", args[0])
		return nil
	},
}

var userDelCmd = &cobra.Command{
	Use:   "del USERNAME",
	Short: "Delete a user account (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := prompt.Confirm(fmt.Sprintf("Delete user %s", args[0]), false)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		client, persist, err := newClient()
		if err != nil {
			return err
		}
		if err := client.DeleteUser(args[0]); err != nil {
			return err
		}
		persist()
		fmt.Printf("Deleted user %s\n", args[0])
		return nil
	},
}

func parsePermission(s string) (uint8, error) {
	switch s {
	case "read", "1":
		return 1, nil
	case "read-write", "rw", "2":
		return 2, nil
	case "admin", "3":
		return 3, nil
	default:
		return 0, fmt.Errorf("invalid permission %q: use read, read-write, or admin", s)
	}
}

func init() {
	userAddCmd.Flags().StringVar(&flagPermission, "permission", "read", "Permission level: read, read-write, or admin")
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDelCmd)
}
