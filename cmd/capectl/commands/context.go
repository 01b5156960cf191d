package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cape/internal/cli/credentials"
	"github.com/marmos91/cape/internal/cli/output"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage saved server contexts",
}

var contextSetCmd = &cobra.Command{
	Use:   "set NAME SERVER USERNAME",
	Short: "Create or update a context and make it current",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}
		if err := store.Set(args[0], &credentials.Context{
			Server:   args[1],
			Username: args[2],
		}); err != nil {
			return err
		}
		if err := store.Use(args[0]); err != nil {
			return err
		}
		fmt.Printf("Context %s -> %s@%s\n", args[0], args[2], args[1])
		return nil
	},
}

var contextUseCmd = &cobra.Command{
	Use:   "use NAME",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}
		return store.Use(args[0])
	},
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved contexts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}

		table := output.NewTable("CURRENT", "NAME", "SERVER", "USER")
		current := store.CurrentName()
		for _, name := range store.Names() {
			ctx, err := store.Get(name)
			if err != nil {
				continue
			}
			marker := ""
			if name == current {
				marker = "*"
			}
			table.AddRow(marker, name, ctx.Server, ctx.Username)
		}
		return table.Render(os.Stdout)
	},
}

var contextDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a saved context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}
		return store.Delete(args[0])
	},
}

func init() {
	contextCmd.AddCommand(contextSetCmd)
	contextCmd.AddCommand(contextUseCmd)
	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextDeleteCmd)
}
