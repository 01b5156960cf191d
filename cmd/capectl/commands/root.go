// Package commands implements the capectl command tree: remote file
// operations and user management against a running Cape server.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cape/internal/capeclient"
	"github.com/marmos91/cape/internal/cli/credentials"
	"github.com/marmos91/cape/internal/cli/output"
	"github.com/marmos91/cape/internal/cli/prompt"
)

var (
	flagServer   string
	flagUser     string
	flagPassword string
	flagOutput   string
)

var rootCmd = &cobra.Command{
	Use:   "capectl",
	Short: "Command-line client for the Cape file server",
	Long: `capectl talks the Cape wire protocol to a running capesrv instance.

The target server and username come from --server/--user, or from the
current context (see 'capectl context'). The password is taken from
--password, the CAPECTL_PASSWORD environment variable, or an interactive
prompt, in that order; it is never stored on disk.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "", "Server address (host:port), overrides the current context")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "Username, overrides the current context")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "Password (prefer CAPECTL_PASSWORD or the prompt)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json, or yaml")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(contextCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// outputFormat parses the --output flag.
func outputFormat() (output.Format, error) {
	return output.ParseFormat(flagOutput)
}

// newClient resolves the target server, username, password, and saved
// session id, preferring flags over the stored context. The returned
// cleanup func persists the (possibly refreshed) session id back to the
// context file; call it after the operation.
func newClient() (*capeclient.Client, func(), error) {
	server := flagServer
	username := flagUser
	var store *credentials.Store
	var savedSession uint32

	if server == "" || username == "" {
		s, err := credentials.NewStore()
		if err != nil {
			return nil, nil, err
		}
		ctx, err := s.Current()
		if err != nil {
			return nil, nil, fmt.Errorf("%w (use --server/--user or 'capectl context set')", err)
		}
		if server == "" {
			server = ctx.Server
		}
		if username == "" {
			username = ctx.Username
		}
		store = s
		savedSession = ctx.SessionID
	}
	if server == "" {
		return nil, nil, fmt.Errorf("no server specified")
	}
	if username == "" {
		return nil, nil, fmt.Errorf("no username specified")
	}

	password := flagPassword
	if password == "" {
		password = os.Getenv("CAPECTL_PASSWORD")
	}
	if password == "" {
		p, err := prompt.Password(fmt.Sprintf("Password for %s@%s", username, server))
		if err != nil {
			return nil, nil, err
		}
		password = p
	}

	client := capeclient.New(server, username, password)
	client.SetSessionID(savedSession)

	persist := func() {
		if store == nil {
			return
		}
		if id := client.SessionID(); id != savedSession {
			if err := store.SaveSession(id); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not save session: %v\n", err)
			}
		}
	}
	return client, persist, nil
}
