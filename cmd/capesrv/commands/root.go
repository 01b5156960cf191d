// Package commands implements the capesrv command tree. It only resolves
// configuration and hands control to internal/server; no request-handling
// logic lives here.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information set by main at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "capesrv",
	Short: "Cape network file server",
	Long: `Cape is a network file server speaking a custom binary protocol over
TCP. Clients authenticate against Cape's own user database and perform
file operations confined to a server-rooted home directory.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("capesrv %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
