package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/cape/internal/capeclient"
	"github.com/marmos91/cape/internal/cli/output"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Authenticate and establish a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, persist, err := newClient()
		if err != nil {
			return err
		}
		if err := client.Ping(); err != nil {
			return err
		}
		persist()
		fmt.Printf("OK, session %08x\n", client.SessionID())
		return nil
	},
}

// listingRow is the serializable form of one directory entry.
type listingRow struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
}

var lsCmd = &cobra.Command{
	Use:   "ls PATH",
	Short: "List a directory on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		client, persist, err := newClient()
		if err != nil {
			return err
		}
		entries, err := client.List(args[0])
		if err != nil {
			return err
		}
		persist()
		return printListing(format, entries)
	},
}

func printListing(format output.Format, entries []capeclient.Entry) error {
	rows := make([]listingRow, 0, len(entries))
	for _, e := range entries {
		kind := "file"
		if e.Type == 'D' {
			kind = "dir"
		}
		rows = append(rows, listingRow{Type: kind, Name: e.Name})
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, rows)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, rows)
	default:
		table := output.NewTable("TYPE", "NAME")
		for _, r := range rows {
			table.AddRow(r.Type, r.Name)
		}
		return table.Render(os.Stdout)
	}
}

var getCmd = &cobra.Command{
	Use:   "get PATH [LOCAL]",
	Short: "Download a file from the server",
	Long: `Download a file. With no LOCAL argument the file is written to the
current directory under its base name. Use '-' to write to stdout.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, persist, err := newClient()
		if err != nil {
			return err
		}
		data, err := client.Get(args[0])
		if err != nil {
			return err
		}
		persist()

		local := filepath.Base(args[0])
		if len(args) == 2 {
			local = args[1]
		}
		if local == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(local, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(data), local)
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put LOCAL [PATH]",
	Short: "Upload a file to the server",
	Long: `Upload a local file. With no PATH argument the file is stored at the
server root under its base name. The server refuses to overwrite an
existing file.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		remote := filepath.Base(args[0])
		if len(args) == 2 {
			remote = args[1]
		}

		client, persist, err := newClient()
		if err != nil {
			return err
		}
		if err := client.Put(remote, data); err != nil {
			return err
		}
		persist()
		fmt.Printf("Uploaded %d bytes to %s\n", len(data), remote)
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir PATH",
	Short: "Create a directory on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, persist, err := newClient()
		if err != nil {
			return err
		}
		if err := client.Mkdir(args[0]); err != nil {
			return err
		}
		persist()
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Delete a file or empty directory on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, persist, err := newClient()
		if err != nil {
			return err
		}
		if err := client.Delete(args[0]); err != nil {
			return err
		}
		persist()
		return nil
	},
}
