// Package main provides a command line client for tables kept in a
// spreadsheet.
//
// Usage:
//
//	sheetsdb tables                       # List configured tables
//	sheetsdb create [table...]            # Create missing sheets
//	sheetsdb drop <table>                 # Delete a table's sheet
//	sheetsdb list <table>                 # Print every record
//	sheetsdb count <table>                # Print the record count
//	sheetsdb get <table> <pk>             # Print one record
//	sheetsdb insert <table> [value...]    # Append a record
//	sheetsdb update <table> <pk> [value...]
//	sheetsdb upsert <table> --where k=v --set k=v
//	sheetsdb truncate <table>             # Clear every record
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"sheetsdb/pkg/config"
	"sheetsdb/pkg/db"
	"sheetsdb/pkg/logging"
	"sheetsdb/pkg/schema"

	"github.com/spf13/cobra"
)

// globals holds the persistent flags.
type globals struct {
	configFile string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "sheetsdb",
		Short:         "Read and write records kept in a spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(cmd.ErrOrStderr(), g.verbose)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", "sheetsdb.toml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		tablesCmd(g),
		createCmd(g),
		dropCmd(g),
		listCmd(g),
		countCmd(g),
		getCmd(g),
		insertCmd(g),
		updateCmd(g),
		upsertCmd(g),
		truncateCmd(g),
	)
	return rootCmd
}

// withDB opens the configured database for the duration of fn.
func (g *globals) withDB(ctx context.Context, fn func(*db.DB) error) error {
	cfg, err := config.New(g.configFile)
	if err != nil {
		return err
	}
	d, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// toRow turns command line arguments into positional values.
func toRow(args []string) schema.Row {
	row := make(schema.Row, len(args))
	for i, a := range args {
		row[i] = a
	}
	return row
}

func toNamed(m map[string]string) schema.NamedRow {
	if len(m) == 0 {
		return nil
	}
	named := make(schema.NamedRow, len(m))
	for k, v := range m {
		named[k] = v
	}
	return named
}
