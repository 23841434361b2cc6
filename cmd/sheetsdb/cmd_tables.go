package main

import (
	"sheetsdb/pkg/db"

	"github.com/spf13/cobra"
)

type tableSummary struct {
	Name    string `json:"name"`
	Sheet   string `json:"sheet"`
	Columns int    `json:"columns"`
	Exists  bool   `json:"exists"`
}

func tablesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List configured tables and whether their sheets exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				out := make([]tableSummary, 0, len(d.Tables()))
				for _, name := range d.Tables() {
					t, err := d.Table(name)
					if err != nil {
						return err
					}
					exists, err := t.Exists(ctx)
					if err != nil {
						return err
					}
					out = append(out, tableSummary{
						Name:    name,
						Sheet:   t.SheetName(),
						Columns: t.Schema().Len(),
						Exists:  exists,
					})
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func createCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "create [table...]",
		Short: "Create the sheets of the named tables, or of all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				if len(args) == 0 {
					return d.CreateAll(ctx)
				}
				for _, name := range args {
					t, err := d.Table(name)
					if err != nil {
						return err
					}
					if err := t.Create(ctx); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func dropCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Delete a table's sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				t, err := d.Table(args[0])
				if err != nil {
					return err
				}
				return t.Drop(ctx)
			})
		},
	}
}

func truncateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "truncate <table>",
		Short: "Clear every record of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				t, err := d.Table(args[0])
				if err != nil {
					return err
				}
				return t.Truncate(ctx)
			})
		},
	}
}

func countCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "count <table>",
		Short: "Print the number of records in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				t, err := d.Table(args[0])
				if err != nil {
					return err
				}
				n, err := t.Count(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"count": n})
			})
		},
	}
}
