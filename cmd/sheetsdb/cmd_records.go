package main

import (
	"fmt"

	"sheetsdb/pkg/db"
	"sheetsdb/pkg/table"

	"github.com/spf13/cobra"
)

func listCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list <table>",
		Short: "Print every record of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				t, err := d.Table(args[0])
				if err != nil {
					return err
				}
				recs, err := t.Records(ctx)
				if err != nil {
					return err
				}
				if recs == nil {
					recs = []*table.Record{}
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
}

func getCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <pk>",
		Short: "Print the record with a primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				t, err := d.Table(args[0])
				if err != nil {
					return err
				}
				rec, err := t.WithPK(ctx, args[1])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("%w: %s", table.ErrRecordNotFound, args[1])
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func insertCmd(g *globals) *cobra.Command {
	var (
		set        map[string]string
		noGenerate bool
	)
	cmd := &cobra.Command{
		Use:   "insert <table> [value...]",
		Short: "Append a record; values fill columns in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				t, err := d.Table(args[0])
				if err != nil {
					return err
				}
				rec, err := t.Insert(ctx, toRow(args[1:]), toNamed(set), table.GeneratePK(!noGenerate))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringToStringVar(&set, "set", nil, "Field values by name (name=value)")
	cmd.Flags().BoolVar(&noGenerate, "no-generate", false, "Keep the given primary key instead of generating one")
	return cmd
}

func updateCmd(g *globals) *cobra.Command {
	var set map[string]string
	cmd := &cobra.Command{
		Use:   "update <table> <pk> [value...]",
		Short: "Overwrite the record with a primary key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				t, err := d.Table(args[0])
				if err != nil {
					return err
				}
				rec, err := t.UpdateWithPK(ctx, args[1], toRow(args[2:]), toNamed(set))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringToStringVar(&set, "set", nil, "Field values by name (name=value)")
	return cmd
}

func upsertCmd(g *globals) *cobra.Command {
	var (
		where     map[string]string
		set       map[string]string
		firstOnly bool
	)
	cmd := &cobra.Command{
		Use:   "upsert <table>",
		Short: "Update records matching --where, or insert one when none match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withDB(ctx, func(d *db.DB) error {
				t, err := d.Table(args[0])
				if err != nil {
					return err
				}
				recs, err := t.UpdateOrInsert(ctx, toNamed(where), toNamed(set), firstOnly)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().StringToStringVar(&where, "where", nil, "Filter by field value (name=value, pk for the key)")
	cmd.Flags().StringToStringVar(&set, "set", nil, "Field values to write (name=value)")
	cmd.Flags().BoolVar(&firstOnly, "first", false, "Only update the first match")
	return cmd
}
