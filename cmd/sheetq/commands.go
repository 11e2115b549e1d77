package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetq/internal/application"
	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/query"
	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// print writes v to stdout as indented JSON.
func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseWhere(raw string) (query.Where, error) {
	if raw == "" {
		return nil, nil
	}
	var where query.Where
	if err := json.Unmarshal([]byte(raw), &where); err != nil {
		return nil, fmt.Errorf("%w: where: %v", core.ErrInvalidRequest, err)
	}
	return where, nil
}

func parseRecord(raw string) (query.Record, error) {
	var rec query.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: record: %v", core.ErrInvalidRequest, err)
	}
	return rec, nil
}

func (a *app) sheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List sheets with their columns and row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := a.service.ListSheets(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(sheets)
		},
	}
}

func (a *app) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <sheet>",
		Short: "Show one sheet's columns and row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.service.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(info)
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <sheet> <column>...",
		Short: "Create an empty sheet with the given header",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.CreateSheet(cmd.Context(), args[0], splitColumns(args[1:])); err != nil {
				return err
			}
			info, err := a.service.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(info)
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	var (
		where  string
		fields []string
	)
	cmd := &cobra.Command{
		Use:   "query <sheet>",
		Short: "Filter a sheet and print the matching records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := parseWhere(where)
			if err != nil {
				return err
			}
			res, err := a.service.Query(cmd.Context(), args[0], w, fields)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().StringVar(&where, "where", "", `where-clause as JSON, e.g. {"age": {"gte": 30}}`)
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "columns to fetch (default all)")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "export <sheet>",
		Short: "Write the matching rows as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := parseWhere(where)
			if err != nil {
				return err
			}
			info, err := a.service.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := a.service.Query(cmd.Context(), args[0], w, nil)
			if err != nil {
				return err
			}

			cw := csv.NewWriter(a.out)
			cw.Write(info.Columns)
			for _, rec := range res.Records {
				line := make([]string, len(info.Columns))
				for i, col := range info.Columns {
					line[i] = sheet.Format(rec[col])
				}
				cw.Write(line)
			}
			cw.Flush()
			return cw.Error()
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "where-clause as JSON")
	return cmd
}

// insertCmd builds append or prepend; both take a record as JSON.
func (a *app) insertCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <sheet> <record>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecord(args[1])
			if err != nil {
				return err
			}
			outcome := query.OutcomeAppended
			if name == "prepend" {
				outcome = query.OutcomePrepended
				err = a.service.Prepend(cmd.Context(), args[0], rec)
			} else {
				err = a.service.Append(cmd.Context(), args[0], rec)
			}
			if err != nil {
				return err
			}
			return a.print(map[string]any{"sheet": args[0], "outcome": outcome})
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "update <sheet> <record>",
		Short: "Merge a record into every matching row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := parseWhere(where)
			if err != nil {
				return err
			}
			rec, err := parseRecord(args[1])
			if err != nil {
				return err
			}
			n, err := a.service.UpdateWhere(cmd.Context(), args[0], w, rec)
			if err != nil {
				return err
			}
			return a.print(map[string]any{"sheet": args[0], "rows": n})
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "where-clause as JSON (default every row)")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "delete <sheet>",
		Short: "Delete every matching row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := parseWhere(where)
			if err != nil {
				return err
			}
			n, err := a.service.DeleteWhere(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			return a.print(map[string]any{"sheet": args[0], "rows": n})
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "where-clause as JSON")
	cmd.MarkFlagRequired("where")
	return cmd
}

// upsertCmd runs update-or-insert through a short-lived cursor.
func (a *app) upsertCmd() *cobra.Command {
	var where, mode string
	cmd := &cobra.Command{
		Use:   "upsert <sheet> <record>",
		Short: "Update matching rows, or insert the record when none match",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseUpsertMode(mode)
			if err != nil {
				return err
			}
			w, err := parseWhere(where)
			if err != nil {
				return err
			}
			rec, err := parseRecord(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := a.service.OpenCursor(ctx, args[0])
			if err != nil {
				return err
			}
			defer a.service.CloseCursor(c.ID)

			if _, err := a.service.CursorFilter(ctx, c.ID, w); err != nil {
				return err
			}
			outcome, info, err := a.service.CursorUpsert(ctx, c.ID, rec, m)
			if err != nil {
				return err
			}
			return a.print(map[string]any{
				"sheet":   args[0],
				"outcome": outcome,
				"ranges":  info.Ranges,
			})
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "where-clause as JSON")
	cmd.Flags().StringVar(&mode, "mode", string(core.UpsertAppend), "insert mode when nothing matches: append or prepend")
	cmd.MarkFlagRequired("where")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server on the selected store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.Serve(cmd.Context(), a.cfg, a.service)
		},
	}
}

// splitColumns accepts "a,b" as well as separate arguments.
func splitColumns(args []string) []string {
	var cols []string
	for _, arg := range args {
		for _, c := range strings.Split(arg, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
	}
	return cols
}
