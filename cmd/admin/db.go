package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sections.ai/internal/persistence/indexdb"
)

func newDBCmd(opts *rootOptions) *cobra.Command {
	var (
		dbPath string
		player string
		kind   string
		limit  int
	)
	cmd := &cobra.Command{
		Use:       "db {ops|blueprints|snapshot}",
		Short:     "Query the sqlite index of a world",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"ops", "blueprints", "snapshot"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(dbPath)
			if path == "" {
				worldDir, err := opts.worldDir()
				if err != nil {
					return err
				}
				path = filepath.Join(worldDir, "index", "sections.sqlite")
			}
			idx, err := indexdb.OpenSQLite(path)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			defer idx.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch args[0] {
			case "ops":
				rows, err := idx.Ops(ctx, indexdb.OpFilter{Player: player, Kind: strings.ToUpper(kind), Limit: limit})
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}
				for _, r := range rows {
					printJSON(out, r)
				}
			case "blueprints":
				rows, err := idx.Blueprints(ctx)
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}
				for _, r := range rows {
					printJSON(out, r)
				}
			case "snapshot":
				tick, p, ok, err := idx.LatestSnapshot(ctx)
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}
				if !ok {
					return fmt.Errorf("no snapshots indexed")
				}
				printJSON(out, map[string]any{"tick": tick, "path": p})
			default:
				return fmt.Errorf("unknown query %q", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite db path (defaults to the world index)")
	cmd.Flags().StringVar(&player, "player", "", "player filter (ops)")
	cmd.Flags().StringVar(&kind, "kind", "", "op kind filter (ops)")
	cmd.Flags().IntVar(&limit, "limit", 20, "result limit (ops)")
	return cmd
}
