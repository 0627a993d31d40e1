package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	persistlog "sections.ai/internal/persistence/log"
)

func newJournalCmd(opts *rootOptions) *cobra.Command {
	var (
		player    string
		kind      string
		sinceTick uint64
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print journaled operations in write order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			worldDir, err := opts.worldDir()
			if err != nil {
				return err
			}
			files, err := persistlog.JournalFiles(worldDir)
			if err != nil {
				return err
			}
			kind = strings.ToUpper(strings.TrimSpace(kind))
			for _, path := range files {
				ops, err := persistlog.ReadOps(path)
				if err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
				for _, op := range ops {
					if op.Tick < sinceTick {
						continue
					}
					if player != "" && op.Player != player {
						continue
					}
					if kind != "" && string(op.Kind) != kind {
						continue
					}
					printJSON(cmd.OutOrStdout(), op)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "player filter")
	cmd.Flags().StringVar(&kind, "kind", "", "op kind filter")
	cmd.Flags().Uint64Var(&sinceTick, "since_tick", 0, "skip ops before this tick")
	return cmd
}
