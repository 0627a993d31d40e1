package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sections.ai/internal/persistence/blueprint"
)

type blueprintSummary struct {
	Name    string        `json:"name"`
	SavedAt time.Time     `json:"saved_at"`
	Grids   []gridSummary `json:"grids"`
	Blocks  int           `json:"blocks"`
}

type gridSummary struct {
	GridID      int64  `json:"grid_id"`
	DisplayName string `json:"display_name"`
	Blocks      int    `json:"blocks"`
}

func summarize(f blueprint.File) blueprintSummary {
	s := blueprintSummary{Name: f.Name, SavedAt: f.SavedAt, Blocks: f.Blocks()}
	for _, g := range f.Grids {
		s.Grids = append(s.Grids, gridSummary{GridID: int64(g.GridID), DisplayName: g.DisplayName, Blocks: len(g.Blocks)})
	}
	return s
}

func newBlueprintsCmd(opts *rootOptions) *cobra.Command {
	var subdir string
	open := func() (*blueprint.Store, error) {
		return blueprint.Open(opts.dataDir, subdir)
	}

	cmd := &cobra.Command{
		Use:   "blueprints",
		Short: "Manage saved section blueprints",
	}
	cmd.PersistentFlags().StringVar(&subdir, "subdir", "Sections", "blueprint subdirectory under the data directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List blueprint names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			names, err := s.List()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Print a blueprint summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			f, err := s.Load(args[0])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), summarize(f))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate PATH...",
		Short: "Check blueprint files against the blueprint schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bad := 0
			for _, p := range args {
				f, err := blueprint.ReadFile(p)
				if err != nil {
					bad++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", p, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s name=%q grids=%d blocks=%d\n", p, f.Name, len(f.Grids), f.Blocks())
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d blueprint files invalid", bad, len(args))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a blueprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			return s.Delete(args[0])
		},
	})
	return cmd
}
