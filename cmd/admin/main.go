package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sections.ai/internal/persistence/snapshot"
)

type rootOptions struct {
	dataDir string
	worldID string
}

func (o *rootOptions) worldDir() (string, error) {
	if strings.TrimSpace(o.worldID) == "" {
		return "", fmt.Errorf("missing --world")
	}
	return filepath.Join(o.dataDir, "worlds", o.worldID), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sections-admin",
		Short:         "Inspect sections worlds, blueprints and journals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&opts.worldID, "world", "world_1", "world id")

	root.AddCommand(
		newWorldsCmd(opts),
		newSnapshotsCmd(opts),
		newStateCmd(),
		newSnapshotCmd(),
		newDBCmd(opts),
		newBlueprintsCmd(opts),
		newJournalCmd(opts),
	)
	return root
}

func newWorldsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worlds",
		Short: "List world directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(filepath.Join(opts.dataDir, "worlds"))
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Fprintln(cmd.OutOrStdout(), e.Name())
				}
			}
			return nil
		},
	}
}

type snapshotInfo struct {
	Path string `json:"path"`
	snapshot.Header
}

func newSnapshotsCmd(opts *rootOptions) *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List snapshot headers of a world, newest last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			worldDir, err := opts.worldDir()
			if err != nil {
				return err
			}
			paths := snapshotPaths(worldDir)
			if latest && len(paths) > 0 {
				paths = paths[len(paths)-1:]
			}
			for _, p := range paths {
				h, err := snapshot.ReadHeader(p)
				if err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(p), err)
				}
				printJSON(cmd.OutOrStdout(), snapshotInfo{Path: p, Header: h})
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "only the newest snapshot")
	return cmd
}

// snapshotPaths returns <tick>.snap.zst files sorted by tick.
func snapshotPaths(worldDir string) []string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	type entry struct {
		tick uint64
		path string
	}
	var found []entry
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		found = append(found, entry{tick: tick, path: filepath.Join(dir, name)})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].tick < found[j].tick })
	out := make([]string, len(found))
	for i, e := range found {
		out[i] = e.path
	}
	return out
}

func printJSON(w io.Writer, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(w, string(b))
}
