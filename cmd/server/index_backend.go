package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sections.ai/internal/persistence/blueprint"
	"sections.ai/internal/persistence/indexdb"
	"sections.ai/internal/persistence/snapshot"
	"sections.ai/internal/sim/sections"
	"sections.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	sections.OpLogger
	Close() error
	UpsertTuning(tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordBlueprint(b blueprint.Saved)
	Blueprints(ctx context.Context) ([]indexdb.BlueprintRow, error)
	Ops(ctx context.Context, f indexdb.OpFilter) ([]indexdb.OpRow, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SECTIONS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "sections.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported SECTIONS_INDEX_BACKEND: %s", backend)
	}
}
