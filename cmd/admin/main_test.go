package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sections.ai/internal/persistence/blueprint"
	"sections.ai/internal/persistence/indexdb"
	persistlog "sections.ai/internal/persistence/log"
	"sections.ai/internal/persistence/snapshot"
	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/sections"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func lines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func sampleWorld(t *testing.T) *grid.World {
	t.Helper()
	w := grid.NewWorld()
	g := w.NewGrid("frame")
	for x := 0; x < 3; x++ {
		_, err := g.PlaceAt(grid.KindArmor, host.Vec3i{X: x})
		require.NoError(t, err)
	}
	return w
}

func TestWorlds(t *testing.T) {
	data := t.TempDir()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(data, "worlds", id), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(data, "worlds", "stray.txt"), nil, 0o644))

	out, err := run(t, "--data", data, "worlds")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines(out))
}

func TestSnapshots(t *testing.T) {
	data := t.TempDir()
	worldDir := filepath.Join(data, "worlds", "w1")
	w := sampleWorld(t)
	for _, tick := range []uint64{100, 20} {
		path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
		require.NoError(t, snapshot.WriteSnapshot(path, snapshot.Capture("w1", tick, 60, w)))
	}

	out, err := run(t, "--data", data, "--world", "w1", "snapshots")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 2)
	var first snapshotInfo
	require.NoError(t, json.Unmarshal([]byte(got[0]), &first))
	assert.Equal(t, uint64(20), first.Tick)
	assert.Equal(t, "w1", first.WorldID)

	out, err = run(t, "--data", data, "--world", "w1", "snapshots", "--latest")
	require.NoError(t, err)
	require.Len(t, lines(out), 1)
	assert.Contains(t, out, `"tick":100`)

	_, err = run(t, "--data", data, "--world", "", "snapshots")
	assert.ErrorContains(t, err, "missing --world")
}

func TestBlueprints(t *testing.T) {
	data := t.TempDir()
	store, err := blueprint.Open(data, "Sections")
	require.NoError(t, err)
	w := sampleWorld(t)
	var grids []grid.Builder
	for _, g := range w.Grids() {
		grids = append(grids, w.Export(g, nil))
	}
	require.NoError(t, store.Save("frame", grids, false))

	out, err := run(t, "--data", data, "blueprints", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"frame"}, lines(out))

	out, err = run(t, "--data", data, "blueprints", "show", "frame")
	require.NoError(t, err)
	var sum blueprintSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, "frame", sum.Name)
	assert.Equal(t, 3, sum.Blocks)
	require.Len(t, sum.Grids, 1)
	assert.Equal(t, "frame", sum.Grids[0].DisplayName)

	good := filepath.Join(store.Dir(), "frame.bp.json.zst")
	bad := filepath.Join(t.TempDir(), "bad.bp.json.zst")
	require.NoError(t, os.WriteFile(bad, []byte("not zstd"), 0o644))

	out, err = run(t, "blueprints", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good)

	out, err = run(t, "blueprints", "validate", good, bad)
	assert.ErrorContains(t, err, "1 of 2 blueprint files invalid")
	assert.Contains(t, out, "FAIL "+bad)

	_, err = run(t, "--data", data, "blueprints", "delete", "frame")
	require.NoError(t, err)
	out, err = run(t, "--data", data, "blueprints", "list")
	require.NoError(t, err)
	assert.Empty(t, lines(out))

	_, err = run(t, "--data", data, "blueprints", "show", "frame")
	assert.ErrorIs(t, err, blueprint.ErrNotFound)
}

func TestJournal(t *testing.T) {
	data := t.TempDir()
	worldDir := filepath.Join(data, "worlds", "w1")
	j := persistlog.NewOpLogger(worldDir)
	require.NoError(t, j.WriteOp(sections.Op{Tick: 1, Player: "p1", Kind: sections.OpCopy, Blocks: 3}))
	require.NoError(t, j.WriteOp(sections.Op{Tick: 2, Player: "p2", Kind: sections.OpCut, Blocks: 1}))
	require.NoError(t, j.WriteOp(sections.Op{Tick: 3, Kind: sections.OpRestore, Repaired: 2}))
	require.NoError(t, j.Close())

	out, err := run(t, "--data", data, "--world", "w1", "journal")
	require.NoError(t, err)
	assert.Len(t, lines(out), 3)

	out, err = run(t, "--data", data, "--world", "w1", "journal", "--kind", "restore")
	require.NoError(t, err)
	require.Len(t, lines(out), 1)
	assert.Contains(t, out, `"repaired":2`)

	out, err = run(t, "--data", data, "--world", "w1", "journal", "--player", "p1", "--since_tick", "2")
	require.NoError(t, err)
	assert.Empty(t, lines(out))
}

func TestDB(t *testing.T) {
	data := t.TempDir()
	path := filepath.Join(data, "worlds", "w1", "index", "sections.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, idx.WriteOp(sections.Op{Tick: 4, Player: "p1", Kind: sections.OpCopy, Blocks: 3}))
	require.NoError(t, idx.WriteOp(sections.Op{Tick: 5, Player: "p2", Kind: sections.OpCut, Blocks: 1}))
	require.NoError(t, idx.Flush(context.Background()))
	require.NoError(t, idx.Close())

	out, err := run(t, "--data", data, "--world", "w1", "db", "ops", "--player", "p2")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 1)
	var row indexdb.OpRow
	require.NoError(t, json.Unmarshal([]byte(got[0]), &row))
	assert.Equal(t, "CUT", row.Kind)
	assert.Equal(t, uint64(5), row.Tick)

	_, err = run(t, "db", "snapshot", "--db", path)
	assert.ErrorContains(t, err, "no snapshots indexed")

	_, err = run(t, "--data", data, "--world", "w1", "db")
	assert.Error(t, err)
}

func TestStateAndSnapshotRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/admin/v1/state" && r.Method == http.MethodGet:
			_, _ = rw.Write([]byte(`{"world_id":"w1","tick":9}`))
		case r.URL.Path == "/admin/v1/snapshot" && r.Method == http.MethodPost:
			rw.WriteHeader(http.StatusServiceUnavailable)
			_, _ = rw.Write([]byte(`{"ok":false}`))
		default:
			rw.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	out, err := run(t, "state", "--url", srv.URL+"/")
	require.NoError(t, err)
	assert.JSONEq(t, `{"world_id":"w1","tick":9}`, out)

	out, err = run(t, "snapshot", "--url", srv.URL)
	assert.ErrorContains(t, err, "503")
	assert.Contains(t, out, `"ok":false`)
}
