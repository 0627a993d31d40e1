package log

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sections.ai/internal/sim/sections"
)

func TestOpLogger_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	l := NewOpLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	require.NoError(t, l.WriteOp(sections.Op{Tick: 1, Player: "p1", Kind: sections.OpCopy, Blocks: 4}))
	require.NoError(t, l.WriteOp(sections.Op{Tick: 2, Player: "p1", Kind: sections.OpCut, Blocks: 4, Grids: 2}))
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, l.WriteOp(sections.Op{Tick: 3, Kind: sections.OpRestore, Repaired: 1}))
	require.NoError(t, l.Close())

	files, err := JournalFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "ops-2026-03-01-10.jsonl.zst", filepath.Base(files[0]))
	assert.Equal(t, "ops-2026-03-01-11.jsonl.zst", filepath.Base(files[1]))

	first, err := ReadOps(files[0])
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, sections.OpCut, first[1].Kind)
	assert.Equal(t, 2, first[1].Grids)

	second, err := ReadOps(files[1])
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, uint64(3), second[0].Tick)
	assert.Equal(t, 1, second[0].Repaired)
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		l := NewOpLogger(dir)
		l.w.now = func() time.Time { return clock }
		require.NoError(t, l.WriteOp(sections.Op{Tick: uint64(i + 1), Kind: sections.OpPaste}))
		require.NoError(t, l.Close())
	}

	files, err := JournalFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	ops, err := ReadOps(files[0])
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, uint64(2), ops[1].Tick)
}
