package blueprint

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
)

func sample() []grid.Builder {
	storage := "tok-timer\n[ToolbarSlots]\n0:tok-light\n"
	return []grid.Builder{
		{
			GridID:      1,
			DisplayName: "ship 2x1x1",
			Position:    [3]float64{10, 20, 30},
			Blocks: []grid.BlockBuilder{
				{ID: 4, Kind: grid.KindTimer, Min: host.Vec3i{X: 1}, Max: host.Vec3i{X: 1}, Storage: &storage,
					Toolbar: map[int]grid.Slot{0: {Kind: grid.SlotBlock, Block: 9, Action: "Toggle"}}},
				{ID: 5, Kind: grid.KindRotorBase, Min: host.Vec3i{X: 2}, Max: host.Vec3i{X: 2}, Counterpart: 9},
			},
		},
		{
			GridID:      2,
			DisplayName: "arm",
			Position:    [3]float64{11, 22, 30},
			Blocks: []grid.BlockBuilder{
				{ID: 9, Kind: grid.KindRotorTop, Min: host.Vec3i{X: 2, Y: 1}, Max: host.Vec3i{X: 2, Y: 1}, Counterpart: 5},
			},
		},
	}
}

func TestStore_SaveLoadList(t *testing.T) {
	s, err := Open(t.TempDir(), "Sections")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	var saved []Saved
	s.OnSaved(func(x Saved) { saved = append(saved, x) })

	ok, err := s.Exists("frame")
	require.NoError(t, err)
	assert.False(t, ok)

	in := sample()
	require.NoError(t, s.Save(" frame ", in, false))
	assert.Equal(t, [3]float64{10, 20, 30}, in[0].Position, "caller's builders are not modified")

	require.Len(t, saved, 1)
	assert.Equal(t, "frame", saved[0].Name)
	assert.Equal(t, 2, saved[0].Grids)
	assert.Equal(t, 3, saved[0].Blocks)
	assert.Positive(t, saved[0].Size)
	assert.Equal(t, filepath.Join(s.Dir(), "frame.bp.json.zst"), saved[0].Path)

	ok, err = s.Exists("frame")
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := s.Load("frame")
	require.NoError(t, err)
	assert.Equal(t, "frame", f.Name)
	require.Len(t, f.Grids, 2)
	assert.Equal(t, [3]float64{0, 0, 0}, f.Grids[0].Position)
	assert.Equal(t, [3]float64{1, 2, 0}, f.Grids[1].Position)
	require.NotNil(t, f.Grids[0].Blocks[0].Storage)
	assert.Equal(t, "tok-timer\n[ToolbarSlots]\n0:tok-light\n", *f.Grids[0].Blocks[0].Storage)
	assert.Equal(t, "Toggle", f.Grids[0].Blocks[0].Toolbar[0].Action)
	assert.Equal(t, host.BlockID(5), f.Grids[1].Blocks[0].Counterpart)

	require.NoError(t, s.Save("other/one", sample()[:1], false))
	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"frame", "other/one"}, names)
	_, err = os.Stat(filepath.Join(s.Dir(), "other_one.bp.json.zst"))
	assert.NoError(t, err)
}

func TestStore_ReplaceAndDelete(t *testing.T) {
	s, err := Open(t.TempDir(), "Sections")
	require.NoError(t, err)

	require.NoError(t, s.Save("frame", sample(), false))
	err = s.Save("frame", sample()[:1], false)
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, s.Save("frame", sample()[:1], true))
	f, err := s.Load("frame")
	require.NoError(t, err)
	assert.Len(t, f.Grids, 1)

	require.NoError(t, s.Delete("frame"))
	_, err = s.Load("frame")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("frame"), ErrNotFound)
}

func TestStore_RejectsBadInput(t *testing.T) {
	s, err := Open(t.TempDir(), "Sections")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Save("   ", sample(), true), ErrInvalidName)
	assert.ErrorIs(t, s.Save("..", sample(), true), ErrInvalidName)
	assert.Error(t, s.Save("empty", nil, true))
}

func TestReadFile_ValidatesSchema(t *testing.T) {
	dir := t.TempDir()
	write := func(name, doc string) string {
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = enc.Write([]byte(doc))
		require.NoError(t, err)
		require.NoError(t, enc.Close())
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
		return p
	}

	cases := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"valid", `{"version":1,"name":"a","grids":[{"grid_id":1,"display_name":"a","position":[0,0,0],"blocks":[{"id":1,"kind":"ARMOR","min":{"x":0,"y":0,"z":0},"max":{"x":0,"y":0,"z":0}}]}]}`, true},
		{"wrong version", `{"version":2,"name":"a","grids":[{"grid_id":1,"display_name":"a","position":[0,0,0],"blocks":[]}]}`, false},
		{"no grids", `{"version":1,"name":"a","grids":[]}`, false},
		{"bad position", `{"version":1,"name":"a","grids":[{"grid_id":1,"display_name":"a","position":[0,0],"blocks":[]}]}`, false},
		{"bad slot key", `{"version":1,"name":"a","grids":[{"grid_id":1,"display_name":"a","position":[0,0,0],"blocks":[{"id":1,"kind":"TIMER","min":{"x":0,"y":0,"z":0},"max":{"x":0,"y":0,"z":0},"toolbar":{"x":{}}}]}]}`, false},
		{"not json", `{`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadFile(write(tc.name+ext, tc.doc))
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
