package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sections.ai/internal/sim/host"
)

func at(x, y, z int) host.Vec3i { return host.Vec3i{X: x, Y: y, Z: z} }

func mustPlace(t *testing.T, g *Grid, k Kind, p host.Vec3i) *Block {
	t.Helper()
	b, err := g.PlaceAt(k, p)
	require.NoError(t, err)
	return b
}

func TestPlace_RejectsOverlapAndUnknownKind(t *testing.T) {
	w := NewWorld()
	g := w.NewGrid("ship")

	_, err := g.Place(KindArmor, at(0, 0, 0), at(1, 1, 1))
	require.NoError(t, err)

	_, err = g.PlaceAt(KindLight, at(1, 0, 1))
	assert.ErrorIs(t, err, ErrOccupied)

	_, err = g.PlaceAt(Kind("NOPE"), at(5, 5, 5))
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.NotNil(t, g.BlockAt(at(1, 1, 0)))
	assert.Nil(t, g.BlockAt(at(2, 0, 0)))
}

func TestBlock_InterfacesReturnUntypedNil(t *testing.T) {
	w := NewWorld()
	g := w.NewGrid("ship")
	rotor := mustPlace(t, g, KindRotorBase, at(0, 0, 0))
	armor := mustPlace(t, g, KindArmor, at(1, 0, 0))

	assert.True(t, rotor.Counterpart() == nil)
	_, ok := armor.Terminal()
	assert.False(t, ok)

	g.Remove(armor.ID())
	assert.True(t, armor.Grid() == nil)

	acc := rotor.Accessors()
	assert.True(t, acc.Toolbar == nil)
	assert.True(t, acc.Bindings == nil)
	assert.True(t, acc.Selection == nil)
	assert.True(t, acc.Waypoints == nil)
}

func TestRemove_DetachesAndClosesEmptyGrid(t *testing.T) {
	w := NewWorld()
	a := w.NewGrid("a")
	b := w.NewGrid("b")
	base := mustPlace(t, a, KindHingeBase, at(0, 0, 0))
	top := mustPlace(t, b, KindHingeTop, at(0, 0, 0))
	require.NoError(t, w.Attach(base, top))
	assert.Equal(t, 1, w.Stats().Links)

	assert.Equal(t, 1, b.Remove(top.ID()))
	assert.Nil(t, base.Attached())
	assert.True(t, b.Closed())
	assert.False(t, b.InScene())
	assert.Len(t, w.Grids(), 1)

	assert.Equal(t, 1, w.Forget())
	_, ok := w.Block(top.ID())
	assert.False(t, ok)
}

func TestAttach_RequiresRoles(t *testing.T) {
	w := NewWorld()
	g := w.NewGrid("g")
	base := mustPlace(t, g, KindRotorBase, at(0, 0, 0))
	light := mustPlace(t, g, KindLight, at(1, 0, 0))

	assert.ErrorIs(t, w.Attach(base, light), ErrNotAttachable)
	assert.ErrorIs(t, w.Attach(nil, light), ErrNotAttachable)
}

func TestSetStorage_SkipsUnchanged(t *testing.T) {
	w := NewWorld()
	g := w.NewGrid("g")
	timer := mustPlace(t, g, KindTimer, at(0, 0, 0))

	timer.SetStorage("a")
	timer.SetStorage("a")
	timer.SetStorage("b")
	assert.Equal(t, 2, timer.StorageWrites())
	s, ok := timer.Storage()
	assert.True(t, ok)
	assert.Equal(t, "b", s)
}

func TestAccessors_CountReferenceWrites(t *testing.T) {
	w := NewWorld()
	g := w.NewGrid("g")
	ev := mustPlace(t, g, KindEventController, at(0, 0, 0))
	light := mustPlace(t, g, KindLight, at(1, 0, 0))

	ev.Select(light.ID())
	ev.Toolbar().Set(0, Slot{Kind: SlotBlock, Block: light.ID(), Action: "OnOff"})
	assert.Zero(t, ev.RefWrites())

	acc := ev.Accessors()
	id, ok := acc.Toolbar.BlockAt(0)
	require.True(t, ok)
	assert.Equal(t, light.ID(), id)

	acc.Toolbar.SetBlockAt(0, 99)
	assert.Equal(t, "OnOff", ev.Toolbar().Slot(0).Action)
	acc.Selection.Remove([]host.BlockID{light.ID()})
	acc.Selection.Add([]host.BlockID{7, 7})
	assert.Equal(t, []host.BlockID{7}, ev.Selection())
	assert.Equal(t, 3, ev.RefWrites())

	acc.Selection.Add(nil)
	assert.Equal(t, 3, ev.RefWrites())
}

func TestExport_KeepsSelectedBlocksAndStripsGroups(t *testing.T) {
	w := NewWorld()
	g := w.NewGrid("ship")
	l1 := mustPlace(t, g, KindLight, at(0, 0, 0))
	l2 := mustPlace(t, g, KindLight, at(1, 0, 0))
	d := mustPlace(t, g, KindDoor, at(2, 0, 0))
	g.AddGroup("lights", l1.ID(), l2.ID())
	g.AddGroup("doors", d.ID())
	l1.SetStorage("tok")

	out := w.Export(g, func(b *Block) bool { return b.Kind() == KindLight })
	require.Len(t, out.Blocks, 2)
	require.Len(t, out.Groups, 1)
	assert.Equal(t, "lights", out.Groups[0].Name)
	assert.Nil(t, out.Blocks[0].Storage)

	w.RegisterStorage()
	out = w.Export(g, nil)
	require.Len(t, out.Blocks, 3)
	require.NotNil(t, out.Blocks[0].Storage)
	assert.Equal(t, "tok", *out.Blocks[0].Storage)
}

func TestRemapAndPaste_RelinksButKeepsReferenceHandles(t *testing.T) {
	w := NewWorld()
	w.RegisterStorage()
	a := w.NewGrid("a")
	b := w.NewGrid("b")
	base := mustPlace(t, a, KindRotorBase, at(0, 0, 0))
	timer := mustPlace(t, a, KindTimer, at(1, 0, 0))
	top := mustPlace(t, b, KindRotorTop, at(0, 0, 0))
	require.NoError(t, w.Attach(base, top))
	timer.Toolbar().Set(0, Slot{Kind: SlotBlock, Block: base.ID()})
	timer.SetStorage("tok")

	builders := []Builder{w.Export(a, nil), w.Export(b, nil)}
	w.Remap(builders)
	assert.NotEqual(t, a.ID(), builders[0].GridID)
	assert.NotEqual(t, base.ID(), builders[0].Blocks[0].ID)
	assert.Equal(t, builders[1].Blocks[0].ID, builders[0].Blocks[0].Counterpart)
	assert.Equal(t, base.ID(), builders[0].Blocks[1].Toolbar[0].Block)

	var hooked []*Grid
	w.OnPasted(func(gs []*Grid) { hooked = append(hooked, gs...) })

	pasted, err := w.Paste(builders, PasteOptions{Offset: [3]float64{10, 0, 0}})
	require.NoError(t, err)
	require.Len(t, pasted, 2)
	assert.Equal(t, pasted, hooked)
	assert.Equal(t, 10.0, pasted[0].Position[0])

	nb := pasted[0].CubeBlocks()[0]
	nt := pasted[0].CubeBlocks()[1]
	require.NotNil(t, nb.Attached())
	assert.Equal(t, pasted[1].ID(), nb.Attached().CubeGrid().ID())
	assert.Equal(t, base.ID(), nt.Toolbar().Slot(0).Block)
	s, _ := nt.Storage()
	assert.Equal(t, "tok", s)
}

func TestLink_ReportsAttachmentsThatCannotBeRestored(t *testing.T) {
	w := NewWorld()
	a := w.NewGrid("a")
	base := mustPlace(t, a, KindPistonBase, at(0, 0, 0))
	light := mustPlace(t, a, KindLight, at(1, 0, 0))
	b := w.Export(a, nil)
	b.Blocks[0].Counterpart = light.ID()

	w2 := NewWorld()
	_, err := w2.Import(b)
	require.NoError(t, err)
	assert.ErrorIs(t, w2.LinkImported([]Builder{b}), ErrNotAttachable)

	builders := []Builder{b}
	w.Remap(builders)
	pasted, err := w.Paste(builders, PasteOptions{})
	require.NoError(t, err)
	require.Len(t, pasted, 1)
	assert.Nil(t, pasted[0].CubeBlocks()[0].Attached())
	assert.Equal(t, 1, w.DroppedLinks())
	assert.Nil(t, base.Attached())
}

func TestPasteOnto_FailsOnOverlapUnlessSkipping(t *testing.T) {
	w := NewWorld()
	src := w.NewGrid("src")
	mustPlace(t, src, KindLight, at(0, 0, 0))
	mustPlace(t, src, KindLight, at(1, 0, 0))
	b := w.Export(src, nil)

	dst := w.NewGrid("dst")
	mustPlace(t, dst, KindArmor, at(6, 0, 0))

	var onto []*Grid
	w.OnPastedOnto(func(g *Grid) { onto = append(onto, g) })

	_, err := w.PasteOnto(dst, b, at(5, 0, 0), false)
	assert.ErrorIs(t, err, ErrOccupied)
	assert.Empty(t, onto)

	added, err := w.PasteOnto(dst, b, at(5, 0, 0), true)
	require.NoError(t, err)
	assert.Len(t, added, 1)
	assert.Equal(t, at(5, 0, 0), added[0].Min())
	assert.Equal(t, []*Grid{dst}, onto)
}

func TestImport_KeepsHandles(t *testing.T) {
	w := NewWorld()
	w.RegisterStorage()
	a := w.NewGrid("a")
	b := w.NewGrid("b")
	base := mustPlace(t, a, KindPistonBase, at(0, 0, 0))
	top := mustPlace(t, b, KindPistonTop, at(0, 0, 0))
	require.NoError(t, w.Attach(base, top))
	builders := []Builder{w.Export(a, nil), w.Export(b, nil)}

	w2 := NewWorld()
	w2.RegisterStorage()
	for _, bl := range builders {
		_, err := w2.Import(bl)
		require.NoError(t, err)
	}
	require.NoError(t, w2.LinkImported(builders))

	nb, ok := w2.Block(base.ID())
	require.True(t, ok)
	require.NotNil(t, nb.Attached())
	assert.Equal(t, top.ID(), nb.Attached().ID())

	_, err := w2.Import(builders[0])
	assert.Error(t, err)

	g := w2.NewGrid("fresh")
	assert.Greater(t, g.ID(), b.ID())
}

func TestBuilder_MoveToFront(t *testing.T) {
	b := Builder{Blocks: []BlockBuilder{{ID: 1}, {ID: 2}, {ID: 3}}}
	require.True(t, b.MoveToFront(3))
	assert.Equal(t, []host.BlockID{3, 1, 2}, []host.BlockID{b.Blocks[0].ID, b.Blocks[1].ID, b.Blocks[2].ID})
	assert.False(t, b.MoveToFront(42))
}
