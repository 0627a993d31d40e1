package grid

import (
	"errors"
	"fmt"

	"sections.ai/internal/sim/host"
)

var (
	ErrOccupied    = errors.New("grid: cell occupied")
	ErrUnknownKind = errors.New("grid: unknown block kind")
	ErrClosed      = errors.New("grid: closed")
)

// BlockGroup is a named terminal group ("All lights", ...).
type BlockGroup struct {
	Name   string
	Blocks []host.BlockID
}

type Grid struct {
	world *World
	id    host.GridID

	Name     string
	Position [3]float64

	closed  bool
	inScene bool
	physics bool

	blocks []*Block
	byID   map[host.BlockID]*Block
	cells  map[host.Vec3i]*Block
	groups []*BlockGroup
}

func newGrid(w *World, id host.GridID, name string) *Grid {
	return &Grid{
		world:   w,
		id:      id,
		Name:    name,
		inScene: true,
		physics: true,
		byID:    map[host.BlockID]*Block{},
		cells:   map[host.Vec3i]*Block{},
	}
}

func (g *Grid) ID() host.GridID  { return g.id }
func (g *Grid) Closed() bool     { return g.closed }
func (g *Grid) InScene() bool    { return g.inScene }
func (g *Grid) HasPhysics() bool { return g.physics }

func (g *Grid) SetInScene(v bool) { g.inScene = v }
func (g *Grid) SetPhysics(v bool) { g.physics = v }
func (g *Grid) World() *World     { return g.world }
func (g *Grid) BlockCount() int   { return len(g.blocks) }
func (g *Grid) String() string    { return fmt.Sprintf("grid %d %q", g.id, g.Name) }

func (g *Grid) Groups() []*BlockGroup { return append([]*BlockGroup(nil), g.groups...) }

func (g *Grid) Blocks() []host.Block {
	out := make([]host.Block, len(g.blocks))
	for i, b := range g.blocks {
		out[i] = b
	}
	return out
}

// CubeBlocks returns the blocks in placement order.
func (g *Grid) CubeBlocks() []*Block {
	return append([]*Block(nil), g.blocks...)
}

func (g *Grid) Block(id host.BlockID) *Block { return g.byID[id] }

// BlockAt returns the block occupying cell p, if any.
func (g *Grid) BlockAt(p host.Vec3i) *Block { return g.cells[p] }

// Place adds a block of kind covering the inclusive box min..max.
func (g *Grid) Place(kind Kind, min, max host.Vec3i) (*Block, error) {
	if g.closed {
		return nil, ErrClosed
	}
	info, ok := Info(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	box := host.BoxOf(min, max)
	if err := g.checkFree(box); err != nil {
		return nil, err
	}
	b := newBlock(g.world.allocBlockID(), kind, info, box.Min, box.Max)
	g.add(b)
	return b, nil
}

// PlaceAt places a single-cell block.
func (g *Grid) PlaceAt(kind Kind, p host.Vec3i) (*Block, error) {
	return g.Place(kind, p, p)
}

func (g *Grid) checkFree(box host.Box) error {
	for x := box.Min.X; x <= box.Max.X; x++ {
		for y := box.Min.Y; y <= box.Max.Y; y++ {
			for z := box.Min.Z; z <= box.Max.Z; z++ {
				p := host.Vec3i{X: x, Y: y, Z: z}
				if _, ok := g.cells[p]; ok {
					return fmt.Errorf("%w: %v", ErrOccupied, p)
				}
			}
		}
	}
	return nil
}

func (g *Grid) add(b *Block) {
	b.grid = g
	g.blocks = append(g.blocks, b)
	g.byID[b.id] = b
	g.setCells(b, b)
	g.world.blocks[b.id] = b
}

func (g *Grid) setCells(b *Block, v *Block) {
	for x := b.min.X; x <= b.max.X; x++ {
		for y := b.min.Y; y <= b.max.Y; y++ {
			for z := b.min.Z; z <= b.max.Z; z++ {
				p := host.Vec3i{X: x, Y: y, Z: z}
				if v == nil {
					delete(g.cells, p)
				} else {
					g.cells[p] = v
				}
			}
		}
	}
}

// Remove deletes the given blocks. Mechanical attachments through them are
// broken and they leave every block group. A grid left without blocks is
// closed.
func (g *Grid) Remove(ids ...host.BlockID) int {
	drop := map[host.BlockID]struct{}{}
	for _, id := range ids {
		b := g.byID[id]
		if b == nil {
			continue
		}
		drop[id] = struct{}{}
		if b.counterpart != nil {
			b.counterpart.counterpart = nil
			b.counterpart = nil
		}
		g.setCells(b, nil)
		delete(g.byID, id)
		delete(g.world.blocks, id)
		b.grid = nil
	}
	if len(drop) == 0 {
		return 0
	}

	kept := g.blocks[:0]
	for _, b := range g.blocks {
		if _, ok := drop[b.id]; !ok {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(g.blocks); i++ {
		g.blocks[i] = nil
	}
	g.blocks = kept

	g.stripGroups(func(id host.BlockID) bool {
		_, ok := drop[id]
		return !ok
	})
	if len(g.blocks) == 0 {
		g.Close()
	}
	return len(drop)
}

// Close removes the grid from the scene. Attachments to other grids are
// broken; the blocks stay readable.
func (g *Grid) Close() {
	if g.closed {
		return
	}
	g.closed = true
	g.inScene = false
	for _, b := range g.blocks {
		if b.counterpart != nil && b.counterpart.grid != g {
			b.counterpart.counterpart = nil
			b.counterpart = nil
		}
	}
}

// AddGroup creates or extends a named block group. Unknown ids are ignored.
func (g *Grid) AddGroup(name string, ids ...host.BlockID) *BlockGroup {
	var grp *BlockGroup
	for _, x := range g.groups {
		if x.Name == name {
			grp = x
			break
		}
	}
	if grp == nil {
		grp = &BlockGroup{Name: name}
		g.groups = append(g.groups, grp)
	}
	for _, id := range ids {
		if g.byID[id] != nil {
			grp.Blocks = appendMissing(grp.Blocks, []host.BlockID{id})
		}
	}
	return grp
}

// stripGroups keeps only group members accepted by keep and drops groups
// that end up empty.
func (g *Grid) stripGroups(keep func(host.BlockID) bool) {
	groups := g.groups[:0]
	for _, grp := range g.groups {
		members := grp.Blocks[:0]
		for _, id := range grp.Blocks {
			if keep(id) {
				members = append(members, id)
			}
		}
		grp.Blocks = members
		if len(members) > 0 {
			groups = append(groups, grp)
		}
	}
	g.groups = groups
}

// Bounds is the box enclosing every block of the grid.
func (g *Grid) Bounds() (host.Box, bool) {
	if len(g.blocks) == 0 {
		return host.Box{}, false
	}
	box := g.blocks[0].Box()
	for _, b := range g.blocks[1:] {
		box.Min = host.MinVec(box.Min, b.min)
		box.Max = host.MaxVec(box.Max, b.max)
	}
	return box, true
}
