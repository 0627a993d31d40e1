// Package grid is an in-memory engine: grids of blocks, mechanical
// attachments between grids, reference-valued block fields and the
// per-block storage blob. It implements the host interfaces and the
// export/remap/paste cycle the sections controller drives.
package grid

import (
	"errors"
	"fmt"

	"sections.ai/internal/sim/host"
)

var ErrNotAttachable = errors.New("grid: blocks cannot be attached")

// PastedFunc is called after a paste created new grids.
type PastedFunc func(grids []*Grid)

// PastedOntoFunc is called after blocks were pasted into an existing grid.
type PastedOntoFunc func(target *Grid)

type World struct {
	nextGrid  host.GridID
	nextBlock host.BlockID

	grids  map[host.GridID]*Grid
	order  []host.GridID
	blocks map[host.BlockID]*Block

	storageRegistered bool
	droppedLinks      int

	pasted     []PastedFunc
	pastedOnto []PastedOntoFunc
}

func NewWorld() *World {
	return &World{
		grids:  map[host.GridID]*Grid{},
		blocks: map[host.BlockID]*Block{},
	}
}

func (w *World) allocGridID() host.GridID {
	w.nextGrid++
	return w.nextGrid
}

func (w *World) allocBlockID() host.BlockID {
	w.nextBlock++
	return w.nextBlock
}

// NewGrid creates an empty live grid.
func (w *World) NewGrid(name string) *Grid {
	g := newGrid(w, w.allocGridID(), name)
	w.grids[g.id] = g
	w.order = append(w.order, g.id)
	return g
}

func (w *World) Grid(id host.GridID) (*Grid, bool) {
	g, ok := w.grids[id]
	return g, ok
}

// Grids returns the grids that are not closed, in creation order.
func (w *World) Grids() []*Grid {
	out := make([]*Grid, 0, len(w.order))
	for _, id := range w.order {
		if g := w.grids[id]; g != nil && !g.closed {
			out = append(out, g)
		}
	}
	return out
}

// DroppedLinks is the number of attachments pastes failed to restore.
func (w *World) DroppedLinks() int { return w.droppedLinks }

// Block looks a block up by handle across every grid.
func (w *World) Block(id host.BlockID) (*Block, bool) {
	b, ok := w.blocks[id]
	return b, ok
}

// Forget drops closed grids from the world.
func (w *World) Forget() int {
	kept := w.order[:0]
	n := 0
	for _, id := range w.order {
		g := w.grids[id]
		if g == nil || g.closed {
			if g != nil {
				for _, b := range g.blocks {
					delete(w.blocks, b.id)
				}
			}
			delete(w.grids, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	w.order = kept
	return n
}

// RegisterStorage enables persistence of block storage blobs in exports and
// snapshots. Registering twice is harmless.
func (w *World) RegisterStorage() bool {
	if w.storageRegistered {
		return false
	}
	w.storageRegistered = true
	return true
}

func (w *World) StorageRegistered() bool { return w.storageRegistered }

// Attach connects a base block to a top block. Both must be placed, have
// matching roles and be free.
func (w *World) Attach(base, top *Block) error {
	if base == nil || top == nil || base.grid == nil || top.grid == nil {
		return fmt.Errorf("%w: block not placed", ErrNotAttachable)
	}
	if base.Role() != host.RoleBase || top.Role() != host.RoleTop {
		return fmt.Errorf("%w: %s/%s", ErrNotAttachable, base.kind, top.kind)
	}
	if base.counterpart != nil || top.counterpart != nil {
		return fmt.Errorf("%w: already attached", ErrNotAttachable)
	}
	base.counterpart = top
	top.counterpart = base
	return nil
}

// Detach breaks the attachment of b, if any.
func (w *World) Detach(b *Block) {
	if b == nil || b.counterpart == nil {
		return
	}
	b.counterpart.counterpart = nil
	b.counterpart = nil
}

func (w *World) OnPasted(fn PastedFunc)         { w.pasted = append(w.pasted, fn) }
func (w *World) OnPastedOnto(fn PastedOntoFunc) { w.pastedOnto = append(w.pastedOnto, fn) }

// RemoveBlocks deletes blocks from their grids, grouped per grid.
func (w *World) RemoveBlocks(blocks []*Block) int {
	perGrid := map[*Grid][]host.BlockID{}
	var grids []*Grid
	for _, b := range blocks {
		if b == nil || b.grid == nil {
			continue
		}
		if _, ok := perGrid[b.grid]; !ok {
			grids = append(grids, b.grid)
		}
		perGrid[b.grid] = append(perGrid[b.grid], b.id)
	}
	n := 0
	for _, g := range grids {
		n += g.Remove(perGrid[g]...)
	}
	return n
}

// Stats summarizes the world for status messages.
type Stats struct {
	Grids     int `json:"grids"`
	Blocks    int `json:"blocks"`
	Terminals int `json:"terminals"`
	Links     int `json:"links"`
}

func (w *World) Stats() Stats {
	var s Stats
	for _, g := range w.Grids() {
		s.Grids++
		for _, b := range g.blocks {
			s.Blocks++
			if b.info.Terminal {
				s.Terminals++
			}
			if b.info.Role == host.RoleBase && b.counterpart != nil {
				s.Links++
			}
		}
	}
	return s
}
