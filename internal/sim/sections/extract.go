package sections

import (
	"errors"
	"fmt"
	"strings"

	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/box"
	"sections.ai/internal/sim/logic/mechanical"
	"sections.ai/internal/sim/logic/references"
)

type extraction struct {
	grid     *grid.Grid
	selected []*grid.Block
	subgrids []*grid.Grid
	builders []grid.Builder
	backup   references.BackupStats
	reminted int
}

// extract backs up references of the whole structure and builds the grid
// builders of the selection: the selected blocks of the main grid followed
// by every subgrid that only hung on the structure through them.
func (c *Controller) extract(intersecting bool) (*extraction, error) {
	g := c.grid
	if g == nil || g.Closed() {
		return nil, ErrNoSelection
	}
	ex := &extraction{grid: g}
	cat := references.ForGrid(g, c.s.referenceOptions())
	ex.reminted = cat.Reminted()
	ex.backup = cat.Backup()

	conns := mechanical.Walk(g)
	picked := box.Select(g.Blocks(), c.box, intersecting)
	if len(picked) == 0 {
		return nil, ErrNoSelection
	}
	conns.RemoveConnections(picked)

	keep := make(map[host.BlockID]struct{}, len(picked))
	for _, b := range picked {
		keep[b.ID()] = struct{}{}
		ex.selected = append(ex.selected, g.Block(b.ID()))
	}
	if c.s.tune.Sections.HandleSubgrids {
		for _, sub := range conns.FindUnreachable(g) {
			if x, ok := c.s.world.Grid(sub.ID()); ok {
				ex.subgrids = append(ex.subgrids, x)
			}
		}
	}

	main := c.s.world.Export(g, func(b *grid.Block) bool {
		_, ok := keep[b.ID()]
		return ok
	})
	main.DisplayName = fmt.Sprintf("%s %s", main.DisplayName, c.directions().SizeText(c.box, "x"))
	main.MoveToFront(c.origin(picked))

	ex.builders = append(ex.builders, main)
	for _, sub := range ex.subgrids {
		ex.builders = append(ex.builders, c.s.world.Export(sub, nil))
	}
	c.s.world.Remap(ex.builders)
	return ex, nil
}

// origin is the block pasting is anchored on: the aimed block when it is
// selected, otherwise the block nearest the low corner of the selection.
func (c *Controller) origin(picked []host.Block) host.BlockID {
	if c.aimed != nil {
		for _, b := range picked {
			if b.ID() == c.aimed.ID() {
				return b.ID()
			}
		}
	}
	mins := make([]host.Vec3i, len(picked))
	for i, b := range picked {
		mins[i] = b.Min()
	}
	corner := box.FindCorner(mins)
	for _, b := range picked {
		if b.Min() == corner {
			return b.ID()
		}
	}
	return 0
}

func (ex *extraction) op(kind OpKind) Op {
	return Op{
		Kind:       kind,
		GridID:     ex.grid.ID(),
		Blocks:     len(ex.selected),
		Grids:      len(ex.builders),
		References: ex.backup.References,
		Reminted:   ex.reminted,
	}
}

func (c *Controller) copy(intersecting bool) Result {
	ex, err := c.extract(intersecting)
	if err != nil {
		return c.failed(err)
	}
	c.clipboard = ex.builders
	return c.done(ex.op(OpCopy), fmt.Sprintf("copied %d blocks", len(ex.selected)))
}

func (c *Controller) cut(intersecting bool) Result {
	ex, err := c.extract(intersecting)
	if err != nil {
		return c.failed(err)
	}
	c.clipboard = ex.builders
	c.remove(ex)
	return c.done(ex.op(OpCut), fmt.Sprintf("cut %d blocks", len(ex.selected)))
}

func (c *Controller) delete(intersecting bool) Result {
	ex, err := c.extract(intersecting)
	if err != nil {
		return c.failed(err)
	}
	c.remove(ex)
	return c.done(ex.op(OpDelete), fmt.Sprintf("deleted %d blocks", len(ex.selected)))
}

func (c *Controller) remove(ex *extraction) {
	c.s.world.RemoveBlocks(ex.selected)
	for _, sub := range ex.subgrids {
		sub.Close()
	}
}

func (c *Controller) save(in Input) Result {
	if c.s.blueprints == nil {
		return Result{Handled: true, Notice: "blueprint storage is not configured"}
	}
	ex, err := c.extract(in.Intersect)
	if err != nil {
		return c.failed(err)
	}
	if !c.s.tune.Sections.RenameBlueprint {
		res := c.store(ex, false)
		c.Reset()
		return res
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		ex.builders[0].DisplayName = name
	}
	name := ex.builders[0].DisplayName
	exists, err := c.s.blueprints.Exists(name)
	if err != nil {
		return c.failed(err)
	}
	if !exists {
		res := c.store(ex, true)
		c.Reset()
		return res
	}
	return c.ask(StateResizing, fmt.Sprintf("Overwrite blueprint %q?", name), func() Result {
		res := c.store(ex, true)
		c.Reset()
		return res
	})
}

func (c *Controller) store(ex *extraction, replace bool) Result {
	name := ex.builders[0].DisplayName
	if err := c.s.blueprints.Save(name, ex.builders, replace); err != nil {
		return c.failed(err)
	}
	op := ex.op(OpSave)
	op.Blueprint = name
	return c.done(op, fmt.Sprintf("saved blueprint %q", name))
}

func (c *Controller) paste(in Input) Result {
	if len(c.clipboard) == 0 {
		return Result{Handled: true, Notice: "clipboard is empty"}
	}
	skip := c.s.tune.Sections.DisablePlacementTest && in.Force

	if in.Onto {
		if c.aimed == nil {
			return Result{Handled: true, Notice: "aim at a grid to paste onto"}
		}
		if len(c.clipboard) > 1 {
			return Result{Handled: true, Notice: "clipboard holds subgrids, paste it as new grids"}
		}
		b := c.clipboard[0]
		if len(b.Blocks) == 0 {
			return Result{Handled: true, Notice: "clipboard is empty"}
		}
		target := c.aimed.CubeGrid()
		offset := c.aimed.Min().Add(in.Offset).Sub(b.Blocks[0].Min)
		placed, err := c.s.world.PasteOnto(target, b, offset, skip)
		if err != nil {
			return c.failed(err)
		}
		op := Op{Kind: OpPaste, GridID: target.ID(), Blocks: len(placed), Grids: 1}
		return c.done(op, fmt.Sprintf("pasted %d blocks onto %s", len(placed), target.Name))
	}

	shift := in.Offset
	if c.s.tune.Sections.FixPastePosition && len(c.clipboard[0].Blocks) > 0 {
		shift = shift.Sub(c.clipboard[0].Blocks[0].Min)
	}
	off := [3]float64{float64(shift.X), float64(shift.Y), float64(shift.Z)}
	grids, err := c.s.world.Paste(c.clipboard, grid.PasteOptions{Offset: off, SkipOccupied: skip})
	if err != nil {
		return c.failed(err)
	}
	blocks := 0
	for _, g := range grids {
		blocks += g.BlockCount()
	}
	op := Op{Kind: OpPaste, GridID: grids[0].ID(), Blocks: blocks, Grids: len(grids)}
	return c.done(op, fmt.Sprintf("pasted %d grids", len(grids)))
}

func (c *Controller) clearReferences(g *grid.Grid) Result {
	if g.Closed() {
		return c.failed(grid.ErrClosed)
	}
	cat := references.ForGrid(g, c.s.referenceOptions())
	n := cat.Clear()
	op := Op{Kind: OpClear, GridID: g.ID(), Blocks: n, Reminted: cat.Reminted()}
	return c.done(op, fmt.Sprintf("block reference data cleared from %s and all connected subgrids", g.Name))
}

func (c *Controller) done(op Op, notice string) Result {
	op.Player = c.player
	op = c.s.record(op)
	return Result{Handled: true, Notice: notice, Op: &op}
}

func (c *Controller) failed(err error) Result {
	switch {
	case errors.Is(err, ErrNoSelection):
		return Result{Handled: true, Notice: "nothing selected"}
	case errors.Is(err, grid.ErrOccupied):
		return Result{Handled: true, Notice: "cannot paste here: " + err.Error()}
	}
	c.s.logf("sections: %s: %v", c.player, err)
	return Result{Handled: true, Notice: err.Error()}
}
