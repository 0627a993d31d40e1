package grid

import (
	"errors"
	"fmt"

	"sections.ai/internal/sim/host"
)

// Builder is the serializable form of a grid, the unit of clipboards,
// blueprints and snapshots.
type Builder struct {
	GridID      host.GridID    `json:"grid_id"`
	DisplayName string         `json:"display_name"`
	Position    [3]float64     `json:"position"`
	Blocks      []BlockBuilder `json:"blocks"`
	Groups      []GroupBuilder `json:"groups,omitempty"`
}

type BlockBuilder struct {
	ID          host.BlockID            `json:"id"`
	Kind        Kind                    `json:"kind"`
	Min         host.Vec3i              `json:"min"`
	Max         host.Vec3i              `json:"max"`
	CustomName  string                  `json:"custom_name,omitempty"`
	Storage     *string                 `json:"storage,omitempty"`
	Counterpart host.BlockID            `json:"counterpart,omitempty"`
	Toolbar     map[int]Slot            `json:"toolbar,omitempty"`
	Bindings    map[string]host.BlockID `json:"bindings,omitempty"`
	Selection   []host.BlockID          `json:"selection,omitempty"`
	Tools       []host.BlockID          `json:"tools,omitempty"`
	Waypoints   []map[int]Slot          `json:"waypoints,omitempty"`
	ButtonNames []string                `json:"button_names,omitempty"`
}

type GroupBuilder struct {
	Name   string         `json:"name"`
	Blocks []host.BlockID `json:"blocks"`
}

func (b BlockBuilder) Box() host.Box { return host.BoxOf(b.Min, b.Max) }

// Box encloses every block of the builder.
func (b Builder) Box() (host.Box, bool) {
	if len(b.Blocks) == 0 {
		return host.Box{}, false
	}
	box := b.Blocks[0].Box()
	for _, x := range b.Blocks[1:] {
		box.Min = host.MinVec(box.Min, x.Min)
		box.Max = host.MaxVec(box.Max, x.Max)
	}
	return box, true
}

// MoveToFront makes the block with id the first one, which the engine uses
// as the paste origin.
func (b *Builder) MoveToFront(id host.BlockID) bool {
	for i, x := range b.Blocks {
		if x.ID != id {
			continue
		}
		copy(b.Blocks[1:i+1], b.Blocks[:i])
		b.Blocks[0] = x
		return true
	}
	return false
}

// Export serializes g. When keep is non-nil only accepted blocks are
// exported, and block groups are reduced to those blocks with empty groups
// dropped. Storage blobs are only exported once storage is registered.
func (w *World) Export(g *Grid, keep func(*Block) bool) Builder {
	out := Builder{GridID: g.id, DisplayName: g.Name, Position: g.Position}
	kept := map[host.BlockID]struct{}{}
	for _, b := range g.blocks {
		if keep != nil && !keep(b) {
			continue
		}
		kept[b.id] = struct{}{}
		out.Blocks = append(out.Blocks, w.exportBlock(b))
	}
	for _, grp := range g.groups {
		var members []host.BlockID
		for _, id := range grp.Blocks {
			if _, ok := kept[id]; ok {
				members = append(members, id)
			}
		}
		if len(members) > 0 {
			out.Groups = append(out.Groups, GroupBuilder{Name: grp.Name, Blocks: members})
		}
	}
	return out
}

func (w *World) exportBlock(b *Block) BlockBuilder {
	x := BlockBuilder{
		ID:         b.id,
		Kind:       b.kind,
		Min:        b.min,
		Max:        b.max,
		CustomName: b.CustomName,
	}
	if w.storageRegistered && b.hasStorage {
		s := b.storage
		x.Storage = &s
	}
	if b.counterpart != nil {
		x.Counterpart = b.counterpart.id
	}
	if b.toolbar != nil {
		x.Toolbar = exportSlots(b.toolbar)
	}
	if len(b.bindings) > 0 {
		x.Bindings = make(map[string]host.BlockID, len(b.bindings))
		for k, v := range b.bindings {
			x.Bindings[k] = v
		}
	}
	if b.selection != nil && len(b.selection.ids) > 0 {
		x.Selection = b.selection.IDs()
	}
	if b.tools != nil && len(b.tools.ids) > 0 {
		x.Tools = b.tools.IDs()
	}
	for _, t := range b.waypoints {
		x.Waypoints = append(x.Waypoints, exportSlots(t))
	}
	if b.buttonNames != nil {
		x.ButtonNames = append([]string(nil), b.buttonNames...)
	}
	return x
}

func exportSlots(t *Toolbar) map[int]Slot {
	var out map[int]Slot
	for i, s := range t.slots {
		if s.Kind == SlotEmpty {
			continue
		}
		if out == nil {
			out = map[int]Slot{}
		}
		out[i] = s
	}
	return out
}

// Remap gives every grid and block in builders a fresh handle and rewrites
// handles used inside the collection: attachments and group members.
// Reference-valued fields keep the old handles.
func (w *World) Remap(builders []Builder) {
	ids := map[host.BlockID]host.BlockID{}
	for i := range builders {
		builders[i].GridID = w.allocGridID()
		for j := range builders[i].Blocks {
			old := builders[i].Blocks[j].ID
			nu := w.allocBlockID()
			ids[old] = nu
			builders[i].Blocks[j].ID = nu
		}
	}
	for i := range builders {
		for j := range builders[i].Blocks {
			bb := &builders[i].Blocks[j]
			if bb.Counterpart == 0 {
				continue
			}
			if nu, ok := ids[bb.Counterpart]; ok {
				bb.Counterpart = nu
			} else {
				bb.Counterpart = 0
			}
		}
		for j := range builders[i].Groups {
			members := builders[i].Groups[j].Blocks
			for k, id := range members {
				members[k] = ids[id]
			}
		}
	}
}

// PasteOptions tune how builders are placed.
type PasteOptions struct {
	Offset [3]float64
	// SkipOccupied drops blocks that would overlap instead of failing.
	SkipOccupied bool
}

// Paste creates one new grid per builder, with fresh handles. Attachments
// between pasted blocks are restored. Pasted hooks run once the whole
// collection is in place.
func (w *World) Paste(builders []Builder, opts PasteOptions) ([]*Grid, error) {
	mapped := map[host.BlockID]*Block{}
	grids := make([]*Grid, 0, len(builders))
	for _, b := range builders {
		g := w.NewGrid(b.DisplayName)
		g.Position = addPos(b.Position, opts.Offset)
		grids = append(grids, g)
		if err := w.build(g, b, host.Vec3i{}, opts.SkipOccupied, false, mapped); err != nil {
			for _, x := range grids {
				x.Close()
			}
			return nil, err
		}
	}
	w.countDropped(w.link(builders, mapped))
	for _, fn := range w.pasted {
		fn(grids)
	}
	return grids, nil
}

// PasteOnto merges b into target, shifted by offset cells.
func (w *World) PasteOnto(target *Grid, b Builder, offset host.Vec3i, skipOccupied bool) ([]*Block, error) {
	if target == nil || target.closed {
		return nil, ErrClosed
	}
	if !skipOccupied {
		for _, bb := range b.Blocks {
			box := bb.Box()
			box.Min, box.Max = box.Min.Add(offset), box.Max.Add(offset)
			if err := target.checkFree(box); err != nil {
				return nil, err
			}
		}
	}
	mapped := map[host.BlockID]*Block{}
	if err := w.build(target, b, offset, true, false, mapped); err != nil {
		return nil, err
	}
	w.countDropped(w.link([]Builder{b}, mapped))
	out := make([]*Block, 0, len(mapped))
	for _, bb := range b.Blocks {
		if x := mapped[bb.ID]; x != nil {
			out = append(out, x)
		}
	}
	for _, fn := range w.pastedOnto {
		fn(target)
	}
	return out, nil
}

// Import recreates a grid with the handles recorded in b. It is used to load
// snapshots and does not run paste hooks.
func (w *World) Import(b Builder) (*Grid, error) {
	if _, exists := w.grids[b.GridID]; exists || b.GridID == 0 {
		return nil, fmt.Errorf("grid: import: grid id %d unavailable", b.GridID)
	}
	for _, bb := range b.Blocks {
		if _, exists := w.blocks[bb.ID]; exists || bb.ID == 0 {
			return nil, fmt.Errorf("grid: import: block id %d unavailable", bb.ID)
		}
	}
	g := newGrid(w, b.GridID, b.DisplayName)
	g.Position = b.Position
	w.grids[g.id] = g
	w.order = append(w.order, g.id)
	if g.id > w.nextGrid {
		w.nextGrid = g.id
	}
	mapped := map[host.BlockID]*Block{}
	if err := w.build(g, b, host.Vec3i{}, false, true, mapped); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// LinkImported restores attachments after every grid of a snapshot was
// imported. Attachments that cannot be restored are reported together.
func (w *World) LinkImported(builders []Builder) error {
	mapped := map[host.BlockID]*Block{}
	for _, b := range builders {
		for _, bb := range b.Blocks {
			if x := w.blocks[bb.ID]; x != nil {
				mapped[bb.ID] = x
			}
		}
	}
	return w.link(builders, mapped)
}

func (w *World) build(g *Grid, b Builder, offset host.Vec3i, skipOccupied, keepIDs bool, mapped map[host.BlockID]*Block) error {
	for _, bb := range b.Blocks {
		info, ok := Info(bb.Kind)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKind, bb.Kind)
		}
		box := bb.Box()
		box.Min, box.Max = box.Min.Add(offset), box.Max.Add(offset)
		if err := g.checkFree(box); err != nil {
			if skipOccupied {
				continue
			}
			return err
		}
		id := bb.ID
		if keepIDs {
			if id > w.nextBlock {
				w.nextBlock = id
			}
		} else {
			id = w.allocBlockID()
		}
		x := newBlock(id, bb.Kind, info, box.Min, box.Max)
		x.CustomName = bb.CustomName
		if bb.Storage != nil && w.storageRegistered {
			x.storage = *bb.Storage
			x.hasStorage = true
		}
		if x.toolbar != nil {
			importSlots(x.toolbar, bb.Toolbar)
		}
		for k, v := range bb.Bindings {
			if x.bindings != nil {
				x.bindings[k] = v
			}
		}
		if x.selection != nil {
			x.selection.ids = appendMissing(nil, bb.Selection)
		}
		if x.tools != nil {
			x.tools.ids = appendMissing(nil, bb.Tools)
		}
		if info.Waypoints {
			for _, slots := range bb.Waypoints {
				importSlots(x.AddWaypoint(), slots)
			}
		}
		if x.buttonNames != nil {
			copy(x.buttonNames, bb.ButtonNames)
		}
		g.add(x)
		mapped[bb.ID] = x
	}
	for _, gb := range b.Groups {
		var members []host.BlockID
		for _, id := range gb.Blocks {
			if x := mapped[id]; x != nil {
				members = append(members, x.id)
			}
		}
		if len(members) > 0 {
			g.AddGroup(gb.Name, members...)
		}
	}
	return nil
}

func (w *World) link(builders []Builder, mapped map[host.BlockID]*Block) error {
	var errs []error
	for _, b := range builders {
		for _, bb := range b.Blocks {
			if bb.Counterpart == 0 {
				continue
			}
			x, other := mapped[bb.ID], mapped[bb.Counterpart]
			if x == nil || other == nil || x.Role() != host.RoleBase {
				continue
			}
			if err := w.Attach(x, other); err != nil {
				errs = append(errs, fmt.Errorf("block %d: %w", bb.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// countDropped records attachments a paste could not restore. The paste
// itself still succeeds.
func (w *World) countDropped(err error) {
	if err == nil {
		return
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		w.droppedLinks += len(j.Unwrap())
		return
	}
	w.droppedLinks++
}

func importSlots(t *Toolbar, slots map[int]Slot) {
	for i, s := range slots {
		if i >= 0 && i < len(t.slots) {
			t.slots[i] = s
		}
	}
}

func addPos(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}
