package grid

import (
	"sections.ai/internal/sim/host"
)

type Block struct {
	id   host.BlockID
	kind Kind
	info KindInfo
	grid *Grid
	min  host.Vec3i
	max  host.Vec3i

	CustomName string

	storage       string
	hasStorage    bool
	storageWrites int

	counterpart *Block

	toolbar     *Toolbar
	bindings    map[string]host.BlockID
	selection   *blockList
	tools       *blockList
	waypoints   []*Toolbar
	buttonNames []string

	refWrites int
}

func newBlock(id host.BlockID, kind Kind, info KindInfo, min, max host.Vec3i) *Block {
	b := &Block{id: id, kind: kind, info: info, min: min, max: max}
	if info.Toolbar {
		b.toolbar = newToolbar(b, ToolbarSlots)
	}
	if len(info.Bindings) > 0 {
		b.bindings = map[string]host.BlockID{}
	}
	if info.Selection {
		b.selection = &blockList{owner: b}
	}
	if info.Tools {
		b.tools = &blockList{owner: b}
	}
	if info.Buttons > 0 {
		b.buttonNames = make([]string, info.Buttons)
	}
	return b
}

func (b *Block) ID() host.BlockID { return b.id }
func (b *Block) Kind() Kind       { return b.kind }
func (b *Block) Min() host.Vec3i  { return b.min }
func (b *Block) Max() host.Vec3i  { return b.max }
func (b *Block) Role() host.Role  { return b.info.Role }

func (b *Block) Box() host.Box { return host.Box{Min: b.min, Max: b.max} }

func (b *Block) Grid() host.Grid {
	if b.grid == nil {
		return nil
	}
	return b.grid
}

// CubeGrid is Grid without the interface conversion.
func (b *Block) CubeGrid() *Grid { return b.grid }

func (b *Block) Counterpart() host.Block {
	if b.counterpart == nil {
		return nil
	}
	return b.counterpart
}

func (b *Block) Attached() *Block { return b.counterpart }

func (b *Block) Terminal() (host.Terminal, bool) {
	if !b.info.Terminal {
		return nil, false
	}
	return b, true
}

func (b *Block) Storage() (string, bool) { return b.storage, b.hasStorage }

// SetStorage is a no-op when the value does not change.
func (b *Block) SetStorage(value string) {
	if b.hasStorage && b.storage == value {
		return
	}
	b.storage = value
	b.hasStorage = true
	b.storageWrites++
}

func (b *Block) StorageWrites() int { return b.storageWrites }

// RefWrites counts writes to reference-valued fields made through the
// accessors.
func (b *Block) RefWrites() int { return b.refWrites }

func (b *Block) refWrite() { b.refWrites++ }

func (b *Block) Accessors() host.Accessors {
	var a host.Accessors
	if b.toolbar != nil {
		a.Toolbar = b.toolbar
	}
	if b.bindings != nil {
		a.Bindings = blockBindings{b}
	}
	if b.selection != nil {
		a.Selection = b.selection
	}
	if b.tools != nil {
		a.Tools = b.tools
	}
	if b.info.Waypoints {
		a.Waypoints = waypointToolbars{b}
	}
	if b.buttonNames != nil {
		a.ButtonNames = buttonNames{b}
	}
	return a
}

func (b *Block) Toolbar() *Toolbar { return b.toolbar }

func (b *Block) Bound(name string) host.BlockID { return b.bindings[name] }

// Bind sets a binding as a player would.
func (b *Block) Bind(name string, id host.BlockID) {
	if b.bindings == nil {
		return
	}
	b.bindings[name] = id
}

func (b *Block) Selection() []host.BlockID {
	if b.selection == nil {
		return nil
	}
	return b.selection.IDs()
}

// Select appends ids to the selection list as a player would.
func (b *Block) Select(ids ...host.BlockID) {
	if b.selection != nil {
		b.selection.ids = appendMissing(b.selection.ids, ids)
	}
}

func (b *Block) Tools() []host.BlockID {
	if b.tools == nil {
		return nil
	}
	return b.tools.IDs()
}

func (b *Block) SelectTools(ids ...host.BlockID) {
	if b.tools != nil {
		b.tools.ids = appendMissing(b.tools.ids, ids)
	}
}

// AddWaypoint appends a waypoint with an empty toolbar and returns it.
func (b *Block) AddWaypoint() *Toolbar {
	if !b.info.Waypoints {
		return nil
	}
	t := newToolbar(b, ToolbarSlotsPerPage)
	b.waypoints = append(b.waypoints, t)
	return t
}

func (b *Block) Waypoint(i int) *Toolbar {
	if i < 0 || i >= len(b.waypoints) {
		return nil
	}
	return b.waypoints[i]
}

func (b *Block) ButtonName(i int) string {
	if i < 0 || i >= len(b.buttonNames) {
		return ""
	}
	return b.buttonNames[i]
}

func (b *Block) SetButtonName(i int, name string) {
	if i < 0 || i >= len(b.buttonNames) {
		return
	}
	b.buttonNames[i] = name
}

type blockBindings struct{ b *Block }

func (x blockBindings) Names() []string { return append([]string(nil), x.b.info.Bindings...) }

func (x blockBindings) Bound(name string) host.BlockID { return x.b.bindings[name] }

func (x blockBindings) Bind(name string, id host.BlockID) {
	x.b.bindings[name] = id
	x.b.refWrite()
}

// blockList keeps insertion order, like the engine's serialized id lists.
type blockList struct {
	owner *Block
	ids   []host.BlockID
}

func (l *blockList) IDs() []host.BlockID { return append([]host.BlockID(nil), l.ids...) }

func (l *blockList) Add(ids []host.BlockID) {
	if len(ids) == 0 {
		return
	}
	l.ids = appendMissing(l.ids, ids)
	l.owner.refWrite()
}

func (l *blockList) Remove(ids []host.BlockID) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[host.BlockID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := l.ids[:0]
	for _, id := range l.ids {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	l.ids = kept
	l.owner.refWrite()
}

func appendMissing(dst, ids []host.BlockID) []host.BlockID {
	have := make(map[host.BlockID]struct{}, len(dst))
	for _, id := range dst {
		have[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		dst = append(dst, id)
	}
	return dst
}

type waypointToolbars struct{ b *Block }

func (w waypointToolbars) WaypointCount() int { return len(w.b.waypoints) }

func (w waypointToolbars) WaypointToolbar(i int) host.Toolbar {
	t := w.b.Waypoint(i)
	if t == nil {
		return nil
	}
	return t
}

type buttonNames struct{ b *Block }

func (n buttonNames) ButtonCount() int              { return len(n.b.buttonNames) }
func (n buttonNames) ButtonName(i int) string       { return n.b.ButtonName(i) }
func (n buttonNames) SetButtonName(i int, s string) { n.b.SetButtonName(i, s) }
