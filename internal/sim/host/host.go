// Package host declares what the sections logic needs from the engine that
// owns grids and blocks. The engine supplies read access to the structure,
// the opaque per-block storage blob and accessors for reference-valued
// fields. Nothing here mutates the structure itself.
package host

type GridID int64

// BlockID is the volatile runtime handle of a block. Zero means "no block".
type BlockID int64

type Role int

const (
	RoleNone Role = iota
	// RoleBase is the stator side of a mechanical connection (rotor, hinge, piston base).
	RoleBase
	// RoleTop is the attachable head (rotor top, hinge head, piston top).
	RoleTop
)

type Grid interface {
	ID() GridID
	Closed() bool
	InScene() bool
	HasPhysics() bool
	Blocks() []Block
}

type Block interface {
	ID() BlockID
	// Grid returns nil once the block has been removed.
	Grid() Grid
	Min() Vec3i
	Max() Vec3i
	Role() Role
	// Counterpart is the attached top for a base and the base for a top.
	// It is nil when detached or for RoleNone blocks.
	Counterpart() Block
	Terminal() (Terminal, bool)
}

// Terminal is a block able to carry persisted storage and, optionally,
// references to other blocks.
type Terminal interface {
	Block
	Storage() (string, bool)
	SetStorage(value string)
	Accessors() Accessors
}

// Accessors exposes the reference-bearing fields of a terminal block. A nil
// field means the block has no such capability.
type Accessors struct {
	Toolbar     Toolbar
	Bindings    Bindings
	Selection   BlockSet
	Tools       BlockSet
	Waypoints   WaypointToolbars
	ButtonNames ButtonNames
}

type Toolbar interface {
	SlotCount() int
	// BlockAt reports the block handle of a block-valued slot. ok is false
	// for empty slots and slots holding something other than a block.
	BlockAt(slot int) (id BlockID, ok bool)
	SetBlockAt(slot int, id BlockID)
}

// Bindings are single-valued block references addressed by name, such as a
// remote control camera or turret controller rotors.
type Bindings interface {
	Names() []string
	Bound(name string) BlockID
	Bind(name string, id BlockID)
}

// BlockSet is a set-valued reference list. Changes are applied as deltas so
// unrelated live entries are not disturbed.
type BlockSet interface {
	IDs() []BlockID
	Add(ids []BlockID)
	Remove(ids []BlockID)
}

type WaypointToolbars interface {
	WaypointCount() int
	WaypointToolbar(i int) Toolbar
}

type ButtonNames interface {
	ButtonCount() int
	ButtonName(i int) string
	SetButtonName(i int, name string)
}

// Live reports whether a grid takes part in structure walks.
func Live(g Grid) bool {
	return g != nil && !g.Closed() && g.InScene() && g.HasPhysics()
}
