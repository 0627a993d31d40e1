// Package sections is the box selector: a per-player state machine that
// picks an axis-aligned box of blocks on a grid and copies, cuts, deletes or
// saves it together with every subgrid that would otherwise be left
// floating. Block references are backed up before every extraction and
// restored on the next tick after a paste.
package sections

import (
	"errors"

	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/orient"
)

var (
	ErrNoSelection = errors.New("sections: no blocks selected")
	ErrNotLoaded   = errors.New("sections: session not loaded")
)

type State int

const (
	StateInactive State = iota
	StateSelectingFirst
	StateSelectingSecond
	StateResizing
	StateConfirming
)

var stateNames = [...]string{"INACTIVE", "SELECTING_FIRST", "SELECTING_SECOND", "RESIZING", "CONFIRMING"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

type Action string

const (
	ActionActivate        Action = "ACTIVATE"
	ActionAim             Action = "AIM"
	ActionPrimary         Action = "PRIMARY"
	ActionSecondary       Action = "SECONDARY"
	ActionSave            Action = "SAVE"
	ActionDelete          Action = "DELETE"
	ActionResetSelection  Action = "RESET_SELECTION"
	ActionResize          Action = "RESIZE"
	ActionCancel          Action = "CANCEL"
	ActionConfirm         Action = "CONFIRM"
	ActionDecline         Action = "DECLINE"
	ActionClearReferences Action = "CLEAR_REFERENCES"
	ActionPaste           Action = "PASTE"
)

var actions = map[Action]struct{}{
	ActionActivate: {}, ActionAim: {}, ActionPrimary: {}, ActionSecondary: {},
	ActionSave: {}, ActionDelete: {}, ActionResetSelection: {}, ActionResize: {},
	ActionCancel: {}, ActionConfirm: {}, ActionDecline: {}, ActionClearReferences: {},
	ActionPaste: {},
}

func IsKnownAction(a Action) bool {
	_, ok := actions[a]
	return ok
}

// Aim is the cell under the player's crosshair.
type Aim struct {
	Grid host.GridID
	Cell host.Vec3i
}

// Input is one player input event. Modifiers mirror the keyboard: Intersect
// is ctrl (include blocks touching the box), Shrink is shift on resize and
// Force is alt on paste (skip the placement test).
type Input struct {
	Action    Action
	Aim       *Aim
	View      orient.Frame
	Direction orient.Direction
	Shrink    bool
	Intersect bool
	Force     bool
	// Name is the blueprint name on save.
	Name string
	// Onto merges the clipboard into the aimed grid instead of creating
	// new grids. Offset shifts the paste in cells.
	Onto   bool
	Offset host.Vec3i
}

// Result is what the player sees after an input.
type Result struct {
	State   State
	Handled bool
	Notice  string
	Prompt  string
	Box     *host.Box
	Size    string
	Hints   []string
	Op      *Op
}

type OpKind string

const (
	OpCopy    OpKind = "COPY"
	OpCut     OpKind = "CUT"
	OpDelete  OpKind = "DELETE"
	OpSave    OpKind = "SAVE"
	OpPaste   OpKind = "PASTE"
	OpRestore OpKind = "RESTORE"
	OpClear   OpKind = "CLEAR_REFERENCES"
)

// Op is the journal record of one finished operation.
type Op struct {
	Tick   uint64      `json:"tick"`
	Player string      `json:"player,omitempty"`
	Kind   OpKind      `json:"op"`
	GridID host.GridID `json:"grid_id,omitempty"`

	Blocks     int `json:"blocks,omitempty"`
	Grids      int `json:"grids,omitempty"`
	References int `json:"references,omitempty"`

	Repaired int `json:"repaired,omitempty"`
	Dangling int `json:"dangling,omitempty"`
	Pruned   int `json:"pruned,omitempty"`
	Reminted int `json:"reminted,omitempty"`

	Blueprint string `json:"blueprint,omitempty"`
}
