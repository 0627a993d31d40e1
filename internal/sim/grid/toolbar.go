package grid

import "sections.ai/internal/sim/host"

type SlotKind string

const (
	SlotEmpty SlotKind = ""
	SlotBlock SlotKind = "BLOCK"
	// SlotOther is anything that does not point at a block (weapons, emotes...).
	SlotOther SlotKind = "OTHER"
)

type Slot struct {
	Kind   SlotKind     `json:"kind,omitempty"`
	Block  host.BlockID `json:"block,omitempty"`
	Action string       `json:"action,omitempty"`
}

type Toolbar struct {
	owner *Block
	slots []Slot
}

func newToolbar(owner *Block, n int) *Toolbar {
	return &Toolbar{owner: owner, slots: make([]Slot, n)}
}

func (t *Toolbar) SlotCount() int { return len(t.slots) }

func (t *Toolbar) BlockAt(slot int) (host.BlockID, bool) {
	if slot < 0 || slot >= len(t.slots) || t.slots[slot].Kind != SlotBlock {
		return 0, false
	}
	return t.slots[slot].Block, true
}

// SetBlockAt repoints a block slot, keeping its action.
func (t *Toolbar) SetBlockAt(slot int, id host.BlockID) {
	if slot < 0 || slot >= len(t.slots) {
		return
	}
	s := t.slots[slot]
	s.Kind = SlotBlock
	s.Block = id
	t.slots[slot] = s
	t.owner.refWrite()
}

func (t *Toolbar) Slot(i int) Slot {
	if i < 0 || i >= len(t.slots) {
		return Slot{}
	}
	return t.slots[i]
}

// Set replaces a slot as a player would; it is not counted as a reference
// repair.
func (t *Toolbar) Set(i int, s Slot) {
	if i < 0 || i >= len(t.slots) {
		return
	}
	t.slots[i] = s
}

func (t *Toolbar) Slots() []Slot {
	return append([]Slot(nil), t.slots...)
}
