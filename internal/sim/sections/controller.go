package sections

import (
	"fmt"

	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/box"
	"sections.ai/internal/sim/logic/orient"
)

const configurationHint = "You can disable this confirmation in the configuration."

// Controller is the box selector of one player.
type Controller struct {
	s      *Session
	player string

	state State
	grid  *grid.Grid
	first *grid.Block
	aimed *grid.Block
	view  orient.Frame

	box      host.Box
	original host.Box

	pending   *confirmation
	clipboard []grid.Builder
}

type confirmation struct {
	prompt string
	back   State
	run    func() Result
}

func newController(s *Session, player string) *Controller {
	return &Controller{s: s, player: player, view: orient.Identity}
}

func (c *Controller) State() State { return c.state }

// Clipboard returns the grids of the last copy or cut.
func (c *Controller) Clipboard() []grid.Builder { return c.clipboard }

// Box returns the current selection box, if any.
func (c *Controller) Box() (host.Box, bool) {
	if c.grid == nil {
		return host.Box{}, false
	}
	if c.state != StateSelectingSecond && c.state != StateResizing && c.state != StateConfirming {
		return host.Box{}, false
	}
	return c.box, c.box.Valid()
}

// Reset drops the selection and any pending confirmation. The clipboard is
// kept.
func (c *Controller) Reset() {
	c.state = StateInactive
	c.grid = nil
	c.first = nil
	c.aimed = nil
	c.box = host.Box{}
	c.original = host.Box{}
	c.pending = nil
}

// Handle advances the state machine by one input.
func (c *Controller) Handle(in Input) Result {
	if in.View.Valid() {
		c.view = in.View
	}
	if c.state != StateConfirming {
		c.aimed = c.aimedBlock(in.Aim, nil)
	}

	var res Result
	switch c.state {
	case StateInactive:
		res = c.handleInactive(in)
	case StateSelectingFirst:
		res = c.handleSelectingFirst(in)
	case StateSelectingSecond:
		res = c.handleSelectingSecond(in)
	case StateResizing:
		res = c.handleResizing(in)
	case StateConfirming:
		res = c.handleConfirming(in)
	}
	return c.decorate(res)
}

func (c *Controller) handleInactive(in Input) Result {
	switch in.Action {
	case ActionActivate:
		c.state = StateSelectingFirst
		return Result{Handled: true}
	case ActionPaste:
		return c.paste(in)
	}
	return Result{}
}

func (c *Controller) handleSelectingFirst(in Input) Result {
	if in.Action == ActionCancel {
		c.Reset()
		return Result{Handled: true}
	}

	c.first = c.aimed
	c.grid = nil
	if c.first != nil {
		c.grid = c.first.CubeGrid()
	}
	if c.first == nil || c.grid == nil {
		return Result{}
	}

	switch in.Action {
	case ActionClearReferences:
		target := c.grid
		c.Reset()
		return c.ask(StateInactive, "Clear all block reference data from this grid and all connected subgrids?", func() Result {
			return c.clearReferences(target)
		})
	case ActionPrimary:
		c.state = StateSelectingSecond
		c.box = c.first.Box()
		c.original = c.box
		return Result{Handled: true}
	}
	return Result{}
}

func (c *Controller) handleSelectingSecond(in Input) Result {
	if in.Action == ActionCancel {
		c.Reset()
		return Result{Handled: true}
	}

	second := c.aimedBlock(in.Aim, c.grid)
	if second == nil {
		return Result{}
	}
	c.box = host.Box{
		Min: host.MinVec(c.first.Min(), second.Min()),
		Max: host.MaxVec(c.first.Max(), second.Max()),
	}
	c.original = c.box

	switch in.Action {
	case ActionPrimary:
		c.state = StateResizing
		return Result{Handled: true}
	case ActionAim:
		return Result{Handled: true}
	}
	return Result{}
}

func (c *Controller) handleResizing(in Input) Result {
	c.ensureAimedBlockIsInsideSelection()

	switch in.Action {
	case ActionCancel:
		c.Reset()
		return Result{Handled: true}

	case ActionPrimary:
		res := c.copy(in.Intersect)
		c.Reset()
		return res

	case ActionSecondary:
		intersect := in.Intersect
		if c.s.tune.Sections.CutConfirmation {
			return c.ask(StateResizing, "Cut the selected blocks? "+configurationHint, func() Result {
				res := c.cut(intersect)
				c.Reset()
				return res
			})
		}
		res := c.cut(intersect)
		c.Reset()
		return res

	case ActionSave:
		return c.save(in)

	case ActionResetSelection:
		c.box = c.original
		return Result{Handled: true}

	case ActionDelete:
		intersect := in.Intersect
		if c.s.tune.Sections.DeleteConfirmation {
			return c.ask(StateResizing, "Delete the selected blocks? "+configurationHint, func() Result {
				res := c.delete(intersect)
				c.Reset()
				return res
			})
		}
		res := c.delete(intersect)
		c.Reset()
		return res

	case ActionResize:
		if in.Direction < orient.Forward || in.Direction > orient.Down {
			return Result{Notice: "unknown resize direction"}
		}
		if b, ok := box.Resize(c.box, c.directions(), in.Direction, in.Shrink); ok {
			c.box = b
		}
		return Result{Handled: true}

	case ActionAim:
		return Result{Handled: true}
	}
	return Result{}
}

func (c *Controller) handleConfirming(in Input) Result {
	p := c.pending
	switch in.Action {
	case ActionConfirm:
		c.pending = nil
		c.state = p.back
		return p.run()
	case ActionDecline, ActionCancel:
		c.pending = nil
		c.state = p.back
		return Result{Handled: true}
	}
	return Result{Prompt: p.prompt}
}

// ask parks the controller until the player answers. back is the state
// both answers return to before run executes.
func (c *Controller) ask(back State, prompt string, run func() Result) Result {
	c.pending = &confirmation{prompt: prompt, back: back, run: run}
	c.state = StateConfirming
	return Result{Handled: true, Prompt: prompt}
}

// ensureAimedBlockIsInsideSelection forgets an aimed block that does not
// touch the selection, so it cannot become the paste origin.
func (c *Controller) ensureAimedBlockIsInsideSelection() {
	if c.aimed == nil {
		return
	}
	if c.aimed.CubeGrid() != c.grid || !c.box.Intersects(c.aimed.Box()) {
		c.aimed = nil
	}
}

func (c *Controller) aimedBlock(aim *Aim, required *grid.Grid) *grid.Block {
	if aim == nil {
		return nil
	}
	g, ok := c.s.world.Grid(aim.Grid)
	if !ok || g.Closed() {
		return nil
	}
	if required != nil && g != required {
		return nil
	}
	return g.BlockAt(aim.Cell)
}

// directions maps viewer-relative directions onto the selected grid.
func (c *Controller) directions() orient.Directions {
	return orient.Closest(orient.Identity, c.view)
}

func (c *Controller) decorate(res Result) Result {
	res.State = c.state
	if c.state == StateConfirming && res.Prompt == "" && c.pending != nil {
		res.Prompt = c.pending.prompt
	}
	if b, ok := c.Box(); ok {
		res.Box = &b
		if c.s.tune.Sections.ShowSize {
			res.Size = c.directions().SizeText(b, " x ")
		}
	}
	if c.s.tune.Sections.ShowHints {
		res.Hints = hints[c.state]
	}
	return res
}

var hints = map[State][]string{
	StateInactive: {
		"ACTIVATE: start selecting",
	},
	StateSelectingFirst: {
		"PRIMARY: pick the first corner block",
		"CLEAR_REFERENCES: drop stored reference data",
		"CANCEL: leave",
	},
	StateSelectingSecond: {
		"PRIMARY: pick the second corner block",
		"CANCEL: leave",
	},
	StateResizing: {
		"PRIMARY: copy, SECONDARY: cut",
		"SAVE: save blueprint, DELETE: delete",
		"RESIZE: grow a face, shift shrinks",
		"ctrl: include intersecting blocks",
		"RESET_SELECTION: undo resizing",
	},
	StateConfirming: {
		"CONFIRM or DECLINE",
	},
}

func (c *Controller) String() string {
	return fmt.Sprintf("sections[%s %s]", c.player, c.state)
}
