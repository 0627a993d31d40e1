package ws

import (
	"fmt"
	"strings"

	"sections.ai/internal/protocol"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/orient"
	"sections.ai/internal/sim/sections"
)

// ToInput validates an INPUT message and converts it to a selector input.
func ToInput(m protocol.InputMsg) (sections.Input, error) {
	in := sections.Input{
		Action:    sections.Action(strings.ToUpper(strings.TrimSpace(m.Action))),
		Shrink:    m.Shrink,
		Intersect: m.Intersect,
		Force:     m.Force,
		Name:      m.Name,
		Onto:      m.Onto,
	}
	if !sections.IsKnownAction(in.Action) {
		return in, fmt.Errorf("unknown action %q", m.Action)
	}
	if m.Aim != nil {
		if m.Aim.GridID <= 0 {
			return in, fmt.Errorf("aim.grid_id must be positive")
		}
		in.Aim = &sections.Aim{Grid: host.GridID(m.Aim.GridID), Cell: vec(m.Aim.Cell)}
	}
	if m.View != nil {
		f := orient.Frame{Forward: orient.Vec3(m.View.Forward), Up: orient.Vec3(m.View.Up)}
		if !f.Valid() {
			return in, fmt.Errorf("view forward and up must be non-zero and not parallel")
		}
		in.View = f
	}
	if m.Direction != "" {
		d, ok := orient.ParseDirection(strings.ToLower(m.Direction))
		if !ok {
			return in, fmt.Errorf("unknown direction %q", m.Direction)
		}
		in.Direction = d
	} else if in.Action == sections.ActionResize {
		return in, fmt.Errorf("RESIZE needs a direction")
	}
	if m.Offset != nil {
		in.Offset = vec(*m.Offset)
	}
	return in, nil
}

// FromResult builds the STATE reply for input seq.
func FromResult(seq uint64, res sections.Result) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:    protocol.TypeState,
		Seq:     seq,
		State:   res.State.String(),
		Handled: res.Handled,
		Notice:  res.Notice,
		Prompt:  res.Prompt,
		Size:    res.Size,
		Hints:   res.Hints,
	}
	if res.Box != nil {
		msg.Box = &protocol.BoxRef{Min: ref(res.Box.Min), Max: ref(res.Box.Max)}
	}
	if op := res.Op; op != nil {
		msg.Op = &protocol.OpRef{
			Kind:       string(op.Kind),
			GridID:     int64(op.GridID),
			Blocks:     op.Blocks,
			Grids:      op.Grids,
			References: op.References,
			Repaired:   op.Repaired,
			Blueprint:  op.Blueprint,
		}
	}
	return msg
}

func vec(v protocol.Vec3i) host.Vec3i { return host.Vec3i{X: v.X, Y: v.Y, Z: v.Z} }
func ref(v host.Vec3i) protocol.Vec3i { return protocol.Vec3i{X: v.X, Y: v.Y, Z: v.Z} }
