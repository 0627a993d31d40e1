package sections

import (
	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
)

// RestoreQueue holds grids waiting for reference restore. Pasted grids are
// not settled into the scene when the paste hook runs, so they are restored
// on the next tick instead.
type RestoreQueue struct {
	pending []*grid.Grid
}

func (q *RestoreQueue) Enqueue(g *grid.Grid) {
	if g != nil {
		q.pending = append(q.pending, g)
	}
}

func (q *RestoreQueue) Len() int { return len(q.pending) }

func (q *RestoreQueue) Clear() { q.pending = nil }

// Drain removes and returns up to limit distinct grids in arrival order. A
// limit of 0 or less drains everything. Grids over the limit stay queued,
// deduplicated.
func (q *RestoreQueue) Drain(limit int) []*grid.Grid {
	seen := make(map[host.GridID]struct{}, len(q.pending))
	var out, rest []*grid.Grid
	for _, g := range q.pending {
		if _, dup := seen[g.ID()]; dup {
			continue
		}
		seen[g.ID()] = struct{}{}
		if limit > 0 && len(out) >= limit {
			rest = append(rest, g)
			continue
		}
		out = append(out, g)
	}
	q.pending = rest
	return out
}
