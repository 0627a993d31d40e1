// Package mechanical finds the grids mechanically attached to a grid
// (rotors, hinges, pistons) and which of them lose their path to the main
// grid once some connections are cut.
package mechanical

import (
	"sections.ai/internal/sim/host"
)

// Link is one base/top attachment between two different grids.
type Link struct {
	Base     host.Block
	Top      host.Block
	BaseGrid host.GridID
	TopGrid  host.GridID
}

type linkKey struct {
	base host.BlockID
	top  host.BlockID
}

func (l Link) key() linkKey { return linkKey{base: l.Base.ID(), top: l.Top.ID()} }

// Connections is the result of one walk. It is built fresh for every
// operation and never cached.
type Connections struct {
	grids   []host.Grid
	visited map[host.GridID]struct{}
	links   map[linkKey]Link
}

// Walk visits every live grid reachable from root through mechanical links.
// A closed, sceneless or physics-less root yields an empty result.
func Walk(root host.Grid) *Connections {
	c := &Connections{
		visited: map[host.GridID]struct{}{},
		links:   map[linkKey]Link{},
	}
	if root == nil {
		return c
	}

	stack := []host.Grid{root}
	for len(stack) > 0 {
		g := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !host.Live(g) {
			continue
		}
		if _, seen := c.visited[g.ID()]; seen {
			continue
		}
		c.visited[g.ID()] = struct{}{}
		c.grids = append(c.grids, g)

		for _, b := range g.Blocks() {
			link, ok := linkOf(b)
			if !ok {
				continue
			}
			c.links[link.key()] = link

			other := link.Top.Grid()
			if link.TopGrid == g.ID() {
				other = link.Base.Grid()
			}
			if other != nil {
				stack = append(stack, other)
			}
		}
	}
	return c
}

// linkOf returns the attachment a base or top block takes part in, if both
// ends exist on two different grids.
func linkOf(b host.Block) (Link, bool) {
	if b == nil {
		return Link{}, false
	}
	var base, top host.Block
	switch b.Role() {
	case host.RoleBase:
		base, top = b, b.Counterpart()
	case host.RoleTop:
		base, top = b.Counterpart(), b
	default:
		return Link{}, false
	}
	if base == nil || top == nil {
		return Link{}, false
	}
	bg, tg := base.Grid(), top.Grid()
	if bg == nil || tg == nil || bg.ID() == tg.ID() {
		return Link{}, false
	}
	return Link{Base: base, Top: top, BaseGrid: bg.ID(), TopGrid: tg.ID()}, true
}

// Grids returns the visited grids, root first.
func (c *Connections) Grids() []host.Grid {
	return append([]host.Grid(nil), c.grids...)
}

func (c *Connections) Links() []Link {
	out := make([]Link, 0, len(c.links))
	for _, l := range c.links {
		out = append(out, l)
	}
	return out
}

func (c *Connections) LinkCount() int { return len(c.links) }

func (c *Connections) Contains(id host.GridID) bool {
	_, ok := c.visited[id]
	return ok
}

// RemoveConnections drops every link whose base or top is one of blocks.
// Blocks without a valid attachment, and links already gone, are ignored.
func (c *Connections) RemoveConnections(blocks []host.Block) {
	for _, b := range blocks {
		if link, ok := linkOf(b); ok {
			delete(c.links, link.key())
		}
	}
}

// FindUnreachable returns the visited grids that can no longer reach root
// through the remaining links.
func (c *Connections) FindUnreachable(root host.Grid) []host.Grid {
	if root == nil {
		return c.Grids()
	}
	return Partition(c.grids, c.Links(), root.ID())
}

// Partition returns the grids of visited not connected to root by links.
// A grid that was already detached before the operation is reported too.
func Partition(visited []host.Grid, links []Link, root host.GridID) []host.Grid {
	unreachable := make(map[host.GridID]struct{}, len(visited))
	for _, g := range visited {
		unreachable[g.ID()] = struct{}{}
	}

	stack := []host.GridID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := unreachable[id]; !ok {
			continue
		}
		delete(unreachable, id)

		// O(grids*links): fine up to ~100 grids and ~1000 links. Beyond that
		// an adjacency index per grid would bring it down to O(grids*log(links)).
		for _, l := range links {
			switch id {
			case l.BaseGrid:
				stack = append(stack, l.TopGrid)
			case l.TopGrid:
				stack = append(stack, l.BaseGrid)
			}
		}
	}

	out := make([]host.Grid, 0, len(unreachable))
	for _, g := range visited {
		if _, ok := unreachable[g.ID()]; ok {
			out = append(out, g)
		}
	}
	return out
}
