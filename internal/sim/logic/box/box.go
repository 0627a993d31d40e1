// Package box is the selection box math: which blocks a box selects, the
// paste origin corner and resizing relative to the viewer.
package box

import (
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/orient"
)

// Select returns the blocks of blocks inside b. With intersecting set a
// block only has to touch the box, otherwise it must be fully inside.
func Select(blocks []host.Block, b host.Box, intersecting bool) []host.Block {
	var out []host.Block
	for _, x := range blocks {
		bb := host.Box{Min: x.Min(), Max: x.Max()}
		if intersecting {
			if b.Intersects(bb) {
				out = append(out, x)
			}
			continue
		}
		if b.Contains(bb.Min) && b.Contains(bb.Max) {
			out = append(out, x)
		}
	}
	return out
}

// FindCorner picks the cell of cells closest to the lowest corner of their
// bounding box. Ties go to the earliest cell.
func FindCorner(cells []host.Vec3i) host.Vec3i {
	if len(cells) == 0 {
		return host.Vec3i{}
	}
	floor := cells[0]
	for _, c := range cells[1:] {
		floor = host.MinVec(floor, c)
	}
	best, bestDist := cells[0], -1
	for _, c := range cells {
		d := c.Sub(floor)
		dist := d.Dot(d)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}

// Resize moves the face of b on the viewer's side d by one cell: outwards,
// or back in when shrinking. ok is false when the result would be empty.
func Resize(b host.Box, ds orient.Directions, d orient.Direction, shrink bool) (host.Box, bool) {
	dir := d
	if shrink {
		dir = d.Opposite()
	}
	step := ds.Step(dir)
	axis := step.FirstNonzeroAxis()
	if shrink == (step.Axis(axis) > 0) {
		b.Min = b.Min.Add(step)
	} else {
		b.Max = b.Max.Add(step)
	}
	return b, b.Valid()
}
