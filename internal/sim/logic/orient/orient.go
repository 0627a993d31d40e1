// Package orient maps the player's view directions onto grid axes, so that
// "forward" while resizing or reading the selection size means what the
// player sees regardless of how the grid is rotated.
package orient

import (
	"fmt"
	"math"

	"sections.ai/internal/sim/host"
)

type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
	Up
	Down
)

var directionNames = [...]string{"forward", "backward", "left", "right", "up", "down"}

func (d Direction) String() string {
	if d < Forward || d > Down {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

func ParseDirection(s string) (Direction, bool) {
	for i, n := range directionNames {
		if n == s {
			return Direction(i), true
		}
	}
	return 0, false
}

func (d Direction) Opposite() Direction { return d ^ 1 }

var intDirections = [...]host.Vec3i{
	Forward:  {Z: -1},
	Backward: {Z: 1},
	Left:     {X: -1},
	Right:    {X: 1},
	Up:       {Y: 1},
	Down:     {Y: -1},
}

// Vector is the unit step of d in grid coordinates.
func (d Direction) Vector() host.Vec3i { return intDirections[d] }

func directionOf(v host.Vec3i) Direction {
	for i, x := range intDirections {
		if x == v {
			return Direction(i)
		}
	}
	return Forward
}

func cross(a, b host.Vec3i) host.Vec3i {
	return host.Vec3i{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// leftOf is the left direction of a frame given its up and forward.
func leftOf(up, forward Direction) Direction {
	return directionOf(cross(up.Vector(), forward.Vector()))
}

type Vec3 [3]float64

func (a Vec3) Dot(b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func (a Vec3) Neg() Vec3 { return Vec3{-a[0], -a[1], -a[2]} }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (a Vec3) Normalize() Vec3 {
	l := math.Sqrt(a.Dot(a))
	if l == 0 {
		return a
	}
	return Vec3{a[0] / l, a[1] / l, a[2] / l}
}

// Frame is an orientation given by world forward and up vectors.
type Frame struct {
	Forward Vec3 `json:"forward"`
	Up      Vec3 `json:"up"`
}

// Identity looks down -Z with +Y up.
var Identity = Frame{Forward: Vec3{0, 0, -1}, Up: Vec3{0, 1, 0}}

// Valid reports whether forward and up are non-zero and not parallel.
func (f Frame) Valid() bool {
	c := f.Forward.Cross(f.Up)
	return c.Dot(c) > 1e-12
}

// Direction is the world vector of the frame's local direction d.
func (f Frame) Direction(d Direction) Vec3 {
	right := f.Forward.Cross(f.Up)
	switch d {
	case Forward:
		return f.Forward
	case Backward:
		return f.Forward.Neg()
	case Up:
		return f.Up
	case Down:
		return f.Up.Neg()
	case Right:
		return right
	default:
		return right.Neg()
	}
}

// Directions maps a viewer direction to the closest grid direction.
type Directions [6]Direction

// Closest finds, for each direction of viewer, the grid direction pointing
// the most the same way. Forward and up are matched together so the result
// is always a proper rotation.
func Closest(grid, viewer Frame) Directions {
	bestForward, bestUp := Forward, Up
	bestFit := math.Inf(-1)

	vf, vu := viewer.Forward.Normalize(), viewer.Up.Normalize()
	for fwd := Forward; fwd <= Down; fwd++ {
		forwardFit := grid.Direction(fwd).Normalize().Dot(vf)
		for up := Forward; up <= Down; up++ {
			if up == fwd || up == fwd.Opposite() {
				continue
			}
			fit := forwardFit + grid.Direction(up).Normalize().Dot(vu)
			if fit > bestFit {
				bestForward, bestUp, bestFit = fwd, up, fit
			}
		}
	}

	left := leftOf(bestUp, bestForward)
	return Directions{
		Forward:  bestForward,
		Backward: bestForward.Opposite(),
		Left:     left,
		Right:    left.Opposite(),
		Up:       bestUp,
		Down:     bestUp.Opposite(),
	}
}

// Step is the grid step for the viewer's direction d.
func (ds Directions) Step(d Direction) host.Vec3i { return ds[d].Vector() }

// SizeText renders the box size as seen by the viewer: width, height, depth.
func (ds Directions) SizeText(b host.Box, sep string) string {
	sz := b.Size()
	x := ds.Step(Right).FirstNonzeroAxis()
	y := ds.Step(Up).FirstNonzeroAxis()
	z := ds.Step(Backward).FirstNonzeroAxis()
	return fmt.Sprintf("%d%s%d%s%d", sz.Axis(x), sep, sz.Axis(y), sep, sz.Axis(z))
}
