package host

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3i) Dot(o Vec3i) int   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Axis returns component i (0=X, 1=Y, 2=Z).
func (v Vec3i) Axis(i int) int {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// FirstNonzeroAxis returns the index of the first nonzero component or -1.
func (v Vec3i) FirstNonzeroAxis() int {
	for i := 0; i < 3; i++ {
		if v.Axis(i) != 0 {
			return i
		}
	}
	return -1
}

func MinVec(a, b Vec3i) Vec3i {
	return Vec3i{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
}

func MaxVec(a, b Vec3i) Vec3i {
	return Vec3i{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
}

// Box is an inclusive axis-aligned integer box.
type Box struct {
	Min Vec3i `json:"min"`
	Max Vec3i `json:"max"`
}

func BoxOf(a, b Vec3i) Box { return Box{Min: MinVec(a, b), Max: MaxVec(a, b)} }

func (b Box) Valid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

func (b Box) Contains(p Vec3i) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Box) Intersects(o Box) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// Size is the number of cells along each axis.
func (b Box) Size() Vec3i {
	return Vec3i{X: b.Max.X - b.Min.X + 1, Y: b.Max.Y - b.Min.Y + 1, Z: b.Max.Z - b.Min.Z + 1}
}
