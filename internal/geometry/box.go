package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BoxGeometry describes an axis-aligned box between two corners.
type BoxGeometry struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewBoxFromDimensions centers a box of the given extents on the origin.
func NewBoxFromDimensions(dimensions mgl32.Vec3) BoxGeometry {
	half := dimensions.Mul(0.5)
	return BoxGeometry{Min: half.Mul(-1), Max: half}
}

// boxFaces enumerates the six faces as outward normal plus the four corner
// selectors (0 picks Min, 1 picks Max) in counter-clockwise order.
var boxFaces = [6]struct {
	normal  mgl32.Vec3
	corners [4][3]int
}{
	{mgl32.Vec3{1, 0, 0}, [4][3]int{{1, 0, 1}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}}},
	{mgl32.Vec3{-1, 0, 0}, [4][3]int{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{mgl32.Vec3{0, 1, 0}, [4][3]int{{0, 1, 1}, {1, 1, 1}, {1, 1, 0}, {0, 1, 0}}},
	{mgl32.Vec3{0, -1, 0}, [4][3]int{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{mgl32.Vec3{0, 0, 1}, [4][3]int{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{mgl32.Vec3{0, 0, -1}, [4][3]int{{1, 0, 0}, {0, 0, 0}, {0, 1, 0}, {1, 1, 0}}},
}

// CreateGeometry builds 4 vertices per face with per-face normals, 24 vertices
// and 36 indices total.
func (b BoxGeometry) CreateGeometry() (*Geometry, error) {
	if b.Min.X() >= b.Max.X() || b.Min.Y() >= b.Max.Y() || b.Min.Z() >= b.Max.Z() {
		return nil, &DegenerateError{What: "box with non-positive extent"}
	}
	corners := [2]mgl32.Vec3{b.Min, b.Max}
	positions := make([]float32, 0, 24*3)
	normals := make([]float32, 0, 24*3)
	indices := make([]uint32, 0, 36)

	for _, face := range boxFaces {
		base := uint32(len(positions) / 3)
		for _, sel := range face.corners {
			positions = append(positions,
				corners[sel[0]].X(), corners[sel[1]].Y(), corners[sel[2]].Z())
			normals = append(normals, face.normal.X(), face.normal.Y(), face.normal.Z())
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	return &Geometry{
		Positions: positions,
		Normals:   normals,
		Indices:   indices,
		Sphere:    SphereFromPositions(positions),
	}, nil
}

// DegenerateError reports a descriptor that cannot yield renderable geometry.
type DegenerateError struct {
	What string
}

func (e *DegenerateError) Error() string {
	return "geometry: degenerate descriptor: " + e.What
}
