package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// EllipsoidGeometry describes an origin-centered ellipsoid tessellated as a
// latitude/longitude grid.
type EllipsoidGeometry struct {
	Radii  mgl32.Vec3
	Stacks int
	Slices int
}

// NewSphere is a convenience for a uniform ellipsoid.
func NewSphere(radius float32, stacks, slices int) EllipsoidGeometry {
	return EllipsoidGeometry{Radii: mgl32.Vec3{radius, radius, radius}, Stacks: stacks, Slices: slices}
}

// CreateGeometry builds a (Stacks+1)x(Slices+1) vertex grid with analytic
// ellipsoid normals and two triangles per grid cell.
func (e EllipsoidGeometry) CreateGeometry() (*Geometry, error) {
	if e.Radii.X() <= 0 || e.Radii.Y() <= 0 || e.Radii.Z() <= 0 {
		return nil, &DegenerateError{What: "ellipsoid with non-positive radius"}
	}
	stacks, slices := e.Stacks, e.Slices
	if stacks < 2 {
		stacks = 2
	}
	if slices < 3 {
		slices = 3
	}

	rows := stacks + 1
	cols := slices + 1
	positions := make([]float32, 0, rows*cols*3)
	normals := make([]float32, 0, rows*cols*3)

	for i := 0; i < rows; i++ {
		// phi from north pole to south pole
		phi := math.Pi * float64(i) / float64(stacks)
		sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
		for j := 0; j < cols; j++ {
			theta := 2 * math.Pi * float64(j) / float64(slices)
			dir := mgl32.Vec3{
				float32(sinPhi * math.Cos(theta)),
				float32(cosPhi),
				float32(sinPhi * math.Sin(theta)),
			}
			p := mgl32.Vec3{dir.X() * e.Radii.X(), dir.Y() * e.Radii.Y(), dir.Z() * e.Radii.Z()}
			positions = append(positions, p.X(), p.Y(), p.Z())
			// Ellipsoid normal is the gradient of the implicit surface,
			// p scaled by 1/r^2 per axis.
			n := mgl32.Vec3{
				p.X() / (e.Radii.X() * e.Radii.X()),
				p.Y() / (e.Radii.Y() * e.Radii.Y()),
				p.Z() / (e.Radii.Z() * e.Radii.Z()),
			}.Normalize()
			normals = append(normals, n.X(), n.Y(), n.Z())
		}
	}

	indices := make([]uint32, 0, stacks*slices*6)
	for i := 0; i < stacks; i++ {
		for j := 0; j < slices; j++ {
			a := uint32(i*cols + j)
			b := a + uint32(cols)
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}

	return &Geometry{
		Positions: positions,
		Normals:   normals,
		Indices:   indices,
		Sphere:    SphereFromPositions(positions),
	}, nil
}
