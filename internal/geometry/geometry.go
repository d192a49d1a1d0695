package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Geometry holds one instance's raw mesh data before batching: flat xyz
// positions, matching normals, and a triangle index list into them.
type Geometry struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
	Sphere    BoundingSphere
}

// VertexCount returns the number of vertices described by Positions.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// Descriptor describes a geometry that has not been built yet. CreateGeometry
// is the CPU-bound kernel the worker pool runs; it must be safe to call from
// any goroutine.
type Descriptor interface {
	CreateGeometry() (*Geometry, error)
}

// BoundingSphere is a center plus radius in the geometry's own frame until
// transformed.
type BoundingSphere struct {
	Center mgl32.Vec3
	Radius float32
}

// SphereFromPositions bounds the given flat xyz positions: center of the
// axis-aligned box, radius to the farthest point.
func SphereFromPositions(positions []float32) BoundingSphere {
	if len(positions) < 3 {
		return BoundingSphere{}
	}
	min := mgl32.Vec3{positions[0], positions[1], positions[2]}
	max := min
	for i := 3; i+2 < len(positions); i += 3 {
		for a := 0; a < 3; a++ {
			v := positions[i+a]
			if v < min[a] {
				min[a] = v
			}
			if v > max[a] {
				max[a] = v
			}
		}
	}
	center := min.Add(max).Mul(0.5)
	var radius float32
	for i := 0; i+2 < len(positions); i += 3 {
		d := mgl32.Vec3{positions[i], positions[i+1], positions[i+2]}.Sub(center).Len()
		if d > radius {
			radius = d
		}
	}
	return BoundingSphere{Center: center, Radius: radius}
}

// Transform maps the sphere by m. The radius grows by the largest axis scale,
// which is conservative for non-uniform scales.
func (s BoundingSphere) Transform(m mgl32.Mat4) BoundingSphere {
	c := m.Mul4x1(s.Center.Vec4(1)).Vec3()
	scale := float32(0)
	for col := 0; col < 3; col++ {
		l := mgl32.Vec3{m.At(0, col), m.At(1, col), m.At(2, col)}.Len()
		if l > scale {
			scale = l
		}
	}
	return BoundingSphere{Center: c, Radius: s.Radius * scale}
}

// Union returns the smallest sphere containing both s and o.
func (s BoundingSphere) Union(o BoundingSphere) BoundingSphere {
	if s.Radius == 0 {
		return o
	}
	if o.Radius == 0 {
		return s
	}
	d := o.Center.Sub(s.Center).Len()
	if s.Radius >= d+o.Radius {
		return s
	}
	if o.Radius >= d+s.Radius {
		return o
	}
	radius := (d + s.Radius + o.Radius) / 2
	if d > 0 {
		t := (radius - s.Radius) / d
		return BoundingSphere{Center: s.Center.Add(o.Center.Sub(s.Center).Mul(t)), Radius: radius}
	}
	return BoundingSphere{Center: s.Center, Radius: float32(math.Max(float64(s.Radius), float64(o.Radius)))}
}
