package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CombineParams are the global knobs packed into a combine task alongside the
// created geometries.
type CombineParams struct {
	// CompressNormals oct-encodes each normal into two floats, shrinking the
	// vertex stride from 6 to 5.
	CompressNormals bool
}

// Created is one instance's built geometry, tagged with the instance id so
// results can be re-associated regardless of chunk completion order.
type Created struct {
	ID          string
	Geometry    *Geometry
	ModelMatrix mgl32.Mat4
}

// AttribSlot describes one vertex attribute in the combined interleaved
// layout: shader location and float component count.
type AttribSlot struct {
	Name     string
	Location uint32
	Size     int32
}

// PickRange is an instance's slice of the combined index buffer: element
// offset plus index count, usable directly as a draw range.
type PickRange struct {
	Offset uint32
	Count  uint32
}

// Combined is the single merged buffer set produced by the combine kernel.
// After the reply is delivered it is owned exclusively by the pipeline.
type Combined struct {
	Vertices  []float32
	Indices   []uint32
	Stride    int
	Layout    []AttribSlot
	Locations map[string]uint32
	Ranges    map[string]PickRange
	Spheres   map[string]BoundingSphere
	NonEmpty  bool
}

// Combine transforms every created geometry into world space by its model
// matrix and merges all of them into one interleaved vertex buffer and one
// index buffer, recording per-instance draw ranges and bounding spheres.
// An all-empty input yields a Combined with NonEmpty false, not an error.
func Combine(created []Created, params CombineParams) (*Combined, error) {
	normalSize := int32(3)
	if params.CompressNormals {
		normalSize = 2
	}
	layout := []AttribSlot{
		{Name: "position", Location: 0, Size: 3},
		{Name: "normal", Location: 1, Size: normalSize},
	}
	locations := make(map[string]uint32, len(layout))
	stride := 0
	for _, slot := range layout {
		locations[slot.Name] = slot.Location
		stride += int(slot.Size)
	}

	out := &Combined{
		Stride:    stride,
		Layout:    layout,
		Locations: locations,
		Ranges:    make(map[string]PickRange, len(created)),
		Spheres:   make(map[string]BoundingSphere, len(created)),
	}

	var vertexBase uint32
	for _, c := range created {
		if _, dup := out.Ranges[c.ID]; dup {
			return nil, fmt.Errorf("geometry: combine saw instance id %q twice", c.ID)
		}
		g := c.Geometry
		if g == nil || g.VertexCount() == 0 || len(g.Indices) == 0 {
			out.Ranges[c.ID] = PickRange{}
			out.Spheres[c.ID] = BoundingSphere{}
			continue
		}
		normalMat := normalMatrix(c.ModelMatrix)
		for v := 0; v < g.VertexCount(); v++ {
			p := c.ModelMatrix.Mul4x1(mgl32.Vec4{
				g.Positions[v*3], g.Positions[v*3+1], g.Positions[v*3+2], 1,
			})
			out.Vertices = append(out.Vertices, p.X(), p.Y(), p.Z())
			n := normalMat.Mul3x1(mgl32.Vec3{
				g.Normals[v*3], g.Normals[v*3+1], g.Normals[v*3+2],
			}).Normalize()
			if params.CompressNormals {
				ox, oy := octEncode(n)
				out.Vertices = append(out.Vertices, ox, oy)
			} else {
				out.Vertices = append(out.Vertices, n.X(), n.Y(), n.Z())
			}
		}
		offset := uint32(len(out.Indices))
		for _, idx := range g.Indices {
			out.Indices = append(out.Indices, vertexBase+idx)
		}
		out.Ranges[c.ID] = PickRange{Offset: offset, Count: uint32(len(g.Indices))}
		out.Spheres[c.ID] = g.Sphere.Transform(c.ModelMatrix)
		vertexBase += uint32(g.VertexCount())
	}

	out.NonEmpty = len(out.Indices) > 0
	return out, nil
}

// normalMatrix is the inverse transpose of the upper-left 3x3, falling back to
// the plain rotation part when the matrix is singular.
func normalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	inv := m.Inv()
	var zero mgl32.Mat4
	if inv == zero {
		return m.Mat3()
	}
	return inv.Transpose().Mat3()
}

// octEncode maps a unit vector to the octahedral [-1,1]^2 parameterization.
func octEncode(n mgl32.Vec3) (float32, float32) {
	sum := float32(math.Abs(float64(n.X())) + math.Abs(float64(n.Y())) + math.Abs(float64(n.Z())))
	if sum == 0 {
		return 0, 0
	}
	x := n.X() / sum
	y := n.Y() / sum
	if n.Z() < 0 {
		ox := (1 - float32(math.Abs(float64(y)))) * signNotZero(x)
		oy := (1 - float32(math.Abs(float64(x)))) * signNotZero(y)
		return ox, oy
	}
	return x, y
}

// octDecode inverts octEncode.
func octDecode(x, y float32) mgl32.Vec3 {
	z := 1 - float32(math.Abs(float64(x))) - float32(math.Abs(float64(y)))
	if z < 0 {
		ox := (1 - float32(math.Abs(float64(y)))) * signNotZero(x)
		oy := (1 - float32(math.Abs(float64(x)))) * signNotZero(y)
		x, y = ox, oy
	}
	return mgl32.Vec3{x, y, z}.Normalize()
}

func signNotZero(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

// EmptyResultError marks a combine that succeeded but produced nothing
// renderable. It is a pipeline failure, not a worker failure.
type EmptyResultError struct{}

func (e *EmptyResultError) Error() string {
	return "geometry: no renderable geometry produced"
}
