package geometry

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxGeometry(t *testing.T) {
	box := NewBoxFromDimensions(mgl32.Vec3{2, 4, 6})
	g, err := box.CreateGeometry()
	require.NoError(t, err)

	// 4 vertices per face with per-face normals, 2 triangles per face.
	assert.Equal(t, 24, g.VertexCount())
	assert.Len(t, g.Normals, 24*3)
	assert.Len(t, g.Indices, 36)

	sphere := g.Sphere
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, sphere.Center)
	assert.InDelta(t, mgl32.Vec3{1, 2, 3}.Len(), sphere.Radius, 1e-5)
}

func TestBoxDegenerate(t *testing.T) {
	box := BoxGeometry{Min: mgl32.Vec3{1, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	_, err := box.CreateGeometry()
	var de *DegenerateError
	require.ErrorAs(t, err, &de)
}

func TestEllipsoidGeometry(t *testing.T) {
	e := EllipsoidGeometry{Radii: mgl32.Vec3{1, 2, 3}, Stacks: 8, Slices: 12}
	g, err := e.CreateGeometry()
	require.NoError(t, err)

	assert.Equal(t, 9*13, g.VertexCount())
	assert.Len(t, g.Indices, 8*12*6)

	// Normals are unit length.
	for v := 0; v < g.VertexCount(); v++ {
		n := mgl32.Vec3{g.Normals[v*3], g.Normals[v*3+1], g.Normals[v*3+2]}
		assert.InDelta(t, 1.0, n.Len(), 1e-4)
	}

	// Radius bounds the largest semi-axis.
	assert.InDelta(t, 3.0, g.Sphere.Radius, 0.05)
}

func TestSphereFromPositions(t *testing.T) {
	positions := []float32{
		-1, 0, 0,
		1, 0, 0,
		0, 2, 0,
	}
	s := SphereFromPositions(positions)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, s.Center)
	assert.InDelta(t, 1.4142, s.Radius, 1e-3)
}

func TestSphereTransform(t *testing.T) {
	s := BoundingSphere{Center: mgl32.Vec3{1, 0, 0}, Radius: 2}
	moved := s.Transform(mgl32.Translate3D(5, 0, 0))
	assert.Equal(t, mgl32.Vec3{6, 0, 0}, moved.Center)
	assert.InDelta(t, 2, moved.Radius, 1e-5)

	scaled := s.Transform(mgl32.Scale3D(3, 1, 1))
	assert.InDelta(t, 6, scaled.Radius, 1e-5)
}

func TestSphereUnion(t *testing.T) {
	a := BoundingSphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 1}
	b := BoundingSphere{Center: mgl32.Vec3{4, 0, 0}, Radius: 1}
	u := a.Union(b)
	assert.InDelta(t, 3, u.Radius, 1e-5)
	assert.InDelta(t, 2, u.Center.X(), 1e-5)

	// Containment: union with an enclosed sphere is a no-op.
	inner := BoundingSphere{Center: mgl32.Vec3{0.5, 0, 0}, Radius: 0.1}
	assert.Equal(t, a, a.Union(inner))
	assert.Equal(t, a, inner.Union(a))
}

func TestNormalizeInstances(t *testing.T) {
	instances := []Instance{
		{Descriptor: NewBoxFromDimensions(mgl32.Vec3{1, 1, 1})},
		{Descriptor: NewSphere(1, 4, 6), ID: "named"},
	}
	normalized, err := NormalizeInstances(instances)
	require.NoError(t, err)

	assert.NotEmpty(t, normalized[0].ID, "blank ids get generated")
	assert.Equal(t, "named", normalized[1].ID)
	assert.Equal(t, mgl32.Ident4(), normalized[0].ModelMatrix, "zero matrix becomes identity")

	// The caller's slice is untouched.
	assert.Empty(t, instances[0].ID)
}

func TestNormalizeRejectsDuplicates(t *testing.T) {
	instances := []Instance{
		{Descriptor: NewSphere(1, 4, 6), ID: "dup"},
		{Descriptor: NewSphere(1, 4, 6), ID: "dup"},
	}
	_, err := NormalizeInstances(instances)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNormalizeRejectsNilDescriptor(t *testing.T) {
	_, err := NormalizeInstances([]Instance{{}})
	require.Error(t, err)
}
