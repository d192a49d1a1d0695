package geometry

import (
	"math/rand"
	"testing"

	"geobatch/internal/task"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCreate(t *testing.T, d Descriptor) *Geometry {
	t.Helper()
	g, err := d.CreateGeometry()
	require.NoError(t, err)
	return g
}

func TestCombineTwoBoxes(t *testing.T) {
	a := mustCreate(t, NewBoxFromDimensions(mgl32.Vec3{1, 1, 1}))
	b := mustCreate(t, NewBoxFromDimensions(mgl32.Vec3{2, 2, 2}))

	combined, err := Combine([]Created{
		{ID: "a", Geometry: a, ModelMatrix: mgl32.Ident4()},
		{ID: "b", Geometry: b, ModelMatrix: mgl32.Translate3D(10, 0, 0)},
	}, CombineParams{})
	require.NoError(t, err)

	assert.True(t, combined.NonEmpty)
	assert.Equal(t, 6, combined.Stride)
	assert.Len(t, combined.Vertices, 48*6)
	assert.Len(t, combined.Indices, 72)

	// Per-instance draw ranges partition the index buffer in input order.
	assert.Equal(t, PickRange{Offset: 0, Count: 36}, combined.Ranges["a"])
	assert.Equal(t, PickRange{Offset: 36, Count: 36}, combined.Ranges["b"])

	// The second box's indices point past the first box's vertices.
	for _, idx := range combined.Indices[36:] {
		assert.GreaterOrEqual(t, idx, uint32(24))
	}

	// Bounding spheres land in world space.
	assert.InDelta(t, 10, float64(combined.Spheres["b"].Center.X()), 1e-5)

	assert.Equal(t, uint32(0), combined.Locations["position"])
	assert.Equal(t, uint32(1), combined.Locations["normal"])
}

func TestCombineAppliesModelMatrix(t *testing.T) {
	g := mustCreate(t, NewBoxFromDimensions(mgl32.Vec3{2, 2, 2}))
	combined, err := Combine([]Created{
		{ID: "x", Geometry: g, ModelMatrix: mgl32.Translate3D(0, 100, 0)},
	}, CombineParams{})
	require.NoError(t, err)

	// Every y position sits around 100 after the transform.
	for v := 0; v < len(combined.Vertices); v += combined.Stride {
		y := combined.Vertices[v+1]
		assert.InDelta(t, 100, float64(y), 1.001)
	}
}

func TestCombineCompressedNormals(t *testing.T) {
	g := mustCreate(t, NewBoxFromDimensions(mgl32.Vec3{1, 1, 1}))
	combined, err := Combine([]Created{
		{ID: "c", Geometry: g, ModelMatrix: mgl32.Ident4()},
	}, CombineParams{CompressNormals: true})
	require.NoError(t, err)

	assert.Equal(t, 5, combined.Stride)
	assert.Len(t, combined.Vertices, 24*5)

	// Decoding the stored oct pair recovers an axis-aligned face normal.
	ox, oy := combined.Vertices[3], combined.Vertices[4]
	n := octDecode(ox, oy)
	assert.InDelta(t, 1, float64(n.Len()), 1e-5)
}

func TestOctEncodingRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := mgl32.Vec3{
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
		}
		if n.Len() < 1e-3 {
			continue
		}
		n = n.Normalize()
		x, y := octEncode(n)
		back := octDecode(x, y)
		assert.InDelta(t, 1, float64(back.Dot(n)), 1e-3, "decode(encode(n)) must stay close to n")
	}
}

func TestCombineEmpty(t *testing.T) {
	combined, err := Combine(nil, CombineParams{})
	require.NoError(t, err)
	assert.False(t, combined.NonEmpty, "empty result is unusable but not an exception")
}

func TestCombineDuplicateID(t *testing.T) {
	g := mustCreate(t, NewBoxFromDimensions(mgl32.Vec3{1, 1, 1}))
	_, err := Combine([]Created{
		{ID: "dup", Geometry: g, ModelMatrix: mgl32.Ident4()},
		{ID: "dup", Geometry: g, ModelMatrix: mgl32.Ident4()},
	}, CombineParams{})
	require.Error(t, err)
}

func TestCreateHandler(t *testing.T) {
	instances, err := NormalizeInstances([]Instance{
		{Descriptor: NewBoxFromDimensions(mgl32.Vec3{1, 1, 1}), ID: "one"},
		{Descriptor: NewSphere(1, 4, 6), ID: "two"},
	})
	require.NoError(t, err)

	value, err := CreateHandler(&task.Call{}, &CreateChunk{Instances: instances})
	require.NoError(t, err)
	result := value.(*CreateResult)
	require.Len(t, result.Created, 2)
	// Order within a chunk is submission order.
	assert.Equal(t, "one", result.Created[0].ID)
	assert.Equal(t, "two", result.Created[1].ID)
}

func TestHandlersRejectWrongPayload(t *testing.T) {
	_, err := CreateHandler(&task.Call{}, "not a chunk")
	var we *task.WorkerError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, task.KindInvalidUsage, we.Kind)

	_, err = CombineHandler(&task.Call{}, 42)
	require.ErrorAs(t, err, &we)
	assert.Equal(t, task.KindInvalidUsage, we.Kind)
}

func BenchmarkCombine(b *testing.B) {
	var created []Created
	for i := 0; i < 64; i++ {
		g, _ := NewSphere(1, 16, 24).CreateGeometry()
		created = append(created, Created{
			ID:          string(rune('a' + i%26)) + string(rune('0'+i/26)),
			Geometry:    g,
			ModelMatrix: mgl32.Translate3D(float32(i), 0, 0),
		})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Combine(created, CombineParams{})
	}
}
