package primitive

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"geobatch/internal/geometry"
	"geobatch/internal/render"
	"geobatch/internal/scheduler"
	"geobatch/internal/task"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice records uploads so finalization can be asserted without a GL
// context.
type fakeDevice struct {
	uploads     int
	deletes     int
	lastIndices []uint32
	lastLayout  []render.VertexAttrib
}

func (d *fakeDevice) UploadMesh(vertices []float32, indices []uint32, layout []render.VertexAttrib) (*render.Mesh, error) {
	d.uploads++
	d.lastIndices = indices
	d.lastLayout = layout
	return &render.Mesh{VAO: uint32(d.uploads), IndexCount: int32(len(indices))}, nil
}

func (d *fakeDevice) DeleteMesh(*render.Mesh) {
	d.deletes++
}

func newTestContext(t *testing.T, poolSize int, maxActive uint32) *scheduler.Context {
	t.Helper()
	ctx := scheduler.New(task.Capabilities{TransferBuffers: true}, poolSize, maxActive)
	t.Cleanup(func() {
		ctx.Pool.Destroy()
		ctx.Combine.Destroy()
	})
	return ctx
}

func testInstances(n int) []geometry.Instance {
	instances := make([]geometry.Instance, n)
	for i := range instances {
		instances[i] = geometry.Instance{
			Descriptor:  geometry.NewBoxFromDimensions(mgl32.Vec3{1, 1, 1}),
			ModelMatrix: mgl32.Translate3D(float32(i*3), 0, 0),
			ID:          fmt.Sprintf("inst-%d", i),
			Attributes: map[string]geometry.Attribute{
				"color": {Value: []float32{float32(i) / float32(n), 0, 0}},
			},
		}
	}
	return instances
}

// drive polls Update every tick until the pipeline terminates, returning the
// surfaced error if it failed.
func drive(t *testing.T, p *Pipeline, frame *render.Frame) error {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := p.Update(frame); err != nil {
			return err
		}
		if p.Ready() {
			return nil
		}
		if p.State() == StateFailed {
			// The stored error surfaces on the next call.
			return p.Update(frame)
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline stalled in state %s", p.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPipelineReachesComplete(t *testing.T) {
	ctx := newTestContext(t, 2, 0)
	device := &fakeDevice{}
	frame := &render.Frame{Device: device}

	instances := testInstances(10)
	p, err := New(ctx, instances)
	require.NoError(t, err)
	defer p.Destroy()

	require.NoError(t, drive(t, p, frame))
	require.True(t, p.Ready())
	assert.Equal(t, 1, device.uploads)
	assert.Len(t, device.lastIndices, 10*36)

	// Every instance resolves by its original id with its own draw range.
	seen := make(map[geometry.PickRange]bool)
	for _, inst := range instances {
		attrs, ok := p.PerInstanceAttributes(inst.ID)
		require.True(t, ok, "lookup for %s", inst.ID)
		assert.Equal(t, uint32(36), attrs.Range.Count)
		assert.False(t, seen[attrs.Range], "ranges must not overlap")
		seen[attrs.Range] = true
		assert.Equal(t, inst.Attributes["color"], attrs.Attributes["color"])
	}
	assert.Greater(t, p.WorldBoundingSphere().Radius, float32(10))
}

func TestUpdateAfterCompleteIsNoop(t *testing.T) {
	ctx := newTestContext(t, 2, 0)
	device := &fakeDevice{}
	frame := &render.Frame{Device: device}

	p, err := New(ctx, testInstances(3))
	require.NoError(t, err)
	defer p.Destroy()
	require.NoError(t, drive(t, p, frame))

	mesh := p.Mesh()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Update(frame))
	}
	assert.Equal(t, StateComplete, p.State())
	assert.Same(t, mesh, p.Mesh())
	assert.Equal(t, 1, device.uploads, "no new work after completion")
}

func TestZeroInstancesFailWithEmptyResult(t *testing.T) {
	ctx := newTestContext(t, 1, 0)
	frame := &render.Frame{Device: &fakeDevice{}}

	p, err := New(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, p.Update(frame))
	assert.Equal(t, StateFailed, p.State())
	assert.False(t, p.Ready(), "a failed pipeline is never ready")

	err = p.Update(frame)
	var empty *geometry.EmptyResultError
	require.ErrorAs(t, err, &empty)

	// Surfaced once; later calls are no-ops.
	assert.NoError(t, p.Update(frame))
	assert.Equal(t, StateFailed, p.State())
}

// slowDescriptor blocks creation until its gate opens, letting tests hold a
// pool slot at its concurrency ceiling.
type slowDescriptor struct {
	gate  chan struct{}
	inner geometry.Descriptor
}

func (d slowDescriptor) CreateGeometry() (*geometry.Geometry, error) {
	<-d.gate
	return d.inner.CreateGeometry()
}

func TestBusyRetryDuringCreating(t *testing.T) {
	// One slot with a ceiling of one: the pipeline's chunk gets refused while
	// the occupier holds the slot, and must be retried without loss.
	ctx := newTestContext(t, 1, 1)
	device := &fakeDevice{}
	frame := &render.Frame{Device: device}

	gate := make(chan struct{})
	occupier, err := geometry.NormalizeInstances([]geometry.Instance{{
		Descriptor: slowDescriptor{gate: gate, inner: geometry.NewBoxFromDimensions(mgl32.Vec3{1, 1, 1})},
		ID:         "occupier",
	}})
	require.NoError(t, err)
	occupierFut := ctx.Pool.Slot(0).Schedule(&geometry.CreateChunk{Instances: occupier}, nil)
	require.NotNil(t, occupierFut)

	p, err := New(ctx, testInstances(5))
	require.NoError(t, err)
	defer p.Destroy()

	// The slot is saturated: updates keep retrying without progress.
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Update(frame))
		assert.Equal(t, StateCreating, p.State())
	}

	close(gate)
	require.NoError(t, drive(t, p, frame))

	for i := 0; i < 5; i++ {
		attrs, ok := p.PerInstanceAttributes(fmt.Sprintf("inst-%d", i))
		require.True(t, ok, "instance %d lost across busy retries", i)
		assert.Equal(t, uint32(36), attrs.Range.Count)
	}
	assert.Len(t, device.lastIndices, 5*36, "no duplication across busy retries")
}

func TestRuntimeErrorDuringCombine(t *testing.T) {
	caps := task.Capabilities{TransferBuffers: true}
	ctx := &scheduler.Context{
		Caps: caps,
		Pool: task.NewPool("createGeometry", geometry.CreateHandler, 1, 0, caps),
		Combine: task.NewProcessor("combineGeometry", func(*task.Call, any) (any, error) {
			panic("combine exploded")
		}, 0, caps),
	}
	t.Cleanup(func() {
		ctx.Pool.Destroy()
		ctx.Combine.Destroy()
	})

	p, err := New(ctx, testInstances(2))
	require.NoError(t, err)

	err = drive(t, p, &render.Frame{Device: &fakeDevice{}})
	var we *task.WorkerError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, task.KindRuntime, we.Kind)
	assert.Equal(t, "combine exploded", we.Message)

	assert.Equal(t, StateFailed, p.State())
	assert.NoError(t, p.Update(&render.Frame{}), "error surfaces only once")
}

// shufflingBuilder randomizes the order of created results to simulate
// arbitrary chunk completion order.
type shufflingBuilder struct {
	GeometryBuilder
	rng *rand.Rand
}

func (b *shufflingBuilder) PollCreate() ([]geometry.Created, bool, error) {
	created, done, err := b.GeometryBuilder.PollCreate()
	if done && err == nil {
		b.rng.Shuffle(len(created), func(i, j int) {
			created[i], created[j] = created[j], created[i]
		})
	}
	return created, done, err
}

func TestLookupStableUnderShuffledCompletion(t *testing.T) {
	ctx := newTestContext(t, 4, 0)
	frame := &render.Frame{Device: &fakeDevice{}}

	// Alternate two descriptors with distinct index counts so a positional
	// mixup would be visible.
	instances := make([]geometry.Instance, 12)
	for i := range instances {
		if i%2 == 0 {
			instances[i] = geometry.Instance{
				Descriptor: geometry.NewBoxFromDimensions(mgl32.Vec3{1, 1, 1}),
				ID:         fmt.Sprintf("box-%d", i),
			}
		} else {
			instances[i] = geometry.Instance{
				Descriptor: geometry.NewSphere(1, 4, 6),
				ID:         fmt.Sprintf("sphere-%d", i),
			}
		}
	}

	p, err := New(ctx, instances,
		WithBuilder(&shufflingBuilder{GeometryBuilder: NewAsyncBuilder(ctx), rng: rand.New(rand.NewSource(11))}))
	require.NoError(t, err)
	defer p.Destroy()
	require.NoError(t, drive(t, p, frame))

	for i := range instances {
		attrs, ok := p.PerInstanceAttributes(instances[i].ID)
		require.True(t, ok)
		if i%2 == 0 {
			assert.Equal(t, uint32(36), attrs.Range.Count, "box %d got the wrong range", i)
		} else {
			assert.Equal(t, uint32(4*6*6), attrs.Range.Count, "sphere %d got the wrong range", i)
		}
	}
}

func TestInlineBuilderSameContract(t *testing.T) {
	device := &fakeDevice{}
	frame := &render.Frame{Device: device}

	p, err := New(nil, testInstances(4), WithInlineBuilder(), WithReleaseInstances())
	require.NoError(t, err)
	defer p.Destroy()

	// No suspension points: one transition per call, five calls to complete.
	states := []State{StateCreating, StateCreated, StateCombining, StateCombined, StateComplete}
	for _, want := range states {
		require.NoError(t, p.Update(frame))
		assert.Equal(t, want, p.State())
	}
	require.True(t, p.Ready())
	assert.Equal(t, 1, device.uploads)

	attrs, ok := p.PerInstanceAttributes("inst-2")
	require.True(t, ok)
	assert.Equal(t, uint32(36), attrs.Range.Count)
}

func TestDestroyReleasesMesh(t *testing.T) {
	ctx := newTestContext(t, 1, 0)
	device := &fakeDevice{}

	p, err := New(ctx, testInstances(2))
	require.NoError(t, err)
	require.NoError(t, drive(t, p, &render.Frame{Device: device}))

	p.Destroy()
	assert.Equal(t, 1, device.deletes)
	assert.Nil(t, p.Mesh())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.True(t, StateComplete.Terminal())
	assert.False(t, StateCombining.Terminal())
}
