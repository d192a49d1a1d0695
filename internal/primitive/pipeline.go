package primitive

import (
	"fmt"

	"geobatch/internal/geometry"
	"geobatch/internal/profiling"
	"geobatch/internal/render"
	"geobatch/internal/scheduler"
)

// InstanceAttributes is one instance's entry in the batched lookup table:
// its per-instance shading inputs, its slice of the combined index buffer,
// and its world-space bounds.
type InstanceAttributes struct {
	Attributes map[string]geometry.Attribute
	PickOwner  any
	Range      geometry.PickRange
	Sphere     geometry.BoundingSphere
}

// Option configures a pipeline at construction.
type Option func(*Pipeline)

// WithInlineBuilder makes every stage run synchronously on the calling
// goroutine instead of through the worker pool.
func WithInlineBuilder() Option {
	return func(p *Pipeline) { p.builder = NewInlineBuilder() }
}

// WithBuilder installs a custom builder, mainly for tests.
func WithBuilder(b GeometryBuilder) Option {
	return func(p *Pipeline) { p.builder = b }
}

// WithCombineParams overrides the global combine parameters.
func WithCombineParams(params geometry.CombineParams) Option {
	return func(p *Pipeline) { p.params = params }
}

// WithReleaseInstances frees the pipeline's instance copy once the mesh is
// uploaded, trading re-batching ability for memory.
func WithReleaseInstances() Option {
	return func(p *Pipeline) { p.releaseInstances = true }
}

// Pipeline drives a set of geometry instances from description to one
// GPU-ready batched mesh. Update advances the state machine at most one stage
// per call and never blocks on worker progress; callers poll it every tick.
type Pipeline struct {
	builder          GeometryBuilder
	state            State
	err              error
	params           geometry.CombineParams
	releaseInstances bool

	// instances is the pipeline's normalized private copy; order records the
	// ids in pipeline order before any dispatch so lookups stay independent
	// of completion order.
	instances []geometry.Instance
	order     []string

	created  []geometry.Created
	combined *geometry.Combined

	device      render.Device
	mesh        *render.Mesh
	attrs       map[string]*InstanceAttributes
	worldSphere geometry.BoundingSphere
}

// New validates and snapshots the instance list. The caller keeps ownership
// of instances; the pipeline never mutates them. Construction problems
// (nil descriptor, duplicate ids) are reported synchronously.
func New(sched *scheduler.Context, instances []geometry.Instance, opts ...Option) (*Pipeline, error) {
	normalized, err := geometry.NormalizeInstances(instances)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		state:     StateReady,
		instances: normalized,
		order:     make([]string, len(normalized)),
	}
	for i, inst := range normalized {
		p.order[i] = inst.ID
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.builder == nil {
		p.builder = NewAsyncBuilder(sched)
	}
	return p, nil
}

// State returns the current lifecycle stage.
func (p *Pipeline) State() State {
	return p.state
}

// Ready reports whether the batched mesh is uploaded and lookups are valid.
// A failed pipeline is never ready.
func (p *Pipeline) Ready() bool {
	return p.state == StateComplete
}

// Update advances the state machine one stage and returns any deferred
// failure. A rejection inside a worker is stored and surfaced here, on the
// caller's own call site, the first Update after the failure was detected;
// after that the pipeline stays Failed and Update returns nil.
func (p *Pipeline) Update(frame *render.Frame) error {
	defer profiling.Track("primitive.Update")()

	switch p.state {
	case StateComplete:
		return nil

	case StateFailed:
		// Surface the stored error exactly once, then release what is left.
		err := p.err
		p.err = nil
		p.instances = nil
		p.created = nil
		p.combined = nil
		return err

	case StateReady:
		if len(p.instances) == 0 {
			p.fail(&geometry.EmptyResultError{})
			return nil
		}
		if err := p.builder.StartCreate(p.instances); err != nil {
			p.fail(err)
			return nil
		}
		p.state = StateCreating

	case StateCreating:
		created, done, err := p.builder.PollCreate()
		if err != nil {
			p.fail(err)
			return nil
		}
		if !done {
			return nil
		}
		if err := p.checkCreated(created); err != nil {
			p.fail(err)
			return nil
		}
		p.created = created
		p.state = StateCreated

	case StateCreated:
		started, err := p.builder.StartCombine(p.created, p.params)
		if err != nil {
			p.fail(err)
			return nil
		}
		if !started {
			// Combine worker busy; retry on a later tick.
			return nil
		}
		p.state = StateCombining

	case StateCombining:
		combined, done, err := p.builder.PollCombine()
		if err != nil {
			p.fail(err)
			return nil
		}
		if !done {
			return nil
		}
		if !combined.NonEmpty {
			p.fail(&geometry.EmptyResultError{})
			return nil
		}
		p.combined = combined
		p.created = nil
		p.state = StateCombined

	case StateCombined:
		// Deliberately synchronous: mesh handles cannot cross the worker
		// boundary, so the upload happens on the render goroutine.
		if err := p.finalize(frame); err != nil {
			p.fail(err)
			return nil
		}
		p.state = StateComplete
	}
	return nil
}

// fail stores the triggering error for deferred surfacing on the next Update.
func (p *Pipeline) fail(err error) {
	p.state = StateFailed
	p.err = err
}

// checkCreated verifies nothing was lost or duplicated across the fan-out:
// every dispatched instance id comes back exactly once.
func (p *Pipeline) checkCreated(created []geometry.Created) error {
	if len(created) != len(p.order) {
		return fmt.Errorf("primitive: created %d geometries for %d instances", len(created), len(p.order))
	}
	seen := make(map[string]struct{}, len(created))
	for _, c := range created {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("primitive: instance %q created twice", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	for _, id := range p.order {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("primitive: instance %q missing from created results", id)
		}
	}
	return nil
}

func (p *Pipeline) finalize(frame *render.Frame) error {
	defer profiling.Track("primitive.finalize")()

	if frame == nil || frame.Device == nil {
		return fmt.Errorf("primitive: finalize needs a frame with a device")
	}
	layout := make([]render.VertexAttrib, len(p.combined.Layout))
	for i, slot := range p.combined.Layout {
		layout[i] = render.VertexAttrib{Name: slot.Name, Location: slot.Location, Size: slot.Size}
	}
	mesh, err := frame.Device.UploadMesh(p.combined.Vertices, p.combined.Indices, layout)
	if err != nil {
		return fmt.Errorf("upload combined mesh: %w", err)
	}
	p.device = frame.Device
	p.mesh = mesh

	p.attrs = make(map[string]*InstanceAttributes, len(p.order))
	for _, inst := range p.instances {
		sphere := p.combined.Spheres[inst.ID]
		p.attrs[inst.ID] = &InstanceAttributes{
			Attributes: inst.Attributes,
			PickOwner:  inst.PickOwner,
			Range:      p.combined.Ranges[inst.ID],
			Sphere:     sphere,
		}
		p.worldSphere = p.worldSphere.Union(sphere)
	}

	// The CPU copies are no longer needed once the mesh is resident.
	p.combined.Vertices = nil
	p.combined.Indices = nil
	if p.releaseInstances {
		p.instances = nil
	}
	return nil
}

// PerInstanceAttributes resolves one instance's batched entry by its original
// id. Valid only once Ready; lookup order is independent of worker completion
// order.
func (p *Pipeline) PerInstanceAttributes(id string) (*InstanceAttributes, bool) {
	if p.state != StateComplete {
		return nil, false
	}
	attrs, ok := p.attrs[id]
	return attrs, ok
}

// Mesh returns the uploaded mesh handle, nil until Ready.
func (p *Pipeline) Mesh() *render.Mesh {
	return p.mesh
}

// WorldBoundingSphere bounds every instance in world space, zero until Ready.
func (p *Pipeline) WorldBoundingSphere() geometry.BoundingSphere {
	return p.worldSphere
}

// Destroy releases the GPU mesh if one was uploaded. The shared scheduling
// context is untouched; in-flight worker tasks are abandoned, not cancelled.
func (p *Pipeline) Destroy() {
	if p.device != nil && p.mesh != nil {
		p.device.DeleteMesh(p.mesh)
	}
	p.mesh = nil
	p.device = nil
	p.attrs = nil
	p.instances = nil
	p.created = nil
	p.combined = nil
}
