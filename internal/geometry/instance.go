package geometry

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Attribute is one per-instance shading input, e.g. a color. Values flow
// unchanged through creation and combination into the batched lookup table.
type Attribute struct {
	Value []float32
}

// Instance pairs a descriptor with its placement and per-instance data. The
// caller owns it; the pipeline copies what it needs and never mutates it.
type Instance struct {
	Descriptor  Descriptor
	ModelMatrix mgl32.Mat4
	Attributes  map[string]Attribute
	ID          string
	PickOwner   any
}

// NormalizeInstances returns the pipeline's private copy of instances: blank
// IDs get a generated UUID, a zero model matrix becomes identity, and
// duplicate IDs are rejected since they would make per-instance lookup
// ambiguous.
func NormalizeInstances(instances []Instance) ([]Instance, error) {
	out := make([]Instance, len(instances))
	seen := make(map[string]struct{}, len(instances))
	var zero mgl32.Mat4
	for i, inst := range instances {
		if inst.Descriptor == nil {
			return nil, fmt.Errorf("geometry: instance %d has no descriptor", i)
		}
		if inst.ID == "" {
			inst.ID = uuid.NewString()
		}
		if _, dup := seen[inst.ID]; dup {
			return nil, fmt.Errorf("geometry: duplicate instance id %q", inst.ID)
		}
		seen[inst.ID] = struct{}{}
		if inst.ModelMatrix == zero {
			inst.ModelMatrix = mgl32.Ident4()
		}
		out[i] = inst
	}
	return out, nil
}
