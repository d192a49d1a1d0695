package geometry

import (
	"fmt"

	"geobatch/internal/task"
)

// CreateChunk is the payload one pool slot receives: a contiguous run of
// instances whose geometries it builds in submission order.
type CreateChunk struct {
	Instances []Instance
}

// CreateResult is the reply to a CreateChunk, in the same order.
type CreateResult struct {
	Created []Created
}

// CreateHandler is the worker kernel for the creation stage.
func CreateHandler(_ *task.Call, payload any) (any, error) {
	chunk, ok := payload.(*CreateChunk)
	if !ok {
		return nil, task.InvalidUsage("create worker got %T, want *geometry.CreateChunk", payload)
	}
	created := make([]Created, 0, len(chunk.Instances))
	for _, inst := range chunk.Instances {
		g, err := inst.Descriptor.CreateGeometry()
		if err != nil {
			return nil, fmt.Errorf("create geometry for instance %q: %w", inst.ID, err)
		}
		created = append(created, Created{ID: inst.ID, Geometry: g, ModelMatrix: inst.ModelMatrix})
	}
	return &CreateResult{Created: created}, nil
}

// CombineTask is the payload for the single dedicated combine worker: every
// created geometry plus the global combine parameters.
type CombineTask struct {
	Created []Created
	Params  CombineParams
}

// CombineHandler is the worker kernel for the combination stage.
func CombineHandler(_ *task.Call, payload any) (any, error) {
	t, ok := payload.(*CombineTask)
	if !ok {
		return nil, task.InvalidUsage("combine worker got %T, want *geometry.CombineTask", payload)
	}
	return Combine(t.Created, t.Params)
}
