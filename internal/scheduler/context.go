package scheduler

import (
	"context"
	"sync"

	"geobatch/internal/config"
	"geobatch/internal/geometry"
	"geobatch/internal/task"
)

// Context bundles the shared scheduling resources a pipeline draws from: the
// worker pool that creation work fans out across, the single dedicated
// combine processor, and the capabilities detected at startup. Pipelines take
// it explicitly at construction; nothing reaches for it ambiently.
type Context struct {
	Caps    task.Capabilities
	Pool    *task.Pool
	Combine *task.Processor
}

var (
	mu     sync.Mutex
	shared *Context
)

// Shared returns the process-wide context, built lazily on first use and kept
// until process exit. Any number of pipelines may draw from it concurrently.
func Shared() *Context {
	mu.Lock()
	defer mu.Unlock()
	if shared == nil {
		shared = New(task.DetectCapabilities(context.Background()), config.GetWorkerCount(), uint32(config.GetMaxActiveTasks()))
	}
	return shared
}

// New builds an isolated context, used by tests and by callers that want
// their own pool. poolSize <= 0 derives the size from the CPU count.
func New(caps task.Capabilities, poolSize int, maxActive uint32) *Context {
	return &Context{
		Caps:    caps,
		Pool:    task.NewPool("createGeometry", geometry.CreateHandler, poolSize, maxActive, caps),
		Combine: task.NewProcessor("combineGeometry", geometry.CombineHandler, maxActive, caps),
	}
}

// ResetForTesting destroys and clears the shared context so tests can rebuild
// it under different settings. Not for production use.
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	if shared != nil {
		shared.Pool.Destroy()
		shared.Combine.Destroy()
		shared = nil
	}
}
