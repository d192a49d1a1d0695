package config

import "sync"

// SchedulerSettings holds process-wide scheduling configuration
type SchedulerSettings struct {
	mu             sync.RWMutex
	workerCount    int // 0 = derive from CPU count
	maxActiveTasks int // per processor; 0 = unbounded
}

var globalSchedulerSettings = &SchedulerSettings{
	workerCount:    0,
	maxActiveTasks: 0,
}

// GetWorkerCount returns the configured pool size, 0 meaning auto.
func GetWorkerCount() int {
	globalSchedulerSettings.mu.RLock()
	defer globalSchedulerSettings.mu.RUnlock()
	return globalSchedulerSettings.workerCount
}

// SetWorkerCount overrides the pool size. Takes effect on the next pool build.
func SetWorkerCount(n int) {
	globalSchedulerSettings.mu.Lock()
	defer globalSchedulerSettings.mu.Unlock()

	// Clamp to reasonable values
	if n < 0 {
		n = 0
	}
	if n > 64 {
		n = 64
	}

	globalSchedulerSettings.workerCount = n
}

// GetMaxActiveTasks returns the per-processor concurrency ceiling, 0 meaning
// unbounded.
func GetMaxActiveTasks() int {
	globalSchedulerSettings.mu.RLock()
	defer globalSchedulerSettings.mu.RUnlock()
	return globalSchedulerSettings.maxActiveTasks
}

// SetMaxActiveTasks sets the per-processor concurrency ceiling
func SetMaxActiveTasks(n int) {
	globalSchedulerSettings.mu.Lock()
	defer globalSchedulerSettings.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n > 1024 {
		n = 1024
	}

	globalSchedulerSettings.maxActiveTasks = n
}
