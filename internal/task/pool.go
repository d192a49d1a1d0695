package task

import (
	"fmt"
	"runtime"
)

// Pool is the fixed-size set of processors that geometry creation fans out
// across. The size is decided once at construction and never changes; slot i
// always maps to the same processor, so chunk-to-worker assignment is stable
// within a call to Split.
type Pool struct {
	slots []*Processor
}

// DefaultPoolSize leaves one core for the render goroutine.
func DefaultPoolSize() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// NewPool builds size processors sharing one handler. size <= 0 selects
// DefaultPoolSize.
func NewPool(name string, handler Handler, size int, maxActive uint32, caps Capabilities) *Pool {
	if size <= 0 {
		size = DefaultPoolSize()
	}
	slots := make([]*Processor, size)
	for i := range slots {
		slots[i] = NewProcessor(fmt.Sprintf("%s-%d", name, i), handler, maxActive, caps)
	}
	return &Pool{slots: slots}
}

// Size returns the fixed number of slots.
func (p *Pool) Size() int {
	return len(p.slots)
}

// Slot returns the processor for slot i.
func (p *Pool) Slot(i int) *Processor {
	return p.slots[i]
}

// Destroy tears down every slot's worker.
func (p *Pool) Destroy() {
	for _, proc := range p.slots {
		proc.Destroy()
	}
}

// Split partitions items into at most parts contiguous near-equal chunks,
// preserving order within each chunk. Earlier chunks get the remainder, so
// chunk sizes differ by at most one. Fewer items than parts yields one
// single-item chunk per item.
func Split[T any](items []T, parts int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > len(items) {
		parts = len(items)
	}
	chunks := make([][]T, 0, parts)
	base := len(items) / parts
	extra := len(items) % parts
	start := 0
	for i := 0; i < parts; i++ {
		n := base
		if i < extra {
			n++
		}
		chunks = append(chunks, items[start:start+n])
		start += n
	}
	return chunks
}

// PackBuffers lays bufs end to end in one contiguous buffer and returns a
// prefix-sum offset table (len(bufs)+1 entries), so a chunk's payload needs a
// single transfer instead of one per item.
func PackBuffers(bufs [][]byte) ([]byte, []int) {
	offsets := make([]int, len(bufs)+1)
	total := 0
	for i, b := range bufs {
		offsets[i] = total
		total += len(b)
	}
	offsets[len(bufs)] = total
	packed := make([]byte, total)
	for i, b := range bufs {
		copy(packed[offsets[i]:], b)
	}
	return packed, offsets
}

// UnpackBuffers is the inverse of PackBuffers, returning zero-copy views into
// packed.
func UnpackBuffers(packed []byte, offsets []int) [][]byte {
	if len(offsets) < 2 {
		return nil
	}
	out := make([][]byte, len(offsets)-1)
	for i := range out {
		out[i] = packed[offsets[i]:offsets[i+1]:offsets[i+1]]
	}
	return out
}
