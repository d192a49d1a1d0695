package task

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Handler processes one task payload on the worker goroutine. It must not
// retain the call or its transfer buffers past its return.
type Handler func(call *Call, payload any) (any, error)

// Call carries the per-task worker context: buffers whose ownership moved
// with the request, and the wasm module if the processor was bootstrapped.
type Call struct {
	Transfer [][]byte

	wasm *WasmModule
}

// Wasm returns the bootstrapped module, or nil when no bootstrap ran.
func (c *Call) Wasm() *WasmModule {
	return c.wasm
}

// request is the envelope posted to the worker. IDs are unique per processor,
// strictly increasing and never reused, so stale replies can be told apart
// from live ones.
type request struct {
	id       uint64
	payload  any
	transfer [][]byte
}

// reply travels back from the worker. Failures are carried as tag fields and
// rebuilt into a typed error on the scheduling side.
type reply struct {
	id      uint64
	value   any
	failed  bool
	kind    ErrorKind
	message string
	stack   string
}

// Processor owns one lazily started worker goroutine and schedules tasks onto
// it. Each processor is strictly sequential internally; parallelism comes from
// running several processors (see Pool).
type Processor struct {
	name      string
	caps      Capabilities
	maxActive uint32 // 0 = unbounded

	mu        sync.Mutex
	handler   Handler
	active    uint32
	nextID    uint64
	queue     []request
	listeners map[uint64]*Future
	started   bool
	destroyed bool
	bootstrap *Future
	wasm      *WasmModule

	wake    chan struct{}
	quit    chan struct{}
	replies chan reply
}

// NewProcessor creates a processor for the named handler. maxActive caps the
// number of unsettled tasks; zero means unbounded. The worker goroutine is not
// started until the first accepted schedule.
func NewProcessor(name string, handler Handler, maxActive uint32, caps Capabilities) *Processor {
	return &Processor{
		name:      name,
		caps:      caps,
		maxActive: maxActive,
		handler:   handler,
		listeners: make(map[uint64]*Future),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		replies:   make(chan reply, 8),
	}
}

// Name returns the processor's name, used in errors and logs.
func (p *Processor) Name() string {
	return p.name
}

// ActiveCount reports the number of accepted, unsettled tasks.
func (p *Processor) ActiveCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Schedule posts a task to the worker and returns a future for its reply.
// A nil return means the processor is at its concurrency ceiling (or already
// destroyed) and the caller should retry on a later tick; nothing is queued on
// its behalf. Buffers in transfer are donated to the worker when the runtime
// supports it (the caller's entries are cleared), otherwise deep-copied.
func (p *Processor) Schedule(payload any, transfer [][]byte) *Future {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	if p.maxActive > 0 && p.active >= p.maxActive {
		p.mu.Unlock()
		return nil
	}
	id := p.nextID
	p.nextID++
	p.active++
	fut := newFuture()
	p.listeners[id] = fut
	p.queue = append(p.queue, request{id: id, payload: payload, transfer: p.claimBuffers(transfer)})
	p.startLocked()
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return fut
}

// Destroy stops the worker immediately. In-flight futures are never settled;
// the holder is assumed to be tearing down the whole subsystem, so the leak is
// scoped to shutdown.
func (p *Processor) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	wasm := p.wasm
	p.wasm = nil
	p.queue = nil
	p.mu.Unlock()

	close(p.quit)
	if wasm != nil {
		wasm.close()
	}
}

func (p *Processor) claimBuffers(transfer [][]byte) [][]byte {
	if len(transfer) == 0 {
		return nil
	}
	claimed := make([][]byte, len(transfer))
	if p.caps.TransferBuffers {
		for i, b := range transfer {
			claimed[i] = b
			transfer[i] = nil // ownership moved to the worker
		}
		return claimed
	}
	for i, b := range transfer {
		claimed[i] = append([]byte(nil), b...)
	}
	return claimed
}

func (p *Processor) startLocked() {
	if p.started {
		return
	}
	p.started = true
	go p.workerLoop()
	go p.dispatchLoop()
}

// workerLoop drains the queue one request at a time. If a wasm bootstrap was
// requested it completes before the first task runs.
func (p *Processor) workerLoop() {
	if !p.awaitBootstrap() {
		return
	}
	for {
		req, ok := p.next()
		if !ok {
			return
		}
		value, err := p.invoke(req)
		r := reply{id: req.id, value: value}
		if err != nil {
			r.failed = true
			var we *WorkerError
			if errors.As(err, &we) {
				r.kind, r.message, r.stack = we.Kind, we.Message, we.Stack
			} else {
				r.kind, r.message = KindGeneric, err.Error()
			}
		}
		select {
		case p.replies <- r:
		case <-p.quit:
			return
		}
	}
}

func (p *Processor) next() (request, bool) {
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			req := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return req, true
		}
		p.mu.Unlock()
		select {
		case <-p.wake:
		case <-p.quit:
			return request{}, false
		}
	}
}

func (p *Processor) awaitBootstrap() bool {
	p.mu.Lock()
	fut := p.bootstrap
	p.mu.Unlock()
	if fut == nil {
		return true
	}
	select {
	case <-fut.Done():
		return true
	case <-p.quit:
		return false
	}
}

// invoke runs the handler, converting panics into runtime-kind worker errors
// so a crashing task settles its future instead of killing the process.
func (p *Processor) invoke(req request) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &WorkerError{
				Kind:    KindRuntime,
				Message: fmt.Sprint(r),
				Stack:   string(debug.Stack()),
			}
		}
	}()
	p.mu.Lock()
	handler := p.handler
	wasm := p.wasm
	p.mu.Unlock()
	return handler(&Call{Transfer: req.transfer, wasm: wasm}, req.payload)
}

func (p *Processor) dispatchLoop() {
	for {
		select {
		case r := <-p.replies:
			p.deliver(r)
		case <-p.quit:
			return
		}
	}
}

// deliver settles the single-use listener registered for the reply's id.
// Replies with no listener are dropped: they belong to a request whose
// listener already fired, and must not disturb live ones.
func (p *Processor) deliver(r reply) {
	p.mu.Lock()
	fut, ok := p.listeners[r.id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.listeners, r.id)
	p.active--
	p.mu.Unlock()

	if r.failed {
		fut.settle(nil, decodeWorkerError(r.kind, r.message, r.stack))
		return
	}
	fut.settle(r.value, nil)
}
