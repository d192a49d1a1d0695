package primitive

import (
	"fmt"

	"geobatch/internal/geometry"
	"geobatch/internal/scheduler"
	"geobatch/internal/task"
)

// GeometryBuilder drives the creating and combining stages. The async and
// inline variants share one contract: StartCreate kicks the work off, polls
// are non-blocking and safe to repeat every tick, and StartCombine reports
// false while the combine worker has no capacity.
type GeometryBuilder interface {
	StartCreate(instances []geometry.Instance) error
	PollCreate() ([]geometry.Created, bool, error)
	StartCombine(created []geometry.Created, params geometry.CombineParams) (bool, error)
	PollCombine() (*geometry.Combined, bool, error)
}

// pendingChunk is a chunk whose slot refused it as busy; it is retried with
// the same slot on later polls so assignment stays stable.
type pendingChunk struct {
	slot      int
	instances []geometry.Instance
}

// AsyncBuilder fans creation out across the shared pool and funnels
// combination through the context's dedicated combine processor.
type AsyncBuilder struct {
	sched      *scheduler.Context
	pending    []pendingChunk
	inflight   []*task.Future
	combineFut *task.Future
}

// NewAsyncBuilder builds against the given scheduling context.
func NewAsyncBuilder(sched *scheduler.Context) *AsyncBuilder {
	return &AsyncBuilder{sched: sched}
}

// StartCreate splits instances into one contiguous chunk per pool slot and
// submits each chunk as a single combined payload. Chunks refused as busy stay
// queued here and are retried by PollCreate.
func (b *AsyncBuilder) StartCreate(instances []geometry.Instance) error {
	chunks := task.Split(instances, b.sched.Pool.Size())
	for i, chunk := range chunks {
		b.submit(pendingChunk{slot: i, instances: chunk})
	}
	return nil
}

func (b *AsyncBuilder) submit(pc pendingChunk) {
	fut := b.sched.Pool.Slot(pc.slot).Schedule(&geometry.CreateChunk{Instances: pc.instances}, nil)
	if fut == nil {
		b.pending = append(b.pending, pc)
		return
	}
	b.inflight = append(b.inflight, fut)
}

// PollCreate retries refused chunks, then joins the settled futures. It
// reports done only when every chunk has been accepted and has settled.
// Results arrive in arbitrary chunk order; callers re-associate by id.
func (b *AsyncBuilder) PollCreate() ([]geometry.Created, bool, error) {
	retry := b.pending
	b.pending = nil
	for _, pc := range retry {
		b.submit(pc)
	}
	if len(b.pending) > 0 {
		return nil, false, nil
	}

	var created []geometry.Created
	for _, fut := range b.inflight {
		value, err, settled := fut.Poll()
		if !settled {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		result, ok := value.(*geometry.CreateResult)
		if !ok {
			return nil, false, fmt.Errorf("primitive: create worker replied %T, want *geometry.CreateResult", value)
		}
		created = append(created, result.Created...)
	}
	return created, true, nil
}

// StartCombine submits the single combine task; false means the combine
// worker is at capacity and the caller should retry next tick.
func (b *AsyncBuilder) StartCombine(created []geometry.Created, params geometry.CombineParams) (bool, error) {
	fut := b.sched.Combine.Schedule(&geometry.CombineTask{Created: created, Params: params}, nil)
	if fut == nil {
		return false, nil
	}
	b.combineFut = fut
	return true, nil
}

// PollCombine joins the combine reply.
func (b *AsyncBuilder) PollCombine() (*geometry.Combined, bool, error) {
	value, err, settled := b.combineFut.Poll()
	if !settled {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	combined, ok := value.(*geometry.Combined)
	if !ok {
		return nil, false, fmt.Errorf("primitive: combine worker replied %T, want *geometry.Combined", value)
	}
	return combined, true, nil
}

// InlineBuilder runs creation and combination synchronously on the calling
// goroutine, for callers that cannot tolerate scheduling latency and need a
// fully-formed result this tick. The state machine contract is identical to
// the async variant; the polls just never report "not yet".
type InlineBuilder struct {
	created  []geometry.Created
	combined *geometry.Combined
}

// NewInlineBuilder returns the synchronous variant.
func NewInlineBuilder() *InlineBuilder {
	return &InlineBuilder{}
}

func (b *InlineBuilder) StartCreate(instances []geometry.Instance) error {
	call := &task.Call{}
	value, err := geometry.CreateHandler(call, &geometry.CreateChunk{Instances: instances})
	if err != nil {
		return err
	}
	b.created = value.(*geometry.CreateResult).Created
	return nil
}

func (b *InlineBuilder) PollCreate() ([]geometry.Created, bool, error) {
	return b.created, true, nil
}

func (b *InlineBuilder) StartCombine(created []geometry.Created, params geometry.CombineParams) (bool, error) {
	combined, err := geometry.Combine(created, params)
	if err != nil {
		return true, err
	}
	b.combined = combined
	return true, nil
}

func (b *InlineBuilder) PollCombine() (*geometry.Combined, bool, error) {
	return b.combined, true, nil
}
