package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryBackend keeps events in a slice published through an atomic pointer.
// Readers work on the snapshot they loaded; writers only ever append.
type MemoryBackend struct {
	mu     sync.Mutex
	events atomic.Pointer[[]Event]
}

func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{}
	empty := make([]Event, 0, 64)
	b.events.Store(&empty)
	return b
}

func (b *MemoryBackend) Append(ctx context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := *b.events.Load()
	if uint64(len(cur))+1 != e.Sequence {
		return ErrSequenceConflict
	}
	next := append(cur, e)
	b.events.Store(&next)
	return nil
}

func (b *MemoryBackend) Last(ctx context.Context) (*Event, error) {
	cur := *b.events.Load()
	if len(cur) == 0 {
		return nil, nil
	}
	last := cur[len(cur)-1]
	return &last, nil
}

func (b *MemoryBackend) Scan(ctx context.Context, from uint64, fn func(Event) error) error {
	snapshot := *b.events.Load()
	if from == 0 {
		from = 1
	}
	for i := from - 1; i < uint64(len(snapshot)); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

var _ Backend = (*MemoryBackend)(nil)
