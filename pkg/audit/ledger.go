package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const maxAppendAttempts = 3

// Observer is notified after each durable append, in sequence order.
type Observer func(Event)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithObserver registers an observer for appended events.
func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observers = append(l.observers, o) }
}

// Ledger serializes appends through a single writer and keeps the chain head
// in an atomic snapshot so readers never take the write lock.
type Ledger struct {
	mu        sync.Mutex
	backend   Backend
	head      atomic.Pointer[Event]
	closed    atomic.Bool
	now       func() time.Time
	observers []Observer
}

// Open resumes the chain stored in backend.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	last, err := backend.Last(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: load head: %w", err)
	}
	if last != nil {
		l.head.Store(last)
	}
	return l, nil
}

// Head returns the newest event, or nil for an empty chain.
func (l *Ledger) Head() *Event {
	return l.head.Load()
}

// Append writes one event. It returns only after the backend accepted it; a
// backend error is returned and the chain head does not move.
func (l *Ledger) Append(ctx context.Context, f Fields) (Event, error) {
	if l.closed.Load() {
		return Event{}, ErrLedgerClosed
	}
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		ev := l.next(f)
		err := l.backend.Append(ctx, ev)
		if err == nil {
			l.head.Store(&ev)
			for _, o := range l.observers {
				o(ev)
			}
			return ev, nil
		}
		lastErr = err
		if !errors.Is(err, ErrSequenceConflict) {
			break
		}
		// another process wrote to a shared backend; resync and rebuild
		last, lerr := l.backend.Last(ctx)
		if lerr != nil {
			return Event{}, fmt.Errorf("audit: resync head: %w", lerr)
		}
		if last != nil {
			l.head.Store(last)
		}
	}
	return Event{}, fmt.Errorf("audit: append: %w", lastErr)
}

func (l *Ledger) next(f Fields) Event {
	seq := uint64(1)
	prev := GenesisHash
	if h := l.head.Load(); h != nil {
		seq = h.Sequence + 1
		prev = h.Hash
	}
	ev := Event{
		Sequence: seq,
		// microsecond precision survives every backend round trip
		Timestamp:     l.now().UTC().Truncate(time.Microsecond),
		Actor:         f.Actor,
		QueryID:       f.QueryID,
		Subject:       f.Subject,
		Decision:      f.Decision,
		ReasonCode:    f.ReasonCode,
		PolicyVersion: f.PolicyVersion,
		RiskScore:     f.RiskScore,
		PrevHash:      prev,
	}
	ev.Hash = HashEvent(ev)
	return ev
}

// Verify walks the stored chain from genesis and recomputes every hash. The
// first divergent sequence is reported; nothing is repaired.
func (l *Ledger) Verify(ctx context.Context) (VerifyReport, error) {
	return VerifyBackend(ctx, l.backend, l.Head())
}

// VerifyBackend verifies any backend. head, when known, lets truncation of
// the tail be detected.
func VerifyBackend(ctx context.Context, backend Backend, head *Event) (VerifyReport, error) {
	report := VerifyReport{OK: true}
	expect := uint64(1)
	prev := GenesisHash

	fail := func(seq uint64, reason string) error {
		report.OK = false
		report.FirstBadSequence = &seq
		report.Reason = reason
		return errStopScan
	}

	err := backend.Scan(ctx, 1, func(ev Event) error {
		switch {
		case ev.Sequence != expect:
			return fail(expect, fmt.Sprintf("sequence %d stored at position %d", ev.Sequence, expect))
		case ev.PrevHash != prev:
			return fail(expect, "prev_hash does not match predecessor")
		case HashEvent(ev) != ev.Hash:
			return fail(expect, "hash does not match recomputation")
		}
		prev = ev.Hash
		report.Checked++
		report.HeadHash = ev.Hash
		expect++
		return nil
	})

	var corrupt *CorruptRecordError
	switch {
	case errors.Is(err, errStopScan):
	case errors.As(err, &corrupt):
		_ = fail(corrupt.Position, corrupt.Error())
	case err != nil:
		return report, fmt.Errorf("audit: verify scan: %w", err)
	}

	if report.OK && head != nil && report.Checked < head.Sequence {
		_ = fail(report.Checked+1, "chain shorter than appended head")
	}

	if !report.OK {
		return report, &IntegrityViolationError{Sequence: *report.FirstBadSequence, Reason: report.Reason}
	}
	return report, nil
}

// Events returns up to limit events starting at sequence from.
func (l *Ledger) Events(ctx context.Context, from uint64, limit int) ([]Event, error) {
	if from == 0 {
		from = 1
	}
	var out []Event
	err := l.backend.Scan(ctx, from, func(ev Event) error {
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			return errStopScan
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	return out, nil
}

// Close stops further appends and closes the backend.
func (l *Ledger) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backend.Close()
}
