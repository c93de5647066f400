package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"legal-discovery-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func fields(i int) Fields {
	return Fields{
		Actor:         "reviewer@firm.test",
		QueryID:       "q-1",
		Subject:       fmt.Sprintf("doc-%d", i),
		Decision:      store.DecisionAllow,
		ReasonCode:    "risk_below_redact",
		PolicyVersion: "v1",
		RiskScore:     0.1 * float64(i%10),
	}
}

func appendN(t *testing.T, l *Ledger, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		ev, err := l.Append(context.Background(), fields(i))
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func TestLedger_AppendChainsFromGenesis(t *testing.T) {
	l, err := Open(context.Background(), NewMemoryBackend(), WithClock(fixedClock()))
	require.NoError(t, err)

	events := appendN(t, l, 3)

	assert.Equal(t, GenesisHash, events[0].PrevHash)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
		assert.Equal(t, HashEvent(ev), ev.Hash)
		if i > 0 {
			assert.Equal(t, events[i-1].Hash, ev.PrevHash)
		}
	}
	assert.Equal(t, events[2].Hash, l.Head().Hash)
}

func TestLedger_VerifyIntactChain(t *testing.T) {
	for _, n := range []int{0, 1, 2, 17} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			l, err := Open(context.Background(), NewMemoryBackend(), WithClock(fixedClock()))
			require.NoError(t, err)
			appendN(t, l, n)

			report, err := l.Verify(context.Background())
			require.NoError(t, err)
			assert.True(t, report.OK)
			assert.Nil(t, report.FirstBadSequence)
			assert.Equal(t, uint64(n), report.Checked)
		})
	}
}

func TestLedger_VerifyDetectsTamperedField(t *testing.T) {
	mutations := map[string]func(*Event){
		"actor":     func(e *Event) { e.Actor = "intruder" },
		"decision":  func(e *Event) { e.Decision = store.DecisionAllow + "X" },
		"risk":      func(e *Event) { e.RiskScore += 0.01 },
		"subject":   func(e *Event) { e.Subject = "doc-999" },
		"timestamp": func(e *Event) { e.Timestamp = e.Timestamp.Add(time.Second) },
		"hash":      func(e *Event) { e.Hash = strings.Repeat("f", 64) },
		"prev_hash": func(e *Event) { e.PrevHash = strings.Repeat("a", 64) },
		"sequence":  func(e *Event) { e.Sequence += 100 },
	}

	for name, mutate := range mutations {
		for _, target := range []uint64{1, 4, 8} {
			t.Run(fmt.Sprintf("%s@%d", name, target), func(t *testing.T) {
				backend := NewMemoryBackend()
				l, err := Open(context.Background(), backend, WithClock(fixedClock()))
				require.NoError(t, err)
				appendN(t, l, 8)

				snapshot := *backend.events.Load()
				mutate(&snapshot[target-1])

				report, err := l.Verify(context.Background())
				assert.False(t, report.OK)
				require.NotNil(t, report.FirstBadSequence)
				assert.Equal(t, target, *report.FirstBadSequence)

				var violation *IntegrityViolationError
				require.True(t, errors.As(err, &violation))
				assert.Equal(t, target, violation.Sequence)
			})
		}
	}
}

func TestLedger_ConcurrentAppendsAreStrictlyOrdered(t *testing.T) {
	l, err := Open(context.Background(), NewMemoryBackend())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := l.Append(context.Background(), fields(w*100+i))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	events, err := l.Events(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 200)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
	}

	report, err := l.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK)
}

func TestLedger_CancelledContextWritesNothing(t *testing.T) {
	backend := NewMemoryBackend()
	l, err := Open(context.Background(), backend)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Append(ctx, fields(1))
	assert.ErrorIs(t, err, context.Canceled)

	last, err := backend.Last(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

type failingBackend struct {
	*MemoryBackend
	err error
}

func (f *failingBackend) Append(ctx context.Context, e Event) error { return f.err }

func TestLedger_BackendFailureBlocksAppend(t *testing.T) {
	boom := errors.New("disk full")
	l, err := Open(context.Background(), &failingBackend{MemoryBackend: NewMemoryBackend(), err: boom})
	require.NoError(t, err)

	_, err = l.Append(context.Background(), fields(1))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, l.Head())
}

func TestLedger_ObserverSeesEveryEventInOrder(t *testing.T) {
	var seen []uint64
	l, err := Open(context.Background(), NewMemoryBackend(), WithObserver(func(e Event) {
		seen = append(seen, e.Sequence)
	}))
	require.NoError(t, err)
	appendN(t, l, 4)
	assert.Equal(t, []uint64{1, 2, 3, 4}, seen)
}

func TestLedger_EventsPaging(t *testing.T) {
	l, err := Open(context.Background(), NewMemoryBackend())
	require.NoError(t, err)
	appendN(t, l, 10)

	page, err := l.Events(context.Background(), 4, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, uint64(4), page[0].Sequence)
	assert.Equal(t, uint64(6), page[2].Sequence)
}

func TestFileBackend_ReopenResumesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "audit.jsonl")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	l, err := Open(context.Background(), backend, WithClock(fixedClock()))
	require.NoError(t, err)
	first := appendN(t, l, 3)
	require.NoError(t, l.Close())

	backend2, err := NewFileBackend(path)
	require.NoError(t, err)
	l2, err := Open(context.Background(), backend2)
	require.NoError(t, err)
	defer l2.Close()

	require.NotNil(t, l2.Head())
	assert.Equal(t, first[2].Hash, l2.Head().Hash)

	ev, err := l2.Append(context.Background(), fields(4))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), ev.Sequence)
	assert.Equal(t, first[2].Hash, ev.PrevHash)

	report, err := l2.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, uint64(4), report.Checked)
}

func TestFileBackend_VerifyDetectsEditedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	l, err := Open(context.Background(), backend, WithClock(fixedClock()))
	require.NoError(t, err)
	appendN(t, l, 5)
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 5)
	lines[2] = strings.Replace(lines[2], `"decision":"ALLOW"`, `"decision":"BLOCK"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	backend2, err := NewFileBackend(path)
	require.NoError(t, err)
	l2, err := Open(context.Background(), backend2)
	require.NoError(t, err)
	defer l2.Close()

	report, err := l2.Verify(context.Background())
	assert.Error(t, err)
	assert.False(t, report.OK)
	require.NotNil(t, report.FirstBadSequence)
	assert.Equal(t, uint64(3), *report.FirstBadSequence)
}

func TestFileBackend_CorruptLineRefusesAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	l, err := Open(context.Background(), backend, WithClock(fixedClock()))
	require.NoError(t, err)
	appendN(t, l, 2)
	require.NoError(t, l.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	backend2, err := NewFileBackend(path)
	require.NoError(t, err)
	l2, err := Open(context.Background(), backend2)
	require.NoError(t, err)
	defer l2.Close()

	report, err := l2.Verify(context.Background())
	assert.Error(t, err)
	require.NotNil(t, report.FirstBadSequence)
	assert.Equal(t, uint64(3), *report.FirstBadSequence)

	_, err = l2.Append(context.Background(), fields(3))
	assert.Error(t, err)
}

func TestLedger_VerifyDetectsTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	l, err := Open(context.Background(), backend, WithClock(fixedClock()))
	require.NoError(t, err)
	defer l.Close()
	appendN(t, l, 4)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines[:3], "\n")+"\n"), 0644))

	report, err := l.Verify(context.Background())
	assert.Error(t, err)
	require.NotNil(t, report.FirstBadSequence)
	assert.Equal(t, uint64(4), *report.FirstBadSequence)
}
