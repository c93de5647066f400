package policy

import (
	"context"
	"errors"
	"testing"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*audit.Ledger, *audit.MemoryBackend) {
	t.Helper()
	backend := audit.NewMemoryBackend()
	l, err := audit.Open(context.Background(), backend)
	require.NoError(t, err)
	return l, backend
}

func cfg() Config {
	return Config{BlockThreshold: 0.8, RedactThreshold: 0.5, Version: "2026.10"}
}

func item(id string, risk float64) Item {
	return Item{
		Candidate:  store.Candidate{DocID: id},
		Assessment: store.PrivilegeAssessment{DocID: id, RiskScore: risk, Confidence: 1},
	}
}

func q() store.Query {
	return store.Query{ID: "q-1", Text: "nda", TopK: 5, Actor: "reviewer@firm.test"}
}

func TestNewGate_RejectsBadThresholds(t *testing.T) {
	l, _ := newLedger(t)
	bad := []Config{
		{BlockThreshold: 0.5, RedactThreshold: 0.5, Version: "v"},
		{BlockThreshold: 0.4, RedactThreshold: 0.5, Version: "v"},
		{BlockThreshold: 1.2, RedactThreshold: 0.5, Version: "v"},
		{BlockThreshold: 0.8, RedactThreshold: -0.1, Version: "v"},
		{BlockThreshold: 0.8, RedactThreshold: 0.5},
	}
	for _, c := range bad {
		_, err := NewGate(c, l, logger.NewNopLogger())
		var cfgErr *PolicyConfigurationError
		assert.True(t, errors.As(err, &cfgErr), "%+v", c)
	}
}

func TestClassify_Boundaries(t *testing.T) {
	l, _ := newLedger(t)
	g, err := NewGate(cfg(), l, logger.NewNopLogger())
	require.NoError(t, err)

	tests := []struct {
		risk float64
		want store.Decision
	}{
		{0, store.DecisionAllow},
		{0.4999, store.DecisionAllow},
		{0.5, store.DecisionRedact},
		{0.7999, store.DecisionRedact},
		{0.8, store.DecisionBlock},
		{1, store.DecisionBlock},
	}
	for _, tt := range tests {
		got, _ := g.Classify(store.PrivilegeAssessment{RiskScore: tt.risk})
		assert.Equal(t, tt.want, got, "risk %v", tt.risk)
	}

	got, reason := g.Classify(store.PrivilegeAssessment{RiskScore: 1, Degraded: true})
	assert.Equal(t, store.DecisionBlock, got)
	assert.Equal(t, ReasonFailClosed, reason)
}

func TestDecideAll_AppendsOneEventPerDecisionInOrder(t *testing.T) {
	l, _ := newLedger(t)
	g, err := NewGate(cfg(), l, logger.NewNopLogger())
	require.NoError(t, err)

	var streamed []string
	decisions, err := g.DecideAll(context.Background(), q(),
		[]Item{item("doc-1", 0.1), item("doc-2", 0.9), item("doc-3", 0.6)},
		func(it Item, d store.PolicyDecision) {
			// the event must already be in the ledger
			assert.Equal(t, d.AuditSequence, l.Head().Sequence)
			streamed = append(streamed, d.DocID)
		})
	require.NoError(t, err)
	require.Len(t, decisions, 3)
	assert.Equal(t, []string{"doc-1", "doc-2", "doc-3"}, streamed)

	events, err := l.Events(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	want := []store.Decision{store.DecisionAllow, store.DecisionBlock, store.DecisionRedact}
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
		assert.Equal(t, want[i], ev.Decision)
		assert.Equal(t, decisions[i].DocID, ev.Subject)
		assert.Equal(t, "q-1", ev.QueryID)
		assert.Equal(t, "reviewer@firm.test", ev.Actor)
		assert.Equal(t, "2026.10", ev.PolicyVersion)
		assert.Equal(t, ev.Hash, decisions[i].AuditHash)
	}
}

func TestDecideAll_CancelledBeforeFirstAppendLeavesNoTrace(t *testing.T) {
	l, backend := newLedger(t)
	g, err := NewGate(cfg(), l, logger.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.DecideAll(ctx, q(), []Item{item("doc-1", 0.1)}, nil)
	assert.ErrorIs(t, err, context.Canceled)

	last, err := backend.Last(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestDecideAll_CancelAfterFirstAppendStillFinishesQuery(t *testing.T) {
	l, _ := newLedger(t)
	g, err := NewGate(cfg(), l, logger.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	decisions, err := g.DecideAll(ctx, q(), []Item{item("doc-1", 0.1), item("doc-2", 0.2), item("doc-3", 0.3)},
		func(Item, store.PolicyDecision) { cancel() })
	require.NoError(t, err)
	assert.Len(t, decisions, 3)
	assert.Equal(t, uint64(3), l.Head().Sequence)
}

type flakyAppender struct {
	inner  *audit.Ledger
	failAt int
	calls  int
}

func (f *flakyAppender) Append(ctx context.Context, fields audit.Fields) (audit.Event, error) {
	f.calls++
	if f.calls == f.failAt {
		return audit.Event{}, errors.New("backend unavailable")
	}
	return f.inner.Append(ctx, fields)
}

func TestDecideAll_AppendFailureAbortsQuery(t *testing.T) {
	l, _ := newLedger(t)
	g, err := NewGate(cfg(), &flakyAppender{inner: l, failAt: 2}, logger.NewNopLogger())
	require.NoError(t, err)

	var called int
	_, err = g.DecideAll(context.Background(), q(), []Item{item("doc-1", 0.1), item("doc-2", 0.1), item("doc-3", 0.1)},
		func(Item, store.PolicyDecision) { called++ })
	assert.Error(t, err)
	assert.Equal(t, 1, called)
	assert.Equal(t, uint64(1), l.Head().Sequence)
}

func TestDecideAll_RejectsDuplicates(t *testing.T) {
	l, _ := newLedger(t)
	g, err := NewGate(cfg(), l, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = g.DecideAll(context.Background(), q(), []Item{item("doc-1", 0.1), item("doc-1", 0.9)}, nil)
	assert.ErrorIs(t, err, ErrDuplicateCandidate)
	assert.Nil(t, l.Head())
}
