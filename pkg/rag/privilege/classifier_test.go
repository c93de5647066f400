package privilege

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"legal-discovery-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	cfg := DefaultEnsembleConfig()
	cfg.CounselRoster = []string{"@outside-counsel.test", "gc@acme.test"}
	c, err := cfg.Build()
	require.NoError(t, err)
	return c
}

func meta(id string) *store.DocumentMetadata {
	return &store.DocumentMetadata{
		DocID:      id,
		Title:      "Q3 supply agreement",
		Sender:     "buyer@acme.test",
		Recipients: []string{"sales@vendor.test"},
	}
}

func TestAssess_BenignDocumentScoresZero(t *testing.T) {
	c := defaultClassifier(t)
	a := c.Assess(store.Candidate{DocID: "doc-1"}, meta("doc-1"), nil)

	assert.Equal(t, 0.0, a.RiskScore)
	assert.Equal(t, 1.0, a.Confidence)
	assert.False(t, a.Degraded)
	require.Len(t, a.Signals, 4)
	assert.Equal(t, SignalCounselParty, a.Signals[0].Name)
	assert.Equal(t, SignalPrivilegedProximity, a.Signals[3].Name)
}

func TestAssess_SignalsContribute(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		name   string
		mutate func(m *store.DocumentMetadata)
		hood   []store.Neighbor
		want   float64
	}{
		{"roster domain", func(m *store.DocumentMetadata) { m.Recipients = append(m.Recipients, "Partner@Outside-Counsel.test") }, nil, 0.5},
		{"roster address", func(m *store.DocumentMetadata) { m.Sender = "gc@acme.test" }, nil, 0.5},
		{"counsel role", func(m *store.DocumentMetadata) { m.Roles = map[string]string{"x@acme.test": "Counsel"} }, nil, 0.5},
		{"flag", func(m *store.DocumentMetadata) { m.Flags = []string{"Work_Product"} }, nil, 0.6},
		{"legend", func(m *store.DocumentMetadata) { m.Subject = "PRIVILEGED & Confidential" }, nil, 0.4},
		{"proximity", func(m *store.DocumentMetadata) {}, []store.Neighbor{
			{NodeID: "n1", Tags: []string{"privileged"}, Distance: 1},
			{NodeID: "n2", Tags: []string{"other"}, Distance: 0},
		}, 0.15},
		{"clamped", func(m *store.DocumentMetadata) {
			m.Sender = "gc@acme.test"
			m.Flags = []string{"privileged"}
			m.Title = "Attorney-Client communication"
		}, nil, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := meta("doc-1")
			tt.mutate(m)
			a := c.Assess(store.Candidate{DocID: "doc-1"}, m, tt.hood)
			assert.InDelta(t, tt.want, a.RiskScore, 1e-12)
			assert.False(t, a.Degraded)
		})
	}
}

func TestAssess_MonotoneInEachSignal(t *testing.T) {
	scores := []float64{0, 0.2, 0.5, 0.9, 1}
	for idx := 0; idx < 3; idx++ {
		prev := -1.0
		for _, s := range scores {
			fixed := []float64{0.3, 0.3, 0.3}
			fixed[idx] = s
			var signals []Signal
			for i, v := range fixed {
				v := v
				signals = append(signals, Signal{
					Name:     string(rune('a' + i)),
					Weight:   0.4,
					Evaluate: func(Input) (float64, error) { return v, nil },
				})
			}
			c, err := NewClassifier(signals...)
			require.NoError(t, err)
			risk := c.Assess(store.Candidate{DocID: "d"}, meta("d"), nil).RiskScore
			assert.GreaterOrEqual(t, risk, prev)
			assert.GreaterOrEqual(t, risk, 0.0)
			assert.LessOrEqual(t, risk, 1.0)
			prev = risk
		}
	}
}

func TestAssess_FailsClosed(t *testing.T) {
	boom := Signal{Name: "boom", Weight: 0.1, Evaluate: func(Input) (float64, error) { return 0, errors.New("lookup failed") }}
	panicky := Signal{Name: "panicky", Weight: 0.1, Evaluate: func(in Input) (float64, error) { panic("nil map") }}
	nan := Signal{Name: "nan", Weight: 0.1, Evaluate: func(Input) (float64, error) { return 0 / zero(), nil }}
	ok := Signal{Name: "ok", Weight: 0.1, Evaluate: func(Input) (float64, error) { return 0, nil }}

	tests := []struct {
		name   string
		signal Signal
		meta   *store.DocumentMetadata
	}{
		{"nil metadata", ok, nil},
		{"missing doc id", ok, &store.DocumentMetadata{}},
		{"mismatched doc id", ok, meta("doc-9")},
		{"evaluator error", boom, meta("doc-1")},
		{"evaluator panic", panicky, meta("doc-1")},
		{"nan score", nan, meta("doc-1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClassifier(tt.signal)
			require.NoError(t, err)
			a := c.Assess(store.Candidate{DocID: "doc-1"}, tt.meta, nil)
			assert.Equal(t, 1.0, a.RiskScore)
			assert.Equal(t, 0.0, a.Confidence)
			assert.True(t, a.Degraded)
			assert.NotEmpty(t, a.FailReason)
			assert.Equal(t, "doc-1", a.DocID)
		})
	}
}

func zero() float64 { return 0 }

func TestAssess_Deterministic(t *testing.T) {
	c := defaultClassifier(t)
	m := meta("doc-1")
	m.Flags = []string{"attorney_client"}
	hood := []store.Neighbor{{NodeID: "n", Tags: []string{"privileged"}, Distance: 2}}

	first := c.Assess(store.Candidate{DocID: "doc-1"}, m, hood)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Assess(store.Candidate{DocID: "doc-1"}, m, hood))
	}
}

func TestNewClassifier_RejectsBadEnsembles(t *testing.T) {
	eval := func(Input) (float64, error) { return 0, nil }

	_, err := NewClassifier()
	assert.Error(t, err)
	_, err = NewClassifier(Signal{Name: "neg", Weight: -0.1, Evaluate: eval})
	assert.Error(t, err)
	_, err = NewClassifier(Signal{Name: "dup", Weight: 1, Evaluate: eval}, Signal{Name: "dup", Weight: 1, Evaluate: eval})
	assert.Error(t, err)
	_, err = NewClassifier(Signal{Name: "noeval", Weight: 1})
	assert.Error(t, err)
}

func TestLoadEnsembleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privilege.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
counsel_roster: ["@firm.test"]
weights:
  privilege_flag: 0.9
`), 0644))

	cfg, err := LoadEnsembleConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"@firm.test"}, cfg.CounselRoster)
	assert.Equal(t, 0.9, cfg.Weights[SignalPrivilegeFlag])
	assert.Equal(t, 0.5, cfg.Weights[SignalCounselParty])
	assert.Equal(t, "privileged", cfg.ProximityTag)

	c, err := cfg.Build()
	require.NoError(t, err)
	m := meta("doc-1")
	m.Sender = "associate@firm.test"
	assert.InDelta(t, 0.5, c.Assess(store.Candidate{DocID: "doc-1"}, m, nil).RiskScore, 1e-12)
}

func TestEnsembleConfig_RejectsUnknownWeight(t *testing.T) {
	cfg := DefaultEnsembleConfig()
	cfg.Weights["gut_feeling"] = 0.2
	_, err := cfg.Build()
	assert.Error(t, err)
}
