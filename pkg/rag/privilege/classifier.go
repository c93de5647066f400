package privilege

import (
	"errors"
	"fmt"
	"math"

	"legal-discovery-be/pkg/store"
)

var ErrMissingMetadata = errors.New("privilege: metadata unavailable")

// Classifier runs a fixed signal ensemble. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	signals []Signal
}

func NewClassifier(signals ...Signal) (*Classifier, error) {
	if len(signals) == 0 {
		return nil, errors.New("privilege: ensemble has no signals")
	}
	seen := make(map[string]bool)
	for _, s := range signals {
		if s.Name == "" {
			return nil, errors.New("privilege: signal without a name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("privilege: duplicate signal %q", s.Name)
		}
		seen[s.Name] = true
		if s.Weight < 0 || math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) {
			return nil, fmt.Errorf("privilege: signal %q has invalid weight %v", s.Name, s.Weight)
		}
		if s.Evaluate == nil {
			return nil, fmt.Errorf("privilege: signal %q has no evaluator", s.Name)
		}
	}
	return &Classifier{signals: append([]Signal(nil), signals...)}, nil
}

// Signals returns the ensemble in evaluation order.
func (c *Classifier) Signals() []Signal {
	return append([]Signal(nil), c.signals...)
}

// Assess scores a candidate. Any failure yields the maximum risk with zero
// confidence; Assess itself never fails.
func (c *Classifier) Assess(candidate store.Candidate, metadata *store.DocumentMetadata, neighborhood []store.Neighbor) (assessment store.PrivilegeAssessment) {
	defer func() {
		if r := recover(); r != nil {
			assessment = FailClosed(candidate.DocID, fmt.Errorf("privilege: evaluator panic: %v", r))
		}
	}()

	if err := checkMetadata(candidate, metadata); err != nil {
		return FailClosed(candidate.DocID, err)
	}

	in := Input{Candidate: candidate, Metadata: metadata, Neighborhood: neighborhood}
	results := make([]store.SignalResult, 0, len(c.signals))
	total := 0.0
	for _, s := range c.signals {
		score, err := s.Evaluate(in)
		if err != nil {
			return FailClosed(candidate.DocID, fmt.Errorf("privilege: signal %s: %w", s.Name, err))
		}
		if math.IsNaN(score) {
			return FailClosed(candidate.DocID, fmt.Errorf("privilege: signal %s returned NaN", s.Name))
		}
		score = clamp01(score)
		contribution := s.Weight * score
		total += contribution
		results = append(results, store.SignalResult{
			Name:         s.Name,
			Weight:       s.Weight,
			Score:        score,
			Contribution: contribution,
		})
	}

	return store.PrivilegeAssessment{
		DocID:      candidate.DocID,
		RiskScore:  clamp01(total),
		Signals:    results,
		Confidence: 1,
	}
}

func checkMetadata(candidate store.Candidate, metadata *store.DocumentMetadata) error {
	if metadata == nil {
		return ErrMissingMetadata
	}
	if metadata.DocID == "" {
		return errors.Join(ErrMissingMetadata, errors.New("doc_id is empty"))
	}
	if metadata.DocID != candidate.DocID {
		return fmt.Errorf("privilege: metadata for %q attached to candidate %q", metadata.DocID, candidate.DocID)
	}
	return nil
}

// FailClosed is the assessment used whenever evidence could not be evaluated.
func FailClosed(docID string, err error) store.PrivilegeAssessment {
	return store.PrivilegeAssessment{
		DocID:      docID,
		RiskScore:  1,
		Confidence: 0,
		Degraded:   true,
		FailReason: err.Error(),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
