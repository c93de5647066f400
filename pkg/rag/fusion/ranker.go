package fusion

import (
	"fmt"
	"math"
	"sort"

	"legal-discovery-be/pkg/store"
)

// Profile holds the fusion weights of one retrieval mode.
// Alpha weights the vector score when both sources are present; Discount
// scales a single-source score.
type Profile struct {
	Alpha    float64
	Discount float64
}

// Validate requires Alpha in [0,1] and Discount in [0,1).
func (p Profile) Validate() error {
	if p.Alpha < 0 || p.Alpha > 1 {
		return fmt.Errorf("fusion: alpha %.3f outside [0,1]", p.Alpha)
	}
	if p.Discount < 0 || p.Discount >= 1 {
		return fmt.Errorf("fusion: discount %.3f outside [0,1)", p.Discount)
	}
	return nil
}

// Profiles maps each mode to its fusion weights.
type Profiles map[store.Mode]Profile

// DefaultProfiles favors corroborated evidence in precision mode and lets
// single-source hits through more easily in recall mode.
func DefaultProfiles() Profiles {
	return Profiles{
		store.ModePrecision: {Alpha: 0.7, Discount: 0.5},
		store.ModeRecall:    {Alpha: 0.5, Discount: 0.8},
	}
}

func (ps Profiles) Validate() error {
	for mode, p := range ps {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("mode %s: %w", mode, err)
		}
	}
	return nil
}

// Ranker merges vector and graph scores into one ordered list.
type Ranker struct {
	profiles Profiles
}

func NewRanker(profiles Profiles) (*Ranker, error) {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	if err := profiles.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{profiles: profiles}, nil
}

// Profile returns the weights for mode; an empty mode means precision.
func (r *Ranker) Profile(mode store.Mode) (Profile, error) {
	if mode == "" {
		mode = store.ModePrecision
	}
	p, ok := r.profiles[mode]
	if !ok {
		return Profile{}, fmt.Errorf("fusion: no profile for mode %q", mode)
	}
	return p, nil
}

// FusedScore applies the profile to the scores that are present. A candidate
// with neither score fuses to zero.
func FusedScore(p Profile, vector, graph *float64) float64 {
	switch {
	case vector != nil && graph != nil:
		return p.Alpha*(*vector) + (1-p.Alpha)*(*graph)
	case vector != nil:
		return p.Discount * (*vector)
	case graph != nil:
		return p.Discount * (*graph)
	default:
		return 0
	}
}

// Fuse scores, sorts and truncates. Sorting happens before truncation so the
// result never depends on backend return order. A non-finite score ranks as 0.
// topK <= 0 keeps every candidate.
func (r *Ranker) Fuse(set store.CandidateSet, mode store.Mode, topK int) ([]store.Candidate, error) {
	p, err := r.Profile(mode)
	if err != nil {
		return nil, err
	}

	out := make([]store.Candidate, len(set.Candidates))
	for i, c := range set.Candidates {
		c.FusedScore = FusedScore(p, c.VectorScore, c.GraphScore)
		if math.IsNaN(c.FusedScore) || math.IsInf(c.FusedScore, 0) {
			c.FusedScore = 0
		}
		out[i] = c
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.Corroborated() != b.Corroborated() {
			return a.Corroborated()
		}
		return a.DocID < b.DocID
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
