package store

import "strings"

// Source identifies which backend surfaced a candidate.
type Source string

const (
	SourceVector Source = "vector"
	SourceGraph  Source = "graph"
)

// Candidate is a document surfaced by one or both backends for a single query.
// A nil score means the candidate was not returned by that source.
type Candidate struct {
	DocID       string   `json:"doc_id"`
	VectorScore *float64 `json:"vector_score"`
	GraphScore  *float64 `json:"graph_score"`
	FusedScore  float64  `json:"fused_score"`
	Sources     []Source `json:"sources"`
	Snippet     string   `json:"-"`
}

// HasSource reports whether the candidate was returned by src.
func (c Candidate) HasSource(src Source) bool {
	for _, s := range c.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Corroborated is true when both sources returned the candidate.
func (c Candidate) Corroborated() bool {
	return c.VectorScore != nil && c.GraphScore != nil
}

// CandidateSet is the broker output before fusion.
type CandidateSet struct {
	Candidates []Candidate `json:"candidates"`
	Degraded   bool        `json:"degraded"`
	// FailedSources lists backends that errored or timed out.
	FailedSources []Source `json:"failed_sources,omitempty"`
}

// Score returns a pointer to v, for building optional scores.
func Score(v float64) *float64 {
	return &v
}

// DocumentMetadata is the subset of case-document metadata used for privilege screening.
type DocumentMetadata struct {
	DocID      string            `json:"doc_id"`
	Title      string            `json:"title"`
	Subject    string            `json:"subject"`
	Author     string            `json:"author"`
	Sender     string            `json:"sender"`
	Recipients []string          `json:"recipients"`
	Custodian  string            `json:"custodian"`
	Roles      map[string]string `json:"roles"` // party address -> role (e.g. "counsel")
	Flags      []string          `json:"flags"`
	Content    string            `json:"-"`
}

// Parties returns author, sender and recipients lower-cased, skipping blanks.
func (m DocumentMetadata) Parties() []string {
	var out []string
	for _, p := range append([]string{m.Author, m.Sender}, m.Recipients...) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Neighbor is a graph node near a candidate document.
type Neighbor struct {
	NodeID   string   `json:"node_id"`
	Tags     []string `json:"tags"`
	Distance float64  `json:"distance"`
}

// HasTag reports whether the neighbor carries tag (case-insensitive).
func (n Neighbor) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
