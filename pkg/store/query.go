package store

import (
	"errors"
	"strings"
	"time"
)

// Mode selects the retrieval profile used for fusion.
type Mode string

const (
	ModePrecision Mode = "precision"
	ModeRecall    Mode = "recall"
)

var ErrInvalidQuery = errors.New("invalid query")

// Filters narrows a query. SeedIDs are graph nodes to expand from; when empty
// the graph store resolves seeds from the query text.
type Filters struct {
	SeedIDs    []string `json:"seed_ids,omitempty"`
	Custodians []string `json:"custodians,omitempty"`
}

// Query is a single request-scoped retrieval request.
type Query struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Filters Filters `json:"filters"`
	TopK    int     `json:"top_k"`
	Mode    Mode    `json:"mode"`
	Actor   string  `json:"actor"`
	// Deadline shortens the engine's configured deadline when set.
	Deadline time.Duration `json:"deadline,omitempty"`
}

// Validate enforces non-empty text, a positive top_k and a non-negative
// deadline.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.Join(ErrInvalidQuery, errors.New("text is empty"))
	}
	if q.TopK <= 0 {
		return errors.Join(ErrInvalidQuery, errors.New("top_k must be positive"))
	}
	if q.Deadline < 0 {
		return errors.Join(ErrInvalidQuery, errors.New("deadline must not be negative"))
	}
	switch q.Mode {
	case "", ModePrecision, ModeRecall:
	default:
		return errors.Join(ErrInvalidQuery, errors.New("unknown mode "+string(q.Mode)))
	}
	return nil
}
