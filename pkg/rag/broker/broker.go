package broker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/store"
)

var ErrRetrievalUnavailable = errors.New("retrieval unavailable: both candidate sources failed")

// VectorHit is one KNN result. Similarity is cosine similarity in [0,1].
type VectorHit struct {
	DocID      string
	Similarity float64
	Snippet    string
}

// GraphHit is one neighbor reached from the seeds.
type GraphHit struct {
	DocID    string
	Distance float64
}

type VectorIndex interface {
	Search(ctx context.Context, embedding []float32, k int) ([]VectorHit, error)
}

type GraphStore interface {
	Neighbors(ctx context.Context, seedIDs []string, hops int) ([]GraphHit, error)
}

// SeedResolver is optionally implemented by a GraphStore to map query text
// to seed nodes when the query names none.
type SeedResolver interface {
	ResolveSeeds(ctx context.Context, text string, limit int) ([]string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config bounds the fan-out.
type Config struct {
	Hops int
	// Overfetch multiplies top_k for the KNN request so fusion has room to reorder.
	Overfetch     int
	SourceTimeout time.Duration
	MaxSeeds      int
}

func DefaultConfig() Config {
	return Config{
		Hops:          2,
		Overfetch:     3,
		SourceTimeout: 3 * time.Second,
		MaxSeeds:      8,
	}
}

// Broker fans a query out to the vector index and the graph store concurrently.
type Broker struct {
	embedder Embedder
	vectors  VectorIndex
	graph    GraphStore
	config   Config
	logger   logger.ILogger
}

func NewBroker(embedder Embedder, vectors VectorIndex, graph GraphStore, config Config, log logger.ILogger) *Broker {
	if config.Hops <= 0 {
		config.Hops = 1
	}
	if config.Overfetch <= 0 {
		config.Overfetch = 1
	}
	return &Broker{
		embedder: embedder,
		vectors:  vectors,
		graph:    graph,
		config:   config,
		logger:   log,
	}
}

type sourceResult struct {
	source store.Source
	vector []VectorHit
	graph  []GraphHit
	err    error
}

// Fetch returns the merged candidates of both sources. A single failing
// source degrades the set; two failing sources abort with ErrRetrievalUnavailable.
func (b *Broker) Fetch(ctx context.Context, q store.Query) (store.CandidateSet, error) {
	results := make(chan sourceResult, 2)

	go func() {
		hits, err := b.fetchVector(ctx, q)
		results <- sourceResult{source: store.SourceVector, vector: hits, err: err}
	}()
	go func() {
		hits, err := b.fetchGraph(ctx, q)
		results <- sourceResult{source: store.SourceGraph, graph: hits, err: err}
	}()

	var (
		vectorHits []VectorHit
		graphHits  []GraphHit
		failed     []store.Source
		errs       []error
	)
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			failed = append(failed, res.source)
			errs = append(errs, fmt.Errorf("%s: %w", res.source, res.err))
			b.logger.Warn("BROKER", "Candidate source failed", map[string]interface{}{
				"query_id": q.ID,
				"source":   string(res.source),
				"error":    res.err.Error(),
			})
			continue
		}
		vectorHits = append(vectorHits, res.vector...)
		graphHits = append(graphHits, res.graph...)
	}

	if len(failed) == 2 {
		return store.CandidateSet{}, errors.Join(append([]error{ErrRetrievalUnavailable}, errs...)...)
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	set := store.CandidateSet{
		Candidates:    Merge(vectorHits, graphHits),
		Degraded:      len(failed) > 0,
		FailedSources: failed,
	}

	b.logger.Debug("BROKER", "Candidates fetched", map[string]interface{}{
		"query_id":    q.ID,
		"vector_hits": len(vectorHits),
		"graph_hits":  len(graphHits),
		"merged":      len(set.Candidates),
		"degraded":    set.Degraded,
	})
	return set, nil
}

func (b *Broker) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.config.SourceTimeout > 0 {
		return context.WithTimeout(ctx, b.config.SourceTimeout)
	}
	return context.WithCancel(ctx)
}

func (b *Broker) fetchVector(ctx context.Context, q store.Query) ([]VectorHit, error) {
	if b.vectors == nil || b.embedder == nil {
		return nil, errors.New("vector source not configured")
	}
	ctx, cancel := b.sourceContext(ctx)
	defer cancel()

	embedding, err := b.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := b.vectors.Search(ctx, embedding, q.TopK*b.config.Overfetch)
	if err != nil {
		return nil, err
	}
	// a late reply after the deadline counts as a timeout
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

func (b *Broker) fetchGraph(ctx context.Context, q store.Query) ([]GraphHit, error) {
	if b.graph == nil {
		return nil, errors.New("graph source not configured")
	}
	ctx, cancel := b.sourceContext(ctx)
	defer cancel()

	seeds := q.Filters.SeedIDs
	if len(seeds) == 0 {
		resolver, ok := b.graph.(SeedResolver)
		if !ok {
			return nil, nil
		}
		resolved, err := resolver.ResolveSeeds(ctx, q.Text, b.config.MaxSeeds)
		if err != nil {
			return nil, fmt.Errorf("resolve seeds: %w", err)
		}
		seeds = resolved
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	hits, err := b.graph.Neighbors(ctx, seeds, b.config.Hops)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

// Proximity maps a graph distance onto (0,1]; the seed itself scores 1.
func Proximity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
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

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Merge unions hits by doc id. Duplicate rows from one source keep the best
// score. A hit with a NaN or infinite score counts as not returned. Output is
// ordered by doc id so fusion input is stable.
func Merge(vectorHits []VectorHit, graphHits []GraphHit) []store.Candidate {
	byID := make(map[string]*store.Candidate)
	get := func(id string) *store.Candidate {
		c, ok := byID[id]
		if !ok {
			c = &store.Candidate{DocID: id}
			byID[id] = c
		}
		return c
	}

	for _, h := range vectorHits {
		if h.DocID == "" || !finite(h.Similarity) {
			continue
		}
		c := get(h.DocID)
		score := clamp01(h.Similarity)
		if c.VectorScore == nil || score > *c.VectorScore {
			c.VectorScore = store.Score(score)
			c.Snippet = h.Snippet
		}
	}
	for _, h := range graphHits {
		if h.DocID == "" || math.IsNaN(h.Distance) {
			continue
		}
		c := get(h.DocID)
		score := Proximity(h.Distance)
		if c.GraphScore == nil || score > *c.GraphScore {
			c.GraphScore = store.Score(score)
		}
	}

	out := make([]store.Candidate, 0, len(byID))
	for _, c := range byID {
		c.Sources = nil
		if c.VectorScore != nil {
			c.Sources = append(c.Sources, store.SourceVector)
		}
		if c.GraphScore != nil {
			c.Sources = append(c.Sources, store.SourceGraph)
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}
