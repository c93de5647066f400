package broker

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubVectors struct {
	hits  []VectorHit
	err   error
	delay time.Duration
}

func (s stubVectors) Search(ctx context.Context, embedding []float32, k int) ([]VectorHit, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.hits, s.err
}

type stubGraph struct {
	hits      []GraphHit
	err       error
	seeds     []string
	gotSeeds  *[]string
	resolveFn func(text string) ([]string, error)
}

func (s stubGraph) Neighbors(ctx context.Context, seedIDs []string, hops int) ([]GraphHit, error) {
	if s.gotSeeds != nil {
		*s.gotSeeds = seedIDs
	}
	return s.hits, s.err
}

type resolvingGraph struct{ stubGraph }

func (r resolvingGraph) ResolveSeeds(ctx context.Context, text string, limit int) ([]string, error) {
	return r.resolveFn(text)
}

func query() store.Query {
	return store.Query{
		ID:      "q-1",
		Text:    "communications re: NDA with Acme",
		Filters: store.Filters{SeedIDs: []string{"acme"}},
		TopK:    10,
		Mode:    store.ModePrecision,
	}
}

func newBroker(e Embedder, v VectorIndex, g GraphStore) *Broker {
	cfg := DefaultConfig()
	cfg.SourceTimeout = 200 * time.Millisecond
	return NewBroker(e, v, g, cfg, logger.NewNopLogger())
}

func TestFetch_MergesBothSources(t *testing.T) {
	b := newBroker(stubEmbedder{},
		stubVectors{hits: []VectorHit{{DocID: "doc-1", Similarity: 0.91}, {DocID: "doc-2", Similarity: 0.60}}},
		stubGraph{hits: []GraphHit{{DocID: "doc-1", Distance: 0.25}}},
	)

	set, err := b.Fetch(context.Background(), query())
	require.NoError(t, err)
	assert.False(t, set.Degraded)
	assert.Empty(t, set.FailedSources)
	require.Len(t, set.Candidates, 2)

	doc1 := set.Candidates[0]
	assert.Equal(t, "doc-1", doc1.DocID)
	assert.InDelta(t, 0.91, *doc1.VectorScore, 1e-12)
	assert.InDelta(t, 0.8, *doc1.GraphScore, 1e-12)
	assert.True(t, doc1.Corroborated())

	doc2 := set.Candidates[1]
	assert.Nil(t, doc2.GraphScore)
	assert.Equal(t, []store.Source{store.SourceVector}, doc2.Sources)
}

func TestFetch_GraphFailureDegrades(t *testing.T) {
	b := newBroker(stubEmbedder{},
		stubVectors{hits: []VectorHit{{DocID: "doc-1", Similarity: 0.91}}},
		stubGraph{err: errors.New("graph down")},
	)

	set, err := b.Fetch(context.Background(), query())
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Equal(t, []store.Source{store.SourceGraph}, set.FailedSources)
	require.Len(t, set.Candidates, 1)
	assert.Nil(t, set.Candidates[0].GraphScore)
}

func TestFetch_EmbeddingFailureDisablesOnlyVector(t *testing.T) {
	b := newBroker(stubEmbedder{err: errors.New("model offline")},
		stubVectors{hits: []VectorHit{{DocID: "doc-1", Similarity: 0.91}}},
		stubGraph{hits: []GraphHit{{DocID: "doc-7", Distance: 1}}},
	)

	set, err := b.Fetch(context.Background(), query())
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Equal(t, []store.Source{store.SourceVector}, set.FailedSources)
	require.Len(t, set.Candidates, 1)
	assert.Equal(t, "doc-7", set.Candidates[0].DocID)
	assert.InDelta(t, 0.5, *set.Candidates[0].GraphScore, 1e-12)
}

func TestFetch_SlowSourceTimesOut(t *testing.T) {
	b := newBroker(stubEmbedder{},
		stubVectors{hits: []VectorHit{{DocID: "doc-1", Similarity: 0.9}}, delay: time.Second},
		stubGraph{hits: []GraphHit{{DocID: "doc-3", Distance: 0}}},
	)

	start := time.Now()
	set, err := b.Fetch(context.Background(), query())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.True(t, set.Degraded)
	assert.Equal(t, []store.Source{store.SourceVector}, set.FailedSources)
}

func TestFetch_BothFail(t *testing.T) {
	b := newBroker(stubEmbedder{},
		stubVectors{err: errors.New("index down")},
		stubGraph{err: errors.New("graph down")},
	)

	_, err := b.Fetch(context.Background(), query())
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
}

func TestFetch_ResolvesSeedsWhenNoneGiven(t *testing.T) {
	var got []string
	g := resolvingGraph{stubGraph{
		hits:     []GraphHit{{DocID: "doc-4", Distance: 1}},
		gotSeeds: &got,
		resolveFn: func(text string) ([]string, error) {
			return []string{"acme"}, nil
		},
	}}
	b := newBroker(stubEmbedder{}, stubVectors{}, g)

	q := query()
	q.Filters.SeedIDs = nil
	set, err := b.Fetch(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, got)
	require.Len(t, set.Candidates, 1)
	assert.Equal(t, "doc-4", set.Candidates[0].DocID)
}

func TestMerge_KeepsBestScorePerSource(t *testing.T) {
	out := Merge(
		[]VectorHit{{DocID: "b", Similarity: 0.3}, {DocID: "b", Similarity: 0.7}, {DocID: "a", Similarity: 1.4}},
		[]GraphHit{{DocID: "b", Distance: 3}, {DocID: "b", Distance: 1}, {DocID: "", Distance: 0}},
	)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].DocID)
	assert.Equal(t, 1.0, *out[0].VectorScore)
	assert.InDelta(t, 0.7, *out[1].VectorScore, 1e-12)
	assert.InDelta(t, 0.5, *out[1].GraphScore, 1e-12)
}

func TestMerge_DropsNonFiniteScores(t *testing.T) {
	out := Merge(
		[]VectorHit{
			{DocID: "a", Similarity: 0.9},
			{DocID: "b", Similarity: math.NaN()},
			{DocID: "c", Similarity: 0.1},
			{DocID: "d", Similarity: 0.5},
			{DocID: "e", Similarity: math.Inf(1)},
		},
		[]GraphHit{{DocID: "e", Distance: 1}, {DocID: "f", Distance: math.NaN()}},
	)

	ids := make([]string, len(out))
	for i, c := range out {
		ids[i] = c.DocID
	}
	assert.Equal(t, []string{"a", "c", "d", "e"}, ids)
	assert.Nil(t, out[3].VectorScore)
	assert.Equal(t, []store.Source{store.SourceGraph}, out[3].Sources)
}
