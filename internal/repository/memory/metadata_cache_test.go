package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"legal-discovery-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) Get(ctx context.Context, docId string) (*store.DocumentMetadata, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &store.DocumentMetadata{DocID: docId, Flags: []string{"privileged"}}, nil
}

func TestMetadataCache_ReadsThroughOnce(t *testing.T) {
	src := &countingSource{}
	c := NewMetadataCache(src, time.Minute)

	first, err := c.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	second, err := c.Get(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestMetadataCache_ReturnsCopies(t *testing.T) {
	c := NewMetadataCache(&countingSource{}, time.Minute)
	md, err := c.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	md.Flags[0] = "tampered"

	again, err := c.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"privileged"}, again.Flags)
}

func TestMetadataCache_DoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("db down")}
	c := NewMetadataCache(src, time.Minute)

	_, err := c.Get(context.Background(), "doc-1")
	assert.Error(t, err)
	src.err = nil
	md, err := c.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", md.DocID)
	assert.Equal(t, 2, src.calls)
}

func TestMetadataCache_Invalidate(t *testing.T) {
	src := &countingSource{}
	c := NewMetadataCache(src, time.Minute)
	_, _ = c.Get(context.Background(), "doc-1")
	c.Invalidate("doc-1")
	_, _ = c.Get(context.Background(), "doc-1")
	assert.Equal(t, 2, src.calls)
}
