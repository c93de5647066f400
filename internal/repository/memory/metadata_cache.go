package memory

import (
	"context"
	"time"

	"legal-discovery-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// MetadataSource is the store the cache reads through to.
type MetadataSource interface {
	Get(ctx context.Context, docId string) (*store.DocumentMetadata, error)
}

// MetadataCache is a read-through cache in front of the metadata table.
// Lookup errors are never cached so a transient failure is retried by the
// next query.
type MetadataCache struct {
	source MetadataSource
	cache  *cache.Cache
}

func NewMetadataCache(source MetadataSource, ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MetadataCache{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (c *MetadataCache) Get(ctx context.Context, docId string) (*store.DocumentMetadata, error) {
	if x, found := c.cache.Get(docId); found {
		return clone(x.(*store.DocumentMetadata)), nil
	}
	md, err := c.source.Get(ctx, docId)
	if err != nil {
		return nil, err
	}
	if md != nil {
		c.cache.Set(docId, clone(md), cache.DefaultExpiration)
	}
	return md, nil
}

// Invalidate drops a document after its metadata changed.
func (c *MetadataCache) Invalidate(docId string) {
	c.cache.Delete(docId)
}

func (c *MetadataCache) Len() int {
	return c.cache.ItemCount()
}

// clone keeps callers from mutating the cached copy.
func clone(md *store.DocumentMetadata) *store.DocumentMetadata {
	out := *md
	out.Recipients = append([]string(nil), md.Recipients...)
	out.Flags = append([]string(nil), md.Flags...)
	if md.Roles != nil {
		out.Roles = make(map[string]string, len(md.Roles))
		for k, v := range md.Roles {
			out.Roles[k] = v
		}
	}
	return &out
}
