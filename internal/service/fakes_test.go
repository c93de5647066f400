package service

import (
	"context"
	"errors"
	"sync"

	"legal-discovery-be/internal/model"
	"legal-discovery-be/internal/repository/contract"
	"legal-discovery-be/internal/repository/specification"
	"legal-discovery-be/internal/repository/unitofwork"
	"legal-discovery-be/pkg/events"
	"legal-discovery-be/pkg/rag/broker"
	"legal-discovery-be/pkg/store"
)

// corpusStore is an in-memory stand-in for the three corpus tables. Writes
// are staged per unit of work and applied on commit.
type corpusStore struct {
	mu         sync.Mutex
	metadata   map[string]*store.DocumentMetadata
	embeddings map[string][]*model.DocumentEmbedding
	nodes      map[string]*model.GraphNode
	edges      []*model.GraphEdge
	failUpsert error
}

func newCorpusStore() *corpusStore {
	return &corpusStore{
		metadata:   map[string]*store.DocumentMetadata{},
		embeddings: map[string][]*model.DocumentEmbedding{},
		nodes:      map[string]*model.GraphNode{},
	}
}

func (s *corpusStore) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: s}
}

type fakeUow struct {
	store   *corpusStore
	began   bool
	pending []func()
}

func (u *fakeUow) Begin(ctx context.Context) error { u.began = true; return nil }

func (u *fakeUow) Commit() error {
	if !u.began {
		return errors.New("no transaction to commit")
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for _, fn := range u.pending {
		fn()
	}
	u.pending, u.began = nil, false
	return nil
}

func (u *fakeUow) Rollback() error {
	if !u.began {
		return errors.New("no transaction to rollback")
	}
	u.pending, u.began = nil, false
	return nil
}

func (u *fakeUow) stage(fn func()) { u.pending = append(u.pending, fn) }

func (u *fakeUow) DocumentEmbeddingRepository() contract.DocumentEmbeddingRepository {
	return fakeEmbeddings{u}
}

func (u *fakeUow) DocumentMetadataRepository() contract.DocumentMetadataRepository {
	return fakeMetadata{u}
}

func (u *fakeUow) GraphRepository() contract.GraphRepository {
	return fakeGraph{u}
}

type fakeEmbeddings struct{ u *fakeUow }

func (f fakeEmbeddings) Search(ctx context.Context, embedding []float32, k int) ([]broker.VectorHit, error) {
	return nil, nil
}

func (f fakeEmbeddings) CreateBulk(ctx context.Context, embeddings []*model.DocumentEmbedding) error {
	f.u.stage(func() {
		for _, e := range embeddings {
			f.u.store.embeddings[e.DocId] = append(f.u.store.embeddings[e.DocId], e)
		}
	})
	return nil
}

func (f fakeEmbeddings) DeleteByDocId(ctx context.Context, docId string) error {
	f.u.stage(func() { delete(f.u.store.embeddings, docId) })
	return nil
}

func (f fakeEmbeddings) Count(ctx context.Context) (int64, error) {
	f.u.store.mu.Lock()
	defer f.u.store.mu.Unlock()
	var n int64
	for _, es := range f.u.store.embeddings {
		n += int64(len(es))
	}
	return n, nil
}

type fakeMetadata struct{ u *fakeUow }

func (f fakeMetadata) Get(ctx context.Context, docId string) (*store.DocumentMetadata, error) {
	f.u.store.mu.Lock()
	defer f.u.store.mu.Unlock()
	md, ok := f.u.store.metadata[docId]
	if !ok {
		return nil, errors.New("not found")
	}
	return md, nil
}

func (f fakeMetadata) FindAll(ctx context.Context, specs ...specification.Specification) ([]*store.DocumentMetadata, error) {
	return nil, nil
}

func (f fakeMetadata) Upsert(ctx context.Context, md *store.DocumentMetadata) error {
	if f.u.store.failUpsert != nil {
		return f.u.store.failUpsert
	}
	f.u.stage(func() { f.u.store.metadata[md.DocID] = md })
	return nil
}

type fakeGraph struct{ u *fakeUow }

func (f fakeGraph) Neighbors(ctx context.Context, seedIDs []string, hops int) ([]broker.GraphHit, error) {
	return nil, nil
}

func (f fakeGraph) ResolveSeeds(ctx context.Context, text string, limit int) ([]string, error) {
	return nil, nil
}

func (f fakeGraph) Neighborhood(ctx context.Context, docId string, hops int) ([]store.Neighbor, error) {
	return nil, nil
}

func (f fakeGraph) CreateNodes(ctx context.Context, nodes []*model.GraphNode) error {
	f.u.stage(func() {
		for _, n := range nodes {
			f.u.store.nodes[n.Id] = n
		}
	})
	return nil
}

func (f fakeGraph) EnsureNodes(ctx context.Context, nodes []*model.GraphNode) error {
	f.u.stage(func() {
		for _, n := range nodes {
			if _, ok := f.u.store.nodes[n.Id]; !ok {
				f.u.store.nodes[n.Id] = n
			}
		}
	})
	return nil
}

func (f fakeGraph) CreateEdges(ctx context.Context, edges []*model.GraphEdge) error {
	f.u.stage(func() { f.u.store.edges = append(f.u.store.edges, edges...) })
	return nil
}

func (f fakeGraph) DeleteEdgesFrom(ctx context.Context, nodeId string) error {
	f.u.stage(func() {
		kept := f.u.store.edges[:0]
		for _, e := range f.u.store.edges {
			if e.FromId != nodeId {
				kept = append(kept, e)
			}
		}
		f.u.store.edges = kept
	})
	return nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	fail   int
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("nats: no responders")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) snapshot() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type invalidations struct {
	mu  sync.Mutex
	ids []string
}

func (i *invalidations) Invalidate(docId string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, docId)
}
