package implementation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"legal-discovery-be/internal/mapper"
	"legal-discovery-be/internal/model"
	"legal-discovery-be/internal/repository/contract"
	"legal-discovery-be/internal/repository/specification"
	"legal-discovery-be/pkg/rag/broker"
	"legal-discovery-be/pkg/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultMaxNodes = 500

type GraphRepositoryImpl struct {
	db       *gorm.DB
	mapper   *mapper.DocumentMapper
	maxNodes int
}

func NewGraphRepository(db *gorm.DB) contract.GraphRepository {
	return &GraphRepositoryImpl{
		db:       db,
		mapper:   mapper.NewDocumentMapper(),
		maxNodes: defaultMaxNodes,
	}
}

// ErrNeighborhoodTruncated means a document's neighborhood exceeds the node
// cap and cannot be screened in full.
var ErrNeighborhoodTruncated = errors.New("graph: neighborhood exceeds node cap")

// walk expands level by level from the seeds, treating edges as undirected,
// and keeps the cheapest path cost per node within hops. One query per level.
// truncated reports that the node cap stopped some node from being reached.
func (r *GraphRepositoryImpl) walk(ctx context.Context, seeds []string, hops int) (dist map[string]float64, truncated bool, err error) {
	dist = make(map[string]float64, len(seeds))
	for _, s := range seeds {
		dist[s] = 0
	}
	frontier := append([]string(nil), seeds...)

	for depth := 0; depth < hops && len(frontier) > 0; depth++ {
		var edges []model.GraphEdge
		err := r.db.WithContext(ctx).
			Where("from_id IN ? OR to_id IN ?", frontier, frontier).
			Order("from_id, to_id, id").
			Find(&edges).Error
		if err != nil {
			return nil, false, fmt.Errorf("walk depth %d: %w", depth, err)
		}

		var cut bool
		frontier, cut = relax(dist, frontier, edges, r.maxNodes)
		truncated = truncated || cut
	}
	return dist, truncated, nil
}

// relax applies one level of edges to dist and returns the next frontier,
// sorted. New nodes beyond maxNodes are skipped and reported.
func relax(dist map[string]float64, frontier []string, edges []model.GraphEdge, maxNodes int) ([]string, bool) {
	inFrontier := make(map[string]bool, len(frontier))
	for _, id := range frontier {
		inFrontier[id] = true
	}
	next := make(map[string]bool)
	truncated := false
	step := func(from, to string, w float64) {
		if !inFrontier[from] {
			return
		}
		if w < 0 {
			w = 0
		}
		cand := dist[from] + w
		if cur, ok := dist[to]; !ok || cand < cur {
			if !ok && len(dist) >= maxNodes {
				truncated = true
				return
			}
			dist[to] = cand
			next[to] = true
		}
	}
	for _, e := range edges {
		step(e.FromId, e.ToId, e.Weight)
		step(e.ToId, e.FromId, e.Weight)
	}

	out := make([]string, 0, len(next))
	for id := range next {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, truncated
}

func (r *GraphRepositoryImpl) nodes(ctx context.Context, ids []string) ([]model.GraphNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var nodes []model.GraphNode
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Neighbors returns the document nodes reachable from the seeds.
func (r *GraphRepositoryImpl) Neighbors(ctx context.Context, seedIDs []string, hops int) ([]broker.GraphHit, error) {
	dist, _, err := r.walk(ctx, seedIDs, hops)
	if err != nil {
		return nil, err
	}
	nodes, err := r.nodes(ctx, keys(dist))
	if err != nil {
		return nil, err
	}

	var hits []broker.GraphHit
	for _, n := range nodes {
		if n.DocId == nil || *n.DocId == "" {
			continue
		}
		hits = append(hits, broker.GraphHit{DocID: *n.DocId, Distance: dist[n.Id]})
	}
	return hits, nil
}

// ResolveSeeds picks non-document nodes whose label appears in the text,
// longest label first.
func (r *GraphRepositoryImpl) ResolveSeeds(ctx context.Context, text string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 8
	}
	var ids []string
	query := specification.Apply(r.db.WithContext(ctx).Model(&model.GraphNode{}),
		specification.NodeLabelMatches{Text: text},
	)
	err := query.
		Where("kind <> ?", "document").
		Order("LENGTH(label) DESC, id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Neighborhood returns the tagged nodes around a document, excluding the
// document's own nodes. A neighborhood larger than the node cap or a node
// with unreadable tags is an error, so screening fails closed.
func (r *GraphRepositoryImpl) Neighborhood(ctx context.Context, docId string, hops int) ([]store.Neighbor, error) {
	var start []string
	err := r.db.WithContext(ctx).Model(&model.GraphNode{}).
		Where("doc_id = ?", docId).
		Pluck("id", &start).Error
	if err != nil {
		return nil, err
	}
	if len(start) == 0 {
		return nil, nil
	}

	dist, truncated, err := r.walk(ctx, start, hops)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("%w: document %s", ErrNeighborhoodTruncated, docId)
	}
	for _, s := range start {
		delete(dist, s)
	}
	nodes, err := r.nodes(ctx, keys(dist))
	if err != nil {
		return nil, err
	}

	out := make([]store.Neighbor, 0, len(nodes))
	for _, n := range nodes {
		tags, err := r.mapper.ToTags(n.Tags)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Id, err)
		}
		out = append(out, store.Neighbor{
			NodeID:   n.Id,
			Tags:     tags,
			Distance: dist[n.Id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

// CreateNodes inserts nodes, overwriting kind, label, doc id and tags of
// nodes that already exist.
func (r *GraphRepositoryImpl) CreateNodes(ctx context.Context, nodes []*model.GraphNode) error {
	if len(nodes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "label", "doc_id", "tags"}),
	}).Create(nodes).Error
}

// EnsureNodes inserts only the nodes that do not exist yet.
func (r *GraphRepositoryImpl) EnsureNodes(ctx context.Context, nodes []*model.GraphNode) error {
	if len(nodes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(nodes).Error
}

func (r *GraphRepositoryImpl) CreateEdges(ctx context.Context, edges []*model.GraphEdge) error {
	if len(edges) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(edges).Error
}

func (r *GraphRepositoryImpl) DeleteEdgesFrom(ctx context.Context, nodeId string) error {
	return r.db.WithContext(ctx).Where("from_id = ?", nodeId).Delete(&model.GraphEdge{}).Error
}
