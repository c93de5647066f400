package contract

import (
	"context"

	"legal-discovery-be/internal/model"
	"legal-discovery-be/pkg/rag/broker"
	"legal-discovery-be/pkg/store"
)

// GraphRepository serves graph expansion for the broker and neighborhoods
// for privilege screening.
type GraphRepository interface {
	broker.GraphStore
	broker.SeedResolver
	Neighborhood(ctx context.Context, docId string, hops int) ([]store.Neighbor, error)
	CreateNodes(ctx context.Context, nodes []*model.GraphNode) error
	EnsureNodes(ctx context.Context, nodes []*model.GraphNode) error
	CreateEdges(ctx context.Context, edges []*model.GraphEdge) error
	// DeleteEdgesFrom drops outgoing edges so a re-ingested document does
	// not accumulate stale relations.
	DeleteEdgesFrom(ctx context.Context, nodeId string) error
}
