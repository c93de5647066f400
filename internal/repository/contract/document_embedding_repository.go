package contract

import (
	"context"

	"legal-discovery-be/internal/model"
	"legal-discovery-be/pkg/rag/broker"
)

// DocumentEmbeddingRepository is the pgvector-backed VectorIndex.
type DocumentEmbeddingRepository interface {
	broker.VectorIndex
	CreateBulk(ctx context.Context, embeddings []*model.DocumentEmbedding) error
	DeleteByDocId(ctx context.Context, docId string) error
	Count(ctx context.Context) (int64, error)
}
