package implementation

import (
	"context"

	"legal-discovery-be/internal/model"
	"legal-discovery-be/internal/repository/contract"
	"legal-discovery-be/pkg/rag/broker"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentEmbeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentEmbeddingRepository(db *gorm.DB) contract.DocumentEmbeddingRepository {
	return &DocumentEmbeddingRepositoryImpl{db: db}
}

// Search returns the k nearest chunks by cosine distance. pgvector's <=> is
// 1 - cosine similarity, so similarity is recovered as 1 - distance. Several
// chunks of one document may come back; the broker keeps the best.
func (r *DocumentEmbeddingRepositoryImpl) Search(ctx context.Context, embedding []float32, k int) ([]broker.VectorHit, error) {
	if k <= 0 {
		k = 10
	}
	type result struct {
		DocId      string
		Snippet    string
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)
	err := r.db.WithContext(ctx).
		Table("document_embeddings").
		Select("doc_id, snippet, 1 - (embedding_value <=> ?) AS similarity", queryVector).
		Where("deleted_at IS NULL").
		Order(gorm.Expr("embedding_value <=> ?", queryVector)).
		Order("doc_id ASC").
		Limit(k).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	hits := make([]broker.VectorHit, len(results))
	for i, res := range results {
		hits[i] = broker.VectorHit{DocID: res.DocId, Similarity: res.Similarity, Snippet: res.Snippet}
	}
	return hits, nil
}

func (r *DocumentEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*model.DocumentEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(embeddings, 200).Error
}

func (r *DocumentEmbeddingRepositoryImpl) DeleteByDocId(ctx context.Context, docId string) error {
	return r.db.WithContext(ctx).Where("doc_id = ?", docId).Delete(&model.DocumentEmbedding{}).Error
}

func (r *DocumentEmbeddingRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.DocumentEmbedding{}).Count(&count).Error
	return count, err
}
