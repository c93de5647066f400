package unitofwork

import (
	"context"

	"legal-discovery-be/internal/repository/contract"
)

// UnitOfWork groups corpus writes so a partially loaded document never
// becomes visible to retrieval.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DocumentEmbeddingRepository() contract.DocumentEmbeddingRepository
	DocumentMetadataRepository() contract.DocumentMetadataRepository
	GraphRepository() contract.GraphRepository
}
