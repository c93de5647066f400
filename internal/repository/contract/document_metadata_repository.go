package contract

import (
	"context"

	"legal-discovery-be/internal/repository/specification"
	"legal-discovery-be/pkg/store"
)

type DocumentMetadataRepository interface {
	// Get returns an error for unknown documents; screening fails closed on it.
	Get(ctx context.Context, docId string) (*store.DocumentMetadata, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*store.DocumentMetadata, error)
	Upsert(ctx context.Context, metadata *store.DocumentMetadata) error
}
