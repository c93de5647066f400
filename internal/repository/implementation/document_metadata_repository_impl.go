package implementation

import (
	"context"
	"errors"
	"fmt"

	"legal-discovery-be/internal/mapper"
	"legal-discovery-be/internal/model"
	"legal-discovery-be/internal/repository/contract"
	"legal-discovery-be/internal/repository/specification"
	"legal-discovery-be/pkg/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDocumentNotFound = errors.New("document metadata not found")

type DocumentMetadataRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentMetadataRepository(db *gorm.DB) contract.DocumentMetadataRepository {
	return &DocumentMetadataRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentMetadataRepositoryImpl) Get(ctx context.Context, docId string) (*store.DocumentMetadata, error) {
	var m model.DocumentMetadata
	err := specification.Apply(r.db.WithContext(ctx), specification.ByDocID{DocID: docId}).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, docId)
		}
		return nil, err
	}
	return r.mapper.ToMetadata(&m)
}

func (r *DocumentMetadataRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*store.DocumentMetadata, error) {
	var models []*model.DocumentMetadata
	if err := specification.Apply(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*store.DocumentMetadata, 0, len(models))
	for _, m := range models {
		md, err := r.mapper.ToMetadata(m)
		if err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", m.DocId, err)
		}
		out = append(out, md)
	}
	return out, nil
}

func (r *DocumentMetadataRepositoryImpl) Upsert(ctx context.Context, metadata *store.DocumentMetadata) error {
	m, err := r.mapper.ToMetadataModel(metadata)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}
