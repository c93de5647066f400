package specification

import (
	"fmt"

	"gorm.io/gorm"
)

// ByDocID filters rows of a document-keyed table.
type ByDocID struct {
	DocID string
}

func (s ByDocID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("doc_id = ?", s.DocID)
}

type ByDocIDs struct {
	DocIDs []string
}

func (s ByDocIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("doc_id IN ?", s.DocIDs)
}

// OrderBy applies ordering
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit).Offset(s.Offset)
}
