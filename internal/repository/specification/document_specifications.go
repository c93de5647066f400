package specification

import (
	"strings"

	"gorm.io/gorm"
)

// ByCustodians keeps documents held by any of the custodians (case-insensitive).
type ByCustodians struct {
	Custodians []string
}

func (s ByCustodians) Apply(db *gorm.DB) *gorm.DB {
	if len(s.Custodians) == 0 {
		return db
	}
	lowered := make([]string, len(s.Custodians))
	for i, c := range s.Custodians {
		lowered[i] = strings.ToLower(c)
	}
	return db.Where("LOWER(custodian) IN ?", lowered)
}

// NodeLabelMatches finds graph nodes whose label occurs in the query text.
type NodeLabelMatches struct {
	Text string
}

func (s NodeLabelMatches) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("LENGTH(label) >= 3 AND ? ILIKE '%' || label || '%'", s.Text)
}

// FromSequence selects ledger rows at or after a sequence number.
type FromSequence struct {
	Sequence uint64
}

func (s FromSequence) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("sequence_no >= ?", s.Sequence)
}
