package model

import "time"

// AuditEvent is one ledger row. Rows are only ever inserted; the unique
// sequence index turns a concurrent writer into a constraint violation.
type AuditEvent struct {
	SequenceNo    uint64    `gorm:"primaryKey;autoIncrement:false"`
	Timestamp     time.Time `gorm:"type:timestamptz;not null"`
	Actor         string    `gorm:"type:varchar(320);not null"`
	QueryId       string    `gorm:"type:varchar(64);not null;index"`
	Subject       string    `gorm:"type:varchar(128);not null"`
	Decision      string    `gorm:"type:varchar(16);not null"`
	ReasonCode    string    `gorm:"type:varchar(64)"`
	PolicyVersion string    `gorm:"type:varchar(64)"`
	RiskScore     float64   `gorm:"not null"`
	PrevHash      string    `gorm:"type:char(64);not null"`
	Hash          string    `gorm:"type:char(64);not null;uniqueIndex"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
