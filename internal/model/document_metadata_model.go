package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentMetadata carries the review fields used by privilege screening.
// Recipients and flags are JSON arrays; roles is a JSON object of
// address -> role.
type DocumentMetadata struct {
	DocId      string         `gorm:"type:varchar(128);primaryKey"`
	Title      string         `gorm:"type:text"`
	Subject    string         `gorm:"type:text"`
	Author     string         `gorm:"type:varchar(320)"`
	Sender     string         `gorm:"type:varchar(320)"`
	Recipients datatypes.JSON `gorm:"type:jsonb"`
	Custodian  string         `gorm:"type:varchar(255);index"`
	Roles      datatypes.JSON `gorm:"type:jsonb"`
	Flags      datatypes.JSON `gorm:"type:jsonb"`
	Content    string         `gorm:"type:text"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (DocumentMetadata) TableName() string {
	return "document_metadata"
}
