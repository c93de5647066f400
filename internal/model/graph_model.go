package model

import (
	"time"

	"gorm.io/datatypes"
)

// GraphIDSize bounds graph node ids. It fits a "party:" prefix on a full
// length email address.
const GraphIDSize = 384

// GraphNode is an entity, party or document in the case knowledge graph.
// Document nodes carry the doc id they stand for.
type GraphNode struct {
	Id        string         `gorm:"type:varchar(384);primaryKey"`
	Kind      string         `gorm:"type:varchar(32);not null;index"` // document | party | matter | topic
	Label     string         `gorm:"type:text"`
	DocId     *string        `gorm:"type:varchar(128);index"`
	Tags      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (GraphNode) TableName() string {
	return "graph_nodes"
}

// GraphEdge is a weighted relation. Weight is a traversal cost, so stronger
// relations carry smaller weights.
type GraphEdge struct {
	Id        uint      `gorm:"primaryKey"`
	FromId    string    `gorm:"type:varchar(384);not null;index"`
	ToId      string    `gorm:"type:varchar(384);not null;index"`
	Relation  string    `gorm:"type:varchar(64)"`
	Weight    float64   `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (GraphEdge) TableName() string {
	return "graph_edges"
}
