package dto

import (
	"legal-discovery-be/pkg/store"
)

type GraphNodeRequest struct {
	Id    string   `json:"id" validate:"required,max=128"`
	Kind  string   `json:"kind" validate:"required,oneof=document party matter topic"`
	Label string   `json:"label"`
	DocId string   `json:"doc_id" validate:"omitempty,max=128"`
	Tags  []string `json:"tags"`
}

// GraphEdgeRequest links the ingested document to another node. Weight is a
// traversal cost; zero means 1.
type GraphEdgeRequest struct {
	ToId     string  `json:"to_id" validate:"required,max=384"`
	Relation string  `json:"relation" validate:"omitempty,max=64"`
	Weight   float64 `json:"weight" validate:"gte=0"`
}

// IngestDocumentRequest carries one document. DocId is also the audit subject,
// so it shares the ledger's 128 character bound.
type IngestDocumentRequest struct {
	DocId      string             `json:"doc_id" validate:"required,max=128"`
	Title      string             `json:"title"`
	Subject    string             `json:"subject"`
	Author     string             `json:"author" validate:"omitempty,max=320"`
	Sender     string             `json:"sender" validate:"omitempty,max=320"`
	Recipients []string           `json:"recipients" validate:"omitempty,dive,max=320"`
	Custodian  string             `json:"custodian" validate:"omitempty,max=255"`
	Roles      map[string]string  `json:"roles"`
	Flags      []string           `json:"flags"`
	Tags       []string           `json:"tags"`
	Content    string             `json:"content" validate:"required"`
	Nodes      []GraphNodeRequest `json:"nodes" validate:"omitempty,dive"`
	Edges      []GraphEdgeRequest `json:"edges" validate:"omitempty,dive"`
}

func (r *IngestDocumentRequest) Metadata() *store.DocumentMetadata {
	return &store.DocumentMetadata{
		DocID:      r.DocId,
		Title:      r.Title,
		Subject:    r.Subject,
		Author:     r.Author,
		Sender:     r.Sender,
		Recipients: r.Recipients,
		Custodian:  r.Custodian,
		Roles:      r.Roles,
		Flags:      r.Flags,
		Content:    r.Content,
	}
}

type IngestAcceptedResponse struct {
	DocId  string `json:"doc_id"`
	Queued bool   `json:"queued"`
}

type CorpusStatsResponse struct {
	Chunks int64 `json:"chunks"`
}
