package dto

import (
	"time"

	"legal-discovery-be/pkg/store"
)

type QueryFilters struct {
	SeedIds    []string `json:"seed_ids" validate:"omitempty,max=32,dive,required"`
	Custodians []string `json:"custodians" validate:"omitempty,max=32,dive,required"`
}

// QueryRequest is a retrieval call. DeadlineMs is optional and is capped at
// the server's QUERY_DEADLINE.
type QueryRequest struct {
	Text       string       `json:"text" validate:"required,max=4000"`
	TopK       int          `json:"top_k" validate:"gte=1,lte=100"`
	Mode       string       `json:"mode" validate:"omitempty,oneof=precision recall"`
	Filters    QueryFilters `json:"filters"`
	DeadlineMs int          `json:"deadline_ms" validate:"omitempty,gte=1,lte=600000"`
}

// ToQuery attaches the authenticated actor; the engine assigns the query id.
func (r *QueryRequest) ToQuery(actor string) store.Query {
	return store.Query{
		Text: r.Text,
		TopK: r.TopK,
		Mode: store.Mode(r.Mode),
		Filters: store.Filters{
			SeedIDs:    r.Filters.SeedIds,
			Custodians: r.Filters.Custodians,
		},
		Actor:    actor,
		Deadline: time.Duration(r.DeadlineMs) * time.Millisecond,
	}
}

// Websocket frames that are not engine events. They share the SSE event names.
const (
	FrameResult store.EventKind = "result"
	FrameError  store.EventKind = "error"
)

// StreamFrame is one SSE or websocket message.
type StreamFrame struct {
	Event  store.StreamEvent    `json:"event"`
	Result *store.AnswerResult  `json:"result,omitempty"`
	Error  *StreamErrorResponse `json:"error,omitempty"`
}

type StreamErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
