package store

// Status of a finished retrieval.
type Status string

const (
	StatusAnswered   Status = "ANSWERED"
	StatusNoEvidence Status = "NO_EVIDENCE"
	StatusDegraded   Status = "DEGRADED"
)

// Citation points at a document relevant to the answer. Withheld citations
// (REDACT) tell the caller material exists without contributing any text.
type Citation struct {
	DocID    string   `json:"doc_id"`
	Decision Decision `json:"decision"`
	Withheld bool     `json:"withheld"`
}

// TraceEntry explains how one candidate was handled. Blocked candidates carry
// only the opaque audit reference.
type TraceEntry struct {
	DocID       string               `json:"doc_id,omitempty"`
	VectorScore *float64             `json:"vector_score,omitempty"`
	GraphScore  *float64             `json:"graph_score,omitempty"`
	FusedScore  *float64             `json:"fused_score,omitempty"`
	Decision    Decision             `json:"decision"`
	ReasonCode  string               `json:"reason_code,omitempty"`
	Assessment  *PrivilegeAssessment `json:"assessment,omitempty"`
	AuditRef    string               `json:"audit_ref"`
}

// AnswerResult is the payload returned to the caller.
type AnswerResult struct {
	QueryID    string       `json:"query_id"`
	AnswerText *string      `json:"answer_text"`
	Citations  []Citation   `json:"citations"`
	Trace      []TraceEntry `json:"trace"`
	Status     Status       `json:"status"`
	Degraded   bool         `json:"degraded"`
}

// SupportingCitations returns the citations that back answer text.
func (r AnswerResult) SupportingCitations() []Citation {
	var out []Citation
	for _, c := range r.Citations {
		if !c.Withheld {
			out = append(out, c)
		}
	}
	return out
}

// EventKind names a stream event.
type EventKind string

const (
	EventCitationResolved EventKind = "citation_resolved"
	EventAnswerToken      EventKind = "answer_token"
	EventDone             EventKind = "done"
)

// StreamEvent is emitted in order: citations, then tokens, then done.
type StreamEvent struct {
	Kind     EventKind `json:"kind"`
	DocID    string    `json:"doc_id,omitempty"`
	Decision Decision  `json:"decision,omitempty"`
	Text     string    `json:"text,omitempty"`
	Status   Status    `json:"status,omitempty"`
}

// Emitter receives stream events. A nil Emitter discards them.
type Emitter func(StreamEvent)

// Emit calls e when it is set.
func (e Emitter) Emit(ev StreamEvent) {
	if e != nil {
		e(ev)
	}
}
