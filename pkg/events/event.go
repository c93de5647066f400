package events

import (
	"time"

	"legal-discovery-be/pkg/audit"

	"github.com/google/uuid"
)

const (
	TypeAuditEventAppended      = "AUDIT_EVENT_APPENDED"
	TypeAuditIntegrityViolation = "AUDIT_INTEGRITY_VIOLATION"
	TypeDocumentIngested        = "DOCUMENT_INGESTED"
)

// Event is anything published on the event bus.
type Event interface {
	// EventID deduplicates redelivery on the bus.
	EventID() string
	// EventType is the subject suffix, e.g. "AUDIT_EVENT_APPENDED".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	ID         string
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// AuditAppended describes one ledger entry. Blocked material travels only as
// its subject id and reference, never its content.
func AuditAppended(ev audit.Event) BaseEvent {
	return BaseEvent{
		ID:   ev.Hash,
		Type: TypeAuditEventAppended,
		Data: map[string]interface{}{
			"sequence_no":    ev.Sequence,
			"query_id":       ev.QueryID,
			"actor":          ev.Actor,
			"subject":        ev.Subject,
			"decision":       string(ev.Decision),
			"reason_code":    ev.ReasonCode,
			"policy_version": ev.PolicyVersion,
			"risk_score":     ev.RiskScore,
			"hash":           ev.Hash,
			"audit_ref":      ev.Ref(),
		},
		OccurredAt: ev.Timestamp,
	}
}

// IntegrityViolation is raised when a chain verification fails.
func IntegrityViolation(report audit.VerifyReport, at time.Time) BaseEvent {
	data := map[string]interface{}{
		"checked": report.Checked,
		"reason":  report.Reason,
	}
	if report.FirstBadSequence != nil {
		data["first_bad_sequence"] = *report.FirstBadSequence
	}
	return BaseEvent{ID: uuid.NewString(), Type: TypeAuditIntegrityViolation, Data: data, OccurredAt: at}
}
