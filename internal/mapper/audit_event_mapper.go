package mapper

import (
	"legal-discovery-be/internal/model"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/store"
)

type AuditEventMapper struct{}

func NewAuditEventMapper() *AuditEventMapper {
	return &AuditEventMapper{}
}

func (m *AuditEventMapper) ToEvent(e *model.AuditEvent) audit.Event {
	return audit.Event{
		Sequence:      e.SequenceNo,
		Timestamp:     e.Timestamp.UTC(),
		Actor:         e.Actor,
		QueryID:       e.QueryId,
		Subject:       e.Subject,
		Decision:      store.Decision(e.Decision),
		ReasonCode:    e.ReasonCode,
		PolicyVersion: e.PolicyVersion,
		RiskScore:     e.RiskScore,
		PrevHash:      e.PrevHash,
		Hash:          e.Hash,
	}
}

func (m *AuditEventMapper) ToModel(e audit.Event) *model.AuditEvent {
	return &model.AuditEvent{
		SequenceNo:    e.Sequence,
		Timestamp:     e.Timestamp,
		Actor:         e.Actor,
		QueryId:       e.QueryID,
		Subject:       e.Subject,
		Decision:      string(e.Decision),
		ReasonCode:    e.ReasonCode,
		PolicyVersion: e.PolicyVersion,
		RiskScore:     e.RiskScore,
		PrevHash:      e.PrevHash,
		Hash:          e.Hash,
	}
}
