package dto

import (
	"time"

	"legal-discovery-be/pkg/audit"
)

type AuditEventsQuery struct {
	From  uint64 `query:"from"`
	Limit int    `query:"limit" validate:"omitempty,gte=1,lte=1000"`
}

type AuditEventResponse struct {
	SequenceNo    uint64    `json:"sequence_no"`
	Timestamp     time.Time `json:"timestamp"`
	Actor         string    `json:"actor"`
	QueryId       string    `json:"query_id"`
	Subject       string    `json:"subject"`
	Decision      string    `json:"decision"`
	ReasonCode    string    `json:"reason_code"`
	PolicyVersion string    `json:"policy_version"`
	RiskScore     float64   `json:"risk_score"`
	PrevHash      string    `json:"prev_hash"`
	Hash          string    `json:"hash"`
	AuditRef      string    `json:"audit_ref"`
}

func NewAuditEventResponse(ev audit.Event) AuditEventResponse {
	return AuditEventResponse{
		SequenceNo:    ev.Sequence,
		Timestamp:     ev.Timestamp,
		Actor:         ev.Actor,
		QueryId:       ev.QueryID,
		Subject:       ev.Subject,
		Decision:      string(ev.Decision),
		ReasonCode:    ev.ReasonCode,
		PolicyVersion: ev.PolicyVersion,
		RiskScore:     ev.RiskScore,
		PrevHash:      ev.PrevHash,
		Hash:          ev.Hash,
		AuditRef:      ev.Ref(),
	}
}

type AuditEventsResponse struct {
	Events []AuditEventResponse `json:"events"`
	// Next is the sequence to request for the following page; zero when done.
	Next uint64 `json:"next"`
}

type AuditHeadResponse struct {
	SequenceNo uint64 `json:"sequence_no"`
	Hash       string `json:"hash"`
}

type VerifyResponse struct {
	Ok               bool    `json:"ok"`
	FirstBadSequence *uint64 `json:"first_bad_sequence"`
	Checked          uint64  `json:"checked"`
	HeadHash         string  `json:"head_hash"`
	Reason           string  `json:"reason,omitempty"`
}

func NewVerifyResponse(r audit.VerifyReport) VerifyResponse {
	return VerifyResponse{
		Ok:               r.OK,
		FirstBadSequence: r.FirstBadSequence,
		Checked:          r.Checked,
		HeadHash:         r.HeadHash,
		Reason:           r.Reason,
	}
}
