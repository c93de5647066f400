package store

import "fmt"

// Decision is the terminal state of a candidate in the policy gate.
type Decision string

const (
	DecisionPending Decision = "PENDING"
	DecisionAllow   Decision = "ALLOW"
	DecisionRedact  Decision = "REDACT"
	DecisionBlock   Decision = "BLOCK"
)

// Terminal reports whether d is one of ALLOW, REDACT or BLOCK.
func (d Decision) Terminal() bool {
	return d == DecisionAllow || d == DecisionRedact || d == DecisionBlock
}

// SignalResult is one signal's share of a privilege assessment.
type SignalResult struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Score        float64 `json:"score"`
	Contribution float64 `json:"contribution"`
}

// PrivilegeAssessment is the classifier output for one candidate.
type PrivilegeAssessment struct {
	DocID      string         `json:"doc_id"`
	RiskScore  float64        `json:"risk_score"`
	Signals    []SignalResult `json:"signals"`
	Confidence float64        `json:"confidence"`
	Degraded   bool           `json:"degraded"`
	FailReason string         `json:"fail_reason,omitempty"`
}

// PolicyDecision is the gate outcome for one (query, doc) pair.
type PolicyDecision struct {
	QueryID       string   `json:"query_id"`
	DocID         string   `json:"doc_id"`
	Decision      Decision `json:"decision"`
	ReasonCode    string   `json:"reason_code"`
	PolicyVersion string   `json:"policy_version"`
	RiskScore     float64  `json:"risk_score"`
	AuditSequence uint64   `json:"audit_sequence"`
	AuditHash     string   `json:"audit_hash"`
}

// AuditRef is the opaque pointer to the ledger event behind the decision.
func (d PolicyDecision) AuditRef() string {
	h := d.AuditHash
	if len(h) > 16 {
		h = h[:16]
	}
	return fmt.Sprintf("audit:%d:%s", d.AuditSequence, h)
}
