package audit

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/crypto/sha3"
)

// canonicalEvent fixes field order and formats so the serialized bytes are
// stable across backends. Hash is excluded.
type canonicalEvent struct {
	Sequence      uint64  `json:"seq"`
	Timestamp     string  `json:"ts"`
	Actor         string  `json:"actor"`
	QueryID       string  `json:"query_id"`
	Subject       string  `json:"subject"`
	Decision      string  `json:"decision"`
	ReasonCode    string  `json:"reason_code"`
	PolicyVersion string  `json:"policy_version"`
	RiskScore     float64 `json:"risk_score"`
	PrevHash      string  `json:"prev_hash"`
}

// Canonical returns the serialization that is hashed for e.
func Canonical(e Event) []byte {
	b, _ := json.Marshal(canonicalEvent{
		Sequence:      e.Sequence,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor:         e.Actor,
		QueryID:       e.QueryID,
		Subject:       e.Subject,
		Decision:      string(e.Decision),
		ReasonCode:    e.ReasonCode,
		PolicyVersion: e.PolicyVersion,
		RiskScore:     e.RiskScore,
		PrevHash:      e.PrevHash,
	})
	return b
}

// HashEvent computes SHA3-256(prev_hash || canonical(e)) as hex.
func HashEvent(e Event) string {
	h := sha3.New256()
	h.Write([]byte(e.PrevHash))
	h.Write(Canonical(e))
	return hex.EncodeToString(h.Sum(nil))
}
