// Package audit is the append-only, hash-chained decision ledger.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"legal-discovery-be/pkg/store"
)

// GenesisHash is the prev_hash of the first event in every chain.
var GenesisHash = strings.Repeat("0", 64)

var (
	ErrLedgerClosed     = errors.New("audit: ledger closed")
	ErrSequenceConflict = errors.New("audit: sequence already taken")
	errStopScan         = errors.New("audit: stop scan")
)

// Event is one immutable ledger entry.
type Event struct {
	Sequence      uint64         `json:"sequence_no"`
	Timestamp     time.Time      `json:"timestamp"`
	Actor         string         `json:"actor"`
	QueryID       string         `json:"query_id"`
	Subject       string         `json:"subject"`
	Decision      store.Decision `json:"decision"`
	ReasonCode    string         `json:"reason_code"`
	PolicyVersion string         `json:"policy_version"`
	RiskScore     float64        `json:"risk_score"`
	PrevHash      string         `json:"prev_hash"`
	Hash          string         `json:"hash"`
}

// Ref is the opaque reference handed out for blocked material.
func (e Event) Ref() string {
	return fmt.Sprintf("audit:%d:%s", e.Sequence, e.Hash[:16])
}

// Fields are the caller-supplied parts of an event; the ledger fills in
// sequence, timestamp and hashes.
type Fields struct {
	Actor         string
	QueryID       string
	Subject       string
	Decision      store.Decision
	ReasonCode    string
	PolicyVersion string
	RiskScore     float64
}

// Backend persists events in append order. Implementations never reorder or
// rewrite prior entries.
type Backend interface {
	Append(ctx context.Context, e Event) error
	// Last returns the newest event, or nil for an empty chain.
	Last(ctx context.Context) (*Event, error)
	// Scan calls fn for every event with Sequence >= from, in order.
	Scan(ctx context.Context, from uint64, fn func(Event) error) error
	Close() error
}

// VerifyReport is the outcome of a full chain walk.
type VerifyReport struct {
	OK               bool    `json:"ok"`
	FirstBadSequence *uint64 `json:"first_bad_sequence"`
	Checked          uint64  `json:"checked"`
	HeadHash         string  `json:"head_hash"`
	Reason           string  `json:"reason,omitempty"`
}

// IntegrityViolationError is returned by Verify when the chain does not
// recompute. It is an operational alarm, never a per-query error.
type IntegrityViolationError struct {
	Sequence uint64
	Reason   string
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("audit: integrity violation at sequence %d: %s", e.Sequence, e.Reason)
}

// CorruptRecordError marks a stored record that could not be decoded.
type CorruptRecordError struct {
	Position uint64
	Err      error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("audit: corrupt record at position %d: %v", e.Position, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }
