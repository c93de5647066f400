package policy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/store"
)

const (
	ReasonBelowRedact     = "risk_below_redact_threshold"
	ReasonRedactThreshold = "risk_at_or_above_redact_threshold"
	ReasonBlockThreshold  = "risk_at_or_above_block_threshold"
	ReasonFailClosed      = "classification_failed_closed"
)

var ErrDuplicateCandidate = errors.New("policy: duplicate doc_id in query")

// PolicyConfigurationError is a startup error: the gate refuses to run with
// thresholds that cannot separate the three outcomes.
type PolicyConfigurationError struct {
	Reason string
}

func (e *PolicyConfigurationError) Error() string {
	return "policy configuration: " + e.Reason
}

// Config holds the decision thresholds of one policy version.
type Config struct {
	BlockThreshold  float64
	RedactThreshold float64
	Version         string
}

func (c Config) Validate() error {
	for name, v := range map[string]float64{"block": c.BlockThreshold, "redact": c.RedactThreshold} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return &PolicyConfigurationError{Reason: fmt.Sprintf("%s threshold %v outside [0,1]", name, v)}
		}
	}
	if c.BlockThreshold <= c.RedactThreshold {
		return &PolicyConfigurationError{Reason: fmt.Sprintf("block threshold %.3f must exceed redact threshold %.3f", c.BlockThreshold, c.RedactThreshold)}
	}
	if c.Version == "" {
		return &PolicyConfigurationError{Reason: "policy version is empty"}
	}
	return nil
}

// Appender is the slice of the ledger the gate writes to.
type Appender interface {
	Append(ctx context.Context, f audit.Fields) (audit.Event, error)
}

// Item is one ranked candidate with its privilege assessment.
type Item struct {
	Candidate  store.Candidate
	Assessment store.PrivilegeAssessment
}

// DecisionCallback runs after a decision's audit event is durable.
type DecisionCallback func(item Item, decision store.PolicyDecision)

type Gate struct {
	config Config
	ledger Appender
	logger logger.ILogger
}

func NewGate(config Config, ledger Appender, log logger.ILogger) (*Gate, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, errors.New("policy: ledger is required")
	}
	return &Gate{config: config, ledger: ledger, logger: log}, nil
}

func (g *Gate) Config() Config {
	return g.config
}

// Classify maps a risk score onto a decision.
func (g *Gate) Classify(a store.PrivilegeAssessment) (store.Decision, string) {
	risk := a.RiskScore
	switch {
	case a.Degraded:
		return store.DecisionBlock, ReasonFailClosed
	case math.IsNaN(risk) || risk >= g.config.BlockThreshold:
		return store.DecisionBlock, ReasonBlockThreshold
	case risk >= g.config.RedactThreshold:
		return store.DecisionRedact, ReasonRedactThreshold
	default:
		return store.DecisionAllow, ReasonBelowRedact
	}
}

// DecideAll decides items in the given (fused) order. Each decision is
// appended to the ledger before it is returned or passed to onDecision.
//
// Cancellation is honored until the first event is written. After that the
// query is finished so the ledger never holds a partially decided query.
func (g *Gate) DecideAll(ctx context.Context, q store.Query, items []Item, onDecision DecisionCallback) ([]store.PolicyDecision, error) {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.Candidate.DocID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCandidate, it.Candidate.DocID)
		}
		seen[it.Candidate.DocID] = true
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decisions := make([]store.PolicyDecision, 0, len(items))
	appendCtx := ctx
	for i, it := range items {
		decision, reason := g.Classify(it.Assessment)
		ev, err := g.ledger.Append(appendCtx, audit.Fields{
			Actor:         q.Actor,
			QueryID:       q.ID,
			Subject:       it.Candidate.DocID,
			Decision:      decision,
			ReasonCode:    reason,
			PolicyVersion: g.config.Version,
			RiskScore:     it.Assessment.RiskScore,
		})
		if err != nil {
			g.logger.Error("POLICY", "Audit append failed, aborting query", map[string]interface{}{
				"query_id": q.ID,
				"doc_id":   it.Candidate.DocID,
				"decided":  i,
				"error":    err.Error(),
			})
			return decisions, fmt.Errorf("policy: record decision for %s: %w", it.Candidate.DocID, err)
		}
		if i == 0 {
			appendCtx = context.WithoutCancel(ctx)
		}

		pd := store.PolicyDecision{
			QueryID:       q.ID,
			DocID:         it.Candidate.DocID,
			Decision:      decision,
			ReasonCode:    reason,
			PolicyVersion: g.config.Version,
			RiskScore:     it.Assessment.RiskScore,
			AuditSequence: ev.Sequence,
			AuditHash:     ev.Hash,
		}
		decisions = append(decisions, pd)
		if onDecision != nil {
			onDecision(it, pd)
		}
	}

	g.logger.Info("POLICY", "Query decided", map[string]interface{}{
		"query_id":       q.ID,
		"decisions":      len(decisions),
		"policy_version": g.config.Version,
	})
	return decisions, nil
}
