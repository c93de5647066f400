package answer

import (
	"context"
	"fmt"
	"strings"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/store"
)

// Decided is one candidate after the policy gate, in fused order.
type Decided struct {
	Candidate  store.Candidate
	Assessment store.PrivilegeAssessment
	Decision   store.PolicyDecision
	// Text is the material the composer may quote. Only read for ALLOW.
	Text string
}

// Synthesizer turns gate output into the caller-visible result.
type Synthesizer struct {
	composer Composer
	logger   logger.ILogger
}

func NewSynthesizer(composer Composer, log logger.ILogger) *Synthesizer {
	if composer == nil {
		composer = ExtractiveComposer{}
	}
	return &Synthesizer{composer: composer, logger: log}
}

// CitationEvent is the stream event for a resolved decision. Blocked
// candidates produce no event so their doc id never reaches the caller.
func CitationEvent(d store.PolicyDecision) (store.StreamEvent, bool) {
	switch d.Decision {
	case store.DecisionAllow, store.DecisionRedact:
		return store.StreamEvent{Kind: store.EventCitationResolved, DocID: d.DocID, Decision: d.Decision}, true
	default:
		return store.StreamEvent{}, false
	}
}

// Synthesize composes the answer once every decision is final, emits it as
// tokens and closes the stream with Done.
func (s *Synthesizer) Synthesize(ctx context.Context, q store.Query, decided []Decided, degraded bool, emit store.Emitter) (store.AnswerResult, error) {
	result := store.AnswerResult{
		QueryID:   q.ID,
		Citations: []store.Citation{},
		Trace:     make([]store.TraceEntry, 0, len(decided)),
		Degraded:  degraded,
	}

	var evidence []Evidence
	for _, d := range decided {
		if !d.Decision.Decision.Terminal() {
			return store.AnswerResult{}, fmt.Errorf("answer: %s reached synthesis undecided", d.Candidate.DocID)
		}
		result.Trace = append(result.Trace, traceEntry(d))

		switch d.Decision.Decision {
		case store.DecisionAllow:
			result.Citations = append(result.Citations, store.Citation{DocID: d.Candidate.DocID, Decision: store.DecisionAllow})
			evidence = append(evidence, Evidence{DocID: d.Candidate.DocID, Text: d.Text})
		case store.DecisionRedact:
			result.Citations = append(result.Citations, store.Citation{DocID: d.Candidate.DocID, Decision: store.DecisionRedact, Withheld: true})
		}
	}

	if len(evidence) == 0 {
		result.Status = store.StatusNoEvidence
		emit.Emit(store.StreamEvent{Kind: store.EventDone, Status: result.Status})
		return result, nil
	}

	text, err := s.composer.Compose(ctx, q, evidence)
	if err != nil {
		return store.AnswerResult{}, fmt.Errorf("answer: compose: %w", err)
	}
	result.AnswerText = &text
	result.Status = store.StatusAnswered
	if degraded {
		result.Status = store.StatusDegraded
	}

	for _, tok := range Tokens(text) {
		emit.Emit(store.StreamEvent{Kind: store.EventAnswerToken, Text: tok})
	}
	emit.Emit(store.StreamEvent{Kind: store.EventDone, Status: result.Status})

	s.logger.Debug("ANSWER", "Answer synthesized", map[string]interface{}{
		"query_id":  q.ID,
		"status":    string(result.Status),
		"citations": len(result.Citations),
		"evidence":  len(evidence),
	})
	return result, nil
}

func traceEntry(d Decided) store.TraceEntry {
	if d.Decision.Decision == store.DecisionBlock {
		return store.TraceEntry{Decision: store.DecisionBlock, AuditRef: d.Decision.AuditRef()}
	}
	assessment := d.Assessment
	fused := d.Candidate.FusedScore
	return store.TraceEntry{
		DocID:       d.Candidate.DocID,
		VectorScore: d.Candidate.VectorScore,
		GraphScore:  d.Candidate.GraphScore,
		FusedScore:  &fused,
		Decision:    d.Decision.Decision,
		ReasonCode:  d.Decision.ReasonCode,
		Assessment:  &assessment,
		AuditRef:    d.Decision.AuditRef(),
	}
}

// Tokens splits text into stream chunks whose concatenation is text.
func Tokens(text string) []string {
	var out []string
	for _, line := range strings.SplitAfter(text, "\n") {
		for _, word := range strings.SplitAfter(line, " ") {
			if word != "" {
				out = append(out, word)
			}
		}
	}
	return out
}
