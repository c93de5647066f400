package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/rag/answer"
	"legal-discovery-be/pkg/rag/broker"
	"legal-discovery-be/pkg/rag/fusion"
	"legal-discovery-be/pkg/rag/policy"
	"legal-discovery-be/pkg/rag/privilege"
	"legal-discovery-be/pkg/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// MetadataStore resolves document metadata for privilege screening.
type MetadataStore interface {
	Get(ctx context.Context, docID string) (*store.DocumentMetadata, error)
}

// NeighborhoodSource returns graph nodes around a document.
type NeighborhoodSource interface {
	Neighborhood(ctx context.Context, docID string, hops int) ([]store.Neighbor, error)
}

type Config struct {
	// Deadline bounds every query; a shorter per-query deadline may apply.
	Deadline         time.Duration
	ClassifyWorkers  int
	NeighborhoodHops int
	DefaultMode      store.Mode
}

func DefaultConfig() Config {
	return Config{
		Deadline:         10 * time.Second,
		ClassifyWorkers:  4,
		NeighborhoodHops: 2,
		DefaultMode:      store.ModePrecision,
	}
}

// Engine runs the whole query pipeline: fetch, fuse, classify, gate, answer.
type Engine struct {
	broker       *broker.Broker
	ranker       *fusion.Ranker
	classifier   *privilege.Classifier
	gate         *policy.Gate
	synthesizer  *answer.Synthesizer
	metadata     MetadataStore
	neighborhood NeighborhoodSource
	config       Config
	logger       logger.ILogger
	tracer       trace.Tracer
}

func NewEngine(
	b *broker.Broker,
	ranker *fusion.Ranker,
	classifier *privilege.Classifier,
	gate *policy.Gate,
	synthesizer *answer.Synthesizer,
	metadata MetadataStore,
	neighborhood NeighborhoodSource,
	config Config,
	log logger.ILogger,
) *Engine {
	if config.ClassifyWorkers <= 0 {
		config.ClassifyWorkers = 1
	}
	if config.DefaultMode == "" {
		config.DefaultMode = store.ModePrecision
	}
	return &Engine{
		broker:       b,
		ranker:       ranker,
		classifier:   classifier,
		gate:         gate,
		synthesizer:  synthesizer,
		metadata:     metadata,
		neighborhood: neighborhood,
		config:       config,
		logger:       log,
		tracer:       otel.Tracer("legal-discovery-be/rag"),
	}
}

// Retrieve runs a query and returns the final result.
func (e *Engine) Retrieve(ctx context.Context, q store.Query) (*store.AnswerResult, error) {
	return e.Stream(ctx, q, nil)
}

// Stream runs a query, emitting citation events as decisions resolve, then
// answer tokens, then Done. The returned result equals what was streamed.
func (e *Engine) Stream(ctx context.Context, q store.Query, emit store.Emitter) (*store.AnswerResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Mode == "" {
		q.Mode = e.config.DefaultMode
	}
	if deadline := e.deadline(q); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "rag.Retrieve", trace.WithAttributes(
		attribute.String("query.id", q.ID),
		attribute.String("query.mode", string(q.Mode)),
		attribute.Int("query.top_k", q.TopK),
	))
	defer span.End()

	start := time.Now()
	result, err := e.run(ctx, q, emit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("RAG", "Query failed", map[string]interface{}{
			"query_id": q.ID,
			"error":    err.Error(),
		})
		return nil, err
	}

	span.SetAttributes(attribute.String("result.status", string(result.Status)))
	e.logger.Info("RAG", "Query answered", map[string]interface{}{
		"query_id":    q.ID,
		"status":      string(result.Status),
		"citations":   len(result.Citations),
		"degraded":    result.Degraded,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

// deadline is the query's own deadline capped at the configured one. An
// earlier deadline already on the caller's context still wins.
func (e *Engine) deadline(q store.Query) time.Duration {
	limit := e.config.Deadline
	if q.Deadline > 0 && (limit <= 0 || q.Deadline < limit) {
		return q.Deadline
	}
	return limit
}

func (e *Engine) run(ctx context.Context, q store.Query, emit store.Emitter) (*store.AnswerResult, error) {
	fetchCtx, fetchSpan := e.tracer.Start(ctx, "rag.Fetch")
	set, err := e.broker.Fetch(fetchCtx, q)
	fetchSpan.SetAttributes(attribute.Int("candidates", len(set.Candidates)), attribute.Bool("degraded", set.Degraded))
	fetchSpan.End()
	if err != nil {
		return nil, err
	}

	ranked, err := e.ranker.Fuse(set, q.Mode, 0)
	if err != nil {
		return nil, fmt.Errorf("fuse: %w", err)
	}

	var lookups []metadataLookup
	if len(q.Filters.Custodians) > 0 {
		if lookups, err = e.lookupMetadata(ctx, ranked); err != nil {
			return nil, err
		}
		ranked, lookups = filterCustodians(ranked, lookups, q.Filters.Custodians)
	}
	if len(ranked) > q.TopK {
		ranked = ranked[:q.TopK]
		if lookups != nil {
			lookups = lookups[:q.TopK]
		}
	}

	screened, err := e.screen(ctx, ranked, lookups)
	if err != nil {
		return nil, err
	}

	items := make([]policy.Item, len(screened))
	for i, s := range screened {
		items[i] = policy.Item{Candidate: s.candidate, Assessment: s.assessment}
	}

	gateCtx, gateSpan := e.tracer.Start(ctx, "rag.Gate", trace.WithAttributes(attribute.Int("candidates", len(items))))
	decisions, err := e.gate.DecideAll(gateCtx, q, items, func(_ policy.Item, d store.PolicyDecision) {
		if ev, ok := answer.CitationEvent(d); ok {
			emit.Emit(ev)
		}
	})
	gateSpan.End()
	if err != nil {
		return nil, err
	}

	decided := make([]answer.Decided, len(decisions))
	for i, d := range decisions {
		decided[i] = answer.Decided{
			Candidate:  screened[i].candidate,
			Assessment: screened[i].assessment,
			Decision:   d,
			Text:       screened[i].text,
		}
	}

	result, err := e.synthesizer.Synthesize(ctx, q, decided, set.Degraded, emit)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type screenedCandidate struct {
	candidate  store.Candidate
	assessment store.PrivilegeAssessment
	text       string
}

type metadataLookup struct {
	meta *store.DocumentMetadata
	err  error
}

// lookupMetadata fetches metadata for every candidate on the worker pool.
func (e *Engine) lookupMetadata(ctx context.Context, ranked []store.Candidate) ([]metadataLookup, error) {
	out := make([]metadataLookup, len(ranked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.ClassifyWorkers)

	for i, c := range ranked {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			meta, err := e.metadata.Get(gctx, c.DocID)
			out[i] = metadataLookup{meta: meta, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// screen looks up metadata and neighborhood for every candidate on a bounded
// pool and classifies it. lookups, when given, holds metadata already fetched
// for ranked. Lookup failures fail closed; only cancellation of the query
// aborts.
func (e *Engine) screen(ctx context.Context, ranked []store.Candidate, lookups []metadataLookup) ([]screenedCandidate, error) {
	ctx, span := e.tracer.Start(ctx, "rag.Classify", trace.WithAttributes(attribute.Int("candidates", len(ranked))))
	defer span.End()

	out := make([]screenedCandidate, len(ranked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.ClassifyWorkers)

	for i, c := range ranked {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var lookup metadataLookup
			if lookups != nil {
				lookup = lookups[i]
			} else {
				lookup.meta, lookup.err = e.metadata.Get(gctx, c.DocID)
			}
			out[i] = e.screenOne(gctx, c, lookup)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) screenOne(ctx context.Context, c store.Candidate, lookup metadataLookup) screenedCandidate {
	sc := screenedCandidate{candidate: c, text: c.Snippet}

	meta, err := lookup.meta, lookup.err
	if err != nil {
		e.logger.Warn("RAG", "Metadata lookup failed, failing closed", map[string]interface{}{
			"doc_id": c.DocID,
			"error":  err.Error(),
		})
		sc.assessment = privilege.FailClosed(c.DocID, fmt.Errorf("metadata lookup: %w", err))
		return sc
	}
	if meta != nil && sc.text == "" {
		sc.text = meta.Content
	}

	var hood []store.Neighbor
	if e.neighborhood != nil {
		hood, err = e.neighborhood.Neighborhood(ctx, c.DocID, e.config.NeighborhoodHops)
		if err != nil {
			e.logger.Warn("RAG", "Neighborhood lookup failed, failing closed", map[string]interface{}{
				"doc_id": c.DocID,
				"error":  err.Error(),
			})
			sc.assessment = privilege.FailClosed(c.DocID, fmt.Errorf("neighborhood lookup: %w", err))
			return sc
		}
	}

	sc.assessment = e.classifier.Assess(c, meta, hood)
	return sc
}

// filterCustodians keeps fused candidates held by one of the requested
// custodians, preserving rank order. Candidates whose custodian is unknown,
// including failed lookups, are kept so the gate still sees them.
func filterCustodians(ranked []store.Candidate, lookups []metadataLookup, custodians []string) ([]store.Candidate, []metadataLookup) {
	wanted := make(map[string]bool, len(custodians))
	for _, c := range custodians {
		wanted[strings.ToLower(strings.TrimSpace(c))] = true
	}
	keptRanked := ranked[:0:0]
	keptLookups := lookups[:0:0]
	for i, c := range ranked {
		l := lookups[i]
		custodian := ""
		if l.err == nil && l.meta != nil {
			custodian = strings.ToLower(strings.TrimSpace(l.meta.Custodian))
		}
		if custodian == "" || wanted[custodian] {
			keptRanked = append(keptRanked, c)
			keptLookups = append(keptLookups, l)
		}
	}
	return keptRanked, keptLookups
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, store.ErrInvalidQuery)
}
