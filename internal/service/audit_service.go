package service

import (
	"context"
	"errors"
	"time"

	"legal-discovery-be/internal/dto"
	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/events"
)

const defaultEventsPage = 100

// EventPublisher sends events to the external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// AuditLedger is the read side of the decision ledger.
type AuditLedger interface {
	Verify(ctx context.Context) (audit.VerifyReport, error)
	Events(ctx context.Context, from uint64, limit int) ([]audit.Event, error)
	Head() *audit.Event
}

type IAuditService interface {
	// Verify walks the chain. A broken chain is reported in the response, not
	// as an error, and raises an integrity alarm on the bus.
	Verify(ctx context.Context) (*dto.VerifyResponse, error)
	Events(ctx context.Context, q *dto.AuditEventsQuery) (*dto.AuditEventsResponse, error)
	Head(ctx context.Context) *dto.AuditHeadResponse
}

type auditService struct {
	ledger    AuditLedger
	publisher EventPublisher
	logger    logger.ILogger
	now       func() time.Time
}

// NewAuditService builds the service; publisher may be nil.
func NewAuditService(ledger AuditLedger, publisher EventPublisher, log logger.ILogger) IAuditService {
	return &auditService{ledger: ledger, publisher: publisher, logger: log, now: time.Now}
}

func (s *auditService) Verify(ctx context.Context) (*dto.VerifyResponse, error) {
	report, err := s.ledger.Verify(ctx)
	var violation *audit.IntegrityViolationError
	switch {
	case errors.As(err, &violation):
		s.logger.Error("AUDIT", "Ledger integrity violation", map[string]interface{}{
			"first_bad_sequence": violation.Sequence,
			"reason":             violation.Reason,
			"checked":            report.Checked,
		})
		s.alarm(ctx, report)
	case err != nil:
		return nil, err
	default:
		s.logger.Info("AUDIT", "Ledger verified", map[string]interface{}{
			"checked":   report.Checked,
			"head_hash": report.HeadHash,
		})
	}
	res := dto.NewVerifyResponse(report)
	return &res, nil
}

func (s *auditService) alarm(ctx context.Context, report audit.VerifyReport) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.IntegrityViolation(report, s.now())); err != nil {
		s.logger.Error("AUDIT", "Failed to publish integrity alarm", map[string]interface{}{"error": err.Error()})
	}
}

func (s *auditService) Events(ctx context.Context, q *dto.AuditEventsQuery) (*dto.AuditEventsResponse, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultEventsPage
	}
	evs, err := s.ledger.Events(ctx, q.From, limit)
	if err != nil {
		return nil, err
	}

	res := &dto.AuditEventsResponse{Events: make([]dto.AuditEventResponse, 0, len(evs))}
	for _, ev := range evs {
		res.Events = append(res.Events, dto.NewAuditEventResponse(ev))
	}
	if len(evs) == limit {
		res.Next = evs[len(evs)-1].Sequence + 1
	}
	return res, nil
}

func (s *auditService) Head(_ context.Context) *dto.AuditHeadResponse {
	head := s.ledger.Head()
	if head == nil {
		return &dto.AuditHeadResponse{Hash: audit.GenesisHash}
	}
	return &dto.AuditHeadResponse{SequenceNo: head.Sequence, Hash: head.Hash}
}
