package service

import (
	"context"
	"fmt"
	"time"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/internal/pkg/mailer"
	"legal-discovery-be/pkg/events"
	pktNats "legal-discovery-be/pkg/nats"
)

const integrityAlertConsumer = "integrity-alert-worker"

// EventSubscriber is satisfied by the JetStream subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler pktNats.EventHandler) error
}

// IntegrityAlertService mails the configured recipients whenever a ledger
// verification reports a broken chain.
type IntegrityAlertService struct {
	subscriber EventSubscriber
	mailer     mailer.IEmailService
	recipients []string
	logger     logger.ILogger
}

func NewIntegrityAlertService(sub EventSubscriber, mail mailer.IEmailService, recipients []string, log logger.ILogger) *IntegrityAlertService {
	return &IntegrityAlertService{
		subscriber: sub,
		mailer:     mail,
		recipients: recipients,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *IntegrityAlertService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, events.TypeAuditIntegrityViolation, integrityAlertConsumer, s.handleEvent); err != nil {
		s.logger.Error("INTEGRITY_ALERT", "Failed to start alert subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("INTEGRITY_ALERT", "Integrity alerts enabled", map[string]interface{}{"recipients": len(s.recipients)})
	return nil
}

func (s *IntegrityAlertService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	alert := mailer.IntegrityAlert{
		FirstBadSequence: asUint(payload["first_bad_sequence"]),
		Checked:          asUint(payload["checked"]),
		Reason:           fmt.Sprint(payload["reason"]),
		DetectedAt:       event.Timestamp(),
	}
	if alert.DetectedAt.IsZero() {
		alert.DetectedAt = time.Now()
	}

	s.logger.Warn("INTEGRITY_ALERT", "Mailing integrity violation", map[string]interface{}{
		"event_id":           event.EventID(),
		"first_bad_sequence": alert.FirstBadSequence,
	})
	// A returned error naks the message so JetStream redelivers it.
	return s.mailer.SendIntegrityAlert(s.recipients, alert)
}

// asUint reads a counter that went through JSON and so arrives as float64.
func asUint(v interface{}) uint64 {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case uint64:
		return n
	case int:
		return uint64(n)
	default:
		return 0
	}
}
