package service

import (
	"context"
	"encoding/json"
	"time"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	TopicAuditAppended = "audit.appended"

	relayRetryDelay = 2 * time.Second
	relayBatch      = 200
)

// FeedBroadcaster pushes frames to live reviewers.
type FeedBroadcaster interface {
	Broadcast(ctx context.Context, frame []byte)
}

// AuditEventSource is where the relay reads events, in sequence order.
type AuditEventSource interface {
	Events(ctx context.Context, from uint64, limit int) ([]audit.Event, error)
	Head() *audit.Event
}

// NewLedgerObserver hands every appended event to the in-process bus. It runs
// under the ledger's write lock, so it only enqueues.
func NewLedgerObserver(pub message.Publisher, log logger.ILogger) audit.Observer {
	return func(ev audit.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Error("AUDIT_RELAY", "Failed to encode audit event", map[string]interface{}{"sequence_no": ev.Sequence, "error": err.Error()})
			return
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := pub.Publish(TopicAuditAppended, msg); err != nil {
			log.Warn("AUDIT_RELAY", "Failed to enqueue audit event", map[string]interface{}{"sequence_no": ev.Sequence, "error": err.Error()})
		}
	}
}

type IAuditRelayService interface {
	Consume(ctx context.Context) error
}

// auditRelayService forwards appended ledger events to NATS and to the live
// feed. In-process messages only announce that the chain grew; each sink keeps
// a cursor and reads the ledger from it, so events leave in sequence order
// and a dropped or failed message is caught up by the next one.
type auditRelayService struct {
	subscriber message.Subscriber
	source     AuditEventSource
	publisher  EventPublisher
	feed       FeedBroadcaster
	logger     logger.ILogger
	retryDelay time.Duration
}

// NewAuditRelayService builds the relay; publisher and feed may be nil.
func NewAuditRelayService(subscriber message.Subscriber, source AuditEventSource, publisher EventPublisher, feed FeedBroadcaster, log logger.ILogger) IAuditRelayService {
	return &auditRelayService{
		subscriber: subscriber,
		source:     source,
		publisher:  publisher,
		feed:       feed,
		logger:     log,
		retryDelay: relayRetryDelay,
	}
}

// Consume starts one tail per configured sink, beginning after the current
// head. History already on the ledger is not replayed.
func (s *auditRelayService) Consume(ctx context.Context) error {
	start := uint64(1)
	if head := s.source.Head(); head != nil {
		start = head.Sequence + 1
	}

	if s.publisher != nil {
		messages, err := s.subscriber.Subscribe(ctx, TopicAuditAppended)
		if err != nil {
			return err
		}
		go s.tail(ctx, "nats", messages, start, s.toBus)
	}
	if s.feed != nil {
		messages, err := s.subscriber.Subscribe(ctx, TopicAuditAppended)
		if err != nil {
			return err
		}
		go s.tail(ctx, "feed", messages, start, s.toFeed)
	}
	return nil
}

func (s *auditRelayService) tail(ctx context.Context, sink string, messages <-chan *message.Message, next uint64, deliver func(context.Context, audit.Event) error) {
	for msg := range messages {
		var announced audit.Event
		if err := json.Unmarshal(msg.Payload, &announced); err != nil {
			s.logger.Error("AUDIT_RELAY", "Dropping undecodable audit message", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}

		err := s.catchUp(ctx, announced.Sequence, &next, deliver)
		if err == nil {
			msg.Ack()
			continue
		}
		s.logger.Warn("AUDIT_RELAY", "Relay failed, will retry", map[string]interface{}{
			"sink":        sink,
			"next":        next,
			"sequence_no": announced.Sequence,
			"error":       err.Error(),
		})
		select {
		case <-ctx.Done():
			msg.Ack()
			continue
		case <-time.After(s.retryDelay):
		}
		msg.Nack()
	}
}

// catchUp delivers every event from *next through upTo, advancing *next past
// each delivered event.
func (s *auditRelayService) catchUp(ctx context.Context, upTo uint64, next *uint64, deliver func(context.Context, audit.Event) error) error {
	for *next <= upTo {
		batch, err := s.source.Events(ctx, *next, relayBatch)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, ev := range batch {
			if ev.Sequence > upTo {
				return nil
			}
			if err := deliver(ctx, ev); err != nil {
				return err
			}
			*next = ev.Sequence + 1
		}
	}
	return nil
}

func (s *auditRelayService) toBus(ctx context.Context, ev audit.Event) error {
	return s.publisher.Publish(ctx, events.AuditAppended(ev))
}

func (s *auditRelayService) toFeed(ctx context.Context, ev audit.Event) error {
	frame, err := json.Marshal(events.AuditAppended(ev).Payload())
	if err != nil {
		return nil
	}
	s.feed.Broadcast(ctx, frame)
	return nil
}
