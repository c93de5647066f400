package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"legal-discovery-be/internal/dto"
	"legal-discovery-be/internal/mapper"
	"legal-discovery-be/internal/model"
	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/internal/repository/unitofwork"
	"legal-discovery-be/pkg/embedding"
	"legal-discovery-be/pkg/events"
	"legal-discovery-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

const (
	TopicCorpusIngest = "corpus.ingest"

	chunkSize     = 1500
	chunkOverlap  = 200
	ingestRetries = 3
)

// MetadataInvalidator drops cached metadata after a document is rewritten.
type MetadataInvalidator interface {
	Invalidate(docId string)
}

type ICorpusService interface {
	// Submit queues a document for background ingestion.
	Submit(ctx context.Context, req *dto.IngestDocumentRequest) error
	// Ingest embeds and stores a document synchronously.
	Ingest(ctx context.Context, req *dto.IngestDocumentRequest) error
	Consume(ctx context.Context) error
	Stats(ctx context.Context) (*dto.CorpusStatsResponse, error)
}

type corpusService struct {
	pubSub     message.Publisher
	subscriber message.Subscriber
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.Provider
	cache      MetadataInvalidator
	publisher  EventPublisher
	mapper     *mapper.DocumentMapper
	logger     logger.ILogger
	retryDelay time.Duration
}

// NewCorpusService builds the ingestion pipeline; cache and publisher may be nil.
func NewCorpusService(
	pub message.Publisher,
	sub message.Subscriber,
	uowFactory unitofwork.RepositoryFactory,
	embedder embedding.Provider,
	cache MetadataInvalidator,
	publisher EventPublisher,
	log logger.ILogger,
) ICorpusService {
	return &corpusService{
		pubSub:     pub,
		subscriber: sub,
		uowFactory: uowFactory,
		embedder:   embedder,
		cache:      cache,
		publisher:  publisher,
		mapper:     mapper.NewDocumentMapper(),
		logger:     log,
		retryDelay: time.Second,
	}
}

func (s *corpusService) Submit(ctx context.Context, req *dto.IngestDocumentRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return s.pubSub.Publish(TopicCorpusIngest, msg)
}

func (s *corpusService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, TopicCorpusIngest)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()
	return nil
}

// processMessage always acks: a document that still fails after the local
// retries is logged and dropped rather than redelivered in a hot loop.
func (s *corpusService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var req dto.IngestDocumentRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		s.logger.Error("CORPUS", "Failed to unmarshal ingest message", map[string]interface{}{"error": err.Error()})
		return
	}

	var err error
	for attempt := 1; attempt <= ingestRetries; attempt++ {
		if err = s.Ingest(ctx, &req); err == nil {
			return
		}
		s.logger.Warn("CORPUS", "Ingest attempt failed", map[string]interface{}{
			"doc_id":  req.DocId,
			"attempt": attempt,
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
	s.logger.Error("CORPUS", "Document dropped after retries", map[string]interface{}{
		"doc_id": req.DocId,
		"error":  err.Error(),
	})
}

func (s *corpusService) Ingest(ctx context.Context, req *dto.IngestDocumentRequest) error {
	if strings.TrimSpace(req.DocId) == "" {
		return errors.New("corpus: doc_id is empty")
	}
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("corpus: document %s has no content", req.DocId)
	}

	chunks := utils.SplitText(req.Content, chunkSize, chunkOverlap)
	embeddings := make([]*model.DocumentEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("corpus: embed chunk %d of %s: %w", i, req.DocId, err)
		}
		embeddings = append(embeddings, &model.DocumentEmbedding{
			Id:             uuid.New(),
			DocId:          req.DocId,
			ChunkIndex:     i,
			Snippet:        chunk,
			EmbeddingValue: pgvector.NewVector(vec),
		})
	}

	nodes, parties, edges := s.graphFor(req)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("corpus: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback()
		}
	}()

	if err := uow.DocumentMetadataRepository().Upsert(ctx, req.Metadata()); err != nil {
		return fmt.Errorf("corpus: upsert metadata: %w", err)
	}
	embeddingRepo := uow.DocumentEmbeddingRepository()
	if err := embeddingRepo.DeleteByDocId(ctx, req.DocId); err != nil {
		return fmt.Errorf("corpus: clear embeddings: %w", err)
	}
	if err := embeddingRepo.CreateBulk(ctx, embeddings); err != nil {
		return fmt.Errorf("corpus: store embeddings: %w", err)
	}

	graphRepo := uow.GraphRepository()
	if err := graphRepo.CreateNodes(ctx, nodes); err != nil {
		return fmt.Errorf("corpus: store nodes: %w", err)
	}
	if err := graphRepo.EnsureNodes(ctx, parties); err != nil {
		return fmt.Errorf("corpus: store parties: %w", err)
	}
	if err := graphRepo.DeleteEdgesFrom(ctx, DocumentNodeID(req.DocId)); err != nil {
		return fmt.Errorf("corpus: clear edges: %w", err)
	}
	if err := graphRepo.CreateEdges(ctx, edges); err != nil {
		return fmt.Errorf("corpus: store edges: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("corpus: commit: %w", err)
	}
	committed = true

	if s.cache != nil {
		s.cache.Invalidate(req.DocId)
	}
	s.announce(ctx, req.DocId, len(embeddings))

	s.logger.Info("CORPUS", "Document ingested", map[string]interface{}{
		"doc_id": req.DocId,
		"chunks": len(embeddings),
		"edges":  len(edges),
	})
	return nil
}

func (s *corpusService) announce(ctx context.Context, docId string, chunks int) {
	if s.publisher == nil {
		return
	}
	ev := events.BaseEvent{
		ID:         uuid.NewString(),
		Type:       events.TypeDocumentIngested,
		Data:       map[string]interface{}{"doc_id": docId, "chunks": chunks},
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("CORPUS", "Failed to publish ingest event", map[string]interface{}{"doc_id": docId, "error": err.Error()})
	}
}

// DocumentNodeID is the graph node standing for a document.
func DocumentNodeID(docId string) string {
	return "doc:" + docId
}

// PartyNodeID is the graph node standing for an email address or name.
func PartyNodeID(party string) string {
	return "party:" + strings.ToLower(strings.TrimSpace(party))
}

// graphFor returns the document node plus explicit nodes, the party nodes to
// create if missing, and the document's outgoing edges.
func (s *corpusService) graphFor(req *dto.IngestDocumentRequest) ([]*model.GraphNode, []*model.GraphNode, []*model.GraphEdge) {
	docNode := DocumentNodeID(req.DocId)
	docId := req.DocId
	label := req.Title
	if label == "" {
		label = req.Subject
	}

	nodes := []*model.GraphNode{{
		Id:    docNode,
		Kind:  "document",
		Label: label,
		DocId: &docId,
		Tags:  s.mapper.FromTags(req.Tags),
	}}
	for _, n := range req.Nodes {
		node := &model.GraphNode{Id: n.Id, Kind: n.Kind, Label: n.Label, Tags: s.mapper.FromTags(n.Tags)}
		if n.DocId != "" {
			id := n.DocId
			node.DocId = &id
		}
		nodes = append(nodes, node)
	}

	var (
		parties []*model.GraphNode
		edges   []*model.GraphEdge
		seen    = map[string]bool{}
	)
	link := func(party, relation string) {
		party = strings.TrimSpace(party)
		if party == "" {
			return
		}
		id := PartyNodeID(party)
		if !seen[id] {
			seen[id] = true
			var tags []string
			if role := roleOf(req.Roles, party); role != "" {
				tags = []string{role}
			}
			parties = append(parties, &model.GraphNode{Id: id, Kind: "party", Label: party, Tags: s.mapper.FromTags(tags)})
		}
		edges = append(edges, &model.GraphEdge{FromId: docNode, ToId: id, Relation: relation, Weight: 1})
	}
	link(req.Author, "authored_by")
	link(req.Sender, "sent_by")
	for _, r := range req.Recipients {
		link(r, "sent_to")
	}

	for _, e := range req.Edges {
		weight := e.Weight
		if weight == 0 {
			weight = 1
		}
		edges = append(edges, &model.GraphEdge{FromId: docNode, ToId: e.ToId, Relation: e.Relation, Weight: weight})
	}
	return nodes, parties, edges
}

func roleOf(roles map[string]string, party string) string {
	for addr, role := range roles {
		if strings.EqualFold(strings.TrimSpace(addr), party) {
			return strings.ToLower(role)
		}
	}
	return ""
}

func (s *corpusService) Stats(ctx context.Context) (*dto.CorpusStatsResponse, error) {
	count, err := s.uowFactory.NewUnitOfWork(ctx).DocumentEmbeddingRepository().Count(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.CorpusStatsResponse{Chunks: count}, nil
}
