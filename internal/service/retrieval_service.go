package service

import (
	"context"

	"legal-discovery-be/internal/dto"
	"legal-discovery-be/pkg/store"
)

// RetrievalEngine is the query pipeline the service fronts.
type RetrievalEngine interface {
	Stream(ctx context.Context, q store.Query, emit store.Emitter) (*store.AnswerResult, error)
}

type IRetrievalService interface {
	Query(ctx context.Context, actor string, req *dto.QueryRequest) (*store.AnswerResult, error)
	Stream(ctx context.Context, actor string, req *dto.QueryRequest, emit store.Emitter) (*store.AnswerResult, error)
}

type retrievalService struct {
	engine RetrievalEngine
}

func NewRetrievalService(engine RetrievalEngine) IRetrievalService {
	return &retrievalService{engine: engine}
}

func (s *retrievalService) Query(ctx context.Context, actor string, req *dto.QueryRequest) (*store.AnswerResult, error) {
	return s.engine.Stream(ctx, req.ToQuery(actor), nil)
}

func (s *retrievalService) Stream(ctx context.Context, actor string, req *dto.QueryRequest, emit store.Emitter) (*store.AnswerResult, error) {
	return s.engine.Stream(ctx, req.ToQuery(actor), emit)
}
