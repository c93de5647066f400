package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"legal-discovery-be/internal/config"
	"legal-discovery-be/internal/controller"
	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/internal/pkg/mailer"
	"legal-discovery-be/internal/repository/implementation"
	"legal-discovery-be/internal/repository/memory"
	"legal-discovery-be/internal/repository/unitofwork"
	"legal-discovery-be/internal/service"
	"legal-discovery-be/internal/websocket"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/embedding"
	"legal-discovery-be/pkg/llm/factory"
	"legal-discovery-be/pkg/rag/answer"
	"legal-discovery-be/pkg/rag/broker"
	"legal-discovery-be/pkg/rag/executor"
	"legal-discovery-be/pkg/rag/fusion"
	"legal-discovery-be/pkg/rag/policy"
	"legal-discovery-be/pkg/rag/privilege"
	"legal-discovery-be/pkg/store"

	pktNats "legal-discovery-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	RetrievalController controller.IRetrievalController
	AuditController     controller.IAuditController
	CorpusController    controller.ICorpusController

	// Background services, started by main
	CorpusService     service.ICorpusService
	AuditRelayService service.IAuditRelayService
	FeedHub           *websocket.Hub
	// IntegrityAlerts is nil unless NATS, SMTP and recipients are configured.
	IntegrityAlerts *service.IntegrityAlertService

	Engine *executor.Engine
	Ledger *audit.Ledger
	Logger logger.ILogger

	closers []func() error
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}

	// 1. Core facades
	sysLogger := logger.NewZapLogger(logger.Options{
		FilePath:   cfg.App.LogFilePath,
		Production: cfg.App.Environment == "production",
		Level:      cfg.App.LogLevel,
	})
	c.Logger = sysLogger
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// 2. Infrastructure
	rdb := connectRedis(ctx, cfg.App.RedisURL)
	if rdb != nil {
		c.closers = append(c.closers, rdb.Close)
	}

	var publisher service.EventPublisher
	if cfg.Audit.RelayToNats {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			publisher = natsPub
			c.closers = append(c.closers, func() error { natsPub.Close(); return nil })
		}
	}

	if publisher != nil && cfg.SMTP.Host != "" && len(cfg.Audit.AlertRecipients) > 0 {
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			c.closers = append(c.closers, func() error { natsSub.Close(); return nil })
			emailService := mailer.NewEmailService(
				cfg.SMTP.Host,
				cfg.SMTP.Port,
				cfg.SMTP.Email,
				cfg.SMTP.Password,
				cfg.SMTP.Email,
				cfg.SMTP.SenderName,
			)
			c.IntegrityAlerts = service.NewIntegrityAlertService(natsSub, emailService, cfg.Audit.AlertRecipients, sysLogger)
		}
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, pubSub.Close)

	// 3. Audit ledger
	backend, err := newAuditBackend(cfg.Audit, db, rdb)
	if err != nil {
		return nil, err
	}
	ledger, err := audit.Open(ctx, backend, audit.WithObserver(service.NewLedgerObserver(pubSub, sysLogger)))
	if err != nil {
		return nil, fmt.Errorf("open audit ledger: %w", err)
	}
	c.Ledger = ledger
	c.closers = append(c.closers, ledger.Close)
	log.Printf("[INFO] Audit ledger: %s backend, head sequence %d", cfg.Audit.Backend, headSequence(ledger))

	// 4. AI providers
	embedder, err := embedding.NewProvider(cfg.Ai.EmbeddingProvider, cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.JinaAPIKey)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using Embedding Provider: %s (%s)", cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel)

	var composer answer.Composer = answer.ExtractiveComposer{}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.OllamaBaseURL, cfg.Ai.LLMTimeout)
	if err != nil {
		return nil, err
	}
	if llmProvider != nil {
		composer = answer.NewLLMComposer(llmProvider, answer.ExtractiveComposer{}, sysLogger)
		log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	} else {
		log.Printf("[INFO] LLM disabled, answers are extractive")
	}

	// 5. Retrieval pipeline
	embeddingRepo := implementation.NewDocumentEmbeddingRepository(db)
	graphRepo := implementation.NewGraphRepository(db)
	metadataCache := memory.NewMetadataCache(implementation.NewDocumentMetadataRepository(db), cfg.Retrieval.MetadataCacheTTL)

	brokerCfg := broker.DefaultConfig()
	brokerCfg.Hops = cfg.Retrieval.GraphHops
	brokerCfg.Overfetch = cfg.Retrieval.VectorOverfetch
	brokerCfg.SourceTimeout = cfg.Retrieval.SourceTimeout
	candidateBroker := broker.NewBroker(embedder, embeddingRepo, graphRepo, brokerCfg, sysLogger)

	ranker, err := fusion.NewRanker(fusion.Profiles{
		store.ModePrecision: {Alpha: cfg.Retrieval.Precision.Alpha, Discount: cfg.Retrieval.Precision.Discount},
		store.ModeRecall:    {Alpha: cfg.Retrieval.Recall.Alpha, Discount: cfg.Retrieval.Recall.Discount},
	})
	if err != nil {
		return nil, fmt.Errorf("fusion profiles: %w", err)
	}

	ensemble, err := privilege.LoadEnsembleConfig(cfg.Policy.PrivilegeConfigPath)
	if err != nil {
		return nil, err
	}
	ensemble.CounselRoster = append(ensemble.CounselRoster, cfg.Policy.CounselRoster...)
	classifier, err := ensemble.Build()
	if err != nil {
		return nil, err
	}

	gate, err := policy.NewGate(policy.Config{
		BlockThreshold:  cfg.Policy.BlockThreshold,
		RedactThreshold: cfg.Policy.RedactThreshold,
		Version:         cfg.Policy.Version,
	}, ledger, sysLogger)
	if err != nil {
		return nil, err
	}

	c.Engine = executor.NewEngine(
		candidateBroker,
		ranker,
		classifier,
		gate,
		answer.NewSynthesizer(composer, sysLogger),
		metadataCache,
		graphRepo,
		executor.Config{
			Deadline:         cfg.Retrieval.QueryDeadline,
			ClassifyWorkers:  cfg.Retrieval.ClassifyWorkers,
			NeighborhoodHops: cfg.Retrieval.NeighborhoodHops,
			DefaultMode:      store.Mode(cfg.Retrieval.DefaultMode),
		},
		sysLogger,
	)

	// 6. Services
	c.FeedHub = websocket.NewHub(rdb, logger.NewIsolatedLogger("logs/audit_feed.log"))
	retrievalService := service.NewRetrievalService(c.Engine)
	auditService := service.NewAuditService(ledger, publisher, sysLogger)
	c.AuditRelayService = service.NewAuditRelayService(pubSub, ledger, publisher, c.FeedHub, sysLogger)
	c.CorpusService = service.NewCorpusService(pubSub, pubSub, uowFactory, embedder, metadataCache, publisher, sysLogger)

	// 7. Controllers
	c.RetrievalController = controller.NewRetrievalController(retrievalService, sysLogger)
	c.AuditController = controller.NewAuditController(auditService, c.FeedHub, sysLogger)
	c.CorpusController = controller.NewCorpusController(c.CorpusService)

	return c, nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return errors.Join(errs...)
}

func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return rdb
}

// newAuditBackend opens the configured ledger storage.
func newAuditBackend(cfg config.AuditConfig, db *gorm.DB, rdb *redis.Client) (audit.Backend, error) {
	switch cfg.Backend {
	case "memory":
		log.Printf("[WARN] Audit ledger is in memory; decisions are lost on restart")
		return audit.NewMemoryBackend(), nil
	case "", "file":
		return audit.NewFileBackend(cfg.FilePath)
	case "postgres":
		if db == nil {
			return nil, errors.New("audit: postgres backend needs a database")
		}
		return implementation.NewAuditEventRepository(db), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("audit: redis backend needs REDIS_URL")
		}
		return audit.NewRedisBackend(rdb, cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("audit: unknown backend %q", cfg.Backend)
	}
}

func headSequence(l *audit.Ledger) uint64 {
	if h := l.Head(); h != nil {
		return h.Sequence
	}
	return 0
}
