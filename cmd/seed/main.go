package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"legal-discovery-be/internal/config"
	"legal-discovery-be/internal/dto"
	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/internal/pkg/serverutils"
	"legal-discovery-be/internal/repository/unitofwork"
	"legal-discovery-be/internal/service"
	"legal-discovery-be/pkg/database"
	"legal-discovery-be/pkg/embedding"

	"gopkg.in/yaml.v3"
)

// seed loads a corpus file (JSON or YAML list of documents) synchronously.
func main() {
	file := flag.String("file", "data/corpus.yaml", "corpus file, .json or .yaml")
	flag.Parse()

	cfg := config.Load()

	docs, err := loadCorpus(*file)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	embedder, err := embedding.NewProvider(cfg.Ai.EmbeddingProvider, cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.JinaAPIKey)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	sysLogger := logger.NewZapLogger(logger.Options{FilePath: cfg.App.LogFilePath, Level: cfg.App.LogLevel})
	defer sysLogger.Sync()

	corpus := service.NewCorpusService(nil, nil, unitofwork.NewRepositoryFactory(db), embedder, nil, nil, sysLogger)

	ctx := context.Background()
	failed := 0
	for i := range docs {
		doc := &docs[i]
		if err := serverutils.ValidateRequest(doc); err != nil {
			log.Printf("⚠️  Skipping document #%d (%s): %v", i+1, doc.DocId, err)
			failed++
			continue
		}
		if err := corpus.Ingest(ctx, doc); err != nil {
			log.Printf("❌ %s: %v", doc.DocId, err)
			failed++
			continue
		}
		log.Printf("✅ %s", doc.DocId)
	}

	log.Printf("Seeded %d of %d documents", len(docs)-failed, len(docs))
	if failed > 0 {
		os.Exit(1)
	}
}

// loadCorpus reads documents from file. YAML is normalised through JSON so
// both formats share the request's json field names.
func loadCorpus(path string) ([]dto.IngestDocumentRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		var generic interface{}
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if raw, err = json.Marshal(generic); err != nil {
			return nil, fmt.Errorf("normalise %s: %w", path, err)
		}
	}

	var docs []dto.IngestDocumentRequest
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return docs, nil
}
