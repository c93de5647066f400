package database

import (
	"fmt"

	"legal-discovery-be/internal/model"

	"gorm.io/gorm"
)

var setupSQL = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	`CREATE EXTENSION IF NOT EXISTS vector;`,
}

var postMigrationSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_document_embeddings_hnsw
	   ON document_embeddings USING hnsw (embedding_value vector_cosine_ops);`,
	`CREATE INDEX IF NOT EXISTS idx_graph_nodes_label_lower ON graph_nodes (LOWER(label));`,

	// the ledger table is insert-only
	`CREATE OR REPLACE FUNCTION audit_events_append_only() RETURNS trigger LANGUAGE plpgsql AS $$
	 BEGIN
	   RAISE EXCEPTION 'audit_events is append-only';
	 END; $$;`,
	`DROP TRIGGER IF EXISTS audit_events_no_mutation ON audit_events;`,
	`CREATE TRIGGER audit_events_no_mutation BEFORE UPDATE OR DELETE ON audit_events
	   FOR EACH ROW EXECUTE FUNCTION audit_events_append_only();`,
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&model.DocumentEmbedding{},
		&model.DocumentMetadata{},
		&model.GraphNode{},
		&model.GraphEdge{},
		&model.AuditEvent{},
	}
}

// Migrate creates extensions, tables, indexes and the ledger guard trigger.
// It is idempotent.
func Migrate(db *gorm.DB) error {
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("post migration: %w", err)
		}
	}
	return nil
}
