package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POLICY_BLOCK_THRESHOLD", "")
	cfg := Load()

	assert.Equal(t, 0.7, cfg.Retrieval.Precision.Alpha)
	assert.Equal(t, 0.5, cfg.Retrieval.Precision.Discount)
	assert.Equal(t, 0.8, cfg.Policy.BlockThreshold)
	assert.Equal(t, 0.5, cfg.Policy.RedactThreshold)
	assert.Equal(t, 3*time.Second, cfg.Retrieval.SourceTimeout)
	assert.Equal(t, []string{"auditor", "admin"}, cfg.Auth.AuditRoles)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FUSION_RECALL_ALPHA", "0.35")
	t.Setenv("CLASSIFY_WORKERS", "9")
	t.Setenv("QUERY_DEADLINE", "2s")
	t.Setenv("COUNSEL_ROSTER", " @firm.test, ,gc@acme.test")
	t.Setenv("AUDIT_RELAY_NATS", "true")
	t.Setenv("GRAPH_HOPS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 0.35, cfg.Retrieval.Recall.Alpha)
	assert.Equal(t, 9, cfg.Retrieval.ClassifyWorkers)
	assert.Equal(t, 2*time.Second, cfg.Retrieval.QueryDeadline)
	assert.Equal(t, []string{"@firm.test", "gc@acme.test"}, cfg.Policy.CounselRoster)
	assert.True(t, cfg.Audit.RelayToNats)
	assert.Equal(t, 2, cfg.Retrieval.GraphHops)
}
