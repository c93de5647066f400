package implementation

import (
	"context"
	"log"
	"os"
	"testing"

	"legal-discovery-be/internal/mapper"
	"legal-discovery-be/internal/model"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/database"
	"legal-discovery-be/pkg/store"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// openTx connects to DB_CONNECTION_STRING and returns a transaction that is
// rolled back when the test ends.
func openTx(t *testing.T) *gorm.DB {
	t.Helper()
	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	tx := db.Begin()
	require.NoError(t, tx.Error)
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func unitVector(hot int) []float32 {
	v := make([]float32, 768)
	v[hot] = 1
	return v
}

func TestGraphRepository_WalksWeightedEdges(t *testing.T) {
	tx := openTx(t)
	ctx := context.Background()
	repo := NewGraphRepository(tx)
	p := uuid.NewString()[:8] + "-"

	docA, docB := p+"doc-a", p+"doc-b"
	require.NoError(t, repo.CreateNodes(ctx, []*model.GraphNode{
		{Id: p + "acme", Kind: "party", Label: p + "Acme Corp"},
		{Id: p + "n-a", Kind: "document", DocId: &docA},
		{Id: p + "n-b", Kind: "document", DocId: &docB},
		{Id: p + "counsel", Kind: "party", Label: "Outside counsel", Tags: mapper.NewDocumentMapper().FromTags([]string{"privileged"})},
	}))
	require.NoError(t, repo.CreateEdges(ctx, []*model.GraphEdge{
		{FromId: p + "acme", ToId: p + "n-a", Weight: 0.25},
		{FromId: p + "n-a", ToId: p + "n-b", Weight: 1},
		{FromId: p + "counsel", ToId: p + "n-b", Weight: 0.5},
	}))

	hits, err := repo.Neighbors(ctx, []string{p + "acme"}, 2)
	require.NoError(t, err)
	got := map[string]float64{}
	for _, h := range hits {
		got[h.DocID] = h.Distance
	}
	assert.InDelta(t, 0.25, got[docA], 1e-9)
	assert.InDelta(t, 1.25, got[docB], 1e-9)

	seeds, err := repo.ResolveSeeds(ctx, "emails about the NDA with "+p+"Acme Corp", 5)
	require.NoError(t, err)
	assert.Contains(t, seeds, p+"acme")

	hood, err := repo.Neighborhood(ctx, docB, 1)
	require.NoError(t, err)
	var privileged bool
	for _, n := range hood {
		if n.NodeID == p+"counsel" {
			privileged = n.HasTag("privileged")
			assert.InDelta(t, 0.5, n.Distance, 1e-9)
		}
	}
	assert.True(t, privileged)
}

func TestGraphRepository_NeighborhoodFailsOnOversizeOrUnreadableNodes(t *testing.T) {
	tx := openTx(t)
	ctx := context.Background()
	p := uuid.NewString()[:8] + "-"
	docA := p + "doc-a"

	repo := &GraphRepositoryImpl{db: tx, mapper: mapper.NewDocumentMapper(), maxNodes: 3}
	require.NoError(t, repo.CreateNodes(ctx, []*model.GraphNode{
		{Id: p + "n-a", Kind: "document", DocId: &docA},
		{Id: p + "party-1", Kind: "party"},
		{Id: p + "party-2", Kind: "party"},
		{Id: p + "counsel", Kind: "party", Tags: datatypes.JSON(`"privileged"`)},
	}))
	require.NoError(t, repo.CreateEdges(ctx, []*model.GraphEdge{
		{FromId: p + "n-a", ToId: p + "party-1", Weight: 1},
		{FromId: p + "n-a", ToId: p + "party-2", Weight: 1},
		{FromId: p + "n-a", ToId: p + "counsel", Weight: 1},
	}))

	_, err := repo.Neighborhood(ctx, docA, 1)
	assert.ErrorIs(t, err, ErrNeighborhoodTruncated)

	// graph expansion for retrieval keeps working under the cap
	_, err = repo.Neighbors(ctx, []string{p + "n-a"}, 1)
	require.NoError(t, err)

	repo.maxNodes = defaultMaxNodes
	_, err = repo.Neighborhood(ctx, docA, 1)
	assert.ErrorContains(t, err, "decode tags")
}

func TestDocumentEmbeddingRepository_Search(t *testing.T) {
	tx := openTx(t)
	ctx := context.Background()
	repo := NewDocumentEmbeddingRepository(tx)
	p := uuid.NewString()[:8] + "-"

	require.NoError(t, repo.CreateBulk(ctx, []*model.DocumentEmbedding{
		{DocId: p + "near", Snippet: "near", EmbeddingValue: pgvector.NewVector(unitVector(0))},
		{DocId: p + "far", Snippet: "far", EmbeddingValue: pgvector.NewVector(unitVector(1))},
	}))

	hits, err := repo.Search(ctx, unitVector(0), 50)
	require.NoError(t, err)
	var near *float64
	for _, h := range hits {
		if h.DocID == p+"near" {
			s := h.Similarity
			near = &s
		}
	}
	require.NotNil(t, near)
	assert.InDelta(t, 1.0, *near, 1e-6)
}

func TestDocumentMetadataRepository_RoundTrip(t *testing.T) {
	tx := openTx(t)
	ctx := context.Background()
	repo := NewDocumentMetadataRepository(tx)
	id := uuid.NewString()

	md := &store.DocumentMetadata{
		DocID: id, Title: "RE: NDA", Sender: "gc@acme.test",
		Recipients: []string{"ceo@acme.test"}, Flags: []string{"attorney_client"},
		Roles: map[string]string{"gc@acme.test": "counsel"}, Custodian: "Alice",
	}
	require.NoError(t, repo.Upsert(ctx, md))

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, md, got)

	_, err = repo.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestAuditEventRepository_ChainsAndDetectsConflicts(t *testing.T) {
	tx := openTx(t)
	ctx := context.Background()

	backend := NewAuditEventRepository(tx)
	ledger, err := audit.Open(ctx, backend)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := ledger.Append(ctx, audit.Fields{Actor: "r", QueryID: "q", Subject: "doc", Decision: store.DecisionAllow, PolicyVersion: "v1", RiskScore: 0.125})
		require.NoError(t, err)
	}

	report, err := ledger.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, uint64(3), report.Checked)

	dup := *ledger.Head()
	err = backend.Append(ctx, dup)
	assert.ErrorIs(t, err, audit.ErrSequenceConflict)
}
