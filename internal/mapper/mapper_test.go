package mapper

import (
	"testing"
	"time"

	"legal-discovery-be/internal/model"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestDocumentMapper_Metadata(t *testing.T) {
	m := NewDocumentMapper()
	in := &store.DocumentMetadata{
		DocID:      "doc-1",
		Title:      "NDA",
		Sender:     "a@acme.test",
		Recipients: []string{"b@acme.test"},
		Roles:      map[string]string{"gc@acme.test": "counsel"},
		Flags:      []string{"privileged"},
		Custodian:  "Alice",
	}
	row, err := m.ToMetadataModel(in)
	require.NoError(t, err)
	out, err := m.ToMetadata(row)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDocumentMapper_CorruptColumnIsAnError(t *testing.T) {
	_, err := NewDocumentMapper().ToMetadata(&model.DocumentMetadata{DocId: "doc-1", Flags: datatypes.JSON(`{"oops"`)})
	assert.Error(t, err)
}

func TestDocumentMapper_UnreadableTagsAreAnError(t *testing.T) {
	m := NewDocumentMapper()

	_, err := m.ToTags(datatypes.JSON(`"privileged"`))
	assert.Error(t, err)

	tags, err := m.ToTags(m.FromTags([]string{"privileged"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"privileged"}, tags)

	tags, err = m.ToTags(nil)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestDocumentMapper_NullColumnsDecodeEmpty(t *testing.T) {
	out, err := NewDocumentMapper().ToMetadata(&model.DocumentMetadata{DocId: "doc-1", Roles: datatypes.JSON("null")})
	require.NoError(t, err)
	assert.Nil(t, out.Roles)
	assert.Nil(t, out.Flags)
}

func TestAuditEventMapper_PreservesHashInputs(t *testing.T) {
	ev := audit.Event{
		Sequence:      3,
		Timestamp:     time.Date(2026, 1, 1, 0, 0, 0, 123000, time.UTC),
		Actor:         "r",
		QueryID:       "q",
		Subject:       "doc-1",
		Decision:      store.DecisionRedact,
		ReasonCode:    "x",
		PolicyVersion: "v1",
		RiskScore:     0.55,
		PrevHash:      audit.GenesisHash,
	}
	ev.Hash = audit.HashEvent(ev)

	m := NewAuditEventMapper()
	back := m.ToEvent(m.ToModel(ev))
	assert.Equal(t, ev, back)
	assert.Equal(t, ev.Hash, audit.HashEvent(back))
}
