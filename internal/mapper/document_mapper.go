package mapper

import (
	"encoding/json"
	"fmt"

	"legal-discovery-be/internal/model"
	"legal-discovery-be/pkg/store"

	"gorm.io/datatypes"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

// ToMetadata decodes the JSON columns. A column that does not decode is an
// error so the caller can fail closed instead of screening partial data.
func (m *DocumentMapper) ToMetadata(d *model.DocumentMetadata) (*store.DocumentMetadata, error) {
	if d == nil {
		return nil, nil
	}
	out := &store.DocumentMetadata{
		DocID:     d.DocId,
		Title:     d.Title,
		Subject:   d.Subject,
		Author:    d.Author,
		Sender:    d.Sender,
		Custodian: d.Custodian,
		Content:   d.Content,
	}
	if err := decodeJSON(d.Recipients, &out.Recipients); err != nil {
		return nil, err
	}
	if err := decodeJSON(d.Roles, &out.Roles); err != nil {
		return nil, err
	}
	if err := decodeJSON(d.Flags, &out.Flags); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *DocumentMapper) ToMetadataModel(d *store.DocumentMetadata) (*model.DocumentMetadata, error) {
	if d == nil {
		return nil, nil
	}
	recipients, err := encodeJSON(d.Recipients)
	if err != nil {
		return nil, err
	}
	roles, err := encodeJSON(d.Roles)
	if err != nil {
		return nil, err
	}
	flags, err := encodeJSON(d.Flags)
	if err != nil {
		return nil, err
	}
	return &model.DocumentMetadata{
		DocId:      d.DocID,
		Title:      d.Title,
		Subject:    d.Subject,
		Author:     d.Author,
		Sender:     d.Sender,
		Recipients: recipients,
		Custodian:  d.Custodian,
		Roles:      roles,
		Flags:      flags,
		Content:    d.Content,
	}, nil
}

// ToTags decodes a node's tag list. Unreadable tags are an error, like
// unreadable metadata, so screening fails closed on them.
func (m *DocumentMapper) ToTags(raw datatypes.JSON) ([]string, error) {
	var tags []string
	if err := decodeJSON(raw, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

func (m *DocumentMapper) FromTags(tags []string) datatypes.JSON {
	raw, _ := encodeJSON(tags)
	return raw
}

func decodeJSON(raw datatypes.JSON, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func encodeJSON(v interface{}) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
