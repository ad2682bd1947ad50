package mapper

import (
	"encoding/json"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ChangeSetMapper struct{}

func NewChangeSetMapper() *ChangeSetMapper {
	return &ChangeSetMapper{}
}

func (m *ChangeSetMapper) ToEntity(c *model.ChangeSet) *entity.ChangeSet {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChangeSet{
		Id:          c.Id,
		Title:       c.Title,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *ChangeSetMapper) ToModel(c *entity.ChangeSet) *model.ChangeSet {
	if c == nil {
		return nil
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.ChangeSet{
		Id:          c.Id,
		Title:       c.Title,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *ChangeSetMapper) PayloadToEntity(p *model.ChangeSetPayload) *entity.ChangeSetPayload {
	if p == nil {
		return nil
	}
	return &entity.ChangeSetPayload{
		ChangeSetId: p.ChangeSetId,
		Payload:     json.RawMessage(p.Payload),
		UpdatedAt:   p.UpdatedAt,
	}
}

func (m *ChangeSetMapper) PayloadToModel(p *entity.ChangeSetPayload) *model.ChangeSetPayload {
	if p == nil {
		return nil
	}
	return &model.ChangeSetPayload{
		ChangeSetId: p.ChangeSetId,
		Payload:     datatypes.JSON(p.Payload),
		UpdatedAt:   p.UpdatedAt,
	}
}

type CorpusChunkMapper struct{}

func NewCorpusChunkMapper() *CorpusChunkMapper {
	return &CorpusChunkMapper{}
}

func (m *CorpusChunkMapper) ToEntity(c *model.CorpusChunk) *entity.CorpusChunk {
	if c == nil {
		return nil
	}
	return &entity.CorpusChunk{
		Id:             c.Id,
		ChangeSetId:    c.ChangeSetId,
		Corpus:         c.Corpus,
		FilePath:       c.FilePath,
		ChunkIndex:     c.ChunkIndex,
		Language:       c.Language,
		Document:       c.Document,
		EmbeddingValue: c.EmbeddingValue.Slice(),
		CreatedAt:      c.CreatedAt,
	}
}

func (m *CorpusChunkMapper) ToModel(c *entity.CorpusChunk) *model.CorpusChunk {
	if c == nil {
		return nil
	}
	return &model.CorpusChunk{
		Id:             c.Id,
		ChangeSetId:    c.ChangeSetId,
		Corpus:         c.Corpus,
		FilePath:       c.FilePath,
		ChunkIndex:     c.ChunkIndex,
		Language:       c.Language,
		Document:       c.Document,
		EmbeddingValue: pgvector.NewVector(c.EmbeddingValue),
		CreatedAt:      c.CreatedAt,
	}
}

func (m *CorpusChunkMapper) ToModels(chunks []*entity.CorpusChunk) []*model.CorpusChunk {
	models := make([]*model.CorpusChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}
