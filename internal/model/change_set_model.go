package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ChangeSet struct {
	Id          string `gorm:"type:varchar(128);primaryKey"`
	Title       string `gorm:"type:text"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ChangeSet) TableName() string {
	return "change_sets"
}

type ChangeSetPayload struct {
	ChangeSetId string         `gorm:"type:varchar(128);primaryKey"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

func (ChangeSetPayload) TableName() string {
	return "change_set_payloads"
}

// CorpusChunk stores one embedded fragment. The vector column is left
// dimensionless so openai (1536), nomic (768) and gemini models all fit.
type CorpusChunk struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChangeSetId    string          `gorm:"type:varchar(128);not null;index:idx_corpus_chunks_scope"`
	Corpus         string          `gorm:"type:varchar(32);not null;index:idx_corpus_chunks_scope"`
	FilePath       string          `gorm:"type:text"`
	ChunkIndex     int             `gorm:"default:0"`
	Language       string          `gorm:"type:varchar(32)"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (CorpusChunk) TableName() string {
	return "corpus_chunks"
}
