package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChangeSet is the unit under review (a pull request). Id is an opaque key such as "proj1".
type ChangeSet struct {
	Id          string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// ChangeSetPayload is the full structured metadata plus per-file diffs, kept verbatim.
type ChangeSetPayload struct {
	ChangeSetId string
	Payload     json.RawMessage
	UpdatedAt   time.Time
}

// CorpusChunk is one embedded fragment of a change set's diff, code or requirements corpus.
type CorpusChunk struct {
	Id             uuid.UUID
	ChangeSetId    string
	Corpus         string
	FilePath       string
	ChunkIndex     int
	Language       string
	Document       string
	EmbeddingValue []float32
	CreatedAt      time.Time
}

// ScoredCorpusChunk wraps CorpusChunk with its similarity score
type ScoredCorpusChunk struct {
	Chunk      *CorpusChunk
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

// CorpusStat is a row of the per-corpus chunk count listing.
type CorpusStat struct {
	ChangeSetId string
	Corpus      string
	Chunks      int64
	Files       int64
}
