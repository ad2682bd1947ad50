package contract

import (
	"context"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/internal/repository/specification"
)

type ChangeSetRepository interface {
	Upsert(ctx context.Context, changeSet *entity.ChangeSet) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChangeSet, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChangeSet, error)
	Delete(ctx context.Context, id string) error

	UpsertPayload(ctx context.Context, payload *entity.ChangeSetPayload) error
	FindPayload(ctx context.Context, changeSetId string) (*entity.ChangeSetPayload, error)
}

type CorpusChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.CorpusChunk) error
	DeleteByCorpus(ctx context.Context, changeSetId, corpus string) error
	DeleteByChangeSet(ctx context.Context, changeSetId string) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CorpusChunk, error)
	// SearchSimilarWithScore returns the closest chunks of one corpus with their cosine similarity.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, changeSetId, corpus string) ([]*entity.ScoredCorpusChunk, error)
	Stats(ctx context.Context, changeSetId string) ([]entity.CorpusStat, error)
}
