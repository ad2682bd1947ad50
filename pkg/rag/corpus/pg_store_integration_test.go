package corpus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/internal/repository/unitofwork"
	"github.com/BearPays/code-review-assistant-back/pkg/database"
	"github.com/BearPays/code-review-assistant-back/pkg/embedding"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constantEmbedder struct{ vec []float32 }

func (c constantEmbedder) Generate(context.Context, string, string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: c.vec}}, nil
}

func TestPGStoreAgainstDatabase(t *testing.T) {
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	ctx := context.Background()
	factory := unitofwork.NewRepositoryFactory(db)
	changeSetID := "it-" + uuid.NewString()[:8]

	uow := factory.NewUnitOfWork(ctx)
	t.Cleanup(func() {
		_ = uow.CorpusChunkRepository().DeleteByChangeSet(ctx, changeSetID)
		_ = uow.ChangeSetRepository().Delete(ctx, changeSetID)
	})

	require.NoError(t, uow.ChangeSetRepository().Upsert(ctx, &entity.ChangeSet{Id: changeSetID, Title: "it", CreatedAt: time.Now()}))
	require.NoError(t, uow.CorpusChunkRepository().CreateBulk(ctx, []*entity.CorpusChunk{
		{Id: uuid.New(), ChangeSetId: changeSetID, Corpus: string(KindCode), FilePath: "a.go", Document: "package a", EmbeddingValue: []float32{1, 0, 0}},
		{Id: uuid.New(), ChangeSetId: changeSetID, Corpus: string(KindCode), FilePath: "b.go", Document: "package b", EmbeddingValue: []float32{0, 1, 0}},
	}))

	store := NewPGStore(factory, constantEmbedder{vec: []float32{1, 0, 0}}, logger.NewNopLogger())

	exists, err := store.ChangeSetExists(ctx, changeSetID)
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := store.Count(ctx, changeSetID, KindCode)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Count(ctx, changeSetID, KindDiff)
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := store.Search(ctx, changeSetID, KindCode, "anything", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a.go", hits[0].FilePath)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}
