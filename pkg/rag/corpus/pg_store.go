package corpus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/internal/repository/specification"
	"github.com/BearPays/code-review-assistant-back/internal/repository/unitofwork"
	"github.com/BearPays/code-review-assistant-back/pkg/embedding"
)

// PGStore serves corpus lookups from postgres + pgvector.
type PGStore struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

var _ Store = (*PGStore)(nil)

func NewPGStore(uowFactory unitofwork.RepositoryFactory, embeddingProvider embedding.EmbeddingProvider, log logger.ILogger) *PGStore {
	return &PGStore{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (s *PGStore) ChangeSetExists(ctx context.Context, changeSetID string) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	cs, err := uow.ChangeSetRepository().FindOne(ctx, specification.ByStringID{ID: changeSetID})
	if err != nil {
		return false, fmt.Errorf("lookup change set %s: %w", changeSetID, err)
	}
	if cs != nil {
		return true, nil
	}

	// Corpora ingested without a change set row still count.
	n, err := uow.CorpusChunkRepository().Count(ctx, specification.ByChangeSet{ChangeSetId: changeSetID})
	if err != nil {
		return false, fmt.Errorf("count chunks of %s: %w", changeSetID, err)
	}
	return n > 0, nil
}

func (s *PGStore) Count(ctx context.Context, changeSetID string, kind Kind) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.CorpusChunkRepository().Count(ctx,
		specification.ByChangeSet{ChangeSetId: changeSetID},
		specification.ByCorpus{Corpus: string(kind)},
	)
}

func (s *PGStore) Search(ctx context.Context, changeSetID string, kind Kind, query string, topK int) ([]Fragment, error) {
	embeddingRes, err := s.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.CorpusChunkRepository().SearchSimilarWithScore(ctx, embeddingRes.Embedding.Values, topK, changeSetID, string(kind))
	if err != nil {
		s.logger.Error("CorpusStore", "Vector search failed", map[string]interface{}{
			"change_set_id": changeSetID,
			"corpus":        kind,
			"error":         err.Error(),
		})
		return nil, err
	}

	fragments := make([]Fragment, 0, len(scored))
	for _, sc := range scored {
		fragments = append(fragments, Fragment{
			FilePath:   sc.Chunk.FilePath,
			Language:   sc.Chunk.Language,
			ChunkIndex: sc.Chunk.ChunkIndex,
			Text:       sc.Chunk.Document,
			Score:      sc.Similarity,
		})
	}

	s.logger.Debug("CorpusStore", "Vector search", map[string]interface{}{
		"change_set_id": changeSetID,
		"corpus":        kind,
		"hits":          len(fragments),
	})
	return fragments, nil
}

// LoadPayload returns the stored change set payload, or ok=false when none was ingested.
func (s *PGStore) LoadPayload(ctx context.Context, changeSetID string) (json.RawMessage, bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	payload, err := uow.ChangeSetRepository().FindPayload(ctx, changeSetID)
	if err != nil {
		return nil, false, err
	}
	if payload == nil {
		return nil, false, nil
	}
	return payload.Payload, true, nil
}
