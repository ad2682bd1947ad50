package implementation

import (
	"context"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/internal/mapper"
	"github.com/BearPays/code-review-assistant-back/internal/model"
	"github.com/BearPays/code-review-assistant-back/internal/repository/contract"
	"github.com/BearPays/code-review-assistant-back/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const bulkInsertBatchSize = 200

type CorpusChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CorpusChunkMapper
}

func NewCorpusChunkRepository(db *gorm.DB) contract.CorpusChunkRepository {
	return &CorpusChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewCorpusChunkMapper(),
	}
}

func (r *CorpusChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.CorpusChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ToModels(chunks)
	if err := r.db.WithContext(ctx).CreateInBatches(models, bulkInsertBatchSize).Error; err != nil {
		return err
	}
	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *CorpusChunkRepositoryImpl) DeleteByCorpus(ctx context.Context, changeSetId, corpus string) error {
	return r.db.WithContext(ctx).
		Where("change_set_id = ? AND corpus = ?", changeSetId, corpus).
		Delete(&model.CorpusChunk{}).Error
}

func (r *CorpusChunkRepositoryImpl) DeleteByChangeSet(ctx context.Context, changeSetId string) error {
	return r.db.WithContext(ctx).Where("change_set_id = ?", changeSetId).Delete(&model.CorpusChunk{}).Error
}

func (r *CorpusChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.CorpusChunk{}).Count(&count).Error
	return count, err
}

func (r *CorpusChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CorpusChunk, error) {
	var models []*model.CorpusChunk
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.CorpusChunk, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *CorpusChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, changeSetId, corpus string) ([]*entity.ScoredCorpusChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity
	type result struct {
		model.CorpusChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("corpus_chunks").
		Select("corpus_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("change_set_id = ? AND corpus = ?", changeSetId, corpus).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredCorpusChunk, len(results))
	for i := range results {
		scored[i] = &entity.ScoredCorpusChunk{
			Chunk:      r.mapper.ToEntity(&results[i].CorpusChunk),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}

func (r *CorpusChunkRepositoryImpl) Stats(ctx context.Context, changeSetId string) ([]entity.CorpusStat, error) {
	var rows []entity.CorpusStat
	query := r.db.WithContext(ctx).
		Model(&model.CorpusChunk{}).
		Select("change_set_id, corpus, COUNT(*) AS chunks, COUNT(DISTINCT file_path) AS files").
		Group("change_set_id, corpus").
		Order("change_set_id, corpus")
	if changeSetId != "" {
		query = query.Where("change_set_id = ?", changeSetId)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
