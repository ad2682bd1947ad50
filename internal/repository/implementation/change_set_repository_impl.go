package implementation

import (
	"context"
	"errors"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/internal/mapper"
	"github.com/BearPays/code-review-assistant-back/internal/model"
	"github.com/BearPays/code-review-assistant-back/internal/repository/contract"
	"github.com/BearPays/code-review-assistant-back/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChangeSetRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChangeSetMapper
}

func NewChangeSetRepository(db *gorm.DB) contract.ChangeSetRepository {
	return &ChangeSetRepositoryImpl{
		db:     db,
		mapper: mapper.NewChangeSetMapper(),
	}
}

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChangeSetRepositoryImpl) Upsert(ctx context.Context, changeSet *entity.ChangeSet) error {
	m := r.mapper.ToModel(changeSet)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	*changeSet = *r.mapper.ToEntity(m)
	return nil
}

func (r *ChangeSetRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChangeSet, error) {
	var m model.ChangeSet
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ChangeSetRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChangeSet, error) {
	var models []*model.ChangeSet
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChangeSet, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *ChangeSetRepositoryImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ChangeSet{}).Error
}

func (r *ChangeSetRepositoryImpl) UpsertPayload(ctx context.Context, payload *entity.ChangeSetPayload) error {
	m := r.mapper.PayloadToModel(payload)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "change_set_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(m).Error
}

func (r *ChangeSetRepositoryImpl) FindPayload(ctx context.Context, changeSetId string) (*entity.ChangeSetPayload, error) {
	var m model.ChangeSetPayload
	if err := r.db.WithContext(ctx).Where("change_set_id = ?", changeSetId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.PayloadToEntity(&m), nil
}
