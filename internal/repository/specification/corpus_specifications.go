package specification

import "gorm.io/gorm"

// ByChangeSet scopes corpus rows to one change set.
type ByChangeSet struct {
	ChangeSetId string
}

func (s ByChangeSet) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("change_set_id = ?", s.ChangeSetId)
}

// ByCorpus scopes corpus rows to one corpus kind (diff, code, requirements).
type ByCorpus struct {
	Corpus string
}

func (s ByCorpus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("corpus = ?", s.Corpus)
}

// ByFilePath filters chunks of a single file.
type ByFilePath struct {
	FilePath string
}

func (s ByFilePath) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("file_path = ?", s.FilePath)
}

// ByStringID filters by a string primary key.
type ByStringID struct {
	ID string
}

func (s ByStringID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}
