package unitofwork

import (
	"context"

	"github.com/BearPays/code-review-assistant-back/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChangeSetRepository() contract.ChangeSetRepository
	CorpusChunkRepository() contract.CorpusChunkRepository
}
