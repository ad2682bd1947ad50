package source

import (
	"context"
	"fmt"

	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"
)

type empty struct {
	name    string
	kind    corpus.Kind
	message string
}

// NewEmpty is the stand-in for a corpus with no documents. It always answers with a
// fixed explanation instead of failing.
func NewEmpty(name, changeSetID string, kind corpus.Kind) Adapter {
	return &empty{
		name:    name,
		kind:    kind,
		message: fmt.Sprintf("The %s collection (%s) is empty. No data is available for this tool.", name, kind.CollectionName(changeSetID)),
	}
}

// NewUnavailable stands in for a corpus that could not be opened at all.
func NewUnavailable(name, changeSetID string, kind corpus.Kind) Adapter {
	return &empty{
		name:    name,
		kind:    kind,
		message: fmt.Sprintf("The %s collection (%s) is currently unavailable. No data can be retrieved with this tool.", name, kind.CollectionName(changeSetID)),
	}
}

func (e *empty) Name() string      { return e.name }
func (e *empty) Kind() corpus.Kind { return e.kind }

func (e *empty) Retrieve(context.Context, string) (string, error) {
	return e.message, nil
}
