package corpus

import (
	"context"
	"fmt"
	"strings"
)

// Kind names one of the three knowledge corpora ingested per change set.
type Kind string

const (
	KindDiff         Kind = "diff"
	KindCode         Kind = "code"
	KindRequirements Kind = "requirements"
)

var AllKinds = []Kind{KindDiff, KindCode, KindRequirements}

// collectionSuffix keeps the collection names used by the ingestion scripts.
var collectionSuffix = map[Kind]string{
	KindDiff:         "pr_data",
	KindCode:         "source_code",
	KindRequirements: "pr_feature",
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := collectionSuffix[k]; !ok {
		return "", fmt.Errorf("unknown corpus %q (want diff, code or requirements)", s)
	}
	return k, nil
}

// CollectionName is the human facing name of a change set's corpus, e.g. "proj1_source_code".
func (k Kind) CollectionName(changeSetID string) string {
	return changeSetID + "_" + collectionSuffix[k]
}

// Folder is the sub-folder of a change set's data directory the corpus is ingested from.
func (k Kind) Folder() string {
	return collectionSuffix[k]
}

func KindForFolder(name string) (Kind, bool) {
	for _, k := range AllKinds {
		if collectionSuffix[k] == name {
			return k, true
		}
	}
	return "", false
}

// Fragment is one retrieved chunk with its similarity score.
type Fragment struct {
	FilePath   string
	Language   string
	ChunkIndex int
	Text       string
	Score      float64
}

// Store is the read side of the corpus store used at query time.
type Store interface {
	ChangeSetExists(ctx context.Context, changeSetID string) (bool, error)
	Count(ctx context.Context, changeSetID string, kind Kind) (int64, error)
	Search(ctx context.Context, changeSetID string, kind Kind, query string, topK int) ([]Fragment, error)
}
