package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/synth"
)

var ErrCorpusUnavailable = errors.New("corpus unavailable")

const DefaultTopK = 5

// Adapter answers natural-language questions from one corpus of one change set.
type Adapter interface {
	Name() string
	Kind() corpus.Kind
	Retrieve(ctx context.Context, query string) (string, error)
}

// DefaultStrategy picks the composition policy for a corpus. The diff corpus is refined
// fragment by fragment so no file's changes get lost; the others are tree-summarized.
func DefaultStrategy(kind corpus.Kind, provider llm.LLMProvider) synth.Synthesizer {
	if kind == corpus.KindDiff {
		return synth.NewRefine(provider)
	}
	return synth.NewTreeSummarize(provider)
}

type Option func(*retriever)

func WithTopK(k int) Option {
	return func(r *retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

func WithCache(c corpus.AnswerCache) Option {
	return func(r *retriever) {
		if c != nil {
			r.cache = c
		}
	}
}

func WithLogger(l logger.ILogger) Option {
	return func(r *retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

type retriever struct {
	name        string
	kind        corpus.Kind
	changeSetID string
	store       corpus.Store
	synthesizer synth.Synthesizer
	cache       corpus.AnswerCache
	topK        int
	logger      logger.ILogger
}

// New opens the corpus of a change set. An empty corpus yields the empty stub; a corpus
// that cannot be reached yields ErrCorpusUnavailable.
func New(ctx context.Context, name string, store corpus.Store, changeSetID string, kind corpus.Kind, synthesizer synth.Synthesizer, opts ...Option) (Adapter, error) {
	n, err := store.Count(ctx, changeSetID, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrCorpusUnavailable, kind.CollectionName(changeSetID), kind, err)
	}
	if n == 0 {
		return NewEmpty(name, changeSetID, kind), nil
	}

	r := &retriever{
		name:        name,
		kind:        kind,
		changeSetID: changeSetID,
		store:       store,
		synthesizer: synthesizer,
		cache:       corpus.NopCache{},
		topK:        DefaultTopK,
		logger:      logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *retriever) Name() string      { return r.name }
func (r *retriever) Kind() corpus.Kind { return r.kind }

func (r *retriever) Retrieve(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}

	if cached, ok := r.cache.Get(ctx, r.changeSetID, r.kind, query); ok {
		r.logger.Debug("SourceAdapter", "Answer cache hit", map[string]interface{}{
			"tool":  r.name,
			"query": query,
		})
		return cached, nil
	}

	fragments, err := r.store.Search(ctx, r.changeSetID, r.kind, query, r.topK)
	if err != nil {
		return "", fmt.Errorf("search %s: %w", r.kind.CollectionName(r.changeSetID), err)
	}
	if len(fragments) == 0 {
		return NoResults(r.kind, r.changeSetID), nil
	}

	answer, err := r.synthesizer.Synthesize(ctx, query, fragments)
	if err != nil {
		return "", fmt.Errorf("compose answer from %s: %w", r.kind.CollectionName(r.changeSetID), err)
	}
	if strings.TrimSpace(answer) == "" {
		return NoResults(r.kind, r.changeSetID), nil
	}

	r.logger.Info("SourceAdapter", "Retrieved answer", map[string]interface{}{
		"tool":      r.name,
		"fragments": len(fragments),
		"query":     query,
	})

	r.cache.Set(ctx, r.changeSetID, r.kind, query, answer)
	return answer, nil
}

// NoResults is returned when a search over a populated corpus matches nothing.
func NoResults(kind corpus.Kind, changeSetID string) string {
	return fmt.Sprintf("No relevant data found in %s for this query.", kind.CollectionName(changeSetID))
}
