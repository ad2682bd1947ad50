package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"

	"golang.org/x/sync/errgroup"
)

const (
	defaultGroupChars  = 6000
	defaultConcurrency = 4
)

// TreeSummarize packs fragments into groups under a character budget, answers each group
// concurrently and repeats over the partial answers until a single one remains.
type TreeSummarize struct {
	provider    llm.LLMProvider
	groupChars  int
	concurrency int
}

type TreeOption func(*TreeSummarize)

func WithGroupChars(n int) TreeOption {
	return func(t *TreeSummarize) { t.groupChars = n }
}

func WithConcurrency(n int) TreeOption {
	return func(t *TreeSummarize) { t.concurrency = n }
}

func NewTreeSummarize(provider llm.LLMProvider, opts ...TreeOption) *TreeSummarize {
	t := &TreeSummarize{
		provider:    provider,
		groupChars:  defaultGroupChars,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TreeSummarize) Synthesize(ctx context.Context, query string, fragments []corpus.Fragment) (string, error) {
	if len(fragments) == 0 {
		return "", errors.New("tree_summarize: no fragments")
	}

	budget := t.groupChars
	level := fragments
	for depth := 0; ; depth++ {
		groups := pack(level, budget)
		answers, err := t.summarizeGroups(ctx, query, groups)
		if err != nil {
			return "", fmt.Errorf("tree_summarize level %d: %w", depth, err)
		}
		if len(answers) == 1 {
			return answers[0], nil
		}

		next := make([]corpus.Fragment, len(answers))
		for i, a := range answers {
			next[i] = corpus.Fragment{Text: a}
		}
		// Guard against a budget too small to ever merge two answers.
		if len(pack(next, budget)) >= len(groups) {
			budget = 0
		}
		level = next
	}
}

// pack groups consecutive fragments while their combined text stays under budget.
// A non-positive budget puts everything in one group.
func pack(fragments []corpus.Fragment, budget int) [][]corpus.Fragment {
	if budget <= 0 {
		return [][]corpus.Fragment{fragments}
	}

	var groups [][]corpus.Fragment
	var current []corpus.Fragment
	size := 0
	for _, f := range fragments {
		if len(current) > 0 && size+len(f.Text) > budget {
			groups = append(groups, current)
			current = nil
			size = 0
		}
		current = append(current, f)
		size += len(f.Text)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func (t *TreeSummarize) summarizeGroups(ctx context.Context, query string, groups [][]corpus.Fragment) ([]string, error) {
	answers := make([]string, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, group := range groups {
		g.Go(func() error {
			out, err := generate(gctx, t.provider, answerPrompt(query, group))
			if err != nil {
				return err
			}
			answers[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := answers[:0]
	for _, a := range answers {
		if strings.TrimSpace(a) != "" {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		return []string{notInContext}, nil
	}
	return kept, nil
}
