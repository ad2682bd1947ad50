package source

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/BearPays/code-review-assistant-back/pkg/llm/llmtest"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/synth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	counts    map[corpus.Kind]int64
	countErr  error
	fragments []corpus.Fragment
	searches  int
}

func (s *fakeStore) ChangeSetExists(context.Context, string) (bool, error) { return true, nil }

func (s *fakeStore) Count(_ context.Context, _ string, kind corpus.Kind) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.counts[kind], nil
}

func (s *fakeStore) Search(context.Context, string, corpus.Kind, string, int) ([]corpus.Fragment, error) {
	s.searches++
	return s.fragments, nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *mapCache) Get(_ context.Context, cs string, k corpus.Kind, q string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[cs+string(k)+q]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, cs string, k corpus.Kind, q, a string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[cs+string(k)+q] = a
}

func (c *mapCache) Purge(context.Context, string) error { return nil }

func TestNewEmptyCorpusReturnsStub(t *testing.T) {
	store := &fakeStore{counts: map[corpus.Kind]int64{}}

	a, err := New(context.Background(), "search_requirements", store, "proj1", corpus.KindRequirements, nil)
	require.NoError(t, err)

	out, err := a.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "The search_requirements collection (proj1_pr_feature) is empty. No data is available for this tool.", out)
	assert.Zero(t, store.searches)
}

func TestNewUnreachableCorpus(t *testing.T) {
	store := &fakeStore{countErr: errors.New("connection refused")}

	_, err := New(context.Background(), "search_code", store, "proj1", corpus.KindCode, nil)
	assert.ErrorIs(t, err, ErrCorpusUnavailable)
	assert.Contains(t, err.Error(), "proj1_source_code")
}

func TestRetrieveNoFragments(t *testing.T) {
	store := &fakeStore{counts: map[corpus.Kind]int64{corpus.KindCode: 3}}
	fake := &llmtest.Fake{}

	a, err := New(context.Background(), "search_code", store, "proj1", corpus.KindCode, synth.NewTreeSummarize(fake))
	require.NoError(t, err)

	out, err := a.Retrieve(context.Background(), "where is auth?")
	require.NoError(t, err)
	assert.Equal(t, NoResults(corpus.KindCode, "proj1"), out)
	assert.Zero(t, fake.PromptCount())
}

func TestRetrieveComposesAndCaches(t *testing.T) {
	store := &fakeStore{
		counts:    map[corpus.Kind]int64{corpus.KindDiff: 2},
		fragments: []corpus.Fragment{{FilePath: "a.go", Text: "+func A()"}},
	}
	fake := &llmtest.Fake{GenerateFunc: func(string) (string, error) { return "A was added", nil }}
	cache := &mapCache{m: map[string]string{}}

	a, err := New(context.Background(), "search_pr", store, "proj1", corpus.KindDiff,
		DefaultStrategy(corpus.KindDiff, fake), WithCache(cache), WithTopK(3))
	require.NoError(t, err)
	assert.Equal(t, "search_pr", a.Name())
	assert.Equal(t, corpus.KindDiff, a.Kind())

	for i := 0; i < 2; i++ {
		out, err := a.Retrieve(context.Background(), "what was added?")
		require.NoError(t, err)
		assert.Equal(t, "A was added", out)
	}
	assert.Equal(t, 1, store.searches)
	assert.Equal(t, 1, fake.PromptCount())
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	store := &fakeStore{counts: map[corpus.Kind]int64{corpus.KindCode: 1}}
	a, err := New(context.Background(), "search_code", store, "proj1", corpus.KindCode, synth.NewRefine(&llmtest.Fake{}))
	require.NoError(t, err)

	_, err = a.Retrieve(context.Background(), "   ")
	assert.Error(t, err)
}

func TestDefaultStrategy(t *testing.T) {
	fake := &llmtest.Fake{}
	assert.IsType(t, &synth.Refine{}, DefaultStrategy(corpus.KindDiff, fake))
	assert.IsType(t, &synth.TreeSummarize{}, DefaultStrategy(corpus.KindCode, fake))
	assert.IsType(t, &synth.TreeSummarize{}, DefaultStrategy(corpus.KindRequirements, fake))
}

func TestUnavailableStub(t *testing.T) {
	a := NewUnavailable("search_code", "proj1", corpus.KindCode)
	out, err := a.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Contains(t, out, "proj1_source_code")
	assert.Contains(t, out, "unavailable")
}
