package corpus

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "proj1_pr_data", KindDiff.CollectionName("proj1"))
	assert.Equal(t, "proj1_source_code", KindCode.CollectionName("proj1"))
	assert.Equal(t, "proj1_pr_feature", KindRequirements.CollectionName("proj1"))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Code ")
	require.NoError(t, err)
	assert.Equal(t, KindCode, k)

	_, err = ParseKind("tests")
	assert.Error(t, err)
}

func TestKindForFolder(t *testing.T) {
	for _, k := range AllKinds {
		got, ok := KindForFolder(k.Folder())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := KindForFolder("indexes")
	assert.False(t, ok)
}

func TestCacheKeyNormalizesWhitespaceAndCase(t *testing.T) {
	a := cacheKey("proj1", KindCode, "How does   Login work?")
	b := cacheKey("proj1", KindCode, "how does login work?")
	c := cacheKey("proj1", KindDiff, "how does login work?")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "crv:answer:proj1:code:"))
}

func TestNopCache(t *testing.T) {
	var c AnswerCache = NopCache{}
	c.Set(context.Background(), "p", KindCode, "q", "a")
	_, ok := c.Get(context.Background(), "p", KindCode, "q")
	assert.False(t, ok)
	assert.NoError(t, c.Purge(context.Background(), "p"))
}
