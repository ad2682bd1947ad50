package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetryWithBackoffRecovers(t *testing.T) {
	calls := 0
	got, err := RetryWithBackoff(context.Background(), fastRetry(), "op", IsTransient, func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("status 429: rate limit")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), fastRetry(), "op", IsTransient, func() (int, error) {
		calls++
		return 0, errors.New("invalid api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffGivesUp(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), fastRetry(), "op", IsTransient, func() (int, error) {
		calls++
		return 0, errors.New("503 overloaded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op failed after 2 retries")
	assert.Equal(t, 3, calls)
}

func TestIsTransientIgnoresContextErrors(t *testing.T) {
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}

func TestToolDefinitionSchema(t *testing.T) {
	def := ToolDefinition{
		Name: "search_code",
		Parameters: []Parameter{
			{Name: "input", Description: "question", Required: true},
			{Name: "limit", Type: "integer"},
		},
	}
	schema := def.Schema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"input"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "string", props["input"].(map[string]any)["type"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
}
