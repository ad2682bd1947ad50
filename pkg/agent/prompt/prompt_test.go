package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolContractsAreComplete(t *testing.T) {
	set := Default()
	for _, name := range []string{ToolSearchPR, ToolSearchCode, ToolSearchRequirements, ToolStartReview} {
		contract := set.ToolContract(name)
		assert.Contains(t, contract, "Answers:", name)
		assert.Contains(t, contract, "Does not answer:", name)
		assert.Contains(t, contract, "Example query:", name)
	}
}

func TestModePrompts(t *testing.T) {
	set := Default()
	assert.Contains(t, set.System(ModeCoReviewer), "start_review")
	assert.Contains(t, set.System(ModeCoReviewer), "**Suggested next steps**")
	assert.NotContains(t, set.System(ModeInteractiveAssistant), "start_review")
	assert.Empty(t, set.System("unknown"))
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
modes:
  interactive_assistant: "Be brief."
tools:
  search_code: "Custom contract"
`), 0o600))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", set.System(ModeInteractiveAssistant))
	assert.Equal(t, "Custom contract", set.ToolContract(ToolSearchCode))
	assert.Equal(t, Default().System(ModeCoReviewer), set.System(ModeCoReviewer))
	assert.Equal(t, Default().Review, set.Review)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modes: [not, a, map]"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)

	set, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), set)
}
