package loop

import (
	"context"
	"testing"

	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		wantTool  string
		wantInput string
		wantOK    bool
	}{
		{
			name:      "json input",
			text:      "Thought: need code\nAction: search_code\nAction Input: {\"query\": \"where is login\"}",
			wantTool:  "search_code",
			wantInput: "where is login",
			wantOK:    true,
		},
		{
			name:      "plain input",
			text:      "Thought: x\nAction: `search_pr`\nAction Input: \"what changed\"",
			wantTool:  "search_pr",
			wantInput: "what changed",
			wantOK:    true,
		},
		{
			name:   "answer only",
			text:   "Thought: done\nAnswer: it is fine",
			wantOK: false,
		},
		{
			name:   "answer before action",
			text:   "Answer: fine\nAction: search_code\nAction Input: x",
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			name, input, ok := parseAction(tc.text)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantTool, name)
			assert.Equal(t, tc.wantInput, input)
		})
	}
}

func TestReActPlannerRun(t *testing.T) {
	replies := []string{
		"Thought: I should look at the code.\nAction: search_code\nAction Input: {\"query\": \"login\"}\nObservation: made up",
		"Thought: I can answer without using any more tools.\nAnswer: Login lives in auth.go.",
	}
	fake := &llmtest.Fake{}
	fake.ChatFunc = func([]llm.Message) (string, error) {
		r := replies[0]
		replies = replies[1:]
		return r, nil
	}

	res, err := Run(context.Background(), Config{Planner: NewReActPlanner(fake), Tools: testTools(t)}, system(), "where is login?")
	require.NoError(t, err)
	assert.Equal(t, "Login lives in auth.go.", res.Answer)
	assert.Equal(t, []string{"search_code"}, res.ToolsUsed)

	second := fake.Histories[1]
	assert.Contains(t, second[0].Content, "You review code.")
	assert.Contains(t, second[0].Content, "Tool Name: search_code")
	assert.NotContains(t, second[len(second)-2].Content, "made up")
	assert.Equal(t, "Observation: code says login", second[len(second)-1].Content)
}

func TestReActPlainReplyIsAnswer(t *testing.T) {
	fake := &llmtest.Fake{ChatFunc: func([]llm.Message) (string, error) { return "Just an answer.", nil }}

	res, err := Run(context.Background(), Config{Planner: NewReActPlanner(fake), Tools: testTools(t)}, nil, "q")
	require.NoError(t, err)
	assert.Equal(t, "Just an answer.", res.Answer)
	assert.Equal(t, llm.RoleSystem, fake.Histories[0][0].Role)
}
