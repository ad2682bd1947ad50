package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/BearPays/code-review-assistant-back/pkg/agent/tool"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"

	"github.com/google/uuid"
)

// ReActPlanner drives models without function calling through a Thought / Action /
// Action Input / Answer text protocol.
type ReActPlanner struct {
	provider llm.LLMProvider
	opts     []llm.Option
}

func NewReActPlanner(provider llm.LLMProvider, opts ...llm.Option) *ReActPlanner {
	return &ReActPlanner{provider: provider, opts: opts}
}

var (
	reAction      = regexp.MustCompile(`(?m)^\s*Action:\s*(.+?)\s*$`)
	reActionInput = regexp.MustCompile(`(?s)Action Input:\s*(.*)`)
	reAnswer      = regexp.MustCompile(`(?s)Answer:\s*(.*)`)
)

func (p *ReActPlanner) Decide(ctx context.Context, transcript []llm.Message, tools *tool.Registry) (Decision, error) {
	raw, err := p.provider.Chat(ctx, withInstructions(transcript, reactInstructions(tools)), p.opts...)
	if err != nil {
		return Decision{}, err
	}

	text := cutHallucinatedObservation(raw)
	d := Decision{Message: llm.Message{Role: llm.RoleAssistant, Content: text}}

	name, input, ok := parseAction(text)
	if ok {
		d.Calls = []llm.ToolCall{{
			ID:        "call_" + uuid.NewString()[:8],
			Name:      name,
			Arguments: map[string]any{tool.InputParam: input},
		}}
		return d, nil
	}

	if m := reAnswer.FindStringSubmatch(text); m != nil {
		d.Answer = strings.TrimSpace(m[1])
	} else {
		// No protocol markers: treat the whole reply as the answer.
		d.Answer = strings.TrimSpace(text)
	}
	return d, nil
}

func (p *ReActPlanner) Announce(calls []llm.ToolCall) llm.Message {
	var b strings.Builder
	for _, c := range calls {
		fmt.Fprintf(&b, "Thought: I need to use a tool to help me answer the question.\nAction: %s\nAction Input: %s\n", c.Name, tool.Input(c.Arguments))
	}
	return llm.Message{Role: llm.RoleAssistant, Content: strings.TrimSpace(b.String())}
}

func (p *ReActPlanner) Observe(_ llm.ToolCall, output string) llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: "Observation: " + output}
}

func (p *ReActPlanner) Conclude(ctx context.Context, transcript []llm.Message) (string, error) {
	raw, err := p.provider.Chat(ctx, transcript, p.opts...)
	if err != nil {
		return "", err
	}
	if m := reAnswer.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return strings.TrimSpace(raw), nil
}

// parseAction finds an Action that comes before any Answer marker.
func parseAction(text string) (string, string, bool) {
	loc := reAction.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", "", false
	}
	if a := strings.Index(text, "Answer:"); a >= 0 && a < loc[0] {
		return "", "", false
	}

	name := strings.Trim(strings.TrimSpace(text[loc[2]:loc[3]]), "`\"'")
	input := ""
	if m := reActionInput.FindStringSubmatch(text[loc[1]:]); m != nil {
		input = parseActionInput(m[1])
	}
	return name, input, true
}

// parseActionInput accepts either a JSON object like {"query": "..."} or plain text.
func parseActionInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimSuffix(s, "```"), "```json")
	s = strings.TrimSpace(s)

	var obj map[string]any
	if strings.HasPrefix(s, "{") && json.Unmarshal([]byte(s), &obj) == nil {
		return tool.Input(obj)
	}
	return strings.Trim(s, "\"'")
}

func cutHallucinatedObservation(text string) string {
	if i := strings.Index(text, "\nObservation:"); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}

func withInstructions(transcript []llm.Message, instructions string) []llm.Message {
	out := make([]llm.Message, 0, len(transcript)+1)
	if len(transcript) > 0 && transcript[0].Role == llm.RoleSystem {
		sys := transcript[0]
		sys.Content = sys.Content + "\n\n" + instructions
		out = append(out, sys)
		return append(out, transcript[1:]...)
	}
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: instructions})
	return append(out, transcript...)
}

func reactInstructions(tools *tool.Registry) string {
	var b strings.Builder
	b.WriteString("## Tools\n\n")
	b.WriteString("You have access to the following tools:\n")
	for _, t := range tools.Tools() {
		fmt.Fprintf(&b, "> Tool Name: %s\nTool Description: %s\n\n", t.Name, t.Description)
	}
	b.WriteString("## Output Format\n\n")
	b.WriteString("To use a tool, reply with exactly:\n\n")
	b.WriteString("Thought: <what you need and why>\n")
	fmt.Fprintf(&b, "Action: <one of %s>\n", strings.Join(tools.Names(), ", "))
	b.WriteString("Action Input: {\"query\": \"<natural language question for the tool>\"}\n\n")
	b.WriteString("You will then receive a message starting with \"Observation:\". Repeat until you can answer, then reply with:\n\n")
	b.WriteString("Thought: I can answer without using any more tools.\n")
	b.WriteString("Answer: <your answer>\n")
	return b.String()
}
