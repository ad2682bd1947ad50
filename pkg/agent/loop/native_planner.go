package loop

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearPays/code-review-assistant-back/pkg/agent/tool"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"
)

// NativePlanner routes through the backend's own function calling.
type NativePlanner struct {
	caller llm.ToolCaller
	opts   []llm.Option
}

func NewNativePlanner(caller llm.ToolCaller, opts ...llm.Option) *NativePlanner {
	return &NativePlanner{caller: caller, opts: opts}
}

func (p *NativePlanner) Decide(ctx context.Context, transcript []llm.Message, tools *tool.Registry) (Decision, error) {
	completion, err := p.caller.ChatWithTools(ctx, transcript, tools.Definitions(), p.opts...)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		Message: llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		},
		Calls:  completion.ToolCalls,
		Answer: completion.Content,
		Usage:  completion.Usage,
	}, nil
}

func (p *NativePlanner) Announce(calls []llm.ToolCall) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
}

func (p *NativePlanner) Observe(call llm.ToolCall, output string) llm.Message {
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    output,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

// Conclude flattens tool traffic to plain text, since some backends reject tool
// messages in a request that declares no tools.
func (p *NativePlanner) Conclude(ctx context.Context, transcript []llm.Message) (string, error) {
	return p.caller.Chat(ctx, FlattenToolTurns(transcript), p.opts...)
}

// FlattenToolTurns rewrites tool calls and tool results as ordinary assistant/user text.
func FlattenToolTurns(transcript []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(transcript))
	for _, m := range transcript {
		switch {
		case m.Role == llm.RoleTool:
			out = append(out, llm.Message{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf("Observation from %s:\n%s", m.Name, m.Content),
			})
		case m.Role == llm.RoleAssistant && len(m.ToolCalls) > 0:
			var b strings.Builder
			if m.Content != "" {
				b.WriteString(m.Content)
				b.WriteString("\n")
			}
			for _, c := range m.ToolCalls {
				fmt.Fprintf(&b, "Called %s with %q\n", c.Name, tool.Input(c.Arguments))
			}
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: strings.TrimSpace(b.String())})
		default:
			out = append(out, m)
		}
	}
	return out
}
