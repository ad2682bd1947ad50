// Package llmtest provides scripted llm providers for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/BearPays/code-review-assistant-back/pkg/llm"
)

var ErrScriptExhausted = errors.New("llmtest: no scripted reply left")

// Fake is an llm.ToolCaller driven by callbacks or a queue of completions.
// Every call is recorded.
type Fake struct {
	mu sync.Mutex

	GenerateFunc func(prompt string) (string, error)
	ChatFunc     func(history []llm.Message) (string, error)

	// Completions is consumed in order by ChatWithTools when ToolsFunc is nil.
	Completions []*llm.Completion
	ToolsFunc   func(history []llm.Message, tools []llm.ToolDefinition) (*llm.Completion, error)

	Prompts   []string
	Histories [][]llm.Message
	ToolSets  [][]llm.ToolDefinition
}

var _ llm.ToolCaller = (*Fake)(nil)

func (f *Fake) Generate(ctx context.Context, prompt string, _ ...llm.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	fn := f.GenerateFunc
	f.mu.Unlock()

	if fn == nil {
		return "", nil
	}
	return fn(prompt)
}

func (f *Fake) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.Histories = append(f.Histories, append([]llm.Message(nil), history...))
	fn := f.ChatFunc
	f.mu.Unlock()

	if fn == nil {
		return "", nil
	}
	return fn(history)
}

func (f *Fake) ChatWithTools(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, _ ...llm.Option) (*llm.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Histories = append(f.Histories, append([]llm.Message(nil), history...))
	f.ToolSets = append(f.ToolSets, append([]llm.ToolDefinition(nil), tools...))

	if f.ToolsFunc != nil {
		return f.ToolsFunc(history, tools)
	}
	if len(f.Completions) == 0 {
		return nil, ErrScriptExhausted
	}
	next := f.Completions[0]
	f.Completions = f.Completions[1:]
	return next, nil
}

func (f *Fake) PromptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

func (f *Fake) ToolCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ToolSets)
}

// Text is a final completion without tool calls.
func Text(content string) *llm.Completion {
	return &llm.Completion{Content: content}
}

// Call is a completion requesting one tool with a single "query" argument.
func Call(id, name, query string) *llm.Completion {
	return &llm.Completion{ToolCalls: []llm.ToolCall{{
		ID:        id,
		Name:      name,
		Arguments: map[string]any{"query": query},
	}}}
}
