package tool

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/BearPays/code-review-assistant-back/pkg/llm"
)

var ErrDuplicateTool = errors.New("duplicate tool name")

type Capability string

const (
	CapabilityDiffSearch         Capability = "diff_search"
	CapabilityCodeSearch         Capability = "code_search"
	CapabilityRequirementsSearch Capability = "requirements_search"
	CapabilityReview             Capability = "review"
)

// InputParam is the single argument every tool takes.
const InputParam = "query"

// Tool is a named capability the agent can invoke with a natural-language input.
type Tool struct {
	Name        string
	Description string
	Capability  Capability
	// Verbatim tools end the turn: their successful output is the final answer, unmodified.
	Verbatim bool
	Call     func(ctx context.Context, input string) (string, error)
}

// Definition describes the tool to a function calling backend.
func (t Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters: []llm.Parameter{{
			Name:        InputParam,
			Type:        "string",
			Description: "Natural-language question or instruction for the tool",
			Required:    true,
		}},
	}
}

// Registry is an ordered tool set with unique names.
type Registry struct {
	tools []Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{}
	for _, t := range tools {
		if err := r.Add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Add(t Tool) error {
	if t.Name == "" || t.Call == nil {
		return fmt.Errorf("tool %q is missing a name or callable", t.Name)
	}
	if _, ok := r.Get(t.Name); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools = append(r.tools, t)
	return nil
}

// Remove reports whether a tool with that name was present.
func (r *Registry) Remove(name string) bool {
	i := slices.IndexFunc(r.tools, func(t Tool) bool { return t.Name == name })
	if i < 0 {
		return false
	}
	r.tools = slices.Delete(r.tools, i, i+1)
	return true
}

func (r *Registry) Get(name string) (Tool, bool) {
	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

func (r *Registry) Tools() []Tool {
	return slices.Clone(r.tools)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

func (r *Registry) Len() int { return len(r.tools) }

func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.Definition()
	}
	return defs
}

// Only returns a new registry holding just the tools with the given capabilities.
func (r *Registry) Only(caps ...Capability) *Registry {
	out := &Registry{}
	for _, t := range r.tools {
		if slices.Contains(caps, t.Capability) {
			out.tools = append(out.tools, t)
		}
	}
	return out
}

// Without returns a new registry minus the tools with the given capabilities.
func (r *Registry) Without(caps ...Capability) *Registry {
	out := &Registry{}
	for _, t := range r.tools {
		if !slices.Contains(caps, t.Capability) {
			out.tools = append(out.tools, t)
		}
	}
	return out
}

// Input extracts the tool input from model supplied arguments. Backends that ignore the
// schema sometimes send a different key, so a lone string argument is accepted too.
func Input(args map[string]any) string {
	if v, ok := args[InputParam].(string); ok {
		return v
	}
	if len(args) == 1 {
		for _, v := range args {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
