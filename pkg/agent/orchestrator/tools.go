package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/metrics"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/prompt"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/review"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/tool"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/source"
)

var (
	ErrUnknownChangeSet = errors.New("unknown change set")
	ErrNoTools          = errors.New("no knowledge source could be opened")
)

// Deps is everything needed to assemble an orchestrator for any change set.
type Deps struct {
	Store          corpus.Store
	Cache          corpus.AnswerCache
	Provider       llm.LLMProvider // answer composition and next-step rewriting
	Planner        loop.Planner
	Payloads       review.PayloadStore
	Prompts        *prompt.Set
	TopK           int
	MaxSteps       int
	ReviewMaxSteps int
	Logger         logger.ILogger
	Metrics        *metrics.Agent
}

func (d *Deps) defaults() {
	if d.Prompts == nil {
		d.Prompts = prompt.Default()
	}
	if d.Cache == nil {
		d.Cache = corpus.NopCache{}
	}
	if d.TopK <= 0 {
		d.TopK = source.DefaultTopK
	}
	if d.MaxSteps <= 0 {
		d.MaxSteps = loop.DefaultMaxSteps
	}
	if d.ReviewMaxSteps <= 0 {
		d.ReviewMaxSteps = review.DefaultMaxSteps
	}
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
}

type sourceSpec struct {
	name       string
	kind       corpus.Kind
	capability tool.Capability
}

var sources = []sourceSpec{
	{prompt.ToolSearchPR, corpus.KindDiff, tool.CapabilityDiffSearch},
	{prompt.ToolSearchCode, corpus.KindCode, tool.CapabilityCodeSearch},
	{prompt.ToolSearchRequirements, corpus.KindRequirements, tool.CapabilityRequirementsSearch},
}

// BuildTools opens the three knowledge sources of a change set. A source that cannot be
// opened is replaced by a stub that says so; the change set is rejected only when none opens.
func BuildTools(ctx context.Context, deps Deps, changeSetID string) (*tool.Registry, error) {
	deps.defaults()

	exists, err := deps.Store.ChangeSetExists(ctx, changeSetID)
	if err != nil {
		return nil, fmt.Errorf("check change set %s: %w", changeSetID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChangeSet, changeSetID)
	}

	registry := &tool.Registry{}
	failed := 0
	for _, spec := range sources {
		adapter, err := source.New(ctx, spec.name, deps.Store, changeSetID, spec.kind,
			source.DefaultStrategy(spec.kind, deps.Provider),
			source.WithTopK(deps.TopK),
			source.WithCache(deps.Cache),
			source.WithLogger(deps.Logger),
		)
		if err != nil {
			failed++
			deps.Logger.Warn("Orchestrator", "Knowledge source unavailable, using stub", map[string]interface{}{
				"change_set_id": changeSetID,
				"tool":          spec.name,
				"error":         err.Error(),
			})
			adapter = source.NewUnavailable(spec.name, changeSetID, spec.kind)
		}

		if err := registry.Add(tool.Tool{
			Name:        spec.name,
			Description: deps.Prompts.ToolContract(spec.name),
			Capability:  spec.capability,
			Call:        adapter.Retrieve,
		}); err != nil {
			return nil, err
		}
	}

	if failed == len(sources) {
		return nil, fmt.Errorf("%w for change set %s", ErrNoTools, changeSetID)
	}
	return registry, nil
}
