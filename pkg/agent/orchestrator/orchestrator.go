package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/prompt"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/review"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/tool"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Orchestrator answers turns about one change set in one mode.
type Orchestrator struct {
	mu sync.RWMutex

	changeSetID string
	mode        Mode
	search      *tool.Registry
	reviewTool  tool.Tool
	policy      *ModePolicy
	deps        Deps
}

func New(ctx context.Context, deps Deps, changeSetID string, mode Mode) (*Orchestrator, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	deps.defaults()

	search, err := BuildTools(ctx, deps, changeSetID)
	if err != nil {
		return nil, err
	}

	generator := review.NewGenerator(review.Config{
		ChangeSetID: changeSetID,
		Payloads:    deps.Payloads,
		Planner:     deps.Planner,
		Tools:       search,
		Prompts:     deps.Prompts,
		MaxSteps:    deps.ReviewMaxSteps,
		Logger:      deps.Logger,
		Metrics:     deps.Metrics,
	})

	o := &Orchestrator{
		changeSetID: changeSetID,
		mode:        mode,
		search:      search,
		reviewTool:  generator.Tool(deps.Prompts.ToolContract(prompt.ToolStartReview)),
		policy:      NewModePolicy(deps.Provider, deps.Prompts, deps.Logger),
		deps:        deps,
	}

	deps.Logger.Info("Orchestrator", "Orchestrator ready", map[string]interface{}{
		"change_set_id": changeSetID,
		"mode":          mode,
		"tools":         o.ToolNames(),
	})
	return o, nil
}

func (o *Orchestrator) ChangeSetID() string { return o.changeSetID }

func (o *Orchestrator) Mode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

// SetMode switches behaviour in place. The review tool follows the mode, so switching
// twice to the same mode changes nothing.
func (o *Orchestrator) SetMode(mode Mode) error {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mode = mode
	return nil
}

// Tools is the registry offered in the current mode.
func (o *Orchestrator) Tools() *tool.Registry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.toolsFor(o.mode)
}

func (o *Orchestrator) toolsFor(mode Mode) *tool.Registry {
	r := o.search.Without(tool.CapabilityReview)
	if mode == ModeCoReviewer {
		// Names are unique by construction.
		_ = r.Add(o.reviewTool)
	}
	return r
}

func (o *Orchestrator) ToolNames() []string {
	return o.Tools().Names()
}

type TurnResult struct {
	Answer         string
	Mode           Mode
	Steps          int
	BudgetExceeded bool
	ToolsUsed      []string
	// Messages are the transcript entries this turn adds: the user query and the answer.
	Messages []llm.Message
	Duration time.Duration
}

type TurnOption func(*loop.Config)

func WithObserver(obs loop.Observer) TurnOption {
	return func(c *loop.Config) { c.Observer = obs }
}

// Turn answers one user query given the prior transcript (user/assistant messages only).
func (o *Orchestrator) Turn(ctx context.Context, history []llm.Message, query string, opts ...TurnOption) (TurnResult, error) {
	start := time.Now()

	o.mu.RLock()
	mode := o.mode
	tools := o.toolsFor(mode)
	o.mu.RUnlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.turn")
	span.SetAttributes(attribute.String("change_set_id", o.changeSetID), attribute.String("mode", string(mode)))
	defer span.End()

	cfg := loop.Config{
		Name:     "orchestrator",
		Planner:  o.deps.Planner,
		Tools:    tools,
		MaxSteps: o.deps.MaxSteps,
		Logger:   o.deps.Logger,
		Metrics:  o.deps.Metrics,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if mode == ModeCoReviewer && IsStartReview(query) {
		cfg.SeedCalls = []llm.ToolCall{{
			ID:        "call_" + uuid.NewString()[:8],
			Name:      prompt.ToolStartReview,
			Arguments: map[string]any{tool.InputParam: query},
		}}
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: o.deps.Prompts.System(string(mode))})
	messages = append(messages, history...)

	res, err := loop.Run(ctx, cfg, messages, query)
	if err != nil {
		span.RecordError(err)
		return TurnResult{}, err
	}

	answer := o.policy.Finalize(ctx, mode, query, res)
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	o.deps.Logger.Info("Orchestrator", "Turn completed", map[string]interface{}{
		"change_set_id":   o.changeSetID,
		"mode":            mode,
		"steps":           res.Steps,
		"tools_used":      res.ToolsUsed,
		"budget_exceeded": res.BudgetExceeded,
		"verbatim":        res.Verbatim,
	})

	return TurnResult{
		Answer:         answer,
		Mode:           mode,
		Steps:          res.Steps,
		BudgetExceeded: res.BudgetExceeded,
		ToolsUsed:      res.ToolsUsed,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: query},
			{Role: llm.RoleAssistant, Content: answer},
		},
		Duration: time.Since(start),
	}, nil
}

const tracerName = "github.com/BearPays/code-review-assistant-back/pkg/agent/orchestrator"
