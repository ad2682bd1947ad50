package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/metrics"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/tool"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/BearPays/code-review-assistant-back/pkg/agent/loop"

type State string

const (
	StateStart          State = "start"
	StateReasoning      State = "reasoning"
	StateToolInvocation State = "tool_invocation"
	StateObserving      State = "observing"
	StateFinal          State = "final"
)

// Decision is one planner step: tool calls to run, or a final answer when Calls is empty.
type Decision struct {
	Message llm.Message // appended to the working transcript
	Calls   []llm.ToolCall
	Answer  string
	Usage   llm.Usage
}

// Planner turns the working transcript into the next decision. It owns how tool calls
// and observations are represented to its backend.
type Planner interface {
	Decide(ctx context.Context, transcript []llm.Message, tools *tool.Registry) (Decision, error)
	// Announce renders calls the loop issues on the model's behalf (seed calls).
	Announce(calls []llm.ToolCall) llm.Message
	Observe(call llm.ToolCall, output string) llm.Message
	// Conclude asks for a final answer with no tools available.
	Conclude(ctx context.Context, transcript []llm.Message) (string, error)
}

type EventType string

const (
	EventToolCall       EventType = "tool_call"
	EventObservation    EventType = "observation"
	EventBudgetExceeded EventType = "budget_exceeded"
	EventFinal          EventType = "final"
)

type Event struct {
	Type    EventType `json:"type"`
	Step    int       `json:"step"`
	Tool    string    `json:"tool,omitempty"`
	Input   string    `json:"input,omitempty"`
	Content string    `json:"content,omitempty"`
	Failed  bool      `json:"failed,omitempty"`
}

// Observer receives loop events synchronously; it must not block.
type Observer func(Event)

type Config struct {
	Name      string
	Planner   Planner
	Tools     *tool.Registry
	MaxSteps  int
	SeedCalls []llm.ToolCall
	Observer  Observer
	Logger    logger.ILogger
	Metrics   *metrics.Agent
}

type Result struct {
	Answer         string
	Steps          int
	BudgetExceeded bool
	// Verbatim is set when Answer is the untouched output of a verbatim tool.
	Verbatim  bool
	ToolsUsed []string
	Usage     llm.Usage
}

const concludePrompt = "You have used all available reasoning steps. Using only the observations above, " +
	"give your best final answer now. State clearly what you could not verify. Do not call any tools."

const DefaultMaxSteps = 10

// Run drives one bounded reasoning loop over history + query. Tool failures and unknown
// tools are fed back as observations; only planner failures and cancellation are errors.
func Run(ctx context.Context, cfg Config, history []llm.Message, query string) (Result, error) {
	if cfg.Planner == nil {
		return Result{}, errors.New("loop: planner is required")
	}
	if cfg.Tools == nil {
		cfg.Tools = &tool.Registry{}
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	if cfg.Name == "" {
		cfg.Name = "agent"
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "loop."+cfg.Name)
	defer span.End()

	r := &run{cfg: cfg, state: StateStart}
	r.transcript = append(append(make([]llm.Message, 0, len(history)+8), history...), llm.Message{Role: llm.RoleUser, Content: query})

	res, err := r.drive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("loop.steps", res.Steps),
		attribute.Bool("loop.budget_exceeded", res.BudgetExceeded),
		attribute.Bool("loop.verbatim", res.Verbatim),
	)
	cfg.Metrics.RecordTurn(ctx, cfg.Name, res.Steps, res.BudgetExceeded)
	r.emit(Event{Type: EventFinal, Step: res.Steps, Content: res.Answer})
	return res, nil
}

type run struct {
	cfg             Config
	state           State
	transcript      []llm.Message
	result          Result
	lastObservation string
}

func (r *run) transition(to State, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["loop"] = r.cfg.Name
	details["from"] = r.state
	details["to"] = to
	details["step"] = r.result.Steps
	r.cfg.Logger.Debug("AgentLoop", "State transition", details)
	r.state = to
}

func (r *run) emit(e Event) {
	if r.cfg.Observer != nil {
		r.cfg.Observer(e)
	}
}

func (r *run) drive(ctx context.Context) (Result, error) {
	if len(r.cfg.SeedCalls) > 0 {
		r.transcript = append(r.transcript, r.cfg.Planner.Announce(r.cfg.SeedCalls))
		done, err := r.invokeAll(ctx, r.cfg.SeedCalls)
		if err != nil || done {
			return r.result, err
		}
	}

	for r.result.Steps < r.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		r.transition(StateReasoning, nil)
		decision, err := r.cfg.Planner.Decide(ctx, r.transcript, r.cfg.Tools)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			return Result{}, fmt.Errorf("%s planner step %d: %w", r.cfg.Name, r.result.Steps+1, err)
		}
		r.result.Steps++
		r.result.Usage.PromptTokens += decision.Usage.PromptTokens
		r.result.Usage.CompletionTokens += decision.Usage.CompletionTokens
		r.cfg.Metrics.RecordTokens(ctx, decision.Usage.PromptTokens, decision.Usage.CompletionTokens)
		r.transcript = append(r.transcript, decision.Message)

		if len(decision.Calls) == 0 {
			answer := strings.TrimSpace(decision.Answer)
			if answer == "" {
				r.transcript = append(r.transcript, llm.Message{
					Role:    llm.RoleUser,
					Content: "Your last reply was empty. Either call a tool or give the final answer.",
				})
				continue
			}
			r.transition(StateFinal, nil)
			r.result.Answer = answer
			return r.result, nil
		}

		done, err := r.invokeAll(ctx, decision.Calls)
		if err != nil || done {
			return r.result, err
		}
	}

	return r.conclude(ctx)
}

// invokeAll runs calls in order. done is true when a verbatim tool produced the answer.
func (r *run) invokeAll(ctx context.Context, calls []llm.ToolCall) (bool, error) {
	for _, call := range calls {
		r.transition(StateToolInvocation, map[string]interface{}{"tool": call.Name})
		output, verbatim, err := r.invoke(ctx, call)
		if err != nil {
			return false, err
		}

		r.transition(StateObserving, nil)
		if verbatim {
			r.transition(StateFinal, map[string]interface{}{"verbatim": true})
			r.result.Answer = output
			r.result.Verbatim = true
			return true, nil
		}
		r.lastObservation = output
		r.transcript = append(r.transcript, r.cfg.Planner.Observe(call, output))
	}
	return false, nil
}

// invoke returns the observation for one call. Only cancellation is returned as an error.
func (r *run) invoke(ctx context.Context, call llm.ToolCall) (string, bool, error) {
	input := tool.Input(call.Arguments)
	r.result.ToolsUsed = append(r.result.ToolsUsed, call.Name)
	r.emit(Event{Type: EventToolCall, Step: r.result.Steps, Tool: call.Name, Input: input})

	t, ok := r.cfg.Tools.Get(call.Name)
	if !ok {
		obs := fmt.Sprintf("Error: unknown tool %q. Available tools: %s.", call.Name, strings.Join(r.cfg.Tools.Names(), ", "))
		r.observe(ctx, call.Name, obs, true)
		return obs, false, nil
	}
	if strings.TrimSpace(input) == "" && t.Capability != tool.CapabilityReview {
		obs := fmt.Sprintf("Error: tool %s needs a non-empty %q argument.", call.Name, tool.InputParam)
		r.observe(ctx, call.Name, obs, true)
		return obs, false, nil
	}

	tctx, span := otel.Tracer(tracerName).Start(ctx, "tool."+call.Name)
	span.SetAttributes(attribute.String("tool.input", input))
	output, err := t.Call(tctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", false, ctxErr
	}
	if err != nil {
		r.cfg.Logger.Warn("AgentLoop", "Tool call failed", map[string]interface{}{
			"loop":  r.cfg.Name,
			"tool":  call.Name,
			"error": err.Error(),
		})
		obs := "Error: " + err.Error()
		r.observe(ctx, call.Name, obs, true)
		return obs, false, nil
	}

	r.observe(ctx, call.Name, output, false)
	return output, t.Verbatim, nil
}

func (r *run) observe(ctx context.Context, toolName, output string, failed bool) {
	r.cfg.Metrics.RecordToolCall(ctx, toolName, failed)
	r.emit(Event{Type: EventObservation, Step: r.result.Steps, Tool: toolName, Content: output, Failed: failed})
}

func (r *run) conclude(ctx context.Context) (Result, error) {
	r.result.BudgetExceeded = true
	r.emit(Event{Type: EventBudgetExceeded, Step: r.result.Steps})
	r.cfg.Logger.Warn("AgentLoop", "Step budget exhausted", map[string]interface{}{
		"loop":      r.cfg.Name,
		"max_steps": r.cfg.MaxSteps,
	})

	transcript := append(r.transcript, llm.Message{Role: llm.RoleUser, Content: concludePrompt})
	answer, err := r.cfg.Planner.Conclude(ctx, transcript)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	answer = strings.TrimSpace(answer)
	if err != nil || answer == "" {
		if err != nil {
			r.cfg.Logger.Warn("AgentLoop", "Concluding call failed, using fallback", map[string]interface{}{
				"loop":  r.cfg.Name,
				"error": err.Error(),
			})
		}
		answer = BestEffort(r.lastObservation)
	}

	r.transition(StateFinal, map[string]interface{}{"budget_exceeded": true})
	r.result.Answer = answer
	return r.result, nil
}

// BestEffort is the fixed answer used when the budget is spent and no model answer is available.
func BestEffort(lastObservation string) string {
	const head = "I could not reach a complete answer within the allowed number of reasoning steps."
	if strings.TrimSpace(lastObservation) == "" {
		return head + " Please narrow the question and try again."
	}
	return head + " The most relevant information I found is below, but it may be incomplete.\n\n" + lastObservation
}
