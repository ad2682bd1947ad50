package metrics

import (
	"context"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const MeterName = "code-review-assistant.agent"

// Agent counts turns, tool calls and token usage of the reasoning loop. A counter that
// cannot be created degrades to a no-op so metrics never break a turn.
type Agent struct {
	turns            metric.Int64Counter
	toolCalls        metric.Int64Counter
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	budgetExceeded   metric.Int64Counter
}

func New(log logger.ILogger) *Agent {
	meter := otel.Meter(MeterName, metric.WithInstrumentationVersion("1.0.0"))

	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			log.Warn("Metrics", "Failed to create counter, using no-op", map[string]interface{}{
				"counter": name,
				"error":   err.Error(),
			})
			return noop.Int64Counter{}
		}
		return c
	}

	return &Agent{
		turns:            counter("agent.turns", "Completed reasoning loop runs", "{turns}"),
		toolCalls:        counter("genai.tool.calls", "The number of tool calls made during execution", "{calls}"),
		promptTokens:     counter("genai.token.prompt", "The number of prompt tokens used", "{tokens}"),
		completionTokens: counter("genai.token.completion", "The number of completion tokens used", "{tokens}"),
		budgetExceeded:   counter("agent.budget_exceeded", "Loop runs that hit the step budget", "{turns}"),
	}
}

// Nop records nothing.
func Nop() *Agent {
	return &Agent{
		turns:            noop.Int64Counter{},
		toolCalls:        noop.Int64Counter{},
		promptTokens:     noop.Int64Counter{},
		completionTokens: noop.Int64Counter{},
		budgetExceeded:   noop.Int64Counter{},
	}
}

func (m *Agent) RecordTurn(ctx context.Context, loopName string, steps int, budgetExceeded bool) {
	attrs := metric.WithAttributes(attribute.String("loop", loopName), attribute.Int("steps", steps))
	m.turns.Add(ctx, 1, attrs)
	if budgetExceeded {
		m.budgetExceeded.Add(ctx, 1, attrs)
	}
}

func (m *Agent) RecordToolCall(ctx context.Context, toolName string, failed bool) {
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.Bool("failed", failed),
	))
}

func (m *Agent) RecordTokens(ctx context.Context, promptTokens, completionTokens int64) {
	if promptTokens == 0 && completionTokens == 0 {
		return
	}
	m.promptTokens.Add(ctx, promptTokens)
	m.completionTokens.Add(ctx, completionTokens)
}
