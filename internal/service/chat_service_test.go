package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/dto"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/serverutils"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/orchestrator"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/session"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrch struct {
	mu    sync.Mutex
	cs    string
	mode  orchestrator.Mode
	block bool
}

func (o *stubOrch) ChangeSetID() string { return o.cs }

func (o *stubOrch) Mode() orchestrator.Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

func (o *stubOrch) SetMode(m orchestrator.Mode) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mode = m
	return nil
}

func (o *stubOrch) ToolNames() []string { return []string{"search_pr", "search_code"} }

func (o *stubOrch) Turn(ctx context.Context, history []llm.Message, query string, opts ...orchestrator.TurnOption) (orchestrator.TurnResult, error) {
	if o.block {
		<-ctx.Done()
		return orchestrator.TurnResult{}, ctx.Err()
	}
	cfg := loop.Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Observer != nil {
		cfg.Observer(loop.Event{Type: loop.EventToolCall, Step: 1, Tool: "search_pr", Input: query})
	}
	answer := "answer to " + query
	return orchestrator.TurnResult{
		Answer:    answer,
		Mode:      o.Mode(),
		Steps:     1,
		ToolsUsed: []string{"search_pr"},
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: query},
			{Role: llm.RoleAssistant, Content: answer},
		},
	}, nil
}

type memAudit struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (a *memAudit) Record(rec AuditRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
}

func (a *memAudit) Consume(context.Context) error { return nil }
func (a *memAudit) Dropped() int64               { return 0 }

func (a *memAudit) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.Kind)
	}
	return out
}

func newChatService(t *testing.T, block bool, timeout time.Duration) (IChatService, *memAudit) {
	t.Helper()
	factory := func(_ context.Context, cs string, mode orchestrator.Mode) (session.Orchestrator, error) {
		if cs == "missing" {
			return nil, orchestrator.ErrUnknownChangeSet
		}
		if cs == "dead" {
			return nil, orchestrator.ErrNoTools
		}
		return &stubOrch{cs: cs, mode: mode, block: block}, nil
	}
	audit := &memAudit{}
	return NewChatService(session.NewRegistry(factory), audit, timeout, nil), audit
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	code, _ := serverutils.Classify(err)
	return code
}

func TestChatAnswersAndKeepsHistory(t *testing.T) {
	svc, audit := newChatService(t, false, time.Second)
	ctx := context.Background()

	var seen []loop.Event
	res, err := svc.Chat(ctx, &dto.ChatRequest{
		Query:       "what changed?",
		Mode:        "interactive_assistant",
		ChangeSetId: "pr-1",
		SessionId:   "s1",
	}, func(e loop.Event) { seen = append(seen, e) })
	require.NoError(t, err)

	assert.Equal(t, "answer to what changed?", res.Answer)
	assert.Equal(t, "s1", res.SessionId)
	assert.Equal(t, "pr-1", res.ChangeSetId)
	assert.Equal(t, "interactive_assistant", res.Mode)
	assert.Equal(t, []string{"search_pr"}, res.ToolsUsed)
	require.Len(t, seen, 1)
	assert.Equal(t, loop.EventToolCall, seen[0].Type)
	assert.Equal(t, []string{AuditKindRequest, AuditKindResponse}, audit.kinds())

	hist, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, hist.Turns)
	assert.Equal(t, []string{"search_pr", "search_code"}, hist.Tools)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, "user", hist.Messages[0].Role)
	assert.Equal(t, "answer to what changed?", hist.Messages[1].Content)
}

func TestChatAcceptsPrIdAndGeneratesSession(t *testing.T) {
	svc, _ := newChatService(t, false, time.Second)

	res, err := svc.Chat(context.Background(), &dto.ChatRequest{
		Query: "hi",
		Mode:  "co_reviewer",
		PrId:  " pr-9 ",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pr-9", res.ChangeSetId)
	assert.NotEmpty(t, res.SessionId)
}

func TestChatErrors(t *testing.T) {
	svc, audit := newChatService(t, false, time.Second)
	ctx := context.Background()

	_, err := svc.Chat(ctx, &dto.ChatRequest{Query: "q", Mode: "autopilot", ChangeSetId: "pr-1"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, statusOf(t, err))

	_, err = svc.Chat(ctx, &dto.ChatRequest{Query: "q", Mode: "co_reviewer"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, statusOf(t, err))

	_, err = svc.Chat(ctx, &dto.ChatRequest{Query: "q", Mode: "co_reviewer", ChangeSetId: "missing"}, nil)
	assert.Equal(t, fiber.StatusNotFound, statusOf(t, err))
	_, msg := serverutils.Classify(err)
	assert.Contains(t, msg, "missing")

	_, err = svc.Chat(ctx, &dto.ChatRequest{Query: "q", Mode: "co_reviewer", ChangeSetId: "dead"}, nil)
	assert.Equal(t, fiber.StatusInternalServerError, statusOf(t, err))
	_, msg = serverutils.Classify(err)
	assert.Contains(t, msg, "could not be initialized")

	// rejected before a session resolved, so nothing is audited
	assert.Empty(t, audit.kinds())
}

func TestChatTimeout(t *testing.T) {
	svc, audit := newChatService(t, true, 20*time.Millisecond)

	_, err := svc.Chat(context.Background(), &dto.ChatRequest{Query: "q", Mode: "co_reviewer", ChangeSetId: "pr-1", SessionId: "slow"}, nil)
	assert.Equal(t, fiber.StatusGatewayTimeout, statusOf(t, err))
	assert.Equal(t, []string{AuditKindRequest, AuditKindError}, audit.kinds())

	// a failed first turn leaves nothing behind
	_, err = svc.History(context.Background(), "slow")
	assert.Equal(t, fiber.StatusNotFound, statusOf(t, err))
}

func TestEndSession(t *testing.T) {
	svc, _ := newChatService(t, false, time.Second)
	ctx := context.Background()

	_, err := svc.Chat(ctx, &dto.ChatRequest{Query: "q", Mode: "co_reviewer", ChangeSetId: "pr-1", SessionId: "s"}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(ctx, "s"))
	assert.Equal(t, fiber.StatusNotFound, statusOf(t, svc.EndSession(ctx, "s")))
}
