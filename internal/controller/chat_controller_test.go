package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/dto"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/serverutils"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	last *dto.ChatRequest
}

func (f *fakeChatService) Chat(_ context.Context, req *dto.ChatRequest, _ loop.Observer) (*dto.ChatResponse, error) {
	req.Normalize()
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	f.last = req
	return &dto.ChatResponse{
		Answer:      "answer to " + req.Query,
		Timestamp:   time.Now(),
		Mode:        req.Mode,
		ChangeSetId: req.ChangeSetId,
		SessionId:   "generated",
	}, nil
}

func (f *fakeChatService) History(_ context.Context, id string) (*dto.SessionHistoryResponse, error) {
	if id != "known" {
		return nil, serverutils.NotFound("Session " + id + " not found")
	}
	return &dto.SessionHistoryResponse{SessionId: id, Turns: 1, Messages: []dto.ChatMessageDTO{{Role: "user", Content: "hi"}}}, nil
}

func (f *fakeChatService) EndSession(_ context.Context, id string) error {
	if id != "known" {
		return serverutils.NotFound("Session " + id + " not found")
	}
	return nil
}

func newApp(secret string) (*fiber.App, *fakeChatService) {
	svc := &fakeChatService{}
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewChatController(svc, nil, secret).RegisterRoutes(app, app.Group("/api"))
	return app, svc
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestChatRoutes(t *testing.T) {
	app, svc := newApp("")

	for _, path := range []string{"/chat", "/api/chat/v1"} {
		code, body := do(t, app, fiber.MethodPost, path, `{"query":"what changed?","mode":"co_reviewer","pr_id":"pr-1"}`)
		require.Equal(t, fiber.StatusOK, code, path)
		assert.Equal(t, true, body["success"])
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "answer to what changed?", data["answer"])
		assert.Equal(t, "pr-1", data["changeset_id"])
	}
	assert.Equal(t, "pr-1", svc.last.ChangeSetId)
}

func TestChatRejectsBadRequests(t *testing.T) {
	app, _ := newApp("")

	code, body := do(t, app, fiber.MethodPost, "/api/chat/v1", `not json`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])

	code, body = do(t, app, fiber.MethodPost, "/api/chat/v1", `{"query":"q","mode":"autopilot","changeset_id":"pr-1"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body["message"], "mode must be one of")
}

func TestSessionRoutes(t *testing.T) {
	app, _ := newApp("")

	code, body := do(t, app, fiber.MethodGet, "/api/chat/v1/sessions/known/history", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "known", body["data"].(map[string]interface{})["session_id"])

	code, _ = do(t, app, fiber.MethodGet, "/api/chat/v1/sessions/nope/history", "")
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = do(t, app, fiber.MethodDelete, "/api/chat/v1/sessions/known", "")
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = do(t, app, fiber.MethodDelete, "/api/chat/v1/sessions/nope", "")
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestHealth(t *testing.T) {
	app, _ := newApp("secret")
	code, body := do(t, app, fiber.MethodGet, "/", "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["success"])
}

func TestChatRequiresTokenWhenConfigured(t *testing.T) {
	app, _ := newApp("secret")
	payload := `{"query":"q","mode":"co_reviewer","changeset_id":"pr-1"}`

	code, _ := do(t, app, fiber.MethodPost, "/api/chat/v1", payload)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = do(t, app, fiber.MethodPost, "/api/chat/v1", payload, "Authorization", "Bearer garbage")
	assert.Equal(t, fiber.StatusUnauthorized, code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "reviewer-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	code, _ = do(t, app, fiber.MethodPost, "/api/chat/v1", payload, "Authorization", "Bearer "+token)
	assert.Equal(t, fiber.StatusOK, code)
}
