package dto

import (
	"strings"
	"time"
)

type ChatRequest struct {
	Query       string `json:"query" validate:"required"`
	Mode        string `json:"mode" validate:"required,oneof=co_reviewer interactive_assistant"`
	ChangeSetId string `json:"changeset_id" validate:"required,max=128"`
	// PrId is the older name of changeset_id, still sent by some clients.
	PrId      string `json:"pr_id,omitempty" validate:"-"`
	SessionId string `json:"session_id,omitempty" validate:"max=128"`
}

// Normalize folds the pr_id alias into changeset_id and trims identifiers.
func (r *ChatRequest) Normalize() {
	if strings.TrimSpace(r.ChangeSetId) == "" {
		r.ChangeSetId = r.PrId
	}
	r.PrId = ""
	r.ChangeSetId = strings.TrimSpace(r.ChangeSetId)
	r.SessionId = strings.TrimSpace(r.SessionId)
	r.Mode = strings.TrimSpace(r.Mode)
}

type ChatResponse struct {
	Answer         string    `json:"answer"`
	Timestamp      time.Time `json:"timestamp"`
	Mode           string    `json:"mode"`
	ChangeSetId    string    `json:"changeset_id"`
	SessionId      string    `json:"session_id"`
	Steps          int       `json:"steps"`
	ToolsUsed      []string  `json:"tools_used,omitempty"`
	BudgetExceeded bool      `json:"budget_exceeded,omitempty"`
}

type ChatMessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SessionHistoryResponse struct {
	SessionId   string           `json:"session_id"`
	ChangeSetId string           `json:"changeset_id"`
	Mode        string           `json:"mode"`
	Turns       int              `json:"turns"`
	Tools       []string         `json:"tools,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Messages    []ChatMessageDTO `json:"messages"`
}

// Websocket frame types.
const (
	WsTypeSession        = "session"
	WsTypeToolCall       = "tool_call"
	WsTypeObservation    = "observation"
	WsTypeBudgetExceeded = "budget_exceeded"
	WsTypeFinal          = "final"
	WsTypeError          = "error"
)

// WsFrame is one message pushed to websocket listeners of a session.
type WsFrame struct {
	Type      string        `json:"type"`
	SessionId string        `json:"session_id"`
	Step      int           `json:"step,omitempty"`
	Tool      string        `json:"tool,omitempty"`
	Input     string        `json:"input,omitempty"`
	Content   string        `json:"content,omitempty"`
	Failed    bool          `json:"failed,omitempty"`
	Response  *ChatResponse `json:"response,omitempty"`
}

// WsChatRequest is what a websocket client sends; the session comes from the connection.
type WsChatRequest struct {
	Query       string `json:"query" validate:"required"`
	Mode        string `json:"mode" validate:"required,oneof=co_reviewer interactive_assistant"`
	ChangeSetId string `json:"changeset_id"`
	PrId        string `json:"pr_id,omitempty"`
}
