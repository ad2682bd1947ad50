package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/dto"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/serverutils"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/orchestrator"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/session"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatService interface {
	// Chat runs one turn. observer may be nil; it receives loop events as they happen.
	Chat(ctx context.Context, req *dto.ChatRequest, observer loop.Observer) (*dto.ChatResponse, error)
	History(ctx context.Context, sessionID string) (*dto.SessionHistoryResponse, error)
	EndSession(ctx context.Context, sessionID string) error
}

type chatService struct {
	sessions    *session.Registry
	audit       IAuditService
	turnTimeout time.Duration
	logger      logger.ILogger
}

func NewChatService(sessions *session.Registry, audit IAuditService, turnTimeout time.Duration, log logger.ILogger) IChatService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &chatService{
		sessions:    sessions,
		audit:       audit,
		turnTimeout: turnTimeout,
		logger:      log,
	}
}

func (s *chatService) Chat(ctx context.Context, req *dto.ChatRequest, observer loop.Observer) (*dto.ChatResponse, error) {
	req.Normalize()
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	mode, err := orchestrator.ParseMode(req.Mode)
	if err != nil {
		return nil, serverutils.BadRequest(err.Error())
	}
	if req.SessionId == "" {
		req.SessionId = uuid.NewString()
	}

	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}

	// Audit records start once the session resolves, so a rejected change set leaves no file.
	var result orchestrator.TurnResult
	var started bool
	info, err := s.sessions.Do(ctx, session.Request{
		SessionID:   req.SessionId,
		ChangeSetID: req.ChangeSetId,
		Mode:        mode,
	}, func(ctx context.Context, orch session.Orchestrator, history []llm.Message) ([]llm.Message, error) {
		started = true
		s.record(AuditRecord{
			SessionID:   req.SessionId,
			ChangeSetID: req.ChangeSetId,
			Mode:        string(mode),
			Kind:        AuditKindRequest,
			Query:       req.Query,
		})
		res, err := orch.Turn(ctx, history, req.Query, orchestrator.WithObserver(observer))
		if err != nil {
			return nil, err
		}
		result = res
		return res.Messages, nil
	})
	if err != nil {
		appErr := s.classify(err, req)
		if started {
			s.record(AuditRecord{
				SessionID:   req.SessionId,
				ChangeSetID: req.ChangeSetId,
				Mode:        string(mode),
				Kind:        AuditKindError,
				Query:       req.Query,
				Error:       err.Error(),
			})
		}
		s.logger.Error("ChatService", "Turn failed", map[string]interface{}{
			"session_id":   req.SessionId,
			"changeset_id": req.ChangeSetId,
			"status":       appErr.Code,
			"error":        err.Error(),
		})
		return nil, appErr
	}

	s.record(AuditRecord{
		SessionID:   info.SessionID,
		ChangeSetID: info.ChangeSetID,
		Mode:        string(result.Mode),
		Kind:        AuditKindResponse,
		Answer:      result.Answer,
		Steps:       result.Steps,
		ToolsUsed:   result.ToolsUsed,
		DurationMs:  result.Duration.Milliseconds(),
	})

	return &dto.ChatResponse{
		Answer:         result.Answer,
		Timestamp:      time.Now().UTC(),
		Mode:           string(result.Mode),
		ChangeSetId:    info.ChangeSetID,
		SessionId:      info.SessionID,
		Steps:          result.Steps,
		ToolsUsed:      result.ToolsUsed,
		BudgetExceeded: result.BudgetExceeded,
	}, nil
}

func (s *chatService) History(_ context.Context, sessionID string) (*dto.SessionHistoryResponse, error) {
	info, err := s.sessions.Info(sessionID)
	if err != nil {
		return nil, serverutils.NotFound(fmt.Sprintf("Session %s not found", sessionID))
	}
	transcript, err := s.sessions.History(sessionID)
	if err != nil {
		return nil, serverutils.NotFound(fmt.Sprintf("Session %s not found", sessionID))
	}

	messages := make([]dto.ChatMessageDTO, 0, len(transcript))
	for _, m := range transcript {
		messages = append(messages, dto.ChatMessageDTO{Role: m.Role, Content: m.Content})
	}

	return &dto.SessionHistoryResponse{
		SessionId:   info.SessionID,
		ChangeSetId: info.ChangeSetID,
		Mode:        string(info.Mode),
		Turns:       info.Turns,
		Tools:       info.Tools,
		CreatedAt:   info.CreatedAt,
		UpdatedAt:   info.UpdatedAt,
		Messages:    messages,
	}, nil
}

func (s *chatService) EndSession(_ context.Context, sessionID string) error {
	if !s.sessions.Delete(sessionID) {
		return serverutils.NotFound(fmt.Sprintf("Session %s not found", sessionID))
	}
	s.logger.Info("ChatService", "Session ended", map[string]interface{}{"session_id": sessionID})
	return nil
}

func (s *chatService) record(rec AuditRecord) {
	if s.audit != nil {
		s.audit.Record(rec)
	}
}

// classify maps turn failures onto HTTP statuses. Busy is checked first since it wraps a context error.
func (s *chatService) classify(err error, req *dto.ChatRequest) *serverutils.AppError {
	switch {
	case errors.Is(err, session.ErrSessionBusy):
		return serverutils.NewAppError(fiber.StatusConflict, "Session is busy with another turn", err)
	case errors.Is(err, orchestrator.ErrInvalidMode), errors.Is(err, session.ErrChangeSetRequired):
		return serverutils.NewAppError(fiber.StatusBadRequest, err.Error(), err)
	case errors.Is(err, orchestrator.ErrUnknownChangeSet):
		return serverutils.NewAppError(fiber.StatusNotFound, fmt.Sprintf("Unknown changeset: %s", req.ChangeSetId), err)
	case errors.Is(err, orchestrator.ErrNoTools):
		return serverutils.NewAppError(fiber.StatusInternalServerError,
			fmt.Sprintf("Changeset %s could not be initialized: no knowledge source is available", req.ChangeSetId), err)
	case errors.Is(err, context.DeadlineExceeded):
		return serverutils.NewAppError(fiber.StatusGatewayTimeout, fmt.Sprintf("Turn timed out after %s", s.turnTimeout), err)
	case errors.Is(err, context.Canceled):
		return serverutils.NewAppError(fiber.StatusRequestTimeout, "Request cancelled", err)
	default:
		return serverutils.NewAppError(fiber.StatusInternalServerError, "Failed to answer the query", err)
	}
}
