package controller

import (
	"context"
	"encoding/json"

	"github.com/BearPays/code-review-assistant-back/internal/dto"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/serverutils"
	"github.com/BearPays/code-review-assistant-back/internal/service"
	"github.com/BearPays/code-review-assistant-back/internal/websocket"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(app fiber.Router, api fiber.Router)
	Health(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
}

type chatController struct {
	service   service.IChatService
	hub       *websocket.Hub
	jwtSecret string
}

// NewChatController wires the chat routes. hub may be nil, which disables the websocket route.
func NewChatController(service service.IChatService, hub *websocket.Hub, jwtSecret string) IChatController {
	return &chatController{service: service, hub: hub, jwtSecret: jwtSecret}
}

func (c *chatController) RegisterRoutes(app fiber.Router, api fiber.Router) {
	app.Get("/", c.Health)
	app.Post("/chat", serverutils.JwtMiddleware(c.jwtSecret), c.Chat)

	h := api.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("", c.Chat)
	h.Get("/sessions/:id/history", c.History)
	h.Delete("/sessions/:id", c.EndSession)

	if c.hub != nil {
		h.Use("/ws", func(ctx *fiber.Ctx) error {
			if fiberws.IsWebSocketUpgrade(ctx) {
				return ctx.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		h.Get("/ws", fiberws.New(c.serveWs))
	}
}

func (c *chatController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse[any]("Code review assistant is running", nil))
}

func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Request body must be JSON")
	}

	var observer loop.Observer
	if c.hub != nil && req.SessionId != "" {
		observer = c.observer(req.SessionId)
	}

	res, err := c.service.Chat(ctx.UserContext(), &req, observer)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer query", res))
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	res, err := c.service.History(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session history", res))
}

func (c *chatController) EndSession(ctx *fiber.Ctx) error {
	if err := c.service.EndSession(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success end session", nil))
}

// serveWs follows one session: ?session_id= picks it, otherwise a new id is announced first.
func (c *chatController) serveWs(conn *fiberws.Conn) {
	sessionID := conn.Query("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if frame, err := json.Marshal(dto.WsFrame{Type: dto.WsTypeSession, SessionId: sessionID}); err == nil {
		_ = conn.WriteMessage(fiberws.TextMessage, frame)
	}

	websocket.ServeWs(c.hub, conn, sessionID, c.handleWsMessage)
}

func (c *chatController) handleWsMessage(ctx context.Context, sessionID string, raw []byte) {
	var msg dto.WsChatRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.hub.Send(sessionID, dto.WsFrame{Type: dto.WsTypeError, Content: "Message must be a JSON chat request"})
		return
	}

	req := &dto.ChatRequest{
		Query:       msg.Query,
		Mode:        msg.Mode,
		ChangeSetId: msg.ChangeSetId,
		PrId:        msg.PrId,
		SessionId:   sessionID,
	}
	res, err := c.service.Chat(ctx, req, c.observer(sessionID))
	if err != nil {
		_, message := serverutils.Classify(err)
		c.hub.Send(sessionID, dto.WsFrame{Type: dto.WsTypeError, Content: message})
		return
	}
	c.hub.Send(sessionID, dto.WsFrame{Type: dto.WsTypeFinal, Content: res.Answer, Response: res})
}

// The loop's own final event carries the answer before mode policy runs, so it is not relayed.
func (c *chatController) observer(sessionID string) loop.Observer {
	return func(e loop.Event) {
		var frameType string
		switch e.Type {
		case loop.EventToolCall:
			frameType = dto.WsTypeToolCall
		case loop.EventObservation:
			frameType = dto.WsTypeObservation
		case loop.EventBudgetExceeded:
			frameType = dto.WsTypeBudgetExceeded
		default:
			return
		}
		c.hub.Send(sessionID, dto.WsFrame{
			Type:    frameType,
			Step:    e.Step,
			Tool:    e.Tool,
			Input:   e.Input,
			Content: e.Content,
			Failed:  e.Failed,
		})
	}
}
