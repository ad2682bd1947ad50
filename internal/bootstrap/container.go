package bootstrap

import (
	"context"
	"fmt"

	"github.com/BearPays/code-review-assistant-back/internal/config"
	"github.com/BearPays/code-review-assistant-back/internal/controller"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/internal/repository/unitofwork"
	"github.com/BearPays/code-review-assistant-back/internal/service"
	"github.com/BearPays/code-review-assistant-back/internal/websocket"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/metrics"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/orchestrator"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/prompt"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/review"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/session"
	"github.com/BearPays/code-review-assistant-back/pkg/embedding"
	"github.com/BearPays/code-review-assistant-back/pkg/events"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/llm/factory"
	pktNats "github.com/BearPays/code-review-assistant-back/pkg/nats"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const cachePurgeDurable = "answer-cache-purge"

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	ChatController controller.IChatController
	ChatService    service.IChatService
	IngestService  service.IIngestService

	// Background workers, started by Start.
	AuditService service.IAuditService
	WebSocketHub *websocket.Hub

	Sessions    *session.Registry
	AnswerCache corpus.AnswerCache

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	agentLogger := logger.NewIsolatedLogger(cfg.App.AgentLogFilePath)

	// 2. Providers
	embeddingProvider, err := NewEmbeddingProvider(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	sysLogger.Info("Bootstrap", "Embedding provider ready", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider,
		"model":    cfg.Ai.EmbeddingModel,
	})

	llmProvider, err := NewLLMProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
		"planner":  cfg.Ai.Planner,
	})

	prompts := prompt.Default()
	if cfg.Agent.PromptOverridesPath != "" {
		if prompts, err = prompt.Load(cfg.Agent.PromptOverridesPath); err != nil {
			return nil, fmt.Errorf("prompt overrides: %w", err)
		}
	}

	// 3. Infrastructure, all optional
	c := &Container{Config: cfg, Logger: sysLogger}

	var answerCache corpus.AnswerCache = corpus.NopCache{}
	if cfg.Cache.RedisURL != "" {
		c.rdb = newRedisClient(cfg.Cache.RedisURL, sysLogger)
		answerCache = corpus.NewRedisCache(c.rdb, cfg.Cache.AnswerTTL, sysLogger)
	}
	c.AnswerCache = answerCache

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.NatsURL != "" {
		if c.natsPub, err = pktNats.NewPublisher(cfg.Events.NatsURL, sysLogger); err != nil {
			sysLogger.Warn("Bootstrap", "NATS publisher unavailable, events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			publisher = c.natsPub
		}
		if c.natsSub, err = pktNats.NewSubscriber(cfg.Events.NatsURL, sysLogger); err != nil {
			sysLogger.Warn("Bootstrap", "NATS subscriber unavailable", map[string]interface{}{"error": err.Error()})
		}
	}

	c.pubSub = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})

	// 4. Agent
	store := corpus.NewPGStore(uowFactory, embeddingProvider, sysLogger)

	var payloads review.PayloadStore = review.NewDBPayloadStore(store)
	if cfg.Agent.PayloadSource == "file" {
		payloads = review.NewFilePayloadStore(cfg.Agent.PayloadDir)
	}

	deps := orchestrator.Deps{
		Store:          store,
		Cache:          answerCache,
		Provider:       llmProvider,
		Planner:        NewPlanner(cfg, llmProvider),
		Payloads:       payloads,
		Prompts:        prompts,
		TopK:           cfg.Agent.TopK,
		MaxSteps:       cfg.Agent.MaxSteps,
		ReviewMaxSteps: cfg.Agent.ReviewMaxSteps,
		Logger:         agentLogger,
		Metrics:        metrics.New(sysLogger),
	}

	c.Sessions = session.NewRegistry(
		session.OrchestratorFactory(deps),
		session.WithTTL(cfg.Agent.SessionIdleTTL),
		session.WithClearOnChangeSetSwitch(cfg.Agent.ClearOnChangeSetSwitch),
		session.WithLogger(sysLogger),
	)

	// 5. Services
	c.AuditService = service.NewAuditService(c.pubSub, cfg.App.SessionLogDir, publisher, sysLogger)
	c.ChatService = service.NewChatService(c.Sessions, c.AuditService, cfg.Agent.TurnTimeout, sysLogger)
	c.IngestService = service.NewIngestService(uowFactory, embeddingProvider, publisher, sysLogger, 0)

	// 6. Controllers
	c.WebSocketHub = websocket.NewHub(c.rdb, sysLogger)
	c.ChatController = controller.NewChatController(c.ChatService, c.WebSocketHub, cfg.Auth.JWTSecret)

	return c, nil
}

// Start launches the background workers. They stop when ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	if err := c.AuditService.Consume(ctx); err != nil {
		return fmt.Errorf("audit consumer: %w", err)
	}
	go c.WebSocketHub.Run(ctx)

	if c.natsSub != nil {
		err := c.natsSub.Subscribe(ctx, events.TypeChangeSetReindexed, cachePurgeDurable, func(ctx context.Context, e events.Event) error {
			changeSetID := events.ChangeSetID(e)
			if changeSetID == "" {
				return nil
			}
			c.Logger.Info("Bootstrap", "Purging cached answers after re-index", map[string]interface{}{"change_set_id": changeSetID})
			return c.AnswerCache.Purge(ctx, changeSetID)
		})
		if err != nil {
			c.Logger.Warn("Bootstrap", "Cache purge subscription failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.pubSub != nil {
		_ = c.pubSub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.Logger.Sync()
}

func NewEmbeddingProvider(ctx context.Context, cfg *config.Config) (embedding.EmbeddingProvider, error) {
	ecfg := embedding.Config{Provider: cfg.Ai.EmbeddingProvider, Model: cfg.Ai.EmbeddingModel}
	switch cfg.Ai.EmbeddingProvider {
	case "openai":
		ecfg.APIKey = cfg.Keys.OpenAI
	case "gemini":
		ecfg.APIKey = cfg.Keys.GoogleGemini
	case "ollama":
		ecfg.BaseURL = cfg.Ai.OllamaBaseURL
	}
	return embedding.NewProvider(ctx, ecfg)
}

func NewLLMProvider(cfg *config.Config) (llm.ToolCaller, error) {
	fcfg := factory.Config{Provider: cfg.Ai.LLMProvider, Model: cfg.Ai.LLMModel, BaseURL: cfg.Ai.LLMBaseURL}
	switch cfg.Ai.LLMProvider {
	case "openai", "openai_compatible":
		fcfg.APIKey = cfg.Keys.OpenAI
	case "anthropic":
		fcfg.APIKey = cfg.Keys.Anthropic
	case "ollama":
		if fcfg.BaseURL == "" {
			fcfg.BaseURL = cfg.Ai.OllamaBaseURL
		}
	}
	return factory.NewLLMProvider(fcfg)
}

// NewPlanner picks native function calling unless the model only speaks the text protocol.
func NewPlanner(cfg *config.Config, provider llm.ToolCaller) loop.Planner {
	if cfg.Ai.Planner == "react" {
		return loop.NewReActPlanner(provider)
	}
	return loop.NewNativePlanner(provider)
}

func newRedisClient(url string, log logger.ILogger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using it as an address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	return rdb
}
