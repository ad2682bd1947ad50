package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Agent    AgentConfig
	Cache    CacheConfig
	Events   EventsConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	AgentLogFilePath   string // LLM / tool trace, file only
	SessionLogDir      string // per-session audit records
	CorsAllowedOrigins string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	OpenAI       string
	Anthropic    string
	GoogleGemini string
}

type AIConfig struct {
	LLMProvider       string // "openai", "anthropic", "ollama"
	LLMModel          string
	LLMBaseURL        string // ollama host or OpenAI compatible router
	Planner           string // "native" (function calling) or "react" (text protocol)
	EmbeddingProvider string // "openai", "ollama", "gemini"
	EmbeddingModel    string
	OllamaBaseURL     string
}

type AgentConfig struct {
	MaxSteps               int
	ReviewMaxSteps         int
	TopK                   int
	TurnTimeout            time.Duration
	SessionIdleTTL         time.Duration // 0 keeps sessions until deleted
	ClearOnChangeSetSwitch bool
	PromptOverridesPath    string
	PayloadSource          string // "db" or "file"
	PayloadDir             string
}

type CacheConfig struct {
	RedisURL  string
	AnswerTTL time.Duration
}

type EventsConfig struct {
	NatsURL string
}

type AuthConfig struct {
	JWTSecret string // empty disables auth on chat routes
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			AgentLogFilePath:   getEnv("AGENT_LOG_FILE_PATH", "logs/llm_rag.log"),
			SessionLogDir:      getEnv("SESSION_LOG_DIR", "logs/sessions"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			Anthropic:    getEnv("ANTHROPIC_API_KEY", ""),
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMModel:          getEnv("LLM_MODEL", "o4-mini"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			Planner:           getEnv("AGENT_PLANNER", "native"),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		},
		Agent: AgentConfig{
			MaxSteps:               getEnvAsInt("AGENT_MAX_STEPS", 10),
			ReviewMaxSteps:         getEnvAsInt("REVIEW_MAX_STEPS", 30),
			TopK:                   getEnvAsInt("RETRIEVAL_TOP_K", 5),
			TurnTimeout:            getEnvAsDuration("TURN_TIMEOUT", 5*time.Minute),
			SessionIdleTTL:         getEnvAsDuration("SESSION_IDLE_TTL", 0),
			ClearOnChangeSetSwitch: getEnvAsBool("CLEAR_ON_CHANGESET_SWITCH", true),
			PromptOverridesPath:    getEnv("PROMPT_OVERRIDES_PATH", ""),
			PayloadSource:          getEnv("PAYLOAD_SOURCE", "db"),
			PayloadDir:             getEnv("PAYLOAD_DIR", "data"),
		},
		Cache: CacheConfig{
			RedisURL:  getEnv("REDIS_URL", ""),
			AnswerTTL: getEnvAsDuration("ANSWER_CACHE_TTL", time.Hour),
		},
		Events: EventsConfig{
			NatsURL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s", "5m") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
