package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AGENT_MAX_STEPS", "")
	t.Setenv("SESSION_IDLE_TTL", "")

	cfg := Load()

	assert.Equal(t, 10, cfg.Agent.MaxSteps)
	assert.Equal(t, 30, cfg.Agent.ReviewMaxSteps)
	assert.Equal(t, 5, cfg.Agent.TopK)
	assert.Equal(t, time.Duration(0), cfg.Agent.SessionIdleTTL)
	assert.True(t, cfg.Agent.ClearOnChangeSetSwitch)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_MAX_STEPS", "4")
	t.Setenv("TURN_TIMEOUT", "90s")
	t.Setenv("SESSION_IDLE_TTL", "600")
	t.Setenv("CLEAR_ON_CHANGESET_SWITCH", "false")
	t.Setenv("LLM_PROVIDER", "anthropic")

	cfg := Load()

	assert.Equal(t, 4, cfg.Agent.MaxSteps)
	assert.Equal(t, 90*time.Second, cfg.Agent.TurnTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Agent.SessionIdleTTL)
	assert.False(t, cfg.Agent.ClearOnChangeSetSwitch)
	assert.Equal(t, "anthropic", cfg.Ai.LLMProvider)
}

func TestGetEnvAsDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvAsDuration("SOME_DURATION", time.Minute))
}
