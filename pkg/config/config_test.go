package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_AppliesDefaultsWhenUnset(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("A2A_ORCHESTRATOR_PORT", "")
	t.Setenv("MCP_MISSION_TIMEOUT_MS", "")

	cfg := Load("testdata/nonexistent.env")
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 9000, cfg.A2AOrchestratorPort)
	assert.Equal(t, 3000, cfg.WebAPIPort)
}

func TestLoad_ReadsOverridesFromEnvironment(t *testing.T) {
	t.Setenv("WEB_API_PORT", "4000")
	t.Setenv("DEBUG", "true")

	cfg := Load("testdata/nonexistent.env")
	assert.Equal(t, 4000, cfg.WebAPIPort)
	assert.True(t, cfg.Debug)
}

func TestGetEnvInt_FallsBackOnMalformedValue(t *testing.T) {
	t.Setenv("SOME_PORT", "not-a-number")
	assert.Equal(t, 42, getEnvInt("SOME_PORT", 42))
}
