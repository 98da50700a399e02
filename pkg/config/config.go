// Package config loads the process environment into a typed
// configuration struct, the way a single fixed-topology deployment
// needs: a flat set of env vars rather than a YAML registry, since this
// system has no configurable agent/chain topology to merge.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-configurable setting listed in the
// external interfaces contract.
type Config struct {
	GeminiAPIKey        string
	GeminiModel         string
	GeminiEmbeddingModel string

	SupabaseURL            string
	SupabaseServiceRoleKey string

	A2AOrchestratorPort int
	A2APlannerPort      int
	A2ARAGPort          int
	A2AExecutorPort     int
	WebAPIPort          int

	MCPServerPath      string
	MCPMissionTimeout  time.Duration

	Debug bool
}

// Load reads .env (if present, warning but not failing when absent) and
// then the process environment, applying the defaults named in the
// external interfaces contract.
func Load(envPath string) *Config {
	if envPath == "" {
		envPath = ".env"
	}
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v (continuing with existing environment)", envPath, err)
	}

	return &Config{
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		A2AOrchestratorPort: getEnvInt("A2A_ORCHESTRATOR_PORT", 9000),
		A2APlannerPort:      getEnvInt("A2A_PLANNER_PORT", 9001),
		A2ARAGPort:          getEnvInt("A2A_RAG_PORT", 9002),
		A2AExecutorPort:     getEnvInt("A2A_EXECUTOR_PORT", 9003),
		WebAPIPort:          getEnvInt("WEB_API_PORT", 3000),

		MCPServerPath:     getEnv("MCP_SERVER_PATH", ""),
		MCPMissionTimeout: time.Duration(getEnvInt("MCP_MISSION_TIMEOUT_MS", 1_800_000)) * time.Millisecond,

		Debug: getEnvBool("DEBUG", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("warning: %s=%q is not an integer, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
