package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GinMode  string

	// store
	StoreDriver string // memory | sqlite | mysql
	DBDSN       string

	SeedEnabled bool
	SeedRandom  int64

	ChatContextWindowSize int

	// AI provider
	AIProvider        string
	AIModel           string
	AITimeout         time.Duration
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
	GeminiAPIKey      string

	// redis, idempotency keys; empty addr keeps them in memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// rabbitMQ, async jobs; empty url uses the in-process queue
	RabbitURL   string
	RabbitQueue string

	WorkerConcurrency int
}

// Load reads the environment, after merging any .env file in the working
// directory. Variables already set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) Config {
	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	num := func(key string, def int) int {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
			log.Printf("[config] invalid %s=%q, using %d", key, v, def)
		}
		return def
	}

	seedRandom := int64(42)
	if v := getenv("SEED_RANDOM"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			seedRandom = n
		} else {
			log.Printf("[config] invalid SEED_RANDOM=%q, using %d", v, seedRandom)
		}
	}

	seedEnabled := true
	if v := getenv("SEED_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			seedEnabled = b
		}
	}

	aiTimeout := 60 * time.Second
	if v := getenv("AI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			aiTimeout = d
		} else {
			log.Printf("[config] invalid AI_TIMEOUT=%q, using %s", v, aiTimeout)
		}
	}

	openAIKey := getenv("OPENAI_API_KEY")
	aiProvider := strings.ToLower(str("AI_PROVIDER", ""))
	if aiProvider == "" {
		aiProvider = "echo"
		if openAIKey != "" {
			aiProvider = "openai"
		}
	}

	return Config{
		HTTPAddr: str("HTTP_ADDR", ":8080"),
		GinMode:  str("GIN_MODE", ""),

		StoreDriver: strings.ToLower(str("STORE_DRIVER", "memory")),
		DBDSN:       getenv("DB_DSN"),

		SeedEnabled: seedEnabled,
		SeedRandom:  seedRandom,

		ChatContextWindowSize: num("CHAT_CONTEXT_WINDOW_SIZE", 20),

		AIProvider:        aiProvider,
		AIModel:           getenv("AI_MODEL"),
		AITimeout:         aiTimeout,
		OpenAIAPIKey:      openAIKey,
		OpenAIBaseURL:     str("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OllamaBaseURL:     str("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       str("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: str("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   str("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: getenv("OPENROUTER_APP_NAME"),
		GeminiAPIKey:      getenv("GEMINI_API_KEY"),

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       num("REDIS_DB", 0),

		RabbitURL:   getenv("RABBIT_URL"),
		RabbitQueue: str("RABBIT_QUEUE", "code_jobs"),

		WorkerConcurrency: workerConcurrency(num("WORKER_CONCURRENCY", 2)),
	}
}

func workerConcurrency(n int) int {
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}
