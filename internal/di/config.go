package di

import (
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/usecase/session"
)

type Config struct {
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	PlannerModel      string
	// VisionModel describes frames and answers clip questions. Defaults to PlannerModel.
	VisionModel        string
	RequestsPerSecond  float64
	PlannerTemperature float32
	PlannerMaxTokens   int

	LogDir     string
	LogLevel   string
	LogConsole bool

	// Empty RedisAddr keeps frame descriptions in process memory only.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// PostgresDSN takes precedence over ArchiveDir. Both empty disables archiving.
	PostgresDSN string
	ArchiveDir  string

	FrameMaxSide         int
	FrameConcurrency     int
	FrameDescribeTimeout time.Duration
	MaxFrames            int
	CaptionLen           int

	Session session.Config
}

// ConfigFromEnv reads settings from the environment. Budget and timing
// values fall back to session.DefaultConfig.
func ConfigFromEnv(env output.ConfigPort) Config {
	def := session.DefaultConfig()

	sc := def
	sc.Budget.MaxIterations = env.GetInt("MAX_ITERATIONS", def.Budget.MaxIterations)
	sc.Budget.MaxToolCalls = env.GetInt("MAX_TOOL_CALLS", def.Budget.MaxToolCalls)
	sc.Budget.MaxDuration = env.GetDuration("MAX_DURATION", def.Budget.MaxDuration)
	sc.PlannerAttempts = env.GetInt("PLANNER_ATTEMPTS", def.PlannerAttempts)
	sc.PlannerTimeout = env.GetDuration("PLANNER_TIMEOUT", def.PlannerTimeout)
	sc.PlannerRetries = env.GetInt("PLANNER_RETRIES", def.PlannerRetries)
	sc.PlannerRetryBackoff = env.GetDuration("PLANNER_RETRY_BACKOFF", def.PlannerRetryBackoff)
	sc.ToolTimeout = env.GetDuration("TOOL_TIMEOUT", def.ToolTimeout)
	sc.ToolRetries = env.GetInt("TOOL_RETRIES", def.ToolRetries)
	sc.ToolRetryBackoff = env.GetDuration("TOOL_RETRY_BACKOFF", def.ToolRetryBackoff)
	sc.MaxIdenticalFailures = env.GetInt("MAX_IDENTICAL_FAILURES", def.MaxIdenticalFailures)
	sc.ReflectEvery = env.GetInt("REFLECT_EVERY", def.ReflectEvery)
	sc.MaxConsecutiveReflections = env.GetInt("MAX_CONSECUTIVE_REFLECTIONS", def.MaxConsecutiveReflections)
	sc.Render.MaxItems = env.GetInt("CONTEXT_MAX_ITEMS", def.Render.MaxItems)
	sc.Render.MaxTokens = env.GetInt("CONTEXT_MAX_TOKENS", def.Render.MaxTokens)

	planner := env.Get("OPENROUTER_MODEL_NAME")
	return Config{
		OpenRouterAPIKey:   env.Get("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:  env.GetWithDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		PlannerModel:       planner,
		VisionModel:        env.GetWithDefault("VISION_MODEL_NAME", planner),
		RequestsPerSecond:  env.GetFloat("LLM_REQUESTS_PER_SECOND", 0),
		PlannerTemperature: float32(env.GetFloat("PLANNER_TEMPERATURE", 0)),
		PlannerMaxTokens:   env.GetInt("PLANNER_MAX_TOKENS", 4096),

		LogDir:     env.GetWithDefault("LOG_DIR", "log"),
		LogLevel:   env.GetWithDefault("LOG_LEVEL", "info"),
		LogConsole: env.GetBool("LOG_CONSOLE", false),

		RedisAddr:     env.Get("REDIS_ADDR"),
		RedisPassword: env.Get("REDIS_PASSWORD"),
		RedisDB:       env.GetInt("REDIS_DB", 0),
		RedisTTL:      env.GetDuration("REDIS_TTL", 7*24*time.Hour),

		PostgresDSN: env.Get("POSTGRES_DSN"),
		ArchiveDir:  env.Get("ARCHIVE_DIR"),

		FrameMaxSide:         env.GetInt("FRAME_MAX_SIDE", 512),
		FrameConcurrency:     env.GetInt("FRAME_CONCURRENCY", 4),
		FrameDescribeTimeout: env.GetDuration("FRAME_DESCRIBE_TIMEOUT", 2*time.Minute),
		MaxFrames:            env.GetInt("MAX_FRAMES", 16),
		CaptionLen:           env.GetInt("CAPTION_LEN", 240),

		Session: sc,
	}
}
