package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/microsoft/DeepVideoDiscovery/internal/adapter/httpapi"
	"github.com/microsoft/DeepVideoDiscovery/internal/adapter/tool"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/archive"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/cache/rediscache"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/llm/openrouter"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/llm/vision"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/logger"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/metrics"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/prompts"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/segmentstore"
	"github.com/microsoft/DeepVideoDiscovery/internal/usecase/planner"
	"github.com/microsoft/DeepVideoDiscovery/internal/usecase/session"
	"github.com/microsoft/DeepVideoDiscovery/internal/usecase/synthesizer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Container struct {
	Logger   output.LoggerPort
	Catalog  *segmentstore.Catalog
	Runner   *session.Controller
	Archive  output.SessionArchive
	Registry *prometheus.Registry

	answerer   output.Answerer
	captionLen int
	closers    []func() error
}

// NewContainer wires the agent. progress may be nil.
func NewContainer(ctx context.Context, cfg Config, progress output.ProgressPort) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Options{
		Dir:     cfg.LogDir,
		Name:    "session",
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{
		Logger:     log,
		Registry:   prometheus.NewRegistry(),
		captionLen: cfg.CaptionLen,
	}
	c.closers = append(c.closers, log.Close)

	if cfg.OpenRouterAPIKey == "" || cfg.PlannerModel == "" {
		c.Close()
		return nil, fmt.Errorf("di.NewContainer: %w", &entity.ValidationError{Field: "OPENROUTER_API_KEY", Reason: "API key and OPENROUTER_MODEL_NAME are required"})
	}

	plannerLLM := openrouter.NewOpenRouterAdapter(c.llmConfig(cfg, cfg.PlannerModel))
	visionLLM := plannerLLM
	if cfg.VisionModel != "" && cfg.VisionModel != cfg.PlannerModel {
		visionLLM = openrouter.NewOpenRouterAdapter(c.llmConfig(cfg, cfg.VisionModel))
	}

	var cache output.FrameCache
	if cfg.RedisAddr != "" {
		rc, err := rediscache.Connect(ctx, rediscache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
		if err != nil {
			log.Warn("Redis unavailable, frame descriptions stay in memory", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache = rc
			c.closers = append(c.closers, rc.Close)
		}
	}

	c.Catalog = segmentstore.NewCatalog(segmentstore.Options{
		Describer:       vision.NewDescriber(visionLLM, log, prompts.FrameDescribePrompt, cfg.FrameMaxSide),
		Cache:           cache,
		Logger:          log,
		Concurrency:     cfg.FrameConcurrency,
		MaxFrames:       cfg.MaxFrames,
		DescribeTimeout: cfg.FrameDescribeTimeout,
	})
	c.answerer = vision.NewAnswerer(visionLLM, prompts.ClipAnswerPrompt)

	if err := c.openArchive(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}

	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(c.Registry)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	plan := planner.New(plannerLLM, log, planner.Config{
		RenderSystem: func(tools []entity.ToolDefinition) (string, error) {
			return prompts.GeneratePlannerPrompt(prompts.PlannerPrompt, tools)
		},
		ReflectPrompt: prompts.ReflectPrompt,
		Temperature:   cfg.PlannerTemperature,
		MaxTokens:     cfg.PlannerMaxTokens,
	})

	deps := session.Deps{
		Planner:     plan,
		Synthesizer: synthesizer.New(plannerLLM, log, prompts.SynthesizePrompt, nil),
		Toolsets:    c.toolset,
		Logger:      log,
		Metrics:     recorder,
		Progress:    progress,
		Archive:     c.Archive,
	}
	c.Runner = session.New(deps, cfg.Session)

	log.Info("Container ready",
		"planner_model", cfg.PlannerModel,
		"vision_model", cfg.VisionModel,
		"redis", cache != nil,
		"archive", c.Archive != nil,
	)
	return c, nil
}

func (c *Container) llmConfig(cfg Config, model string) openrouter.Config {
	llmCfg := openrouter.DefaultConfig(cfg.OpenRouterAPIKey, model)
	if cfg.OpenRouterBaseURL != "" {
		llmCfg.BaseURL = cfg.OpenRouterBaseURL
	}
	llmCfg.Logger = c.Logger
	llmCfg.RequestsPerSecond = cfg.RequestsPerSecond
	return llmCfg
}

func (c *Container) openArchive(ctx context.Context, cfg Config) error {
	switch {
	case cfg.PostgresDSN != "":
		pg, err := archive.NewPostgresArchive(ctx, cfg.PostgresDSN, 4)
		if err != nil {
			return fmt.Errorf("failed to open session archive: %w", err)
		}
		c.Archive = pg
		c.closers = append(c.closers, pg.Close)
	case cfg.ArchiveDir != "":
		fa, err := archive.NewFileArchive(cfg.ArchiveDir)
		if err != nil {
			return fmt.Errorf("failed to open session archive: %w", err)
		}
		c.Archive = fa
	}
	return nil
}

// toolset builds the per-session registry over one video.
func (c *Container) toolset(store output.SegmentStore) (output.ToolRegistry, error) {
	registry := service.NewToolRegistry()
	err := tool.RegisterVideoTools(registry, store, tool.Deps{
		Answerer:   c.answerer,
		Logger:     c.Logger,
		CaptionLen: c.captionLen,
	})
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func (c *Container) OpenStore(path string) (output.SegmentStore, error) {
	store, err := c.Catalog.Open(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (c *Container) HTTPHandler(dataRoot string, maxConcurrent int64) http.Handler {
	return httpapi.NewHandler(httpapi.Options{
		Runner:         c.Runner,
		Stores:         c.OpenStore,
		Archive:        c.Archive,
		Logger:         c.Logger,
		Gatherer:       c.Registry,
		DataRoot:       dataRoot,
		MaxConcurrent:  maxConcurrent,
		RequestLogJSON: true,
	}).Routes()
}

// Close releases resources in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}
