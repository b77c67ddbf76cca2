package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/llm"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/config"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/memory"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/middleware"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/observability"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/safety"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/specialists"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/triage"
)

const serviceName = "decisionkit"

// app holds every long-lived component built from the configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	data     *data.Manager
	memory   memory.Memory
	router   *triage.Router
	audit    *observability.AuditLogger
	registry *prometheus.Registry

	specialistOptions specialists.Options
	responseCaches    []*middleware.CachingDecorator

	closers []func(context.Context) error
}

// buildOptions selects which parts of the app are needed by a command.
type buildOptions struct {
	// agents builds the LLM provider and the specialists.
	agents bool
	// telemetry starts tracing and metrics export.
	telemetry bool
}

func newApp(ctx context.Context, cfg *config.Config, opts buildOptions) (_ *app, err error) {
	level := observability.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = slog.LevelDebug
	}
	tracing := opts.telemetry && (cfg.OTLPEndpoint != "" || cfg.TraceConsole)
	a := &app{
		cfg:    cfg,
		logger: observability.ConfigureLogging(level, cfg.LogFormat == "json", tracing),
	}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	if tracing {
		var tp *sdktrace.TracerProvider
		tp, err = observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint, cfg.TraceConsole)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, tp.Shutdown)
	}
	if opts.telemetry {
		a.registry = prometheus.NewRegistry()
		var mp *sdkmetric.MeterProvider
		mp, err = observability.InitMetrics(ctx, serviceName, a.registry)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mp.Shutdown)
	}

	if err = a.buildAudit(); err != nil {
		return nil, err
	}
	if err = a.buildData(); err != nil {
		return nil, err
	}
	if err = a.buildMemory(); err != nil {
		return nil, err
	}

	var routerOpts []triage.RouterOption
	if opts.agents {
		routerOpts, err = a.buildAgents(ctx)
		if err != nil {
			return nil, err
		}
	}
	routerOpts = append(routerOpts,
		triage.WithMemory(a.memory),
		triage.WithFreshness(a.data),
		triage.WithLogger(a.logger),
		triage.WithQueryValidator(safety.NewQueryGuard(cfg.MaxQueryLength, cfg.InjectionThreshold)),
	)
	if opts.telemetry {
		routerOpts = append(routerOpts, triage.WithMiddleware(a.instrument))
	}

	a.router = triage.NewRouter(triage.NewClassifier(triage.Keywords(cfg.ExtraKeywords())), routerOpts...)
	if opts.agents {
		var agents map[decisionkit.Domain]decisionkit.Agent
		agents, err = specialists.NewAll(a.specialistOptions)
		if err != nil {
			return nil, err
		}
		a.router.RegisterSpecialists(agents)
	}
	return a, nil
}

func (a *app) buildAudit() error {
	adapters := []observability.AuditAdapter{observability.NewSlogAuditAdapter(a.logger)}
	if a.cfg.AuditLogFile != "" {
		file, err := observability.NewFileAuditAdapter(a.cfg.AuditLogFile)
		if err != nil {
			return err
		}
		adapters = append(adapters, file)
		a.closers = append(a.closers, func(context.Context) error { return file.Close() })
	}
	a.audit = observability.NewAuditLogger(adapters...)
	return nil
}

func (a *app) buildData() error {
	var cache data.Cache
	switch a.cfg.CacheBackend {
	case "redis":
		rc, err := data.NewRedisCache(a.cfg.RedisURL, data.DefaultRedisKeyPrefix, 0)
		if err != nil {
			return err
		}
		cache = rc
	default:
		fc, err := data.NewFileCache(a.cfg.CacheDir)
		if err != nil {
			return err
		}
		cache = fc
	}
	a.data = data.NewManager(
		data.WithEndpoints(a.cfg.Endpoints()),
		data.WithCache(cache),
		data.WithLogger(a.logger),
		data.WithOnRefresh(a.invalidateResponses),
	)
	a.closers = append(a.closers, func(context.Context) error { return a.data.Close() })
	return nil
}

func (a *app) buildMemory() error {
	switch a.cfg.MemoryBackend {
	case "redis":
		rm, err := memory.NewRedisMemory(memory.RedisConfig{
			URL: a.cfg.RedisURL,
			TTL: a.cfg.MemoryTTL,
		})
		if err != nil {
			return err
		}
		a.memory = rm
	default:
		a.memory = memory.NewInMemoryMemory(memory.DefaultMaxMessages)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.memory.Close() })
	return nil
}

// buildAgents creates the LLM and the general assistant, and records the
// options the domain specialists are built with.
func (a *app) buildAgents(ctx context.Context) ([]triage.RouterOption, error) {
	model, err := llm.New(ctx, llm.Config{
		Provider:      a.cfg.LLMProvider,
		OpenAIAPIKey:  a.cfg.OpenAIAPIKey,
		OpenAIModel:   a.cfg.OpenAIModel,
		OpenAIBaseURL: a.cfg.OpenAIBaseURL,
		GeminiAPIKey:  a.cfg.GeminiAPIKey,
		GeminiModel:   a.cfg.GeminiModel,
		Bedrock: llm.BedrockConfig{
			ModelID: a.cfg.BedrockModelID,
			Region:  a.cfg.AWSRegion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}
	a.logger.Info("LLM configured", "provider", a.cfg.LLMProvider, "model", model.Model())

	a.specialistOptions = specialists.Options{
		LLM:      model,
		Provider: a.data,
		MaxSteps: a.cfg.MaxSteps,
		CallOptions: []llm.CallOption{
			llm.WithTemperature(a.cfg.Temperature),
			llm.WithMaxTokens(a.cfg.MaxTokens),
		},
		Decorate: a.decorateReasoner,
		Logger:   a.logger,
	}
	general, err := specialists.New(decisionkit.DomainUnknown, a.specialistOptions)
	if err != nil {
		return nil, err
	}
	return []triage.RouterOption{triage.WithGeneralAgent(general)}, nil
}

// decorateReasoner wraps every completion call: timeout innermost, then
// rate limiting, retry and the response cache.
func (a *app) decorateReasoner(agent decisionkit.Agent) decisionkit.Agent {
	if a.cfg.RequestTimeout > 0 {
		agent = middleware.NewTimeoutDecorator(agent, a.cfg.RequestTimeout)
	}
	if interval := a.cfg.CompletionInterval(); interval > 0 {
		agent = middleware.NewRateLimiterDecorator(agent, middleware.RateLimiterConfig{Interval: interval})
	}
	if a.cfg.RetryAttempts > 1 {
		retry := middleware.DefaultRetryConfig()
		retry.MaxAttempts = a.cfg.RetryAttempts
		agent = middleware.NewRetryDecorator(agent, retry)
	}
	if a.cfg.ResponseCacheTTL > 0 {
		cached := middleware.NewCachingDecorator(agent, middleware.CachingConfig{TTL: a.cfg.ResponseCacheTTL})
		a.responseCaches = append(a.responseCaches, cached)
		agent = cached
	}
	return agent
}

// invalidateResponses drops cached completions once a domain's data changes.
func (a *app) invalidateResponses(ctx context.Context, domain decisionkit.Domain, _ data.Dataset) {
	for _, c := range a.responseCaches {
		c.Invalidate()
	}
	if len(a.responseCaches) > 0 {
		a.logger.DebugContext(ctx, "response caches invalidated", "domain", domain)
	}
}

// instrument wraps the triage pipeline with tracing and metrics.
func (a *app) instrument(agent decisionkit.Agent) decisionkit.Agent {
	agent = observability.NewTracingMiddleware(agent, "decisionkit.query")
	metered, err := observability.NewMetricsMiddleware(agent)
	if err != nil {
		a.logger.Warn("metrics disabled", "error", err)
		return agent
	}
	return metered
}

// warmData loads cached datasets and refreshes whatever is still missing.
func (a *app) warmData(ctx context.Context) {
	loaded := a.data.LoadCached(ctx)
	if loaded == len(decisionkit.AllDomains()) {
		return
	}
	for _, domain := range decisionkit.AllDomains() {
		if a.data.LastUpdated(domain) != "" {
			continue
		}
		_, err := a.data.Refresh(ctx, domain)
		a.audit.LogDataRefresh(ctx, string(domain), err)
		if err != nil {
			a.logger.ErrorContext(ctx, "initial data refresh failed", "domain", domain, "error", err)
		}
	}
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
}
