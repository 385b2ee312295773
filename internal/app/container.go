package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ncecere/open_voice_gateway/internal/auth"
	"github.com/ncecere/open_voice_gateway/internal/cache"
	"github.com/ncecere/open_voice_gateway/internal/config"
	"github.com/ncecere/open_voice_gateway/internal/db"
	"github.com/ncecere/open_voice_gateway/internal/health"
	"github.com/ncecere/open_voice_gateway/internal/limits"
	"github.com/ncecere/open_voice_gateway/internal/media"
	"github.com/ncecere/open_voice_gateway/internal/observability"
	"github.com/ncecere/open_voice_gateway/internal/pipeline"
	"github.com/ncecere/open_voice_gateway/internal/providers"
	"github.com/ncecere/open_voice_gateway/internal/retention"
	"github.com/ncecere/open_voice_gateway/internal/services/benchmarks"
	"github.com/ncecere/open_voice_gateway/internal/services/history"
	"github.com/ncecere/open_voice_gateway/internal/services/organizations"
	"github.com/ncecere/open_voice_gateway/internal/services/search"
	"github.com/ncecere/open_voice_gateway/internal/services/sessions"
	"github.com/ncecere/open_voice_gateway/internal/storage/blob"
	"github.com/ncecere/open_voice_gateway/internal/workerpool"
)

// Container aggregates runtime dependencies for handlers and services.
// Everything in it is built once at boot and shared read-only.
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	DBPool        *pgxpool.Pool
	Redis         *redis.Client
	Queries       *db.Queries
	Observability *observability.Provider

	Factory   *providers.Factory
	Providers *providers.Set
	Resolver  *providers.Resolver
	Pipeline  *pipeline.Orchestrator

	RateLimiter limits.Limiter
	Idempotency *cache.IdempotencyCache
	APIKeys     *auth.KeySet
	AdminAuth   *auth.AdminAuthService
	HealthMon   *health.Monitor

	Blobs         blob.Store
	Transcoder    *media.Transcoder
	Benchmarks    *benchmarks.Sink
	History       *history.Writer
	Sessions      *sessions.Service
	Search        *search.Service
	Organizations *organizations.Service
	Retention     *retention.Worker
}

// NewContainer builds a dependency container from the provided primitives.
// pool and redisClient are optional: without a pool history, sessions and
// search are disabled; without redis the limiter runs in memory and
// idempotency replay is off.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := slog.Default()

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	factory := providers.NewFactory(cfg, workerpool.New(cfg.Providers.LocalWorkers))
	set, err := factory.Build(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}
	resolver := providers.NewResolver(factory, set)

	limiter, err := limits.New(cfg.RateLimits, redisClient)
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}

	adminAuth, err := auth.NewAdminAuthService(cfg.Auth.Admin)
	if err != nil {
		return nil, fmt.Errorf("init admin auth: %w", err)
	}

	blobStore, err := blob.New(ctx, cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("init audio store: %w", err)
	}

	c := &Container{
		Config:        cfg,
		Logger:        logger,
		DBPool:        pool,
		Redis:         redisClient,
		Observability: obsProvider,
		Factory:       factory,
		Providers:     set,
		Resolver:      resolver,
		RateLimiter:   limiter,
		Idempotency:   cache.NewIdempotencyCache(redisClient, cache.DefaultTTL),
		APIKeys:       auth.NewKeySet(cfg.Auth.APIKeyList()),
		AdminAuth:     adminAuth,
		HealthMon:     health.NewMonitor(healthProbes(cfg, set), cfg.Health, obsProvider),
		Blobs:         blobStore,
		Transcoder:    media.NewTranscoder(cfg.Audio.FFmpegPath),
	}
	if cfg.Benchmarks.Enabled {
		c.Benchmarks = benchmarks.NewSink(cfg.Benchmarks.Directory)
	}

	if pool != nil {
		c.Queries = db.New(pool)
		c.Organizations = organizations.NewService(c.Queries)
		c.Sessions = sessions.NewService(c.Queries, blobStore, logger)
		if set.Embedder != nil {
			c.Search = search.NewService(c.Queries, set.Embedder)
		}
		c.Retention = retention.New(c.Sessions, cfg.History.SweepInterval, obsProvider, logger)
		if cfg.History.Enabled {
			recorder := history.NewRecorder(pool, c.Queries, history.RecorderOptions{
				Blobs:      blobStore,
				Transcoder: c.Transcoder,
				Embedder:   set.Embedder,
				Metrics:    obsProvider,
				Logger:     logger,
			})
			c.History = history.NewWriter(recorder, history.WriterOptions{
				QueueSize:  cfg.History.QueueSize,
				Workers:    cfg.History.Workers,
				JobTimeout: cfg.History.JobTimeout,
				Metrics:    obsProvider,
				Logger:     logger,
			})
		}
	}

	opts := pipeline.Options{
		Resolver: resolver,
		Metrics:  obsProvider,
		Labels: pipeline.Labels{
			STTProvider:   sttLabel(cfg.Providers),
			TranslateKind: cfg.Providers.Translate,
			OllamaModel:   cfg.Providers.Ollama.Model,
			TTSKind:       cfg.Providers.TTS,
		},
		Logger: logger,
	}
	if c.Benchmarks != nil {
		opts.Benchmarks = c.Benchmarks
	}
	if c.History != nil {
		opts.History = c.History
	}
	if c.Pipeline, err = pipeline.New(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Start launches the background loops: provider health probes and, when a
// database is configured, the retention sweeper.
func (c *Container) Start(ctx context.Context) {
	c.HealthMon.Start(ctx)
	if c.Retention != nil {
		go c.Retention.Run(ctx)
	}
}

// Close drains the history queue, then releases providers and telemetry.
func (c *Container) Close(ctx context.Context) error {
	c.History.Close()
	var errs []error
	if err := c.Providers.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release providers: %w", err))
	}
	if err := c.Observability.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown observability: %w", err))
	}
	return errors.Join(errs...)
}

// sttLabel is the benchmark name of the transcriber, whisper-<model> for
// local whisper.
func sttLabel(p config.ProviderConfig) string {
	if strings.EqualFold(p.STT, "whisper") && p.Whisper.Model != "" {
		return "whisper-" + p.Whisper.Model
	}
	return p.STT
}

// healthProbes names each configured singleton after its provider kind.
// Providers without a network dependency report ok without probing.
func healthProbes(cfg *config.Config, set *providers.Set) []health.Probe {
	if set == nil {
		return nil
	}
	var probes []health.Probe
	seen := map[string]bool{}
	add := func(kind string, provider any) {
		name := probeName(kind)
		if provider == nil || name == "" || seen[name] {
			return
		}
		seen[name] = true
		probe := health.Probe{Name: name}
		if hc, ok := provider.(providers.HealthChecker); ok {
			probe.Check = hc.HealthCheck
		}
		probes = append(probes, probe)
	}
	if set.Transcriber != nil {
		add(cfg.Providers.STT, set.Transcriber)
	}
	if set.Translator != nil {
		add(cfg.Providers.Translate, set.Translator)
	}
	if set.Synthesizer != nil {
		add(cfg.Providers.TTS, set.Synthesizer)
	}
	if set.Embedder != nil {
		add(cfg.Providers.Embeddings, set.Embedder)
	}
	return probes
}

func probeName(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case "local":
		return "ollama"
	case "chatterbox-multilingual":
		return "chatterbox"
	case "none":
		return ""
	}
	return kind
}
