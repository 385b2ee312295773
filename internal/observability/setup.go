package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

const namespace = "open_voice_gateway"

type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	promExporter   *prometheus.Exporter
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	stageLatency       *promreg.HistogramVec
	stageFailures      *promreg.CounterVec
	rateLimited        *promreg.CounterVec
	historyJobs        *promreg.CounterVec
	historyDropped     *promreg.CounterVec
	sweptSessions      promreg.Counter
	sweptAudioDirs     promreg.Counter
	providerUp         *promreg.GaugeVec
}

func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("open-voice-gateway"),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.EnableOTLP {
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		opts := []otlptracegrpc.Option{}
		switch {
		case strings.HasPrefix(endpoint, "http://"):
			endpoint = strings.TrimPrefix(endpoint, "http://")
			opts = append(opts, otlptracegrpc.WithInsecure())
		case strings.HasPrefix(endpoint, "https://"):
			endpoint = strings.TrimPrefix(endpoint, "https://")
		default:
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))

		exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		provider.tracerProvider = tp
		provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)
	}

	if cfg.EnableMetrics {
		registry := promreg.NewRegistry()
		promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, err
		}
		mp := metric.NewMeterProvider(
			metric.WithReader(promExporter),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		provider.meterProvider = mp
		provider.promExporter = promExporter
		provider.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
		provider.shutdownFuncs = append(provider.shutdownFuncs, mp.Shutdown)

		if err := provider.registerCollectors(registry); err != nil {
			return nil, err
		}
	}

	return provider, nil
}

func (p *Provider) registerCollectors(registry promreg.Registerer) error {
	latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30, 60}

	p.httpRequestCounter = promreg.NewCounterVec(promreg.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})
	p.httpRequestLatency = promreg.NewHistogramVec(promreg.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   latencyBuckets,
	}, []string{"method", "route", "status"})
	p.stageLatency = promreg.NewHistogramVec(promreg.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of pipeline stages by provider.",
		Buckets:   latencyBuckets,
	}, []string{"stage", "provider"})
	p.stageFailures = promreg.NewCounterVec(promreg.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_stage_failures_total",
		Help:      "Pipeline stage failures by stage and error kind.",
	}, []string{"stage", "kind"})
	p.rateLimited = promreg.NewCounterVec(promreg.CounterOpts{
		Namespace: namespace,
		Name:      "ratelimit_rejections_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"route"})
	p.historyJobs = promreg.NewCounterVec(promreg.CounterOpts{
		Namespace: namespace,
		Name:      "history_jobs_total",
		Help:      "History persistence jobs by outcome.",
	}, []string{"outcome"})
	p.historyDropped = promreg.NewCounterVec(promreg.CounterOpts{
		Namespace: namespace,
		Name:      "history_dropped_total",
		Help:      "History writes dropped before reaching the database.",
	}, []string{"reason"})
	p.sweptSessions = promreg.NewCounter(promreg.CounterOpts{
		Namespace: namespace,
		Name:      "retention_deleted_sessions_total",
		Help:      "Sessions removed by the retention sweeper.",
	})
	p.sweptAudioDirs = promreg.NewCounter(promreg.CounterOpts{
		Namespace: namespace,
		Name:      "retention_deleted_audio_dirs_total",
		Help:      "Session audio prefixes removed by the retention sweeper.",
	})
	p.providerUp = promreg.NewGaugeVec(promreg.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_up",
		Help:      "1 when the last health probe of a provider succeeded.",
	}, []string{"provider"})

	for _, c := range []promreg.Collector{
		p.httpRequestCounter, p.httpRequestLatency, p.stageLatency, p.stageFailures,
		p.rateLimited, p.historyJobs, p.historyDropped, p.sweptSessions, p.sweptAudioDirs, p.providerUp,
	} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.promHandler == nil {
		return nil
	}
	return p.promHandler
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracerProvider
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil || p.httpRequestCounter == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	p.httpRequestCounter.WithLabelValues(method, route, statusLabel).Inc()
	p.httpRequestLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

func (p *Provider) ObserveStage(stage, provider string, duration time.Duration) {
	if p == nil || p.stageLatency == nil {
		return
	}
	p.stageLatency.WithLabelValues(stage, provider).Observe(duration.Seconds())
}

func (p *Provider) StageFailed(stage, kind string) {
	if p == nil || p.stageFailures == nil {
		return
	}
	p.stageFailures.WithLabelValues(stage, kind).Inc()
}

func (p *Provider) RateLimited(route string) {
	if p == nil || p.rateLimited == nil {
		return
	}
	p.rateLimited.WithLabelValues(route).Inc()
}

func (p *Provider) HistoryJob(outcome string) {
	if p == nil || p.historyJobs == nil {
		return
	}
	p.historyJobs.WithLabelValues(outcome).Inc()
}

func (p *Provider) HistoryDropped(reason string) {
	if p == nil || p.historyDropped == nil {
		return
	}
	p.historyDropped.WithLabelValues(reason).Inc()
}

func (p *Provider) RetentionSwept(sessions, audioDirs int) {
	if p == nil || p.sweptSessions == nil {
		return
	}
	p.sweptSessions.Add(float64(sessions))
	p.sweptAudioDirs.Add(float64(audioDirs))
}

func (p *Provider) ProviderHealth(name string, up bool) {
	if p == nil || p.providerUp == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	p.providerUp.WithLabelValues(name).Set(v)
}
