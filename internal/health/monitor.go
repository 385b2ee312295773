package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ncecere/open_voice_gateway/internal/config"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnreachable = "unreachable"
)

// Probe checks one provider. A nil Check means the provider is in-process
// and always reported as ok.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Metrics receives the outcome of each probe.
type Metrics interface {
	ProviderHealth(name string, up bool)
}

// Report is the aggregated result of one probe round.
type Report struct {
	Status    string
	Providers map[string]models.ProviderHealth
	CheckedAt time.Time
}

// Monitor probes providers on demand and periodically in the background.
type Monitor struct {
	probes   []Probe
	interval time.Duration
	timeout  time.Duration
	metrics  Metrics

	mu        sync.RWMutex
	last      Report
	startOnce sync.Once
	now       func() time.Time
}

// NewMonitor constructs a monitor using the health configuration.
func NewMonitor(probes []Probe, cfg config.HealthConfig, metrics Metrics) *Monitor {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 || timeout > interval {
		timeout = 3 * time.Second
	}
	sorted := append([]Probe(nil), probes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	return &Monitor{
		probes:   sorted,
		interval: interval,
		timeout:  timeout,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Start begins the background loop until ctx is canceled.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil || len(m.probes) == 0 {
		return
	}
	m.startOnce.Do(func() {
		go m.run(ctx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes every provider concurrently, each bounded by the probe
// timeout. Status is ok only when every provider is ok.
func (m *Monitor) Check(ctx context.Context) Report {
	report := Report{Status: StatusOK, Providers: map[string]models.ProviderHealth{}}
	if m == nil {
		return report
	}

	results := make([]models.ProviderHealth, len(m.probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, probe := range m.probes {
		g.Go(func() error {
			results[i] = m.probe(gctx, probe)
			return nil
		})
	}
	_ = g.Wait()

	for i, probe := range m.probes {
		res := results[i]
		report.Providers[probe.Name] = res
		up := res.Status == StatusOK
		if !up {
			report.Status = StatusDegraded
		}
		if m.metrics != nil {
			m.metrics.ProviderHealth(probe.Name, up)
		}
	}
	report.CheckedAt = m.now()

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
	return report
}

func (m *Monitor) probe(ctx context.Context, probe Probe) models.ProviderHealth {
	if probe.Check == nil {
		return models.ProviderHealth{Status: StatusOK}
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := m.now()
	if err := probe.Check(ctx); err != nil {
		return models.ProviderHealth{Status: StatusUnreachable}
	}
	latency := m.now().Sub(start).Milliseconds()
	return models.ProviderHealth{Status: StatusOK, LatencyMs: &latency}
}

// Last returns the most recent report, zero before the first check.
func (m *Monitor) Last() Report {
	if m == nil {
		return Report{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
