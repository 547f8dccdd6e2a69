package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmcfarland/usagedeck/internal/config"
)

type Provider struct {
	promHandler http.Handler

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	reportDuration     *promreg.HistogramVec
	eventsFetched      promreg.Counter
	eventsFiltered     promreg.Counter
}

func Setup(_ context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	registry := promreg.NewRegistry()
	provider.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})

	httpRequests := promreg.NewCounterVec(
		promreg.CounterOpts{
			Namespace: "usagedeck",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}
	httpLatency := promreg.NewHistogramVec(
		promreg.HistogramOpts{
			Namespace: "usagedeck",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   latencyBuckets,
		},
		[]string{"method", "route", "status"},
	)
	reportDuration := promreg.NewHistogramVec(
		promreg.HistogramOpts{
			Namespace: "usagedeck",
			Name:      "report_build_duration_seconds",
			Help:      "Time spent fetching events and computing an analytics report.",
			Buckets:   latencyBuckets,
		},
		[]string{"stage"},
	)
	eventsFetched := promreg.NewCounter(
		promreg.CounterOpts{
			Namespace: "usagedeck",
			Name:      "events_fetched_total",
			Help:      "Total usage events loaded from the database.",
		},
	)
	eventsFiltered := promreg.NewCounter(
		promreg.CounterOpts{
			Namespace: "usagedeck",
			Name:      "events_filtered_total",
			Help:      "Total usage events dropped by the exclusion filters.",
		},
	)
	for _, collector := range []promreg.Collector{httpRequests, httpLatency, reportDuration, eventsFetched, eventsFiltered} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	provider.httpRequestCounter = httpRequests
	provider.httpRequestLatency = httpLatency
	provider.reportDuration = reportDuration
	provider.eventsFetched = eventsFetched
	provider.eventsFiltered = eventsFiltered

	return provider, nil
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.promHandler == nil {
		return nil
	}
	return p.promHandler
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil {
		return
	}

	statusLabel := strconv.Itoa(status)

	if p.httpRequestCounter != nil {
		p.httpRequestCounter.WithLabelValues(method, route, statusLabel).Inc()
	}

	if p.httpRequestLatency != nil {
		p.httpRequestLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
	}
}

// RecordReportStage observes one stage of a report build (fetch, filter,
// compute).
func (p *Provider) RecordReportStage(stage string, duration time.Duration) {
	if p == nil || p.reportDuration == nil {
		return
	}
	p.reportDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (p *Provider) RecordEventsFetched(count int) {
	if p == nil || p.eventsFetched == nil {
		return
	}
	p.eventsFetched.Add(float64(count))
}

func (p *Provider) RecordEventsFiltered(count int) {
	if p == nil || p.eventsFiltered == nil {
		return
	}
	p.eventsFiltered.Add(float64(count))
}
