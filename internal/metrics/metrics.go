package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder kinds accepted by New.
const (
	KindPrometheus = "prom"
	KindNoop       = "noop"
)

// Recorder receives fire-and-forget notifications from the service.
// Implementations must never block or fail the caller.
type Recorder interface {
	// EventCreated is called after every successful insert.
	EventCreated()
	// ObserveRequest is called once per HTTP request with its outcome.
	ObserveRequest(method, route string, status int, elapsed time.Duration)
	// Handler renders the collected metrics.
	Handler() http.Handler
}

// New constructs the recorder named by kind.
func New(kind string) (Recorder, error) {
	switch kind {
	case KindPrometheus:
		return NewPrometheus(), nil
	case KindNoop, "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown metrics kind %q", kind)
	}
}

// Prometheus records into its own registry so several instances can coexist.
type Prometheus struct {
	registry        *prometheus.Registry
	eventsCreated   prometheus.Counter
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
}

// NewPrometheus creates a recorder with Go runtime and process collectors registered.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		eventsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "events_created_total",
			Help: "Total number of events successfully stored.",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, labelled by method, route and status.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route", "status"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labelled by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
}

func (p *Prometheus) EventCreated() {
	p.eventsCreated.Inc()
}

func (p *Prometheus) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	p.requestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	p.requestsTotal.WithLabelValues(method, route, code).Inc()
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Noop drops every notification and renders an empty page.
type Noop struct{}

func (Noop) EventCreated() {}

func (Noop) ObserveRequest(string, string, int, time.Duration) {}

func (Noop) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	})
}
