/*
Package metrics exposes Prometheus instrumentation for the pricing service.

PURPOSE:
  Recorder owns a private prometheus.Registry so tests and multiple servers
  in one process never collide on global state. It plugs into the engines
  through their observer interfaces and into chi as middleware.

SERIES:
  fleetpricing_distance_cache_total{result}        hit | miss
  fleetpricing_fee_allocations_total{dispatch}     dispatch kind or "failed"
  fleetpricing_suggestions_total{strategy}         strategy kind
  fleetpricing_http_requests_total{method,route,status}
  fleetpricing_http_request_duration_seconds{method,route}

SEE ALSO:
  - distance.Observer, allocation.Observer
  - api/server.go: /metrics route
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/strategy"
)

const namespace = "fleetpricing"

type Recorder struct {
	registry *prometheus.Registry

	distanceCache   *prometheus.CounterVec
	feeAllocations  *prometheus.CounterVec
	suggestions     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

var (
	_ distance.Observer   = (*Recorder)(nil)
	_ allocation.Observer = (*Recorder)(nil)
)

// New registers every series on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		distanceCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distance_cache_total",
			Help:      "Distance cache lookups by result.",
		}, []string{"result"}),
		feeAllocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_allocations_total",
			Help:      "Fee allocations by dispatch kind.",
		}, []string{"dispatch"}),
		suggestions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Price suggestions produced by strategy.",
		}, []string{"strategy"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry is exposed for tests and for registering process collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) DistanceCacheHit()  { r.distanceCache.WithLabelValues("hit").Inc() }
func (r *Recorder) DistanceCacheMiss() { r.distanceCache.WithLabelValues("miss").Inc() }

func (r *Recorder) FeeAllocated(d allocation.Dispatch) {
	r.feeAllocations.WithLabelValues(string(d)).Inc()
}

func (r *Recorder) AllocationFailed(error) {
	r.feeAllocations.WithLabelValues("failed").Inc()
}

// SuggestionsProduced counts each suggestion by its strategy.
func (r *Recorder) SuggestionsProduced(suggestions []strategy.Suggestion) {
	for _, s := range suggestions {
		r.suggestions.WithLabelValues(string(s.Strategy)).Inc()
	}
}

// Middleware records request counts and latency, labelled by chi route
// pattern so path parameters don't explode cardinality.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		r.httpRequestTime.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
