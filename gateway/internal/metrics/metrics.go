package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Observer exports gateway metrics. A nil *Observer is valid and records nothing.
type Observer struct {
	requests       *prometheus.CounterVec
	denials        *prometheus.CounterVec
	storeFailures  *prometheus.CounterVec
	categoryFetch  *prometheus.CounterVec
	categoryCache  *prometheus.CounterVec
	spiderResolve  *prometheus.CounterVec
	deviceBindings prometheus.Counter
	buildLatency   prometheus.Histogram
	gateInFlight   prometheus.Gauge
}

// NewObserver registers gateway metrics on the registry.
func NewObserver(reg *prometheus.Registry) *Observer {
	o := &Observer{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidora_tvbox_requests_total",
			Help: "Configuration requests served, by mode and format.",
		}, []string{"mode", "format"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidora_tvbox_denials_total",
			Help: "Requests terminated by the security pipeline, by code.",
		}, []string{"code"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidora_store_failures_total",
			Help: "External store failures by operation and policy.",
		}, []string{"op", "policy"}),
		categoryFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidora_category_fetch_total",
			Help: "Remote category fetches by result class.",
		}, []string{"result"}),
		categoryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidora_category_cache_total",
			Help: "Category cache lookups by outcome.",
		}, []string{"outcome"}),
		spiderResolve: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidora_spider_resolve_total",
			Help: "Spider jar resolutions by outcome.",
		}, []string{"outcome"}),
		deviceBindings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidora_device_bindings_total",
			Help: "Devices auto-bound to user tokens.",
		}),
		buildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidora_tvbox_build_seconds",
			Help:    "Latency of a full configuration build.",
			Buckets: prometheus.DefBuckets,
		}),
		gateInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vidora_category_gate_in_flight",
			Help: "Category fetches currently holding a gate slot.",
		}),
	}
	reg.MustRegister(
		o.requests,
		o.denials,
		o.storeFailures,
		o.categoryFetch,
		o.categoryCache,
		o.spiderResolve,
		o.deviceBindings,
		o.buildLatency,
		o.gateInFlight,
	)
	return o
}

func (o *Observer) Request(mode, format string) {
	if o == nil {
		return
	}
	o.requests.WithLabelValues(mode, format).Inc()
}

func (o *Observer) Denied(code string) {
	if o == nil {
		return
	}
	o.denials.WithLabelValues(code).Inc()
}

func (o *Observer) StoreFailure(op, policy string) {
	if o == nil {
		return
	}
	o.storeFailures.WithLabelValues(op, policy).Inc()
}

func (o *Observer) CategoryFetch(result string) {
	if o == nil {
		return
	}
	o.categoryFetch.WithLabelValues(result).Inc()
}

func (o *Observer) CategoryCache(hit bool) {
	if o == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	o.categoryCache.WithLabelValues(outcome).Inc()
}

func (o *Observer) SpiderResolve(outcome string) {
	if o == nil {
		return
	}
	o.spiderResolve.WithLabelValues(outcome).Inc()
}

func (o *Observer) DeviceBound() {
	if o == nil {
		return
	}
	o.deviceBindings.Inc()
}

func (o *Observer) BuildLatency(d time.Duration) {
	if o == nil {
		return
	}
	o.buildLatency.Observe(d.Seconds())
}

func (o *Observer) GateAcquired() {
	if o == nil {
		return
	}
	o.gateInFlight.Inc()
}

func (o *Observer) GateReleased() {
	if o == nil {
		return
	}
	o.gateInFlight.Dec()
}
