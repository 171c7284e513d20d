package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "navheader"

// Recorder collects header service metrics.
type Recorder struct {
	registry       *prometheus.Registry
	fetchFailures  *prometheus.CounterVec
	staleResponses *prometheus.CounterVec
	recomputes     prometheus.Counter
}

// NewRecorder builds a recorder with its own registry, including Go runtime
// and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Backend fetches that failed, by data source.",
		}, []string{"source"}),
		staleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Fetch results discarded because a newer request superseded them.",
		}, []string{"group"}),
		recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "menu_recomputes_total",
			Help:      "Menu aggregations performed.",
		}),
	}
	r.registry.MustRegister(
		r.fetchFailures,
		r.staleResponses,
		r.recomputes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// FetchFailed counts one failed fetch from source.
func (r *Recorder) FetchFailed(source string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(source).Inc()
}

// StaleDiscarded counts one discarded response for a fetch group.
func (r *Recorder) StaleDiscarded(group string) {
	if r == nil {
		return
	}
	r.staleResponses.WithLabelValues(group).Inc()
}

// Recomputed counts one menu aggregation.
func (r *Recorder) Recomputed() {
	if r == nil {
		return
	}
	r.recomputes.Inc()
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
