// Package spattmetrics exposes build and search counters over Prometheus,
// turning spattplus.RuntimeStatus into scrapeable gauges/histograms. None of
// the teacher repo's own packages import prometheus, but prometheus/client_golang
// is carried by essentially every vector-index repo in the retrieval pack
// (graphdb, libravdb, vjvector, maia, conexus, vector, zerostate, arxos,
// cc-backend all require it), so this is the corpus's ambient answer to
// "how does a Go vector index expose metrics" even though no single pack
// repo's .go source was available to copy call sites from.
package spattmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/screenager/spattplus/internal/spattplus"
)

// Registry holds the metric vectors for one index instance. Multiple
// indices (e.g. in a long-running service) register with distinct "index"
// label values onto the same prometheus.Registerer.
type Registry struct {
	buildDuration   prometheus.Histogram
	buildDistComps  prometheus.Counter
	buildHops       prometheus.Counter
	buildAvgDegree  *prometheus.GaugeVec
	searchDuration  prometheus.Histogram
	searchDistComps prometheus.Counter
	searchHops      prometheus.Counter
	searchResults   prometheus.Histogram
}

// NewRegistry creates and registers a Registry's collectors under reg,
// namespaced "spattplus" and tagged with the given index name.
func NewRegistry(reg prometheus.Registerer, index string) *Registry {
	constLabels := prometheus.Labels{"index": index}
	r := &Registry{
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "spattplus",
			Subsystem:   "build",
			Name:        "duration_seconds",
			Help:        "Wall-clock time of a full BuildIndex call.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		buildDistComps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "spattplus",
			Subsystem:   "build",
			Name:        "distance_computations_total",
			Help:        "Distance evaluations performed during construction.",
			ConstLabels: constLabels,
		}),
		buildHops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "spattplus",
			Subsystem:   "build",
			Name:        "hops_total",
			Help:        "Graph edges traversed during construction.",
			ConstLabels: constLabels,
		}),
		buildAvgDegree: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "spattplus",
			Subsystem:   "build",
			Name:        "avg_degree",
			Help:        "Average out-degree per layer after the last build.",
			ConstLabels: constLabels,
		}, []string{"layer"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "spattplus",
			Subsystem:   "search",
			Name:        "duration_seconds",
			Help:        "Wall-clock time of a single Search call.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		searchDistComps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "spattplus",
			Subsystem:   "search",
			Name:        "distance_computations_total",
			Help:        "Distance evaluations performed answering queries.",
			ConstLabels: constLabels,
		}),
		searchHops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "spattplus",
			Subsystem:   "search",
			Name:        "hops_total",
			Help:        "Graph edges traversed answering queries.",
			ConstLabels: constLabels,
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "spattplus",
			Subsystem:   "search",
			Name:        "results_returned",
			Help:        "Non-sentinel results returned per query.",
			ConstLabels: constLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
	}
	reg.MustRegister(
		r.buildDuration, r.buildDistComps, r.buildHops, r.buildAvgDegree,
		r.searchDuration, r.searchDistComps, r.searchHops, r.searchResults,
	)
	return r
}

// ObserveBuild records a completed build's RuntimeStatus.
func (r *Registry) ObserveBuild(status spattplus.RuntimeStatus) {
	r.buildDuration.Observe(status.RunTime.Seconds())
	r.buildDistComps.Add(float64(status.DistComputations))
	r.buildHops.Add(float64(status.Hops))
	for layer, deg := range status.AvgDegree {
		r.buildAvgDegree.WithLabelValues(strconv.Itoa(layer)).Set(deg)
	}
}

// ObserveSearch records a single query's timing, counters and result count.
func (r *Registry) ObserveSearch(elapsed time.Duration, status spattplus.RuntimeStatus, nResults int) {
	r.searchDuration.Observe(elapsed.Seconds())
	r.searchDistComps.Add(float64(status.DistComputations))
	r.searchHops.Add(float64(status.Hops))
	r.searchResults.Observe(float64(nResults))
}

