package spattmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/screenager/spattplus/internal/spattplus"
)

func TestObserveBuildAndSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg, "test-index")

	r.ObserveBuild(spattplus.RuntimeStatus{
		RunTime:          50 * time.Millisecond,
		DistComputations: 1000,
		Hops:             200,
		AvgDegree:        []float64{4.5, 2.1},
	})
	r.ObserveSearch(2*time.Millisecond, spattplus.RuntimeStatus{DistComputations: 40, Hops: 10}, 3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"spattplus_build_duration_seconds",
		"spattplus_build_distance_computations_total",
		"spattplus_build_avg_degree",
		"spattplus_search_duration_seconds",
		"spattplus_search_results_returned",
	} {
		if !found[name] {
			t.Errorf("missing metric %s in gathered families", name)
		}
	}
}

func TestAvgDegreeLabeledByLayer(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg, "layered")
	r.ObserveBuild(spattplus.RuntimeStatus{AvgDegree: []float64{1, 2, 3}})

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var gauge *dto.MetricFamily
	for _, mf := range mfs {
		if mf.GetName() == "spattplus_build_avg_degree" {
			gauge = mf
		}
	}
	if gauge == nil {
		t.Fatal("avg_degree family not found")
	}
	if len(gauge.Metric) != 3 {
		t.Fatalf("expected 3 layer series, got %d", len(gauge.Metric))
	}
}
