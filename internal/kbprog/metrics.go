// Public domain.

package kbprog

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soniakeys/kbpost/internal/pipeline"
)

// Metrics returns a registry holding the counts of sum.
func Metrics(sum *pipeline.Summary) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	cands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kbpost",
		Name:      "candidates_total",
		Help:      "Candidates seen by each stage outcome.",
	}, []string{"stage"})
	runs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kbpost",
		Name:      "stage_ran",
		Help:      "1 if the stage ran.",
	}, []string{"stage"})
	dur := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kbpost",
		Name:      "duration_seconds",
		Help:      "Wall time of post-processing.",
	})
	reg.MustRegister(cands, runs, dur)

	s := sum.Stream
	for stage, n := range map[string]int{
		"fetched":        s.Fetched,
		"skipped":        s.Skipped,
		"filtered":       s.Filtered,
		"kept":           s.Kept,
		"stamp_accepted": sum.StampKept,
		"clusters":       sum.Clusters,
		"final":          sum.Final,
	} {
		cands.WithLabelValues(stage).Add(float64(n))
	}
	b2f := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}
	runs.WithLabelValues("stamp").Set(b2f(sum.StampRun))
	runs.WithLabelValues("cluster").Set(b2f(sum.ClusterRun))
	dur.Set(sum.Elapsed.Seconds())
	return reg
}

// WriteMetrics writes the counts of sum to file fn in the Prometheus text
// format.
func WriteMetrics(fn string, sum *pipeline.Summary) error {
	return prometheus.WriteToTextfile(fn, Metrics(sum))
}
