// Public domain.

// Package cluster merges near duplicate trajectories.
//
// The same object is typically found many times by the search with slightly
// different starting positions and velocities.  Trajectories are mapped to
// normalized feature vectors, clustered by density, and each cluster is
// represented by its first member, the one of highest likelihood.
package cluster

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats"

	"github.com/soniakeys/kbpost/internal/config"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/internal/stats"
	"github.com/soniakeys/kbpost/search"
)

// Params configure a Clusterer.
type Params struct {
	Type     string // all, position or mid_position
	Function string // DBSCAN or OPTICS
	Eps      float64
	Args     map[string]float64 // overrides: eps, max_eps, min_samples

	Width, Height int
	VLim          [2]float64 // pixels per day
	AngLim        [2]unit.Angle
	MJD           []float64
	Workers       int
}

// Clusterer selects one representative trajectory per cluster.
type Clusterer struct {
	p          Params
	eps        float64 // DBSCAN radius, or OPTICS extraction cut
	maxEps     float64 // OPTICS only
	minSamples int
	tMid       float64 // mid_position only
}

// New validates p and resolves the clustering arguments.  DBSCAN defaults
// to eps p.Eps and min_samples 1.  OPTICS defaults to max_eps p.Eps,
// min_samples 2 and an extraction cut eps equal to max_eps.
func New(p Params) (*Clusterer, error) {
	bad := func(format string, a ...interface{}) error {
		return fmt.Errorf("%w: %s", config.ErrConfig, fmt.Sprintf(format, a...))
	}
	c := &Clusterer{p: p}
	switch p.Type {
	case config.ClusterAll:
		if p.VLim[1] == p.VLim[0] || p.AngLim[1] == p.AngLim[0] {
			return nil, bad("empty velocity or angle range")
		}
	case config.ClusterPosition:
	case config.ClusterMidPosition:
		if len(p.MJD) == 0 {
			return nil, bad("mid_position clustering needs epoch times")
		}
		t := append([]float64(nil), p.MJD...)
		floats.AddConst(-p.MJD[0], t)
		c.tMid = stats.Percentiles(t, 50)[0]
	default:
		return nil, bad("unknown cluster type %q", p.Type)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, bad("frame size %dx%d", p.Width, p.Height)
	}
	arg := func(k string, def float64) float64 {
		if v, ok := p.Args[k]; ok {
			return v
		}
		return def
	}
	switch p.Function {
	case config.FuncDBSCAN:
		if _, ok := p.Args["max_eps"]; ok {
			return nil, bad("max_eps does not apply to DBSCAN")
		}
		c.eps = arg("eps", p.Eps)
		c.minSamples = int(arg("min_samples", 1))
		if c.minSamples < 1 {
			return nil, bad("min_samples %d", c.minSamples)
		}
	case config.FuncOPTICS:
		c.maxEps = arg("max_eps", p.Eps)
		c.eps = arg("eps", c.maxEps)
		c.minSamples = int(arg("min_samples", 2))
		if c.minSamples < 2 {
			return nil, bad("OPTICS min_samples %d, need at least 2", c.minSamples)
		}
		if c.eps > c.maxEps {
			return nil, bad("OPTICS eps %g exceeds max_eps %g", c.eps, c.maxEps)
		}
	default:
		return nil, bad("unknown cluster function %q", p.Function)
	}
	if !(c.eps > 0) {
		return nil, bad("eps %g", c.eps)
	}
	return c, nil
}

// Features returns the feature vector of each trajectory.
func (c *Clusterer) Features(ts []search.Trajectory) [][]float64 {
	w, h := float64(c.p.Width), float64(c.p.Height)
	f := make([][]float64, len(ts))
	for i, t := range ts {
		switch c.p.Type {
		case config.ClusterAll:
			f[i] = []float64{
				t.X / w,
				t.Y / h,
				(t.Speed() - c.p.VLim[0]) / (c.p.VLim[1] - c.p.VLim[0]),
				(t.Angle() - c.p.AngLim[0]).Rad() / (c.p.AngLim[1] - c.p.AngLim[0]).Rad(),
			}
		case config.ClusterPosition:
			f[i] = []float64{t.X / w, t.Y / h}
		case config.ClusterMidPosition:
			x, y := t.At(c.tMid)
			f[i] = []float64{x / w, y / h}
		}
	}
	return f
}

// Labels clusters ts.  Equal labels mean the same cluster.
func (c *Clusterer) Labels(ts []search.Trajectory) []int {
	f := c.Features(ts)
	if c.p.Function == config.FuncOPTICS {
		return OPTICS(f, c.maxEps, c.minSamples, c.eps, c.p.Workers)
	}
	return DBSCAN(f, c.eps, c.minSamples, c.p.Workers)
}

// Representatives returns, in increasing order, the first position of each
// distinct label.  Noise is treated as one more label.
func Representatives(labels []int) []int {
	seen := map[int]bool{}
	reps := []int{}
	for i, l := range labels {
		if !seen[l] {
			seen[l] = true
			reps = append(reps, i)
		}
	}
	return reps
}

// Run clusters the selected results of set and narrows the selection to
// one representative per cluster.  It returns the number of clusters.
// With nothing selected the set is left unchanged.
func (c *Clusterer) Run(set *result.Set) (int, error) {
	ts := set.Final()
	if len(ts) == 0 {
		log.Info("no results to cluster")
		return 0, nil
	}
	start := time.Now()
	log.WithFields(log.Fields{
		"results":  len(ts),
		"type":     c.p.Type,
		"function": c.p.Function,
		"eps":      c.eps,
	}).Info("clustering")
	reps := Representatives(c.Labels(ts))
	if err := set.Narrow(reps); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"clusters": len(reps),
		"elapsed":  time.Since(start),
	}).Info("clustering done")
	return len(reps), nil
}
