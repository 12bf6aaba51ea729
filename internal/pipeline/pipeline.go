// Public domain.

// Package pipeline composes the post-processing stages.
//
// Results are streamed and light curve filtered, then stamp filtered, then
// clustered.  Each stage narrows what the previous one left.
package pipeline

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/mat"

	"github.com/soniakeys/kbpost/internal/cluster"
	"github.com/soniakeys/kbpost/internal/config"
	"github.com/soniakeys/kbpost/internal/curvefilter"
	"github.com/soniakeys/kbpost/internal/parallel"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/internal/stamp"
	"github.com/soniakeys/kbpost/internal/stats"
	"github.com/soniakeys/kbpost/internal/stream"
	"github.com/soniakeys/kbpost/search"
)

// Summary counts what each stage did.
type Summary struct {
	Stream     stream.Stats
	Filter     string
	StampRun   bool
	StampKept  int
	ClusterRun bool
	Clusters   int
	Final      int
	Elapsed    time.Duration
}

// Run post-processes the results of e, whose epochs are at times mjd,
// as configured by c.
func Run(e search.Engine, mjd []float64, c *config.Config) (*result.Set, *Summary, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	fp := curvefilter.Params{
		Type:         c.FilterType,
		Workers:      c.NumCores,
		Stat:         c.SigmaGFilterType,
		Percentiles:  c.SigmaGLims,
		SigmaGNSigma: c.SigmaGNSigma,
		ClipNegative: c.ClipNegative,
		NumClipped:   c.NumClipped,
		ClipNSigma:   c.ClippedAveNSigma,
		LowerLHLimit: c.LowerLHLimit,
	}
	if c.FilterType == config.FilterSigmaG {
		coeff, err := stats.SigmaGCoeff(c.SigmaGLims[0], c.SigmaGLims[1])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
		}
		fp.Coeff = coeff
	}
	f, err := curvefilter.New(fp, e)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	// build the clusterer up front so a bad configuration fails before
	// any work is done
	var cl *cluster.Clusterer
	if c.DoClustering {
		w, h := e.Dims()
		lo, hi := c.AngleLimits()
		cl, err = cluster.New(cluster.Params{
			Type:     c.ClusterType,
			Function: c.ClusterFunction,
			Eps:      c.Eps,
			Args:     c.ClusterArgs,
			Width:    w,
			Height:   h,
			VLim:     c.VLim,
			AngLim:   [2]unit.Angle{lo, hi},
			MJD:      mjd,
			Workers:  c.NumCores,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	sum := &Summary{Filter: f.Name()}
	set := result.New()
	sum.Stream, err = stream.Load(e, f, set, mjd, stream.Params{
		LHLevel:   c.LHLevel,
		MaxLH:     c.MaxLH,
		ChunkSize: c.ChunkSize,
	})
	if err != nil {
		return nil, nil, err
	}

	if c.DoStampFilter {
		v := stamp.Validator{
			Engine:    e,
			Radius:    c.StampRadius,
			Mode:      c.Stamp(),
			ChunkSize: c.StampChunkSize,
			Workers:   c.NumCores,
			Limits: stamp.Limits{
				CenterThresh: c.CenterThresh,
				PeakOffset:   c.PeakOffset,
				MomLims:      c.MomLims,
			},
		}
		sum.StampRun = set.Len() > 0
		if sum.StampKept, err = v.Run(set, len(mjd)); err != nil {
			return nil, nil, err
		}
	}

	// a stamp stage that saw no input leaves nothing to cluster
	if cl != nil && set.Len() > 0 {
		sum.ClusterRun = true
		if sum.Clusters, err = cl.Run(set); err != nil {
			return nil, nil, err
		}
	}

	if c.AllStamps {
		if err := CollectAllStamps(e, set, c.StampRadius, c.NumCores); err != nil {
			return nil, nil, err
		}
	}
	if err := set.Check(len(mjd)); err != nil {
		return nil, nil, fmt.Errorf("result set: %w", err)
	}
	sum.Final = len(set.Selected())
	sum.Elapsed = time.Since(start)
	log.WithFields(log.Fields{
		"results": set.Len(),
		"final":   sum.Final,
		"elapsed": sum.Elapsed,
	}).Info("post-processing done")
	return set, sum, nil
}

// SciStamper returns the per epoch stamps of a trajectory.
type SciStamper interface {
	SciStamps(t search.Trajectory, radius int) ([]*mat.Dense, error)
}

// CollectAllStamps stores the per epoch science stamps of each selected
// result in set.AllStamps.
func CollectAllStamps(e SciStamper, set *result.Set, radius, workers int) error {
	ts := set.Final()
	as, err := parallel.Map(workers, len(ts), func(i int) ([]*mat.Dense, error) {
		st, err := e.SciStamps(ts[i], radius)
		if err != nil {
			return nil, fmt.Errorf("science stamps of %v: %w", ts[i], err)
		}
		return st, nil
	})
	if err != nil {
		return err
	}
	set.AllStamps = as
	log.WithField("results", len(ts)).Debug("collected science stamps")
	return nil
}
