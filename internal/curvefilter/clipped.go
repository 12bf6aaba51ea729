// Public domain.

package curvefilter

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/soniakeys/kbpost/internal/config"
	"github.com/soniakeys/kbpost/internal/parallel"
	"github.com/soniakeys/kbpost/search"
)

// ClippedAverageEngine selects epochs by the engine's clipped average.
type ClippedAverageEngine interface {
	LikelihoodEngine
	ClippedAverageIndices(psi, phi []float64, numClipped int, nSigma, lowerLHLimit float64) ([]int, error)
}

// ClippedAverage delegates epoch selection to the engine.  Of the
// NumClipped largest per epoch likelihoods, those more than NSigma standard
// deviations above the mean of the rest are dropped, as are epochs with
// likelihood below LowerLHLimit.
type ClippedAverage struct {
	Engine       ClippedAverageEngine
	NumClipped   int
	NSigma       float64
	LowerLHLimit float64
	Workers      int
}

func (f *ClippedAverage) Name() string { return config.FilterClippedAverage }

// Filter implements Filter.  A candidate with no surviving epochs gets
// likelihood -1.
func (f *ClippedAverage) Filter(psi, phi [][]float64) ([]Outcome, error) {
	start := time.Now()
	log.WithField("curves", len(psi)).Info("applying clipped average filtering")
	out, err := parallel.Map(f.Workers, len(psi), func(i int) (Outcome, error) {
		keep, err := f.Engine.ClippedAverageIndices(psi[i], phi[i],
			f.NumClipped, f.NSigma, f.LowerLHLimit)
		if err != nil {
			return Outcome{}, fmt.Errorf("clipped average of candidate %d: %w", i, err)
		}
		if len(keep) == 0 {
			return Outcome{Index: i, LH: -1}, nil
		}
		lh, err := f.Engine.Likelihood(subset(psi[i], keep), subset(phi[i], keep))
		if err != nil {
			return Outcome{}, fmt.Errorf("likelihood of candidate %d: %w", i, err)
		}
		return Outcome{Index: i, Keep: keep, LH: lh}, nil
	})
	if err != nil {
		return nil, err
	}
	log.WithField("elapsed", time.Since(start)).Info("completed filtering")
	return out, nil
}

// KalmanEngine runs the engine's batched Kalman outlier filter.
type KalmanEngine interface {
	KalmanIndices(psi, phi [][]float64) ([]search.KalmanResult, error)
}

// Kalman delegates the whole batch to the engine in a single call.
type Kalman struct {
	Engine KalmanEngine
}

func (f *Kalman) Name() string { return config.FilterKalman }

// Filter implements Filter.
func (f *Kalman) Filter(psi, phi [][]float64) ([]Outcome, error) {
	start := time.Now()
	log.WithField("curves", len(psi)).Info("applying Kalman filtering")
	kr, err := f.Engine.KalmanIndices(psi, phi)
	if err != nil {
		return nil, fmt.Errorf("kalman filter: %w", err)
	}
	if len(kr) != len(psi) {
		return nil, fmt.Errorf("kalman filter returned %d results for %d curves", len(kr), len(psi))
	}
	out := make([]Outcome, len(psi))
	seen := make([]bool, len(psi))
	for _, r := range kr {
		if r.Index < 0 || r.Index >= len(psi) || seen[r.Index] {
			return nil, fmt.Errorf("kalman filter returned bad index %d", r.Index)
		}
		seen[r.Index] = true
		keep := r.Keep
		if len(keep) == 0 {
			keep = nil
		}
		out[r.Index] = Outcome{Index: r.Index, Keep: keep, LH: r.LH}
	}
	log.WithField("elapsed", time.Since(start)).Info("completed filtering")
	return out, nil
}
