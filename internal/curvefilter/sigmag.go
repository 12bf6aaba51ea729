// Public domain.

package curvefilter

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/soniakeys/kbpost/internal/config"
	"github.com/soniakeys/kbpost/internal/parallel"
	"github.com/soniakeys/kbpost/internal/stats"
)

// Stat is the per epoch statistic clipped by SigmaG.
type Stat int

const (
	StatLH   Stat = iota // psi/sqrt(phi)
	StatFlux             // psi/phi
	StatBoth             // epochs passing both
)

func parseStat(s string) (Stat, error) {
	switch s {
	case config.StatLH:
		return StatLH, nil
	case config.StatFlux:
		return StatFlux, nil
	case config.StatBoth:
		return StatBoth, nil
	}
	return 0, fmt.Errorf("unknown sigmaG statistic %q", s)
}

// LikelihoodEngine recomputes a likelihood from a subset of a curve.
type LikelihoodEngine interface {
	Likelihood(psi, phi []float64) (float64, error)
}

// SigmaG clips epochs farther than NSigma robust standard deviations from
// the median of the chosen statistic.  The robust standard deviation is
// Coeff times the distance between the Lo and Hi percentiles.
type SigmaG struct {
	Engine       LikelihoodEngine
	Stat         Stat
	Lo, Hi       float64
	Coeff        float64
	NSigma       float64
	ClipNegative bool
	Workers      int
}

func (f *SigmaG) Name() string { return config.FilterSigmaG }

// Filter implements Filter.
func (f *SigmaG) Filter(psi, phi [][]float64) ([]Outcome, error) {
	start := time.Now()
	log.WithFields(log.Fields{
		"curves":      len(psi),
		"percentiles": fmt.Sprintf("[%g,%g]", f.Lo, f.Hi),
		"coeff":       fmt.Sprintf("%.4f", f.Coeff),
	}).Info("applying clipped sigmaG filtering")
	out, err := parallel.Map(f.Workers, len(psi), func(i int) (Outcome, error) {
		return f.curve(i, psi[i], phi[i])
	})
	if err != nil {
		return nil, err
	}
	log.WithField("elapsed", time.Since(start)).Info("completed filtering")
	return out, nil
}

// curve filters a single candidate.  It reads only its arguments and the
// immutable fields of f.
func (f *SigmaG) curve(i int, psi, phi []float64) (Outcome, error) {
	ps := make([]float64, len(psi))
	ph := make([]float64, len(phi))
	for k := range psi {
		ps[k], ph[k] = psi[k], phi[k]
		if math.IsNaN(ps[k]) {
			ps[k] = 0
		}
		if math.IsNaN(ph[k]) {
			ph[k] = PhiSentinel
		}
	}
	var keep []int
	switch f.Stat {
	case StatLH:
		keep = f.clip(LH(ps, ph))
	case StatFlux:
		keep = f.clip(Flux(ps, ph))
	case StatBoth:
		keep = intersect(f.clip(LH(ps, ph)), f.clip(Flux(ps, ph)))
	}
	if len(keep) == 0 {
		return Outcome{Index: i}, nil
	}
	lh, err := f.Engine.Likelihood(subset(ps, keep), subset(ph, keep))
	if err != nil {
		return Outcome{}, fmt.Errorf("likelihood of candidate %d: %w", i, err)
	}
	return Outcome{Index: i, Keep: keep, LH: lh}, nil
}

// clip returns the indexes of v within NSigma sigmaG of the median.
// With ClipNegative percentiles use only positive values and zero values
// are never kept.
func (f *SigmaG) clip(v []float64) []int {
	sample := v
	if f.ClipNegative {
		sample = nil
		for _, x := range v {
			if x > 0 {
				sample = append(sample, x)
			}
		}
	}
	p := stats.Percentiles(sample, f.Lo, 50, f.Hi)
	n := f.NSigma * f.Coeff * (p[2] - p[0])
	lo, hi := p[1]-n, p[1]+n
	var keep []int
	for k, x := range v {
		if f.ClipNegative && x == 0 {
			continue
		}
		if x > lo && x < hi {
			keep = append(keep, k)
		}
	}
	return keep
}

// intersect returns indexes present in both sorted lists.
func intersect(a, b []int) []int {
	var r []int
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			r = append(r, a[i])
			i++
			j++
		}
	}
	return r
}
