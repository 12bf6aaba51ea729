// Public domain.

// Package curvefilter rejects outlying epochs from psi/phi light curves.
//
// Three interchangeable strategies implement Filter: clipped sigmaG,
// clipped average and Kalman.  Each returns one Outcome per input curve;
// Aggregate then folds the outcomes into a result.Set.
package curvefilter

import (
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/soniakeys/kbpost/internal/config"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/search"
)

// PhiSentinel replaces phi values of zero before any division.
const PhiSentinel = 1e9

// MinEpochs is the fewest surviving epochs a candidate may have.
const MinEpochs = 3

// Outcome is the filter result for the candidate at Index.  Keep lists the
// surviving epochs in increasing order; nil means none survived.
type Outcome struct {
	Index int
	Keep  []int
	LH    float64
}

// Filter is implemented by each strategy.  psi and phi hold one curve per
// candidate; the returned outcomes are ordered by Index.
type Filter interface {
	Filter(psi, phi [][]float64) ([]Outcome, error)
	Name() string
}

// Params selects and tunes a strategy.
type Params struct {
	Type    string // clipped_sigmaG, clipped_average or kalman
	Workers int

	// clipped_sigmaG
	Stat         string     // lh, flux or both
	Percentiles  [2]float64 // low and high percentile
	Coeff        float64    // from stats.SigmaGCoeff(Percentiles)
	SigmaGNSigma float64
	ClipNegative bool

	// clipped_average
	NumClipped   int
	ClipNSigma   float64
	LowerLHLimit float64
}

// New returns the strategy named by p.Type.
func New(p Params, e search.Engine) (Filter, error) {
	switch p.Type {
	case config.FilterSigmaG:
		st, err := parseStat(p.Stat)
		if err != nil {
			return nil, err
		}
		if !(p.Coeff > 0) {
			return nil, fmt.Errorf("sigmaG coefficient %g not positive", p.Coeff)
		}
		return &SigmaG{
			Engine:       e,
			Stat:         st,
			Lo:           p.Percentiles[0],
			Hi:           p.Percentiles[1],
			Coeff:        p.Coeff,
			NSigma:       p.SigmaGNSigma,
			ClipNegative: p.ClipNegative,
			Workers:      p.Workers,
		}, nil
	case config.FilterClippedAverage:
		return &ClippedAverage{
			Engine:       e,
			NumClipped:   p.NumClipped,
			NSigma:       p.ClipNSigma,
			LowerLHLimit: p.LowerLHLimit,
			Workers:      p.Workers,
		}, nil
	case config.FilterKalman:
		return &Kalman{Engine: e}, nil
	}
	return nil, fmt.Errorf("unknown filter type %q", p.Type)
}

// MaskPhi returns a copy of phi with zeros replaced by PhiSentinel.
func MaskPhi(phi []float64) []float64 {
	m := make([]float64, len(phi))
	for i, v := range phi {
		if v == 0 {
			v = PhiSentinel
		}
		m[i] = v
	}
	return m
}

// Flux returns psi/phi per epoch with phi masked.
func Flux(psi, phi []float64) []float64 {
	f := make([]float64, len(psi))
	for i, v := range MaskPhi(phi) {
		f[i] = psi[i] / v
	}
	return f
}

// LH returns psi/sqrt(phi) per epoch with phi masked.
func LH(psi, phi []float64) []float64 {
	l := make([]float64, len(psi))
	for i, v := range MaskPhi(phi) {
		l[i] = psi[i] / math.Sqrt(v)
	}
	return l
}

func subset(c []float64, keep []int) []float64 {
	s := make([]float64, len(keep))
	for i, x := range keep {
		s[i] = c[x]
	}
	return s
}

// Aggregate appends candidates that survived filtering to set.
//
// out holds outcomes for the batch ts, psi, phi in any order.  Candidates
// with no surviving epochs, fewer than MinEpochs, or a recomputed likelihood
// below lhLevel are dropped.  Survivors are appended in batch order.
// It returns the number appended.
func Aggregate(set *result.Set, out []Outcome, ts []search.Trajectory, psi, phi [][]float64, mjd []float64, lhLevel float64) (int, error) {
	if len(out) != len(ts) {
		return 0, fmt.Errorf("%d filter outcomes for %d candidates", len(out), len(ts))
	}
	byIndex := append([]Outcome(nil), out...)
	sort.Slice(byIndex, func(i, j int) bool { return byIndex[i].Index < byIndex[j].Index })
	kept := 0
	for i, o := range byIndex {
		if o.Index != i {
			return kept, fmt.Errorf("filter outcome index %d, want %d", o.Index, i)
		}
		if o.Keep == nil || len(o.Keep) < MinEpochs || o.LH < lhLevel {
			continue
		}
		for _, e := range o.Keep {
			if e < 0 || e >= len(mjd) {
				return kept, fmt.Errorf("candidate %d: epoch %d outside [0,%d)", i, e, len(mjd))
			}
		}
		set.Append(ts[i], o.LH, Flux(psi[i], phi[i]), o.Keep,
			subset(mjd, o.Keep), psi[i], phi[i])
		kept++
	}
	log.WithFields(log.Fields{
		"candidates": len(ts),
		"kept":       kept,
	}).Info("aggregated filter results")
	return kept, nil
}
