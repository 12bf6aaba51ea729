// Public domain.

// Package stamp validates candidates by the shape of their coadded stamps.
//
// A real object coadded along its own trajectory is a compact point spread
// function at the center of the stamp.  Test checks the low order central
// moments of the normalized stamp, the position of its brightest pixel and
// how much of the flux that pixel holds.
package stamp

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/soniakeys/kbpost/internal/parallel"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/internal/stats"
	"github.com/soniakeys/kbpost/search"
)

// Limits are the acceptance thresholds of Test.
type Limits struct {
	// CenterThresh is the fraction of total flux the brightest pixel must
	// exceed, as given by CenterFraction on the stamp before cleaning.
	// Zero disables the check.
	CenterThresh float64
	// PeakOffset bounds the row and column distance of the brightest pixel
	// from the center.
	PeakOffset [2]float64
	// MomLims bound mu20, mu02, |mu11|, |mu10| and |mu01| in that order.
	MomLims [5]float64
}

// Clean returns a copy of m with NaNs zeroed, the minimum subtracted and,
// when the remaining sum is nonzero, scaled to unit sum.
func Clean(m mat.Matrix) *mat.Dense {
	d := mat.DenseCopyOf(m)
	d.Apply(func(_, _ int, v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return v
	}, d)
	floor := mat.Min(d)
	d.Apply(func(_, _ int, v float64) float64 { return v - floor }, d)
	if s := mat.Sum(d); s != 0 {
		d.Scale(1/s, d)
	}
	return d
}

// peak returns the value of the brightest pixel of m and its row and column
// offsets from (rc, cc).  Where several pixels share the maximum, each
// offset is the largest among them.
func peak(m mat.Matrix, rc, cc int) (top float64, dr, dc int) {
	rows, cols := m.Dims()
	top = math.Inf(-1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			ar, ac := abs(r-rc), abs(c-cc)
			switch {
			case v > top:
				top, dr, dc = v, ar, ac
			case v == top:
				if ar > dr {
					dr = ar
				}
				if ac > dc {
					dc = ac
				}
			}
		}
	}
	return
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Test reports whether stamp m, of side 2*radius+1, looks like a point
// source centered on the stamp.  m is not modified.
func (l *Limits) Test(m mat.Matrix, radius int) bool {
	s := Clean(m)
	mu := stats.CentralMoments(s, float64(radius), float64(radius))
	if !(mu[2][0] < l.MomLims[0] &&
		mu[0][2] < l.MomLims[1] &&
		math.Abs(mu[1][1]) < l.MomLims[2] &&
		math.Abs(mu[1][0]) < l.MomLims[3] &&
		math.Abs(mu[0][1]) < l.MomLims[4]) {
		return false
	}
	_, dr, dc := peak(s, radius, radius)
	if !(float64(dr) < l.PeakOffset[0] && float64(dc) < l.PeakOffset[1]) {
		return false
	}
	return l.CenterThresh == 0 || CenterFraction(m) > l.CenterThresh
}

// CenterFraction returns the largest pixel of m divided by the sum of m,
// NaNs counting as zero.  No background is subtracted.  The result is NaN
// when the sum is zero.
func CenterFraction(m mat.Matrix) float64 {
	d := mat.DenseCopyOf(m)
	d.Apply(func(_, _ int, v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return v
	}, d)
	s := mat.Sum(d)
	if s == 0 {
		return math.NaN()
	}
	d.Scale(1/s, d)
	return mat.Max(d)
}

// Engine produces coadded stamps.
type Engine interface {
	Stamps(ts []search.Trajectory, radius int, mode search.StampMode, masks [][]bool) ([]*mat.Dense, error)
}

// Validator runs Test over the selected results of a set.
type Validator struct {
	Engine    Engine
	Radius    int
	Mode      search.StampMode
	ChunkSize int
	Workers   int
	Limits
}

// Run tests the stamps of the selected results of set, nEpochs being the
// number of epochs, and narrows the selection to those passing.  Accepted
// stamps are stored in set.Stamps.  With nothing selected the set is left
// unchanged.  It returns the number accepted.
func (v *Validator) Run(set *result.Set, nEpochs int) (int, error) {
	sel := set.Selected()
	if len(sel) == 0 {
		log.Info("no results for stamp filtering")
		return 0, nil
	}
	if v.ChunkSize <= 0 {
		return 0, fmt.Errorf("stamp chunk size %d", v.ChunkSize)
	}
	start := time.Now()
	log.WithFields(log.Fields{
		"results": len(sel),
		"type":    v.Mode,
		"radius":  v.Radius,
	}).Info("stamp filtering")
	keep := []int{}
	var stamps []*mat.Dense
	for lo := 0; lo < len(sel); lo += v.ChunkSize {
		hi := min(lo+v.ChunkSize, len(sel))
		idx := sel[lo:hi]
		ts := make([]search.Trajectory, len(idx))
		for i, x := range idx {
			ts[i] = set.Results[x]
		}
		var masks [][]bool
		if v.Mode.NeedsMask() {
			masks = make([][]bool, len(idx))
			for i, x := range idx {
				masks[i] = make([]bool, nEpochs)
				for _, e := range set.LCIndex[x] {
					masks[i][e] = true
				}
			}
		}
		st, err := v.Engine.Stamps(ts, v.Radius, v.Mode, masks)
		if err != nil {
			return 0, fmt.Errorf("stamps of results %d to %d: %w", lo, hi, err)
		}
		if len(st) != len(ts) {
			return 0, fmt.Errorf("%d stamps for %d results", len(st), len(ts))
		}
		side := 2*v.Radius + 1
		ok, err := parallel.Map(v.Workers, len(st), func(i int) (bool, error) {
			if r, c := st[i].Dims(); r != side || c != side {
				return false, fmt.Errorf("stamp %d is %dx%d, want %dx%d", lo+i, r, c, side, side)
			}
			return v.Test(st[i], v.Radius), nil
		})
		if err != nil {
			return 0, err
		}
		n := 0
		for i, pass := range ok {
			if pass {
				keep = append(keep, idx[i])
				stamps = append(stamps, st[i])
				n++
			}
		}
		log.WithFields(log.Fields{
			"start": lo,
			"kept":  n,
		}).Debug("stamp chunk done")
	}
	if err := set.SetFinal(keep, stamps); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"kept":    len(keep),
		"elapsed": time.Since(start),
	}).Info("stamp filtering done")
	return len(keep), nil
}
