// Public domain.

// Package stats has the small robust statistics used by the filters.
package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SigmaGCoeff returns the factor converting an interpercentile range into
// an estimate of standard deviation for Gaussian data,
//
//	1 / (Φ⁻¹(hi/100) - Φ⁻¹(lo/100))
//
// lo and hi are percentiles, 0 < lo < hi < 100.
func SigmaGCoeff(lo, hi float64) (float64, error) {
	if !(lo > 0 && lo < hi && hi < 100) {
		return 0, fmt.Errorf("invalid sigmaG percentiles [%g, %g]", lo, hi)
	}
	x1 := distuv.UnitNormal.Quantile(lo / 100)
	x2 := distuv.UnitNormal.Quantile(hi / 100)
	return 1 / (x2 - x1), nil
}

// Percentiles returns the values at percentiles ps of data, interpolating
// linearly between the two closest ranks.  Data need not be sorted and is
// not modified.  For empty data all results are NaN.
func Percentiles(data []float64, ps ...float64) []float64 {
	r := make([]float64, len(ps))
	if len(data) == 0 {
		for i := range r {
			r[i] = math.NaN()
		}
		return r
	}
	s := append([]float64(nil), data...)
	sort.Float64s(s)
	last := float64(len(s) - 1)
	for i, p := range ps {
		pos := p / 100 * last
		lo := math.Floor(pos)
		x := int(lo)
		if x >= len(s)-1 {
			r[i] = s[len(s)-1]
			continue
		}
		r[i] = s[x] + (pos-lo)*(s[x+1]-s[x])
	}
	return r
}

// CentralMoments returns the image moments of m about (rc, cc), up to
// order 2 in each axis.  mu[p][q] sums (row-rc)^p * (col-cc)^q * m(row,col).
func CentralMoments(m mat.Matrix, rc, cc float64) (mu [3][3]float64) {
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		dr := float64(r) - rc
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if v == 0 {
				continue
			}
			dc := float64(c) - cc
			pr := v
			for p := 0; p < 3; p++ {
				pq := pr
				for q := 0; q < 3; q++ {
					mu[p][q] += pq
					pq *= dc
				}
				pr *= dr
			}
		}
	}
	return
}
