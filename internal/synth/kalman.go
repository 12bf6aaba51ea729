// Public domain.

package synth

import (
	"math"
	"sort"
)

// kalman1d tracks a constant flux through noisy per epoch measurements.
// The state is a random walk with process noise q; each measurement
// carries its own variance.
type kalman1d struct {
	mu, p float64 // state and its variance
	q     float64
}

func (k *kalman1d) predict() {
	k.p += k.q
}

// update folds in measurement z of variance r.
func (k *kalman1d) update(z, r float64) {
	g := k.p / (k.p + r)
	k.mu += g * (z - k.mu)
	k.p *= 1 - g
}

// kalmanPass runs the filter over flux in the order given by idx and
// returns, for each position of idx, the residual of the measurement
// against the prediction made before it, in units of its expected spread.
// Measurements with residuals of nSigma or more are not folded in.
func kalmanPass(flux, fvar []float64, idx []int, q, nSigma float64) []float64 {
	z := make([]float64, len(idx))
	if len(idx) == 0 {
		return z
	}
	k := kalman1d{mu: flux[idx[0]], p: fvar[idx[0]], q: q}
	for n, i := range idx[1:] {
		k.predict()
		z[n+1] = math.Abs(flux[i]-k.mu) / math.Sqrt(k.p+fvar[i])
		if z[n+1] < nSigma {
			k.update(flux[i], fvar[i])
		}
	}
	return z
}

// kalmanKeep selects epochs consistent with a forward or a backward
// Kalman pass, whichever keeps more.
func kalmanKeep(psi, phi []float64, nSigma float64) []int {
	var idx []int
	flux := make([]float64, len(psi))
	fvar := make([]float64, len(psi))
	for i := range psi {
		if phi[i] == 0 || math.IsNaN(phi[i]) || math.IsNaN(psi[i]) {
			continue
		}
		flux[i] = psi[i] / phi[i]
		fvar[i] = 1 / phi[i]
		idx = append(idx, i)
	}
	best := []int(nil)
	for _, rev := range []bool{false, true} {
		order := append([]int(nil), idx...)
		if rev {
			for l, r := 0, len(order)-1; l < r; l, r = l+1, r-1 {
				order[l], order[r] = order[r], order[l]
			}
		}
		z := kalmanPass(flux, fvar, order, 1, nSigma)
		var keep []int
		for n, i := range order {
			if z[n] < nSigma {
				keep = append(keep, i)
			}
		}
		if len(keep) > len(best) {
			best = keep
		}
	}
	sort.Ints(best)
	return best
}
