// Public domain.

package curvefilter_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/soniakeys/kbpost/internal/curvefilter"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/internal/synth"
	"github.com/soniakeys/kbpost/search"
)

func sigmaGParams(stat string) curvefilter.Params {
	return curvefilter.Params{
		Type:         "clipped_sigmaG",
		Workers:      3,
		Stat:         stat,
		Percentiles:  [2]float64{25, 75},
		Coeff:        .7413,
		SigmaGNSigma: 2,
	}
}

func newFilter(t *testing.T, p curvefilter.Params) curvefilter.Filter {
	f, err := curvefilter.New(p, synth.NewEngine(10, 10, nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func TestMasking(t *testing.T) {
	psi := []float64{1, 2, 3}
	phi := []float64{1, 0, 4}
	if f := curvefilter.Flux(psi, phi); !finite(f) || f[1] != 2e-9 {
		t.Fatal(f)
	}
	if l := curvefilter.LH(psi, phi); !finite(l) {
		t.Fatal(l)
	}
	if phi[1] != 0 {
		t.Fatal("input modified")
	}
}

func TestSigmaGOutlier(t *testing.T) {
	psi := []float64{10, 11, 9, 10, 12, 8, 10, 100, 10, 11}
	phi := make([]float64, len(psi))
	for i := range phi {
		phi[i] = 1
	}
	phi[3] = 0
	out, err := newFilter(t, sigmaGParams("lh")).Filter([][]float64{psi}, [][]float64{phi})
	if err != nil {
		t.Fatal(err)
	}
	// epoch 3 has lh 10/sqrt(1e9), epoch 7 is the outlier
	want := []int{0, 1, 2, 4, 5, 6, 8, 9}
	if !cmp.Equal(out[0].Keep, want) {
		t.Fatal(out[0].Keep)
	}
	if math.IsNaN(out[0].LH) || out[0].LH <= 0 {
		t.Fatal(out[0].LH)
	}
}

func TestSigmaGNaN(t *testing.T) {
	psi := []float64{10, math.NaN(), 9, 10, 11, 10, 10, 9, 11, 10}
	phi := []float64{1, 1, math.NaN(), 1, 1, 1, 1, 1, 1, 1}
	out, err := newFilter(t, sigmaGParams("flux")).Filter([][]float64{psi}, [][]float64{phi})
	if err != nil {
		t.Fatal(err)
	}
	if !finite([]float64{out[0].LH}) {
		t.Fatal(out[0].LH)
	}
	for _, k := range out[0].Keep {
		if k == 1 || k == 2 {
			t.Fatal("kept NaN epoch", out[0].Keep)
		}
	}
}

func TestSigmaGClipNegative(t *testing.T) {
	psi := []float64{0, 10, 12, 8, 10, -3, 11, 9}
	phi := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	p := sigmaGParams("lh")
	p.ClipNegative = true
	out, err := newFilter(t, p).Filter([][]float64{psi}, [][]float64{phi})
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{1, 2, 3, 4, 6, 7}; !cmp.Equal(out[0].Keep, want) {
		t.Fatal(out[0].Keep)
	}
}

func TestSigmaGNone(t *testing.T) {
	// constant curve, sigmaG is zero and the strict window is empty
	psi := []float64{5, 5, 5, 5}
	phi := []float64{1, 1, 1, 1}
	out, err := newFilter(t, sigmaGParams("both")).Filter([][]float64{psi}, [][]float64{phi})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Keep != nil || out[0].LH != 0 {
		t.Fatalf("%+v", out[0])
	}
}

func TestClippedAverageNone(t *testing.T) {
	f := newFilter(t, curvefilter.Params{
		Type:         "clipped_average",
		NumClipped:   5,
		ClipNSigma:   4,
		LowerLHLimit: -100,
	})
	out, err := f.Filter([][]float64{{1, 2}}, [][]float64{{0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Keep != nil || out[0].LH != -1 {
		t.Fatalf("%+v", out[0])
	}
}

type badKalman struct{ *synth.Engine }

func (badKalman) KalmanIndices(psi, phi [][]float64) ([]search.KalmanResult, error) {
	r := make([]search.KalmanResult, len(psi))
	return r, nil // every Index is 0
}

func TestKalmanBadIndex(t *testing.T) {
	f, err := curvefilter.New(curvefilter.Params{Type: "kalman"},
		badKalman{synth.NewEngine(10, 10, nil, nil)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Filter([][]float64{{1}, {2}}, [][]float64{{1}, {1}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewUnknown(t *testing.T) {
	e := synth.NewEngine(10, 10, nil, nil)
	for _, p := range []curvefilter.Params{
		{Type: "median"},
		{Type: "clipped_sigmaG", Stat: "snr", Coeff: .7413},
		{Type: "clipped_sigmaG", Stat: "lh"},
	} {
		if _, err := curvefilter.New(p, e); err == nil {
			t.Fatalf("%+v: expected error", p)
		}
	}
}

func TestAggregate(t *testing.T) {
	mjd := []float64{1, 2, 3, 4}
	psi := [][]float64{{1, 1, 1, 1}, {2, 2, 2, 2}, {3, 3, 3, 3}, {4, 4, 4, 4}}
	phi := [][]float64{{1, 1, 1, 1}, {1, 0, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}}
	ts := []search.Trajectory{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	// out of order; one below level, one kept, one with no epochs and
	// one with too few
	out := []curvefilter.Outcome{
		{Index: 3, Keep: []int{0, 1, 2}, LH: 9},
		{Index: 1, Keep: []int{0, 1, 3}, LH: 20},
		{Index: 0, Keep: nil, LH: 50},
		{Index: 2, Keep: []int{0, 2}, LH: 30},
	}
	set := result.New()
	n, err := curvefilter.Aggregate(set, out, ts, psi, phi, mjd, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || set.Len() != 1 || set.Results[0].X != 1 {
		t.Fatal(n, set.Results)
	}
	if !cmp.Equal(set.Times[0], []float64{1, 2, 4}) {
		t.Fatal(set.Times[0])
	}
	if !finite(set.LC[0]) {
		t.Fatal(set.LC[0])
	}
	if err := set.Check(len(mjd)); err != nil {
		t.Fatal(err)
	}

	out = []curvefilter.Outcome{{Index: 0, Keep: []int{0, 1, 7}, LH: 20}}
	_, err = curvefilter.Aggregate(result.New(), out, ts[:1], psi[:1], phi[:1], mjd, 10)
	if err == nil {
		t.Fatal("expected epoch range error")
	}
}
