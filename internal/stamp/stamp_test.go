// Public domain.

package stamp_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"

	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/internal/stamp"
	"github.com/soniakeys/kbpost/internal/synth"
	"github.com/soniakeys/kbpost/search"
)

var limits = stamp.Limits{
	CenterThresh: .03,
	PeakOffset:   [2]float64{2, 2},
	MomLims:      [5]float64{35.5, 35.5, 1, .25, .25},
}

// gaussian returns a noiseless stamp with a Gaussian at row r0, col c0.
func gaussian(radius int, r0, c0, sigma float64) *mat.Dense {
	side := 2*radius + 1
	m := mat.NewDense(side, side, nil)
	for r := 0; r < side; r++ {
		for c := 0; c < side; c++ {
			dr, dc := float64(r)-r0, float64(c)-c0
			m.Set(r, c, math.Exp(-(dr*dr+dc*dc)/(2*sigma*sigma)))
		}
	}
	return m
}

func TestClean(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{math.NaN(), 1, 3, -1})
	c := stamp.Clean(m)
	want := []float64{1. / 7, 2. / 7, 4. / 7, 0}
	if !cmp.Equal(c.RawMatrix().Data, want) {
		t.Fatal(c.RawMatrix().Data)
	}
	if !math.IsNaN(m.At(0, 0)) {
		t.Fatal("input modified")
	}
	z := stamp.Clean(mat.NewDense(2, 2, nil))
	if mat.Sum(z) != 0 {
		t.Fatal("zero stamp", z)
	}
}

func TestTest(t *testing.T) {
	const r = 10
	if !limits.Test(gaussian(r, r, r, 1.5), r) {
		t.Fatal("centered Gaussian rejected")
	}
	if limits.Test(gaussian(r, r+3, r, 1.5), r) {
		t.Fatal("Gaussian three rows off center accepted")
	}
	if limits.Test(mat.NewDense(2*r+1, 2*r+1, nil), r) {
		t.Fatal("blank stamp accepted")
	}
	// broad enough that no pixel holds 3% of the flux
	wide := gaussian(r, r, r, 3)
	if limits.Test(wide, r) {
		t.Fatal("wide Gaussian accepted")
	}
	l := limits
	l.CenterThresh = 0
	if !l.Test(wide, r) {
		t.Fatal("wide Gaussian rejected with center threshold off")
	}
}

func TestCenterFraction(t *testing.T) {
	const r = 10
	g := gaussian(r, r, r, 1.5)
	// peak 1 over a total near 2*pi*1.5*1.5
	if f := stamp.CenterFraction(g); math.Abs(f-1/(2*math.Pi*1.5*1.5)) > 1e-4 {
		t.Fatal(f)
	}
	// the same Gaussian, peak 10, on a flat background of 1
	faint := mat.NewDense(2*r+1, 2*r+1, nil)
	faint.Scale(10, g)
	faint.Apply(func(_, _ int, v float64) float64 { return v + 1 }, faint)
	if f := stamp.CenterFraction(faint); f > .02 {
		t.Fatal(f)
	}
	if limits.Test(faint, r) {
		t.Fatal("faint Gaussian on background accepted")
	}
	l := limits
	l.CenterThresh = 0
	if !l.Test(faint, r) {
		t.Fatal("faint Gaussian rejected by shape")
	}
	// NaNs count as zero
	n := mat.DenseCopyOf(g)
	n.Set(0, 0, math.NaN())
	if f := stamp.CenterFraction(n); math.IsNaN(f) || f < .07 {
		t.Fatal(f)
	}
	if f := stamp.CenterFraction(mat.NewDense(3, 3, nil)); !math.IsNaN(f) {
		t.Fatal(f)
	}
}

func TestPeakTie(t *testing.T) {
	// equal peaks at center and two columns right: the farther one counts
	m := mat.NewDense(5, 5, nil)
	m.Set(2, 2, 1)
	m.Set(2, 4, 1)
	l := stamp.Limits{PeakOffset: [2]float64{2, 2}, MomLims: [5]float64{99, 99, 99, 99, 99}}
	if l.Test(m, 2) {
		t.Fatal("tied peak at offset 2 accepted")
	}
	l.PeakOffset[1] = 3
	if !l.Test(m, 2) {
		t.Fatal("tied peak rejected with offset limit 3")
	}
}

const nEpochs = 10

func testSet(cs []synth.Candidate) (*synth.Engine, *result.Set) {
	mjd := make([]float64, nEpochs)
	for i := range mjd {
		mjd[i] = 58000 + .05*float64(i)
	}
	e := synth.NewEngine(200, 200, mjd, cs)
	set := result.New()
	keep := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	for _, c := range cs {
		set.Append(c.Traj, c.Traj.LH, c.Psi, keep, mjd, c.Psi, c.Phi)
	}
	return e, set
}

func candidates() []synth.Candidate {
	good := synth.Steady(20, 20, 50, nEpochs)
	off := synth.Steady(40, 20, 45, nEpochs)
	off.Truth.X += 4 // real object is four pixels away
	noise := synth.Steady(60, 20, 40, nEpochs)
	noise.Kind = synth.Noise
	noise.StampFlux = 0
	good2 := synth.Steady(80, 20, 35, nEpochs)
	return []synth.Candidate{good, off, noise, good2}
}

func TestRun(t *testing.T) {
	for _, mode := range []search.StampMode{search.StampSum, search.StampMedian} {
		for _, chunk := range []int{1, 3, 100} {
			e, set := testSet(candidates())
			v := stamp.Validator{
				Engine:    e,
				Radius:    10,
				Mode:      mode,
				ChunkSize: chunk,
				Workers:   2,
				Limits:    limits,
			}
			n, err := v.Run(set, nEpochs)
			if err != nil {
				t.Fatal(err)
			}
			if want := []int{0, 3}; n != 2 || !cmp.Equal(set.FinalResults, want) {
				t.Fatal(mode, chunk, set.FinalResults)
			}
			if len(set.Stamps) != 2 {
				t.Fatal(len(set.Stamps))
			}
			if err := set.Check(nEpochs); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestRunEmpty(t *testing.T) {
	e, set := testSet(nil)
	v := stamp.Validator{Engine: e, Radius: 10, ChunkSize: 10, Limits: limits}
	n, err := v.Run(set, nEpochs)
	if err != nil || n != 0 {
		t.Fatal(n, err)
	}
	if set.FinalResults != nil {
		t.Fatal("final results set")
	}
}

type maskRecorder struct {
	*synth.Engine
	masks [][]bool
}

func (m *maskRecorder) Stamps(ts []search.Trajectory, radius int, mode search.StampMode, masks [][]bool) ([]*mat.Dense, error) {
	m.masks = append(m.masks, masks...)
	return m.Engine.Stamps(ts, radius, mode, masks)
}

func TestMasks(t *testing.T) {
	e, set := testSet(candidates()[:1])
	set.LCIndex[0] = []int{1, 4, 5}
	set.Times[0] = []float64{0, 0, 0}
	rec := &maskRecorder{Engine: e}
	v := stamp.Validator{Engine: rec, Radius: 10, Mode: search.StampMean, ChunkSize: 10, Limits: limits}
	if _, err := v.Run(set, nEpochs); err != nil {
		t.Fatal(err)
	}
	want := [][]bool{{false, true, false, false, true, true, false, false, false, false}}
	if !cmp.Equal(rec.masks, want) {
		t.Fatal(rec.masks)
	}
}
