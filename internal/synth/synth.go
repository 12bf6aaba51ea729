// Public domain.

// Package synth is an in-memory search.Engine over synthetic candidates.
//
// It stands in for the image search engine in tests and in the simulate
// command.  Candidates are true moving objects, near duplicate detections
// of them, and noise detections with a spurious bright epoch.  Stamps are
// rendered on demand from a Gaussian point spread function.
package synth

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/kbpost/internal/parallel"
	"github.com/soniakeys/kbpost/internal/stats"
	"github.com/soniakeys/kbpost/search"
)

// Kind tells what a synthetic candidate really is.
type Kind int

const (
	Object    Kind = iota // a real mover
	Duplicate             // a real mover found with perturbed parameters
	Noise                 // nothing there
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case Duplicate:
		return "duplicate"
	case Noise:
		return "noise"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Candidate is a synthetic detection with its curves and enough truth to
// render stamps.
type Candidate struct {
	Traj     search.Trajectory
	Psi, Phi []float64
	Kind     Kind

	// Truth is the trajectory of the real object for Object and Duplicate.
	Truth      search.Trajectory
	StampFlux  float64 // total flux of the object in one epoch stamp
	PSFSigma   float64 // pixels
	StampNoise float64 // per pixel standard deviation
	StampSky   float64 // per pixel background
}

// Engine implements search.Engine.
type Engine struct {
	width, height int
	mjd           []float64
	cands         []Candidate
	byTraj        map[search.Trajectory]int
	seed          uint64

	mu      sync.Mutex
	fetches []int
}

// NewEngine returns an engine serving cs in the order given.  Tests use this
// to control exactly what Fetch returns.
func NewEngine(width, height int, mjd []float64, cs []Candidate) *Engine {
	e := &Engine{
		width:  width,
		height: height,
		mjd:    mjd,
		cands:  cs,
		byTraj: make(map[search.Trajectory]int, len(cs)),
		seed:   1,
	}
	for i, c := range cs {
		e.byTraj[c.Traj] = i
	}
	return e
}

// Config parameterizes New.
type Config struct {
	Width, Height int
	Epochs        int
	Start         time.Time // time of first epoch
	Cadence       float64   // days between epochs
	Objects       int
	Duplicates    int // per object
	Noise         int
	FluxLo        float64 // per epoch flux range of objects, curve units
	FluxHi        float64
	VLo, VHi      float64 // pixels per day
	StampFlux     float64
	Seed          uint64
}

// DefaultConfig returns a small simulated search.
func DefaultConfig() Config {
	return Config{
		Width:      512,
		Height:     512,
		Epochs:     20,
		Start:      time.Date(2019, 4, 2, 3, 0, 0, 0, time.UTC),
		Cadence:    .02,
		Objects:    10,
		Duplicates: 4,
		Noise:      200,
		FluxLo:     5,
		FluxHi:     15,
		VLo:        92,
		VHi:        526,
		StampFlux:  500,
		Seed:       3,
	}
}

// Epochs returns the MJDs of n epochs starting at start, cadence days apart.
func Epochs(start time.Time, n int, cadence float64) []float64 {
	mjd0 := julian.TimeToJD(start) - search.MJDOffset
	mjd := make([]float64, n)
	for i := range mjd {
		mjd[i] = mjd0 + float64(i)*cadence
	}
	return mjd
}

// New generates candidates per c and returns an engine serving them by
// descending likelihood.
func New(c Config) *Engine {
	rnd := rand.New(&rand.PCGSource{})
	rnd.Seed(c.Seed)
	mjd := Epochs(c.Start, c.Epochs, c.Cadence)
	var cs []Candidate
	uniform := func(lo, hi float64) float64 { return lo + (hi-lo)*rnd.Float64() }
	for o := 0; o < c.Objects; o++ {
		speed := uniform(c.VLo, c.VHi)
		ang := uniform(-math.Pi/15, math.Pi/15)
		truth := search.Trajectory{
			X:  uniform(0, float64(c.Width)),
			Y:  uniform(0, float64(c.Height)),
			VX: speed * math.Cos(ang),
			VY: speed * math.Sin(ang),
		}
		flux := uniform(c.FluxLo, c.FluxHi)
		psi, phi := curves(rnd, c.Epochs, flux, true)
		cs = append(cs, candidate(Object, truth, truth, psi, phi, c.StampFlux))
		for d := 0; d < c.Duplicates; d++ {
			dup := truth
			dup.X += uniform(-1, 1)
			dup.Y += uniform(-1, 1)
			dup.VX += uniform(-2, 2)
			dup.VY += uniform(-2, 2)
			dpsi := make([]float64, len(psi))
			floats.ScaleTo(dpsi, uniform(.85, .98), psi)
			cs = append(cs, candidate(Duplicate, dup, truth, dpsi, append([]float64(nil), phi...), c.StampFlux))
		}
	}
	for n := 0; n < c.Noise; n++ {
		speed := uniform(c.VLo, c.VHi)
		ang := uniform(-math.Pi/15, math.Pi/15)
		t := search.Trajectory{
			X:  uniform(0, float64(c.Width)),
			Y:  uniform(0, float64(c.Height)),
			VX: speed * math.Cos(ang),
			VY: speed * math.Sin(ang),
		}
		psi, phi := curves(rnd, c.Epochs, 0, false)
		// one bright epoch, a cosmic ray or a blend
		s := rnd.Intn(c.Epochs)
		psi[s] += phi[s] * uniform(40, 80)
		cs = append(cs, candidate(Noise, t, search.Trajectory{}, psi, phi, 0))
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Traj.LH > cs[j].Traj.LH })
	e := NewEngine(c.Width, c.Height, mjd, cs)
	e.seed = c.Seed
	return e
}

// curves generates psi and phi for a constant flux.  With outlier set one
// epoch is corrupted downward.  One epoch in ten on average is fully
// masked, phi and psi both zero.
func curves(rnd *rand.Rand, n int, flux float64, outlier bool) (psi, phi []float64) {
	psi = make([]float64, n)
	phi = make([]float64, n)
	for i := range psi {
		if rnd.Float64() < .1 {
			continue
		}
		sig := .8 + .4*rnd.Float64()
		phi[i] = 1 / (sig * sig)
		psi[i] = phi[i] * (flux + sig*rnd.NormFloat64())
	}
	if outlier && n > 0 {
		i := rnd.Intn(n)
		psi[i] -= phi[i] * 5 * flux
	}
	return
}

func candidate(k Kind, t, truth search.Trajectory, psi, phi []float64, stampFlux float64) Candidate {
	t.LH = likelihood(psi, phi)
	if s := floats.Sum(phi); s > 0 {
		t.Flux = floats.Sum(psi) / s
	}
	return Candidate{
		Traj:       t,
		Psi:        psi,
		Phi:        phi,
		Kind:       k,
		Truth:      truth,
		StampFlux:  stampFlux,
		PSFSigma:   1.5,
		StampNoise: .5,
		StampSky:   .5,
	}
}

// Steady returns an object at x, y with likelihood lh over n epochs.  Its
// flux alternates ten percent either side of the mean, so n should be
// even for the likelihood to come out exactly lh.
func Steady(x, y, lh float64, n int) Candidate {
	psi := make([]float64, n)
	phi := make([]float64, n)
	c := lh / math.Sqrt(float64(n))
	for i := range psi {
		psi[i] = c * .9
		if i%2 == 1 {
			psi[i] = c * 1.1
		}
		phi[i] = 1
	}
	t := search.Trajectory{X: x, Y: y, VX: 200, VY: 10, LH: lh, Flux: c}
	return Candidate{
		Traj:       t,
		Psi:        psi,
		Phi:        phi,
		Kind:       Object,
		Truth:      t,
		StampFlux:  500,
		PSFSigma:   1.5,
		StampNoise: .5,
		StampSky:   .5,
	}
}

// likelihood is sum(psi)/sqrt(sum(phi)), skipping NaNs.
func likelihood(psi, phi []float64) float64 {
	var ps, ph float64
	for i := range psi {
		if math.IsNaN(psi[i]) || math.IsNaN(phi[i]) {
			continue
		}
		ps += psi[i]
		ph += phi[i]
	}
	if ph <= 0 {
		return 0
	}
	return ps / math.Sqrt(ph)
}

// MJD returns the epoch times.
func (e *Engine) MJD() []float64 { return e.mjd }

// Candidates returns the candidates in serving order.
func (e *Engine) Candidates() []Candidate { return e.cands }

// Fetches returns the offsets Fetch has been called with.
func (e *Engine) Fetches() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.fetches...)
}

func (e *Engine) Dims() (int, int) { return e.width, e.height }

func (e *Engine) Fetch(offset, n int) ([]search.Trajectory, error) {
	if offset < 0 || n < 0 {
		return nil, fmt.Errorf("fetch(%d, %d)", offset, n)
	}
	e.mu.Lock()
	e.fetches = append(e.fetches, offset)
	e.mu.Unlock()
	var ts []search.Trajectory
	for i := offset; i < offset+n && i < len(e.cands); i++ {
		ts = append(ts, e.cands[i].Traj)
	}
	return ts, nil
}

// Kind returns the kind of the candidate with trajectory t.
func (e *Engine) Kind(t search.Trajectory) (Kind, bool) {
	i, ok := e.byTraj[t]
	if !ok {
		return 0, false
	}
	return e.cands[i].Kind, true
}

func (e *Engine) lookup(t search.Trajectory) (int, error) {
	i, ok := e.byTraj[t]
	if !ok {
		return 0, fmt.Errorf("unknown trajectory %v", t)
	}
	return i, nil
}

func (e *Engine) Curves(t search.Trajectory) (psi, phi []float64, err error) {
	i, err := e.lookup(t)
	if err != nil {
		return nil, nil, err
	}
	c := &e.cands[i]
	return append([]float64(nil), c.Psi...), append([]float64(nil), c.Phi...), nil
}

func (e *Engine) Likelihood(psi, phi []float64) (float64, error) {
	if len(psi) != len(phi) {
		return 0, fmt.Errorf("psi length %d, phi length %d", len(psi), len(phi))
	}
	return likelihood(psi, phi), nil
}

// ClippedAverageIndices keeps epochs with nonzero phi and likelihood above
// lowerLHLimit, then drops any of the numClipped largest likelihoods lying
// more than nSigma standard deviations above the mean of the others.
func (e *Engine) ClippedAverageIndices(psi, phi []float64, numClipped int, nSigma, lowerLHLimit float64) ([]int, error) {
	if len(psi) != len(phi) {
		return nil, fmt.Errorf("psi length %d, phi length %d", len(psi), len(phi))
	}
	type score struct {
		lh float64
		i  int
	}
	var sc []score
	for i := range psi {
		if phi[i] == 0 {
			continue
		}
		if lh := psi[i] / math.Sqrt(phi[i]); lh > lowerLHLimit {
			sc = append(sc, score{lh, i})
		}
	}
	sort.Slice(sc, func(a, b int) bool { return sc[a].lh < sc[b].lh })
	var keep []int
	if len(sc) > numClipped && len(sc)-numClipped > 1 {
		base := make([]float64, len(sc)-numClipped)
		for k := range base {
			base[k] = sc[k].lh
		}
		mean, sd := stat.MeanStdDev(base, nil)
		lim := mean + nSigma*sd
		for k, s := range sc {
			if k < len(base) || s.lh <= lim {
				keep = append(keep, s.i)
			}
		}
	} else {
		for _, s := range sc {
			keep = append(keep, s.i)
		}
	}
	sort.Ints(keep)
	return keep, nil
}

// KalmanIndices keeps epochs within 5 sigma of a Kalman track of the flux.
func (e *Engine) KalmanIndices(psi, phi [][]float64) ([]search.KalmanResult, error) {
	if len(psi) != len(phi) {
		return nil, fmt.Errorf("%d psi curves, %d phi curves", len(psi), len(phi))
	}
	r := make([]search.KalmanResult, len(psi))
	for i := range psi {
		r[i].Index = i
		keep := kalmanKeep(psi[i], phi[i], 5)
		if len(keep) == 0 {
			continue
		}
		r[i].Keep = keep
		ps := make([]float64, len(keep))
		ph := make([]float64, len(keep))
		for k, x := range keep {
			ps[k], ph[k] = psi[i][x], phi[i][x]
		}
		r[i].LH = likelihood(ps, ph)
	}
	return r, nil
}

// stamp renders the stamp of candidate ci at epoch t.
func (e *Engine) stamp(ci, t, radius int) *mat.Dense {
	c := &e.cands[ci]
	side := 2*radius + 1
	m := mat.NewDense(side, side, nil)
	rnd := rand.New(&rand.PCGSource{})
	rnd.Seed(e.seed*1000003 + uint64(ci)*4099 + uint64(t))
	var dx, dy float64
	if c.Kind != Noise {
		dt := e.mjd[t] - e.mjd[0]
		tx, ty := c.Truth.At(dt)
		cx, cy := c.Traj.At(dt)
		dx, dy = tx-cx, ty-cy
	}
	s2 := 2 * c.PSFSigma * c.PSFSigma
	norm := c.StampFlux / (math.Pi * s2)
	for r := 0; r < side; r++ {
		for col := 0; col < side; col++ {
			v := c.StampSky + c.StampNoise*rnd.NormFloat64()
			if c.StampFlux != 0 {
				ddx := float64(col-radius) - dx
				ddy := float64(r-radius) - dy
				v += norm * math.Exp(-(ddx*ddx+ddy*ddy)/s2)
			}
			m.Set(r, col, v)
		}
	}
	return m
}

func (e *Engine) SciStamps(t search.Trajectory, radius int) ([]*mat.Dense, error) {
	ci, err := e.lookup(t)
	if err != nil {
		return nil, err
	}
	st := make([]*mat.Dense, len(e.mjd))
	for k := range st {
		st[k] = e.stamp(ci, k, radius)
	}
	return st, nil
}

func (e *Engine) Stamps(ts []search.Trajectory, radius int, mode search.StampMode, masks [][]bool) ([]*mat.Dense, error) {
	if mode.NeedsMask() && len(masks) != len(ts) {
		return nil, fmt.Errorf("%d masks for %d trajectories", len(masks), len(ts))
	}
	idx := make([]int, len(ts))
	for i, t := range ts {
		ci, err := e.lookup(t)
		if err != nil {
			return nil, err
		}
		idx[i] = ci
	}
	coadd := func(i int) (*mat.Dense, error) {
		var mask []bool
		if mode.NeedsMask() {
			mask = masks[i]
			if len(mask) != len(e.mjd) {
				return nil, fmt.Errorf("mask of length %d for %d epochs", len(mask), len(e.mjd))
			}
		}
		return e.coadd(idx[i], radius, mode, mask), nil
	}
	workers := 1
	if mode == search.StampParallelSum {
		workers = 4
	}
	return parallel.Map(workers, len(ts), coadd)
}

func (e *Engine) coadd(ci, radius int, mode search.StampMode, mask []bool) *mat.Dense {
	side := 2*radius + 1
	var epochs []*mat.Dense
	for t := range e.mjd {
		if mask == nil || mask[t] {
			epochs = append(epochs, e.stamp(ci, t, radius))
		}
	}
	out := mat.NewDense(side, side, nil)
	if len(epochs) == 0 {
		return out
	}
	switch mode {
	case search.StampSum, search.StampParallelSum:
		for _, s := range epochs {
			out.Add(out, s)
		}
	default:
		px := make([]float64, len(epochs))
		for r := 0; r < side; r++ {
			for c := 0; c < side; c++ {
				for k, s := range epochs {
					px[k] = s.At(r, c)
				}
				if mode == search.StampMedian {
					out.Set(r, c, stats.Percentiles(px, 50)[0])
				} else {
					out.Set(r, c, stat.Mean(px, nil))
				}
			}
		}
	}
	return out
}
