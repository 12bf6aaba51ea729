// Public domain.

// Package search defines what kbpost consumes from the image search engine.
//
// The engine scans a time ordered stack of images for linear trajectories.
// Its search itself, its likelihood kernels and its stamp generation are
// not part of kbpost; they are reached only through the Engine interface.
package search

import (
	"fmt"
	"math"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/mat"
)

// MJDOffset is the Julian date of MJD 0.  Epoch times are MJD.
const MJDOffset = 2400000.5

// Trajectory is a linear motion candidate as reported by the engine.
//
// X, Y are the starting pixel position, VX, VY the pixel velocity per
// day.  A Trajectory is never modified after the engine produces it.
type Trajectory struct {
	X, Y   float64
	VX, VY float64
	LH     float64 // likelihood
	Flux   float64
}

// Speed is the pixel speed, the magnitude of the velocity vector.
func (t Trajectory) Speed() float64 {
	return math.Hypot(t.VX, t.VY)
}

// Angle is the direction of motion in the pixel frame.
func (t Trajectory) Angle() unit.Angle {
	return unit.Angle(math.Atan2(t.VY, t.VX))
}

// At returns the predicted pixel position dt days after the start.
func (t Trajectory) At(dt float64) (x, y float64) {
	return t.X + dt*t.VX, t.Y + dt*t.VY
}

func (t Trajectory) String() string {
	return fmt.Sprintf("x=%.1f y=%.1f vx=%.2f vy=%.2f lh=%.2f flux=%.2f",
		t.X, t.Y, t.VX, t.VY, t.LH, t.Flux)
}

// StampMode selects how the engine coadds per epoch stamps.
type StampMode int

const (
	StampSum         StampMode = iota // plain sum
	StampParallelSum                  // sum computed by the engine in parallel
	StampMedian                       // per pixel median of included epochs
	StampMean                         // per pixel mean of included epochs
)

var stampModeNames = [...]string{"sum", "parallel_sum", "median", "mean"}

func (m StampMode) String() string {
	if m < 0 || int(m) >= len(stampModeNames) {
		return fmt.Sprintf("StampMode(%d)", int(m))
	}
	return stampModeNames[m]
}

// NeedsMask reports whether the mode takes per epoch inclusion masks.
func (m StampMode) NeedsMask() bool {
	return m == StampMedian || m == StampMean
}

// ParseStampMode parses a stamp type name.  The names cpp_median and
// cpp_mean are accepted as aliases of median and mean.
func ParseStampMode(s string) (StampMode, error) {
	switch s {
	case "sum":
		return StampSum, nil
	case "parallel_sum":
		return StampParallelSum, nil
	case "median", "cpp_median":
		return StampMedian, nil
	case "mean", "cpp_mean":
		return StampMean, nil
	}
	return 0, fmt.Errorf("unknown stamp type %q", s)
}

// KalmanResult is one entry of the engine's batched Kalman filter.
//
// Keep is nil when no epoch survived.
type KalmanResult struct {
	Index int
	Keep  []int
	LH    float64
}

// Engine is the set of capabilities kbpost uses from the search engine.
//
// Fetch must return results sorted by descending likelihood, n results
// starting at offset, and an empty slice past the end of the results.
// Curves returns psi and phi curves of length T, the number of epochs.
// Stamps returns one coadded stamp of side 2*radius+1 per trajectory; masks
// is consulted only for modes where NeedsMask is true and then holds one
// boolean per epoch for each trajectory.
// SciStamps returns the individual stamps of a trajectory, one per epoch.
type Engine interface {
	Dims() (width, height int)
	Fetch(offset, n int) ([]Trajectory, error)
	Curves(t Trajectory) (psi, phi []float64, err error)
	Likelihood(psi, phi []float64) (float64, error)
	ClippedAverageIndices(psi, phi []float64, numClipped int, nSigma, lowerLHLimit float64) ([]int, error)
	KalmanIndices(psi, phi [][]float64) ([]KalmanResult, error)
	Stamps(ts []Trajectory, radius int, mode StampMode, masks [][]bool) ([]*mat.Dense, error)
	SciStamps(t Trajectory, radius int) ([]*mat.Dense, error)
}
