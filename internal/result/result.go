// Public domain.

// Package result holds the accumulated output of the post-processing stages.
package result

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/soniakeys/kbpost/search"
)

// Set accumulates surviving candidates across the pipeline.
//
// Results, NewLH, LC, LCIndex, Times, PsiCurves and PhiCurves are parallel
// slices and always have the same length.  They only grow, by Append.
//
// FinalResults indexes into Results.  It is nil until the first stage that
// selects results sets it, and nil means every result is selected.  Once
// set it only narrows.  Stamps parallels FinalResults once stamps have been
// computed.  AllStamps, when collected, also parallels FinalResults.
type Set struct {
	Results   []search.Trajectory
	NewLH     []float64
	LC        [][]float64 // psi/phi per epoch
	LCIndex   [][]int     // surviving epochs
	Times     [][]float64 // MJD of surviving epochs
	PsiCurves [][]float64
	PhiCurves [][]float64

	Stamps    []*mat.Dense
	AllStamps [][]*mat.Dense

	FinalResults []int
}

// New returns an empty set.
func New() *Set {
	return &Set{}
}

// Len returns the number of results.
func (s *Set) Len() int { return len(s.Results) }

// Append adds one candidate that survived curve filtering.
func (s *Set) Append(t search.Trajectory, newLH float64, lc []float64, keep []int, times, psi, phi []float64) {
	s.Results = append(s.Results, t)
	s.NewLH = append(s.NewLH, newLH)
	s.LC = append(s.LC, lc)
	s.LCIndex = append(s.LCIndex, keep)
	s.Times = append(s.Times, times)
	s.PsiCurves = append(s.PsiCurves, psi)
	s.PhiCurves = append(s.PhiCurves, phi)
}

// Selected returns the selected result indexes: FinalResults when set,
// otherwise all indexes.
func (s *Set) Selected() []int {
	if s.FinalResults != nil {
		return s.FinalResults
	}
	all := make([]int, len(s.Results))
	for i := range all {
		all[i] = i
	}
	return all
}

// Final returns the trajectories at the selected indexes.
func (s *Set) Final() []search.Trajectory {
	sel := s.Selected()
	ts := make([]search.Trajectory, len(sel))
	for i, x := range sel {
		ts[i] = s.Results[x]
	}
	return ts
}

// SetFinal sets FinalResults from the stamp stage.  idx must be sorted,
// without duplicates, and a subset of the current selection.  stamps
// parallels idx.
func (s *Set) SetFinal(idx []int, stamps []*mat.Dense) error {
	if err := s.checkSubset(idx); err != nil {
		return err
	}
	if len(stamps) != len(idx) {
		return fmt.Errorf("%d stamps for %d results", len(stamps), len(idx))
	}
	s.FinalResults = idx
	s.Stamps = stamps
	return nil
}

// Narrow keeps only the selected results at positions pos, positions being
// indexes into Selected().  Stamps and AllStamps, when present, are narrowed
// the same way.
func (s *Set) Narrow(pos []int) error {
	sel := s.Selected()
	idx := make([]int, len(pos))
	for i, p := range pos {
		if p < 0 || p >= len(sel) {
			return fmt.Errorf("position %d outside selection of %d", p, len(sel))
		}
		idx[i] = sel[p]
	}
	if err := s.checkSubset(idx); err != nil {
		return err
	}
	if len(s.Stamps) > 0 {
		st := make([]*mat.Dense, len(pos))
		for i, p := range pos {
			st[i] = s.Stamps[p]
		}
		s.Stamps = st
	}
	if len(s.AllStamps) > 0 {
		as := make([][]*mat.Dense, len(pos))
		for i, p := range pos {
			as[i] = s.AllStamps[p]
		}
		s.AllStamps = as
	}
	s.FinalResults = idx
	return nil
}

func (s *Set) checkSubset(idx []int) error {
	if !sort.IntsAreSorted(idx) {
		return fmt.Errorf("final results not sorted")
	}
	sel := s.Selected()
	j := 0
	for i, x := range idx {
		if i > 0 && idx[i-1] == x {
			return fmt.Errorf("duplicate final result %d", x)
		}
		for j < len(sel) && sel[j] < x {
			j++
		}
		if j == len(sel) || sel[j] != x {
			return fmt.Errorf("final result %d not in current selection", x)
		}
	}
	return nil
}

// Check verifies the invariants of the set.  nEpochs is the number of
// epochs T; every surviving epoch index must lie in [0, nEpochs).
func (s *Set) Check(nEpochs int) error {
	n := len(s.Results)
	for _, f := range []struct {
		name string
		len  int
	}{
		{"new_lh", len(s.NewLH)},
		{"lc", len(s.LC)},
		{"lc_index", len(s.LCIndex)},
		{"times", len(s.Times)},
		{"psi_curves", len(s.PsiCurves)},
		{"phi_curves", len(s.PhiCurves)},
	} {
		if f.len != n {
			return fmt.Errorf("len(%s) = %d, len(results) = %d", f.name, f.len, n)
		}
	}
	for i, keep := range s.LCIndex {
		for _, e := range keep {
			if e < 0 || e >= nEpochs {
				return fmt.Errorf("result %d: epoch index %d outside [0,%d)", i, e, nEpochs)
			}
		}
		if len(s.Times[i]) != len(keep) {
			return fmt.Errorf("result %d: %d times for %d epochs", i, len(s.Times[i]), len(keep))
		}
	}
	if s.FinalResults != nil {
		for i, x := range s.FinalResults {
			if x < 0 || x >= n {
				return fmt.Errorf("final result %d outside [0,%d)", x, n)
			}
			if i > 0 && s.FinalResults[i-1] >= x {
				return fmt.Errorf("final results not strictly increasing at %d", i)
			}
		}
		if len(s.Stamps) > 0 && len(s.Stamps) != len(s.FinalResults) {
			return fmt.Errorf("%d stamps for %d final results", len(s.Stamps), len(s.FinalResults))
		}
	}
	return nil
}
