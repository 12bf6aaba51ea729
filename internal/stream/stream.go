// Public domain.

// Package stream pulls candidates from the search engine in likelihood
// order and feeds them through light curve filtering.
package stream

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/soniakeys/kbpost/internal/curvefilter"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/search"
)

// Params control the driver loop.
type Params struct {
	LHLevel   float64 // stop at the first candidate below this
	MaxLH     float64 // skip candidates at or above this
	ChunkSize int
}

// Stats counts what Load saw.
type Stats struct {
	Chunks   int // chunks fetched, including a final empty one
	Fetched  int // candidates returned by the engine
	Skipped  int // at or above MaxLH
	Filtered int // handed to the filter
	Kept     int // appended to the result set
	Stopped  bool
}

// Load streams candidates from e, filters them with f and appends the
// survivors to set.  mjd holds the epoch times.
//
// Candidates arrive in descending likelihood.  The first one below
// p.LHLevel ends streaming; the rest of its chunk is not examined.
func Load(e search.Engine, f curvefilter.Filter, set *result.Set, mjd []float64, p Params) (Stats, error) {
	var st Stats
	if p.ChunkSize <= 0 {
		return st, fmt.Errorf("chunk size %d", p.ChunkSize)
	}
	start := time.Now()
	for offset := 0; ; offset += p.ChunkSize {
		ts, err := e.Fetch(offset, p.ChunkSize)
		if err != nil {
			return st, fmt.Errorf("fetch at %d: %w", offset, err)
		}
		st.Chunks++
		if len(ts) == 0 {
			break
		}
		st.Fetched += len(ts)
		log.WithFields(log.Fields{
			"start":  offset,
			"max_lh": ts[0].LH,
			"min_lh": ts[len(ts)-1].LH,
		}).Info("loading chunk")

		var (
			batch    []search.Trajectory
			psi, phi [][]float64
		)
		for _, t := range ts {
			if t.LH < p.LHLevel {
				st.Stopped = true
				break
			}
			if t.LH >= p.MaxLH {
				st.Skipped++
				continue
			}
			ps, ph, err := e.Curves(t)
			if err != nil {
				return st, fmt.Errorf("curves of %v: %w", t, err)
			}
			if len(ps) != len(mjd) || len(ph) != len(mjd) {
				return st, fmt.Errorf("curves of %v: lengths %d, %d for %d epochs",
					t, len(ps), len(ph), len(mjd))
			}
			batch = append(batch, t)
			psi = append(psi, ps)
			phi = append(phi, ph)
		}
		if len(batch) > 0 {
			out, err := f.Filter(psi, phi)
			if err != nil {
				return st, fmt.Errorf("%s filter: %w", f.Name(), err)
			}
			n, err := curvefilter.Aggregate(set, out, batch, psi, phi, mjd, p.LHLevel)
			if err != nil {
				return st, err
			}
			st.Filtered += len(batch)
			st.Kept += n
		}
		if st.Stopped {
			log.WithField("lh_level", p.LHLevel).Debug("likelihood below level, streaming stopped")
			break
		}
	}
	log.WithFields(log.Fields{
		"fetched": st.Fetched,
		"skipped": st.Skipped,
		"kept":    st.Kept,
		"elapsed": time.Since(start),
	}).Info("loaded results")
	return st, nil
}
