// Public domain.

package cluster_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/mat"

	"github.com/soniakeys/kbpost/internal/cluster"
	"github.com/soniakeys/kbpost/internal/config"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/search"
)

func params(typ, fn string) cluster.Params {
	return cluster.Params{
		Type:     typ,
		Function: fn,
		Eps:      .03,
		Width:    1000,
		Height:   1000,
		VLim:     [2]float64{92, 526},
		AngLim:   [2]unit.Angle{unit.AngleFromDeg(-12), unit.AngleFromDeg(12)},
		MJD:      []float64{58000, 58000.1, 58000.2, 58000.4},
		Workers:  2,
	}
}

func TestDBSCAN(t *testing.T) {
	pts := [][]float64{{0}, {.5}, {10}, {1}, {10.4}, {20}}
	got := cluster.DBSCAN(pts, .6, 1, 1)
	if want := []int{0, 0, 1, 0, 1, 2}; !cmp.Equal(got, want) {
		t.Fatal(got)
	}
	// with min_samples 2 the isolated point is noise
	got = cluster.DBSCAN(pts, .6, 2, 3)
	if want := []int{0, 0, 1, 0, 1, -1}; !cmp.Equal(got, want) {
		t.Fatal(got)
	}
}

func TestOPTICS(t *testing.T) {
	pts := [][]float64{{0}, {.5}, {10}, {1}, {10.4}, {20}}
	got := cluster.OPTICS(pts, .6, 2, .6, 2)
	if want := []int{0, 0, 1, 0, 1, -1}; !cmp.Equal(got, want) {
		t.Fatal(got)
	}
}

func TestRepresentatives(t *testing.T) {
	got := cluster.Representatives([]int{2, 2, -1, 0, 2, -1, 0, 1})
	if want := []int{0, 2, 3, 7}; !cmp.Equal(got, want) {
		t.Fatal(got)
	}
	if got := cluster.Representatives(nil); len(got) != 0 {
		t.Fatal(got)
	}
}

func TestIdentical(t *testing.T) {
	// same motion found three times, highest likelihood first
	tr := search.Trajectory{X: 100, Y: 200, VX: 150, VY: 5}
	ts := make([]search.Trajectory, 3)
	for i, lh := range []float64{50, 40, 30} {
		ts[i] = tr
		ts[i].LH = lh
	}
	for _, typ := range []string{config.ClusterAll, config.ClusterPosition, config.ClusterMidPosition} {
		for _, fn := range []string{config.FuncDBSCAN, config.FuncOPTICS} {
			c, err := cluster.New(params(typ, fn))
			if err != nil {
				t.Fatal(err)
			}
			if reps := cluster.Representatives(c.Labels(ts)); !cmp.Equal(reps, []int{0}) {
				t.Fatal(typ, fn, reps)
			}
		}
	}
}

func TestFeatures(t *testing.T) {
	c, err := cluster.New(params(config.ClusterMidPosition, config.FuncDBSCAN))
	if err != nil {
		t.Fatal(err)
	}
	// median of 0, .1, .2, .4 is .15
	f := c.Features([]search.Trajectory{{X: 100, Y: 200, VX: 200, VY: -100}})
	want := []float64{.13, .185}
	if !cmp.Equal(f[0], want, cmp.Comparer(func(a, b float64) bool {
		return a-b < 1e-9 && b-a < 1e-9
	})) {
		t.Fatal(f[0])
	}
	c, err = cluster.New(params(config.ClusterAll, config.FuncDBSCAN))
	if err != nil {
		t.Fatal(err)
	}
	f = c.Features([]search.Trajectory{{X: 500, Y: 250, VX: 309, VY: 0}})
	want = []float64{.5, .25, .5, .5}
	if !cmp.Equal(f[0], want, cmp.Comparer(func(a, b float64) bool {
		return a-b < 1e-9 && b-a < 1e-9
	})) {
		t.Fatal(f[0])
	}
}

func TestNewInvalid(t *testing.T) {
	for _, p := range []cluster.Params{
		params("velocity", config.FuncDBSCAN),
		params(config.ClusterAll, "KMeans"),
		func() cluster.Params {
			p := params(config.ClusterAll, config.FuncDBSCAN)
			p.Args = map[string]float64{"max_eps": .1}
			return p
		}(),
		func() cluster.Params {
			p := params(config.ClusterAll, config.FuncOPTICS)
			p.Args = map[string]float64{"min_samples": 1}
			return p
		}(),
	} {
		if _, err := cluster.New(p); !errors.Is(err, config.ErrConfig) {
			t.Fatalf("%s %s %v: %v", p.Type, p.Function, p.Args, err)
		}
	}
}

func TestRun(t *testing.T) {
	set := result.New()
	for _, tr := range []search.Trajectory{
		{X: 100, Y: 100, VX: 200, LH: 90}, // 0
		{X: 500, Y: 500, VX: 200, LH: 80}, // 1, rejected by stamps
		{X: 101, Y: 100, VX: 201, LH: 70}, // 2, duplicate of 0
		{X: 800, Y: 100, VX: 300, LH: 60}, // 3
		{X: 800, Y: 101, VX: 300, LH: 50}, // 4, duplicate of 3
	} {
		set.Append(tr, tr.LH, nil, nil, nil, nil, nil)
	}
	stamps := []*mat.Dense{
		mat.NewDense(1, 1, []float64{0}),
		mat.NewDense(1, 1, []float64{2}),
		mat.NewDense(1, 1, []float64{3}),
		mat.NewDense(1, 1, []float64{4}),
	}
	if err := set.SetFinal([]int{0, 2, 3, 4}, stamps); err != nil {
		t.Fatal(err)
	}
	c, err := cluster.New(params(config.ClusterAll, config.FuncDBSCAN))
	if err != nil {
		t.Fatal(err)
	}
	n, err := c.Run(set)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || !cmp.Equal(set.FinalResults, []int{0, 3}) {
		t.Fatal(n, set.FinalResults)
	}
	if set.Stamps[0].At(0, 0) != 0 || set.Stamps[1].At(0, 0) != 3 {
		t.Fatal("stamps not reindexed")
	}
	if err := set.Check(0); err != nil {
		t.Fatal(err)
	}
}

func TestRunEmpty(t *testing.T) {
	set := result.New()
	c, err := cluster.New(params(config.ClusterPosition, config.FuncDBSCAN))
	if err != nil {
		t.Fatal(err)
	}
	if n, err := c.Run(set); n != 0 || err != nil || set.FinalResults != nil {
		t.Fatal(n, err, set.FinalResults)
	}
}
