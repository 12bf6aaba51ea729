// Public domain.

package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/soniakeys/kbpost/internal/parallel"
)

// Noise is the label of points belonging to no cluster.
const Noise = -1

// neighbor is a point index and its distance from the query point.
type neighbor struct {
	i int
	d float64
}

// neighborhoods returns, for each point, the points within radius of it,
// itself included, nearest first.
func neighborhoods(pts [][]float64, radius float64, workers int) [][]neighbor {
	// the work function never fails, so neither does Map
	nb, _ := parallel.Map(workers, len(pts), func(i int) ([]neighbor, error) {
		var r []neighbor
		for j, q := range pts {
			if d := floats.Distance(pts[i], q, 2); d <= radius {
				r = append(r, neighbor{j, d})
			}
		}
		sort.SliceStable(r, func(a, b int) bool { return r[a].d < r[b].d })
		return r, nil
	})
	return nb
}

// DBSCAN labels pts by density connectivity.  A point with at least
// minSamples points within eps, itself included, is a core point; clusters
// are the core points reachable from one another in steps of at most eps
// together with the non-core points within eps of them.  Labels count up
// from zero in order of the lowest index in each cluster.  Other points
// are labeled Noise.
func DBSCAN(pts [][]float64, eps float64, minSamples, workers int) []int {
	nb := neighborhoods(pts, eps, workers)
	labels := make([]int, len(pts))
	for i := range labels {
		labels[i] = Noise
	}
	core := func(i int) bool { return len(nb[i]) >= minSamples }
	next := 0
	for i := range pts {
		if labels[i] != Noise || !core(i) {
			continue
		}
		labels[i] = next
		stack := []int{i}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, n := range nb[p] {
				if labels[n.i] != Noise {
					continue
				}
				labels[n.i] = next
				if core(n.i) {
					stack = append(stack, n.i)
				}
			}
		}
		next++
	}
	return labels
}

// optics computes the OPTICS cluster ordering of pts with neighborhoods
// bounded by maxEps.  It returns the ordering, the reachability distance
// and the core distance of each point.  Undefined distances are +Inf.
func optics(pts [][]float64, maxEps float64, minSamples, workers int) (order []int, reach, coreDist []float64) {
	n := len(pts)
	nb := neighborhoods(pts, maxEps, workers)
	reach = make([]float64, n)
	coreDist = make([]float64, n)
	for i := range pts {
		reach[i] = math.Inf(1)
		coreDist[i] = math.Inf(1)
		if len(nb[i]) >= minSamples {
			coreDist[i] = nb[i][minSamples-1].d
		}
	}
	processed := make([]bool, n)
	order = make([]int, 0, n)
	for len(order) < n {
		// unprocessed point of least reachability, lowest index on ties
		p := -1
		for i := range pts {
			if !processed[i] && (p < 0 || reach[i] < reach[p]) {
				p = i
			}
		}
		processed[p] = true
		order = append(order, p)
		if math.IsInf(coreDist[p], 1) {
			continue
		}
		for _, q := range nb[p] {
			if processed[q.i] {
				continue
			}
			if r := math.Max(q.d, coreDist[p]); r < reach[q.i] {
				reach[q.i] = r
			}
		}
	}
	return
}

// OPTICS labels pts from their OPTICS ordering, cutting the reachability
// plot at eps.  maxEps bounds neighborhood searches and should be at least
// eps.  A new cluster starts at each point in the ordering that is not
// reachable within eps but is itself a core point at eps.  Points neither
// reachable nor core are labeled Noise.
func OPTICS(pts [][]float64, maxEps float64, minSamples int, eps float64, workers int) []int {
	order, reach, coreDist := optics(pts, maxEps, minSamples, workers)
	labels := make([]int, len(pts))
	c := -1
	for _, p := range order {
		far := reach[p] > eps
		near := coreDist[p] <= eps
		if far && near {
			c++
		}
		labels[p] = c
		if far && !near {
			labels[p] = Noise
		}
	}
	return labels
}
