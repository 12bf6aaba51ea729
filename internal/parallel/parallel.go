// Public domain.

// Package parallel runs independent units of work on a bounded number of
// goroutines.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls f(i) for i in [0, n) using at most workers goroutines and
// returns the results indexed by i, regardless of completion order.
//
// With workers <= 1 the calls run in order on the calling goroutine.
// The first error returned by f is returned; once an error occurs no
// further calls are started.
func Map[R any](workers, n int, f func(i int) (R, error)) ([]R, error) {
	r := make([]R, n)
	if workers <= 1 {
		for i := range r {
			v, err := f(i)
			if err != nil {
				return nil, err
			}
			r[i] = v
		}
		return r, nil
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i := 0; i < n && ctx.Err() == nil; i++ {
		i := i
		g.Go(func() error {
			v, err := f(i)
			if err != nil {
				return err
			}
			r[i] = v // each goroutine writes only its own slot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}
