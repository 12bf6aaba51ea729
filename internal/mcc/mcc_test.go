// Public domain.

package mcc_test

import (
	"math"
	"os"
	"testing"

	"github.com/soniakeys/kbpost/internal/mcc"
)

func ExampleConfusion_Fprint() {
	var c mcc.Confusion
	for i := 0; i < 9; i++ {
		c.Add(true, true)
	}
	c.Add(true, false)
	c.Add(false, true)
	for i := 0; i < 89; i++ {
		c.Add(false, false)
	}
	c.Fprint(os.Stdout, "kbpost")
	// Output:
	// Total candidates:   100
	//
	//                        kbpost prediction
	//                     -----------------------
	//                      in-class  out-of-class
	// Actual in-class             9             1
	// Actual out-of-class         1            89
	//
	// Matthews correlation coefficient: 0.89
}

func TestMCC(t *testing.T) {
	for _, tc := range []struct {
		c    mcc.Confusion
		want float64
	}{
		{mcc.Confusion{TP: 5, TN: 5}, 1},
		{mcc.Confusion{FP: 5, FN: 5}, -1},
		{mcc.Confusion{TP: 5, FP: 5}, 0}, // nothing actually out of class
		{mcc.Confusion{}, 0},
	} {
		if got := tc.c.MCC(); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%+v: got %g, want %g", tc.c, got, tc.want)
		}
	}
}
