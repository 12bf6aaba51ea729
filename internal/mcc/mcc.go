// Public domain.

// Package mcc computes the Matthews correlation coefficient of a binary
// classification.
//
// Compared to similar statistics, MCC gives a meaningful measure even when
// the classes are of very different sizes, as with a handful of real
// objects among thousands of noise candidates.
package mcc

import (
	"fmt"
	"io"
	"math"
)

// Confusion counts classification outcomes.
type Confusion struct {
	TP, FN int // actually in class, predicted in, out
	FP, TN int // actually out of class, predicted in, out
}

// Add counts one outcome.
func (c *Confusion) Add(actual, predicted bool) {
	switch {
	case actual && predicted:
		c.TP++
	case actual:
		c.FN++
	case predicted:
		c.FP++
	default:
		c.TN++
	}
}

// Total returns the number of outcomes counted.
func (c *Confusion) Total() int { return c.TP + c.FN + c.FP + c.TN }

// MCC returns the Matthews correlation coefficient, 1 for perfect
// prediction, 0 for no better than random, -1 for total disagreement.
// It is 0 when any row or column of the table is empty.
func (c *Confusion) MCC() float64 {
	tp := float64(c.TP)
	fn := float64(c.FN)
	fp := float64(c.FP)
	tn := float64(c.TN)
	if d := (tp + fp) * (tp + fn) * (tn + fp) * (tn + fn); d > 0 {
		return (tp*tn - fp*fn) / math.Sqrt(d)
	}
	return 0
}

// Fprint writes the table and coefficient.  what names the predictor.
func (c *Confusion) Fprint(w io.Writer, what string) {
	fmt.Fprintln(w, "Total candidates:  ", c.Total())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "                       %s prediction\n", what)
	fmt.Fprintln(w, "                    -----------------------")
	fmt.Fprintln(w, "                     in-class  out-of-class")
	fmt.Fprintf(w, "Actual in-class       %7d       %7d\n", c.TP, c.FN)
	fmt.Fprintf(w, "Actual out-of-class   %7d       %7d\n", c.FP, c.TN)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Matthews correlation coefficient: %.2f\n", c.MCC())
}
