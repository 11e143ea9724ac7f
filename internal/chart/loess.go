package chart

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Loess smooths ys over xs with locally weighted linear regression. Each fit
// uses the ceil(span*n) nearest neighbours, at least two, weighted by the
// tricube kernel. xs must be sorted ascending.
func Loess(xs, ys []float64, span float64) ([]float64, error) {
	if math.IsNaN(span) || span <= 0 || span > 1 {
		return nil, fmt.Errorf("%w: loess span %v outside (0, 1]", ErrInvalidInput, span)
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: loess got %d x values and %d y values", ErrInvalidInput, len(xs), len(ys))
	}
	n := len(xs)
	if n < 3 {
		return append([]float64(nil), ys...), nil
	}

	k := int(math.Ceil(span * float64(n)))
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}

	out := make([]float64, n)
	idx := make([]int, n)
	for i, x0 := range xs {
		for j := range idx {
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return math.Abs(xs[idx[a]]-x0) < math.Abs(xs[idx[b]]-x0)
		})
		near := idx[:k]
		h := math.Abs(xs[near[k-1]] - x0)

		lx := make([]float64, k)
		ly := make([]float64, k)
		w := make([]float64, k)
		for j, p := range near {
			lx[j] = xs[p]
			ly[j] = ys[p]
			w[j] = tricube(xs[p]-x0, h)
		}
		out[i] = localFit(lx, ly, w, x0)
	}
	return out, nil
}

func tricube(d, h float64) float64 {
	if h == 0 {
		return 1
	}
	u := math.Abs(d) / h
	if u >= 1 {
		return 0
	}
	v := 1 - u*u*u
	return v * v * v
}

// localFit evaluates the weighted least-squares line at x0, falling back to
// the weighted mean when the points cannot define a slope.
func localFit(xs, ys, w []float64, x0 float64) float64 {
	var sw float64
	for _, v := range w {
		sw += v
	}
	if sw == 0 {
		return stat.Mean(ys, nil)
	}
	if hasSpread(xs, w) {
		alpha, beta := stat.LinearRegression(xs, ys, w, false)
		if fit := alpha + beta*x0; !math.IsNaN(fit) && !math.IsInf(fit, 0) {
			return fit
		}
	}
	return stat.Mean(ys, w)
}

func hasSpread(xs, w []float64) bool {
	first := math.NaN()
	for i, x := range xs {
		if w[i] <= 0 {
			continue
		}
		if math.IsNaN(first) {
			first = x
		} else if x != first {
			return true
		}
	}
	return false
}
