package hull

import "math"

// pivotTol is the singularity threshold for Gaussian elimination. Distinct
// from Epsilon: this guards matrix conditioning, not energy comparisons.
const pivotTol = 1e-12

// solveLinear solves A·x = b in place via Gaussian elimination with partial
// pivoting. Returns (x, true) on success, (nil, false) if A is singular.
// A and b are consumed.
func solveLinear(a [][]float64, b []float64) ([]float64, bool) {
	n := len(a)
	for col := 0; col < n; col++ {
		// Pick the largest remaining pivot.
		best := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[best][col]) {
				best = row
			}
		}
		if math.Abs(a[best][col]) < pivotTol {
			return nil, false
		}
		a[col], a[best] = a[best], a[col]
		b[col], b[best] = b[best], b[col]

		inv := 1 / a[col][col]
		for row := col + 1; row < n; row++ {
			f := a[row][col] * inv
			if f == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, true
}

// combinations invokes fn with every k-subset of [0, n), in lexicographic
// order. fn must not retain the index slice across calls.
func combinations(n, k int, fn func(idx []int)) {
	if k > n || k <= 0 {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		// Advance to the next combination.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
