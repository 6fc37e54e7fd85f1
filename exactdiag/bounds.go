package exactdiag

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// LowerBound returns a lower bound of the spectrum of o.
// Each placement contributes the Gershgorin bound of its term, which is valid since the smallest eigenvalue of
// a sum is at least the sum of the smallest eigenvalues.
func (o *Operator) LowerBound() float64 {
	var lb float64
	for _, t := range o.terms {
		lb += float64(len(t.Sites)) * gerschgorin(t.H)
	}
	return lb
}

// gerschgorin returns the lowest point of the Gershgorin discs of the Hermitian matrix m.
func gerschgorin(m *mat.CDense) float64 {
	r, c := m.Dims()
	lowest := math.Inf(1)
	for i := range r {
		var radius float64
		for j := range c {
			if j != i {
				radius += cmplx.Abs(m.At(i, j))
			}
		}
		lowest = min(lowest, real(m.At(i, i))-radius)
	}
	return lowest
}
