package mat

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

func TestAdd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a          *COO
		c          complex128
		b          *COO
		z          *COO
		numNonZero int
	}{
		{
			a: M([][]complex128{
				{1, 0},
				{0, 2i},
			}),
			c: 1i,
			b: M([][]complex128{
				{1i, 0},
				{2, -5},
			}),
			z: M([][]complex128{
				{0, 0},
				{2i, -3i},
			}),
			numNonZero: 2,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Add(test.c, test.b)
			if !mat.CEqual(test.a.CDense(), test.z.CDense()) {
				t.Fatalf("%s, expected %s", test.a, test.z)
			}
			if len(test.a.Data) != test.numNonZero {
				t.Fatalf("%d, expected %d", len(test.a.Data), test.numNonZero)
			}
		})
	}
}

func TestKron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a *COO
		b *COO
		c *COO
	}{
		{
			a: M([][]complex128{
				{1, -4, 7},
				{-2, 0, 3},
			}),
			b: M([][]complex128{
				{8, -9, -6, 5},
				{1, -3, 0, 7},
				{2, 8, -8, -3},
				{1, 2, -5, -1},
			}),
			c: M([][]complex128{
				{8, -9, -6, 5, -32, 36, 24, -20, 56, -63, -42, 35},
				{1, -3, 0, 7, -4, 12, 0, -28, 7, -21, 0, 49},
				{2, 8, -8, -3, -8, -32, 32, 12, 14, 56, -56, -21},
				{1, 2, -5, -1, -4, -8, 20, 4, 7, 14, -35, -7},
				{-16, 18, 12, -10, 0, 0, 0, 0, 24, -27, -18, 15},
				{-2, 6, 0, -14, 0, 0, 0, 0, 3, -9, 0, 21},
				{-4, -16, 16, 6, 0, 0, 0, 0, 6, 24, -24, -9},
				{-2, -4, 10, 2, 0, 0, 0, 0, 3, 6, -15, -3},
			}),
		},
		// Scalar kronecker.
		{
			a: M([][]complex128{{1}}),
			b: M([][]complex128{
				{1, 2},
				{3, 4},
			}),
			c: M([][]complex128{
				{1, 2},
				{3, 4},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Kron(test.b)
			if !mat.CEqual(test.a.CDense(), test.c.CDense()) {
				t.Fatalf("%s, expected %s", test.a, test.c)
			}
		})
	}
}

func TestKronAllPauli(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ms []*COO
		c  *COO
	}{
		{
			ms: []*COO{M(PauliX), M(PauliX)},
			c: M([][]complex128{
				{0, 0, 0, 1},
				{0, 0, 1, 0},
				{0, 1, 0, 0},
				{1, 0, 0, 0},
			}),
		},
		{
			ms: []*COO{M(PauliY), M(PauliY)},
			c: M([][]complex128{
				{0, 0, 0, -1},
				{0, 0, 1, 0},
				{0, 1, 0, 0},
				{-1, 0, 0, 0},
			}),
		},
		{
			ms: []*COO{M(PauliZ), COOIdentity(2)},
			c: M([][]complex128{
				{1, 0, 0, 0},
				{0, 1, 0, 0},
				{0, 0, -1, 0},
				{0, 0, 0, -1},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.c), func(t *testing.T) {
			t.Parallel()
			k := KronAll(test.ms...)
			if !mat.CEqual(k.CDense(), test.c.CDense()) {
				t.Fatalf("%s, expected %s", k, test.c)
			}
			if len(k.Data) != len(test.c.Data) {
				t.Fatalf("%d, expected %d", len(k.Data), len(test.c.Data))
			}
		})
	}
}

func TestString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m *COO
		s string
	}{
		{
			m: M(PauliZ),
			s: " 1\t 0\n 0\t-1",
		},
		{
			m: M(PauliY),
			s: " 0\t-1i\n 1i\t 0",
		},
		{
			m: M([][]complex128{{0.5 - 2i, -1 + 1i}}),
			s: " 0.5-2i\t-1+1i",
		},
		{
			m: COOZeros(1, 2),
			s: " 0\t 0",
		},
	}
	for _, test := range tests {
		t.Run(test.s, func(t *testing.T) {
			t.Parallel()
			if s := test.m.String(); s != test.s {
				t.Fatalf("%q, expected %q", s, test.s)
			}
		})
	}
}

func TestEigenHermitian(t *testing.T) {
	t.Parallel()
	tests := []struct {
		h    *COO
		vals []float64
	}{
		{
			h:    M(PauliY),
			vals: []float64{-1, 1},
		},
		{
			// Heisenberg bond, a singlet below a triplet.
			h: func() *COO {
				h := KronAll(M(PauliX), M(PauliX))
				h.Add(1, KronAll(M(PauliY), M(PauliY)))
				h.Add(1, KronAll(M(PauliZ), M(PauliZ)))
				return h
			}(),
			vals: []float64{-3, 1, 1, 1},
		},
		{
			h: M([][]complex128{
				{2, 1 - 1i, 0},
				{1 + 1i, 3, 0.5i},
				{0, -0.5i, -1},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.h), func(t *testing.T) {
			t.Parallel()
			h := test.h.CDense()
			vvs, err := EigenHermitian(h)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if r, _ := h.Dims(); len(vvs) != r {
				t.Fatalf("%d, expected %d", len(vvs), r)
			}
			for i, vv := range vvs {
				if test.vals != nil && math.Abs(vv.Val-test.vals[i]) > 1e-10 {
					t.Fatalf("%d %f, expected %f", i, vv.Val, test.vals[i])
				}
				if i > 0 && vv.Val < vvs[i-1].Val {
					t.Fatalf("%d %f < %f", i, vv.Val, vvs[i-1].Val)
				}

				// H v = λ v.
				hv := make([]complex128, len(vv.Vec))
				for r := range hv {
					for c, x := range vv.Vec {
						hv[r] += h.At(r, c) * x
					}
				}
				for r := range hv {
					if cmplx.Abs(hv[r]-complex(vv.Val, 0)*vv.Vec[r]) > 1e-10 {
						t.Fatalf("%d %d %v, expected %v", i, r, hv[r], complex(vv.Val, 0)*vv.Vec[r])
					}
				}

				for j := range i {
					if d := cmplx.Abs(cmplxs.Dot(vvs[j].Vec, vv.Vec)); d > 1e-10 {
						t.Fatalf("%d %d overlap %f", i, j, d)
					}
				}
			}
		})
	}
}
