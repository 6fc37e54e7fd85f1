package mat

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

// ValVec is an eigenvalue and its eigenvector.
type ValVec struct {
	Val float64
	Vec []complex128
}

// EigenHermitian returns the eigenpairs of the Hermitian matrix h in ascending order.
// h = A + iB is diagonalized through its real symmetric embedding [[A, -B], [B, A]],
// whose spectrum is that of h with every eigenvalue doubled.
func EigenHermitian(h *mat.CDense) ([]ValVec, error) {
	n, c := h.Dims()
	if n != c {
		return nil, errors.Errorf("not square %dx%d", n, c)
	}

	embed := mat.NewSymDense(2*n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			v := h.At(i, j)
			embed.SetSym(i, j, real(v))
			embed.SetSym(n+i, n+j, real(v))
			embed.SetSym(i, n+j, -imag(v))
			embed.SetSym(j, n+i, imag(v))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(embed, true); !ok {
		return nil, errors.Errorf("factorization of size %d failed", 2*n)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Each complex eigenvector x + iy shows up as both (x, y) and (-y, x).
	// Keep the columns that are complex linearly independent of the ones kept before.
	vvs := make([]ValVec, 0, n)
	for k := 0; k < 2*n && len(vvs) < n; k++ {
		v := make([]complex128, n)
		for i := range n {
			v[i] = complex(vecs.At(i, k), vecs.At(n+i, k))
		}
		for _, vv := range vvs {
			cmplxs.AddScaled(v, -cmplxs.Dot(vv.Vec, v), vv.Vec)
		}
		nrm := cmplxs.Norm(v, 2)
		if nrm < 1e-4 {
			continue
		}
		cmplxs.ScaleReal(1/nrm, v)
		vvs = append(vvs, ValVec{Val: vals[k], Vec: v})
	}
	if len(vvs) != n {
		return nil, errors.Errorf("%d eigenvectors, expected %d", len(vvs), n)
	}
	return vvs, nil
}
