package exactdiag

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// ApplyLocalTerm returns h acting on the sites site, site+1, ..., site+n-1 of psi, where n is lat.InteractionLength.
// Under periodic boundaries the sites are taken modulo lat.NumSites,
// on an open chain a span past the last site is a *BoundaryViolationError.
// psi is not modified.
func ApplyLocalTerm(psi []complex128, h *mat.CDense, site int, lat Lattice) ([]complex128, error) {
	if err := lat.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	r, c := h.Dims()
	if err := checkShapes(len(psi), r, c, lat); err != nil {
		return nil, errors.Wrap(err, "")
	}

	dst := make([]complex128, len(psi))
	var ws workspace
	if err := applyLocalTerm(dst, psi, h.RawCMatrix(), site, lat, &ws); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return dst, nil
}

// ApplyLocalTermReal is ApplyLocalTerm in real arithmetic.
func ApplyLocalTermReal(psi []float64, h *mat.Dense, site int, lat Lattice) ([]float64, error) {
	if err := lat.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	r, c := h.Dims()
	if err := checkShapes(len(psi), r, c, lat); err != nil {
		return nil, errors.Wrap(err, "")
	}

	dst := make([]float64, len(psi))
	var ws workspaceReal
	if err := applyLocalTermReal(dst, psi, h.RawMatrix(), site, lat, &ws); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return dst, nil
}

// applyLocalTerm adds h acting on the sites anchored at site of psi into dst.
func applyLocalTerm(dst, psi []complex128, h cblas128.General, site int, lat Lattice, ws *workspace) error {
	if err := checkPlacement(site, lat); err != nil {
		return err
	}
	d, numSites, n := lat.LocalDim, lat.NumSites, lat.InteractionLength

	if site+n <= numSites {
		left, _ := ipow(d, site)
		right, _ := ipow(d, numSites-site-n)
		contract(dst, psi, h, left, h.Rows, right, 1)
		return nil
	}

	// The term wraps around the ring.
	// Roll the axes so that site becomes axis 0, contract the leading axes, and roll back.
	p, _ := ipow(d, site)
	q := len(psi) / p
	rolled, out := ws.get(len(psi))
	roll(rolled, psi, p, q)
	contract(out, rolled, h, 1, h.Rows, len(psi)/h.Rows, 0)
	unrollAdd(dst, out, p, q)
	return nil
}

// contract computes dst[l, :, r] = h @ psi[l, :, r] + beta*dst[l, :, r],
// where psi and dst are viewed as left × termDim × right tensors.
func contract(dst, psi []complex128, h cblas128.General, left, termDim, right int, beta complex128) {
	block := termDim * right
	for l := range left {
		b := cblas128.General{Rows: termDim, Cols: right, Stride: right, Data: psi[l*block : (l+1)*block]}
		c := cblas128.General{Rows: termDim, Cols: right, Stride: right, Data: dst[l*block : (l+1)*block]}
		cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, h, b, beta, c)
	}
}

func applyLocalTermReal(dst, psi []float64, h blas64.General, site int, lat Lattice, ws *workspaceReal) error {
	if err := checkPlacement(site, lat); err != nil {
		return err
	}
	d, numSites, n := lat.LocalDim, lat.NumSites, lat.InteractionLength

	if site+n <= numSites {
		left, _ := ipow(d, site)
		right, _ := ipow(d, numSites-site-n)
		contractReal(dst, psi, h, left, h.Rows, right, 1)
		return nil
	}

	p, _ := ipow(d, site)
	q := len(psi) / p
	rolled, out := ws.get(len(psi))
	roll(rolled, psi, p, q)
	contractReal(out, rolled, h, 1, h.Rows, len(psi)/h.Rows, 0)
	unrollAdd(dst, out, p, q)
	return nil
}

func contractReal(dst, psi []float64, h blas64.General, left, termDim, right int, beta float64) {
	block := termDim * right
	for l := range left {
		b := blas64.General{Rows: termDim, Cols: right, Stride: right, Data: psi[l*block : (l+1)*block]}
		c := blas64.General{Rows: termDim, Cols: right, Stride: right, Data: dst[l*block : (l+1)*block]}
		blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, h, b, beta, c)
	}
}

// roll writes src, viewed as a p × q matrix, transposed into dst.
// For p = d^k this cyclically shifts the tensor axes left by k, so that axis k becomes axis 0.
func roll[T any](dst, src []T, p, q int) {
	for i := range p {
		row := src[i*q : (i+1)*q]
		for j, v := range row {
			dst[j*p+i] = v
		}
	}
}

// unrollAdd undoes roll and accumulates the result into dst.
func unrollAdd[T float64 | complex128](dst, src []T, p, q int) {
	for i := range p {
		row := dst[i*q : (i+1)*q]
		for j := range row {
			row[j] += src[j*p+i]
		}
	}
}

func checkPlacement(site int, lat Lattice) error {
	if site < 0 || site >= lat.NumSites || (!lat.Periodic && site+lat.InteractionLength > lat.NumSites) {
		return &BoundaryViolationError{Site: site, NumSites: lat.NumSites, InteractionLength: lat.InteractionLength}
	}
	return nil
}

func checkShapes(n, rows, cols int, lat Lattice) error {
	if n != lat.Dim() {
		return errors.Errorf("state length %d, expected %d for %v", n, lat.Dim(), lat)
	}
	if rows != lat.TermDim() || cols != lat.TermDim() {
		return errors.Errorf("term shape %dx%d, expected %dx%d", rows, cols, lat.TermDim(), lat.TermDim())
	}
	return nil
}

// workspace holds the scratch vectors of wraparound contractions.
type workspace struct {
	rolled []complex128
	out    []complex128
}

func (ws *workspace) get(n int) ([]complex128, []complex128) {
	if len(ws.rolled) != n {
		ws.rolled = make([]complex128, n)
		ws.out = make([]complex128, n)
	}
	return ws.rolled, ws.out
}

type workspaceReal struct {
	rolled []float64
	out    []float64
}

func (ws *workspaceReal) get(n int) ([]float64, []float64) {
	if len(ws.rolled) != n {
		ws.rolled = make([]float64, n)
		ws.out = make([]float64, n)
	}
	return ws.rolled, ws.out
}
