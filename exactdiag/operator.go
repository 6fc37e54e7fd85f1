package exactdiag

import (
	"slices"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

// LinearOperator is a square matrix known only through its action on vectors.
type LinearOperator interface {
	// Dim returns the number of rows.
	Dim() int
	// MatVec overwrites dst with the operator applied to src.
	MatVec(dst, src []complex128) error
}

// Operator is a Hamiltonian given as a sum of local terms, each applied at the sites it is tagged with.
// An Operator is immutable and safe for concurrent use.
type Operator struct {
	lat        Lattice
	terms      []LocalTerm
	placements []placement
	workers    int
}

type placement struct {
	name string
	site int
	h    cblas128.General
	// hReal is set only when every term of the operator is real.
	hReal blas64.General
}

// NewOperator returns the sum over terms and their sites of the local terms.
func NewOperator(lat Lattice, terms []LocalTerm) (*Operator, error) {
	if err := lat.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	allReal := true
	for _, t := range terms {
		if !t.IsReal() {
			allReal = false
		}
	}

	o := &Operator{lat: lat, terms: terms, workers: 1}
	for _, t := range terms {
		r, c := t.H.Dims()
		if r != lat.TermDim() || c != lat.TermDim() {
			return nil, errors.Errorf("%q term shape %dx%d, expected %dx%d", t.Name, r, c, lat.TermDim(), lat.TermDim())
		}
		var hReal blas64.General
		if allReal {
			hReal = realPart(t.H).RawMatrix()
		}
		for _, s := range t.Sites {
			if err := checkPlacement(s, lat); err != nil {
				return nil, errors.Wrap(err, t.Name)
			}
			o.placements = append(o.placements, placement{name: t.Name, site: s, h: t.H.RawCMatrix(), hReal: hReal})
		}
	}
	return o, nil
}

// Workers returns a copy of o that splits the placements over w goroutines.
// Each goroutine accumulates into its own vector and the partial sums are added at the end.
func (o *Operator) Workers(w int) *Operator {
	c := *o
	c.workers = max(1, w)
	return &c
}

// Dim returns the length of the vectors o acts on.
func (o *Operator) Dim() int { return o.lat.Dim() }

// Lattice returns the lattice of o.
func (o *Operator) Lattice() Lattice { return o.lat }

// Terms returns the local terms of o, which must not be modified.
func (o *Operator) Terms() []LocalTerm { return o.terms }

// NumPlacements returns the number of local contractions per application.
func (o *Operator) NumPlacements() int { return len(o.placements) }

// IsReal reports whether all terms are real, in which case ApplyReal is available.
func (o *Operator) IsReal() bool {
	for _, p := range o.placements {
		if p.hReal.Data == nil {
			return false
		}
	}
	return true
}

// Apply returns the Hamiltonian applied to psi. psi is not modified.
func (o *Operator) Apply(psi []complex128) ([]complex128, error) {
	dst := make([]complex128, len(psi))
	if err := o.MatVec(dst, psi); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return dst, nil
}

// MatVec overwrites dst with the Hamiltonian applied to src. dst and src must not overlap.
func (o *Operator) MatVec(dst, src []complex128) error {
	if len(src) != o.Dim() || len(dst) != len(src) {
		return errors.Errorf("vector lengths %d %d, expected %d", len(dst), len(src), o.Dim())
	}
	if len(src) > 0 && &dst[0] == &src[0] {
		return errors.Errorf("dst aliases src")
	}
	clear(dst)

	if o.workers <= 1 || len(o.placements) <= 1 {
		var ws workspace
		for _, p := range o.placements {
			if err := applyLocalTerm(dst, src, p.h, p.site, o.lat, &ws); err != nil {
				return errors.Wrap(err, p.name)
			}
		}
		return nil
	}

	w := min(o.workers, len(o.placements))
	partial := make([][]complex128, w)
	errs := make([]error, w)
	var wg sync.WaitGroup
	for i := range w {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			acc := make([]complex128, len(src))
			var ws workspace
			for j := idx; j < len(o.placements); j += w {
				p := o.placements[j]
				if err := applyLocalTerm(acc, src, p.h, p.site, o.lat, &ws); err != nil {
					errs[idx] = errors.Wrap(err, p.name)
					return
				}
			}
			partial[idx] = acc
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for _, acc := range partial {
		cmplxs.Add(dst, acc)
	}
	return nil
}

// ApplyReal returns the Hamiltonian applied to the real vector psi.
// It fails unless every term is real.
func (o *Operator) ApplyReal(psi []float64) ([]float64, error) {
	if !o.IsReal() {
		return nil, errors.Errorf("operator has complex terms")
	}
	if len(psi) != o.Dim() {
		return nil, errors.Errorf("vector length %d, expected %d", len(psi), o.Dim())
	}

	dst := make([]float64, len(psi))
	var ws workspaceReal
	for _, p := range o.placements {
		if err := applyLocalTermReal(dst, psi, p.hReal, p.site, o.lat, &ws); err != nil {
			return nil, errors.Wrap(err, p.name)
		}
	}
	return dst, nil
}

// Apply64 returns the Hamiltonian applied to psi in single precision.
func (o *Operator) Apply64(psi []complex64) ([]complex64, error) {
	if len(psi) != o.Dim() {
		return nil, errors.Errorf("vector length %d, expected %d", len(psi), o.Dim())
	}

	return o.apply64(psi, o.terms64())
}

// apply64 is Apply64 with the terms already rounded to single precision, h64[i] being terms[i].
func (o *Operator) apply64(psi []complex64, h64 [][][]complex64) ([]complex64, error) {
	dst := make([]complex64, len(psi))
	for i, t := range o.terms {
		for _, s := range t.Sites {
			hpsi, err := ApplyLocalTerm64(psi, h64[i], s, o.lat)
			if err != nil {
				return nil, errors.Wrap(err, t.Name)
			}
			for j, v := range hpsi {
				dst[j] += v
			}
		}
	}
	return dst, nil
}

// Precision is the arithmetic an operator applies its terms in.
type Precision string

const (
	Double Precision = "double"
	Single Precision = "single"
)

// Precisions lists the supported precisions.
var Precisions = []Precision{Double, Single}

// Valid reports whether p is a supported precision. The empty precision means Double.
func (p Precision) Valid() bool {
	return p == "" || slices.Contains(Precisions, p)
}

// WithPrecision returns o as a LinearOperator applying its terms in arithmetic p.
// Single precision applications run on one goroutine.
func (o *Operator) WithPrecision(p Precision) (LinearOperator, error) {
	switch p {
	case "", Double:
		return o, nil
	case Single:
		return singleOperator{o: o, h64: o.terms64()}, nil
	}
	return nil, errors.Errorf("unknown precision %q, expected one of %v", p, Precisions)
}

// singleOperator rounds vectors to complex64 around Apply64.
type singleOperator struct {
	o   *Operator
	h64 [][][]complex64
}

func (s singleOperator) Dim() int { return s.o.Dim() }

func (s singleOperator) MatVec(dst, src []complex128) error {
	if len(dst) != s.o.Dim() || len(src) != s.o.Dim() {
		return errors.Errorf("vector lengths %d %d, expected %d", len(dst), len(src), s.o.Dim())
	}
	psi := make([]complex64, len(src))
	for i, v := range src {
		psi[i] = complex64(v)
	}
	hpsi, err := s.o.apply64(psi, s.h64)
	if err != nil {
		return errors.Wrap(err, "")
	}
	for i, v := range hpsi {
		dst[i] = complex128(v)
	}
	return nil
}

func (o *Operator) terms64() [][][]complex64 {
	h64 := make([][][]complex64, len(o.terms))
	for i, t := range o.terms {
		h64[i] = toComplex64(t.H)
	}
	return h64
}

func realPart(h *mat.CDense) *mat.Dense {
	r, c := h.Dims()
	re := mat.NewDense(r, c, nil)
	for i := range r {
		for j := range c {
			re.Set(i, j, real(h.At(i, j)))
		}
	}
	return re
}

func toComplex64(h *mat.CDense) [][]complex64 {
	r, c := h.Dims()
	h64 := make([][]complex64, r)
	for i := range h64 {
		h64[i] = make([]complex64, c)
		for j := range h64[i] {
			h64[i][j] = complex64(h.At(i, j))
		}
	}
	return h64
}
