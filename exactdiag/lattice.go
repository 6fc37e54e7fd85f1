// Package exactdiag applies Hamiltonians made of local terms to many-body state vectors without
// materializing the full d^N × d^N matrix, and finds their lowest eigenpairs with a restarted Lanczos solver.
//
// A state of N sites with local dimension d is a rank-N tensor flattened in row-major order, so site 0
// is the most significant digit of the flat index.
//
// References:
//   - Exact diagonalization tutorial, Glen Evenbly, https://www.tensors.net
package exactdiag

import (
	"fmt"
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// maxDim bounds the length of a state vector.
const maxDim = 1 << 34

// Lattice is a one-dimensional chain of NumSites sites, each holding a LocalDim level system,
// with local terms acting on InteractionLength consecutive sites.
type Lattice struct {
	NumSites          int
	LocalDim          int
	InteractionLength int
	Periodic          bool
}

// Validate checks the lattice invariants.
func (l Lattice) Validate() error {
	if l.NumSites < 2 {
		return errors.Errorf("number of sites %d < 2", l.NumSites)
	}
	if l.LocalDim < 1 {
		return errors.Errorf("local dimension %d < 1", l.LocalDim)
	}
	if l.InteractionLength < 1 {
		return errors.Errorf("interaction length %d < 1", l.InteractionLength)
	}
	if l.InteractionLength > l.NumSites {
		return errors.Errorf("interaction length %d > number of sites %d", l.InteractionLength, l.NumSites)
	}
	if _, ok := ipow(l.LocalDim, l.NumSites); !ok {
		return errors.Errorf("state dimension %d^%d too large", l.LocalDim, l.NumSites)
	}
	return nil
}

// Dim returns the length of a state vector, LocalDim^NumSites.
func (l Lattice) Dim() int {
	d, _ := ipow(l.LocalDim, l.NumSites)
	return d
}

// TermDim returns the number of rows of a local term, LocalDim^InteractionLength.
func (l Lattice) TermDim() int {
	d, _ := ipow(l.LocalDim, l.InteractionLength)
	return d
}

// Placements returns the anchor sites of local terms.
// On a ring every site anchors a term, on an open chain only those whose span fits inside the chain.
func (l Lattice) Placements() []int {
	n := l.NumSites
	if !l.Periodic {
		n = l.NumSites - l.InteractionLength + 1
	}
	sites := make([]int, 0, n)
	for i := range n {
		sites = append(sites, i)
	}
	return sites
}

// Axes returns the tensor axes a term anchored at site acts on, in the order of the term's legs.
func (l Lattice) Axes(site int) ([]int, error) {
	if err := checkPlacement(site, l); err != nil {
		return nil, err
	}

	axes := make([]int, 0, l.InteractionLength)
	for j := range l.InteractionLength {
		axes = append(axes, (site+j)%l.NumSites)
	}
	return axes, nil
}

func (l Lattice) String() string {
	bc := "open"
	if l.Periodic {
		bc = "periodic"
	}
	return fmt.Sprintf("N=%d d=%d n=%d %s", l.NumSites, l.LocalDim, l.InteractionLength, bc)
}

// BoundaryViolationError is returned when a term placement needs sites outside the lattice,
// in particular wraparound on an open chain.
type BoundaryViolationError struct {
	Site              int
	NumSites          int
	InteractionLength int
}

func (e *BoundaryViolationError) Error() string {
	if e.Site < 0 || e.Site >= e.NumSites {
		return fmt.Sprintf("boundary violation: site %d outside lattice of %d sites", e.Site, e.NumSites)
	}
	return fmt.Sprintf("boundary violation: term of length %d at site %d wraps around an open chain of %d sites", e.InteractionLength, e.Site, e.NumSites)
}

// LocalTerm is a local Hamiltonian operator together with the sites it is anchored at.
// H is a TermDim × TermDim matrix whose row index enumerates the acted-on sites with the anchor most significant.
// A LocalTerm is shared read-only between operator applications and must not be modified after construction.
type LocalTerm struct {
	// Name tags the class of the term, such as "bulk", "left" or "right".
	Name  string
	H     *mat.CDense
	Sites []int
}

// IsReal reports whether all entries of the term are real.
func (t LocalTerm) IsReal() bool {
	raw := t.H.RawCMatrix()
	for i := range raw.Rows {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols] {
			if imag(v) != 0 {
				return false
			}
		}
	}
	return true
}

// IsHermitian reports whether the term equals its conjugate transpose within tol.
func (t LocalTerm) IsHermitian(tol float64) bool {
	r, c := t.H.Dims()
	if r != c {
		return false
	}
	return mat.CEqualApprox(t.H, t.H.H(), tol)
}

// CheckCoverage verifies that the placements of terms cover every anchor site of the lattice exactly once.
func CheckCoverage(lat Lattice, terms []LocalTerm) error {
	want := lat.Placements()
	count := make([]int, lat.NumSites)
	owner := make([]string, lat.NumSites)
	for _, t := range terms {
		for _, s := range t.Sites {
			if !slices.Contains(want, s) {
				return errors.Wrap(&BoundaryViolationError{Site: s, NumSites: lat.NumSites, InteractionLength: lat.InteractionLength}, t.Name)
			}
			count[s]++
			if count[s] > 1 {
				return errors.Errorf("site %d covered by both %q and %q", s, owner[s], t.Name)
			}
			owner[s] = t.Name
		}
	}
	for _, s := range want {
		if count[s] == 0 {
			return errors.Errorf("site %d not covered by any term", s)
		}
	}
	return nil
}

// ipow returns b^e and whether it stays within maxDim.
func ipow(b, e int) (int, bool) {
	p := 1
	for range e {
		if b != 0 && p > maxDim/b {
			return math.MaxInt, false
		}
		p *= b
	}
	return p, true
}
