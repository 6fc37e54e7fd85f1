// Package localham builds one-dimensional lattice Hamiltonians out of local terms and finds their
// low lying spectrum without forming the full matrix.
package localham

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/localham/exactdiag"
	"github.com/fumin/localham/mat"
)

// Supported models.
const (
	// XX is the XX chain, h = X⊗X + Y⊗Y.
	XX = "XX-G"
	// Ising is the critical transverse field Ising chain, h = -X⊗X - (Z⊗I + I⊗Z)/2.
	Ising = "Ising-G"
	// Heisenberg is the antiferromagnetic Heisenberg chain, h = X⊗X + Y⊗Y + Z⊗Z.
	Heisenberg = "Heisenberg-G"
	// IsingDisordered is the transverse field Ising chain with a random field in [0, 2) on each site.
	IsingDisordered = "Ising-disordered"
	// RandHomogC repeats one random complex Hermitian term on every placement.
	RandHomogC = "rand-homog-c"
	// RandHomogR repeats one random real symmetric term on every placement.
	RandHomogR = "rand-homog-r"
	// RandInhomogC draws an independent random complex Hermitian term for each placement.
	RandInhomogC = "rand-inhomog-c"
	// RandInhomogR draws an independent random real symmetric term for each placement.
	RandInhomogR = "rand-inhomog-r"
)

// UnknownModelError is returned for a model name outside the supported set,
// or for a lattice the model is not defined on.
type UnknownModelError struct {
	Model             string
	LocalDim          int
	InteractionLength int
	Periodic          bool
	Reason            string
}

func (e *UnknownModelError) Error() string {
	bc := "open"
	if e.Periodic {
		bc = "periodic"
	}
	return fmt.Sprintf("unknown model %q (d=%d n=%d %s): %s", e.Model, e.LocalDim, e.InteractionLength, bc, e.Reason)
}

type model struct {
	// localDim and interactionLength are zero when the model accepts any value.
	localDim          int
	interactionLength int
	build             func(g *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm
}

var models = map[string]model{
	XX:              {localDim: 2, interactionLength: 2, build: func(_ *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm { return uniform(lat, xx()) }},
	Heisenberg:      {localDim: 2, interactionLength: 2, build: func(_ *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm { return uniform(lat, heisenberg()) }},
	Ising:           {localDim: 2, interactionLength: 2, build: func(_ *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm { return ising(lat) }},
	IsingDisordered: {localDim: 2, interactionLength: 2, build: isingDisordered},
	RandHomogC:      {build: func(g *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm { return g.randHomog(lat, true) }},
	RandHomogR:      {build: func(g *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm { return g.randHomog(lat, false) }},
	RandInhomogC:    {build: func(g *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm { return g.randInhomog(lat, true) }},
	RandInhomogR:    {build: func(g *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm { return g.randInhomog(lat, false) }},
}

// Models returns the names of the supported models in sorted order.
func Models() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ModelShape returns the local dimension and interaction length model is defined for.
// Both are zero when the model accepts any lattice. ok is false for an unknown model.
func ModelShape(model string) (localDim, interactionLength int, ok bool) {
	m, ok := models[model]
	return m.localDim, m.interactionLength, ok
}

// BulkTerm returns the two site term a fixed model places on every bond of a periodic chain.
// ok is false for disordered, random and unknown models.
func BulkTerm(model string) (h *mat.COO, ok bool) {
	switch model {
	case XX:
		return xx(), true
	case Heisenberg:
		return heisenberg(), true
	case Ising:
		return isingBond(0.5, 0.5), true
	}
	return nil, false
}

// SeedSource returns a source of random streams keyed by site index.
// The stream of a site depends only on seed and the site,
// so a term drawn for site k is the same regardless of the lattice size.
func SeedSource(seed uint64) func(site int) *rand.Rand {
	return func(site int) *rand.Rand {
		return rand.New(rand.NewPCG(seed, uint64(site)))
	}
}

// Generator builds the local terms of a model.
type Generator struct {
	// Source returns the random stream of a site for randomized models.
	Source func(site int) *rand.Rand
}

// NewGenerator returns a generator whose randomized models are seeded by seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{Source: SeedSource(seed)}
}

// Generate returns the local terms of model with the default seed. See Generator.Generate.
func Generate(model string, numSites int, periodic bool, localDim, interactionLength int) ([]exactdiag.LocalTerm, int, error) {
	return NewGenerator(0).Generate(model, numSites, periodic, localDim, interactionLength)
}

// Generate returns the local terms of model on a chain of numSites sites, together with the interaction length
// of the terms. Every anchor site of the chain is covered by exactly one term.
func (g *Generator) Generate(model string, numSites int, periodic bool, localDim, interactionLength int) ([]exactdiag.LocalTerm, int, error) {
	m, ok := models[model]
	if !ok {
		return nil, -1, &UnknownModelError{Model: model, LocalDim: localDim, InteractionLength: interactionLength, Periodic: periodic, Reason: "not a supported model"}
	}
	if m.localDim != 0 && (localDim != m.localDim || interactionLength != m.interactionLength) {
		reason := fmt.Sprintf("defined only for d=%d n=%d", m.localDim, m.interactionLength)
		return nil, -1, &UnknownModelError{Model: model, LocalDim: localDim, InteractionLength: interactionLength, Periodic: periodic, Reason: reason}
	}

	lat := exactdiag.Lattice{NumSites: numSites, LocalDim: localDim, InteractionLength: interactionLength, Periodic: periodic}
	if err := lat.Validate(); err != nil {
		return nil, -1, errors.Wrap(err, "")
	}

	terms := m.build(g, lat)
	if err := exactdiag.CheckCoverage(lat, terms); err != nil {
		return nil, -1, errors.Wrap(err, model)
	}
	return terms, interactionLength, nil
}

// uniform applies h on every placement.
func uniform(lat exactdiag.Lattice, h *mat.COO) []exactdiag.LocalTerm {
	return []exactdiag.LocalTerm{{Name: "bulk", H: h.CDense(), Sites: lat.Placements()}}
}

func xx() *mat.COO {
	h := mat.KronAll(mat.M(mat.PauliX), mat.M(mat.PauliX))
	h.Add(1, mat.KronAll(mat.M(mat.PauliY), mat.M(mat.PauliY)))
	return h
}

func heisenberg() *mat.COO {
	h := xx()
	h.Add(1, mat.KronAll(mat.M(mat.PauliZ), mat.M(mat.PauliZ)))
	return h
}

// isingBond returns -X⊗X - hl Z⊗I - hr I⊗Z.
func isingBond(hl, hr float64) *mat.COO {
	id := mat.COOIdentity(2)
	h := mat.COOZeros(4, 4)
	h.Add(-1, mat.KronAll(mat.M(mat.PauliX), mat.M(mat.PauliX)))
	h.Add(complex(-hl, 0), mat.KronAll(mat.M(mat.PauliZ), id))
	h.Add(complex(-hr, 0), mat.KronAll(id, mat.M(mat.PauliZ)))
	return h
}

// ising splits the unit field of each site evenly between the bonds touching it.
// On an open chain the end sites touch a single bond, which therefore carries their whole field.
func ising(lat exactdiag.Lattice) []exactdiag.LocalTerm {
	if lat.Periodic {
		return uniform(lat, isingBond(0.5, 0.5))
	}

	n := lat.NumSites
	if n == 2 {
		return []exactdiag.LocalTerm{{Name: "both", H: isingBond(1, 1).CDense(), Sites: []int{0}}}
	}
	terms := []exactdiag.LocalTerm{{Name: "left", H: isingBond(1, 0.5).CDense(), Sites: []int{0}}}
	if n > 3 {
		bulk := make([]int, 0, n-3)
		for s := 1; s <= n-3; s++ {
			bulk = append(bulk, s)
		}
		terms = append(terms, exactdiag.LocalTerm{Name: "bulk", H: isingBond(0.5, 0.5).CDense(), Sites: bulk})
	}
	terms = append(terms, exactdiag.LocalTerm{Name: "right", H: isingBond(0.5, 1).CDense(), Sites: []int{n - 2}})
	return terms
}

func isingDisordered(g *Generator, lat exactdiag.Lattice) []exactdiag.LocalTerm {
	n := lat.NumSites
	field := make([]float64, n)
	bonds := make([]int, n)
	for i := range n {
		field[i] = 2 * g.Source(i).Float64()
	}
	placements := lat.Placements()
	for _, s := range placements {
		bonds[s]++
		bonds[(s+1)%n]++
	}

	terms := make([]exactdiag.LocalTerm, 0, len(placements))
	for _, s := range placements {
		r := (s + 1) % n
		h := isingBond(field[s]/float64(bonds[s]), field[r]/float64(bonds[r]))
		terms = append(terms, exactdiag.LocalTerm{Name: fmt.Sprintf("site-%d", s), H: h.CDense(), Sites: []int{s}})
	}
	return terms
}

func (g *Generator) randHomog(lat exactdiag.Lattice, complexValued bool) []exactdiag.LocalTerm {
	h := randomHermitian(g.Source(0), lat.TermDim(), complexValued)
	return uniform(lat, h)
}

func (g *Generator) randInhomog(lat exactdiag.Lattice, complexValued bool) []exactdiag.LocalTerm {
	placements := lat.Placements()
	terms := make([]exactdiag.LocalTerm, 0, len(placements))
	for _, s := range placements {
		h := randomHermitian(g.Source(s), lat.TermDim(), complexValued)
		terms = append(terms, exactdiag.LocalTerm{Name: fmt.Sprintf("site-%d", s), H: h.CDense(), Sites: []int{s}})
	}
	return terms
}

// randomHermitian returns A + A^† for A with entries uniform in [0, 1), real or complex.
func randomHermitian(rng *rand.Rand, dim int, complexValued bool) *mat.COO {
	a := make([][]complex128, dim)
	for i := range a {
		a[i] = make([]complex128, dim)
		for j := range a[i] {
			v := complex(rng.Float64(), 0)
			if complexValued {
				v += complex(0, rng.Float64())
			}
			a[i][j] = v
		}
	}

	h := make([][]complex128, dim)
	for i := range h {
		h[i] = make([]complex128, dim)
		for j := range h[i] {
			h[i][j] = a[i][j] + complex(real(a[j][i]), -imag(a[j][i]))
		}
	}
	return mat.M(h)
}
