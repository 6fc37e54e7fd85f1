package exactdiag

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var engineLattices = []Lattice{
	{NumSites: 3, LocalDim: 2, InteractionLength: 1},
	{NumSites: 4, LocalDim: 3, InteractionLength: 1, Periodic: true},
	{NumSites: 2, LocalDim: 2, InteractionLength: 2, Periodic: true},
	{NumSites: 4, LocalDim: 2, InteractionLength: 2, Periodic: true},
	{NumSites: 5, LocalDim: 2, InteractionLength: 2},
	{NumSites: 3, LocalDim: 3, InteractionLength: 2, Periodic: true},
	{NumSites: 5, LocalDim: 2, InteractionLength: 3, Periodic: true},
	{NumSites: 3, LocalDim: 3, InteractionLength: 3, Periodic: true},
	{NumSites: 4, LocalDim: 3, InteractionLength: 3},
}

func TestApplyLocalTerm(t *testing.T) {
	t.Parallel()
	for i, lat := range engineLattices {
		t.Run(fmt.Sprintf("%d %v", i, lat), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(uint64(i), 1))
			for _, site := range lat.Placements() {
				h := randomTerm(rng, lat.TermDim(), false)
				psi := randomState(rng, lat.Dim())
				orig := slices.Clone(psi)

				got, err := ApplyLocalTerm(psi, h, site, lat)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				expected := naiveApply(psi, h, site, lat)
				if diff := maxDiff(got, expected); diff > 1e-12 {
					t.Fatalf("site %d diff %g, %v, expected %v", site, diff, got, expected)
				}
				if !slices.Equal(psi, orig) {
					t.Fatalf("psi modified")
				}
			}
		})
	}
}

func TestApplyLocalTermIdentity(t *testing.T) {
	t.Parallel()
	lat := Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 3, Periodic: true}
	id := mat.NewCDense(8, 8, nil)
	for i := range 8 {
		id.Set(i, i, 1)
	}
	psi := randomState(rand.New(rand.NewPCG(0, 0)), lat.Dim())
	for _, site := range lat.Placements() {
		got, err := ApplyLocalTerm(psi, id, site, lat)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if !slices.Equal(got, psi) {
			t.Fatalf("site %d %v, expected %v", site, got, psi)
		}
	}
}

func TestApplyLocalTermReal(t *testing.T) {
	t.Parallel()
	for i, lat := range engineLattices {
		t.Run(fmt.Sprintf("%d %v", i, lat), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(uint64(i), 2))
			for _, site := range lat.Placements() {
				termDim := lat.TermDim()
				h := mat.NewDense(termDim, termDim, nil)
				hc := mat.NewCDense(termDim, termDim, nil)
				for r := range termDim {
					for c := range termDim {
						v := rng.NormFloat64()
						h.Set(r, c, v)
						hc.Set(r, c, complex(v, 0))
					}
				}
				psi := make([]float64, lat.Dim())
				psic := make([]complex128, lat.Dim())
				for j := range psi {
					psi[j] = rng.NormFloat64()
					psic[j] = complex(psi[j], 0)
				}

				got, err := ApplyLocalTermReal(psi, h, site, lat)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				expected := naiveApply(psic, hc, site, lat)
				for j := range got {
					if diff := got[j] - real(expected[j]); diff > 1e-12 || diff < -1e-12 {
						t.Fatalf("site %d index %d %f, expected %f", site, j, got[j], real(expected[j]))
					}
				}
			}
		})
	}
}

func TestApplyLocalTerm64(t *testing.T) {
	t.Parallel()
	for i, lat := range engineLattices {
		t.Run(fmt.Sprintf("%d %v", i, lat), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(uint64(i), 3))
			for _, site := range lat.Placements() {
				h := randomTerm(rng, lat.TermDim(), true)
				psi := randomState(rng, lat.Dim())

				expected, err := ApplyLocalTerm(psi, h, site, lat)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				got, err := ApplyLocalTerm64(complex64s(psi), toComplex64(h), site, lat)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				for j := range got {
					if diff := complex128(got[j]) - expected[j]; real(diff)*real(diff)+imag(diff)*imag(diff) > 1e-8 {
						t.Fatalf("site %d index %d %v, expected %v", site, j, got[j], expected[j])
					}
				}
			}
		})
	}
}

func complex64s(v []complex128) []complex64 {
	w := make([]complex64, len(v))
	for i, c := range v {
		w[i] = complex64(c)
	}
	return w
}

func TestRoll(t *testing.T) {
	t.Parallel()
	const d, numSites = 3, 4
	n := 81
	src := randomState(rand.New(rand.NewPCG(4, 4)), n)
	p := 1
	for k := range numSites + 1 {
		q := n / p
		rolled := make([]complex128, n)
		roll(rolled, src, p, q)

		back := make([]complex128, n)
		roll(back, rolled, q, p)
		if !slices.Equal(back, src) {
			t.Fatalf("k %d roll is not inverted by the reverse roll", k)
		}
		acc := make([]complex128, n)
		unrollAdd(acc, rolled, p, q)
		if !slices.Equal(acc, src) {
			t.Fatalf("k %d unrollAdd is not the inverse of roll", k)
		}
		p *= d
	}
}

func TestBoundaryViolation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lat  Lattice
		site int
	}{
		{lat: Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 2}, site: 3},
		{lat: Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 3}, site: 2},
		{lat: Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 2, Periodic: true}, site: 4},
		{lat: Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 1, Periodic: true}, site: -1},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			t.Parallel()
			h := mat.NewCDense(test.lat.TermDim(), test.lat.TermDim(), nil)
			psi := make([]complex128, test.lat.Dim())
			_, err := ApplyLocalTerm(psi, h, test.site, test.lat)
			var bv *BoundaryViolationError
			if !errors.As(err, &bv) {
				t.Fatalf("%+v, expected BoundaryViolationError", err)
			}
			if bv.Site != test.site {
				t.Fatalf("%d, expected %d", bv.Site, test.site)
			}

			_, err = ApplyLocalTermReal(make([]float64, test.lat.Dim()), mat.NewDense(test.lat.TermDim(), test.lat.TermDim(), nil), test.site, test.lat)
			if !errors.As(err, &bv) {
				t.Fatalf("%+v, expected BoundaryViolationError", err)
			}
		})
	}
}

func TestApplyLocalTermShapes(t *testing.T) {
	t.Parallel()
	lat := Lattice{NumSites: 3, LocalDim: 2, InteractionLength: 2, Periodic: true}
	if _, err := ApplyLocalTerm(make([]complex128, 7), mat.NewCDense(4, 4, nil), 0, lat); err == nil {
		t.Fatalf("expected error for short state")
	}
	if _, err := ApplyLocalTerm(make([]complex128, 8), mat.NewCDense(2, 2, nil), 0, lat); err == nil {
		t.Fatalf("expected error for small term")
	}
	if _, err := ApplyLocalTerm(make([]complex128, 8), mat.NewCDense(4, 4, nil), 0, Lattice{NumSites: 1, LocalDim: 2, InteractionLength: 1}); err == nil {
		t.Fatalf("expected error for invalid lattice")
	}
	if _, err := ApplyLocalTerm64(make([]complex64, 8), nil, 0, lat); err == nil {
		t.Fatalf("expected error for empty term")
	}
}

func TestLattice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lat        Lattice
		valid      bool
		dim        int
		placements []int
	}{
		{lat: Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 2, Periodic: true}, valid: true, dim: 16, placements: []int{0, 1, 2, 3}},
		{lat: Lattice{NumSites: 4, LocalDim: 3, InteractionLength: 2}, valid: true, dim: 81, placements: []int{0, 1, 2}},
		{lat: Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 4}, valid: true, dim: 16, placements: []int{0}},
		{lat: Lattice{NumSites: 1, LocalDim: 2, InteractionLength: 1}},
		{lat: Lattice{NumSites: 4, LocalDim: 0, InteractionLength: 1}},
		{lat: Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 0}},
		{lat: Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 5}},
		{lat: Lattice{NumSites: 64, LocalDim: 2, InteractionLength: 2}},
	}
	for _, test := range tests {
		err := test.lat.Validate()
		if (err == nil) != test.valid {
			t.Fatalf("%v %+v, expected valid %v", test.lat, err, test.valid)
		}
		if !test.valid {
			continue
		}
		if test.lat.Dim() != test.dim {
			t.Fatalf("%d, expected %d", test.lat.Dim(), test.dim)
		}
		if p := test.lat.Placements(); !slices.Equal(p, test.placements) {
			t.Fatalf("%v, expected %v", p, test.placements)
		}
	}

	ring := Lattice{NumSites: 5, LocalDim: 2, InteractionLength: 3, Periodic: true}
	axes, err := ring.Axes(3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(axes, []int{3, 4, 0}) {
		t.Fatalf("%v, expected %v", axes, []int{3, 4, 0})
	}
}

func TestCheckCoverage(t *testing.T) {
	t.Parallel()
	lat := Lattice{NumSites: 4, LocalDim: 2, InteractionLength: 2}
	h := isingBond()
	tests := []struct {
		terms []LocalTerm
		ok    bool
	}{
		{terms: []LocalTerm{{Name: "left", H: h, Sites: []int{0}}, {Name: "bulk", H: h, Sites: []int{1}}, {Name: "right", H: h, Sites: []int{2}}}, ok: true},
		{terms: []LocalTerm{{Name: "bulk", H: h, Sites: []int{0, 1}}}},
		{terms: []LocalTerm{{Name: "bulk", H: h, Sites: []int{0, 1, 2}}, {Name: "extra", H: h, Sites: []int{1}}}},
		{terms: []LocalTerm{{Name: "bulk", H: h, Sites: []int{0, 1, 2, 3}}}},
	}
	for i, test := range tests {
		err := CheckCoverage(lat, test.terms)
		if (err == nil) != test.ok {
			t.Fatalf("%d %+v, expected ok %v", i, err, test.ok)
		}
	}

	var bv *BoundaryViolationError
	if err := CheckCoverage(lat, tests[3].terms); !errors.As(err, &bv) {
		t.Fatalf("%+v, expected BoundaryViolationError", err)
	}
}
