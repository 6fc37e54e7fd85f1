package exactdiag

import (
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// ApplyLocalTerm64 is the single precision counterpart of ApplyLocalTerm.
// The state is held as a rank-N tensor, the term legs are contracted against the acted-on axes,
// and the result is transposed back to site order.
func ApplyLocalTerm64(psi []complex64, h [][]complex64, site int, lat Lattice) ([]complex64, error) {
	if err := lat.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if len(h) == 0 {
		return nil, errors.Errorf("empty term")
	}
	if err := checkShapes(len(psi), len(h), len(h[0]), lat); err != nil {
		return nil, errors.Wrap(err, "")
	}
	axes, err := lat.Axes(site)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	d, numSites, n := lat.LocalDim, lat.NumSites, lat.InteractionLength
	state := fromFlat(tensor.Zeros(repeat(d, numSites)...), psi, d)
	term := tensor.T2(h).Reshape(repeat(d, 2*n)...)

	// The input legs of the term are its last n axes.
	contracted := make([][2]int, 0, n)
	for j, a := range axes {
		contracted = append(contracted, [2]int{n + j, a})
	}
	// prod has the output legs of the term first, followed by the untouched sites in increasing order.
	prod := tensor.Contract(tensor.Zeros(1), term, state, contracted)

	perm := make([]int, numSites)
	for j, a := range axes {
		perm[a] = j
	}
	next := n
	for s := range numSites {
		if slices.Contains(axes, s) {
			continue
		}
		perm[s] = next
		next++
	}
	out := resetCopy(tensor.Zeros(1), prod.Transpose(perm...))

	return toFlat(make([]complex64, len(psi)), out, d), nil
}

// fromFlat fills t, a tensor of shape {d, d, ..., d}, from the row-major vector v.
func fromFlat(t *tensor.Dense, v []complex64, d int) *tensor.Dense {
	for ijk := range t.All() {
		t.SetAt(ijk, v[flatIndex(ijk, d)])
	}
	return t
}

// toFlat writes the tensor t of shape {d, d, ..., d} into v in row-major order.
func toFlat(v []complex64, t *tensor.Dense, d int) []complex64 {
	for ijk, x := range t.All() {
		v[flatIndex(ijk, d)] = x
	}
	return v
}

func flatIndex(digits []int, d int) int {
	var i int
	for _, k := range digits {
		i = i*d + k
	}
	return i
}

func repeat(d, n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = d
	}
	return s
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}
