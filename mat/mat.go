// Package mat contains a sparse coordinate format matrix used to assemble local Hamiltonian terms
// out of Pauli matrices and Kronecker products.
package mat

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	PauliX = [][]complex128{
		{0, 1},
		{1, 0},
	}
	PauliY = [][]complex128{
		{0, -1i},
		{1i, 0},
	}
	PauliZ = [][]complex128{
		{1, 0},
		{0, -1},
	}
)

type vRowCol struct {
	v   complex128
	row int
	col int
}

// COO is a sparse matrix whose nonzero entries are kept in row major order.
type COO struct {
	rows int
	cols int
	Data []vRowCol
}

// M returns the sparse form of a dense matrix.
func M(dense [][]complex128) *COO {
	m := &COO{rows: len(dense), cols: len(dense[0]), Data: make([]vRowCol, 0)}
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, vRowCol{v: v, row: i, col: j})
		}
	}
	return m
}

func COOZeros(rows, cols int) *COO {
	m := M([][]complex128{{0}})
	m.Zeros(rows, cols)
	return m
}

func COOIdentity(rows int) *COO {
	m := COOZeros(rows, rows)
	for i := 0; i < rows; i++ {
		m.Data = append(m.Data, vRowCol{v: 1, row: i, col: i})
	}
	return m
}

// KronAll returns ms[0] ⊗ ms[1] ⊗ ... as a new matrix.
func KronAll(ms ...*COO) *COO {
	k := M([][]complex128{{1}})
	for _, m := range ms {
		k.Kron(m)
	}
	return k
}

func (m *COO) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	m.Data = m.Data[:0]
}

// Add sets a to a + c*b. b must have the same shape as a.
func (a *COO) Add(c complex128, b *COO) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, b.rows, b.cols))
	}
	bm := make(map[[2]int]complex128, len(b.Data))
	for _, v := range b.Data {
		bm[[2]int{v.row, v.col}] = v.v
	}

	for i, av := range a.Data {
		byx := [2]int{av.row, av.col}
		bv := bm[byx]
		delete(bm, byx)

		a.Data[i].v = av.v + c*bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	for yx, bv := range bm {
		if c*bv == 0 {
			continue
		}
		a.Data = append(a.Data, vRowCol{v: c * bv, row: yx[0], col: yx[1]})
	}
	slices.SortFunc(a.Data, rowMajor)
}

// Kron sets a to the Kronecker product a ⊗ b.
func (a *COO) Kron(b *COO) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prevElemNum := len(a.Data)
	for i := prevElemNum - 1; i >= 0; i-- {
		av := a.Data[i]
		a.Data[i].v = 0
		for _, bv := range b.Data {
			ky := av.row*b.rows + bv.row
			kx := av.col*b.cols + bv.col
			a.Data = append(a.Data, vRowCol{v: av.v * bv.v, row: ky, col: kx})
		}
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	slices.SortFunc(a.Data, rowMajor)
}

// CDense returns m as a gonum dense complex matrix.
func (m *COO) CDense() *mat.CDense {
	d := mat.NewCDense(m.rows, m.cols, nil)
	for _, v := range m.Data {
		d.Set(v.row, v.col, v.v)
	}
	return d
}

// String prints m one row per line with tab separated entries, as shown by the models command.
func (m *COO) String() string {
	cells := make([][]string, m.rows)
	for i := range cells {
		cells[i] = slices.Repeat([]string{format(0)}, m.cols)
	}
	for _, v := range m.Data {
		cells[v.row][v.col] = formatComplex(v.v)
	}

	lines := make([]string, 0, m.rows)
	for _, row := range cells {
		lines = append(lines, strings.Join(row, "\t"))
	}
	return strings.Join(lines, "\n")
}

func rowMajor(a, b vRowCol) int {
	if c := cmp.Compare(a.row, b.row); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}

func formatComplex(v complex128) string {
	switch {
	case imag(v) == 0:
		return format(real(v))
	case real(v) == 0:
		return format(imag(v)) + "i"
	}
	im := strconv.FormatFloat(imag(v), 'g', -1, 64)
	if imag(v) > 0 {
		im = "+" + im
	}
	return format(real(v)) + im + "i"
}

// format pads non-negative values so that columns line up with negative ones.
func format(v float64) string {
	if v == 0 {
		return " 0"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if v > 0 {
		s = " " + s
	}
	return s
}
