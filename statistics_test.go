package localham

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fumin/localham/exactdiag"
)

func TestGetStatistics(t *testing.T) {
	t.Parallel()
	const n = 3
	product := make([]complex128, 1<<n)
	product[0] = 1
	ghz := make([]complex128, 1<<n)
	ghz[0], ghz[7] = complex(1/math.Sqrt2, 0), complex(0, 1/math.Sqrt2)
	// One spin down out of three.
	w := make([]complex128, 1<<n)
	w[1], w[2], w[4] = complex(1/math.Sqrt(3), 0), complex(1/math.Sqrt(3), 0), complex(1/math.Sqrt(3), 0)

	tests := []struct {
		vec           []complex128
		magnetization float64
		binder        float64
		siteZ         []float64
	}{
		{vec: product, magnetization: 1, binder: 2. / 3, siteZ: []float64{1, 1, 1}},
		{vec: ghz, magnetization: 1, binder: 2. / 3, siteZ: []float64{0, 0, 0}},
		{vec: w, magnetization: 1. / 3, binder: 2. / 3, siteZ: []float64{1. / 3, 1. / 3, 1. / 3}},
	}
	for i, test := range tests {
		stats, err := GetStatistics(n, []exactdiag.ValVec{{Val: -1, Vec: test.vec}, {Val: 2}})
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if !slices.Equal(stats.EigenValue, []float64{-1, 2}) {
			t.Fatalf("%d %v", i, stats.EigenValue)
		}
		if math.Abs(stats.Magnetization-test.magnetization) > 1e-12 {
			t.Fatalf("%d %f, expected %f", i, stats.Magnetization, test.magnetization)
		}
		if math.Abs(stats.BinderCumulant-test.binder) > 1e-12 {
			t.Fatalf("%d %f, expected %f", i, stats.BinderCumulant, test.binder)
		}
		for s, z := range stats.SiteZ {
			if math.Abs(z-test.siteZ[s]) > 1e-12 {
				t.Fatalf("%d site %d %f, expected %f", i, s, z, test.siteZ[s])
			}
		}
	}
}

func TestGetStatisticsErrors(t *testing.T) {
	t.Parallel()
	if _, err := GetStatistics(3, nil); err == nil {
		t.Fatalf("expected error for no eigenpairs")
	}
	_, err := GetStatistics(3, []exactdiag.ValVec{{Vec: make([]complex128, 4)}})
	require.ErrorContains(t, err, "ground state length 4, expected 8 for 3 sites")
	_, err = GetStatistics(2, []exactdiag.ValVec{{Vec: []complex128{1, 1, 0, 0}}})
	require.ErrorContains(t, err, "ground state total probability 2.000000, expected 1")
}

func TestGetStatisticsZeroMagnetization(t *testing.T) {
	t.Parallel()
	singlet := []complex128{0, complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0), 0}
	stats, err := GetStatistics(2, []exactdiag.ValVec{{Val: -3, Vec: singlet}})
	require.NoError(t, err)
	require.Zero(t, stats.Magnetization)
	require.True(t, math.IsNaN(stats.BinderCumulant), "%f", stats.BinderCumulant)
	require.Equal(t, []float64{0, 0}, stats.SiteZ)

	// The ground states of these rings have zero total Z, so <m^2> is rounding noise.
	for _, model := range []string{XX, Heisenberg} {
		sol, err := NewSolver(nil, nil).Solve(context.Background(), Problem{Model: model, Lattice: ring(4), Workers: 1}, 1)
		require.NoError(t, err)
		stats, err := GetStatistics(4, sol.Result.Eigen)
		require.NoError(t, err)
		require.True(t, math.IsNaN(stats.BinderCumulant), "%s %f", model, stats.BinderCumulant)
		require.InDelta(t, 0, stats.Magnetization, 1e-9, model)
	}
}

func TestDigits(t *testing.T) {
	t.Parallel()
	var got [][]int
	var indices []int
	for i, ds := range digits(2, 3) {
		got = append(got, slices.Clone(ds))
		indices = append(indices, i)
	}
	expected := [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {2, 0}, {2, 1}, {2, 2}}
	if len(got) != len(expected) {
		t.Fatalf("%v, expected %v", got, expected)
	}
	for i := range expected {
		if !slices.Equal(got[i], expected[i]) || indices[i] != i {
			t.Fatalf("%d %v, expected %v", i, got[i], expected[i])
		}
	}

	for i := range digits(3, 2) {
		if i == 2 {
			break
		}
	}
}
