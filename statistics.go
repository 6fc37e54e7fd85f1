package localham

import (
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/localham/exactdiag"
)

// minSecondMoment is the <m^2> below which the Binder cumulant is undefined.
// A nonzero basis magnetization is at least 1, so anything smaller is rounding noise.
const minSecondMoment = 1e-12

// Statistics are observables of the lowest eigenstates of a spin-1/2 chain, measured in the Z basis.
type Statistics struct {
	EigenValue []float64
	// Magnetization is the mean spin of the ground state, after flipping each basis state so that
	// the majority of its spins point up.
	Magnetization float64
	// BinderCumulant is 1 - <m^4>/(3<m^2>^2). It is NaN when <m^2> vanishes,
	// as in the zero magnetization ground states of the XX and Heisenberg rings.
	BinderCumulant float64
	// SiteZ is <Z_i> of the ground state.
	SiteZ []float64
}

// GetStatistics computes the statistics of eigenpairs vvs, ground state first, on a chain of numSites spins.
func GetStatistics(numSites int, vvs []exactdiag.ValVec) (Statistics, error) {
	if len(vvs) == 0 {
		return Statistics{}, errors.Errorf("no eigenpairs")
	}
	var stats Statistics
	for _, vv := range vvs {
		stats.EigenValue = append(stats.EigenValue, vv.Val)
	}
	ground := vvs[0]
	if len(ground.Vec) != 1<<numSites {
		return Statistics{}, errors.Errorf("ground state length %d, expected %d for %d sites", len(ground.Vec), 1<<numSites, numSites)
	}

	stats.SiteZ = make([]float64, numSites)
	// spinUpBasis is the basis where the majority of spins are up.
	spinUpBasis := make([]int8, numSites)
	var totalProb float64
	var m2 float64
	for i, fullBasis := range digits(numSites, 2) {
		pickSpinUp(spinUpBasis, fullBasis)
		amplitude := ground.Vec[i]
		probability := real(amplitude)*real(amplitude) + imag(amplitude)*imag(amplitude)

		var basisM float64
		for _, spin := range spinUpBasis {
			basisM += float64(spin)
		}
		// Digit 0 is spin up, the +1 eigenstate of Z.
		for s, b := range fullBasis {
			stats.SiteZ[s] += probability * float64(1-2*b)
		}

		totalProb += probability
		stats.Magnetization += probability * basisM
		stats.BinderCumulant += probability * math.Pow(basisM, 4)
		m2 += probability * math.Pow(basisM, 2)
	}
	if math.Abs(totalProb-1) > 1e-3 {
		return Statistics{}, errors.Errorf("ground state total probability %f, expected 1", totalProb)
	}

	stats.Magnetization /= float64(numSites)
	if m2 < minSecondMoment {
		stats.BinderCumulant = math.NaN()
		return stats, nil
	}
	stats.BinderCumulant /= (m2 * m2)
	stats.BinderCumulant = 1 - stats.BinderCumulant/3
	return stats, nil
}

// pickSpinUp writes into upState the spins of state, flipped if needed so that most of them are up.
func pickSpinUp(upState []int8, state []int) {
	downs := 0
	for _, b := range state {
		if b == 1 {
			downs++
		}
	}

	sign := int8(1)
	if downs > len(state)-downs {
		sign = -1
	}
	for i, b := range state {
		switch b {
		case 0:
			upState[i] = sign
		default:
			upState[i] = -sign
		}
	}
}

// digits iterates over the indices of a chain of n sites with local dimension d,
// together with their base d digits, site 0 most significant.
// The yielded slice is reused between iterations.
func digits(n, d int) func(yield func(int, []int) bool) {
	state := make([]int, n)
	return func(yield func(int, []int) bool) {
		clear(state)
		for i := 0; ; i++ {
			if !yield(i, state) {
				return
			}
			// Increment the least significant digit with carry.
			j := n - 1
			for ; j >= 0; j-- {
				state[j]++
				if state[j] < d {
					break
				}
				state[j] = 0
			}
			if j < 0 {
				return
			}
		}
	}
}
