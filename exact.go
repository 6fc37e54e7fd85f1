package localham

import "math"

// ExactGroundEnergy returns the closed form ground state energy of model on a chain of numSites sites,
// and whether such a form is known. Both forms follow from mapping the chain to free fermions and hold on rings,
// the XX one only for an even number of sites.
func ExactGroundEnergy(model string, numSites int, periodic bool) (float64, bool) {
	if !periodic || numSites < 2 {
		return 0, false
	}
	n := float64(numSites)
	switch model {
	case XX:
		if numSites%2 != 0 {
			return 0, false
		}
		return -4 / math.Sin(math.Pi/n), true
	case Ising:
		return -2 / math.Sin(math.Pi/(2*n)), true
	}
	return 0, false
}
