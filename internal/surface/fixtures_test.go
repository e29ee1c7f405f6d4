package surface

import (
	"math/rand"

	"github.com/banshee-data/interface.report/internal/testutil"
)

func frameFromSlab(s testutil.Slab) *Frame {
	return &Frame{X: s.X, Y: s.Y, Z: s.Z, Cell: Cell{Lx: s.Lx, Ly: s.Ly, Lz: s.Lz}}
}

// flatSlab is two flat 10x10 layers at z=±5 in a 15x15 cell.
func flatSlab() (*Frame, Params) {
	f := frameFromSlab(testutil.LatticeSlab(10, 1.5, 60, testutil.FlatProfile(5)))
	return f, Params{QM: 1, N0: 20, Phi: 0.05, Psi: 0.1, MolSigma: 3, NCube: 3, VLim: 3}
}

// cosineSlab is two 20x20 layers at z=∓8 modulated by amp·cos(2πx/30).
func cosineSlab(amp float64) (*Frame, Params) {
	f := frameFromSlab(testutil.LatticeSlab(20, 1.5, 60, testutil.CosineProfile(8, amp, 30, 1)))
	return f, Params{QM: 1, N0: 50, Phi: 1e-9, Psi: 0.1, MolSigma: 2, NCube: 3, VLim: 0}
}

func randomCoefficients(rng *rand.Rand, qm int, scale float64) []float64 {
	c := make([]float64, (2*qm+1)*(2*qm+1))
	for i := range c {
		c[i] = scale * (2*rng.Float64() - 1)
	}
	return c
}

// scatteredSlab is 200 molecules spread uniformly through |z| < 5 in a
// 20x20x40 cell, with no vapour.
func scatteredSlab(seed int64) (*Frame, Params) {
	rng := rand.New(rand.NewSource(seed))
	f := frameFromSlab(testutil.RandomSlab(rng, 200, 0, 20, 20, 40, 5))
	return f, Params{QM: 1, N0: 20, Phi: 0.05, Psi: 0.1, MolSigma: 3, NCube: 3, VLim: 3}
}
