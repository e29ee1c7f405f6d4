package surface

import "fmt"

// Side identifies one of the two interfaces of a liquid slab.
type Side int

const (
	// Lower is the interface fitted to molecules with z < 0.
	Lower Side = iota
	// Upper is the interface fitted to molecules with z >= 0.
	Upper
)

// Sides lists both interfaces in storage order.
var Sides = [2]Side{Lower, Upper}

func (s Side) String() string {
	switch s {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Reconstruction control law. These values were tuned against reference
// output and are not configuration.
const (
	// VarianceTolerance is the accepted |Var(H)_pivot - Var(H)_surface|.
	VarianceTolerance = 1e-3
	// ReconRunawayFactor triggers a gain halving when the pivot curvature
	// variance exceeds this multiple of the unreconstructed surface variance.
	ReconRunawayFactor = 5.0
	// ReconMaxLoops triggers a gain halving once exceeded.
	ReconMaxLoops = 40
	// ReconGainDecay scales psi0 at every halving.
	ReconGainDecay = 0.5

	// DefaultMaxHalvings bounds the reconstruction safety valve.
	DefaultMaxHalvings = 20

	// maxRFactor and tauFactor convert the molecular diameter into the
	// neighbour search radius and the initial pivot tolerance.
	maxRFactor = 1.5
	tauFactor  = 0.5
	// pruneFactor discards candidates further than pruneFactor*tau from
	// the current surface.
	pruneFactor = 6.0
	// tauStep is the fraction of tau0 added when a selection pass admits
	// nothing.
	tauStep = 0.1
)

// Params configures one intrinsic surface build.
type Params struct {
	// QM is the maximum wave frequency of the Fourier series.
	QM int
	// N0 is the target number of pivots per side.
	N0 int
	// Phi weights the surface-area penalty of the fit.
	Phi float64
	// Psi is the initial curvature gain of the reconstruction.
	Psi float64
	// MolSigma is the molecular diameter in Å.
	MolSigma float64
	// NCube is the number of lateral grid cells per axis used for seeding.
	NCube int
	// VLim is the neighbour count at or below which a molecule is vapour.
	VLim int
	// MaxHalvings bounds the reconstruction gain halvings; zero selects
	// DefaultMaxHalvings.
	MaxHalvings int
}

// MaxR returns the neighbour search radius.
func (p Params) MaxR() float64 {
	return maxRFactor * p.MolSigma
}

// Tau returns the initial pivot tolerance.
func (p Params) Tau() float64 {
	return tauFactor * p.MolSigma
}

func (p Params) maxHalvings() int {
	if p.MaxHalvings <= 0 {
		return DefaultMaxHalvings
	}
	return p.MaxHalvings
}

// Validate rejects parameter sets the builder cannot honour.
func (p Params) Validate() error {
	switch {
	case p.QM < 0:
		return fmt.Errorf("%w: qm must be non-negative, got %d", ErrInvalidParams, p.QM)
	case p.N0 <= 0:
		return fmt.Errorf("%w: n0 must be positive, got %d", ErrInvalidParams, p.N0)
	case p.Phi < 0:
		return fmt.Errorf("%w: phi must be non-negative, got %g", ErrInvalidParams, p.Phi)
	case p.Psi < 0:
		return fmt.Errorf("%w: psi must be non-negative, got %g", ErrInvalidParams, p.Psi)
	case !(p.MolSigma > 0):
		return fmt.Errorf("%w: mol_sigma must be positive, got %g", ErrInvalidParams, p.MolSigma)
	case p.NCube <= 0:
		return fmt.Errorf("%w: ncube must be positive, got %d", ErrInvalidParams, p.NCube)
	case p.VLim < 0:
		return fmt.Errorf("%w: vlim must be non-negative, got %d", ErrInvalidParams, p.VLim)
	}
	return nil
}
