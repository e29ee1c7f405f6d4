package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/interface.report/internal/monitoring"
	"github.com/banshee-data/interface.report/internal/surface/wave"
)

// ReconDiagnostics summarises the curvature gain search of one side.
type ReconDiagnostics struct {
	Converged  bool
	Psi        float64
	Iterations int
	Halvings   int
	// PivotVariance and SurfaceVariance are Var(H) sampled at the pivots
	// and integrated over the surface for the returned coefficients.
	PivotVariance   float64
	SurfaceVariance float64
}

// Reconstruction holds the reconstructed coefficients of both sides.
type Reconstruction struct {
	Coeff       [2][]float64
	Diagnostics [2]ReconDiagnostics
	// Warnings carries a *ReconstructionNonConvergenceError for each side
	// that exhausted its halving budget.
	Warnings []error
}

// Converged reports whether side s met the variance tolerance.
func (r *Reconstruction) Converged(s Side) bool {
	return r.Diagnostics[s].Converged
}

// Reconstruct corrects the curvature bias of fitted coefficients by
// searching for the gain psi at which the mean curvature variance sampled at
// the pivots matches the variance integrated over the surface.
//
// Non-convergence is not an error: the side keeps its last coefficients and
// a warning is appended to the result. The returned error is non-nil only
// for unusable input or a singular system.
func Reconstruct(f *Frame, pivots [2][]int, coeff [2][]float64, p Params) (*Reconstruction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := wave.NumCoefficients(p.QM)
	cm := CurvatureMatrix(p.QM, f.Cell)
	r := &Reconstruction{}
	for _, s := range Sides {
		if len(coeff[s]) != n {
			return nil, fmt.Errorf("%w: %s coefficients have length %d, want %d",
				ErrInvalidParams, s, len(coeff[s]), n)
		}
		rs := newReconSide(f, p, s, pivots[s], coeff[s], cm)
		c, d, err := rs.run()
		if err != nil {
			return nil, err
		}
		r.Coeff[s] = c
		r.Diagnostics[s] = d
		if !d.Converged {
			r.Warnings = append(r.Warnings, &ReconstructionNonConvergenceError{
				Side:     s,
				Halvings: d.Halvings,
				Residual: math.Abs(d.PivotVariance - d.SurfaceVariance),
			})
			monitoring.Logf("[recon] %s: no convergence after %d halvings, keeping psi=%.4g",
				s, d.Halvings, d.Psi)
			continue
		}
		monitoring.Logf("[recon] %s: psi=%.4g after %d iterations (%d halvings)",
			s, d.Psi, d.Iterations, d.Halvings)
	}
	return r, nil
}

// CurvatureMatrix returns the coupling between the mean curvature
// contributions of every pair of modes,
// 16π⁴(u₁²u₂²/Lx⁴ + v₁²v₂²/Ly⁴ + (u₁²v₂² + u₂²v₁²)/(Lx²Ly²)).
func CurvatureMatrix(qm int, cell Cell) *mat.SymDense {
	n := wave.NumCoefficients(qm)
	lx2, ly2 := cell.Lx*cell.Lx, cell.Ly*cell.Ly
	k := 16 * math.Pow(math.Pi, 4)
	m := mat.NewSymDense(n, nil)
	for j := 0; j < n; j++ {
		u1, v1 := wave.Frequencies(j, qm)
		uu1, vv1 := float64(u1*u1), float64(v1*v1)
		for i := j; i < n; i++ {
			u2, v2 := wave.Frequencies(i, qm)
			uu2, vv2 := float64(u2*u2), float64(v2*v2)
			m.SetSym(j, i, k*(uu1*uu2/(lx2*lx2)+vv1*vv2/(ly2*ly2)+(uu1*vv2+uu2*vv1)/(lx2*ly2)))
		}
	}
	return m
}

type reconSide struct {
	p     Params
	side  Side
	cell  Cell
	coeff []float64

	ffuv *mat.SymDense
	b    *mat.VecDense
	diag []float64
	cm   *mat.SymDense
	// weighted is ffuv ∘ cm, the pivot-sampled curvature quadratic form.
	weighted *mat.SymDense
}

func newReconSide(f *Frame, p Params, s Side, pivots []int, coeff []float64, cm *mat.SymDense) *reconSide {
	ls := NewLinearSystem(p.QM, f.Cell, p.Phi)
	ls.Add(f.gather(pivots))

	n := len(coeff)
	weighted := mat.NewSymDense(n, nil)
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			weighted.SetSym(j, i, ls.a.At(j, i)*cm.At(j, i))
		}
	}
	return &reconSide{
		p:        p,
		side:     s,
		cell:     f.Cell,
		coeff:    coeff,
		ffuv:     ls.a,
		b:        ls.b,
		diag:     ls.diag,
		cm:       cm,
		weighted: weighted,
	}
}

func (r *reconSide) run() ([]float64, ReconDiagnostics, error) {
	n0 := float64(r.p.N0)
	hFull0 := NewSurface(r.coeff, r.p.QM, r.cell).CurvatureVariance(r.p.QM)

	psi0 := r.p.Psi
	psi := psi0
	loop := 0
	var d ReconDiagnostics
	a := mat.NewSymDense(len(r.coeff), nil)
	for {
		d.Iterations++
		r.scaled(a, psi/n0)
		c, err := solveLU(a, r.diag, r.b)
		if err != nil {
			return nil, d, &SingularSystemError{Side: r.side, Stage: "reconstruction", Err: err}
		}

		cv := mat.NewVecDense(len(c), c)
		hPiv := mat.Inner(cv, r.weighted, cv) / n0
		hFull := NewSurface(c, r.p.QM, r.cell).CurvatureVariance(r.p.QM)
		d.Psi = psi
		d.PivotVariance = hPiv
		d.SurfaceVariance = hFull

		diff := hPiv - hFull
		if math.Abs(diff) <= VarianceTolerance {
			d.Converged = true
			return c, d, nil
		}

		psi += psi0 * diff
		if math.Abs(hPiv) > ReconRunawayFactor*hFull0 || loop > ReconMaxLoops {
			psi0 *= ReconGainDecay
			psi = psi0
			loop = 0
			d.Halvings++
			if d.Halvings >= r.p.maxHalvings() {
				return c, d, nil
			}
			continue
		}
		loop++
	}
}

// scaled writes ffuv ∘ (1 + cm·g) into dst.
func (r *reconSide) scaled(dst *mat.SymDense, g float64) {
	n := dst.SymmetricDim()
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			dst.SetSym(j, i, r.ffuv.At(j, i)*(1+r.cm.At(j, i)*g))
		}
	}
}
