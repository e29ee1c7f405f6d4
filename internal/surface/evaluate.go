package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/interface.report/internal/surface/wave"
)

// Surface evaluates a fitted intrinsic surface. Coeff is allocated for QM;
// every query takes a resolution qu <= QM and truncates the sum instead of
// reallocating. Queries with qu outside [0, QM] are clamped.
//
// len(Coeff) must equal wave.NumCoefficients(QM); queries on a surface that
// fails Validate panic.
type Surface struct {
	Coeff []float64
	QM    int
	Cell  Cell
}

// NewSurface wraps a coefficient vector. It does not copy coeff, and does
// not check its length; call Validate on coefficients from outside the
// package.
func NewSurface(coeff []float64, qm int, cell Cell) *Surface {
	return &Surface{Coeff: coeff, QM: qm, Cell: cell}
}

// Validate reports whether Coeff holds exactly the (2QM+1)² coefficients
// that QM implies.
func (s *Surface) Validate() error {
	if s.QM < 0 {
		return fmt.Errorf("%w: qm must be non-negative, got %d", ErrInvalidParams, s.QM)
	}
	if want := wave.NumCoefficients(s.QM); len(s.Coeff) != want {
		return fmt.Errorf("%w: %d coefficients for qm %d, want %d", ErrInvalidParams, len(s.Coeff), s.QM, want)
	}
	return nil
}

type basisFunc func(dst, x []float64, u int, L float64) []float64

// Height returns the surface position ξ(x, y).
func (s *Surface) Height(x, y []float64, qu int) []float64 {
	return s.sum(x, y, qu, wave.Basis, wave.Basis, nil)
}

// HeightAt is Height for a single point.
func (s *Surface) HeightAt(x, y float64, qu int) float64 {
	return s.Height([]float64{x}, []float64{y}, qu)[0]
}

// Gradient returns ∂ξ/∂x and ∂ξ/∂y.
func (s *Surface) Gradient(x, y []float64, qu int) (dx, dy []float64) {
	dx = s.sum(x, y, qu, wave.DBasis, wave.Basis, nil)
	dy = s.sum(x, y, qu, wave.Basis, wave.DBasis, nil)
	return dx, dy
}

// GradientAt is Gradient for a single point.
func (s *Surface) GradientAt(x, y float64, qu int) (dx, dy float64) {
	gx, gy := s.Gradient([]float64{x}, []float64{y}, qu)
	return gx[0], gy[0]
}

// Curvature returns the second derivatives ∂²ξ/∂x² and ∂²ξ/∂y².
func (s *Surface) Curvature(x, y []float64, qu int) (dxx, dyy []float64) {
	dxx = s.sum(x, y, qu, wave.DDBasis, wave.Basis, nil)
	dyy = s.sum(x, y, qu, wave.Basis, wave.DDBasis, nil)
	return dxx, dyy
}

// CurvatureAt is Curvature for a single point.
func (s *Surface) CurvatureAt(x, y float64, qu int) (dxx, dyy float64) {
	cx, cy := s.Curvature([]float64{x}, []float64{y}, qu)
	return cx[0], cy[0]
}

// MeanCurvature returns H = ∇²ξ evaluated term by term.
func (s *Surface) MeanCurvature(x, y []float64, qu int) []float64 {
	lx, ly := s.Cell.Lx, s.Cell.Ly
	return s.sum(x, y, qu, wave.Basis, wave.Basis, func(u, v int) float64 {
		return -4 * math.Pi * math.Pi * wave.SquaredWavenumber(u, v, lx, ly)
	})
}

// MeanCurvatureAt is MeanCurvature for a single point.
func (s *Surface) MeanCurvatureAt(x, y float64, qu int) float64 {
	return s.MeanCurvature([]float64{x}, []float64{y}, qu)[0]
}

// IntrinsicArea returns the fitted surface area relative to the flat cross
// section, 1 + ½Σ weight·π²(u²/Lx²+v²/Ly²)·c². It never decreases with qu.
func (s *Surface) IntrinsicArea(qu int) float64 {
	return 1 + 0.5*s.spectralSum(qu, func(u, v int) float64 {
		return wave.Weight(u, v) * math.Pi * math.Pi * wave.SquaredWavenumber(u, v, s.Cell.Lx, s.Cell.Ly)
	})
}

// HeightVariance returns the lateral average of (ξ - <ξ>)².
func (s *Surface) HeightVariance(qu int) float64 {
	return s.spectralSum(qu, func(u, v int) float64 {
		return wave.Weight(u, v) / 4
	})
}

// CurvatureVariance returns the lateral average of H², computed in closed
// form from the coefficients.
func (s *Surface) CurvatureVariance(qu int) float64 {
	return s.spectralSum(qu, func(u, v int) float64 {
		q2 := 4 * math.Pi * math.Pi * wave.SquaredWavenumber(u, v, s.Cell.Lx, s.Cell.Ly)
		return wave.Weight(u, v) / 4 * q2 * q2
	})
}

// Truncate copies the coefficients with |u|,|v| <= qu into a vector laid out
// for resolution qu.
func (s *Surface) Truncate(qu int) []float64 {
	qu = s.clamp(qu)
	out := make([]float64, wave.NumCoefficients(qu))
	for u := -qu; u <= qu; u++ {
		for v := -qu; v <= qu; v++ {
			out[wave.Index(u, v, qu)] = s.Coeff[wave.Index(u, v, s.QM)]
		}
	}
	return out
}

func (s *Surface) clamp(qu int) int {
	if qu < 0 {
		return 0
	}
	if qu > s.QM {
		return s.QM
	}
	return qu
}

// sum evaluates Σ fx(x,u)·fy(y,v)·c_uv·scale(u,v) over |u|,|v| <= qu.
func (s *Surface) sum(x, y []float64, qu int, fx, fy basisFunc, scale func(u, v int) float64) []float64 {
	qu = s.clamp(qu)
	nw := wave.NumWaves(qu)
	wx := make([][]float64, nw)
	wy := make([][]float64, nw)
	for u := -qu; u <= qu; u++ {
		wx[u+qu] = fx(nil, x, u, s.Cell.Lx)
		wy[u+qu] = fy(nil, y, u, s.Cell.Ly)
	}

	out := make([]float64, len(x))
	term := make([]float64, len(x))
	for u := -qu; u <= qu; u++ {
		for v := -qu; v <= qu; v++ {
			c := s.Coeff[wave.Index(u, v, s.QM)]
			if scale != nil {
				c *= scale(u, v)
			}
			floats.MulTo(term, wx[u+qu], wy[v+qu])
			floats.AddScaled(out, c, term)
		}
	}
	return out
}

// spectralSum returns Σ w(u,v)·c_uv² over |u|,|v| <= qu.
func (s *Surface) spectralSum(qu int, w func(u, v int) float64) float64 {
	qu = s.clamp(qu)
	total := 0.0
	for u := -qu; u <= qu; u++ {
		for v := -qu; v <= qu; v++ {
			c := s.Coeff[wave.Index(u, v, s.QM)]
			total += w(u, v) * c * c
		}
	}
	return total
}
