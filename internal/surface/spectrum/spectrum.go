// Package spectrum derives fluctuation statistics from fitted intrinsic
// surface coefficients: the binned power spectrum, the wavevector dependent
// surface tension, the lateral height-height correlation and the pivot
// exchange rate between frames.
//
// Statistics are computed from an Ensemble, the mean squared coefficients
// of one or more surfaces that share a resolution and cell.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/interface.report/internal/surface"
	"github.com/banshee-data/interface.report/internal/surface/wave"
)

// Boltzmann is the Boltzmann constant in J/K.
const Boltzmann = 1.380649e-23

// binDecimals is the rounding applied to u²Ly/Lx + v²Lx/Ly when grouping
// modes of equal wavevector magnitude.
const binDecimals = 4

// ErrMismatch reports surfaces that cannot be averaged together.
var ErrMismatch = errors.New("surfaces do not share resolution and cell")

// Bin is one wavevector magnitude of a binned spectrum.
type Bin struct {
	// Q2 is the dimensionless squared wavevector u²Ly/Lx + v²Lx/Ly.
	Q2    float64
	Value float64
	// Count is the number of (u, v) modes averaged into the bin.
	Count int
}

// Ensemble accumulates mean squared coefficients.
type Ensemble struct {
	QM   int
	Cell surface.Cell

	sumSq []float64
	n     int
}

// NewEnsemble returns an ensemble seeded with the given surfaces.
func NewEnsemble(surfaces ...*surface.Surface) (*Ensemble, error) {
	if len(surfaces) == 0 || surfaces[0] == nil {
		return nil, fmt.Errorf("spectrum: no surfaces")
	}
	if err := surfaces[0].Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMismatch, err)
	}
	e := &Ensemble{
		QM:    surfaces[0].QM,
		Cell:  surfaces[0].Cell,
		sumSq: make([]float64, wave.NumCoefficients(surfaces[0].QM)),
	}
	for _, s := range surfaces {
		if err := e.Add(s); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Add folds one more surface into the ensemble.
func (e *Ensemble) Add(s *surface.Surface) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMismatch, err)
	}
	if s.QM != e.QM || s.Cell != e.Cell || len(s.Coeff) != len(e.sumSq) {
		return fmt.Errorf("%w: qm %d cell %+v, want qm %d cell %+v", ErrMismatch, s.QM, s.Cell, e.QM, e.Cell)
	}
	for j, c := range s.Coeff {
		e.sumSq[j] += c * c
	}
	e.n++
	return nil
}

// Len returns the number of surfaces in the ensemble.
func (e *Ensemble) Len() int {
	return e.n
}

// MeanSquares returns <c_j²> for every coefficient.
func (e *Ensemble) MeanSquares() []float64 {
	out := make([]float64, len(e.sumSq))
	for j, v := range e.sumSq {
		out[j] = v / float64(e.n)
	}
	return out
}

// PowerSpectrum returns the mean height fluctuation weight·<c²>/4 of every
// wavevector magnitude up to resolution qu, sorted by Q2.
func (e *Ensemble) PowerSpectrum(qu int) []Bin {
	msq := e.MeanSquares()
	return e.binned(qu, func(u, v, j int) float64 {
		return wave.Weight(u, v) * msq[j] / 4
	})
}

// CapillaryTension returns the wavevector dependent surface tension in
// mN/m implied by equipartition, k_B·T/(weight·<c²>·π²·q²), at the given
// temperature in K. Modes with zero power contribute +Inf.
func (e *Ensemble) CapillaryTension(qu int, temperature float64) []Bin {
	msq := e.MeanSquares()
	kT := Boltzmann * 1e3 * temperature
	return e.binned(qu, func(u, v, j int) float64 {
		q2 := math.Pi * math.Pi * wave.AspectWavenumber(u, v, e.Cell.Lx, e.Cell.Ly)
		return kT / (wave.Weight(u, v) * msq[j] * 1e-20 * q2)
	})
}

// XYCorrelation returns the normalised lateral height-height correlation
// on a (2qu+1)² lag grid with zero lag at (qu, qu). Row i corresponds to
// the x lag. A flat ensemble yields an all-zero map.
func (e *Ensemble) XYCorrelation(qu int) *mat.Dense {
	qu = clamp(qu, e.QM)
	n := wave.NumWaves(qu)
	msq := e.MeanSquares()

	grid := make([][]complex128, n)
	total := 0.0
	for u := -qu; u <= qu; u++ {
		row := make([]complex128, n)
		for v := -qu; v <= qu; v++ {
			f2 := wave.Weight(u, v) * msq[wave.Index(u, v, e.QM)] / 4
			row[v+qu] = complex(f2, 0)
			total += f2
		}
		grid[u+qu] = row
	}

	fft := fourier.NewCmplxFFT(n)
	for i := range grid {
		grid[i] = fft.Sequence(nil, grid[i])
	}
	col := make([]complex128, n)
	for j := 0; j < n; j++ {
		for i := range grid {
			col[i] = grid[i][j]
		}
		out := fft.Sequence(nil, col)
		for i := range grid {
			grid[i][j] = out[i]
		}
	}

	corr := mat.NewDense(n, n, nil)
	if total == 0 {
		return corr
	}
	// Shift so that zero lag is central.
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			corr.Set((i+qu)%n, (j+qu)%n, cmplx.Abs(grid[i][j])/total)
		}
	}
	return corr
}

// binned groups every non-zero mode up to qu by its rounded Q2 and
// averages value over each group.
func (e *Ensemble) binned(qu int, value func(u, v, j int) float64) []Bin {
	qu = clamp(qu, e.QM)
	groups := make(map[float64][]float64)
	for u := -qu; u <= qu; u++ {
		for v := -qu; v <= qu; v++ {
			key := round(wave.AspectWavenumber(u, v, e.Cell.Lx, e.Cell.Ly), binDecimals)
			if key == 0 {
				continue
			}
			groups[key] = append(groups[key], value(u, v, wave.Index(u, v, e.QM)))
		}
	}

	bins := make([]Bin, 0, len(groups))
	for key, vals := range groups {
		bins = append(bins, Bin{Q2: key, Value: stat.Mean(vals, nil), Count: len(vals)})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Q2 < bins[j].Q2 })
	return bins
}

// PowerSpectrum is a single-surface Ensemble.PowerSpectrum. It returns an
// error wrapping ErrMismatch if len(s.Coeff) does not match s.QM.
func PowerSpectrum(s *surface.Surface, qu int) ([]Bin, error) {
	e, err := NewEnsemble(s)
	if err != nil {
		return nil, err
	}
	return e.PowerSpectrum(qu), nil
}

// XYCorrelation is a single-surface Ensemble.XYCorrelation.
func XYCorrelation(s *surface.Surface, qu int) (*mat.Dense, error) {
	e, err := NewEnsemble(s)
	if err != nil {
		return nil, err
	}
	return e.XYCorrelation(qu), nil
}

// PivotExchangeRate returns the mean fraction of pivots replaced between
// consecutive frames. pivots[t] is the pivot set of frame t.
func PivotExchangeRate(pivots [][]int, n0 int) float64 {
	if len(pivots) < 2 || n0 <= 0 {
		return 0
	}
	replaced := 0
	for t := 0; t+1 < len(pivots); t++ {
		next := make(map[int]struct{}, len(pivots[t+1]))
		for _, idx := range pivots[t+1] {
			next[idx] = struct{}{}
		}
		seen := make(map[int]struct{}, len(pivots[t]))
		for _, idx := range pivots[t] {
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			if _, ok := next[idx]; !ok {
				replaced++
			}
		}
	}
	return float64(replaced) / (float64(n0) * float64(len(pivots)-1))
}

func clamp(qu, qm int) int {
	if qu < 0 {
		return 0
	}
	if qu > qm {
		return qm
	}
	return qu
}

func round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
