package surface

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/interface.report/internal/surface/wave"
)

// LinearSystem accumulates the normal equations A·c = b of the surface fit.
// It is owned by a single growth loop for a single side; batches of pivots
// are only ever added, never removed.
type LinearSystem struct {
	qm   int
	cell Cell
	a    *mat.SymDense
	b    *mat.VecDense
	diag []float64
	rows int
}

// NewLinearSystem allocates an empty system for resolution qm.
func NewLinearSystem(qm int, cell Cell, phi float64) *LinearSystem {
	n := wave.NumCoefficients(qm)
	return &LinearSystem{
		qm:   qm,
		cell: cell,
		a:    mat.NewSymDense(n, nil),
		b:    mat.NewVecDense(n, nil),
		diag: Diagonal(qm, cell, phi),
	}
}

// Diagonal returns the smoothness penalty added to A before every solve:
// 4π²·phi·weight(u,v)·(u²Ly/Lx + v²Lx/Ly).
func Diagonal(qm int, cell Cell, phi float64) []float64 {
	n := wave.NumCoefficients(qm)
	d := make([]float64, n)
	for j := range d {
		u, v := wave.Frequencies(j, qm)
		d[j] = 4 * math.Pi * math.Pi * phi * wave.Weight(u, v) * wave.AspectWavenumber(u, v, cell.Lx, cell.Ly)
	}
	return d
}

// Rows returns the number of points accumulated so far.
func (ls *LinearSystem) Rows() int {
	return ls.rows
}

// Add folds a batch of points into A and b.
func (ls *LinearSystem) Add(x, y, z []float64) {
	if len(x) == 0 {
		return
	}
	f := designMatrix(ls.qm, ls.cell, x, y)
	ls.a.SymRankK(ls.a, 1, f)

	var fz mat.VecDense
	fz.MulVec(f, mat.NewVecDense(len(z), z))
	ls.b.AddVec(ls.b, &fz)
	ls.rows += len(x)
}

// Solve returns the coefficients solving (A+diag)·c = b.
func (ls *LinearSystem) Solve() ([]float64, error) {
	return solveLU(ls.a, ls.diag, ls.b)
}

// designMatrix returns F with F[j][n] = basis(x_n, u_j)·basis(y_n, v_j).
func designMatrix(qm int, cell Cell, x, y []float64) *mat.Dense {
	nw := wave.NumWaves(qm)
	wx := make([][]float64, nw)
	wy := make([][]float64, nw)
	for u := -qm; u <= qm; u++ {
		wx[u+qm] = wave.Basis(nil, x, u, cell.Lx)
		wy[u+qm] = wave.Basis(nil, y, u, cell.Ly)
	}

	n := wave.NumCoefficients(qm)
	f := mat.NewDense(n, len(x), nil)
	row := make([]float64, len(x))
	for j := 0; j < n; j++ {
		u, v := wave.Frequencies(j, qm)
		floats.MulTo(row, wx[u+qm], wy[v+qm])
		f.SetRow(j, row)
	}
	return f
}

var errNonFinite = errors.New("solution contains non-finite values")

// solveLU factorises a+diag and solves for b.
func solveLU(a mat.Symmetric, diag []float64, b mat.Vector) ([]float64, error) {
	n := len(diag)
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, a.At(i, j))
		}
		m.Set(i, i, m.At(i, i)+diag[i])
	}

	var lu mat.LU
	lu.Factorize(m)
	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("lu solve: %w", err)
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
		if !finite(out[i]) {
			return nil, errNonFinite
		}
	}
	return out, nil
}
