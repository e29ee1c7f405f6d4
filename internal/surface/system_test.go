package surface

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/interface.report/internal/surface/wave"
)

func TestDiagonal(t *testing.T) {
	t.Parallel()

	cell := Cell{Lx: 20, Ly: 10, Lz: 50}
	d := Diagonal(2, cell, 0.5)
	require.Len(t, d, 25)
	assert.Equal(t, 0.0, d[wave.Index(0, 0, 2)])

	k := 4 * math.Pi * math.Pi * 0.5
	assert.InDelta(t, k*2*(1.0*10/20), d[wave.Index(1, 0, 2)], 1e-12)
	assert.InDelta(t, k*2*(4.0*20/10), d[wave.Index(0, -2, 2)], 1e-12)
	assert.InDelta(t, k*1*(1.0*10/20+1.0*20/10), d[wave.Index(-1, 1, 2)], 1e-12)
}

func TestLinearSystem_AddIsAdditive(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	cell := Cell{Lx: 12, Ly: 9, Lz: 40}
	n := 40
	x, y, z := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range x {
		x[i] = rng.Float64() * cell.Lx
		y[i] = rng.Float64() * cell.Ly
		z[i] = rng.NormFloat64()
	}

	whole := NewLinearSystem(2, cell, 0.1)
	whole.Add(x, y, z)

	parts := NewLinearSystem(2, cell, 0.1)
	parts.Add(x[:7], y[:7], z[:7])
	parts.Add(nil, nil, nil)
	parts.Add(x[7:25], y[7:25], z[7:25])
	parts.Add(x[25:], y[25:], z[25:])

	assert.Equal(t, n, parts.Rows())
	assert.True(t, mat.EqualApprox(whole.a, parts.a, 1e-10))
	assert.True(t, mat.EqualApprox(whole.b, parts.b, 1e-10))

	cw, err := whole.Solve()
	require.NoError(t, err)
	cp, err := parts.Solve()
	require.NoError(t, err)
	assert.InDeltaSlice(t, cw, cp, 1e-9)
}

func TestLinearSystem_RecoversExactSeries(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	qm := 2
	cell := Cell{Lx: 16, Ly: 16, Lz: 40}
	want := randomCoefficients(rng, qm, 1)
	s := NewSurface(want, qm, cell)

	var x, y []float64
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			x = append(x, 1+2*float64(i))
			y = append(y, 1+2*float64(j))
		}
	}
	z := s.Height(x, y, qm)

	ls := NewLinearSystem(qm, cell, 0)
	ls.Add(x, y, z)
	got, err := ls.Solve()
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)
}

func TestLinearSystem_EmptyIsSingular(t *testing.T) {
	t.Parallel()

	ls := NewLinearSystem(1, Cell{Lx: 10, Ly: 10, Lz: 10}, 0)
	_, err := ls.Solve()
	require.Error(t, err)
}
