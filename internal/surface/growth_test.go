package surface

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/interface.report/internal/monitoring"
	"github.com/banshee-data/interface.report/internal/surface/wave"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func assertPivotInvariants(t *testing.T, f *Frame, b *Build) {
	t.Helper()
	seen := make(map[int]Side)
	for _, s := range Sides {
		assert.Len(t, b.Pivots[s], b.Params.N0, "%s pivots", s)
		for _, idx := range b.Pivots[s] {
			if prev, ok := seen[idx]; ok {
				t.Fatalf("molecule %d is a pivot of both %s and %s", idx, prev, s)
			}
			seen[idx] = s
			assert.False(t, b.Classification.Vapour[idx], "vapour molecule %d used as pivot", idx)
			if s == Lower {
				assert.Less(t, f.Z[idx], 0.0)
			} else {
				assert.GreaterOrEqual(t, f.Z[idx], 0.0)
			}
		}
	}
}

func TestBuildSurface_FlatSlab(t *testing.T) {
	t.Parallel()

	f, p := flatSlab()
	b, err := BuildSurface(f, p)
	require.NoError(t, err)
	assertPivotInvariants(t, f, b)

	zero := wave.Index(0, 0, p.QM)
	assert.InDelta(t, -5, b.Coeff[Lower][zero], 1e-9)
	assert.InDelta(t, 5, b.Coeff[Upper][zero], 1e-9)
	for j := range b.Coeff[Lower] {
		if j == zero {
			continue
		}
		assert.InDelta(t, 0, b.Coeff[Lower][j], 1e-9)
		assert.InDelta(t, 0, b.Coeff[Upper][j], 1e-9)
	}

	for _, s := range Sides {
		d := b.Diagnostics[s]
		assert.Equal(t, 9, d.Seeds)
		assert.Equal(t, 2, d.Solves)
		assert.Zero(t, d.Relaxations)
		assert.Zero(t, d.Pruned)
		assert.Equal(t, p.Tau(), d.Tau)
		assert.InDelta(t, 1, d.Area, 1e-12)
	}
}

func TestBuildSurface_CosineSlab(t *testing.T) {
	t.Parallel()

	f, p := cosineSlab(1.5)
	b, err := BuildSurface(f, p)
	require.NoError(t, err)
	assertPivotInvariants(t, f, b)

	assert.InDelta(t, 1.5, b.Coeff[Lower][wave.Index(1, 0, p.QM)], 1e-6)
	assert.InDelta(t, 1.5, b.Coeff[Upper][wave.Index(1, 0, p.QM)], 1e-6)
	assert.InDelta(t, -8, b.Coeff[Lower][wave.Index(0, 0, p.QM)], 1e-6)
	assert.InDelta(t, 8, b.Coeff[Upper][wave.Index(0, 0, p.QM)], 1e-6)

	// Every pivot lies on the fitted surface.
	for _, s := range Sides {
		surf := b.Surface(s)
		for _, idx := range b.Pivots[s] {
			assert.InDelta(t, f.Z[idx], surf.HeightAt(f.X[idx], f.Y[idx], p.QM), 1e-6)
		}
	}
}

func TestBuildSurface_IncrementalMatchesBatch(t *testing.T) {
	t.Parallel()

	f, p := cosineSlab(1.5)
	p.QM = 2
	p.Phi = 0.05
	b, err := BuildSurface(f, p)
	require.NoError(t, err)

	for _, s := range Sides {
		ls := NewLinearSystem(p.QM, f.Cell, p.Phi)
		ls.Add(f.gather(b.Pivots[s]))
		want, err := ls.Solve()
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, b.Coeff[s], 1e-8, "%s", s)
	}
}

func TestBuildSurface_Deterministic(t *testing.T) {
	t.Parallel()

	f, p := cosineSlab(1.5)
	b1, err := BuildSurface(f, p)
	require.NoError(t, err)
	b2, err := BuildSurface(f, p)
	require.NoError(t, err)
	assert.Equal(t, b1.Pivots, b2.Pivots)
	assert.Equal(t, b1.Coeff, b2.Coeff)
}

func TestBuildSurface_Roles(t *testing.T) {
	t.Parallel()

	f, p := flatSlab()
	b, err := BuildSurface(f, p)
	require.NoError(t, err)

	counts := make(map[Role]int)
	for _, r := range b.Roles() {
		counts[r]++
	}
	assert.Equal(t, p.N0, counts[RolePivotLower])
	assert.Equal(t, p.N0, counts[RolePivotUpper])
	assert.Equal(t, f.Len()-2*p.N0, counts[RoleCandidate])
	assert.Zero(t, counts[RoleVapour])
}

func TestBuildSurface_TooFewEligible(t *testing.T) {
	t.Parallel()

	f, p := flatSlab()
	p.N0 = 150
	_, err := BuildSurface(f, p)

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient), "got %v", err)
	assert.Equal(t, Lower, insufficient.Side)
	assert.Equal(t, 100, insufficient.Eligible)
	assert.Equal(t, 150, insufficient.Required)
}

func TestBuildSurface_PoolExhaustedByPruning(t *testing.T) {
	t.Parallel()

	// Lower side: a layer at z=-5 plus a detached layer at z=-1 that lies
	// beyond the prune distance of the fitted surface.
	var x, y, z []float64
	for _, zz := range []float64{-5, -1, 5} {
		for i := 0; i < 10; i++ {
			for j := 0; j < 10; j++ {
				x = append(x, 0.5+float64(i))
				y = append(y, 0.5+float64(j))
				z = append(z, zz)
			}
		}
	}
	f := &Frame{X: x, Y: y, Z: z, Cell: Cell{Lx: 10, Ly: 10, Lz: 40}}
	p := Params{QM: 1, N0: 150, Phi: 0.05, Psi: 0.1, MolSigma: 1, NCube: 3, VLim: 0}

	_, err := BuildSurface(f, p)
	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient), "got %v", err)
	assert.Equal(t, Lower, insufficient.Side)
	assert.Equal(t, 200, insufficient.Eligible)
	assert.Equal(t, 150, insufficient.Required)
}

func TestBuildSurface_RelaxesTolerance(t *testing.T) {
	t.Parallel()

	// The detached layer sits 2 Å away: beyond tau0 but within the prune
	// distance, so the tolerance must grow before it can be admitted.
	var x, y, z []float64
	for _, zz := range []float64{-5, -3, 5, 3} {
		for i := 0; i < 10; i++ {
			for j := 0; j < 10; j++ {
				x = append(x, 0.5+float64(i))
				y = append(y, 0.5+float64(j))
				z = append(z, zz)
			}
		}
	}
	f := &Frame{X: x, Y: y, Z: z, Cell: Cell{Lx: 10, Ly: 10, Lz: 40}}
	p := Params{QM: 1, N0: 120, Phi: 0.05, Psi: 0.1, MolSigma: 1, NCube: 3, VLim: 0}

	b, err := BuildSurface(f, p)
	require.NoError(t, err)
	assertPivotInvariants(t, f, b)
	for _, s := range Sides {
		assert.Positive(t, b.Diagnostics[s].Relaxations, "%s", s)
		assert.Greater(t, b.Diagnostics[s].Tau, p.Tau(), "%s", s)
	}
}

func TestBuildSurface_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	f, p := flatSlab()
	bad := p
	bad.N0 = 0
	_, err := BuildSurface(f, bad)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = BuildSurface(&Frame{X: []float64{1}, Cell: f.Cell}, p)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestBuildSurface_UniformScatter(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 5; seed++ {
		f, p := scatteredSlab(seed)
		b, err := BuildSurface(f, p)
		if err != nil {
			t.Fatalf("seed %d: BuildSurface: %v", seed, err)
		}

		seen := make(map[int]Side)
		for _, s := range Sides {
			if got := len(b.Pivots[s]); got != p.N0 {
				t.Errorf("seed %d: %s has %d pivots, want %d", seed, s, got, p.N0)
			}
			for _, idx := range b.Pivots[s] {
				if prev, ok := seen[idx]; ok {
					t.Errorf("seed %d: molecule %d is a pivot of both %s and %s", seed, idx, prev, s)
				}
				seen[idx] = s
				if b.Classification.Vapour[idx] {
					t.Errorf("seed %d: vapour molecule %d used as %s pivot", seed, idx, s)
				}
			}
		}
	}
}
