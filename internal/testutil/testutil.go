// Package testutil provides shared test utilities and fixtures.
//
// Fixtures return plain coordinate slices so that any package, including
// internal/surface itself, can build frames from them without an import
// cycle.
package testutil

import (
	"math"
	"math/rand"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Slab holds the molecular positions of a synthetic liquid slab with two
// interfaces and the orthorhombic cell containing it.
type Slab struct {
	X, Y, Z    []float64
	Lx, Ly, Lz float64
}

// Len returns the number of molecules in the slab.
func (s Slab) Len() int {
	return len(s.X)
}

// Profile returns the z position of a lattice site. sign is -1 for the
// lower layer and +1 for the upper layer.
type Profile func(x, y, sign float64) float64

// FlatProfile places both layers at ±depth.
func FlatProfile(depth float64) Profile {
	return func(_, _, sign float64) float64 {
		return sign * depth
	}
}

// CosineProfile places both layers at ±depth and modulates them by
// amp·cos(2π·mode·x/L).
func CosineProfile(depth, amp, L float64, mode int) Profile {
	k := 2 * math.Pi * float64(mode) / L
	return func(x, _, sign float64) float64 {
		return sign*depth + amp*math.Cos(k*x)
	}
}

// LatticeSlab builds two n×n square lattices with the given spacing, lower
// layer first. Sites sit at spacing/2 + i·spacing and are ordered x-major,
// so the cell is n·spacing wide in x and y.
func LatticeSlab(n int, spacing, lz float64, profile Profile) Slab {
	l := float64(n) * spacing
	s := Slab{Lx: l, Ly: l, Lz: lz}
	for _, sign := range []float64{-1, 1} {
		for i := 0; i < n; i++ {
			x := spacing/2 + float64(i)*spacing
			for j := 0; j < n; j++ {
				y := spacing/2 + float64(j)*spacing
				s.X = append(s.X, x)
				s.Y = append(s.Y, y)
				s.Z = append(s.Z, profile(x, y, sign))
			}
		}
	}
	return s
}

// RandomSlab scatters n molecules uniformly through a slab of the given
// half-thickness centred on z=0, plus nVapour molecules spread through the
// rest of the cell.
func RandomSlab(rng *rand.Rand, n, nVapour int, lx, ly, lz, halfThickness float64) Slab {
	s := Slab{Lx: lx, Ly: ly, Lz: lz}
	for i := 0; i < n; i++ {
		s.X = append(s.X, rng.Float64()*lx)
		s.Y = append(s.Y, rng.Float64()*ly)
		s.Z = append(s.Z, (2*rng.Float64()-1)*halfThickness)
	}
	for i := 0; i < nVapour; i++ {
		z := halfThickness + rng.Float64()*(lz/2-halfThickness)
		if rng.Intn(2) == 0 {
			z = -z
		}
		s.X = append(s.X, rng.Float64()*lx)
		s.Y = append(s.Y, rng.Float64()*ly)
		s.Z = append(s.Z, z)
	}
	return s
}
