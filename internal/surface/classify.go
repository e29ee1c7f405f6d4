package surface

import (
	"fmt"
	"math"
)

// Role records what the builder decided about a molecule.
type Role uint8

const (
	// RoleCandidate is a liquid molecule that has not been used as a pivot.
	RoleCandidate Role = iota
	// RoleVapour is a molecule with too few neighbours to anchor a surface.
	RoleVapour
	// RolePivotLower is a pivot of the lower surface.
	RolePivotLower
	// RolePivotUpper is a pivot of the upper surface.
	RolePivotUpper
)

func (r Role) String() string {
	switch r {
	case RoleCandidate:
		return "candidate"
	case RoleVapour:
		return "vapour"
	case RolePivotLower:
		return "pivot-lower"
	case RolePivotUpper:
		return "pivot-upper"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func pivotRole(s Side) Role {
	if s == Lower {
		return RolePivotLower
	}
	return RolePivotUpper
}

// Classification partitions a frame before pivot growth.
type Classification struct {
	// Vapour marks molecules excluded from both surfaces.
	Vapour []bool
	// Seeds holds the initial pivots of each side, one per occupied
	// lateral grid cell, in grid order.
	Seeds [2][]int
	// Pools holds the remaining liquid molecules of each side in index order.
	Pools [2][]int
}

// VapourCount returns the number of molecules classified as vapour.
func (c *Classification) VapourCount() int {
	n := 0
	for _, v := range c.Vapour {
		if v {
			n++
		}
	}
	return n
}

// Eligible returns the number of molecules that may become pivots of side s.
func (c *Classification) Eligible(s Side) int {
	return len(c.Seeds[s]) + len(c.Pools[s])
}

// Classify separates vapour from liquid and picks the seed pivots.
//
// A molecule with at most vlim neighbours closer than maxR is vapour. For
// every cell of an ncube x ncube lateral grid the liquid molecule with the
// lowest z below zero seeds the lower surface and, failing that test, the
// one with the highest z above zero seeds the upper surface. All other
// liquid molecules become candidates of the side given by the sign of z.
func Classify(f *Frame, maxR float64, vlim, ncube int) *Classification {
	n := f.Len()
	c := &Classification{Vapour: make([]bool, n)}

	si := NewSpatialIndex(maxR)
	si.Build(f)

	cells := ncube * ncube
	seedIdx := [2][]int{make([]int, cells), make([]int, cells)}
	seedZ := [2][]float64{make([]float64, cells), make([]float64, cells)}
	for k := 0; k < cells; k++ {
		seedIdx[Lower][k] = -1
		seedIdx[Upper][k] = -1
	}

	for i := 0; i < n; i++ {
		if si.CountWithin(f, i, maxR, vlim) <= vlim {
			c.Vapour[i] = true
			continue
		}
		k := ncube*lateralCell(f.X[i], f.Cell.Lx, ncube) + lateralCell(f.Y[i], f.Cell.Ly, ncube)
		z := f.Z[i]
		if z < seedZ[Lower][k] {
			seedIdx[Lower][k] = i
			seedZ[Lower][k] = z
		} else if z > seedZ[Upper][k] {
			seedIdx[Upper][k] = i
			seedZ[Upper][k] = z
		}
	}

	isSeed := make([]bool, n)
	for _, s := range Sides {
		for _, idx := range seedIdx[s] {
			if idx < 0 {
				continue
			}
			c.Seeds[s] = append(c.Seeds[s], idx)
			isSeed[idx] = true
		}
	}

	for i := 0; i < n; i++ {
		if c.Vapour[i] || isSeed[i] {
			continue
		}
		if f.Z[i] < 0 {
			c.Pools[Lower] = append(c.Pools[Lower], i)
		} else {
			c.Pools[Upper] = append(c.Pools[Upper], i)
		}
	}
	return c
}

// lateralCell truncates x*ncube/L toward zero and wraps it into [0, ncube).
func lateralCell(x, L float64, ncube int) int {
	k := int(math.Trunc(x*float64(ncube)/L)) % ncube
	if k < 0 {
		k += ncube
	}
	return k
}
