package surface

import "math"

// estimatedPointsPerCell is used for the initial spatial index capacity.
const estimatedPointsPerCell = 4

type cellKey struct {
	X, Y, Z int64
}

// SpatialIndex buckets molecules into cubic cells so that neighbour counts
// only visit the 27 cells around a molecule. Cell size should match the
// query radius.
type SpatialIndex struct {
	CellSize float64
	Grid     map[cellKey][]int
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[cellKey][]int),
	}
}

// Build populates the index from the frame coordinates.
func (si *SpatialIndex) Build(f *Frame) {
	si.Grid = make(map[cellKey][]int, f.Len()/estimatedPointsPerCell+1)
	for i := range f.X {
		k := si.key(f.X[i], f.Y[i], f.Z[i])
		si.Grid[k] = append(si.Grid[k], i)
	}
}

func (si *SpatialIndex) key(x, y, z float64) cellKey {
	return cellKey{
		X: int64(math.Floor(x / si.CellSize)),
		Y: int64(math.Floor(y / si.CellSize)),
		Z: int64(math.Floor(z / si.CellSize)),
	}
}

// CountWithin counts molecules other than idx closer than r to molecule idx.
// Counting stops as soon as the total exceeds limit; pass a negative limit
// to count everything.
func (si *SpatialIndex) CountWithin(f *Frame, idx int, r float64, limit int) int {
	x, y, z := f.X[idx], f.Y[idx], f.Z[idx]
	r2 := r * r
	base := si.key(x, y, z)

	// A radius larger than one cell needs a wider stencil.
	reach := int64(math.Ceil(r / si.CellSize))
	count := 0
	for dx := -reach; dx <= reach; dx++ {
		for dy := -reach; dy <= reach; dy++ {
			for dz := -reach; dz <= reach; dz++ {
				cell := si.Grid[cellKey{X: base.X + dx, Y: base.Y + dy, Z: base.Z + dz}]
				for _, m := range cell {
					if m == idx {
						continue
					}
					ddx := x - f.X[m]
					ddy := y - f.Y[m]
					ddz := z - f.Z[m]
					if ddx*ddx+ddy*ddy+ddz*ddz < r2 {
						count++
						if limit >= 0 && count > limit {
							return count
						}
					}
				}
			}
		}
	}
	return count
}
