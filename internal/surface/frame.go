package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Cell holds the orthorhombic simulation cell dimensions in Å.
type Cell struct {
	Lx, Ly, Lz float64
}

// Area returns the lateral cross-section Lx*Ly.
func (c Cell) Area() float64 {
	return c.Lx * c.Ly
}

// Frame is one snapshot of molecular positions. Frames are treated as
// immutable once handed to the surface builder.
type Frame struct {
	X, Y, Z []float64
	Cell    Cell
}

// Len returns the number of molecules in the frame.
func (f *Frame) Len() int {
	return len(f.X)
}

// Validate checks that the coordinate arrays and cell are usable.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if len(f.Y) != len(f.X) || len(f.Z) != len(f.X) {
		return fmt.Errorf("%w: coordinate lengths differ (x=%d y=%d z=%d)",
			ErrInvalidFrame, len(f.X), len(f.Y), len(f.Z))
	}
	if !(f.Cell.Lx > 0) || !(f.Cell.Ly > 0) || !(f.Cell.Lz > 0) {
		return fmt.Errorf("%w: cell dimensions must be positive, got %+v", ErrInvalidFrame, f.Cell)
	}
	for i := range f.X {
		if !finite(f.X[i]) || !finite(f.Y[i]) || !finite(f.Z[i]) {
			return fmt.Errorf("%w: molecule %d has a non-finite coordinate", ErrInvalidFrame, i)
		}
	}
	return nil
}

// Centred returns a copy of the frame with the mean z position subtracted,
// so that the two interfaces of a slab sit either side of z=0.
func (f *Frame) Centred() *Frame {
	zc := 0.0
	if len(f.Z) > 0 {
		zc = stat.Mean(f.Z, nil)
	}
	z := make([]float64, len(f.Z))
	for i, zi := range f.Z {
		z[i] = zi - zc
	}
	return &Frame{X: f.X, Y: f.Y, Z: z, Cell: f.Cell}
}

// gather returns the coordinates of the molecules in idx.
func (f *Frame) gather(idx []int) (x, y, z []float64) {
	x = make([]float64, len(idx))
	y = make([]float64, len(idx))
	z = make([]float64, len(idx))
	for i, n := range idx {
		x[i], y[i], z[i] = f.X[n], f.Y[n], f.Z[n]
	}
	return x, y, z
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
