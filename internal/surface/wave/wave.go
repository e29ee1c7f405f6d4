// Package wave evaluates the real 2D Fourier basis used to represent an
// intrinsic surface.
//
// Each frequency pair (u, v) with u, v in [-qm, qm] owns one coefficient.
// Positive (and zero) frequencies map to cosines, negative frequencies to
// sines, so no complex arithmetic is needed anywhere in the fit.
//
// All evaluators operate on slices. A scalar evaluation is a length-1 call,
// which keeps scalar and vector results bit-identical.
package wave

import "math"

// NumWaves returns the number of frequencies per axis, 2*qm+1.
func NumWaves(qm int) int {
	return 2*qm + 1
}

// NumCoefficients returns the length of a coefficient vector for qm.
func NumCoefficients(qm int) int {
	n := NumWaves(qm)
	return n * n
}

// Index maps the frequency pair (u, v) to its position in a coefficient
// vector allocated for resolution qm.
func Index(u, v, qm int) int {
	return NumWaves(qm)*(u+qm) + (v + qm)
}

// Frequencies is the inverse of Index.
func Frequencies(j, qm int) (u, v int) {
	n := NumWaves(qm)
	return j/n - qm, j%n - qm
}

// Weight corrects for the double counting of cosine/sine pairs when
// summing power or area contributions over the full (u, v) grid.
func Weight(u, v int) float64 {
	switch {
	case u == 0 && v == 0:
		return 0
	case u == 0 || v == 0:
		return 2
	default:
		return 1
	}
}

// Basis writes basis(x[i], u, L) into dst and returns it. dst is allocated
// when nil or too short.
func Basis(dst, x []float64, u int, L float64) []float64 {
	dst = ensure(dst, len(x))
	k := 2 * math.Pi * float64(absInt(u)) / L
	if u >= 0 {
		for i, xi := range x {
			dst[i] = math.Cos(k * xi)
		}
		return dst
	}
	for i, xi := range x {
		dst[i] = math.Sin(k * xi)
	}
	return dst
}

// DBasis writes the first derivative of Basis with respect to x.
func DBasis(dst, x []float64, u int, L float64) []float64 {
	dst = ensure(dst, len(x))
	k := 2 * math.Pi * float64(absInt(u)) / L
	if u >= 0 {
		for i, xi := range x {
			dst[i] = -k * math.Sin(k*xi)
		}
		return dst
	}
	for i, xi := range x {
		dst[i] = k * math.Cos(k*xi)
	}
	return dst
}

// DDBasis writes the second derivative of Basis with respect to x.
func DDBasis(dst, x []float64, u int, L float64) []float64 {
	dst = Basis(dst, x, u, L)
	k := 2 * math.Pi * float64(u) / L
	f := -k * k
	for i := range dst {
		dst[i] *= f
	}
	return dst
}

// SquaredWavenumber returns u²/Lx² + v²/Ly², the (2π-free) squared wave
// vector magnitude shared by the area, curvature and spectrum sums.
func SquaredWavenumber(u, v int, Lx, Ly float64) float64 {
	fu, fv := float64(u), float64(v)
	return fu*fu/(Lx*Lx) + fv*fv/(Ly*Ly)
}

// AspectWavenumber returns u²Ly/Lx + v²Lx/Ly, the dimensionless form used by
// the regularisation diagonal and by spectrum binning.
func AspectWavenumber(u, v int, Lx, Ly float64) float64 {
	fu, fv := float64(u), float64(v)
	return fu*fu*Ly/Lx + fv*fv*Lx/Ly
}

func ensure(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}

func absInt(u int) int {
	if u < 0 {
		return -u
	}
	return u
}
