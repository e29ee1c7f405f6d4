// Package surface builds molecule-resolved intrinsic surfaces for liquid
// interfaces in molecular-dynamics frames.
//
// Responsibilities: vapour/liquid classification, pivot selection, the
// incremental least-squares fit of the Fourier coefficients, curvature
// reconstruction, and the evaluator used by every downstream analysis.
// Key types: Frame, Params, Build, Surface, Result.
//
// Dependency rule: this package performs no I/O. Persistence and batching
// live in internal/storage and internal/pipeline.
package surface
