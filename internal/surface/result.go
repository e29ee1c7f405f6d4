package surface

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
)

// Result is the persistable outcome of one frame: fitted and reconstructed
// coefficients plus the pivot sets that produced them. Recon is nil for
// sides that were never reconstructed.
type Result struct {
	QM             int
	N0             int
	Phi            float64
	Psi            float64
	Cell           Cell
	Coeff          [2][]float64
	Recon          [2][]float64
	Pivots         [2][]int
	ReconConverged [2]bool
}

// NewResult combines a build with an optional reconstruction.
func NewResult(b *Build, r *Reconstruction) *Result {
	res := &Result{
		QM:     b.Params.QM,
		N0:     b.Params.N0,
		Phi:    b.Params.Phi,
		Psi:    b.Params.Psi,
		Cell:   b.Cell,
		Coeff:  b.Coeff,
		Pivots: b.Pivots,
	}
	res.SetReconstruction(r)
	return res
}

// SetReconstruction replaces the reconstructed coefficients. A nil r clears
// them.
func (res *Result) SetReconstruction(r *Reconstruction) {
	if r == nil {
		res.Recon = [2][]float64{}
		res.ReconConverged = [2]bool{}
		return
	}
	res.Recon = r.Coeff
	for _, s := range Sides {
		res.ReconConverged[s] = r.Converged(s)
	}
}

// HasReconstruction reports whether both sides carry reconstructed
// coefficients.
func (res *Result) HasReconstruction() bool {
	return len(res.Recon[Lower]) > 0 && len(res.Recon[Upper]) > 0
}

// Surface returns an evaluator for side s, using the reconstructed
// coefficients when recon is set and available.
func (res *Result) Surface(s Side, recon bool) *Surface {
	if recon && len(res.Recon[s]) > 0 {
		return NewSurface(res.Recon[s], res.QM, res.Cell)
	}
	return NewSurface(res.Coeff[s], res.QM, res.Cell)
}

// resultBlob has Result's fields without its methods, so gob does not
// recurse into MarshalBinary.
type resultBlob Result

// MarshalBinary encodes the result as a gzip-compressed gob stream.
func (res *Result) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode((*resultBlob)(res)); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a blob written by MarshalBinary.
func (res *Result) UnmarshalBinary(blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty result blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var decoded resultBlob
	if err := gob.NewDecoder(gz).Decode(&decoded); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	*res = Result(decoded)
	return nil
}
