package surface

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_Validate(t *testing.T) {
	t.Parallel()

	cell := Cell{Lx: 10, Ly: 10, Lz: 30}
	tests := []struct {
		name  string
		frame *Frame
		ok    bool
	}{
		{"valid", &Frame{X: []float64{1}, Y: []float64{2}, Z: []float64{3}, Cell: cell}, true},
		{"empty", &Frame{Cell: cell}, true},
		{"nil", nil, false},
		{"length mismatch", &Frame{X: []float64{1, 2}, Y: []float64{2}, Z: []float64{3}, Cell: cell}, false},
		{"zero cell", &Frame{X: []float64{1}, Y: []float64{2}, Z: []float64{3}}, false},
		{"nan", &Frame{X: []float64{math.NaN()}, Y: []float64{2}, Z: []float64{3}, Cell: cell}, false},
		{"inf", &Frame{X: []float64{1}, Y: []float64{2}, Z: []float64{math.Inf(-1)}, Cell: cell}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidFrame)
		})
	}
}

func TestFrame_Centred(t *testing.T) {
	t.Parallel()

	f := &Frame{
		X:    []float64{0, 1, 2, 3},
		Y:    []float64{0, 1, 2, 3},
		Z:    []float64{10, 12, 18, 20},
		Cell: Cell{Lx: 5, Ly: 5, Lz: 40},
	}
	c := f.Centred()
	assert.Equal(t, []float64{-5, -3, 3, 5}, c.Z)
	assert.Equal(t, []float64{10, 12, 18, 20}, f.Z, "original frame must not change")
	assert.Equal(t, f.Cell, c.Cell)
}

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	good := Params{QM: 4, N0: 50, Phi: 5e-2, Psi: 0.1, MolSigma: 3, NCube: 3, VLim: 3}
	require.NoError(t, good.Validate())
	assert.Equal(t, 4.5, good.MaxR())
	assert.Equal(t, 1.5, good.Tau())
	assert.Equal(t, DefaultMaxHalvings, good.maxHalvings())

	for name, mutate := range map[string]func(*Params){
		"negative qm":   func(p *Params) { p.QM = -1 },
		"zero n0":       func(p *Params) { p.N0 = 0 },
		"negative phi":  func(p *Params) { p.Phi = -1 },
		"negative psi":  func(p *Params) { p.Psi = -0.1 },
		"zero sigma":    func(p *Params) { p.MolSigma = 0 },
		"nan sigma":     func(p *Params) { p.MolSigma = math.NaN() },
		"zero ncube":    func(p *Params) { p.NCube = 0 },
		"negative vlim": func(p *Params) { p.VLim = -1 },
	} {
		p := good
		mutate(&p)
		assert.ErrorIs(t, p.Validate(), ErrInvalidParams, name)
	}
}

func TestErrors_Messages(t *testing.T) {
	t.Parallel()

	ins := &InsufficientDataError{Side: Upper, Eligible: 12, Required: 40}
	assert.Contains(t, ins.Error(), "upper")
	assert.Contains(t, ins.Error(), "12")

	cause := errors.New("matrix singular or near-singular")
	sing := &SingularSystemError{Side: Lower, Stage: "growth", Err: cause}
	assert.ErrorIs(t, sing, cause)
	assert.Contains(t, sing.Error(), "lower")

	nc := &ReconstructionNonConvergenceError{Side: Lower, Halvings: 20, Residual: 0.02}
	assert.Contains(t, nc.Error(), "20 halvings")

	assert.Equal(t, "side(7)", Side(7).String())
	assert.Equal(t, "pivot-upper", RolePivotUpper.String())
}
