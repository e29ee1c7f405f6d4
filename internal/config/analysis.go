package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/interface.report/internal/surface"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// Frame error policies.
const (
	OnErrorAbort = "abort"
	OnErrorSkip  = "skip"
)

// AnalysisConfig holds the parameters of an intrinsic surface analysis.
// Every field is optional; the Get* methods supply defaults for fields
// that were not set, so partial configs are safe.
type AnalysisConfig struct {
	// Surface params
	QM           *int     `json:"qm,omitempty"`
	N0           *int     `json:"n0,omitempty"`
	PivotDensity *float64 `json:"pivot_density,omitempty"` // pivots per σ², used when n0 is unset
	Phi          *float64 `json:"phi,omitempty"`
	Psi          *float64 `json:"psi,omitempty"`
	MolSigma     *float64 `json:"mol_sigma,omitempty"` // Å
	NCube        *int     `json:"ncube,omitempty"`
	VLim         *int     `json:"vlim,omitempty"`
	MaxHalvings  *int     `json:"max_halvings,omitempty"`

	// Pipeline params
	Recon          *bool   `json:"recon,omitempty"`
	CentreZ        *bool   `json:"centre_z,omitempty"`
	Workers        *int    `json:"workers,omitempty"`
	OnError        *string `json:"on_error,omitempty"` // "abort" or "skip"
	OverwriteCoeff *bool   `json:"overwrite_coeff,omitempty"`
	OverwriteRecon *bool   `json:"overwrite_recon,omitempty"`

	// Output params
	Database    *string  `json:"database,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"` // K, for capillary tension
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every cell-independent field
// set to its default. qm and n0 stay nil so they are derived per cell.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		PivotDensity:   ptrFloat64(0.8),
		Phi:            ptrFloat64(5e-2),
		Psi:            ptrFloat64(0.1),
		MolSigma:       ptrFloat64(3.0),
		NCube:          ptrInt(3),
		VLim:           ptrInt(3),
		MaxHalvings:    ptrInt(surface.DefaultMaxHalvings),
		Recon:          ptrBool(true),
		CentreZ:        ptrBool(true),
		Workers:        ptrInt(1),
		OnError:        ptrString(OnErrorAbort),
		OverwriteCoeff: ptrBool(false),
		OverwriteRecon: ptrBool(false),
		Database:       ptrString("isurf.db"),
		Temperature:    ptrFloat64(298.0),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.QM != nil && *c.QM < 0 {
		return fmt.Errorf("qm must be non-negative, got %d", *c.QM)
	}
	if c.N0 != nil && *c.N0 <= 0 {
		return fmt.Errorf("n0 must be positive, got %d", *c.N0)
	}
	if c.PivotDensity != nil && !(*c.PivotDensity > 0) {
		return fmt.Errorf("pivot_density must be positive, got %f", *c.PivotDensity)
	}
	if c.Phi != nil && *c.Phi < 0 {
		return fmt.Errorf("phi must be non-negative, got %f", *c.Phi)
	}
	if c.Psi != nil && *c.Psi < 0 {
		return fmt.Errorf("psi must be non-negative, got %f", *c.Psi)
	}
	if c.MolSigma != nil && !(*c.MolSigma > 0) {
		return fmt.Errorf("mol_sigma must be positive, got %f", *c.MolSigma)
	}
	if c.NCube != nil && *c.NCube <= 0 {
		return fmt.Errorf("ncube must be positive, got %d", *c.NCube)
	}
	if c.VLim != nil && *c.VLim < 0 {
		return fmt.Errorf("vlim must be non-negative, got %d", *c.VLim)
	}
	if c.MaxHalvings != nil && *c.MaxHalvings <= 0 {
		return fmt.Errorf("max_halvings must be positive, got %d", *c.MaxHalvings)
	}
	if c.Workers != nil && *c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}
	if c.OnError != nil && *c.OnError != OnErrorAbort && *c.OnError != OnErrorSkip {
		return fmt.Errorf("on_error must be %q or %q, got %q", OnErrorAbort, OnErrorSkip, *c.OnError)
	}
	if c.Temperature != nil && !(*c.Temperature > 0) {
		return fmt.Errorf("temperature must be positive, got %f", *c.Temperature)
	}
	return nil
}

// GetMolSigma returns the mol_sigma value or the default.
func (c *AnalysisConfig) GetMolSigma() float64 {
	if c.MolSigma == nil {
		return 3.0
	}
	return *c.MolSigma
}

// GetQM returns the qm value, or one wave per molecular diameter across
// the mean cell side.
func (c *AnalysisConfig) GetQM(cell surface.Cell) int {
	if c.QM == nil {
		return int((cell.Lx + cell.Ly) / (2 * c.GetMolSigma()))
	}
	return *c.QM
}

// GetPivotDensity returns the pivot_density value or the default.
func (c *AnalysisConfig) GetPivotDensity() float64 {
	if c.PivotDensity == nil {
		return 0.8
	}
	return *c.PivotDensity
}

// GetN0 returns the n0 value, or the pivot count implied by
// pivot_density over the lateral cross section.
func (c *AnalysisConfig) GetN0(cell surface.Cell) int {
	if c.N0 == nil {
		sigma := c.GetMolSigma()
		return int(cell.Area() * c.GetPivotDensity() / (sigma * sigma))
	}
	return *c.N0
}

// GetPhi returns the phi value or the default.
func (c *AnalysisConfig) GetPhi() float64 {
	if c.Phi == nil {
		return 5e-2
	}
	return *c.Phi
}

// GetPsi returns the psi value or the default.
func (c *AnalysisConfig) GetPsi() float64 {
	if c.Psi == nil {
		return 0.1
	}
	return *c.Psi
}

// GetNCube returns the ncube value or the default.
func (c *AnalysisConfig) GetNCube() int {
	if c.NCube == nil {
		return 3
	}
	return *c.NCube
}

// GetVLim returns the vlim value or the default.
func (c *AnalysisConfig) GetVLim() int {
	if c.VLim == nil {
		return 3
	}
	return *c.VLim
}

// GetMaxHalvings returns the max_halvings value or the default.
func (c *AnalysisConfig) GetMaxHalvings() int {
	if c.MaxHalvings == nil {
		return surface.DefaultMaxHalvings
	}
	return *c.MaxHalvings
}

// GetRecon returns the recon value or the default.
func (c *AnalysisConfig) GetRecon() bool {
	if c.Recon == nil {
		return true
	}
	return *c.Recon
}

// GetCentreZ returns the centre_z value or the default.
func (c *AnalysisConfig) GetCentreZ() bool {
	if c.CentreZ == nil {
		return true
	}
	return *c.CentreZ
}

// GetWorkers returns the workers value or the default.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetOnError returns the on_error value or the default.
func (c *AnalysisConfig) GetOnError() string {
	if c.OnError == nil || *c.OnError == "" {
		return OnErrorAbort
	}
	return *c.OnError
}

// GetOverwriteCoeff returns the overwrite_coeff value or the default.
func (c *AnalysisConfig) GetOverwriteCoeff() bool {
	if c.OverwriteCoeff == nil {
		return false
	}
	return *c.OverwriteCoeff
}

// GetOverwriteRecon returns the overwrite_recon value or the default.
func (c *AnalysisConfig) GetOverwriteRecon() bool {
	if c.OverwriteRecon == nil {
		return false
	}
	return *c.OverwriteRecon
}

// GetDatabase returns the database value or the default.
func (c *AnalysisConfig) GetDatabase() string {
	if c.Database == nil || *c.Database == "" {
		return "isurf.db"
	}
	return *c.Database
}

// GetTemperature returns the temperature value or the default.
func (c *AnalysisConfig) GetTemperature() float64 {
	if c.Temperature == nil {
		return 298.0
	}
	return *c.Temperature
}

// Params resolves the surface parameters for a cell.
func (c *AnalysisConfig) Params(cell surface.Cell) surface.Params {
	return surface.Params{
		QM:          c.GetQM(cell),
		N0:          c.GetN0(cell),
		Phi:         c.GetPhi(),
		Psi:         c.GetPsi(),
		MolSigma:    c.GetMolSigma(),
		NCube:       c.GetNCube(),
		VLim:        c.GetVLim(),
		MaxHalvings: c.GetMaxHalvings(),
	}
}
