package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/interface.report/internal/surface"
)

func TestDefaultAnalysisConfig(t *testing.T) {
	cfg := DefaultAnalysisConfig()

	if cfg.Phi == nil || *cfg.Phi != 5e-2 {
		t.Errorf("Expected Phi 0.05, got %v", cfg.Phi)
	}
	if cfg.QM != nil || cfg.N0 != nil {
		t.Errorf("Expected qm and n0 to be derived, got %v %v", cfg.QM, cfg.N0)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults failed validation: %v", err)
	}

	// Getters on an empty config must agree with the explicit defaults.
	empty := EmptyAnalysisConfig()
	cell := surface.Cell{Lx: 30, Ly: 30, Lz: 90}
	if diff := cmp.Diff(cfg.Params(cell), empty.Params(cell)); diff != "" {
		t.Errorf("Params mismatch (-defaults +empty):\n%s", diff)
	}
	if empty.GetOnError() != OnErrorAbort {
		t.Errorf("GetOnError() = %q, want %q", empty.GetOnError(), OnErrorAbort)
	}
	if !empty.GetRecon() || !empty.GetCentreZ() {
		t.Error("Expected recon and centre_z to default to true")
	}
	if empty.GetWorkers() != 1 {
		t.Errorf("GetWorkers() = %d, want 1", empty.GetWorkers())
	}
}

func TestDefaultsFileMatchesCode(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultAnalysisConfig(), fromFile); diff != "" {
		t.Errorf("%s drifted from DefaultAnalysisConfig (-code +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestDerivedResolution(t *testing.T) {
	cfg := EmptyAnalysisConfig()
	cell := surface.Cell{Lx: 40, Ly: 32, Lz: 100}

	// (40+32)/(2*3) = 12
	if got := cfg.GetQM(cell); got != 12 {
		t.Errorf("GetQM() = %d, want 12", got)
	}
	// 40*32*0.8/9 = 113.7
	if got := cfg.GetN0(cell); got != 113 {
		t.Errorf("GetN0() = %d, want 113", got)
	}

	cfg.QM = ptrInt(5)
	cfg.N0 = ptrInt(60)
	p := cfg.Params(cell)
	if p.QM != 5 || p.N0 != 60 {
		t.Errorf("explicit qm/n0 ignored: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("resolved params invalid: %v", err)
	}
}

func TestLoadAnalysisConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "qm": 8,
  "n0": 120,
  "phi": 1e-8,
  "recon": false,
  "workers": 4,
  "on_error": "skip"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadAnalysisConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.QM == nil || *cfg.QM != 8 {
		t.Errorf("Expected QM 8, got %v", cfg.QM)
	}
	if cfg.GetPhi() != 1e-8 {
		t.Errorf("GetPhi() = %g, want 1e-8", cfg.GetPhi())
	}
	if cfg.GetRecon() {
		t.Error("Expected recon false")
	}
	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d, want 4", cfg.GetWorkers())
	}
	if cfg.GetOnError() != OnErrorSkip {
		t.Errorf("GetOnError() = %q, want skip", cfg.GetOnError())
	}
	// Unset fields fall back to defaults.
	if cfg.GetMolSigma() != 3.0 {
		t.Errorf("GetMolSigma() = %g, want 3", cfg.GetMolSigma())
	}
}

func TestLoadAnalysisConfigMissing(t *testing.T) {
	_, err := LoadAnalysisConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadAnalysisConfigWrongExtension(t *testing.T) {
	_, err := LoadAnalysisConfig("config.yaml")
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadAnalysisConfigTooLarge(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "big.json")
	if err := os.WriteFile(configPath, make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	_, err := LoadAnalysisConfig(configPath)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestLoadAnalysisConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "phi": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadAnalysisConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *AnalysisConfig
		wantErr bool
	}{
		{"empty", &AnalysisConfig{}, false},
		{"zero qm", &AnalysisConfig{QM: ptrInt(0)}, false},
		{"negative qm", &AnalysisConfig{QM: ptrInt(-1)}, true},
		{"zero n0", &AnalysisConfig{N0: ptrInt(0)}, true},
		{"negative phi", &AnalysisConfig{Phi: ptrFloat64(-1)}, true},
		{"negative psi", &AnalysisConfig{Psi: ptrFloat64(-0.5)}, true},
		{"zero sigma", &AnalysisConfig{MolSigma: ptrFloat64(0)}, true},
		{"zero density", &AnalysisConfig{PivotDensity: ptrFloat64(0)}, true},
		{"zero ncube", &AnalysisConfig{NCube: ptrInt(0)}, true},
		{"negative vlim", &AnalysisConfig{VLim: ptrInt(-2)}, true},
		{"zero halvings", &AnalysisConfig{MaxHalvings: ptrInt(0)}, true},
		{"zero workers", &AnalysisConfig{Workers: ptrInt(0)}, true},
		{"bad policy", &AnalysisConfig{OnError: ptrString("retry")}, true},
		{"skip policy", &AnalysisConfig{OnError: ptrString(OnErrorSkip)}, false},
		{"zero temperature", &AnalysisConfig{Temperature: ptrFloat64(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
