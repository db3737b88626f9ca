package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.ConfidenceThreshold == nil || *cfg.ConfidenceThreshold != 0.8 {
		t.Errorf("Expected ConfidenceThreshold 0.8, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.HitsToConfirm == nil || *cfg.HitsToConfirm != 3 {
		t.Errorf("Expected HitsToConfirm 3, got %v", cfg.HitsToConfirm)
	}
	if cfg.MaxMisses == nil || *cfg.MaxMisses != 30 {
		t.Errorf("Expected MaxMisses 30, got %v", cfg.MaxMisses)
	}
	if cfg.CycleInterval == nil || *cfg.CycleInterval != "30ms" {
		t.Errorf("Expected CycleInterval '30ms', got %v", cfg.CycleInterval)
	}
	if cfg.NotificationWindow == nil || *cfg.NotificationWindow != "2s" {
		t.Errorf("Expected NotificationWindow '2s', got %v", cfg.NotificationWindow)
	}
	if got := len(cfg.AllowedClasses); got != 17 {
		t.Errorf("Expected 17 allowed classes, got %d", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetDefaultFPS() != 30 {
		t.Errorf("GetDefaultFPS() = %f, want 30", cfg.GetDefaultFPS())
	}
	if cfg.GetVideoContainer() != "mp4" {
		t.Errorf("GetVideoContainer() = %q, want mp4", cfg.GetVideoContainer())
	}
	if cfg.GetVideoCodec() != "avc1" {
		t.Errorf("GetVideoCodec() = %q, want avc1", cfg.GetVideoCodec())
	}
	if cfg.GetScreenshotFormat() != "png" {
		t.Errorf("GetScreenshotFormat() = %q, want png", cfg.GetScreenshotFormat())
	}
	if cfg.GetReadRetries() != 1 {
		t.Errorf("GetReadRetries() = %d, want 1", cfg.GetReadRetries())
	}
	if cfg.GetMaxTrajectoryLength() != 128 {
		t.Errorf("GetMaxTrajectoryLength() = %d, want 128", cfg.GetMaxTrajectoryLength())
	}
	if !cfg.GetPreprocess() {
		t.Error("GetPreprocess() = false, want true")
	}
}

func TestAllowedClassIDs(t *testing.T) {
	cfg := EmptyTuningConfig()
	ids := cfg.AllowedClassIDs()
	if len(ids) != 17 {
		t.Fatalf("expected 17 ids, got %d", len(ids))
	}
	for i, id := range ids {
		if id != i {
			t.Errorf("ids[%d] = %d, want %d", i, id, i)
		}
	}

	cfg.AllowedClasses = []string{"dog", "Person", "unicorn"}
	ids = cfg.AllowedClassIDs()
	if len(ids) != 2 || ids[0] != 16 || ids[1] != 0 {
		t.Errorf("AllowedClassIDs() = %v, want [16 0]", ids)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "confidence_threshold": 0.55,
  "allowed_classes": ["person", "car"],
  "hits_to_confirm": 5,
  "cycle_interval": "40ms",
  "video_container": ".avi"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetConfidenceThreshold() != 0.55 {
		t.Errorf("GetConfidenceThreshold() = %f, want 0.55", cfg.GetConfidenceThreshold())
	}
	if cfg.GetHitsToConfirm() != 5 {
		t.Errorf("GetHitsToConfirm() = %d, want 5", cfg.GetHitsToConfirm())
	}
	if cfg.GetCycleInterval() != 40*time.Millisecond {
		t.Errorf("GetCycleInterval() = %v, want 40ms", cfg.GetCycleInterval())
	}
	if cfg.GetVideoContainer() != "avi" {
		t.Errorf("GetVideoContainer() = %q, want avi", cfg.GetVideoContainer())
	}
	// Omitted fields fall back to defaults.
	if cfg.GetMaxMisses() != 30 {
		t.Errorf("GetMaxMisses() = %d, want 30", cfg.GetMaxMisses())
	}
	if ids := cfg.AllowedClassIDs(); len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Errorf("AllowedClassIDs() = %v, want [0 2]", ids)
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing", "/nonexistent/path/to/config.json", "failed to stat"},
		{"wrong extension", write("cfg.yaml", "{}"), ".json extension"},
		{"invalid json", write("bad.json", `{"confidence_threshold": "x"`), "failed to parse"},
		{"out of range", write("range.json", `{"confidence_threshold": 1.5}`), "confidence_threshold"},
		{"too large", write("big.json", `{"class_names":["`+strings.Repeat("a", 1024*1024)+`"]}`), "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{"empty", EmptyTuningConfig(), false},
		{"threshold zero", &TuningConfig{ConfidenceThreshold: ptrFloat64(0)}, false},
		{"threshold one", &TuningConfig{ConfidenceThreshold: ptrFloat64(1)}, false},
		{"threshold negative", &TuningConfig{ConfidenceThreshold: ptrFloat64(-0.1)}, true},
		{"hits zero", &TuningConfig{HitsToConfirm: ptrInt(0)}, true},
		{"misses zero", &TuningConfig{MaxMisses: ptrInt(0)}, true},
		{"negative retries", &TuningConfig{ReadRetries: ptrInt(-1)}, true},
		{"zero fps", &TuningConfig{DefaultFPS: ptrFloat64(0)}, true},
		{"bad interval", &TuningConfig{CycleInterval: ptrString("soon")}, true},
		{"negative window", &TuningConfig{NotificationWindow: ptrString("-2s")}, true},
		{"bad codec", &TuningConfig{VideoCodec: ptrString("h264x")}, true},
		{"unknown class", &TuningConfig{AllowedClasses: []string{"dragon"}}, true},
		{"custom table", &TuningConfig{ClassNames: []string{"a", "b"}, AllowedClasses: []string{"b"}}, false},
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

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg, err := LoadTuningConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("failed to load %s: %v", DefaultConfigPath, err)
	}
	def := EmptyTuningConfig()
	if cfg.GetConfidenceThreshold() != def.GetConfidenceThreshold() {
		t.Errorf("confidence_threshold %f differs from built-in %f", cfg.GetConfidenceThreshold(), def.GetConfidenceThreshold())
	}
	if cfg.GetMaxMisses() != def.GetMaxMisses() {
		t.Errorf("max_misses %d differs from built-in %d", cfg.GetMaxMisses(), def.GetMaxMisses())
	}
	if cfg.GetCycleInterval() != def.GetCycleInterval() {
		t.Errorf("cycle_interval %v differs from built-in %v", cfg.GetCycleInterval(), def.GetCycleInterval())
	}
}
