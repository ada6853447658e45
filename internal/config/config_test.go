// ABOUTME: Tests for centralized configuration system
// ABOUTME: Verifies environment variable parsing, validation, and path layout
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load("/tmp/project")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DataDir != filepath.Join("/tmp/project", DefaultDataName) {
		t.Errorf("DataDir = %s, want project-relative default", cfg.DataDir)
	}
	if cfg.LoadDaysFull != 2 || cfg.LoadDaysPartial != 5 || cfg.LoadDaysMax != 7 {
		t.Errorf("decay windows = %d/%d/%d, want 2/5/7",
			cfg.LoadDaysFull, cfg.LoadDaysPartial, cfg.LoadDaysMax)
	}
	if cfg.PartialPerDay != 3 {
		t.Errorf("PartialPerDay = %d, want 3", cfg.PartialPerDay)
	}
	if cfg.ImportantConfidence != 0.9 {
		t.Errorf("ImportantConfidence = %f, want 0.9", cfg.ImportantConfidence)
	}
	if cfg.FactsLimit != 15 {
		t.Errorf("FactsLimit = %d, want 15", cfg.FactsLimit)
	}
	if cfg.ChunkTokens != 400 || cfg.ChunkOverlap != 80 {
		t.Errorf("chunking = %d/%d, want 400/80", cfg.ChunkTokens, cfg.ChunkOverlap)
	}
	if cfg.FTSWeight != 0.4 || cfg.VectorWeight != 0.6 {
		t.Errorf("weights = %f/%f, want 0.4/0.6", cfg.FTSWeight, cfg.VectorWeight)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("LockTimeout = %v, want 5s", cfg.LockTimeout)
	}
	if cfg.SessionsKeep != 500 {
		t.Errorf("SessionsKeep = %d, want 500", cfg.SessionsKeep)
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel = %s, want text-embedding-3-small", cfg.EmbeddingModel)
	}
}

func TestLoad_DataDirOverride(t *testing.T) {
	os.Clearenv()
	t.Setenv("RECALL_DATA_DIR", "/explicit/data")

	cfg, err := Load("/ignored/project")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/explicit/data" {
		t.Errorf("DataDir = %s, want /explicit/data", cfg.DataDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("RECALL_LOAD_DAYS_FULL", "3")
	t.Setenv("RECALL_FACTS_LIMIT", "25")
	t.Setenv("RECALL_LOCK_TIMEOUT", "2s")
	t.Setenv("RECALL_FTS_WEIGHT", "0.5")

	cfg, err := Load(".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LoadDaysFull != 3 {
		t.Errorf("LoadDaysFull = %d, want 3", cfg.LoadDaysFull)
	}
	if cfg.FactsLimit != 25 {
		t.Errorf("FactsLimit = %d, want 25", cfg.FactsLimit)
	}
	if cfg.LockTimeout != 2*time.Second {
		t.Errorf("LockTimeout = %v, want 2s", cfg.LockTimeout)
	}
	if cfg.FTSWeight != 0.5 {
		t.Errorf("FTSWeight = %f, want 0.5", cfg.FTSWeight)
	}
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	os.Clearenv()
	t.Setenv("RECALL_FACTS_LIMIT", "not-a-number")

	cfg, err := Load(".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FactsLimit != 15 {
		t.Errorf("FactsLimit = %d, want default 15", cfg.FactsLimit)
	}
}

func TestValidate_RepairsWindowOrdering(t *testing.T) {
	os.Clearenv()
	t.Setenv("RECALL_LOAD_DAYS_FULL", "10")
	t.Setenv("RECALL_LOAD_DAYS_PARTIAL", "5")
	t.Setenv("RECALL_LOAD_DAYS_MAX", "7")

	cfg, err := Load(".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LoadDaysPartial <= cfg.LoadDaysFull {
		t.Errorf("partial window %d not repaired past full window %d",
			cfg.LoadDaysPartial, cfg.LoadDaysFull)
	}
	if cfg.LoadDaysMax <= cfg.LoadDaysPartial {
		t.Errorf("max window %d not repaired past partial window %d",
			cfg.LoadDaysMax, cfg.LoadDaysPartial)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"confidence above one", "RECALL_IMPORTANT_CONFIDENCE", "1.5"},
		{"negative weight", "RECALL_FTS_WEIGHT", "-1"},
		{"tiny chunks", "RECALL_CHUNK_TOKENS", "10"},
		{"zero lock timeout", "RECALL_LOCK_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(tt.key, tt.value)
			if _, err := Load("."); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	t.Setenv("RECALL_DATA_DIR", dir)

	cfg, err := Load(".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Disabled() {
		t.Error("Disabled() = true without marker file")
	}

	if err := os.WriteFile(filepath.Join(dir, DisableMarker), nil, 0o644); err != nil {
		t.Fatalf("writing marker: %v", err)
	}
	if !cfg.Disabled() {
		t.Error("Disabled() = false with marker file present")
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := &Config{DataDir: "/data"}

	if got := cfg.DailyDir(); got != "/data/daily" {
		t.Errorf("DailyDir() = %s", got)
	}
	if got := cfg.SessionsPath(); got != "/data/sessions.jsonl" {
		t.Errorf("SessionsPath() = %s", got)
	}
	if got := cfg.IndexPath(); got != "/data/index.sqlite" {
		t.Errorf("IndexPath() = %s", got)
	}
	if got := cfg.SessionLockPath("abc"); !strings.HasSuffix(got, "session_state/.abc.lock") {
		t.Errorf("SessionLockPath() = %s", got)
	}
	if got := cfg.SessionStatePath("abc"); !strings.HasSuffix(got, "session_state/abc.json") {
		t.Errorf("SessionStatePath() = %s", got)
	}
	if got := cfg.AuditLogPath(); got != "/data/audit/operations.jsonl" {
		t.Errorf("AuditLogPath() = %s", got)
	}
}
