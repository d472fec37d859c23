package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	doc := []byte("tps: 30\nworld:\n  width: 1080\n  platform_width: 120\nnet:\n  flush_interval_ms: 100\n  ping_interval_ms: 2000\n")
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TPS != 30 {
		t.Errorf("tps = %d, want 30", got.TPS)
	}
	if got.World.Width != 1080 {
		t.Errorf("world.width = %v, want 1080", got.World.Width)
	}
	if got.Net.FlushIntervalMs != 100 {
		t.Errorf("flush_interval_ms = %d, want 100", got.Net.FlushIntervalMs)
	}
	// Untouched sections keep defaults.
	if got.World.Gravity != Default().World.Gravity {
		t.Errorf("gravity = %v, want default %v", got.World.Gravity, Default().World.Gravity)
	}
	if got.Difficulty.GapMinStart != 120 {
		t.Errorf("gap_min_start = %v, want 120", got.Difficulty.GapMinStart)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	bad := Default()
	bad.TPS = 0
	if bad.Validate() == nil {
		t.Error("tps=0 must fail validation")
	}

	bad = Default()
	bad.Net.FlushIntervalMs = 5
	if bad.Validate() == nil {
		t.Error("flush_interval_ms=5 must fail validation")
	}
}
