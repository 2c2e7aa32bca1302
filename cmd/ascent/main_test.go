package main

import (
	"path/filepath"
	"testing"

	"github.com/san-kum/ascent/internal/config"
)

func TestLoadScenario(t *testing.T) {
	configFile, preset = "", "leo"
	cfg, err := loadScenario()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "leo" {
		t.Errorf("expected leo, got %s", cfg.Name)
	}

	preset = "mars"
	if _, err := loadScenario(); err == nil {
		t.Error("expected error for unknown preset")
	}

	path := filepath.Join(t.TempDir(), "s.yaml")
	want := config.GetPreset("gto-like")
	want.Name = ""
	if err := config.Save(path, want); err != nil {
		t.Fatal(err)
	}
	configFile = path
	t.Cleanup(func() { configFile, preset = "", "standard" })
	cfg, err = loadScenario()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != path || len(cfg.Stages) != len(want.Stages) {
		t.Errorf("unexpected scenario %s with %d stages", cfg.Name, len(cfg.Stages))
	}
}

func TestSweepParams(t *testing.T) {
	cfg := config.GetPreset("standard")
	sweepParams["periapsis_km"](cfg, 250)
	if cfg.Target.Periapsis != cfg.Body.Radius+250e3 || cfg.Target.Attach != cfg.Target.Periapsis {
		t.Errorf("periapsis not applied: %+v", cfg.Target)
	}
	sweepParams["inclination_deg"](cfg, 51.6)
	if cfg.Target.Inclination != 51.6 {
		t.Errorf("inclination not applied: %g", cfg.Target.Inclination)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("swept scenario invalid: %v", err)
	}
}
