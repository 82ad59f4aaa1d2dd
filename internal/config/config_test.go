package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
environments:
  dev:
    head_filters:
      - "**/*.yml"
  staging:
    propagated_from: dev
    propagated_filters:
      - "*.yml"
    head_filters:
      - "staging/**"
  prod:
    propagated_from: staging
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".cepler.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromFile(t *testing.T) {
	cfg, err := FromFile(writeSample(t))
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}

	dev := cfg.Get("dev")
	if dev == nil {
		t.Fatal("expected dev environment")
	}
	if dev.Name != "dev" {
		t.Errorf("dev.Name = %q, want dev", dev.Name)
	}
	if _, ok := dev.PropagatedFrom(); ok {
		t.Error("dev should have no upstream")
	}

	staging := cfg.Get("staging")
	upstream, ok := staging.PropagatedFrom()
	if !ok || upstream != "dev" {
		t.Errorf("staging upstream = (%q, %v), want (dev, true)", upstream, ok)
	}
	if got := staging.PropagatedFilePatterns(); len(got) != 1 || got[0] != "*.yml" {
		t.Errorf("staging propagated patterns = %v", got)
	}

	prod := cfg.Get("prod")
	if got := prod.HeadFilters(); len(got) != 1 || got[0] != "**/*" {
		t.Errorf("prod default head filters = %v, want [**/*]", got)
	}
}

func TestFromFileMissing(t *testing.T) {
	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestMustGetUnknown(t *testing.T) {
	cfg, err := FromFile(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.MustGet("qa"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}
