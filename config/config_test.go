package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesStockSettings(t *testing.T) {
	cfg := Default()
	if cfg.N3FJP.Host != "127.0.0.1" || cfg.N3FJP.Port != 1100 {
		t.Fatalf("unexpected n3fjp endpoint %s:%d", cfg.N3FJP.Host, cfg.N3FJP.Port)
	}
	if cfg.N3FJP.SeedCount != 5000 || cfg.N3FJP.TailCount != 80 || cfg.N3FJP.RefreshSeconds != 3 {
		t.Fatalf("unexpected poll defaults %+v", cfg.N3FJP)
	}
	if cfg.Web.Host != "0.0.0.0" || cfg.Web.Port != 8080 {
		t.Fatalf("unexpected web defaults %+v", cfg.Web)
	}
	if cfg.Scoring.FieldDayClass != "1A" {
		t.Fatalf("expected class 1A, got %q", cfg.Scoring.FieldDayClass)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `n3fjp:
  host: "10.0.0.5"
  tail_count: 120
  transport: TELNET
scoring:
  field_day_class: "3A"
  emergency_power: true
  nts_message_handled: 4
event:
  callsign: "W1AW"
  year: 2025
  band_goals:
    "20": 400
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.N3FJP.Host != "10.0.0.5" || cfg.N3FJP.TailCount != 120 {
		t.Fatalf("overrides not applied: %+v", cfg.N3FJP)
	}
	if cfg.N3FJP.Transport != "telnet" {
		t.Fatalf("expected transport normalized to telnet, got %q", cfg.N3FJP.Transport)
	}
	if cfg.N3FJP.Port != 1100 || cfg.N3FJP.SeedCount != 5000 {
		t.Fatalf("expected untouched keys to keep defaults: %+v", cfg.N3FJP)
	}
	if !cfg.Scoring.EmergencyPower || cfg.Scoring.FieldDayClass != "3A" || cfg.Scoring.NTSMessageHandled != 4 {
		t.Fatalf("scoring not loaded: %+v", cfg.Scoring)
	}
	if cfg.Event.Year != 2025 || cfg.Event.BandGoals["20"] != 400 {
		t.Fatalf("event not loaded: %+v", cfg.Event)
	}
	if cfg.LoadedFrom != path {
		t.Fatalf("expected LoadedFrom=%s, got %s", path, cfg.LoadedFrom)
	}
}

func TestLoadDirectoryMergesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a_app.yaml"), []byte("web:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b_scoring.yml"), []byte("scoring:\n  satellite_qso: true\nweb:\n  www_dir: public\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not yaml: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Web.Port != 9090 || cfg.Web.WWWDir != "public" {
		t.Fatalf("expected both files merged into web, got %+v", cfg.Web)
	}
	if !cfg.Scoring.SatelliteQSO {
		t.Fatalf("expected satellite_qso from second file")
	}
	if cfg.Assets.Dir != filepath.Join("public", "lib") {
		t.Fatalf("expected asset dir to follow www_dir, got %q", cfg.Assets.Dir)
	}
}

func TestLoadMissingFileWrapsNotExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"transport": "n3fjp:\n  transport: serial\n",
		"idle":      "n3fjp:\n  poll_timeout_seconds: 1\n  poll_idle_seconds: 2\n",
		"ui":        "ui:\n  mode: curses\n",
		"qos":       "mqtt:\n  qos: 3\n",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSeconds(t *testing.T) {
	if got := Seconds(1.75); got != 1750*time.Millisecond {
		t.Fatalf("expected 1.75s, got %s", got)
	}
}
