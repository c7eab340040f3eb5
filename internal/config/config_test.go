package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"longrec/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("LONGREC_CONFIG", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantArtifacts := filepath.Join(tempHome, ".local", "share", "longrec", "sync")
	if cfg.Paths.ArtifactDir != wantArtifacts {
		t.Fatalf("unexpected artifact dir: got %q want %q", cfg.Paths.ArtifactDir, wantArtifacts)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "longrec") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Sync.GapToleranceSeconds != 1 {
		t.Fatalf("expected default gap tolerance 1s, got %v", cfg.Sync.GapToleranceSeconds)
	}
	if cfg.Sync.TimeZone != "UTC" {
		t.Fatalf("expected UTC time zone, got %q", cfg.Sync.TimeZone)
	}
	if !cfg.Sync.PersistArtifacts || !cfg.Sync.Prefetch {
		t.Fatal("expected artifacts and prefetch enabled by default")
	}
	if cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected ffprobe binary: %q", cfg.FFprobeBinary())
	}
	if cfg.HasVideo() {
		t.Fatal("expected no cameras by default")
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
artifact_dir = "~/sync"

[sync]
time_zone = "Europe/Paris"
gap_tolerance_seconds = 2.5

[[cameras]]
id = "cam1"
dir = "~/video"
pattern = "*.mp4"
timestamp = { delimiter = "_", position = 1, format = "%Y%m%d-%H%M%S" }

[[signals]]
id = "eeg"

  [[signals.streams]]
  dir = "~/eeg"
  pattern = "*.h5"
  key = "eeg/data"
  frequency_attribute = "eeg/freq"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.ArtifactDir != filepath.Join(tempHome, "sync") {
		t.Fatalf("unexpected artifact dir: %q", cfg.Paths.ArtifactDir)
	}
	if len(cfg.Cameras) != 1 || cfg.Cameras[0].Dir != filepath.Join(tempHome, "video") {
		t.Fatalf("unexpected cameras: %+v", cfg.Cameras)
	}
	rule := cfg.Cameras[0].Timestamp
	if rule.Unset() || rule.PositionValue() != 1 {
		t.Fatalf("unexpected camera timestamp rule: %+v", rule)
	}
	if cfg.GapTolerance().Seconds() != 2.5 {
		t.Fatalf("unexpected gap tolerance: %v", cfg.GapTolerance())
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Paris" {
		t.Fatalf("unexpected location %v (err %v)", loc, err)
	}
	stream := cfg.Signals[0].Streams[0]
	if stream.FrequencyAttribute != "eeg/freq" {
		t.Fatalf("unexpected frequency attribute: %q", stream.FrequencyAttribute)
	}
	if !stream.Timestamp.Unset() {
		t.Fatal("expected signal timestamp rule to be unset")
	}
}

func TestEnvVarSelectsConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "env.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LONGREC_CONFIG", configPath)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected env config to be used, got %q (exists=%v)", resolved, exists)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level from env config, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[sync]\nbogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestCreateSample(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[[cameras]]") {
		t.Fatalf("sample config missing camera section: %s", data)
	}

	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if len(parsed.Cameras) != 1 || parsed.Cameras[0].ID != "cam1" {
		t.Fatalf("unexpected sample cameras: %+v", parsed.Cameras)
	}
	if parsed.Intervals[0].Streams[0].Frequency != -1 {
		t.Fatalf("expected sample interval frequency -1, got %v", parsed.Intervals[0].Streams[0].Frequency)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	pos := 1
	negative := -1
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "negative tolerance",
			mutate:  func(c *config.Config) { c.Sync.GapToleranceSeconds = -1 },
			wantErr: "gap_tolerance_seconds",
		},
		{
			name:    "bad time zone",
			mutate:  func(c *config.Config) { c.Sync.TimeZone = "Mars/Olympus" },
			wantErr: "time_zone",
		},
		{
			name:    "bad level",
			mutate:  func(c *config.Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
		{
			name: "duplicate ids",
			mutate: func(c *config.Config) {
				cam := config.Camera{ID: "cam", Dir: "/v", Pattern: "*.mp4"}
				c.Cameras = []config.Camera{cam, cam}
			},
			wantErr: "declared twice",
		},
		{
			name: "widget without streams",
			mutate: func(c *config.Config) {
				c.Signals = []config.Widget{{ID: "ecg"}}
			},
			wantErr: "at least one stream",
		},
		{
			name: "negative position",
			mutate: func(c *config.Config) {
				c.Cameras = []config.Camera{{ID: "cam", Dir: "/v", Pattern: "*.mp4", Timestamp: config.TimestampRule{Delimiter: "_", Position: &negative, Format: "posix"}}}
			},
			wantErr: "position",
		},
		{
			name: "bad frequency",
			mutate: func(c *config.Config) {
				c.Signals = []config.Widget{{ID: "ecg", Streams: []config.Stream{{Dir: "/s", Pattern: "*.txt", Frequency: -3, Timestamp: config.TimestampRule{Delimiter: "_", Position: &pos, Format: "posix"}}}}}
			},
			wantErr: "frequency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ArtifactDir = filepath.Join(base, "sync")
	cfg.Paths.CacheDir = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.ArtifactDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
	if cfg.DurationCachePath() != "" {
		t.Fatal("expected empty duration cache path when cache dir unset")
	}
}
