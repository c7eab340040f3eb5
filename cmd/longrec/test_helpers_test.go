package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"longrec/internal/config"
	"longrec/internal/testsupport"
)

var t0 = time.Unix(1700000000, 0).UTC()

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	eegDir     string
}

// setupCLITestEnv writes a recording with two 10 s reference files at 10 Hz
// and one 15 s EEG file, plus a config file describing it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	refDir := filepath.Join(base, "ref")
	eegDir := filepath.Join(base, "eeg")
	testsupport.WriteSeries(t, refDir, "ref", t0, testsupport.Ramp(100, 0))
	testsupport.WriteSeries(t, refDir, "ref", t0.Add(10*time.Second), testsupport.Ramp(100, 100))
	testsupport.WriteSeries(t, eegDir, "eeg", t0, testsupport.Ramp(150, 0))

	cfg := testsupport.NewConfig(t,
		testsupport.WithSignal("ref", refDir, 10),
		testsupport.WithSignal("eeg", eegDir, 10),
	)
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, eegDir: eegDir}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
