package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir      string `toml:"log_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	CacheDir    string `toml:"cache_dir"`
	APIBind     string `toml:"api_bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Sync contains the synchronization engine tuning knobs.
type Sync struct {
	// TimeZone is the IANA zone used to interpret file-name timestamps that
	// carry no offset. Default: UTC.
	TimeZone string `toml:"time_zone"`
	// GapToleranceSeconds is the maximum begin-time delta under which two
	// files of different modalities are considered aligned. Default: 1.
	GapToleranceSeconds float64 `toml:"gap_tolerance_seconds"`
	DurationWorkers     int     `toml:"duration_workers"`
	ParallelThreshold   int     `toml:"parallel_threshold"`
	PersistArtifacts    bool    `toml:"persist_artifacts"`
	Prefetch            bool    `toml:"prefetch"`
	WatchDebounceMillis int     `toml:"watch_debounce_ms"`
	FFprobeBinary       string  `toml:"ffprobe_binary"`
}

// TimestampRule locates the beginning datetime inside a file name. Leaving any
// field unset makes every file of the modality start at the fixed default epoch.
type TimestampRule struct {
	Delimiter string `toml:"delimiter"`
	Position  *int   `toml:"position"`
	Format    string `toml:"format"`
}

// Camera describes one video modality.
type Camera struct {
	ID        string        `toml:"id"`
	Dir       string        `toml:"dir"`
	Pattern   string        `toml:"pattern"`
	Timestamp TimestampRule `toml:"timestamp"`
}

// Stream describes one signal (or interval) plot inside a widget.
type Stream struct {
	Dir     string `toml:"dir"`
	Key     string `toml:"key"`
	Pattern string `toml:"pattern"`
	// Frequency in Hz. 0 means irregularly sampled (first column holds
	// millisecond timestamps), -1 means "same as the reference frequency".
	Frequency float64 `toml:"frequency"`
	// FrequencyAttribute, when set, reads the frequency from the first file
	// (e.g. "ecg/freq" in an HDF5 file) and overrides Frequency.
	FrequencyAttribute string        `toml:"frequency_attribute"`
	Timestamp          TimestampRule `toml:"timestamp"`
}

// Widget groups the streams displayed together under one identifier.
type Widget struct {
	ID      string   `toml:"id"`
	Streams []Stream `toml:"streams"`
}

// Config encapsulates all configuration values for longrec.
//
// Configuration sections by subsystem:
//   - Paths: log, artifact and cache directories plus the API bind address
//   - Logging: log format, level, and per-component overrides
//   - Sync: gap tolerance, time zone, worker pool and prefetch settings
//   - Cameras: video modalities, the first one is the reference
//   - Signals: signal widgets, the first stream is the reference when no camera
//   - Intervals: interval widgets displayed over signal widgets
type Config struct {
	Paths     Paths    `toml:"paths"`
	Logging   Logging  `toml:"logging"`
	Sync      Sync     `toml:"sync"`
	Cameras   []Camera `toml:"cameras"`
	Signals   []Widget `toml:"signals"`
	Intervals []Widget `toml:"intervals"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if env, ok := os.LookupEnv("LONGREC_CONFIG"); ok {
			path = strings.TrimSpace(env)
		}
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("longrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log, artifact and cache directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.ArtifactDir, c.Paths.CacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable used for video probing.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Sync.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// DurationCachePath returns the SQLite file backing the duration cache, or ""
// when caching is disabled.
func (c *Config) DurationCachePath() string {
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.CacheDir, "durations.db")
}

// HasVideo reports whether at least one camera is configured.
func (c *Config) HasVideo() bool {
	return len(c.Cameras) > 0
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Unset reports whether the rule lacks any of delimiter, position or format.
func (r TimestampRule) Unset() bool {
	return r.Delimiter == "" || r.Position == nil || strings.TrimSpace(r.Format) == ""
}

// PositionValue returns the configured token position, or -1 when unset.
func (r TimestampRule) PositionValue() int {
	if r.Position == nil {
		return -1
	}
	return *r.Position
}
