package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"longrec/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "sync")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Sync.Prefetch = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// PosixRule is the timestamp rule used by Recording fixtures: epoch seconds
// after the last underscore of the base name.
func PosixRule() config.TimestampRule {
	pos := 1
	return config.TimestampRule{Delimiter: "_", Position: &pos, Format: "posix"}
}

// WithCamera declares a camera reading *.mp4 files from dir.
func WithCamera(id, dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cameras = append(b.cfg.Cameras, config.Camera{ID: id, Dir: dir, Pattern: "*.mp4", Timestamp: PosixRule()})
	}
}

// WithSignal declares a signal widget with one text stream read from dir.
func WithSignal(id, dir string, frequency float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Signals = append(b.cfg.Signals, config.Widget{ID: id, Streams: []config.Stream{{
			Dir: dir, Pattern: "*.txt", Frequency: frequency, Timestamp: PosixRule(),
		}}})
	}
}

// WithInterval declares an interval widget with one text stream read from dir.
func WithInterval(id, dir string, frequency float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Intervals = append(b.cfg.Intervals, config.Widget{ID: id, Streams: []config.Stream{{
			Dir: dir, Pattern: "*.txt", Frequency: frequency, Timestamp: PosixRule(),
		}}})
	}
}

// WithoutCache disables the duration cache.
func WithoutCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.CacheDir = ""
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffprobe is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffprobe"}
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		binDir := stubDir(b)
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
	}
}

// WithStubbedFFprobe installs an ffprobe stub that prints output for every
// file and points the configuration at it.
func WithStubbedFFprobe(output string) ConfigOption {
	return func(b *configBuilder) {
		binDir := stubDir(b)
		dataPath := filepath.Join(binDir, "ffprobe.json")
		if err := os.WriteFile(dataPath, []byte(output), 0o644); err != nil {
			b.t.Fatalf("write ffprobe output: %v", err)
		}
		target := filepath.Join(binDir, "ffprobe")
		script := "#!/bin/sh\ncat '" + dataPath + "'\n"
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write ffprobe stub: %v", err)
		}
		b.cfg.Sync.FFprobeBinary = target
	}
}

func stubDir(b *configBuilder) string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		b.t.Fatalf("set PATH: %v", err)
	}
	b.t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
	return binDir
}
