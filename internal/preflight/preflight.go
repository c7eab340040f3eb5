package preflight

import (
	"fmt"

	"longrec/internal/config"
	"longrec/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable directory checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, cam := range cfg.Cameras {
		results = append(results, CheckReadableDirectory(fmt.Sprintf("Camera %s", cam.ID), cam.Dir))
	}
	for _, section := range []struct {
		label   string
		widgets []config.Widget
	}{{"Signal", cfg.Signals}, {"Interval", cfg.Intervals}} {
		for _, w := range section.widgets {
			for i, s := range w.Streams {
				name := fmt.Sprintf("%s %s/%d", section.label, w.ID, i)
				results = append(results, CheckReadableDirectory(name, s.Dir))
			}
		}
	}

	if cfg.Sync.PersistArtifacts {
		results = append(results, CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir))
	}
	if cfg.Paths.CacheDir != "" {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	return results
}

// Failed returns the failing results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// CheckSystemDeps evaluates the external binaries required by the config.
// ffprobe is only needed when a camera modality is configured.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for video frame rate and duration probing",
			Optional:    !cfg.HasVideo(),
		},
	}
	return deps.CheckBinaries(requirements)
}
