package config

import (
	"fmt"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeSync()
	if err := c.normalizeCameras(); err != nil {
		return err
	}
	if err := normalizeWidgets("signals", c.Signals); err != nil {
		return err
	}
	if err := normalizeWidgets("intervals", c.Intervals); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ArtifactDir, err = expandPath(strings.TrimSpace(c.Paths.ArtifactDir)); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	// An empty cache_dir disables the duration cache.
	if c.Paths.CacheDir, err = expandPath(strings.TrimSpace(c.Paths.CacheDir)); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.ComponentOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			key := strings.ToLower(strings.TrimSpace(component))
			if key == "" {
				continue
			}
			overrides[key] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentOverrides = overrides
	}
}

func (c *Config) normalizeSync() {
	c.Sync.TimeZone = strings.TrimSpace(c.Sync.TimeZone)
	if c.Sync.TimeZone == "" {
		c.Sync.TimeZone = defaultTimeZone
	}
	if c.Sync.DurationWorkers <= 0 {
		c.Sync.DurationWorkers = defaultDurationWorkers
	}
	if c.Sync.ParallelThreshold <= 0 {
		c.Sync.ParallelThreshold = defaultParallelThreshold
	}
	if c.Sync.WatchDebounceMillis <= 0 {
		c.Sync.WatchDebounceMillis = defaultWatchDebounceMillis
	}
	c.Sync.FFprobeBinary = strings.TrimSpace(c.Sync.FFprobeBinary)
}

func (c *Config) normalizeCameras() error {
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		cam.ID = strings.TrimSpace(cam.ID)
		cam.Pattern = strings.TrimSpace(cam.Pattern)
		cam.Timestamp.Format = strings.TrimSpace(cam.Timestamp.Format)
		var err error
		if cam.Dir, err = expandPath(strings.TrimSpace(cam.Dir)); err != nil {
			return fmt.Errorf("cameras[%d].dir: %w", i, err)
		}
	}
	return nil
}

func normalizeWidgets(section string, widgets []Widget) error {
	for i := range widgets {
		widgets[i].ID = strings.TrimSpace(widgets[i].ID)
		for j := range widgets[i].Streams {
			stream := &widgets[i].Streams[j]
			stream.Key = strings.TrimSpace(stream.Key)
			stream.Pattern = strings.TrimSpace(stream.Pattern)
			stream.FrequencyAttribute = strings.TrimSpace(stream.FrequencyAttribute)
			stream.Timestamp.Format = strings.TrimSpace(stream.Timestamp.Format)
			var err error
			if stream.Dir, err = expandPath(strings.TrimSpace(stream.Dir)); err != nil {
				return fmt.Errorf("%s[%d].streams[%d].dir: %w", section, i, j, err)
			}
		}
	}
	return nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Sync.TimeZone)
}

// GapTolerance returns the gap tolerance as a duration.
func (c *Config) GapTolerance() time.Duration {
	return time.Duration(c.Sync.GapToleranceSeconds * float64(time.Second))
}
