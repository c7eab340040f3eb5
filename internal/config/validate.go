package config

import (
	"errors"
	"fmt"
	"time"

	"longrec/internal/timestamp"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateModalities(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.GapToleranceSeconds < 0 {
		return errors.New("sync.gap_tolerance_seconds must be >= 0")
	}
	if _, err := time.LoadLocation(c.Sync.TimeZone); err != nil {
		return fmt.Errorf("sync.time_zone: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	for component, level := range c.Logging.ComponentOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.component_overrides.%s: unsupported value %q", component, level)
		}
	}
	return nil
}

// validateModalities checks the camera and widget declarations. An empty
// declaration set is accepted so that config-only commands work without a
// recording; session start rejects it instead.
func (c *Config) validateModalities() error {
	seen := make(map[string]struct{})
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("cameras[%d].id must be set", i)
		}
		if _, dup := seen[cam.ID]; dup {
			return fmt.Errorf("cameras[%d].id %q is declared twice", i, cam.ID)
		}
		seen[cam.ID] = struct{}{}
		if cam.Dir == "" || cam.Pattern == "" {
			return fmt.Errorf("camera %q: dir and pattern must be set", cam.ID)
		}
		if err := validateRule(fmt.Sprintf("camera %q", cam.ID), cam.Timestamp); err != nil {
			return err
		}
	}
	if err := validateWidgets("signals", c.Signals, seen); err != nil {
		return err
	}
	intervalSeen := make(map[string]struct{})
	if err := validateWidgets("intervals", c.Intervals, intervalSeen); err != nil {
		return err
	}
	return nil
}

func validateWidgets(section string, widgets []Widget, seen map[string]struct{}) error {
	for i, widget := range widgets {
		if widget.ID == "" {
			return fmt.Errorf("%s[%d].id must be set", section, i)
		}
		if _, dup := seen[widget.ID]; dup {
			return fmt.Errorf("%s[%d].id %q is declared twice", section, i, widget.ID)
		}
		seen[widget.ID] = struct{}{}
		if len(widget.Streams) == 0 {
			return fmt.Errorf("%s %q: at least one stream is required", section, widget.ID)
		}
		for j, stream := range widget.Streams {
			label := fmt.Sprintf("%s %q stream %d", section, widget.ID, j)
			if stream.Dir == "" || stream.Pattern == "" {
				return fmt.Errorf("%s: dir and pattern must be set", label)
			}
			if stream.Frequency < 0 && stream.Frequency != -1 {
				return fmt.Errorf("%s: frequency must be >= 0 or -1 (same as reference)", label)
			}
			if err := validateRule(label, stream.Timestamp); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRule(label string, rule TimestampRule) error {
	if rule.Position != nil && *rule.Position < 0 {
		return fmt.Errorf("%s: timestamp.position must be >= 0", label)
	}
	if err := timestamp.ValidateFormat(rule.Format); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	return nil
}
