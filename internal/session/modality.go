package session

import (
	"fmt"
	"time"

	"longrec/internal/config"
	"longrec/internal/services"
	"longrec/internal/timeline"
	"longrec/internal/timestamp"
)

// Modality is one configured stream: a camera, or one sub-stream of a signal
// or interval widget.
type Modality struct {
	ID       string
	WidgetID string
	Kind     timeline.Kind
	Source   timeline.Source
	Key      string
	// Frequency as configured: 0 irregular, -1 same as the reference.
	Frequency          float64
	FrequencyAttribute string
}

// Modalities lists the configured streams in declaration order: cameras,
// then signals, then intervals. The reference candidate (first camera, else
// first signal stream) is marked mandatory.
func Modalities(cfg *config.Config) ([]Modality, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "time zone", cfg.Sync.TimeZone, err)
	}

	var out []Modality
	for _, cam := range cfg.Cameras {
		out = append(out, Modality{
			ID:       cam.ID,
			WidgetID: cam.ID,
			Kind:     timeline.KindVideo,
			Source:   source(cam.ID, timeline.KindVideo, cam.Dir, cam.Pattern, cam.Timestamp, loc),
		})
	}
	addWidgets := func(widgets []config.Widget, kind timeline.Kind) {
		for _, w := range widgets {
			for i, s := range w.Streams {
				id := fmt.Sprintf("%s/%d", w.ID, i)
				out = append(out, Modality{
					ID:                 id,
					WidgetID:           w.ID,
					Kind:               kind,
					Source:             source(id, kind, s.Dir, s.Pattern, s.Timestamp, loc),
					Key:                s.Key,
					Frequency:          s.Frequency,
					FrequencyAttribute: s.FrequencyAttribute,
				})
			}
		}
	}
	addWidgets(cfg.Signals, timeline.KindSignal)
	addWidgets(cfg.Intervals, timeline.KindInterval)

	if len(out) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "session", "modalities", "no camera, signal or interval declared", nil)
	}
	for i := range out {
		if out[i].Kind == timeline.KindVideo || (len(cfg.Cameras) == 0 && out[i].Kind == timeline.KindSignal) {
			out[i].Source.Mandatory = true
			break
		}
	}
	return out, nil
}

func source(id string, kind timeline.Kind, dir, pattern string, rule config.TimestampRule, loc *time.Location) timeline.Source {
	return timeline.Source{
		ID:      id,
		Kind:    kind,
		Dir:     dir,
		Pattern: pattern,
		Rule: timestamp.Rule{
			Delimiter: rule.Delimiter,
			Position:  rule.PositionValue(),
			Format:    rule.Format,
			Location:  loc,
		},
	}
}
