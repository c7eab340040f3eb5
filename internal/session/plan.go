package session

import (
	"context"
	"log/slog"

	"longrec/internal/config"
	"longrec/internal/durationcache"
	"longrec/internal/logging"
	"longrec/internal/navigator"
	"longrec/internal/reference"
	"longrec/internal/services"
	"longrec/internal/timeline"
)

// Plan is the static synchronization layout of a recording: the scanned
// timelines, their alignment, the reference segmentation and the measured
// target timelines.
type Plan struct {
	Modalities []Modality
	// Timelines are the scanned timelines before gap filling.
	Timelines []timeline.Timeline
	// Filled are the reference candidates after gap filling: the cameras, or
	// the signal reference alone.
	Filled    []timeline.Timeline
	Alignment timeline.Alignment
	Reference reference.Reference
	// Targets are the streams synchronized against the reference, with
	// durations resolved. A signal reference is its own target.
	Targets     []timeline.Timeline
	Frequencies map[string]float64
	Overlaps    []timeline.Overlap
	Navigator   *navigator.Navigator

	modalities map[string]Modality
}

// Modality returns the configured modality with the given stream ID.
func (p *Plan) Modality(id string) (Modality, bool) {
	m, ok := p.modalities[id]
	return m, ok
}

// Target returns the target timeline with the given stream ID.
func (p *Plan) Target(id string) (timeline.Timeline, bool) {
	for _, tl := range p.Targets {
		if tl.ID == id {
			return tl, true
		}
	}
	return timeline.Timeline{}, false
}

// BuildPlan scans every configured modality and computes the reference
// segmentation. reader and cache may be shared with a Session; cache may be
// nil.
func BuildPlan(ctx context.Context, cfg *config.Config, reader SampleSource, cache *durationcache.Store, logger *slog.Logger) (*Plan, error) {
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "session"))

	modalities, err := Modalities(cfg)
	if err != nil {
		return nil, err
	}

	timelines := make([]timeline.Timeline, 0, len(modalities))
	for _, m := range modalities {
		tl, err := timeline.Build(ctx, m.Source, logger)
		if err != nil {
			return nil, err
		}
		timelines = append(timelines, tl)
	}

	candidates := reference.Candidates(timelines)
	if len(candidates) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "session", "reference", "no camera or signal modality declared", nil)
	}
	filled, alignment := candidates, timeline.Alignment(nil)
	if candidates[0].Kind == timeline.KindVideo {
		filled, alignment = timeline.Fill(candidates, cfg.GapTolerance())
	}
	for id, holes := range alignment.HoleCount() {
		if holes > 0 {
			attrs := append(logging.DecisionAttrs("gap_fill", "hole_inserted", "no camera file within the gap tolerance"),
				logging.String(logging.FieldStream, id),
				logging.Int("holes", holes),
			)
			logger.Debug("holes inserted", logging.Args(attrs...)...)
		}
	}

	refIdx := reference.Pick(filled)
	prober := newProber(cfg.FFprobeBinary(), reader, cache, modalities, timelines, filled[refIdx].ID)
	opts := reference.Options{
		Prober:            prober,
		Workers:           cfg.Sync.DurationWorkers,
		ParallelThreshold: cfg.Sync.ParallelThreshold,
		Logger:            logger,
	}
	ref, err := reference.Select(ctx, filled, opts)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Modalities:  modalities,
		Timelines:   timelines,
		Filled:      filled,
		Alignment:   alignment,
		Reference:   ref,
		Frequencies: map[string]float64{ref.ModalityID: ref.Fps},
		modalities:  make(map[string]Modality, len(modalities)),
	}
	for _, m := range modalities {
		plan.modalities[m.ID] = m
	}

	opts.SkipFailures = true
	for _, tl := range timelines {
		var target timeline.Timeline
		switch {
		case tl.ID == ref.ModalityID && tl.Kind == timeline.KindVideo:
			continue
		case tl.ID == ref.ModalityID:
			target = timeline.Timeline{ID: ref.Timeline.ID, Kind: ref.Timeline.Kind}
			for _, f := range ref.Timeline.Files {
				if !f.IsHole() {
					target.Files = append(target.Files, f)
				}
			}
		default:
			target, err = reference.ResolveDurations(services.WithStream(ctx, tl.ID), tl, opts)
			if err != nil {
				return nil, err
			}
		}
		if tl.Kind != timeline.KindVideo {
			freq, err := prober.frequency(ctx, tl.ID, 0)
			if err != nil {
				return nil, err
			}
			plan.Frequencies[tl.ID] = freq
		}
		for _, ov := range timeline.DetectOverlaps(target) {
			logging.WarnWithContext(logger, "overlapping files in one modality", "file_overlap",
				logging.String(logging.FieldStream, target.ID),
				logging.String("earlier", ov.Earlier.Path),
				logging.String("later", ov.Later.Path),
				logging.Float64("overlap_seconds", ov.Seconds),
				logging.String(logging.FieldErrorHint, "check the file timestamps of this modality"),
				logging.String(logging.FieldImpact, "samples of the later file follow the earlier file"),
			)
			plan.Overlaps = append(plan.Overlaps, ov)
		}
		plan.Targets = append(plan.Targets, target)
	}

	plan.Navigator, err = navigator.New(ref.FrameCounts(), logger)
	if err != nil {
		return nil, err
	}
	logger.Info("synchronization plan ready",
		logging.String("reference", ref.ModalityID),
		logging.Int("segments", len(ref.Segments)),
		logging.Int("streams", len(plan.Targets)),
		logging.Int("overlaps", len(plan.Overlaps)),
	)
	return plan, nil
}
