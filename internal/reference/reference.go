package reference

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"longrec/internal/logging"
	"longrec/internal/services"
	"longrec/internal/timeline"
)

// Prober measures the files of a modality.
type Prober interface {
	// Duration returns the length in seconds of one real file of the
	// timeline identified by timelineID.
	Duration(ctx context.Context, timelineID string, file timeline.SourceFile) (float64, error)
	// Frequency returns the sampling frequency (frame rate for video) of a
	// timeline.
	Frequency(ctx context.Context, tl timeline.Timeline) (float64, error)
}

// Segment is one file of the reference timeline, the unit of navigation.
type Segment struct {
	Index      int
	Begin      time.Time
	Duration   float64
	FrameCount int
	// Path is empty when the segment is a hole of the reference modality.
	Path string
}

// End returns Begin plus Duration.
func (s Segment) End() time.Time {
	return s.Begin.Add(time.Duration(s.Duration * float64(time.Second)))
}

// Reference is the authoritative segmentation of the recording.
type Reference struct {
	ModalityID string
	Fps        float64
	Segments   []Segment
	// Timeline is the filled reference timeline with durations resolved.
	Timeline timeline.Timeline
}

// FrameCounts returns the frame count of every segment in order.
func (r Reference) FrameCounts() []int {
	counts := make([]int, len(r.Segments))
	for i, seg := range r.Segments {
		counts[i] = seg.FrameCount
	}
	return counts
}

// SegmentAt returns the index of the segment whose begin equals t, or -1.
func (r Reference) SegmentAt(t time.Time) int {
	for _, seg := range r.Segments {
		if seg.Begin.Equal(t) {
			return seg.Index
		}
	}
	return -1
}

// Options tunes Select.
type Options struct {
	Prober Prober
	// Workers bounds the duration worker pool.
	Workers int
	// ParallelThreshold is the minimum file count for which the pool is used.
	ParallelThreshold int
	// SkipFailures gives unmeasurable files a zero duration instead of
	// failing. Configuration errors still fail.
	SkipFailures bool
	Logger       *slog.Logger
}

// Pick returns the index of the reference timeline: the first video timeline,
// else the first signal timeline. It returns -1 when neither exists.
func Pick(timelines []timeline.Timeline) int {
	for i, tl := range timelines {
		if tl.Kind == timeline.KindVideo {
			return i
		}
	}
	for i, tl := range timelines {
		if tl.Kind == timeline.KindSignal {
			return i
		}
	}
	return -1
}

// Candidates returns the timelines that take part in reference gap filling:
// every camera, or only the first signal stream when no camera is declared.
// Other streams are aligned per segment by the descriptor builder and never
// add rows to the reference.
func Candidates(timelines []timeline.Timeline) []timeline.Timeline {
	var cameras []timeline.Timeline
	for _, tl := range timelines {
		if tl.Kind == timeline.KindVideo {
			cameras = append(cameras, tl)
		}
	}
	if len(cameras) > 0 {
		return cameras
	}
	if idx := Pick(timelines); idx >= 0 {
		return []timeline.Timeline{timelines[idx]}
	}
	return nil
}

// Select designates the reference modality among the filled candidate
// timelines (all of the same length) and computes every segment's duration and
// frame count. Hole entries borrow the duration of the first real entry on the
// same row.
func Select(ctx context.Context, timelines []timeline.Timeline, opts Options) (Reference, error) {
	logger := logging.NewComponentLogger(opts.Logger, "reference")
	if opts.Prober == nil {
		return Reference{}, services.Wrap(services.ErrConfiguration, "reference", "select", "no prober configured", nil)
	}
	idx := Pick(timelines)
	if idx < 0 {
		return Reference{}, services.Wrap(services.ErrConfiguration, "reference", "select", "no camera or signal modality declared", nil)
	}
	ref := timelines[idx]
	if ref.RealCount() == 0 {
		return Reference{}, services.Wrap(services.ErrConfiguration, "reference", "select", fmt.Sprintf("reference modality %s has no files", ref.ID), nil)
	}

	fps, err := opts.Prober.Frequency(ctx, ref)
	if err != nil {
		return Reference{}, services.Wrap(services.ErrConfiguration, "reference", "frequency", ref.ID, err)
	}
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return Reference{}, services.Wrap(services.ErrConfiguration, "reference", "frequency", fmt.Sprintf("reference frequency of %s is %v", ref.ID, fps), nil)
	}

	sources := make([]durationJob, len(ref.Files))
	for row, file := range ref.Files {
		sources[row] = durationJob{timelineID: ref.ID, file: file}
		if !file.IsHole() {
			continue
		}
		sources[row] = durationJob{}
		for _, other := range timelines {
			if row < len(other.Files) && !other.Files[row].IsHole() {
				sources[row] = durationJob{timelineID: other.ID, file: other.Files[row]}
				break
			}
		}
	}

	durations, err := computeDurations(ctx, sources, opts)
	if err != nil {
		return Reference{}, err
	}
	filled, err := ref.WithDurations(durations)
	if err != nil {
		return Reference{}, err
	}

	segments := make([]Segment, len(filled.Files))
	for i, file := range filled.Files {
		segments[i] = Segment{
			Index:      i,
			Begin:      file.Begin,
			Duration:   file.Duration,
			FrameCount: int(math.Round(file.Duration * fps)),
			Path:       file.Path,
		}
	}

	logger.Info("reference selected",
		logging.String("modality", ref.ID),
		logging.Float64("fps", fps),
		logging.Int("segments", len(segments)),
	)
	return Reference{ModalityID: ref.ID, Fps: fps, Segments: segments, Timeline: filled}, nil
}

// ResolveDurations returns tl with every real entry's duration measured.
// Holes get a zero duration.
func ResolveDurations(ctx context.Context, tl timeline.Timeline, opts Options) (timeline.Timeline, error) {
	jobs := make([]durationJob, len(tl.Files))
	for i, file := range tl.Files {
		if !file.IsHole() {
			jobs[i] = durationJob{timelineID: tl.ID, file: file}
		}
	}
	durations, err := computeDurations(ctx, jobs, opts)
	if err != nil {
		return timeline.Timeline{}, err
	}
	return tl.WithDurations(durations)
}
