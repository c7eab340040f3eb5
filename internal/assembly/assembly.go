package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"longrec/internal/logging"
	"longrec/internal/samples"
	"longrec/internal/services"
	"longrec/internal/syncplan"
)

// Sample is one irregular measurement, timestamped in milliseconds relative to
// the segment start.
type Sample struct {
	TimestampMs float64 `json:"t_ms"`
	Value       float64 `json:"value"`
}

// Stream is the assembled data of one stream for one reference segment.
// Regular streams fill Regular and address it by frame = ms * Frequency / 1000.
// Irregular streams (Frequency 0) fill Irregular.
type Stream struct {
	StreamID     string
	SegmentIndex int
	Frequency    float64
	Regular      []float64
	Irregular    []Sample
	Files        []string
}

// IsRegular reports whether the stream has a sampling frequency.
func (s Stream) IsRegular() bool { return s.Frequency > 0 }

// Len returns the number of samples.
func (s Stream) Len() int {
	if s.IsRegular() {
		return len(s.Regular)
	}
	return len(s.Irregular)
}

// Range returns the samples whose segment-relative time lies in
// [startMs, endMs). Regular samples are stamped at index * 1000 / Frequency.
func (s Stream) Range(startMs, endMs float64) []Sample {
	if endMs <= startMs {
		return nil
	}
	var out []Sample
	if s.IsRegular() {
		first := int(math.Ceil(startMs * s.Frequency / 1000))
		if first < 0 {
			first = 0
		}
		for i := first; i < len(s.Regular); i++ {
			ts := float64(i) * 1000 / s.Frequency
			if ts >= endMs {
				break
			}
			out = append(out, Sample{TimestampMs: ts, Value: s.Regular[i]})
		}
		return out
	}
	for _, smp := range s.Irregular {
		if smp.TimestampMs >= startMs && smp.TimestampMs < endMs {
			out = append(out, smp)
		}
	}
	return out
}

// OrderingError reports decreasing timestamps in a concatenated irregular
// stream.
type OrderingError struct {
	StreamID string
	Path     string
	Previous float64
	Next     float64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("stream %s: timestamp %.3f ms in %s precedes %.3f ms", e.StreamID, e.Next, e.Path, e.Previous)
}

// Unwrap ties the error to services.ErrOrdering.
func (e *OrderingError) Unwrap() error { return services.ErrOrdering }

// Options configures Assemble.
type Options struct {
	// Frequency in Hz; 0 for irregular streams.
	Frequency float64
	Reader    samples.Reader
	Key       string
	// Interval streams are read as 0/1 series at Frequency.
	Interval bool
	Logger   *slog.Logger
}

// Assemble concatenates the files listed by desc into one stream covering the
// segment window. Regular streams always hold exactly
// round(Frequency * SegmentDuration) samples.
func Assemble(ctx context.Context, desc syncplan.Descriptor, opts Options) (Stream, error) {
	if opts.Reader == nil {
		return Stream{}, services.Wrap(services.ErrConfiguration, "assembly", "assemble", "sample reader required", nil)
	}
	if opts.Frequency < 0 || math.IsNaN(opts.Frequency) || (opts.Interval && opts.Frequency == 0) {
		return Stream{}, services.Wrap(services.ErrConfiguration, "assembly", "assemble", fmt.Sprintf("stream %s: invalid frequency %v", desc.StreamID, opts.Frequency), nil)
	}
	logger := logging.NewComponentLogger(opts.Logger, "assembly").With(
		logging.String(logging.FieldStream, desc.StreamID),
		logging.Int(logging.FieldSegment, desc.SegmentIndex),
	)

	out := Stream{StreamID: desc.StreamID, SegmentIndex: desc.SegmentIndex, Frequency: opts.Frequency}
	var err error
	if out.IsRegular() {
		err = assembleRegular(ctx, desc, opts, &out)
	} else {
		err = assembleIrregular(ctx, desc, opts, &out)
	}
	if err != nil {
		return Stream{}, err
	}
	logger.Debug("stream assembled",
		logging.Int("samples", out.Len()),
		logging.Int("files", len(out.Files)),
		logging.Float64("lead_gap_seconds", desc.LeadGap()),
	)
	return out, nil
}

func assembleRegular(ctx context.Context, desc syncplan.Descriptor, opts Options, out *Stream) error {
	budget := int(math.Round(opts.Frequency * desc.SegmentDuration))
	values := make([]float64, 0, budget)

	for _, entry := range desc.Entries {
		if len(values) >= budget {
			break
		}
		if entry.Gap {
			n := int(math.Round(entry.GapSeconds * opts.Frequency))
			values = append(values, make([]float64, min(n, budget-len(values)))...)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := load(entry.File.Path, opts)
		if err != nil {
			return err
		}
		if data.Irregular() && !opts.Interval {
			return services.Wrap(services.ErrFormat, "assembly", "assemble", fmt.Sprintf("stream %s: %s carries timestamps but the stream is sampled at %v Hz", desc.StreamID, entry.File.Path, opts.Frequency), nil)
		}
		chunk := data.Values
		if entry.StartOffsetSeconds > 0 {
			skip := int(math.Round(entry.StartOffsetSeconds * opts.Frequency))
			chunk = chunk[min(skip, len(chunk)):]
		}
		values = append(values, chunk[:min(len(chunk), budget-len(values))]...)
		out.Files = append(out.Files, entry.File.Path)
	}
	if short := budget - len(values); short > 0 {
		values = append(values, make([]float64, short)...)
	}
	out.Regular = values
	return nil
}

func assembleIrregular(ctx context.Context, desc syncplan.Descriptor, opts Options, out *Stream) error {
	limit := desc.SegmentDuration * 1000
	var (
		result []Sample
		last   = math.Inf(-1)
		// Segment-relative start of the next file when its begin time is not
		// known (descriptors read back from an artifact without headers).
		cursor float64
		first  = true
	)
	for _, entry := range desc.Entries {
		if entry.Gap {
			cursor = entry.GapSeconds * 1000
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := load(entry.File.Path, opts)
		if err != nil {
			return err
		}
		if !data.Irregular() {
			return services.Wrap(services.ErrFormat, "assembly", "assemble", fmt.Sprintf("stream %s: %s has no timestamp column", desc.StreamID, entry.File.Path), nil)
		}

		shift := cursor
		if !entry.File.Begin.IsZero() && !desc.SegmentBegin.IsZero() {
			shift = entry.File.Begin.Sub(desc.SegmentBegin).Seconds() * 1000
		} else if first {
			shift = cursor - entry.StartOffsetSeconds*1000
		}
		skipBefore := math.Inf(-1)
		if first && entry.StartOffsetSeconds > 0 {
			skipBefore = entry.StartOffsetSeconds * 1000
		}

		for k, ts := range data.Timestamps {
			if ts < skipBefore {
				continue
			}
			rel := ts + shift
			if rel > limit {
				continue
			}
			if rel < last {
				return &OrderingError{StreamID: desc.StreamID, Path: entry.File.Path, Previous: last, Next: rel}
			}
			last = rel
			result = append(result, Sample{TimestampMs: rel, Value: data.Values[k]})
		}
		if n := len(data.Timestamps); n > 0 {
			cursor = data.Timestamps[n-1] + shift
		}
		first = false
		out.Files = append(out.Files, entry.File.Path)
	}
	out.Irregular = result
	return nil
}

func load(path string, opts Options) (samples.Data, error) {
	if opts.Interval {
		series, err := samples.ReadIntervalSeries(opts.Reader, path, opts.Key)
		if err != nil {
			return samples.Data{}, err
		}
		return samples.Data{Values: series}, nil
	}
	return opts.Reader.ReadSamples(path, opts.Key)
}
