package session

import (
	"context"
	"fmt"
	"math"
	"sync"

	"longrec/internal/durationcache"
	"longrec/internal/media/ffprobe"
	"longrec/internal/samples"
	"longrec/internal/services"
	"longrec/internal/timeline"
)

// SampleSource reads samples and attributes from recording files.
type SampleSource interface {
	samples.Reader
	samples.AttributeReader
}

// videoCacheKey distinguishes ffprobe durations from signal durations in the
// duration cache.
const videoCacheKey = "ffprobe"

// prober measures files of the configured modalities. Frequencies are
// memoized per modality; durations go through the duration cache.
type prober struct {
	ffprobe     string
	reader      SampleSource
	cache       *durationcache.Store
	modalities  map[string]Modality
	firstFiles  map[string]string
	referenceID string

	mu          sync.Mutex
	frequencies map[string]float64
}

func newProber(binary string, reader SampleSource, cache *durationcache.Store, modalities []Modality, timelines []timeline.Timeline, referenceID string) *prober {
	p := &prober{
		ffprobe:     binary,
		reader:      reader,
		cache:       cache,
		modalities:  make(map[string]Modality, len(modalities)),
		firstFiles:  make(map[string]string, len(timelines)),
		referenceID: referenceID,
		frequencies: make(map[string]float64),
	}
	for _, m := range modalities {
		p.modalities[m.ID] = m
	}
	for _, tl := range timelines {
		for _, f := range tl.Files {
			if !f.IsHole() {
				p.firstFiles[tl.ID] = f.Path
				break
			}
		}
	}
	return p
}

// Frequency implements reference.Prober.
func (p *prober) Frequency(ctx context.Context, tl timeline.Timeline) (float64, error) {
	return p.frequency(ctx, tl.ID, 0)
}

func (p *prober) frequency(ctx context.Context, id string, depth int) (float64, error) {
	p.mu.Lock()
	if f, ok := p.frequencies[id]; ok {
		p.mu.Unlock()
		return f, nil
	}
	p.mu.Unlock()

	m, ok := p.modalities[id]
	if !ok {
		return 0, services.Wrap(services.ErrNotFound, "session", "frequency", fmt.Sprintf("unknown stream %q", id), nil)
	}

	var (
		freq float64
		err  error
	)
	switch {
	case m.Kind == timeline.KindVideo:
		freq, err = p.videoFrameRate(ctx, id)
	case m.FrequencyAttribute != "":
		first, ok := p.firstFiles[id]
		if !ok {
			return 0, services.Wrap(services.ErrNotFound, "session", "frequency", fmt.Sprintf("stream %s has no file to read %q from", id, m.FrequencyAttribute), nil)
		}
		freq, err = p.reader.ReadAttribute(first, m.FrequencyAttribute)
	case m.Frequency == -1:
		if id == p.referenceID || depth > 0 {
			return 0, services.Wrap(services.ErrConfiguration, "session", "frequency", fmt.Sprintf("stream %s is the reference and cannot take the reference frequency", id), nil)
		}
		freq, err = p.frequency(ctx, p.referenceID, depth+1)
	default:
		freq = m.Frequency
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(freq) || freq < 0 {
		return 0, services.Wrap(services.ErrConfiguration, "session", "frequency", fmt.Sprintf("stream %s has invalid frequency %v", id, freq), nil)
	}

	p.mu.Lock()
	p.frequencies[id] = freq
	p.mu.Unlock()
	return freq, nil
}

func (p *prober) videoFrameRate(ctx context.Context, id string) (float64, error) {
	first, ok := p.firstFiles[id]
	if !ok {
		return 0, services.Wrap(services.ErrNotFound, "session", "frame rate", fmt.Sprintf("camera %s has no file", id), nil)
	}
	result, err := ffprobe.Inspect(ctx, p.ffprobe, first)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "session", "frame rate", first, err)
	}
	return result.VideoFrameRate(), nil
}

// Duration implements reference.Prober.
func (p *prober) Duration(ctx context.Context, timelineID string, file timeline.SourceFile) (float64, error) {
	m, ok := p.modalities[timelineID]
	if !ok {
		return 0, services.Wrap(services.ErrNotFound, "session", "duration", fmt.Sprintf("unknown stream %q", timelineID), nil)
	}
	if m.Kind == timeline.KindVideo {
		return p.cache.Lookup(ctx, file.Path, 0, videoCacheKey, func() (float64, error) {
			result, err := ffprobe.Inspect(ctx, p.ffprobe, file.Path)
			if err != nil {
				return 0, services.Wrap(services.ErrExternalTool, "session", "video duration", file.Path, err)
			}
			return result.VideoDurationSeconds(), nil
		})
	}

	freq, err := p.frequency(ctx, timelineID, 0)
	if err != nil {
		return 0, err
	}
	return p.cache.Lookup(ctx, file.Path, freq, m.Key, func() (float64, error) {
		if m.Kind == timeline.KindInterval {
			return samples.IntervalFileDuration(p.reader, file.Path, freq, m.Key)
		}
		return samples.FileDuration(p.reader, file.Path, freq, m.Key)
	})
}
