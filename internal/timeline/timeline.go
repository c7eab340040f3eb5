package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"longrec/internal/logging"
	"longrec/internal/services"
	"longrec/internal/timestamp"
)

// Kind identifies the modality family of a timeline.
type Kind string

const (
	KindVideo    Kind = "video"
	KindSignal   Kind = "signal"
	KindInterval Kind = "interval"
)

// SourceFile is one physical data file of a modality. An empty Path marks a
// hole inserted by Fill.
type SourceFile struct {
	Path  string
	Begin time.Time
	// Duration in seconds. Only meaningful when HasDuration is true.
	Duration    float64
	HasDuration bool
}

// IsHole reports whether the entry stands for missing coverage.
func (f SourceFile) IsHole() bool { return f.Path == "" }

// End returns Begin plus Duration.
func (f SourceFile) End() time.Time {
	return f.Begin.Add(time.Duration(f.Duration * float64(time.Second)))
}

// Timeline is the chronologically ordered file list of one modality.
type Timeline struct {
	ID    string
	Kind  Kind
	Files []SourceFile
}

// Len returns the number of entries including holes.
func (t Timeline) Len() int { return len(t.Files) }

// RealCount returns the number of non-hole entries.
func (t Timeline) RealCount() int {
	n := 0
	for _, f := range t.Files {
		if !f.IsHole() {
			n++
		}
	}
	return n
}

// WithDurations returns a copy of the timeline whose entries carry the given
// durations, aligned by index.
func (t Timeline) WithDurations(durations []float64) (Timeline, error) {
	if len(durations) != len(t.Files) {
		return Timeline{}, fmt.Errorf("timeline %s: %d durations for %d files", t.ID, len(durations), len(t.Files))
	}
	out := Timeline{ID: t.ID, Kind: t.Kind, Files: make([]SourceFile, len(t.Files))}
	for i, f := range t.Files {
		f.Duration = durations[i]
		f.HasDuration = true
		out.Files[i] = f
	}
	return out, nil
}

// Source declares where the files of one modality live and how their begin
// time is encoded.
type Source struct {
	ID        string
	Kind      Kind
	Dir       string
	Pattern   string
	Rule      timestamp.Rule
	Mandatory bool
}

// Build scans the source directory and returns its files sorted by begin time.
// Files whose timestamp cannot be parsed are excluded with a warning, except in
// a mandatory modality where the failure is returned.
func Build(ctx context.Context, src Source, logger *slog.Logger) (Timeline, error) {
	logger = logging.WithContext(services.WithStream(ctx, src.ID), logging.NewComponentLogger(logger, "timeline"))
	tl := Timeline{ID: src.ID, Kind: src.Kind}

	if src.Mandatory {
		if info, err := os.Stat(src.Dir); err != nil || !info.IsDir() {
			return tl, services.Wrap(services.ErrConfiguration, "timeline", "scan", fmt.Sprintf("directory %q of %s is not accessible", src.Dir, src.ID), err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(src.Dir, src.Pattern))
	if err != nil {
		return tl, services.Wrap(services.ErrConfiguration, "timeline", "scan", fmt.Sprintf("invalid pattern %q", src.Pattern), err)
	}

	files := make([]SourceFile, 0, len(matches))
	for _, path := range matches {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		begin, err := timestamp.Resolve(path, src.Rule)
		if err != nil {
			if src.Mandatory {
				return tl, services.Wrap(services.ErrFormat, "timeline", "resolve timestamp", "reference modality file", err)
			}
			attrs := append(logging.DecisionAttrs("file_exclusion", "excluded", "timestamp not resolvable"),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the timestamp delimiter, position and format"),
				logging.String(logging.FieldImpact, "file is not displayed"),
			)
			logging.WarnWithContext(logger, "file excluded from timeline", "timestamp_parse_failed", attrs...)
			continue
		}
		files = append(files, SourceFile{Path: path, Begin: begin})
	}

	if len(files) == 0 {
		if src.Mandatory {
			return tl, services.Wrap(services.ErrConfiguration, "timeline", "scan", fmt.Sprintf("no files found for %s in %s matching %q", src.ID, src.Dir, src.Pattern), nil)
		}
		logger.Info("no files found", logging.String("dir", src.Dir), logging.String("pattern", src.Pattern))
		return tl, nil
	}

	sortFiles(files)
	tl.Files = files
	logger.Debug("timeline built",
		logging.Int("files", len(files)),
		logging.Time("first_begin", files[0].Begin),
		logging.Time("last_begin", files[len(files)-1].Begin),
	)
	return tl, nil
}

// sortFiles orders by begin time, then path so equal timestamps are deterministic.
func sortFiles(files []SourceFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Begin.Equal(files[j].Begin) {
			return files[i].Begin.Before(files[j].Begin)
		}
		return files[i].Path < files[j].Path
	})
}

// Overlap names two consecutive files of the same modality whose coverage
// intersects.
type Overlap struct {
	Earlier SourceFile
	Later   SourceFile
	Seconds float64
}

// DetectOverlaps lists consecutive real files whose coverage intersects. Files
// without a resolved duration are ignored.
func DetectOverlaps(t Timeline) []Overlap {
	var out []Overlap
	var prev *SourceFile
	for i := range t.Files {
		f := t.Files[i]
		if f.IsHole() || !f.HasDuration {
			continue
		}
		if prev != nil {
			if excess := prev.End().Sub(f.Begin).Seconds(); excess > 0 {
				out = append(out, Overlap{Earlier: *prev, Later: f, Seconds: excess})
			}
		}
		prev = &t.Files[i]
	}
	return out
}
