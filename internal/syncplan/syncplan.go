package syncplan

import (
	"time"

	"longrec/internal/reference"
	"longrec/internal/timeline"
)

// Entry is one line of a descriptor: either a lead gap or a file reference.
type Entry struct {
	Gap        bool
	GapSeconds float64
	File       timeline.SourceFile
	// StartOffsetSeconds is the amount to skip at the beginning of File. Only
	// the first data-bearing entry carries a non-zero offset.
	StartOffsetSeconds float64
}

// Descriptor lists, for one reference segment and one stream, the files that
// cover the segment window in chronological order.
type Descriptor struct {
	StreamID        string
	SegmentIndex    int
	SegmentBegin    time.Time
	SegmentDuration float64
	Entries         []Entry
}

// Files returns the paths of the file entries.
func (d Descriptor) Files() []string {
	var out []string
	for _, e := range d.Entries {
		if !e.Gap {
			out = append(out, e.File.Path)
		}
	}
	return out
}

// Empty reports whether the stream has no data in the segment.
func (d Descriptor) Empty() bool {
	for _, e := range d.Entries {
		if !e.Gap {
			return false
		}
	}
	return true
}

// LeadGap returns the leading gap in seconds (0 when the first entry is a file).
func (d Descriptor) LeadGap() float64 {
	if len(d.Entries) > 0 && d.Entries[0].Gap {
		return d.Entries[0].GapSeconds
	}
	return 0
}

// Build computes the descriptor of target for one reference segment. Holes and
// zero-duration files of target are ignored; durations must be resolved.
func Build(segment reference.Segment, target timeline.Timeline) Descriptor {
	desc := Descriptor{
		StreamID:        target.ID,
		SegmentIndex:    segment.Index,
		SegmentBegin:    segment.Begin,
		SegmentDuration: segment.Duration,
	}

	files := make([]timeline.SourceFile, 0, len(target.Files))
	for _, f := range target.Files {
		if f.IsHole() || f.Duration <= 0 {
			continue
		}
		files = append(files, f)
	}

	var selected []int
	before := -1
	diffs := make([]float64, len(files))
	for i, f := range files {
		diffs[i] = f.Begin.Sub(segment.Begin).Seconds()
		switch {
		case diffs[i] < 0:
			before = i
		case diffs[i] <= segment.Duration:
			selected = append(selected, i)
		}
	}
	if before >= 0 && files[before].End().After(segment.Begin) {
		selected = append([]int{before}, selected...)
	}

	if len(selected) == 0 {
		desc.Entries = []Entry{{Gap: true, GapSeconds: segment.Duration}}
		return desc
	}

	first := selected[0]
	if diffs[first] < 0 {
		desc.Entries = append(desc.Entries, Entry{File: files[first], StartOffsetSeconds: -diffs[first]})
	} else {
		desc.Entries = append(desc.Entries,
			Entry{Gap: true, GapSeconds: diffs[first]},
			Entry{File: files[first]},
		)
	}
	for _, idx := range selected[1:] {
		desc.Entries = append(desc.Entries, Entry{File: files[idx]})
	}
	return desc
}

// BuildAll returns the descriptors of every target for every reference
// segment, indexed [segment][target].
func BuildAll(ref reference.Reference, targets []timeline.Timeline) [][]Descriptor {
	out := make([][]Descriptor, len(ref.Segments))
	for i, seg := range ref.Segments {
		row := make([]Descriptor, len(targets))
		for j, target := range targets {
			row[j] = Build(seg, target)
		}
		out[i] = row
	}
	return out
}

// Resolve restores the begin time and duration of each file entry from the
// timeline it was built from, matching on path. Descriptors read from an
// artifact only carry paths.
func (d Descriptor) Resolve(tl timeline.Timeline) Descriptor {
	byPath := make(map[string]timeline.SourceFile, len(tl.Files))
	for _, f := range tl.Files {
		if !f.IsHole() {
			byPath[f.Path] = f
		}
	}
	out := d
	out.Entries = make([]Entry, len(d.Entries))
	for i, e := range d.Entries {
		if !e.Gap {
			if f, ok := byPath[e.File.Path]; ok {
				e.File = f
			}
		}
		out.Entries[i] = e
	}
	return out
}
