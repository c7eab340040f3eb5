package assembly_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"

	"longrec/internal/assembly"
	"longrec/internal/samples"
	"longrec/internal/services"
	"longrec/internal/syncplan"
	"longrec/internal/timeline"
)

type memReader map[string]samples.Data

func (m memReader) ReadSamples(path, _ string) (samples.Data, error) {
	d, ok := m[path]
	if !ok {
		return samples.Data{}, services.Wrap(services.ErrNotFound, "test", "read", path, nil)
	}
	return d, nil
}

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

func ramp(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func fileEntry(path string, begin, dur, offset float64) syncplan.Entry {
	return syncplan.Entry{
		File:               timeline.SourceFile{Path: path, Begin: at(begin), Duration: dur, HasDuration: true},
		StartOffsetSeconds: offset,
	}
}

func TestAssembleRegularLeadGap(t *testing.T) {
	reader := memReader{"a.txt": {Values: ramp(100, 1)}}
	desc := syncplan.Descriptor{
		StreamID:        "eeg",
		SegmentBegin:    at(0),
		SegmentDuration: 10,
		Entries: []syncplan.Entry{
			{Gap: true, GapSeconds: 5},
			fileEntry("a.txt", 5, 10, 0),
		},
	}
	stream, err := assembly.Assemble(context.Background(), desc, assembly.Options{Frequency: 10, Reader: reader})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if stream.Len() != 100 {
		t.Fatalf("expected 100 samples, got %d", stream.Len())
	}
	for i := 0; i < 50; i++ {
		if stream.Regular[i] != 0 {
			t.Fatalf("expected zero padding at %d, got %v", i, stream.Regular[i])
		}
	}
	if stream.Regular[50] != 1 || stream.Regular[99] != 50 {
		t.Fatalf("unexpected data after gap: %v .. %v", stream.Regular[50], stream.Regular[99])
	}
}

func TestAssembleRegularOffsetAndConcatenation(t *testing.T) {
	reader := memReader{
		"a.txt": {Values: ramp(50, 0)},
		"b.txt": {Values: ramp(100, 1000)},
	}
	desc := syncplan.Descriptor{
		StreamID:        "eeg",
		SegmentBegin:    at(0),
		SegmentDuration: 10,
		Entries: []syncplan.Entry{
			fileEntry("a.txt", -3, 5, 3),
			fileEntry("b.txt", 2, 10, 0),
		},
	}
	stream, err := assembly.Assemble(context.Background(), desc, assembly.Options{Frequency: 10, Reader: reader})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if stream.Len() != 100 {
		t.Fatalf("expected 100 samples, got %d", stream.Len())
	}
	if stream.Regular[0] != 30 || stream.Regular[19] != 49 {
		t.Fatalf("offset not applied: first=%v 20th=%v", stream.Regular[0], stream.Regular[19])
	}
	if stream.Regular[20] != 1000 || stream.Regular[99] != 1079 {
		t.Fatalf("second file misplaced: %v .. %v", stream.Regular[20], stream.Regular[99])
	}
	if len(stream.Files) != 2 {
		t.Fatalf("expected two contributing files, got %v", stream.Files)
	}
}

func TestAssembleRegularPadsShortTail(t *testing.T) {
	reader := memReader{"a.txt": {Values: ramp(30, 1)}}
	desc := syncplan.Descriptor{
		StreamID:        "eeg",
		SegmentBegin:    at(0),
		SegmentDuration: 10,
		Entries:         []syncplan.Entry{{Gap: true}, fileEntry("a.txt", 0, 3, 0)},
	}
	stream, err := assembly.Assemble(context.Background(), desc, assembly.Options{Frequency: 10, Reader: reader})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if stream.Len() != 100 || stream.Regular[29] != 30 || stream.Regular[30] != 0 {
		t.Fatalf("unexpected padded stream len=%d", stream.Len())
	}
}

func TestAssembleEmptyDescriptor(t *testing.T) {
	desc := syncplan.Descriptor{
		StreamID:        "eeg",
		SegmentDuration: 2.5,
		Entries:         []syncplan.Entry{{Gap: true, GapSeconds: 2.5}},
	}
	stream, err := assembly.Assemble(context.Background(), desc, assembly.Options{Frequency: 4, Reader: memReader{}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if stream.Len() != 10 {
		t.Fatalf("expected 10 zeros, got %d", stream.Len())
	}

	irregular, err := assembly.Assemble(context.Background(), desc, assembly.Options{Reader: memReader{}})
	if err != nil {
		t.Fatalf("Assemble irregular: %v", err)
	}
	if irregular.Len() != 0 {
		t.Fatalf("irregular gap must stay empty, got %d samples", irregular.Len())
	}
}

func TestAssembleIrregularShiftsAndTrims(t *testing.T) {
	reader := memReader{
		"a.csv": {Timestamps: []float64{0, 1000, 2500, 3000, 4000}, Values: []float64{1, 2, 3, 4, 5}},
		"b.csv": {Timestamps: []float64{0, 500, 9000}, Values: []float64{6, 7, 8}},
	}
	desc := syncplan.Descriptor{
		StreamID:        "hr",
		SegmentBegin:    at(100),
		SegmentDuration: 5,
		Entries: []syncplan.Entry{
			fileEntry("a.csv", 98, 4, 2),
			fileEntry("b.csv", 103, 10, 0),
		},
	}
	stream, err := assembly.Assemble(context.Background(), desc, assembly.Options{Reader: reader})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []assembly.Sample{
		{TimestampMs: 500, Value: 3},
		{TimestampMs: 1000, Value: 4},
		{TimestampMs: 2000, Value: 5},
		{TimestampMs: 3000, Value: 6},
		{TimestampMs: 3500, Value: 7},
	}
	if len(stream.Irregular) != len(want) {
		t.Fatalf("got %+v, want %+v", stream.Irregular, want)
	}
	for i := range want {
		if stream.Irregular[i] != want[i] {
			t.Fatalf("sample %d = %+v, want %+v", i, stream.Irregular[i], want[i])
		}
	}
}

func TestAssembleIrregularOrderingViolation(t *testing.T) {
	reader := memReader{
		"a.csv": {Timestamps: []float64{0, 4000}, Values: []float64{1, 2}},
		"b.csv": {Timestamps: []float64{0, 100}, Values: []float64{3, 4}},
	}
	desc := syncplan.Descriptor{
		StreamID:        "hr",
		SegmentBegin:    at(0),
		SegmentDuration: 10,
		Entries: []syncplan.Entry{
			{Gap: true},
			fileEntry("a.csv", 0, 5, 0),
			fileEntry("b.csv", 2, 5, 0),
		},
	}
	_, err := assembly.Assemble(context.Background(), desc, assembly.Options{Reader: reader})
	var ordering *assembly.OrderingError
	if !errors.As(err, &ordering) {
		t.Fatalf("expected OrderingError, got %v", err)
	}
	if !errors.Is(err, services.ErrOrdering) || ordering.Path != "b.csv" {
		t.Fatalf("unexpected ordering error %+v", ordering)
	}
}

func TestAssembleIntervalStream(t *testing.T) {
	reader := memReader{"i.txt": {Timestamps: []float64{2, 10}, Values: []float64{5, 14}}}
	desc := syncplan.Descriptor{
		StreamID:        "events",
		SegmentBegin:    at(0),
		SegmentDuration: 2,
		Entries:         []syncplan.Entry{{Gap: true}, fileEntry("i.txt", 0, 1.4, 0)},
	}
	stream, err := assembly.Assemble(context.Background(), desc, assembly.Options{Frequency: 10, Reader: reader, Interval: true})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if stream.Len() != 20 {
		t.Fatalf("expected 20 samples, got %d", stream.Len())
	}
	if stream.Regular[1] != 0 || stream.Regular[2] != 1 || stream.Regular[4] != 1 || stream.Regular[5] != 0 || stream.Regular[10] != 1 || stream.Regular[13] != 1 || stream.Regular[14] != 0 {
		t.Fatalf("unexpected interval series %v", stream.Regular)
	}
}

func TestAssembleRejectsInvalidOptions(t *testing.T) {
	desc := syncplan.Descriptor{StreamID: "x", SegmentDuration: 1}
	if _, err := assembly.Assemble(context.Background(), desc, assembly.Options{Frequency: 10}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without reader, got %v", err)
	}
	if _, err := assembly.Assemble(context.Background(), desc, assembly.Options{Frequency: math.NaN(), Reader: memReader{}}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for NaN frequency, got %v", err)
	}
}

func TestStreamRange(t *testing.T) {
	s := assembly.Stream{Frequency: 10, Regular: ramp(20, 0)}
	got := s.Range(250, 600)
	if len(got) != 3 || got[0].Value != 3 || got[2].Value != 5 {
		t.Fatalf("unexpected range %+v", got)
	}
}

func TestAssembleCoverageConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		freq := rapid.SampledFrom([]float64{1, 4, 10, 25, 29.97, 128, 256}).Draw(t, "freq")
		duration := rapid.Float64Range(0, 120).Draw(t, "duration")
		reader := memReader{}
		var entries []syncplan.Entry

		if rapid.Bool().Draw(t, "lead_gap") {
			entries = append(entries, syncplan.Entry{Gap: true, GapSeconds: rapid.Float64Range(0, duration).Draw(t, "gap")})
		}
		nFiles := rapid.IntRange(0, 4).Draw(t, "files")
		for i := 0; i < nFiles; i++ {
			path := string(rune('a'+i)) + ".txt"
			reader[path] = samples.Data{Values: ramp(rapid.IntRange(0, 4000).Draw(t, "len"), 0)}
			entry := fileEntry(path, float64(i), 1, 0)
			if i == 0 && len(entries) == 0 {
				entry.StartOffsetSeconds = rapid.Float64Range(0, 30).Draw(t, "offset")
			}
			entries = append(entries, entry)
		}
		if len(entries) == 0 {
			entries = []syncplan.Entry{{Gap: true, GapSeconds: duration}}
		}

		desc := syncplan.Descriptor{StreamID: "p", SegmentBegin: at(0), SegmentDuration: duration, Entries: entries}
		stream, err := assembly.Assemble(context.Background(), desc, assembly.Options{Frequency: freq, Reader: reader})
		if err != nil {
			t.Fatalf("Assemble: %v", err)
		}
		if want := int(math.Round(freq * duration)); stream.Len() != want {
			t.Fatalf("len = %d, want %d", stream.Len(), want)
		}
	})
}
