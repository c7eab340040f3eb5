package timeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"longrec/internal/logging"
	"longrec/internal/services"
	"longrec/internal/testsupport"
	"longrec/internal/timeline"
	"longrec/internal/timestamp"
)

var posixRule = timestamp.Rule{Delimiter: "_", Position: 1, Format: timestamp.FormatPosix}

func TestBuildSortsAndExcludesUnparseable(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ecg_1000.txt", "ecg_900.txt", "ecg_bad.txt", "ecg_1100.txt", "notes.md"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 1)
	}

	tl, err := timeline.Build(context.Background(), timeline.Source{
		ID:      "ecg/0",
		Kind:    timeline.KindSignal,
		Dir:     dir,
		Pattern: "*.txt",
		Rule:    posixRule,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if tl.Len() != 3 {
		t.Fatalf("expected 3 files, got %d", tl.Len())
	}
	wantOrder := []int64{900, 1000, 1100}
	for i, f := range tl.Files {
		if f.Begin.Unix() != wantOrder[i] {
			t.Fatalf("file %d begins at %d, want %d", i, f.Begin.Unix(), wantOrder[i])
		}
	}
}

func TestBuildLogsExclusionDecision(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "ecg_bad.txt"), 1)
	logPath := filepath.Join(t.TempDir(), "timeline.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	if _, err := timeline.Build(context.Background(), timeline.Source{
		ID: "ecg/0", Kind: timeline.KindSignal, Dir: dir, Pattern: "*.txt", Rule: posixRule,
	}, logger); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{`"decision_type":"file_exclusion"`, `"decision_result":"excluded"`, `"event_type":"timestamp_parse_failed"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("exclusion log lacks %s:\n%s", want, data)
		}
	}
}

func TestBuildMandatoryErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := timeline.Build(context.Background(), timeline.Source{
		ID: "cam1", Kind: timeline.KindVideo, Dir: dir, Pattern: "*.mp4", Rule: posixRule, Mandatory: true,
	}, logging.NewNop())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty mandatory dir, got %v", err)
	}

	testsupport.WriteFile(t, filepath.Join(dir, "cam_oops.mp4"), 1)
	_, err = timeline.Build(context.Background(), timeline.Source{
		ID: "cam1", Kind: timeline.KindVideo, Dir: dir, Pattern: "*.mp4", Rule: posixRule, Mandatory: true,
	}, logging.NewNop())
	if !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected format error for reference parse failure, got %v", err)
	}

	tl, err := timeline.Build(context.Background(), timeline.Source{
		ID: "ecg/0", Kind: timeline.KindSignal, Dir: filepath.Join(dir, "missing"), Pattern: "*.txt", Rule: posixRule,
	}, logging.NewNop())
	if err != nil || tl.Len() != 0 {
		t.Fatalf("expected empty optional timeline, got %d files err=%v", tl.Len(), err)
	}
}

func TestBuildEqualTimestampsOrderedByPath(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "b.txt"), 1)
	testsupport.WriteFile(t, filepath.Join(dir, "a.txt"), 1)
	tl, err := timeline.Build(context.Background(), timeline.Source{
		ID: "s", Kind: timeline.KindSignal, Dir: dir, Pattern: "*.txt", Rule: timestamp.Rule{Position: -1},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if filepath.Base(tl.Files[0].Path) != "a.txt" {
		t.Fatalf("expected a.txt first, got %s", tl.Files[0].Path)
	}
	if tl.Files[0].Begin.Year() != 2000 {
		t.Fatalf("expected default timestamp, got %v", tl.Files[0].Begin)
	}
}

func at(sec int) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

func files(id string, begins ...int) timeline.Timeline {
	tl := timeline.Timeline{ID: id, Kind: timeline.KindSignal}
	for _, b := range begins {
		tl.Files = append(tl.Files, timeline.SourceFile{Path: fmt.Sprintf("%s_%d", id, b), Begin: at(b)})
	}
	return tl
}

func TestFillInsertsHoles(t *testing.T) {
	a := files("a", 0, 10, 20)
	b := files("b", 0, 20)

	filled, alignment := timeline.Fill([]timeline.Timeline{a, b}, time.Second)
	if len(filled[0].Files) != 3 || len(filled[1].Files) != 3 {
		t.Fatalf("expected equal lengths, got %d and %d", len(filled[0].Files), len(filled[1].Files))
	}
	hole := filled[1].Files[1]
	if !hole.IsHole() || !hole.Begin.Equal(at(10)) {
		t.Fatalf("expected hole at 10s, got %+v", hole)
	}
	if filled[1].Files[2].Path != "b_20" {
		t.Fatalf("expected b_20 at position 2, got %+v", filled[1].Files[2])
	}
	if len(alignment) != 3 || alignment[1].Slots["b"] != -1 || alignment[2].Slots["b"] != 2 {
		t.Fatalf("unexpected alignment: %+v", alignment)
	}
	if alignment.HoleCount()["b"] != 1 {
		t.Fatalf("unexpected hole count: %v", alignment.HoleCount())
	}
	if len(b.Files) != 2 {
		t.Fatal("input timeline mutated")
	}
}

func TestFillToleratesSubSecondDelta(t *testing.T) {
	a := timeline.Timeline{ID: "a", Files: []timeline.SourceFile{{Path: "a0", Begin: at(0)}}}
	b := timeline.Timeline{ID: "b", Files: []timeline.SourceFile{{Path: "b0", Begin: at(0).Add(800 * time.Millisecond)}}}

	filled, _ := timeline.Fill([]timeline.Timeline{a, b}, time.Second)
	if len(filled[0].Files) != 1 || filled[1].Files[0].IsHole() {
		t.Fatalf("expected aligned entries without holes: %+v", filled)
	}

	filled, _ = timeline.Fill([]timeline.Timeline{a, b}, 500*time.Millisecond)
	if len(filled[0].Files) != 2 || !filled[1].Files[0].IsHole() || !filled[0].Files[1].IsHole() {
		t.Fatalf("expected staggered holes with tight tolerance: %+v", filled)
	}
}

func TestFillExhaustedTimelineGetsHoles(t *testing.T) {
	filled, _ := timeline.Fill([]timeline.Timeline{files("a", 0, 10, 20), files("b", 0)}, time.Second)
	for _, i := range []int{1, 2} {
		if !filled[1].Files[i].IsHole() {
			t.Fatalf("expected hole at %d, got %+v", i, filled[1].Files[i])
		}
	}
}

func TestDetectOverlaps(t *testing.T) {
	tl := timeline.Timeline{ID: "a", Files: []timeline.SourceFile{
		{Path: "a0", Begin: at(0), Duration: 12, HasDuration: true},
		{Begin: at(5)},
		{Path: "a1", Begin: at(10), Duration: 10, HasDuration: true},
		{Path: "a2", Begin: at(20), Duration: 10, HasDuration: true},
	}}
	overlaps := timeline.DetectOverlaps(tl)
	if len(overlaps) != 1 {
		t.Fatalf("expected 1 overlap, got %+v", overlaps)
	}
	if overlaps[0].Earlier.Path != "a0" || overlaps[0].Later.Path != "a1" || overlaps[0].Seconds != 2 {
		t.Fatalf("unexpected overlap: %+v", overlaps[0])
	}
}

func TestWithDurations(t *testing.T) {
	tl := files("a", 0, 10)
	out, err := tl.WithDurations([]float64{10, 5})
	if err != nil {
		t.Fatalf("WithDurations returned error: %v", err)
	}
	if !out.Files[1].HasDuration || out.Files[1].Duration != 5 || tl.Files[1].HasDuration {
		t.Fatalf("unexpected durations: %+v (input %+v)", out.Files, tl.Files)
	}
	if _, err := tl.WithDurations([]float64{1}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
