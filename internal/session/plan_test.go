package session_test

import (
	"context"
	"path/filepath"
	"testing"

	"longrec/internal/logging"
	"longrec/internal/samples"
	"longrec/internal/session"
	"longrec/internal/testsupport"
)

func TestBuildPlanCachesDurations(t *testing.T) {
	rec := newRecording(t)
	cache := testsupport.MustOpenCache(t, rec.cfg)
	ctx := context.Background()

	plan, err := session.BuildPlan(ctx, rec.cfg, samples.NewRegistry(), cache, logging.NewNop())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if got := plan.Frequencies["eeg/0"]; got != 10 {
		t.Fatalf("eeg frequency = %v", got)
	}
	if tl, ok := plan.Target("eeg/0"); !ok || len(tl.Files) != 1 || tl.Files[0].Duration != 25 {
		t.Fatalf("unexpected eeg target %+v", tl)
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Files < 4 {
		t.Fatalf("expected reference and eeg durations to be cached, got %+v", stats)
	}

	again, err := session.BuildPlan(ctx, rec.cfg, samples.NewRegistry(), cache, logging.NewNop())
	if err != nil {
		t.Fatalf("second BuildPlan: %v", err)
	}
	if len(again.Reference.Segments) != len(plan.Reference.Segments) {
		t.Fatalf("cached rebuild changed the segmentation: %d vs %d", len(again.Reference.Segments), len(plan.Reference.Segments))
	}
}

func TestIntervalStreamAssembled(t *testing.T) {
	sleepDir := filepath.Join(t.TempDir(), "sleep")
	series := make([]float64, 150)
	for i := 50; i < len(series); i++ {
		series[i] = 1
	}
	testsupport.WriteSeries(t, sleepDir, "sleep", sec(0), series)

	rec := newRecording(t, testsupport.WithInterval("sleep", sleepDir, 10), testsupport.WithoutCache())
	s := open(t, rec.cfg)

	sleep := s.Streams()["sleep/0"]
	if sleep.Len() != 100 || sleep.Regular[49] != 0 || sleep.Regular[50] != 1 || sleep.Regular[99] != 1 {
		t.Fatalf("unexpected interval series in segment 0: %v", sleep.Regular)
	}

	if _, err := s.Navigate(context.Background(), session.Command{Kind: session.CommandSegment, Value: 1}); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	sleep = s.Streams()["sleep/0"]
	if sleep.Regular[0] != 1 || sleep.Regular[49] != 1 || sleep.Regular[50] != 0 {
		t.Fatalf("unexpected interval series in segment 1: %v", sleep.Regular)
	}
}
