package session_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"longrec/internal/assembly"
	"longrec/internal/config"
	"longrec/internal/logging"
	"longrec/internal/navigator"
	"longrec/internal/services"
	"longrec/internal/session"
	"longrec/internal/syncplan"
	"longrec/internal/testsupport"
)

var t0 = time.Unix(1700000000, 0).UTC()

func sec(n int) time.Time { return t0.Add(time.Duration(n) * time.Second) }

type recording struct {
	cfg     *config.Config
	refDir  string
	eegDir  string
	hrDir   string
	refPath []string
	eegPath string
	hrPath  string
}

// newRecording lays out three 10 s reference files at 10 Hz, a 25 s EEG file
// starting with the reference and an irregular heart-rate file starting 21 s
// in.
func newRecording(t *testing.T, opts ...testsupport.ConfigOption) recording {
	t.Helper()
	base := t.TempDir()
	r := recording{
		refDir: filepath.Join(base, "ref"),
		eegDir: filepath.Join(base, "eeg"),
		hrDir:  filepath.Join(base, "hr"),
	}
	for i := 0; i < 3; i++ {
		r.refPath = append(r.refPath, testsupport.WriteSeries(t, r.refDir, "ref", sec(10*i), testsupport.Ramp(100, float64(100*i))))
	}
	r.eegPath = testsupport.WriteSeries(t, r.eegDir, "eeg", sec(0), testsupport.Ramp(250, 0))
	r.hrPath = testsupport.WriteTable(t, r.hrDir, "hr", sec(21), []float64{0, 1000, 2000, 15000}, []float64{60, 61, 62, 63})

	opts = append([]testsupport.ConfigOption{
		testsupport.WithSignal("ref", r.refDir, 10),
		testsupport.WithSignal("eeg", r.eegDir, 10),
		testsupport.WithSignal("hr", r.hrDir, 0),
	}, opts...)
	r.cfg = testsupport.NewConfig(t, opts...)
	return r
}

func open(t *testing.T, cfg *config.Config) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), cfg, session.Options{Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func regularRange(t *testing.T, stream assembly.Stream, from, to int, first float64) {
	t.Helper()
	for i := from; i < to; i++ {
		if want := first + float64(i-from); stream.Regular[i] != want {
			t.Fatalf("%s sample %d = %v, want %v", stream.StreamID, i, stream.Regular[i], want)
		}
	}
}

func TestOpenAssemblesFirstSegment(t *testing.T) {
	rec := newRecording(t)
	s := open(t, rec.cfg)

	plan := s.Plan()
	if plan.Reference.ModalityID != "ref/0" || plan.Reference.Fps != 10 {
		t.Fatalf("unexpected reference %s @ %v", plan.Reference.ModalityID, plan.Reference.Fps)
	}
	if got := plan.Reference.FrameCounts(); len(got) != 3 || got[0] != 100 || got[2] != 100 {
		t.Fatalf("unexpected frame counts %v", got)
	}
	state := s.State()
	if state.Segment != 0 || state.Frame != 0 || state.Window != (navigator.Window{First: 0, Last: 100}) {
		t.Fatalf("unexpected initial state %+v", state)
	}

	streams := s.Streams()
	if streams["eeg/0"].Len() != 100 {
		t.Fatalf("eeg length = %d", streams["eeg/0"].Len())
	}
	regularRange(t, streams["eeg/0"], 0, 100, 0)
	regularRange(t, streams["ref/0"], 0, 100, 0)
	if streams["hr/0"].Len() != 0 || streams["hr/0"].IsRegular() {
		t.Fatalf("heart rate must be an empty irregular stream in segment 0, got %+v", streams["hr/0"])
	}

	sources := s.CurrentSegmentSources()
	if sources["ref/0"] != rec.refPath[0] || sources["eeg/0"] != rec.eegPath || sources["hr/0"] != "" {
		t.Fatalf("unexpected sources %v", sources)
	}
}

func TestNavigateAcrossSegments(t *testing.T) {
	rec := newRecording(t)
	s := open(t, rec.cfg)
	ctx := context.Background()

	res, err := s.Navigate(ctx, session.Command{Kind: session.CommandStep, Value: 99})
	if err != nil || res.Reloaded || res.State.Frame != 99 {
		t.Fatalf("step within segment: %+v err=%v", res, err)
	}

	res, err = s.Navigate(ctx, session.Command{Kind: session.CommandStep, Value: 1})
	if err != nil {
		t.Fatalf("step across boundary: %v", err)
	}
	if !res.Reloaded || res.Direction != "forward" || res.State.Segment != 1 || res.State.Frame != 0 {
		t.Fatalf("unexpected crossing %+v", res)
	}
	regularRange(t, s.Streams()["eeg/0"], 0, 100, 100)

	res, err = s.Navigate(ctx, session.Command{Kind: session.CommandSegment, Value: 2})
	if err != nil || res.State.Segment != 2 {
		t.Fatalf("jump to segment 2: %+v err=%v", res, err)
	}
	eeg := s.Streams()["eeg/0"]
	if eeg.Len() != 100 {
		t.Fatalf("eeg length = %d", eeg.Len())
	}
	regularRange(t, eeg, 0, 50, 200)
	for i := 50; i < 100; i++ {
		if eeg.Regular[i] != 0 {
			t.Fatalf("expected zero tail at %d, got %v", i, eeg.Regular[i])
		}
	}
	hr := s.Streams()["hr/0"].Irregular
	if len(hr) != 3 || hr[0].TimestampMs != 1000 || hr[2].TimestampMs != 3000 || hr[2].Value != 62 {
		t.Fatalf("unexpected heart rate samples %+v", hr)
	}
	if src := s.CurrentSegmentSources(); src["hr/0"] != rec.hrPath || src["ref/0"] != rec.refPath[2] {
		t.Fatalf("unexpected sources %v", src)
	}

	res, err = s.Navigate(ctx, session.Command{Kind: session.CommandStep, Value: -1})
	if err != nil || res.State.Segment != 1 || res.State.Frame != 99 || res.Direction != "backward" {
		t.Fatalf("step back: %+v err=%v", res, err)
	}

	res, err = s.Navigate(ctx, session.Command{Kind: session.CommandSegment, Value: 2})
	if err != nil {
		t.Fatal(err)
	}
	res, err = s.Navigate(ctx, session.Command{Kind: session.CommandStep, Value: 500})
	if err != nil || !res.Clamped || res.State.Frame != 99 || res.State.Segment != 2 {
		t.Fatalf("terminal clamp: %+v err=%v", res, err)
	}
}

func TestNavigateWindowAndZoom(t *testing.T) {
	rec := newRecording(t)
	s := open(t, rec.cfg)
	ctx := context.Background()

	if _, err := s.Navigate(ctx, session.Command{Kind: session.CommandFrame, Value: 50}); err != nil {
		t.Fatal(err)
	}
	res, err := s.Navigate(ctx, session.Command{Kind: session.CommandZoom, Factor: 2})
	if err != nil || res.State.Window != (navigator.Window{First: 25, Last: 75}) {
		t.Fatalf("zoom: %+v err=%v", res, err)
	}
	res, err = s.Navigate(ctx, session.Command{Kind: session.CommandWindow, Value: 40, Last: 60})
	if err != nil || res.State.Window != (navigator.Window{First: 40, Last: 60}) {
		t.Fatalf("window: %+v err=%v", res, err)
	}
	if _, err := s.Navigate(ctx, session.Command{Kind: "teleport"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown command, got %v", err)
	}
}

func TestArtifactsPersistedAndDirectoryLocked(t *testing.T) {
	rec := newRecording(t)
	s := open(t, rec.cfg)

	desc, err := syncplan.ReadArtifact(filepath.Join(rec.cfg.Paths.ArtifactDir, syncplan.ArtifactName("eeg/0", sec(0))))
	if err != nil {
		t.Fatalf("ReadArtifact: %v", err)
	}
	if len(desc.Files()) != 1 || desc.Files()[0] != rec.eegPath {
		t.Fatalf("unexpected persisted descriptor %+v", desc)
	}

	if _, err := session.Open(context.Background(), rec.cfg, session.Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected locked artifact directory, got %v", err)
	}
	_ = s
}

func TestOrderingViolationKeepsPreviousSegment(t *testing.T) {
	base := t.TempDir()
	refDir, hrDir := filepath.Join(base, "ref"), filepath.Join(base, "hr")
	testsupport.WriteSeries(t, refDir, "ref", sec(0), testsupport.Ramp(100, 0))
	testsupport.WriteSeries(t, refDir, "ref", sec(10), testsupport.Ramp(100, 0))
	testsupport.WriteTable(t, hrDir, "hr", sec(10), []float64{0, 5000}, []float64{1, 2})
	testsupport.WriteTable(t, hrDir, "hrb", sec(12), []float64{0, 100}, []float64{3, 4})
	cfg := testsupport.NewConfig(t,
		testsupport.WithSignal("ref", refDir, 10),
		testsupport.WithSignal("hr", hrDir, 0),
	)
	s := open(t, cfg)
	before := s.Snapshot()

	_, err := s.Navigate(context.Background(), session.Command{Kind: session.CommandSegment, Value: 1})
	var ordering *assembly.OrderingError
	if !errors.As(err, &ordering) || !errors.Is(err, services.ErrOrdering) {
		t.Fatalf("expected ordering error, got %v", err)
	}
	if s.State().Segment != 0 || s.Snapshot() != before {
		t.Fatalf("failed navigation must not change the session")
	}
}

func TestRebuildKeepsPosition(t *testing.T) {
	rec := newRecording(t)
	s := open(t, rec.cfg)
	ctx := context.Background()

	if _, err := s.Navigate(ctx, session.Command{Kind: session.CommandFrame, Value: 105}); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteSeries(t, rec.eegDir, "eeg", sec(30), testsupport.Ramp(50, 0))
	if err := s.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got := len(s.Plan().Reference.Segments); got != 3 {
		t.Fatalf("a file of a non-reference stream must not add segments, got %d", got)
	}

	testsupport.WriteSeries(t, rec.refDir, "ref", sec(30), testsupport.Ramp(100, 300))
	if err := s.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got := len(s.Plan().Reference.Segments); got != 4 {
		t.Fatalf("expected a fourth segment for the new file, got %d", got)
	}
	if st := s.State(); st.Segment != 1 || st.Frame != 5 {
		t.Fatalf("position lost: %+v", st)
	}
}

func TestMissingReferenceDirectoryIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSignal("ref", filepath.Join(t.TempDir(), "missing"), 10))
	_, err := session.Open(context.Background(), cfg, session.Options{})
	if !errors.Is(err, services.ErrConfiguration) || !services.IsFatal(err) {
		t.Fatalf("expected fatal configuration error, got %v", err)
	}
}

func TestUnreadableReferenceFileIsFatal(t *testing.T) {
	rec := newRecording(t)
	testsupport.WriteFile(t, filepath.Join(rec.refDir, "ref_bad.txt"), 4)

	_, err := session.Open(context.Background(), rec.cfg, session.Options{Logger: logging.NewNop()})
	if !errors.Is(err, services.ErrFormat) || !services.IsFatal(err) {
		t.Fatalf("expected fatal format error, got %v", err)
	}
}

func TestSignalSegmentationDoesNotSplitCameraReference(t *testing.T) {
	base := t.TempDir()
	camDir, eegDir := filepath.Join(base, "cam"), filepath.Join(base, "eeg")
	for _, begin := range []int{0, 600} {
		testsupport.WriteFile(t, filepath.Join(camDir, testsupport.RecordingName("cam", sec(begin), ".mp4")), 16)
	}
	eegFiles := make([]string, 20)
	for i := range eegFiles {
		eegFiles[i] = testsupport.WriteSeries(t, eegDir, "eeg", sec(60*i), testsupport.Ramp(600, float64(600*i)))
	}

	ffprobeJSON := `{"streams":[{"index":0,"codec_type":"video","r_frame_rate":"1/1","nb_frames":"600"}],"format":{"duration":"600.0"}}`
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedFFprobe(ffprobeJSON),
		testsupport.WithCamera("cam", camDir),
		testsupport.WithSignal("eeg", eegDir, 10),
	)
	s := open(t, cfg)

	segs := s.Plan().Reference.Segments
	if len(segs) != 2 {
		t.Fatalf("expected the two camera files as segments, got %d", len(segs))
	}
	total := 0.0
	for i, seg := range segs {
		if seg.Path == "" || seg.Duration != 600 || seg.FrameCount != 600 {
			t.Fatalf("unexpected segment %d: %+v", i, seg)
		}
		if i > 0 && seg.Begin.Before(segs[i-1].End()) {
			t.Fatalf("segment %d overlaps segment %d", i, i-1)
		}
		total += seg.Duration
	}
	if total != 1200 {
		t.Fatalf("segments cover %vs, recording spans 1200s", total)
	}
	if tl, ok := s.Plan().Target("eeg/0"); !ok || len(tl.Files) != 20 {
		t.Fatalf("eeg target must keep its 20 files, got %+v", tl)
	}

	if _, err := s.Navigate(context.Background(), session.Command{Kind: session.CommandSegment, Value: 1}); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	eeg := s.Streams()["eeg/0"]
	if eeg.Len() != 6000 {
		t.Fatalf("eeg length = %d", eeg.Len())
	}
	regularRange(t, eeg, 0, 6000, 6000)
	if src := s.CurrentSegmentSources(); src["eeg/0"] != eegFiles[10] {
		t.Fatalf("unexpected eeg source %q", src["eeg/0"])
	}
}

func TestViewStaysConsistentDuringRebuild(t *testing.T) {
	rec := newRecording(t)
	s := open(t, rec.cfg)
	ctx := context.Background()

	stop := make(chan struct{})
	failures := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			v := s.View()
			if v.State.Segment >= len(v.Plan.Reference.Segments) || v.Snapshot.Segment.Index != v.State.Segment ||
				!v.Snapshot.Segment.Begin.Equal(v.Segment().Begin) {
				select {
				case failures <- fmt.Sprintf("inconsistent view: state %+v snapshot segment %d of %d", v.State, v.Snapshot.Segment.Index, len(v.Plan.Reference.Segments)):
				default:
				}
				return
			}
		}
	}()

	for i := 0; i < 3; i++ {
		if _, err := s.Navigate(ctx, session.Command{Kind: session.CommandSegment, Value: 2}); err != nil {
			t.Fatalf("Navigate: %v", err)
		}
		if err := os.Remove(rec.refPath[2]); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if err := s.Rebuild(ctx); err != nil {
			t.Fatalf("Rebuild: %v", err)
		}
		if got := s.View(); len(got.Plan.Reference.Segments) != 2 || got.State.Segment != 0 {
			t.Fatalf("unexpected view after shrinking rebuild: %+v", got.State)
		}
		testsupport.WriteSeries(t, rec.refDir, "ref", sec(20), testsupport.Ramp(100, 200))
		if err := s.Rebuild(ctx); err != nil {
			t.Fatalf("Rebuild: %v", err)
		}
	}
	close(stop)
	<-done
	select {
	case msg := <-failures:
		t.Fatal(msg)
	default:
	}
}

func TestVideoReferenceWithStubbedFFprobe(t *testing.T) {
	base := t.TempDir()
	camDir, eegDir := filepath.Join(base, "cam"), filepath.Join(base, "eeg")
	cam0 := filepath.Join(camDir, testsupport.RecordingName("cam", sec(0), ".mp4"))
	testsupport.WriteFile(t, cam0, 16)
	testsupport.WriteFile(t, filepath.Join(camDir, testsupport.RecordingName("cam", sec(10), ".mp4")), 16)
	testsupport.WriteSeries(t, eegDir, "eeg", sec(0), testsupport.Ramp(200, 0))

	ffprobeJSON := `{"streams":[{"index":0,"codec_type":"video","r_frame_rate":"25/1","nb_frames":"250"}],"format":{"duration":"10.0"}}`
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedFFprobe(ffprobeJSON),
		testsupport.WithCamera("cam", camDir),
		testsupport.WithSignal("eeg", eegDir, 10),
	)
	s := open(t, cfg)

	plan := s.Plan()
	if plan.Reference.ModalityID != "cam" || plan.Reference.Fps != 25 {
		t.Fatalf("unexpected reference %s @ %v", plan.Reference.ModalityID, plan.Reference.Fps)
	}
	if counts := plan.Reference.FrameCounts(); len(counts) != 2 || counts[0] != 250 {
		t.Fatalf("unexpected frame counts %v", counts)
	}
	if src := s.CurrentSegmentSources(); src["cam"] != cam0 {
		t.Fatalf("unexpected camera source %q", src["cam"])
	}
	if _, ok := s.Streams()["cam"]; ok {
		t.Fatalf("video streams are not assembled")
	}
	if s.Streams()["eeg/0"].Len() != 100 {
		t.Fatalf("eeg length = %d", s.Streams()["eeg/0"].Len())
	}
}

func TestPrefetchDoesNotChangeResults(t *testing.T) {
	rec := newRecording(t)
	rec.cfg.Sync.Prefetch = true
	s := open(t, rec.cfg)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		res, err := s.Navigate(ctx, session.Command{Kind: session.CommandSegment, Value: i})
		if err != nil || res.State.Segment != i {
			t.Fatalf("jump to %d: %+v err=%v", i, res, err)
		}
		if got := s.Streams()["eeg/0"].Regular[0]; got != float64(100*i) {
			t.Fatalf("segment %d eeg starts at %v", i, got)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(rec.cfg.Paths.ArtifactDir); err != nil {
		t.Fatalf("artifact dir missing: %v", err)
	}
}
