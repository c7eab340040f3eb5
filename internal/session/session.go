package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"longrec/internal/assembly"
	"longrec/internal/config"
	"longrec/internal/durationcache"
	"longrec/internal/logging"
	"longrec/internal/navigator"
	"longrec/internal/reference"
	"longrec/internal/samples"
	"longrec/internal/services"
	"longrec/internal/syncplan"
	"longrec/internal/timeline"
)

// Options configures Open.
type Options struct {
	Logger *slog.Logger
	// Reader defaults to samples.NewRegistry().
	Reader SampleSource
}

// Snapshot is the assembled data of one reference segment. It is never
// mutated once published.
type Snapshot struct {
	Segment     reference.Segment
	Descriptors map[string]syncplan.Descriptor
	Streams     map[string]assembly.Stream
}

// Session owns a synchronized recording: its plan, the navigation position
// and the streams assembled for the current segment.
type Session struct {
	id        string
	ctx       context.Context
	cfg       *config.Config
	base      *slog.Logger
	logger    *slog.Logger
	reader    SampleSource
	cache     *durationcache.Store
	artifacts *syncplan.Store

	// view is replaced as a whole; mu serializes the writers.
	view atomic.Pointer[View]
	mu   sync.Mutex

	prefetched  chan prefetchResult
	prefetching atomic.Bool
	wg          sync.WaitGroup
}

// Open builds the plan for cfg and assembles the first segment.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Session, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "open", "configuration required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "open", "invalid configuration", err)
	}

	id := uuid.NewString()
	ctx = services.WithSessionID(ctx, id)
	s := &Session{
		id:         id,
		ctx:        context.WithoutCancel(ctx),
		cfg:        cfg,
		base:       opts.Logger,
		logger:     logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "session")),
		reader:     opts.Reader,
		prefetched: make(chan prefetchResult, 1),
	}
	if s.reader == nil {
		s.reader = samples.NewRegistry()
	}

	if path := cfg.DurationCachePath(); path != "" {
		cache, err := durationcache.Open(ctx, path, opts.Logger)
		if err != nil {
			logging.WarnWithContext(s.logger, "duration cache unavailable", "cache_open_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "durations are measured on every start"),
			)
		} else {
			s.cache = cache
		}
	}
	if cfg.Sync.PersistArtifacts && cfg.Paths.ArtifactDir != "" {
		store, err := syncplan.OpenStore(cfg.Paths.ArtifactDir)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := store.Purge(); err != nil {
			s.logger.Warn("stale artifacts not removed", logging.Error(err))
		}
		s.artifacts = store
	}

	plan, err := BuildPlan(ctx, cfg, s.reader, s.cache, opts.Logger)
	if err != nil {
		s.Close()
		if !services.IsFatal(err) {
			err = services.Wrap(services.ErrConfiguration, "session", "open", "reference recording unusable", err)
		}
		return nil, err
	}
	state := plan.Navigator.Initial(0)
	snap, err := s.snapshotFor(ctx, plan, state.Segment)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.view.Store(&View{Plan: plan, State: state, Snapshot: snap})
	s.logger.Info("session opened",
		logging.String("reference", plan.Reference.ModalityID),
		logging.Int("segments", len(plan.Reference.Segments)),
		logging.Int(logging.FieldSegment, state.Segment),
	)
	s.startPrefetch(plan, nextSegment(plan, state.Segment, navigator.Forward))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// View returns the current plan, position and segment data as one
// consistent value.
func (s *Session) View() *View { return s.view.Load() }

// Plan returns the current synchronization plan.
func (s *Session) Plan() *Plan { return s.view.Load().Plan }

// Snapshot returns the data of the current segment.
func (s *Session) Snapshot() *Snapshot { return s.view.Load().Snapshot }

// Streams returns the assembled signal and interval streams of the current
// segment, keyed by stream ID.
func (s *Session) Streams() map[string]assembly.Stream {
	return s.view.Load().Snapshot.Streams
}

// State returns the navigation position.
func (s *Session) State() navigator.State { return s.view.Load().State }

// CurrentSegmentSources returns, per stream ID, the first file contributing
// to the current segment. Streams without data in the segment map to "".
func (s *Session) CurrentSegmentSources() map[string]string {
	return s.view.Load().Sources()
}

// Close waits for background work and releases the artifact lock and the
// duration cache.
func (s *Session) Close() error {
	s.wg.Wait()
	var errs []error
	if s.artifacts != nil {
		errs = append(errs, s.artifacts.Close())
		s.artifacts = nil
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
		s.cache = nil
	}
	return errors.Join(errs...)
}

// Rebuild rescans every modality and recomputes the plan. The position stays
// on the segment with the same begin time when it still exists.
func (s *Session) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = services.WithSessionID(ctx, s.id)
	old := s.view.Load()
	oldSeg := old.Segment()

	plan, err := BuildPlan(ctx, s.cfg, s.reader, s.cache, s.base)
	if err != nil {
		return err
	}
	if s.artifacts != nil {
		if err := s.artifacts.Purge(); err != nil {
			s.logger.Warn("stale artifacts not removed", logging.Error(err))
		}
	}

	idx := plan.Reference.SegmentAt(oldSeg.Begin)
	kept := idx >= 0
	if !kept {
		idx = 0
	}
	state := plan.Navigator.JumpSegment(navigator.State{Segment: -1, Window: old.State.Window}, idx).State
	if kept {
		frame := min(old.State.Frame, plan.Navigator.FrameCount(state.Segment)-1)
		state = plan.Navigator.JumpFrame(state, frame).State
	}

	snap, err := s.snapshotFor(ctx, plan, state.Segment)
	if err != nil {
		return err
	}
	s.view.Store(&View{Plan: plan, State: state, Snapshot: snap})
	s.logger.Info("session rebuilt",
		logging.Int("segments", len(plan.Reference.Segments)),
		logging.Int(logging.FieldSegment, state.Segment),
		logging.Bool("position_kept", kept),
	)
	return nil
}

// snapshotFor computes descriptors and assembles every target stream for
// segment idx. Nothing is published on error.
func (s *Session) snapshotFor(ctx context.Context, plan *Plan, idx int) (*Snapshot, error) {
	if idx < 0 || idx >= len(plan.Reference.Segments) {
		return nil, services.Wrap(services.ErrNotFound, "session", "load segment", fmt.Sprintf("segment %d out of range", idx), nil)
	}
	seg := plan.Reference.Segments[idx]
	ctx = services.WithSegment(ctx, idx)
	logger := logging.WithContext(ctx, s.logger)

	snap := &Snapshot{
		Segment:     seg,
		Descriptors: make(map[string]syncplan.Descriptor, len(plan.Targets)),
		Streams:     make(map[string]assembly.Stream, len(plan.Targets)),
	}
	for _, target := range plan.Targets {
		desc := s.descriptor(logger, seg, target)
		snap.Descriptors[target.ID] = desc
		if target.Kind == timeline.KindVideo {
			continue
		}
		m, _ := plan.Modality(target.ID)
		stream, err := assembly.Assemble(ctx, desc, assembly.Options{
			Frequency: plan.Frequencies[target.ID],
			Reader:    s.reader,
			Key:       m.Key,
			Interval:  target.Kind == timeline.KindInterval,
			Logger:    logger,
		})
		if err != nil {
			logger.Error("segment assembly failed",
				logging.String(logging.FieldStream, target.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Kind(err)),
			)
			return nil, err
		}
		snap.Streams[target.ID] = stream
	}
	return snap, nil
}

// descriptor returns the persisted descriptor of (seg, target) when one
// exists, otherwise builds it and persists it.
func (s *Session) descriptor(logger *slog.Logger, seg reference.Segment, target timeline.Timeline) syncplan.Descriptor {
	if s.artifacts != nil {
		desc, ok, err := s.artifacts.Read(target.ID, seg.Begin)
		if err != nil {
			logger.Warn("artifact unreadable, rebuilding", logging.String(logging.FieldStream, target.ID), logging.Error(err))
		}
		if ok && err == nil {
			desc = desc.Resolve(target)
			desc.StreamID, desc.SegmentIndex = target.ID, seg.Index
			desc.SegmentBegin, desc.SegmentDuration = seg.Begin, seg.Duration
			return desc
		}
	}
	desc := syncplan.Build(seg, target)
	if s.artifacts != nil {
		if _, err := s.artifacts.Write(desc); err != nil {
			logger.Warn("artifact not written", logging.String(logging.FieldStream, target.ID), logging.Error(err))
		}
	}
	return desc
}
