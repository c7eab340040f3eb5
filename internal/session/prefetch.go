package session

import (
	"longrec/internal/logging"
	"longrec/internal/navigator"
)

type prefetchResult struct {
	plan *Plan
	snap *Snapshot
}

// nextSegment returns the segment likely to be loaded after idx when moving
// in dir, or -1.
func nextSegment(plan *Plan, idx int, dir navigator.Direction) int {
	step := 1
	if dir == navigator.Backward {
		step = -1
	}
	for i := idx + step; i >= 0 && i < plan.Navigator.Segments(); i += step {
		if plan.Navigator.FrameCount(i) > 0 {
			return i
		}
	}
	return -1
}

// startPrefetch assembles segment idx in the background. At most one
// prefetch runs at a time and its result is the only value ever sent on the
// channel, so the send never blocks.
func (s *Session) startPrefetch(plan *Plan, idx int) {
	if !s.cfg.Sync.Prefetch || idx < 0 {
		return
	}
	if !s.prefetching.CompareAndSwap(false, true) {
		return
	}
	select {
	case <-s.prefetched:
	default:
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.prefetching.Store(false)
		snap, err := s.snapshotFor(s.ctx, plan, idx)
		if err != nil {
			s.logger.Debug("prefetch failed", logging.Int(logging.FieldSegment, idx), logging.Error(err))
			return
		}
		s.prefetched <- prefetchResult{plan: plan, snap: snap}
	}()
}
