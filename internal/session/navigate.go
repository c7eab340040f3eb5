package session

import (
	"context"
	"fmt"

	"longrec/internal/logging"
	"longrec/internal/navigator"
	"longrec/internal/reference"
	"longrec/internal/services"
)

// CommandKind names a navigation action.
type CommandKind string

const (
	CommandStep    CommandKind = "step"
	CommandFrame   CommandKind = "frame"
	CommandSegment CommandKind = "segment"
	CommandWindow  CommandKind = "window"
	CommandZoom    CommandKind = "zoom"
)

// Command is one navigation request. Value is the step delta, the absolute
// frame, the segment index or the first window frame depending on Kind.
type Command struct {
	Kind   CommandKind `json:"kind"`
	Value  int         `json:"value"`
	Last   int         `json:"last,omitempty"`
	Factor float64     `json:"factor,omitempty"`
}

// Result reports the outcome of Navigate.
type Result struct {
	State     navigator.State   `json:"state"`
	Segment   reference.Segment `json:"segment"`
	Reloaded  bool              `json:"reloaded"`
	Direction string            `json:"direction"`
	Clamped   bool              `json:"clamped"`
}

// Navigate applies cmd. When the segment changes, every stream is
// reassembled before the new position is committed; on failure the previous
// position and data stay in place.
func (s *Session) Navigate(ctx context.Context, cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view.Load()
	plan, nav := v.Plan, v.Plan.Navigator
	var tr navigator.Transition
	switch cmd.Kind {
	case CommandStep:
		tr = nav.Step(v.State, cmd.Value)
	case CommandFrame:
		tr = nav.JumpFrame(v.State, cmd.Value)
	case CommandSegment:
		tr = nav.JumpSegment(v.State, cmd.Value)
	case CommandWindow:
		tr = nav.SetWindow(v.State, cmd.Value, cmd.Last)
	case CommandZoom:
		tr = nav.Zoom(v.State, cmd.Factor)
	default:
		return s.result(plan, navigator.Transition{State: v.State}), services.Wrap(services.ErrConfiguration, "session", "navigate", fmt.Sprintf("unknown command %q", cmd.Kind), nil)
	}

	snap := v.Snapshot
	if tr.Reload {
		ctx = services.WithSessionID(ctx, s.id)
		loaded, err := s.load(ctx, plan, tr.State.Segment)
		if err != nil {
			return s.result(plan, navigator.Transition{State: v.State}), err
		}
		snap = loaded
		s.startPrefetch(plan, nextSegment(plan, tr.State.Segment, tr.Direction))
	}
	s.view.Store(&View{Plan: plan, State: tr.State, Snapshot: snap})
	return s.result(plan, tr), nil
}

func (s *Session) result(plan *Plan, tr navigator.Transition) Result {
	return Result{
		State:     tr.State,
		Segment:   plan.Reference.Segments[tr.State.Segment],
		Reloaded:  tr.Reload,
		Direction: tr.Direction.String(),
		Clamped:   tr.Clamped,
	}
}

// load returns the snapshot of segment idx, taking it from the prefetch
// channel when it holds that segment of the same plan.
func (s *Session) load(ctx context.Context, plan *Plan, idx int) (*Snapshot, error) {
	select {
	case res := <-s.prefetched:
		if res.plan == plan && res.snap.Segment.Index == idx {
			logging.WithContext(services.WithSegment(ctx, idx), s.logger).Debug("using prefetched segment")
			return res.snap, nil
		}
	default:
	}
	return s.snapshotFor(ctx, plan, idx)
}
