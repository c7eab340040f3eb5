package navigator

import (
	"fmt"
	"log/slog"
	"math"

	"longrec/internal/logging"
	"longrec/internal/services"
)

// minZoomWidth is the narrowest window that can still be zoomed into.
const minZoomWidth = 5

// Window is the half-open frame range [First, Last) on display.
type Window struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Width returns Last - First.
func (w Window) Width() int { return w.Last - w.First }

// Contains reports whether frame lies in the window.
func (w Window) Contains(frame int) bool { return frame >= w.First && frame < w.Last }

// State is the navigation position.
type State struct {
	Segment int    `json:"segment"`
	Frame   int    `json:"frame"`
	Window  Window `json:"window"`
}

// Direction of a segment change.
type Direction int

const (
	None Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "none"
	}
}

// Transition is the outcome of a navigation action.
type Transition struct {
	State State
	// Reload is true when the segment changed and streams must be reassembled.
	Reload    bool
	Direction Direction
	// Clamped is true when the move hit the first or last frame of the
	// recording.
	Clamped bool
}

// Navigator computes transitions over fixed per-segment frame counts. It
// holds no position; callers keep the State.
type Navigator struct {
	counts []int
	logger *slog.Logger
}

// New returns a navigator for the given frame counts. At least one segment
// must have frames.
func New(frameCounts []int, logger *slog.Logger) (*Navigator, error) {
	counts := append([]int(nil), frameCounts...)
	nonEmpty := false
	for i, c := range counts {
		if c < 0 {
			return nil, services.Wrap(services.ErrConfiguration, "navigator", "new", fmt.Sprintf("segment %d has negative frame count %d", i, c), nil)
		}
		if c > 0 {
			nonEmpty = true
		}
	}
	if !nonEmpty {
		return nil, services.Wrap(services.ErrConfiguration, "navigator", "new", "no segment has frames", nil)
	}
	return &Navigator{counts: counts, logger: logging.NewComponentLogger(logger, "navigator")}, nil
}

// Segments returns the number of segments, including empty ones.
func (n *Navigator) Segments() int { return len(n.counts) }

// FrameCount returns the frame count of segment idx, or 0 when out of range.
func (n *Navigator) FrameCount(idx int) int {
	if idx < 0 || idx >= len(n.counts) {
		return 0
	}
	return n.counts[idx]
}

// Initial places the position on frame 0 of the first segment with frames,
// showing at most width frames.
func (n *Navigator) Initial(width int) State {
	seg := n.next(-1)
	fc := n.counts[seg]
	if width <= 0 || width > fc {
		width = fc
	}
	return State{Segment: seg, Frame: 0, Window: Window{First: 0, Last: width}}
}

// Step moves the frame by delta, crossing segment boundaries as needed.
// Overshoot carries into following segments and empty segments are skipped.
func (n *Navigator) Step(s State, delta int) Transition {
	seg, frame := s.Segment, s.Frame+delta
	clamped := false
	for {
		fc := n.counts[seg]
		if frame >= fc {
			nxt := n.next(seg)
			if nxt < 0 {
				frame = fc - 1
				clamped = true
				break
			}
			frame -= fc
			seg = nxt
			continue
		}
		if frame < 0 {
			prev := n.prev(seg)
			if prev < 0 {
				frame = 0
				clamped = true
				break
			}
			seg = prev
			frame += n.counts[prev]
			continue
		}
		break
	}

	t := Transition{Clamped: clamped}
	fc := n.counts[seg]
	switch {
	case seg > s.Segment:
		t.Reload, t.Direction = true, Forward
		w := clampWidth(s.Window.Width(), fc)
		t.State = State{Segment: seg, Frame: frame, Window: follow(Window{First: 0, Last: w}, frame, fc)}
	case seg < s.Segment:
		t.Reload, t.Direction = true, Backward
		w := clampWidth(s.Window.Width(), fc)
		t.State = State{Segment: seg, Frame: frame, Window: follow(Window{First: fc - w, Last: fc}, frame, fc)}
	default:
		t.State = State{Segment: seg, Frame: frame, Window: follow(s.Window, frame, fc)}
	}
	if t.Reload {
		n.logger.Debug("segment boundary crossed",
			logging.Int("from_segment", s.Segment),
			logging.Int(logging.FieldSegment, seg),
			logging.Int("frame", frame),
			logging.String("direction", t.Direction.String()),
		)
	}
	if clamped {
		n.logger.Debug("navigation clamped at recording edge",
			logging.Int(logging.FieldSegment, seg),
			logging.Int("frame", frame),
		)
	}
	return t
}

// JumpFrame moves to an absolute frame of the current segment. Frames outside
// the segment cross boundaries like Step.
func (n *Navigator) JumpFrame(s State, frame int) Transition {
	return n.Step(s, frame-s.Frame)
}

// JumpSegment loads segment idx at frame 0 in a single reload. An empty
// target resolves to the nearest segment with frames, forward first.
func (n *Navigator) JumpSegment(s State, idx int) Transition {
	if idx < 0 {
		idx = 0
	}
	if idx >= len(n.counts) {
		idx = len(n.counts) - 1
	}
	target := idx
	if n.counts[target] == 0 {
		if target = n.next(idx); target < 0 {
			target = n.prev(idx)
		}
	}
	fc := n.counts[target]
	t := Transition{
		State: State{Segment: target, Frame: 0, Window: Window{First: 0, Last: clampWidth(s.Window.Width(), fc)}},
	}
	switch {
	case target > s.Segment:
		t.Reload, t.Direction = true, Forward
	case target < s.Segment:
		t.Reload, t.Direction = true, Backward
	}
	if t.Reload {
		n.logger.Debug("segment selected",
			logging.Int("from_segment", s.Segment),
			logging.Int(logging.FieldSegment, target),
			logging.Int("requested", idx),
		)
	}
	return t
}

// SetWindow replaces the display window, clamped to the segment. The frame is
// left untouched.
func (n *Navigator) SetWindow(s State, first, last int) Transition {
	fc := n.counts[s.Segment]
	first = max(0, min(first, fc-1))
	last = min(last, fc)
	if last <= first {
		last = first + 1
	}
	s.Window = Window{First: first, Last: last}
	return Transition{State: s}
}

// Zoom scales the window around the current frame, or around the window
// centre when the frame lies outside the window. A factor above 1 zooms in,
// below 1 zooms out. Zooming in stays inside the current window and stops
// once the window is minZoomWidth frames or narrower.
func (n *Navigator) Zoom(s State, factor float64) Transition {
	if factor <= 0 || factor == 1 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Transition{State: s}
	}
	fc := n.counts[s.Segment]
	anchor := s.Frame
	if !s.Window.Contains(anchor) {
		anchor = (s.Window.First + s.Window.Last) / 2
	}
	left := float64(anchor - s.Window.First)
	right := float64(s.Window.Last - anchor)

	var w Window
	if factor > 1 {
		if s.Window.Width() <= minZoomWidth {
			return Transition{State: s}
		}
		w = Window{
			First: max(int(float64(anchor)-left/factor), s.Window.First),
			Last:  min(int(float64(anchor)+right/factor), s.Window.Last),
		}
	} else {
		w = Window{
			First: max(int(float64(anchor)-left/factor), 0),
			Last:  min(int(float64(anchor)+right/factor), fc),
		}
	}
	if w.Last <= anchor {
		w.Last = min(anchor+1, fc)
	}
	if w.First >= w.Last {
		w.First = max(w.Last-1, 0)
	}
	s.Window = w
	return Transition{State: s}
}

func (n *Navigator) next(from int) int {
	for i := from + 1; i < len(n.counts); i++ {
		if n.counts[i] > 0 {
			return i
		}
	}
	return -1
}

func (n *Navigator) prev(from int) int {
	for i := min(from, len(n.counts)) - 1; i >= 0; i-- {
		if n.counts[i] > 0 {
			return i
		}
	}
	return -1
}

func clampWidth(width, fc int) int {
	if width <= 0 || width > fc {
		return fc
	}
	return width
}

// follow slides w by whole widths until it contains frame, staying inside
// [0, fc).
func follow(w Window, frame, fc int) Window {
	width := clampWidth(w.Width(), fc)
	switch {
	case frame >= w.Last:
		first := w.Last
		if frame >= first+width {
			first = frame
		}
		if first+width > fc {
			first = fc - width
		}
		return Window{First: first, Last: first + width}
	case frame < w.First:
		last := w.First
		if frame < last-width {
			last = frame + 1
		}
		if last-width < 0 {
			last = width
		}
		return Window{First: last - width, Last: last}
	}
	if w.Last > fc {
		return Window{First: max(0, fc-width), Last: fc}
	}
	return w
}
