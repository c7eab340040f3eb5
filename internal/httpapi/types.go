package httpapi

import (
	"time"

	"longrec/internal/assembly"
	"longrec/internal/navigator"
	"longrec/internal/reference"
	"longrec/internal/session"
)

// SegmentView is the JSON form of a reference segment.
type SegmentView struct {
	Index      int       `json:"index"`
	Begin      time.Time `json:"begin"`
	Duration   float64   `json:"duration_seconds"`
	FrameCount int       `json:"frame_count"`
	Path       string    `json:"path,omitempty"`
	Hole       bool      `json:"hole,omitempty"`
}

// StateResponse is returned by GET /api/state.
type StateResponse struct {
	SessionID string          `json:"session_id"`
	State     navigator.State `json:"state"`
	Segment   SegmentView     `json:"segment"`
	Segments  int             `json:"segments"`
}

// SegmentsResponse is returned by GET /api/segments.
type SegmentsResponse struct {
	Reference string        `json:"reference"`
	Fps       float64       `json:"fps"`
	Segments  []SegmentView `json:"segments"`
}

// SourcesResponse is returned by GET /api/sources.
type SourcesResponse struct {
	Segment int               `json:"segment"`
	Sources map[string]string `json:"sources"`
}

// NavigateRequest carries exactly one navigation action.
type NavigateRequest struct {
	Step    *int     `json:"step,omitempty"`
	Frame   *int     `json:"frame,omitempty"`
	Segment *int     `json:"segment,omitempty"`
	Window  []int    `json:"window,omitempty"`
	Zoom    *float64 `json:"zoom,omitempty"`
}

// NavigateResponse is returned by POST /api/navigate.
type NavigateResponse struct {
	State     navigator.State `json:"state"`
	Segment   SegmentView     `json:"segment"`
	Reloaded  bool            `json:"reloaded"`
	Direction string          `json:"direction"`
	Clamped   bool            `json:"clamped"`
}

// StreamView is one stream restricted to the visible window.
type StreamView struct {
	StreamID  string            `json:"stream_id"`
	Frequency float64           `json:"frequency,omitempty"`
	Files     []string          `json:"files,omitempty"`
	Samples   []assembly.Sample `json:"samples"`
}

// StreamsResponse is returned by GET /api/streams.
type StreamsResponse struct {
	Segment int          `json:"segment"`
	StartMs float64      `json:"start_ms"`
	EndMs   float64      `json:"end_ms"`
	Streams []StreamView `json:"streams"`
}

func segmentView(seg reference.Segment) SegmentView {
	return SegmentView{
		Index:      seg.Index,
		Begin:      seg.Begin,
		Duration:   seg.Duration,
		FrameCount: seg.FrameCount,
		Path:       seg.Path,
		Hole:       seg.Path == "",
	}
}

func navigateResponse(res session.Result) NavigateResponse {
	return NavigateResponse{
		State:     res.State,
		Segment:   segmentView(res.Segment),
		Reloaded:  res.Reloaded,
		Direction: res.Direction,
		Clamped:   res.Clamped,
	}
}

// command converts a request into a session command. ok is false unless
// exactly one action is set.
func (r NavigateRequest) command() (session.Command, bool) {
	var cmds []session.Command
	if r.Step != nil {
		cmds = append(cmds, session.Command{Kind: session.CommandStep, Value: *r.Step})
	}
	if r.Frame != nil {
		cmds = append(cmds, session.Command{Kind: session.CommandFrame, Value: *r.Frame})
	}
	if r.Segment != nil {
		cmds = append(cmds, session.Command{Kind: session.CommandSegment, Value: *r.Segment})
	}
	if r.Window != nil {
		if len(r.Window) != 2 {
			return session.Command{}, false
		}
		cmds = append(cmds, session.Command{Kind: session.CommandWindow, Value: r.Window[0], Last: r.Window[1]})
	}
	if r.Zoom != nil {
		cmds = append(cmds, session.Command{Kind: session.CommandZoom, Factor: *r.Zoom})
	}
	if len(cmds) != 1 {
		return session.Command{}, false
	}
	return cmds[0], true
}
