package httpapi

import (
	"errors"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"longrec/internal/assembly"
	"longrec/internal/logging"
	"longrec/internal/playlist"
	"longrec/internal/services"
)

const mediaPrefix = "/api/media"

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/state", s.getState)
	api.GET("/segments", s.getSegments)
	api.GET("/sources", s.getSources)
	api.GET("/streams", s.getStreams)
	api.POST("/navigate", s.navigate)
	api.GET("/playlist.m3u8", s.getPlaylist)
	api.GET("/media/:name", s.getMedia)

	s.engine.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not found")
	})
}

func (s *Server) getState(c *gin.Context) {
	v := s.backend.View()
	c.JSON(http.StatusOK, StateResponse{
		SessionID: s.backend.ID(),
		State:     v.State,
		Segment:   segmentView(v.Segment()),
		Segments:  len(v.Plan.Reference.Segments),
	})
}

func (s *Server) getSegments(c *gin.Context) {
	ref := s.backend.View().Plan.Reference
	out := SegmentsResponse{Reference: ref.ModalityID, Fps: ref.Fps, Segments: make([]SegmentView, 0, len(ref.Segments))}
	for _, seg := range ref.Segments {
		out.Segments = append(out.Segments, segmentView(seg))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getSources(c *gin.Context) {
	v := s.backend.View()
	c.JSON(http.StatusOK, SourcesResponse{
		Segment: v.Snapshot.Segment.Index,
		Sources: v.Sources(),
	})
}

// getStreams returns the samples inside the visible window, or inside
// [start_ms, end_ms) when both query parameters are given.
func (s *Server) getStreams(c *gin.Context) {
	v := s.backend.View()
	snap, state, fps := v.Snapshot, v.State, v.Plan.Reference.Fps

	startMs := float64(state.Window.First) * 1000 / fps
	endMs := float64(state.Window.Last) * 1000 / fps
	if raw, ok := c.GetQuery("start_ms"); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid start_ms")
			return
		}
		startMs = v
	}
	if raw, ok := c.GetQuery("end_ms"); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid end_ms")
			return
		}
		endMs = v
	}

	want := c.QueryArray("id")
	out := StreamsResponse{Segment: snap.Segment.Index, StartMs: startMs, EndMs: endMs}
	for _, m := range v.Plan.Modalities {
		stream, ok := snap.Streams[m.ID]
		if !ok || (len(want) > 0 && !slices.Contains(want, m.ID)) {
			continue
		}
		samples := stream.Range(startMs, endMs)
		if samples == nil {
			samples = []assembly.Sample{}
		}
		out.Streams = append(out.Streams, StreamView{
			StreamID:  stream.StreamID,
			Frequency: stream.Frequency,
			Files:     stream.Files,
			Samples:   samples,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	cmd, ok := req.command()
	if !ok {
		writeError(c, http.StatusBadRequest, "exactly one of step, frame, segment, window or zoom is required")
		return
	}
	res, err := s.backend.Navigate(c.Request.Context(), cmd)
	if err != nil {
		logger := logging.WithContext(c.Request.Context(), s.logger)
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error("navigation failed", logging.String("kind", string(cmd.Kind)), logging.Error(err))
		} else {
			logging.WarnWithContext(logger, "navigation rejected", "navigate_rejected",
				logging.String("kind", string(cmd.Kind)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "position unchanged"))
		}
		c.JSON(status, gin.H{"error": err.Error(), "state": navigateResponse(res)})
		return
	}
	c.JSON(http.StatusOK, navigateResponse(res))
}

func (s *Server) getPlaylist(c *gin.Context) {
	pl, err := playlist.Build(s.backend.View().Plan.Reference, playlist.Options{URIPrefix: mediaPrefix})
	if err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}
	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", pl.Encode().Bytes())
}

// getMedia serves a reference file by base name. Only files that are part
// of the reference timeline are reachable.
func (s *Server) getMedia(c *gin.Context) {
	name := c.Param("name")
	for _, seg := range s.backend.View().Plan.Reference.Segments {
		if seg.Path != "" && filepath.Base(seg.Path) == name {
			c.File(seg.Path)
			return
		}
	}
	writeError(c, http.StatusNotFound, "media not found")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrOrdering):
		return http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
