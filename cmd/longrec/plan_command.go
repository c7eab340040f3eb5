package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"longrec/internal/session"
	"longrec/internal/syncplan"
)

type planEntry struct {
	Gap    float64 `json:"gap,omitempty" yaml:"gap,omitempty"`
	Path   string  `json:"path,omitempty" yaml:"path,omitempty"`
	Offset float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

type planStream struct {
	Stream  string      `json:"stream" yaml:"stream"`
	Entries []planEntry `json:"entries" yaml:"entries"`
}

type planSegment struct {
	Index      int          `json:"index" yaml:"index"`
	Begin      time.Time    `json:"begin" yaml:"begin"`
	Duration   float64      `json:"duration" yaml:"duration"`
	FrameCount int          `json:"frame_count" yaml:"frame_count"`
	Path       string       `json:"path,omitempty" yaml:"path,omitempty"`
	Streams    []planStream `json:"streams,omitempty" yaml:"streams,omitempty"`
}

type planView struct {
	Reference   string             `json:"reference" yaml:"reference"`
	Fps         float64            `json:"fps" yaml:"fps"`
	Frequencies map[string]float64 `json:"frequencies" yaml:"frequencies"`
	Segments    []planSegment      `json:"segments" yaml:"segments"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the reference segmentation and the files each stream contributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := ctx.buildPlan(cmd.Context())
			if err != nil {
				return err
			}
			view := newPlanView(plan)
			return writeFormatted(cmd, format, view, func() string { return renderPlan(view) })
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json or yaml")
	return cmd
}

func newPlanView(plan *session.Plan) planView {
	ref := plan.Reference
	view := planView{Reference: ref.ModalityID, Fps: ref.Fps, Frequencies: plan.Frequencies}
	descriptors := syncplan.BuildAll(ref, plan.Targets)
	for i, seg := range ref.Segments {
		ps := planSegment{Index: seg.Index, Begin: seg.Begin, Duration: seg.Duration, FrameCount: seg.FrameCount, Path: seg.Path}
		for _, desc := range descriptors[i] {
			stream := planStream{Stream: desc.StreamID}
			for _, e := range desc.Entries {
				if e.Gap {
					stream.Entries = append(stream.Entries, planEntry{Gap: e.GapSeconds})
					continue
				}
				stream.Entries = append(stream.Entries, planEntry{Path: e.File.Path, Offset: e.StartOffsetSeconds})
			}
			ps.Streams = append(ps.Streams, stream)
		}
		view.Segments = append(view.Segments, ps)
	}
	return view
}

func renderPlan(view planView) string {
	rows := make([][]string, 0, len(view.Segments))
	for _, seg := range view.Segments {
		path := "(hole)"
		if seg.Path != "" {
			path = filepath.Base(seg.Path)
		}
		var streams []string
		for _, s := range seg.Streams {
			streams = append(streams, fmt.Sprintf("%s: %s", s.Stream, summarizeEntries(s.Entries)))
		}
		rows = append(rows, []string{
			strconv.Itoa(seg.Index), formatTime(seg.Begin), formatSeconds(seg.Duration),
			strconv.Itoa(seg.FrameCount), path, strings.Join(streams, "\n"),
		})
	}
	header := fmt.Sprintf("Reference %s @ %g fps", view.Reference, view.Fps)
	return header + "\n" + renderTable([]string{"#", "Begin", "Seconds", "Frames", "File", "Streams"}, rows, 0, 2, 3)
}

func summarizeEntries(entries []planEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Path == "":
			parts = append(parts, fmt.Sprintf("gap %gs", e.Gap))
		case e.Offset > 0:
			parts = append(parts, fmt.Sprintf("%s+%gs", filepath.Base(e.Path), e.Offset))
		default:
			parts = append(parts, filepath.Base(e.Path))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
