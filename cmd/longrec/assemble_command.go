package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"longrec/internal/assembly"
	"longrec/internal/samples"
	"longrec/internal/session"
)

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var segment int
	var streams []string
	var outDir string
	var asWAV bool

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble the streams of one reference segment and write them to files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outDir) == "" {
				return errors.New("--out is required")
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			sess, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			if sess.State().Segment != segment {
				if _, err := sess.Navigate(cmd.Context(), session.Command{Kind: session.CommandSegment, Value: segment}); err != nil {
					return err
				}
			}
			state := sess.State()
			if state.Segment != segment {
				return fmt.Errorf("segment %d has no frames; nearest segment is %d", segment, state.Segment)
			}

			assembled := sess.Streams()
			ids := streams
			if len(ids) == 0 {
				for id := range assembled {
					ids = append(ids, id)
				}
				sort.Strings(ids)
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				stream, ok := assembled[id]
				if !ok {
					return fmt.Errorf("stream %q is not assembled (video and unknown streams are skipped)", id)
				}
				path, err := writeStream(outDir, stream, asWAV)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%d samples\t%s\n", id, stream.Len(), path)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&segment, "segment", "s", 0, "Reference segment index")
	cmd.Flags().StringSliceVar(&streams, "stream", nil, "Stream IDs to write (default: all)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory")
	cmd.Flags().BoolVar(&asWAV, "wav", false, "Write regular streams as 16-bit WAV instead of text")
	return cmd
}

func writeStream(dir string, stream assembly.Stream, asWAV bool) (string, error) {
	base := fmt.Sprintf("%s_seg%04d", strings.ReplaceAll(stream.StreamID, "/", "-"), stream.SegmentIndex)
	if stream.IsRegular() && asWAV {
		path := filepath.Join(dir, base+".wav")
		return path, samples.WriteWAV(path, stream.Regular, int(math.Round(stream.Frequency)))
	}
	path := filepath.Join(dir, base+".txt")
	data := samples.Data{Values: stream.Regular}
	if !stream.IsRegular() {
		data = samples.Data{Timestamps: make([]float64, len(stream.Irregular)), Values: make([]float64, len(stream.Irregular))}
		for i, s := range stream.Irregular {
			data.Timestamps[i] = s.TimestampMs
			data.Values[i] = s.Value
		}
	}
	return path, samples.WriteText(path, data)
}
