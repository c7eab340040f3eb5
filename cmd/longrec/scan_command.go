package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"longrec/internal/session"
	"longrec/internal/timeline"
)

type scanRow struct {
	Modality string    `json:"modality" yaml:"modality"`
	Kind     string    `json:"kind" yaml:"kind"`
	Dir      string    `json:"dir" yaml:"dir"`
	Files    int       `json:"files" yaml:"files"`
	Holes    int       `json:"holes" yaml:"holes"`
	First    time.Time `json:"first,omitzero" yaml:"first,omitempty"`
	Last     time.Time `json:"last,omitzero" yaml:"last,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the files of every modality and the holes gap filling inserts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			modalities, err := session.Modalities(cfg)
			if err != nil {
				return err
			}

			timelines := make([]timeline.Timeline, 0, len(modalities))
			for _, m := range modalities {
				tl, err := timeline.Build(cmd.Context(), m.Source, logger)
				if err != nil {
					return err
				}
				timelines = append(timelines, tl)
			}
			_, alignment := timeline.Fill(timelines, cfg.GapTolerance())
			holes := alignment.HoleCount()

			rows := make([]scanRow, 0, len(modalities))
			for i, m := range modalities {
				tl := timelines[i]
				row := scanRow{Modality: m.ID, Kind: string(m.Kind), Dir: m.Source.Dir, Files: tl.RealCount(), Holes: holes[m.ID]}
				if n := len(tl.Files); n > 0 {
					row.First = tl.Files[0].Begin
					row.Last = tl.Files[n-1].Begin
				}
				rows = append(rows, row)
			}

			return writeFormatted(cmd, format, rows, func() string {
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{
						r.Modality, r.Kind, strconv.Itoa(r.Files), strconv.Itoa(r.Holes),
						formatTime(r.First), formatTime(r.Last),
					})
				}
				return renderTable([]string{"Modality", "Kind", "Files", "Holes", "First", "Last"}, table, 2, 3)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json or yaml")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateTime)
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
