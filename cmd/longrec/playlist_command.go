package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"longrec/internal/playlist"
)

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var prefix string

	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Export the reference camera timeline as an HLS VOD playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := ctx.buildPlan(cmd.Context())
			if err != nil {
				return err
			}
			opts := playlist.Options{URIPrefix: prefix}
			if strings.TrimSpace(outPath) == "" {
				return playlist.Write(cmd.OutOrStdout(), plan.Reference, opts)
			}

			file, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create playlist: %w", err)
			}
			if err := playlist.Write(file, plan.Reference, opts); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close playlist: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d segments to %s\n", len(plan.Reference.Segments), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&prefix, "uri-prefix", "", "Prefix for segment URIs instead of absolute paths")
	return cmd
}
