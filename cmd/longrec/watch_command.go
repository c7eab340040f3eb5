package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"longrec/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the synchronization plan whenever recording files appear",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess, err := ctx.openSession(runCtx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %d modalities (%d segments)\n", len(sess.Plan().Modalities), len(sess.Plan().Reference.Segments))
			return watch.Run(runCtx, watch.Targets(sess.Plan().Modalities), sess, watch.Options{
				Debounce: time.Duration(cfg.Sync.WatchDebounceMillis) * time.Millisecond,
				Logger:   logger,
				Rebuilt: func(err error) {
					if err != nil {
						fmt.Fprintf(out, "rebuild failed: %v\n", err)
						return
					}
					v := sess.View()
					fmt.Fprintf(out, "rebuilt: %d segments, position segment %d frame %d\n",
						len(v.Plan.Reference.Segments), v.State.Segment, v.State.Frame)
				},
			})
		},
	}
}
