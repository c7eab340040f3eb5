package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"longrec/internal/httpapi"
	"longrec/internal/logging"
	"longrec/internal/watch"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var watchDirs bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session to a display front end over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) == "" {
				bind = cfg.Paths.APIBind
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess, err := ctx.openSession(runCtx)
			if err != nil {
				return err
			}
			defer sess.Close()

			srv, err := httpapi.New(bind, sess, logger)
			if err != nil {
				return err
			}
			if err := srv.Start(runCtx); err != nil {
				return err
			}
			defer srv.Stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Serving session %s on http://%s\n", sess.ID(), srv.Addr())

			if watchDirs {
				go func() {
					err := watch.Run(runCtx, watch.Targets(sess.Plan().Modalities), sess, watch.Options{
						Debounce: time.Duration(cfg.Sync.WatchDebounceMillis) * time.Millisecond,
						Logger:   logger,
					})
					if err != nil && runCtx.Err() == nil {
						logger.Error("directory watch stopped", logging.Error(err))
					}
				}()
			}

			<-runCtx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default paths.api_bind)")
	cmd.Flags().BoolVar(&watchDirs, "watch", false, "Rebuild the session when new recording files appear")
	return cmd
}
