package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"longrec/internal/durationcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or maintain the duration cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cached duration counts",
		RunE: withCache(ctx, func(cmd *cobra.Command, store *durationcache.Store) error {
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache: %s\nEntries: %d\nFiles: %d\n", store.Path(), stats.Entries, stats.Files)
			return nil
		}),
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove entries whose file no longer exists",
		RunE: withCache(ctx, func(cmd *cobra.Command, store *durationcache.Store) error {
			removed, err := store.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale entries\n", removed)
			return nil
		}),
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached duration",
		RunE: withCache(ctx, func(cmd *cobra.Command, store *durationcache.Store) error {
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Duration cache cleared")
			return nil
		}),
	})
	return cacheCmd
}

func withCache(ctx *commandContext, fn func(*cobra.Command, *durationcache.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := ctx.openCache(cmd.Context())
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("duration cache is disabled (paths.cache_dir is empty)")
		}
		defer store.Close()
		return fn(cmd, store)
	}
}
