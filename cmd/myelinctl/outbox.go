package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/bl0ckchained/myelinmap-sub000/internal/config"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/db"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/outbox"
)

func newOutboxCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and repair the event outbox",
	}
	cmd.AddCommand(newOutboxReplayCommand(c))
	return cmd
}

func newOutboxReplayCommand(c *cli) *cobra.Command {
	var (
		limit   int
		eventID int64
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Requeue failed outbox events for dispatch",
		Long: `replay connects to the database named by the layered config
(CONFIG_ENV, CONFIG_DIR) and moves failed events back to pending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := db.NewConnection(cfg.DB, c.log)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			replay := outbox.NewReplayService(outbox.NewRepository(pool), c.log)
			if eventID > 0 {
				if err := replay.ReplayEvent(ctx, eventID); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int{"replayed": 1})
			}

			n, err := replay.ReplayFailedEvents(ctx, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{"replayed": n})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum events to requeue")
	cmd.Flags().Int64Var(&eventID, "id", 0, "Requeue a single event by id")
	return cmd
}
