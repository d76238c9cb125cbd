package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/megcare/caseflow/internal/config"
	"github.com/megcare/caseflow/pkg/messaging"
	"github.com/megcare/caseflow/pkg/messaging/redis"
)

func (a *app) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published case events",
	}

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print case events as the worker publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			hospitalID, _ := cmd.Flags().GetInt64("hospital")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, nil)
			if err != nil {
				return err
			}
			defer broker.Close()

			a.log.Info("tailing case events",
				zap.String("channel", cfg.Outbox.Channel), zap.Int64("hospital", hospitalID))
			return tailEvents(cmd.Context(), broker, cfg.Outbox.Channel, hospitalID, limit, cmd.OutOrStdout())
		},
	}
	tailCmd.Flags().Int64("hospital", 0, "only show events of this hospital id")
	tailCmd.Flags().Int("limit", 0, "stop after this many events")

	cmd.AddCommand(tailCmd)
	return cmd
}

// tailEvents writes one line per message until ctx ends or limit messages
// were printed. A zero hospitalID or limit means no filter.
func tailEvents(ctx context.Context, sub messaging.Subscriber, channel string, hospitalID int64, limit int, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs, err := sub.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	printed := 0
	for msg := range msgs {
		if hospitalID != 0 && msg.HospitalID != hospitalID {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\thospital=%d\t%s\t%s\n",
			msg.OccurredAt.Format(time.RFC3339), msg.Type, msg.HospitalID, msg.ID, msg.Payload)
		printed++
		if limit > 0 && printed >= limit {
			return nil
		}
	}
	return ctx.Err()
}
