/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paneladmin/apiserver/config"
	"github.com/paneladmin/apiserver/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect panel user change events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log panel user events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.NewBackend(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect events backend: %w", err)
		}
		if backend == nil {
			return errors.New("events backend is disabled; set EVENTS_BACKEND")
		}

		events := mq.NewUserEvents(backend, cfg.Events.Channel)
		defer events.Close()

		log.Info("tailing events", zap.String("channel", cfg.Events.Channel))
		return events.Tail(ctx, func(event mq.UserEvent) {
			log.Info("panel user event",
				zap.String("id", event.ID),
				zap.String("type", event.Type),
				zap.Int("user_id", event.UserID),
				zap.Time("occurred_at", event.OccurredAt),
				zap.Duration("lag", time.Since(event.OccurredAt)),
			)
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
