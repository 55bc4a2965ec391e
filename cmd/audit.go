/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"github.com/jjudge-oj/gatekeeper/internal/mq"
	"github.com/jjudge-oj/gatekeeper/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Work with audit events",
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the audit channel and log each event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_DRIVER is none; nothing to tail")
		}
		defer broker.Close()

		log := logger.Named("audit")
		log.Info("tailing audit events", zap.String("driver", broker.Driver()), zap.String("channel", cfg.MQ.AuditChannel))

		err = broker.Subscribe(ctx, cfg.MQ.AuditChannel, func(ctx context.Context, msg mq.Message) error {
			event, err := services.DecodeAuditEvent(msg.Data)
			if err != nil {
				// Unparseable payloads are dropped rather than requeued forever.
				log.Warn("skipping malformed audit event", zap.String("id", msg.ID), zap.Error(err))
				return nil
			}
			log.Info(event.Type,
				zap.String("id", msg.ID),
				zap.String("actor_id", event.ActorID),
				zap.String("user_id", event.UserID),
				zap.String("role", event.Role),
				zap.String("permission", event.Permission),
				zap.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditTailCmd)
}
