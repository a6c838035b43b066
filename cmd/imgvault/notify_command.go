package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"imgvault/internal/logging"
	"imgvault/internal/notifications"
)

const notifyTimeout = 15 * time.Second

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage ntfy alerts",
	}
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification to the configured topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg)
			if !notifications.Enabled(svc) {
				return errors.New("notifications.ntfy_topic is not set")
			}
			sendCtx, cancel := context.WithTimeout(cmd.Context(), notifyTimeout)
			defer cancel()
			if err := svc.TestNotification(sendCtx); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	})
	return notifyCmd
}

// notifyBulk reports a finished bulk run. Delivery failures are logged and
// never change the command result.
func (c *commandContext) notifyBulk(parent context.Context, run notifications.BulkRun) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return
	}
	svc := notifications.NewService(cfg)
	if !notifications.Enabled(svc) {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), notifyTimeout)
	defer cancel()
	if err := svc.NotifyBulkCompleted(sendCtx, run); err != nil {
		logging.WarnWithContext(c.cliLogger(), "bulk completion notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run imgvault notify test"),
		)
	}
}
