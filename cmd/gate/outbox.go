package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/notify"
	"github.com/gatehouse/gatehouse/internal/notify/discord"
	"github.com/gatehouse/gatehouse/internal/notify/slack"
)

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Notification outbox management",
	}

	cmd.AddCommand(newOutboxFlushCmd())
	cmd.AddCommand(newOutboxRemindCmd())
	return cmd
}

func newOutboxFlushCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Deliver pending notifications once",
		Long:  "Runs one flush pass over the outbox using the channels configured in the config file. Useful when the serve scheduler is not running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, cfg, err := connect(cmd, configPath)
			if err != nil {
				return err
			}

			var senders []notify.Sender
			if cfg.Notify.Slack.BotToken != "" {
				s, err := slack.New(slack.Opts{
					BotToken:  cfg.Notify.Slack.BotToken,
					ChannelID: cfg.Notify.Slack.ChannelID,
				})
				if err != nil {
					return err
				}
				senders = append(senders, s)
			}
			if cfg.Notify.Discord.BotToken != "" {
				d, err := discord.New(discord.Opts{
					BotToken:  cfg.Notify.Discord.BotToken,
					ChannelID: cfg.Notify.Discord.ChannelID,
				})
				if err != nil {
					return err
				}
				senders = append(senders, d)
			}

			res, err := notify.NewFlusher(gdb, senders...).Flush(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flushed outbox: %d sent, %d failed\n", res.Sent, res.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}

func newOutboxRemindCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Enqueue reminders for upcoming bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, cfg, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			lead := time.Duration(cfg.Booking.ReminderLeadHours) * time.Hour
			n, err := notify.EnqueueSlotReminders(gdb, lead)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d reminders (lead %s)\n", n, lead)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}
