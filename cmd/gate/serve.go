package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/httpapi"
	"github.com/gatehouse/gatehouse/internal/notify"
	"github.com/gatehouse/gatehouse/internal/notify/calendar"
	"github.com/gatehouse/gatehouse/internal/notify/discord"
	"github.com/gatehouse/gatehouse/internal/notify/slack"
	"github.com/gatehouse/gatehouse/internal/storage"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Gatehouse API server",
		Long:  "Serves the HTTP API and runs the notification scheduler until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	gdb, cfg, err := connect(cmd, configPath)
	if err != nil {
		return err
	}

	store, err := storage.NewDisk(cfg.Storage.Dir)
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
		fmt.Fprintln(out, "Slack notifications enabled")
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
		fmt.Fprintln(out, "Discord notifications enabled")
	}

	var cal *calendar.Client
	if cfg.Calendar.CalendarID != "" {
		cal, err = calendar.New(calendar.Opts{
			CalendarID:   cfg.Calendar.CalendarID,
			ClientID:     cfg.Calendar.ClientID,
			ClientSecret: cfg.Calendar.ClientSecret,
			RefreshToken: cfg.Calendar.RefreshToken,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Calendar invites enabled")
	}

	var limiter httpapi.Limiter
	if cfg.HTTP.RateLimit.Addr != "" {
		limiter = httpapi.NewRedisLimiter(redis.NewClient(&redis.Options{
			Addr: cfg.HTTP.RateLimit.Addr,
		}))
		fmt.Fprintf(out, "Rate limiting via Redis at %s\n", cfg.HTTP.RateLimit.Addr)
	}

	flusher := notify.NewFlusher(gdb, senders...)
	lead := time.Duration(cfg.Booking.ReminderLeadHours) * time.Hour
	sched, err := notify.NewScheduler(gdb, flusher, cfg.Notify.FlushSchedule, lead)
	if err != nil {
		return err
	}

	srv, err := httpapi.New(httpapi.Opts{
		DB:       gdb,
		Config:   cfg,
		Limiter:  limiter,
		Store:    store,
		Calendar: cal,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start()
	defer sched.Stop()

	return srv.Start(ctx, out)
}
