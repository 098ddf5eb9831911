package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/booking"
	"github.com/gatehouse/gatehouse/internal/cycle"
)

func newSlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Interview and coffee chat slot management",
	}

	cmd.AddCommand(newSlotBulkCmd())
	return cmd
}

func newSlotBulkCmd() *cobra.Command {
	var (
		configPath string
		kind       string
		first      string
		count      int
		duration   int
		capacity   int
		hostName   string
		hostEmail  string
		location   string
		meetingURL string
		track      string
	)

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Create a run of back-to-back slots",
		Long:  "Creates count consecutive slots starting at --first, each --duration minutes long.",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(time.RFC3339, first)
			if err != nil {
				return fmt.Errorf("parse --first: %w", err)
			}

			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			cy, err := cycle.Active(gdb)
			if err != nil {
				return err
			}
			slots, err := booking.BulkCreateSlots(gdb, booking.SlotOpts{
				CycleID:         cy.ID,
				Kind:            kind,
				StartTime:       start,
				DurationMinutes: duration,
				MaxBookings:     capacity,
				HostName:        hostName,
				HostEmail:       hostEmail,
				Location:        location,
				MeetingURL:      meetingURL,
				ForTrack:        track,
			}, start, count)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %d %s slots:\n", len(slots), kind)
			for _, sl := range slots {
				fmt.Fprintf(out, "  %s  %s\n", sl.ID, sl.StartTime.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	cmd.Flags().StringVar(&kind, "kind", "", "slot kind (coffee_chat, interview_round1, interview_round2)")
	cmd.Flags().StringVar(&first, "first", "", "start time of the first slot (RFC 3339)")
	cmd.Flags().IntVar(&count, "count", 1, "number of consecutive slots")
	cmd.Flags().IntVar(&duration, "duration", 30, "slot length in minutes")
	cmd.Flags().IntVar(&capacity, "capacity", 1, "max bookings per slot")
	cmd.Flags().StringVar(&hostName, "host", "", "host display name")
	cmd.Flags().StringVar(&hostEmail, "host-email", "", "host email")
	cmd.Flags().StringVar(&location, "location", "", "physical location")
	cmd.Flags().StringVar(&meetingURL, "url", "", "meeting URL")
	cmd.Flags().StringVar(&track, "track", "", "restrict to one track (empty = any)")
	cmd.MarkFlagRequired("kind")
	cmd.MarkFlagRequired("first")
	return cmd
}
