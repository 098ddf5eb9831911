package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/cutoff"
	"github.com/gatehouse/gatehouse/internal/cycle"
	"github.com/gatehouse/gatehouse/internal/ranking"
)

func newRankingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Phase ranking management",
	}

	cmd.AddCommand(newRankingGenerateCmd())
	cmd.AddCommand(newRankingShowCmd())
	return cmd
}

func newRankingGenerateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "generate <phase>",
		Short: "Generate a fresh ranking for a phase of the active cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			cy, err := cycle.Active(gdb)
			if err != nil {
				return err
			}
			gen, err := ranking.Generate(gdb, cy.ID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s ranking: %d applicants\n",
				gen.Phase, len(gen.Entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}

func newRankingShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <phase>",
		Short: "Print the latest ranking for a phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			cy, err := cycle.Active(gdb)
			if err != nil {
				return err
			}
			gen, err := ranking.Latest(gdb, cy.ID, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s ranking generated %s\n", gen.Phase,
				gen.GeneratedAt.Format("2006-01-02 15:04"))
			for _, e := range gen.Entries {
				score := fmt.Sprintf("%.2f", e.Score)
				if e.Unscored {
					score = "unscored"
				}
				fmt.Fprintf(out, "%4d  %-12s  %-8s  %s\n", e.Rank, e.Track, score, e.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}

// cutoffFile is the JSON document accepted by `gate cutoff apply`.
type cutoffFile struct {
	Criteria map[string]struct {
		TopN     int      `json:"top_n"`
		MinScore *float64 `json:"min_score"`
	} `json:"criteria"`
	Overrides []struct {
		ApplicationID string `json:"application_id"`
		Action        string `json:"action"`
		Reason        string `json:"reason"`
	} `json:"overrides"`
}

func newCutoffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cutoff",
		Short: "Cutoff decision management",
	}

	cmd.AddCommand(newCutoffApplyCmd())
	return cmd
}

func newCutoffApplyCmd() *cobra.Command {
	var (
		configPath   string
		criteriaPath string
		decidedBy    string
		notify       bool
	)

	cmd := &cobra.Command{
		Use:   "apply <phase>",
		Short: "Apply a cutoff to a phase of the active cycle",
		Long:  "Reads per-track criteria and overrides from a JSON file, then advances or rejects every ranked applicant in one transaction.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(criteriaPath)
			if err != nil {
				return fmt.Errorf("read criteria: %w", err)
			}
			var cf cutoffFile
			if err := json.Unmarshal(data, &cf); err != nil {
				return fmt.Errorf("parse criteria: %w", err)
			}

			criteria := make(map[string]cutoff.Criteria, len(cf.Criteria))
			for track, cr := range cf.Criteria {
				criteria[track] = cutoff.Criteria{TopN: cr.TopN, MinScore: cr.MinScore}
			}
			overrides := make([]cutoff.Override, 0, len(cf.Overrides))
			for _, o := range cf.Overrides {
				appID, err := uuid.Parse(o.ApplicationID)
				if err != nil {
					return fmt.Errorf("parse override application id %q: %w", o.ApplicationID, err)
				}
				overrides = append(overrides, cutoff.Override{
					ApplicationID: appID,
					Action:        o.Action,
					Reason:        o.Reason,
				})
			}

			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			cy, err := cycle.Active(gdb)
			if err != nil {
				return err
			}
			res, err := cutoff.Apply(gdb, cutoff.ApplyOpts{
				CycleID:           cy.ID,
				Phase:             args[0],
				Criteria:          criteria,
				Overrides:         overrides,
				SendNotifications: notify,
				DecidedBy:         decidedBy,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Cutoff applied: %d advanced to %s, %d rejected, %d overrides\n",
				res.Advanced, res.NextStage, res.Rejected, res.Overrides)
			return nil
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	cmd.Flags().StringVar(&criteriaPath, "criteria", "", "path to criteria JSON file")
	cmd.Flags().StringVar(&decidedBy, "by", "", "email of the deciding admin, recorded in the audit trail")
	cmd.Flags().BoolVar(&notify, "notify", false, "enqueue outcome notifications")
	cmd.MarkFlagRequired("criteria")
	cmd.MarkFlagRequired("by")
	return cmd
}
