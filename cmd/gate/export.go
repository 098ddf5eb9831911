package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v3"

	"github.com/gatehouse/gatehouse/internal/cycle"
	"github.com/gatehouse/gatehouse/internal/export"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export workbooks for the active cycle",
	}

	cmd.AddCommand(newExportRankingCmd())
	cmd.AddCommand(newExportApplicantsCmd())
	cmd.AddCommand(newExportDecisionsCmd())
	return cmd
}

func saveWorkbook(cmd *cobra.Command, file *xlsx.File, outPath, prefix string) error {
	if outPath == "" {
		outPath = export.Filename(prefix)
	}
	if err := file.Save(outPath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
	return nil
}

func newExportRankingCmd() *cobra.Command {
	var configPath, outPath string

	cmd := &cobra.Command{
		Use:   "ranking <phase>",
		Short: "Export the latest ranking for a phase",
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
			file, err := export.Ranking(gdb, cy.ID, args[0])
			if err != nil {
				return err
			}
			return saveWorkbook(cmd, file, outPath, "ranking")
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: timestamped name)")
	return cmd
}

func newExportApplicantsCmd() *cobra.Command {
	var configPath, outPath string

	cmd := &cobra.Command{
		Use:   "applicants",
		Short: "Export all applicants with their answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			cy, err := cycle.Active(gdb)
			if err != nil {
				return err
			}
			file, err := export.Applicants(gdb, cy.ID)
			if err != nil {
				return err
			}
			return saveWorkbook(cmd, file, outPath, "applicants")
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: timestamped name)")
	return cmd
}

func newExportDecisionsCmd() *cobra.Command {
	var configPath, outPath string

	cmd := &cobra.Command{
		Use:   "decisions <phase>",
		Short: "Export the cutoff audit trail for a phase",
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
			file, err := export.Decisions(gdb, cy.ID, args[0])
			if err != nil {
				return err
			}
			return saveWorkbook(cmd, file, outPath, "decisions")
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: timestamped name)")
	return cmd
}
