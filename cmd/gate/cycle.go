package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/cycle"
)

func newCycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Recruitment cycle management",
	}

	cmd.AddCommand(newCycleListCmd())
	cmd.AddCommand(newCycleCreateCmd())
	cmd.AddCommand(newCycleActivateCmd())
	cmd.AddCommand(newCycleDeleteCmd())
	return cmd
}

func newCycleListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all recruitment cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			cycles, err := cycle.List(gdb)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cycles) == 0 {
				fmt.Fprintln(out, "No cycles.")
				return nil
			}
			for _, cy := range cycles {
				marker := " "
				if cy.IsActive {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s  (%s)  due %s\n",
					marker, cy.ID, cy.Name, cy.Slug,
					cy.ApplicationDueAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}

func newCycleCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		slug       string
		openAt     string
		dueAt      string
		closeAt    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recruitment cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			open, err := time.Parse(time.RFC3339, openAt)
			if err != nil {
				return fmt.Errorf("parse --open: %w", err)
			}
			due, err := time.Parse(time.RFC3339, dueAt)
			if err != nil {
				return fmt.Errorf("parse --due: %w", err)
			}
			end, err := time.Parse(time.RFC3339, closeAt)
			if err != nil {
				return fmt.Errorf("parse --close: %w", err)
			}

			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			cy, err := cycle.Create(gdb, cycle.CreateOpts{
				Name:             name,
				Slug:             slug,
				PortalOpenAt:     open,
				ApplicationDueAt: due,
				PortalCloseAt:    end,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created cycle %s (%s)\n", cy.Name, cy.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	cmd.Flags().StringVar(&name, "name", "", "cycle display name")
	cmd.Flags().StringVar(&slug, "slug", "", "cycle slug (unique)")
	cmd.Flags().StringVar(&openAt, "open", "", "portal open time (RFC 3339)")
	cmd.Flags().StringVar(&dueAt, "due", "", "application deadline (RFC 3339)")
	cmd.Flags().StringVar(&closeAt, "close", "", "portal close time (RFC 3339)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("slug")
	cmd.MarkFlagRequired("open")
	cmd.MarkFlagRequired("due")
	cmd.MarkFlagRequired("close")
	return cmd
}

func newCycleActivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "activate <cycle-id>",
		Short: "Make a cycle the single active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse cycle id: %w", err)
			}
			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			if err := cycle.SetActive(gdb, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cycle %s is now active\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}

func newCycleDeleteCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "delete <cycle-id>",
		Short: "Delete a cycle and, after confirmation, everything in it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycleDelete(cmd, configPath, args[0], yes)
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runCycleDelete(cmd *cobra.Command, configPath, rawID string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("parse cycle id: %w", err)
	}
	gdb, _, err := connect(cmd, configPath)
	if err != nil {
		return err
	}

	// First attempt without cascade: an empty cycle deletes outright.
	err = cycle.Delete(gdb, id, skipConfirm)
	if err == nil {
		fmt.Fprintf(out, "Deleted cycle %s\n", id)
		return nil
	}
	var dep *apperr.DependencyError
	if !errors.As(err, &dep) {
		return err
	}

	if !confirmCascade(cmd, dep.Summary) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}
	if err := cycle.Delete(gdb, id, true); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted cycle %s and all dependents\n", id)
	return nil
}

func confirmCascade(cmd *cobra.Command, summary []string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintln(out, "WARNING: This will permanently delete:")
	for _, s := range summary {
		fmt.Fprintf(out, "  - %s\n", s)
	}
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
