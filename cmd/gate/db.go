package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/db"
)

const defaultConfigPath = "gatehouse.yaml"

// loadConfig reads the config file and, when the DB password is absent
// and stdin is a terminal, prompts for it without echo.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Password == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprintf(cmd.OutOrStdout(), "Password for %s@%s: ", cfg.DB.User, cfg.DB.Host)
		pw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		cfg.DB.Password = string(pw)
	}
	return cfg, nil
}

func connect(cmd *cobra.Command, path string) (*gorm.DB, *config.Config, error) {
	cfg, err := loadConfig(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return gdb, cfg, nil
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Gatehouse database",
		Long:  "Creates the database if missing and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config for org %q from %s\n", cfg.Org, configPath)

	adminDB, err := db.ConnectAdmin(cfg.DB)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to MySQL at %s:%d\n", cfg.DB.Host, cfg.DB.Port)

	if err := db.CreateDatabase(adminDB, cfg.DB.Database); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %s ready\n", cfg.DB.Database)

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nGatehouse database initialized successfully.")
	return nil
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema changes to an existing database",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, _, err := connect(cmd, configPath)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gdb); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(db.AllModels()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	return cmd
}
