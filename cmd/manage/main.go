package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/accounts/cmd/manage/cmd"
	"github.com/templui/accounts/internal/config"
	"github.com/templui/accounts/internal/logger"
)

func main() {
	cfg := config.LoadDatabase()
	logger.Init(cfg.AppName, cfg.IsDevelopment(), "")

	opts := &cmd.DBOptions{}

	rootCmd := &cobra.Command{
		Use:           "manage",
		Short:         "Administrative tasks for the accounts service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.Driver, "db-driver", cfg.DBDriver, "database driver (sqlite or pgx), defaults to DB_DRIVER")
	rootCmd.PersistentFlags().StringVar(&opts.Connection, "db-connection", cfg.DBConnection, "database connection string, defaults to DB_CONNECTION")

	rootCmd.AddCommand(cmd.MigrateCmd(opts))
	rootCmd.AddCommand(cmd.CreateSuperuserCmd(opts))
	rootCmd.AddCommand(cmd.UsersCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
