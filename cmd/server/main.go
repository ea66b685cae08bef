package main

import (
	"fmt"
	"os"

	"doc-tracker/pkg/config"
	"doc-tracker/pkg/db"
	"doc-tracker/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctrack",
		Short:         "Document share tracking and owner notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 初始化配置
			if err := config.Init(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg := config.GlobalConfig
			if err := logger.InitLogger(cfg.Log.Level, cfg.Log.Production); err != nil {
				return err
			}
			// 初始化数据库连接
			if err := db.InitDB(cfg.Database); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newWorkerCommand())
	cmd.AddCommand(newTokenCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var withWorkers bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the tracking and analytics HTTP server.

With the channel queue provider notifications are always sent in-process.
With kafka or rabbitmq the sending workers run in a separate "worker"
process unless --with-workers is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), withWorkers)
		},
	}
	cmd.Flags().BoolVar(&withWorkers, "with-workers", false, "also consume the notification queue in this process")
	return cmd
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume the notification queue and deliver to channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func newTokenCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an analytics API token for a document owner",
		Example: `  doctrack token --email owner@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return issueToken(cmd, email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "owner email (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
