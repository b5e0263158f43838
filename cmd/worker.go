/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/libris-lms/apiserver/config"
	"github.com/libris-lms/apiserver/internal/db"
	"github.com/libris-lms/apiserver/internal/logging"
	"github.com/libris-lms/apiserver/internal/mq"
	"github.com/libris-lms/apiserver/internal/store"
	"github.com/libris-lms/apiserver/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes due-date reminders",
	Long: `Consumes due-date reminder messages from the configured broker and hands
the rendered reminders to the notification sender. Usage:

	library worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()
		logger := logging.New(cfg)

		if cfg.MQ.Backend == mq.BackendMemory {
			return errors.New("the memory broker is consumed inside the server process")
		}

		queue, err := mq.NewFromConfig(ctx, cfg.MQ)
		if errors.Is(err, mq.ErrDisabled) {
			return errors.New("worker requires MQ_BACKEND to be rabbitmq or pubsub")
		}
		if err != nil {
			return err
		}
		defer queue.Close()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		w := worker.NewReminderWorker(
			queue,
			cfg.Lending.ReminderChannel,
			store.NewBorrowRepository(dbConn),
			store.NewUserRepository(dbConn),
			worker.NewLogSender(logger),
			logger,
		)
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
