package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"srs-planner/internal/bot"
	"srs-planner/internal/logging"
	"srs-planner/internal/service"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile, debugMode)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.RequireTelegram(); err != nil {
				return err
			}
			api, err := tgbotapi.NewBotAPI(a.cfg.Telegram.Token)
			if err != nil {
				return fmt.Errorf("create bot api: %w", err)
			}
			a.logger.Info("bot authorized", "account", api.Self.UserName)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logging.ContextWithLogger(ctx, a.logger)

			fanout, closeChannels := a.fanout(api)
			defer closeChannels()
			dispatch := a.dispatcher(fanout)

			scheduler := service.NewSchedulerService(time.UTC, a.logger)
			if _, err := scheduler.Schedule(a.cfg.Dispatch.Schedule, dispatch.Job(ctx, time.Now)); err != nil {
				return fmt.Errorf("schedule dispatch scan: %w", err)
			}
			if _, err := scheduler.ScheduleDaily(a.cfg.Dispatch.PruneAt, func() {
				if _, err := dispatch.PruneLogs(ctx, time.Now()); err != nil {
					a.logger.Error("prune dispatch logs", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("schedule log pruning: %w", err)
			}
			scheduler.Start()
			defer scheduler.Stop()

			a.logger.Info("srs planner started",
				"channels", fanout.Names(),
				"schedule", a.cfg.Dispatch.Schedule)

			if err := bot.New(api, a.botServices(), a.logger).Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("bot stopped with error: %w", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		},
	}
}
