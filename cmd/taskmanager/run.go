package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"task-manager/internal/bot"
	"task-manager/internal/notify"
	"task-manager/internal/recurrence"
	"task-manager/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Telegram bot, reminders and the daily recurrence pass",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.cfg.RequireTelegram(); err != nil {
		return err
	}

	center := notify.NewCenter(a.loc, a.log)
	tasks := service.NewTaskService(a.repo, center, a.loc)
	agenda := service.NewAgendaService(tasks)

	telegramBot, err := bot.New(a.cfg, bot.Services{
		Tasks:      tasks,
		Stats:      service.NewStatsService(a.repo, a.loc),
		Categories: service.NewCategoryService(a.repo),
		Agenda:     agenda,
	}, a.log)
	if err != nil {
		return err
	}
	center.SetSender(telegramBot)
	go center.Run(ctx)

	if n, err := tasks.RescheduleAll(ctx); err != nil {
		a.log.Error().Err(err).Msg("restore reminders")
	} else {
		a.log.Info().Int("tasks", n).Msg("reminders restored")
	}

	recur := service.NewRecurrenceService(a.repo, recurrence.NewEngine(a.loc), center, a.log)
	if _, err := recur.Run(ctx, time.Now()); err != nil {
		a.log.Error().Err(err).Msg("startup recurrence pass")
	}

	scheduler := service.NewSchedulerService(a.loc, a.log)
	if _, err := scheduler.ScheduleDaily("recurrence", a.cfg.RecurrenceTime, func(ctx context.Context) error {
		_, err := recur.Run(ctx, time.Now())
		return err
	}); err != nil {
		return err
	}
	if _, err := scheduler.ScheduleInterval("reminders", a.cfg.ReminderPoll, func(ctx context.Context) error {
		center.Dispatch(ctx, time.Now())
		return nil
	}); err != nil {
		return err
	}
	if a.cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval("report", a.cfg.ReportInterval, telegramBot.SendDailyReports); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	a.log.Info().Msg("task manager started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info().Msg("shutdown complete")
	return nil
}
