package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"chore-planner/internal/bot"
	"chore-planner/internal/config"
	"chore-planner/internal/logger"
	"chore-planner/internal/notify"
	"chore-planner/internal/prefs"
	"chore-planner/internal/repository"
	"chore-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync(zlog)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("open database", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	prefsStore, err := prefs.NewStore(cfg.PrefsPath)
	if err != nil {
		zlog.Fatal("open preferences", zap.Error(err))
	}

	taskRepo := repository.NewTaskRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	logRepo := repository.NewLogRepository(db)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		zlog.Fatal("create bot api", zap.Error(err))
	}
	zlog.Info("bot authorized", zap.String("account", api.Self.UserName))

	notifier := notify.NewTelegramNotifier(api, cfg.ChatID, zlog)
	notifier.Start()
	defer notifier.Stop()

	reminderSvc := service.NewReminderService(notifier, prefsStore, zlog)
	taskSvc := service.NewTaskService(taskRepo, logRepo, reminderSvc, zlog)
	routineSvc := service.NewRoutineService(taskRepo)
	historySvc := service.NewHistoryService(logRepo)
	locationSvc := service.NewLocationService(locationRepo)
	settingsSvc := service.NewSettingsService(taskRepo, reminderSvc, func(ctx context.Context) error {
		return repository.Reset(db.WithContext(ctx))
	}, zlog)

	// In-process reminder timers are lost on restart; rebuild them from
	// the database before taking traffic.
	if err := taskSvc.SyncReminders(ctx, time.Now()); err != nil {
		zlog.Warn("initial reminder sync", zap.Error(err))
	}

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleEvery(cfg.SyncInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := taskSvc.SyncReminders(jobCtx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Warn("periodic reminder sync", zap.Error(err))
		}
	}); err != nil {
		zlog.Fatal("schedule reminder sync", zap.Error(err))
	}
	// Due states roll over at midnight; rearm right away instead of
	// waiting out the interval.
	if _, err := scheduler.ScheduleDaily(0, 5, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := taskSvc.SyncReminders(jobCtx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Warn("midnight reminder sync", zap.Error(err))
		}
	}); err != nil {
		zlog.Fatal("schedule midnight sync", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	telegramBot := bot.New(api, notifier, prefsStore, taskSvc, routineSvc, historySvc, locationSvc, settingsSvc, cfg.ChatID, zlog)

	zlog.Info("chore planner started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Fatal("bot stopped", zap.Error(err))
	}
	zlog.Info("shutdown complete")
}
