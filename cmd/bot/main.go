// Package main contains the entrypoint for the ride announcement bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/veloclub/ridebot/internal/bot"
	"github.com/veloclub/ridebot/internal/bot/handlers"
	"github.com/veloclub/ridebot/internal/bot/tasks"
	"github.com/veloclub/ridebot/internal/broadcast"
	"github.com/veloclub/ridebot/internal/card"
	"github.com/veloclub/ridebot/internal/config"
	"github.com/veloclub/ridebot/internal/database"
	"github.com/veloclub/ridebot/internal/logger"
	"github.com/veloclub/ridebot/internal/ride"
	"github.com/veloclub/ridebot/internal/telegram"
	"github.com/veloclub/ridebot/internal/wizard"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	rides := ride.NewService(store, log)
	tracker := ride.NewTracker(store, log)
	renderer := card.NewRenderer(cfg.Broadcast.DateLayout)
	sessions := wizard.NewSessionStore(cfg.Wizard.SessionTTL, log)

	// The default handler feeds text into the wizard, but the wizard needs
	// the broadcaster, which needs the bot instance. The bot is created with
	// a deferred handler that is assigned once the wiring below is complete.
	var wizardInput tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if wizardInput != nil {
				wizardInput(ctx, b, update)
			}
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	gateway := telegram.NewGateway(tg, log)
	broadcaster := broadcast.NewBroadcaster(store, gateway, renderer, log, cfg.Broadcast.MaxParallel)
	wiz := wizard.New(sessions, rides, broadcaster, log)

	hDeps := handlers.HandlerDeps{
		Logger:      log,
		Config:      cfg,
		Rides:       rides,
		Tracker:     tracker,
		Broadcaster: broadcaster,
		Wizard:      wiz,
	}
	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Sessions: sessions,
		Config:   cfg,
	}
	wizardInput = handlers.NewWizardInputHandler(hDeps)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, db, store, tg, sched)

	log.Info("Starting bot")
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully")
	time.Sleep(time.Second)
	return 0
}
