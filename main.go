package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/pocketlog/internal/api"
	"github.com/pathakanu/pocketlog/internal/config"
	"github.com/pathakanu/pocketlog/internal/database"
	"github.com/pathakanu/pocketlog/internal/expense"
	"github.com/pathakanu/pocketlog/internal/notify"
	myopenai "github.com/pathakanu/pocketlog/internal/openai"
	"github.com/pathakanu/pocketlog/internal/reminder"
	"github.com/pathakanu/pocketlog/internal/store"
	"github.com/pathakanu/pocketlog/internal/timer"
	"github.com/pathakanu/pocketlog/internal/todo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("config load failed", zap.Error(err))
	}

	logger := zap.Must(newLogger(cfg.LogLevel))
	zap.ReplaceGlobals(logger)
	defer func() { _ = logger.Sync() }()

	if err := cfg.ResolveTimezone(); err != nil {
		logger.Warn("config: defaulting to system local timezone", zap.Error(err))
	}

	db, err := database.New(cfg, logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("database close", zap.Error(err))
		}
	}()

	records := store.New(db)
	inbox := notify.NewInbox(db)
	presenters := notify.Multi{inbox}
	if cfg.WhatsAppEnabled() {
		presenters = append(presenters, notify.NewWhatsApp(
			cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, cfg.ReminderWhatsAppTo, logger))
		logger.Info("reminders: WhatsApp delivery enabled")
	}

	var composer reminder.Composer
	if openAIClient := myopenai.New(cfg.OpenAIAPIKey); openAIClient.Enabled() {
		composer = openAIClient
	}
	dispatcher := reminder.New(presenters, composer, records, cfg.LocalTimezone, logger)

	timers := timer.New(db, timer.Options{
		SweepSpec: cfg.SweepSpec,
		Location:  cfg.LocalTimezone,
	}, logger)
	if err := timers.Start(context.Background(), dispatcher.Handler()); err != nil {
		logger.Fatal("timer start", zap.Error(err))
	}

	router := api.NewRouter(api.Deps{
		ToDos:         todo.NewController(records, timers, time.Now, logger),
		Expenses:      expense.NewService(records, time.Now),
		Storage:       records,
		Notifications: inbox,
	}, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	waitForShutdown(server, timers, logger)
}

func waitForShutdown(server *http.Server, timers *timer.Service, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	timers.Stop()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
