package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/schedly/exam-scheduler/internal/app"
	"github.com/schedly/exam-scheduler/internal/config"
	"github.com/schedly/exam-scheduler/internal/httpapi"
	"github.com/schedly/exam-scheduler/internal/notify"
	"github.com/schedly/exam-scheduler/internal/repository"
	"github.com/schedly/exam-scheduler/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	// Repositories
	roomRepo := repository.NewClassroomRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	requestRepo := repository.NewExamRequestRepository(pool)

	// External collaborators
	directory := service.NewDirectoryHTTPClient(cfg.DirectoryBaseURL, service.DefaultDirectoryHTTPClient())
	notifier := buildNotifier(cfg, logger)

	// Core services
	ledger := service.NewPostgresSlotLedger(pool, roomRepo, logger)
	examSvc := service.NewExamService(ledger, examRepo, roomRepo, directory, logger)
	requestSvc := service.NewRequestService(requestRepo, examSvc, roomRepo, directory, notifier, logger)

	reaper := app.NewReaper(examSvc, notifier, cfg.ReaperInterval, cfg.ReminderHour, logger)
	reaper.Start(ctx)
	defer reaper.Stop()

	server := httpapi.NewServer(&httpapi.Options{
		Address:    cfg.HTTPAddr,
		Bookings:   ledger,
		Exams:      examSvc,
		Requests:   requestSvc,
		Classrooms: roomRepo,
		Logger:     logger,
	})

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.HTTPAddr))
		if err := server.Start(); err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop HTTP server cleanly", zap.Error(err))
	}
}

// buildNotifier assembles the configured notification gateways. Email goes
// through SendGrid when a key is present; a telegram announcement channel is
// added when configured; the console notifier is the development fallback.
func buildNotifier(cfg *config.Config, logger *zap.Logger) notify.Notifier {
	var gateways notify.Multi

	if cfg.SendgridAPIKey != "" && cfg.EmailFrom != "" {
		gateways = append(gateways, notify.NewSendgridNotifier(cfg.SendgridAPIKey, cfg.EmailFrom, cfg.EmailFromName, logger))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Error("Failed to init telegram notifier", zap.Error(err))
		} else {
			gateways = append(gateways, tg)
		}
	}
	if len(gateways) == 0 {
		return notify.NewConsoleNotifier(logger)
	}
	return gateways
}
