package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billing_collections/internal/app"
	domainTelegram "billing_collections/internal/domain/telegram"
	"billing_collections/internal/infra/config"
	idb "billing_collections/internal/infra/database"
	"billing_collections/internal/infra/httpapi"
	"billing_collections/internal/infra/logger"
	"billing_collections/internal/infra/metrics"
	"billing_collections/internal/infra/scheduler"
	"billing_collections/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"timezone":    cfg.Location.String(),
		"locale":      cfg.Locale,
	}).Info("Configuration loaded")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(context.Background(), cfg.DatabaseURL, idb.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		mainLogger.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	if cfg.MigrateOnStart {
		if err := idb.Migrate(db); err != nil {
			mainLogger.Fatalf("Could not apply migrations: %v", err)
		}
		mainLogger.Info("Database migrations applied.")
	}

	// Initialize Repositories
	txManager := idb.NewTxManager(db)
	clientRepo := idb.NewPostgresClientRepository(db)
	contractRepo := idb.NewPostgresContractRepository(db)
	reminderRepo := idb.NewPostgresReminderRepository(db)
	paymentRepo := idb.NewPostgresPaymentRepository(db)
	conciliationRepo := idb.NewPostgresConciliationRepository(db)
	settingsRepo := idb.NewPostgresSettingsRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(db, "billing"))
	m := metrics.New(registry)

	// Optional Telegram bot: reminder dispatch and admin review
	var bot *telebot.Bot
	var messenger domainTelegram.Client
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.Fatalf("Could not create Telegram bot: %v", err)
		}
		messenger = telegram.NewTelebotAdapter(bot)
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN not set, bot and reminder dispatch disabled")
	}

	// Initialize Services
	sendAt := app.SendTime{Hour: cfg.SendHour, Minute: cfg.SendMinute}
	reminderScheduler := app.NewReminderScheduler(txManager, contractRepo, reminderRepo, sendAt, cfg.Location, m, logger.Component("reminder_scheduler"))
	settlementService := app.NewSettlementService(txManager, reminderRepo, paymentRepo, reminderScheduler, cfg.Location, m, logger.Component("settlement"))
	clientService := app.NewClientService(clientRepo, logger.Component("clients"))
	contractService := app.NewContractService(txManager, clientRepo, contractRepo, reminderRepo, reminderScheduler, cfg.Location, logger.Component("contracts"))
	paymentService := app.NewPaymentService(txManager, clientRepo, contractRepo, reminderRepo, paymentRepo, conciliationRepo, settlementService, logger.Component("payments"))
	conciliationService := app.NewConciliationService(txManager, conciliationRepo, paymentRepo, settlementService, m, logger.Component("conciliations"))
	dispatchService := app.NewDispatchService(clientRepo, contractRepo, reminderRepo, settingsRepo, messenger, cfg.Locale, cfg.DispatchLookahead, m, logger.Component("dispatch"))

	// Cron jobs
	var dispatcher scheduler.Dispatcher
	if messenger != nil {
		dispatcher = dispatchService
	}
	cronScheduler := scheduler.NewCollectionsScheduler(
		dispatcher,
		conciliationService,
		logger.Component("scheduler"),
		cfg.Location,
		cfg.CronSpecDispatch,
		cfg.CronSpecSettlementRetry,
		time.Duration(cfg.SettlementRetryWindowDays)*24*time.Hour,
	)
	if err := cronScheduler.Start(); err != nil {
		mainLogger.Fatalf("Could not start scheduler: %v", err)
	}

	// HTTP API
	apiServer := httpapi.NewServer(httpapi.Services{
		Clients:       clientService,
		Contracts:     contractService,
		Payments:      paymentService,
		Conciliations: conciliationService,
		Dispatch:      dispatchService,
	}, registry, logger.Component("http"))
	httpServer := apiServer.HTTPServer(cfg.HTTPAddr)
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if bot != nil {
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(bot, cfg, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot, conciliationService, paymentService, cfg.AdminTelegramID, botLogger)
		telegram.RegisterReviewCallbackHandlers(ctx, bot, conciliationService, cfg.AdminTelegramID, botLogger)
		mainLogger.Info("Telegram handlers registered.")
		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}

	mainLogger.Info("Application setup complete.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	cancel()
	if bot != nil {
		bot.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("HTTP server shutdown failed")
	}
	cronScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
