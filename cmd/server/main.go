package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/service"
	"github.com/expenseflow/backend/internal/application/workflow"
	"github.com/expenseflow/backend/internal/config"
	"github.com/expenseflow/backend/internal/infrastructure/external/exchange"
	"github.com/expenseflow/backend/internal/infrastructure/persistence/repository"
	"github.com/expenseflow/backend/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/expenseflow/backend/internal/interfaces/http"
	"github.com/expenseflow/backend/internal/notification"
	"github.com/expenseflow/backend/pkg/database"
	"github.com/expenseflow/backend/pkg/utils"
)

func main() {
	// Load .env if present; real environment wins over file values
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting expense workflow server",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	txManager := sqlite.NewDB(db.DB, logger)
	companyRepo := repository.NewCompanyRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	expenseRepo := repository.NewExpenseRepository(db.DB, logger)
	ruleSetRepo := repository.NewRuleSetRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRequestRepository(db.DB, logger)

	// Currency provider and cache
	exchangeClient := exchange.NewClient(exchange.Config{
		RatesURL:     cfg.Currency.RatesURL,
		CountriesURL: cfg.Currency.CountriesURL,
		APIKey:       cfg.Currency.APIKey,
		Timeout:      cfg.Currency.Timeout,
	}, logger)

	currencyService := service.NewCurrencyService(
		exchangeClient,
		exchangeClient,
		logger,
		service.WithRateTTL(cfg.Currency.RateTTL),
		service.WithCountryTTL(cfg.Currency.CountryTTL),
	)

	// Decision notifications
	notifier := notification.NewWorker(
		notification.NewLogSink(logger),
		cfg.Notification.QueueSize,
		logger,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := notifier.Start(rootCtx); err != nil {
		logger.Fatal("Failed to start notification worker", zap.Error(err))
	}
	defer notifier.Stop()

	// Workflow engine and application services
	engine := workflow.NewEngine(
		expenseRepo,
		approvalRepo,
		ruleSetRepo,
		txManager,
		logger,
		workflow.WithNotifier(notifier),
	)

	companyService := service.NewCompanyService(companyRepo, userRepo, currencyService, logger)
	expenseService := service.NewExpenseService(
		expenseRepo, userRepo, companyRepo, ruleSetRepo,
		currencyService, engine, txManager, logger,
	)
	approvalService := service.NewApprovalService(approvalRepo, engine, logger)
	ruleSetService := service.NewRuleSetService(ruleSetRepo, userRepo, txManager, logger)

	// Pre-populate rate and country caches so the first request does not pay
	// the provider round trip
	warmCtx, cancelWarm := context.WithTimeout(rootCtx, 30*time.Second)
	currencyService.WarmUp(warmCtx, cfg.Currency.WarmBases...)
	cancelWarm()

	// HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		companyService,
		expenseService,
		approvalService,
		ruleSetService,
		currencyService,
		utils.NewSugarAdapter(logger),
	)

	if err := server.Start(rootCtx); err != nil {
		logger.Fatal("HTTP server error", zap.Error(err))
	}

	logger.Info("Server exited")
}
