package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-substitution-api/api/swagger"
	"github.com/noah-isme/sma-substitution-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-substitution-api/internal/middleware"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/repository"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/cache"
	"github.com/noah-isme/sma-substitution-api/pkg/config"
	"github.com/noah-isme/sma-substitution-api/pkg/database"
	"github.com/noah-isme/sma-substitution-api/pkg/jobs"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitution-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitution-api/pkg/middleware/requestid"
)

// @title SMA Substitution API
// @version 1.0.0
// @description Substitute teacher assignment and fairness ledger
// @BasePath /api/v1
// @schemes http

type sheetSources interface {
	ReadDay(ctx context.Context, day string) (models.SheetTable, error)
	Read(ctx context.Context) (models.SheetTable, error)
	Write(ctx context.Context, ledger models.Ledger) error
}

type sheetSourcePair struct {
	*repository.ScheduleSheetRepository
	*repository.LedgerRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledgerLayout := models.LedgerLayout{
		HeaderRow:    cfg.Sheets.LedgerHeaderRow,
		NameColumn:   cfg.Sheets.LedgerNameColumn,
		DebitColumn:  cfg.Sheets.LedgerDebitColumn,
		CreditColumn: cfg.Sheets.LedgerCreditColumn,
	}

	sources, closeSources, err := openSources(ctx, cfg, ledgerLayout)
	if err != nil {
		logr.Fatal("failed to open sheet source", zap.String("driver", cfg.Source.Driver), zap.Error(err))
	}
	defer closeSources()

	plans, closePlans, err := openPlanStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open plan store", zap.String("store", cfg.Plans.Store), zap.Error(err))
	}
	defer closePlans()

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	substitutionSvc := service.NewSubstitutionService(sources, sources, plans, metricsSvc, validator.New(), logr, service.SubstitutionConfig{
		Days: cfg.Substitution.Days,
		Rules: models.EligibilityRules{
			WorkloadCap: cfg.Substitution.WorkloadCap,
			FairnessCap: cfg.Substitution.FairnessCap,
		},
		ScheduleLayout: models.ScheduleLayout{
			HeaderRow:  cfg.Sheets.ScheduleHeaderRow,
			NameColumn: cfg.Sheets.ScheduleNameColumn,
			RoleColumn: cfg.Sheets.ScheduleRoleColumn,
		},
		LedgerLayout:  ledgerLayout,
		Policy:        service.SettlementPolicy{DebitExemptRoles: cfg.Substitution.DebitExemptRoles},
		PlanTTL:       cfg.Plans.TTL,
		SourceTimeout: cfg.Source.Timeout,
	})
	if err := substitutionSvc.Init(ctx); err != nil {
		logr.Fatal("failed to load ledger", zap.Error(err))
	}

	syncQueue := jobs.NewQueue("ledger-sync", func(ctx context.Context, _ jobs.Job) error {
		return substitutionSvc.FlushLedger(ctx)
	}, jobs.QueueConfig{
		MaxRetries: cfg.Source.WriteRetries,
		RetryDelay: cfg.Source.WriteRetryDelay,
		Logger:     logr,
	})
	syncQueue.Start(ctx)
	defer syncQueue.Stop()
	substitutionSvc.UseWriteRetrier(syncQueue)

	exportSvc := service.NewExportService(substitutionSvc, logr, nil, nil)

	substitutionHandler := handler.NewSubstitutionHandler(substitutionSvc)
	ledgerHandler := handler.NewLedgerHandler(substitutionSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, substitutionSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/days", substitutionHandler.Days)
	api.GET("/days/:day/schedule", substitutionHandler.Schedule)

	plansGroup := api.Group("/plans")
	plansGroup.POST("", substitutionHandler.CreatePlan)
	plansGroup.GET("/:id", substitutionHandler.GetPlan)
	plansGroup.DELETE("/:id", substitutionHandler.Discard)
	plansGroup.POST("/:id/reshuffle", substitutionHandler.Reshuffle)
	plansGroup.PUT("/:id/slots", substitutionHandler.Override)
	plansGroup.POST("/:id/confirm", substitutionHandler.Confirm)

	ledgerGroup := api.Group("/ledger")
	ledgerGroup.GET("", ledgerHandler.Get)
	ledgerGroup.POST("/sync", ledgerHandler.Sync)
	ledgerGroup.GET("/export", ledgerHandler.Export)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "source", cfg.Source.Driver, "plan_store", cfg.Plans.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}

func openSources(ctx context.Context, cfg *config.Config, layout models.LedgerLayout) (sheetSources, func(), error) {
	switch cfg.Source.Driver {
	case config.SourceDriverCSV:
		repo, err := repository.NewCSVWorkbookRepository(cfg.Source.CSVDir, layout)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	case config.SourceDriverPostgres, "":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		pair := sheetSourcePair{
			ScheduleSheetRepository: repository.NewScheduleSheetRepository(db),
			LedgerRepository:        repository.NewLedgerRepository(db, layout),
		}
		return pair, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported source driver %q", cfg.Source.Driver)
	}
}

func openPlanStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.PlanStore, func(), error) {
	switch cfg.Plans.Store {
	case config.PlanStoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPlanCacheRepository(client, logr), func() { _ = client.Close() }, nil
	case config.PlanStoreMemory, "":
		return service.NewMemoryPlanStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported plan store %q", cfg.Plans.Store)
	}
}
