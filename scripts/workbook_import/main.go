package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/repository"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/config"
	"github.com/noah-isme/sma-substitution-api/pkg/database"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
)

// workbook_import copies a CSV workbook (one <Day>.csv per day plus
// ledger.csv) into the PostgreSQL tables read by the API. Sheets are validated
// with the same loaders the API uses before anything is written.
func main() {
	var (
		dir        string
		skipLedger bool
		timeout    time.Duration
	)
	flag.StringVar(&dir, "dir", "", "Workbook directory (defaults to SOURCE_CSV_DIR)")
	flag.BoolVar(&skipLedger, "skip-ledger", false, "Import day sheets only and keep the current ledger")
	flag.DurationVar(&timeout, "timeout", time.Minute, "Overall import timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if dir == "" {
		dir = cfg.Source.CSVDir
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	scheduleLayout := models.ScheduleLayout{
		HeaderRow:  cfg.Sheets.ScheduleHeaderRow,
		NameColumn: cfg.Sheets.ScheduleNameColumn,
		RoleColumn: cfg.Sheets.ScheduleRoleColumn,
	}
	ledgerLayout := models.LedgerLayout{
		HeaderRow:    cfg.Sheets.LedgerHeaderRow,
		NameColumn:   cfg.Sheets.LedgerNameColumn,
		DebitColumn:  cfg.Sheets.LedgerDebitColumn,
		CreditColumn: cfg.Sheets.LedgerCreditColumn,
	}

	workbook, err := repository.NewCSVWorkbookRepository(dir, ledgerLayout)
	if err != nil {
		logr.Fatal("failed to open workbook", zap.String("dir", dir), zap.Error(err))
	}

	sheets := make(map[string]models.SheetTable, len(cfg.Substitution.Days))
	for _, day := range cfg.Substitution.Days {
		table, err := workbook.ReadDay(ctx, day)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logr.Warn("no sheet for day, skipping", zap.String("day", day))
				continue
			}
			logr.Fatal("failed to read day sheet", zap.String("day", day), zap.Error(err))
		}
		schedule, err := service.LoadDaySchedule(day, table, scheduleLayout)
		if err != nil {
			logr.Fatal("invalid day sheet", zap.String("day", day), zap.Error(err))
		}
		logr.Info("day sheet validated", zap.String("day", day), zap.Int("teachers", len(schedule.Teachers)), zap.Strings("sessions", schedule.Sessions))
		sheets[day] = table
	}

	var ledger models.Ledger
	if !skipLedger {
		table, err := workbook.Read(ctx)
		if err != nil {
			logr.Fatal("failed to read ledger sheet", zap.Error(err))
		}
		ledger, err = service.LoadLedger(table, ledgerLayout)
		if err != nil {
			logr.Fatal("invalid ledger sheet", zap.Error(err))
		}
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	schedules := repository.NewScheduleSheetRepository(db)
	for day, table := range sheets {
		if err := schedules.ReplaceDay(ctx, day, table); err != nil {
			logr.Fatal("failed to import day sheet", zap.String("day", day), zap.Error(err))
		}
	}
	if !skipLedger {
		if err := repository.NewLedgerRepository(db, ledgerLayout).Write(ctx, ledger); err != nil {
			logr.Fatal("failed to import ledger", zap.Error(err))
		}
	}

	logr.Info("workbook imported", zap.String("dir", dir), zap.Int("days", len(sheets)), zap.Int("ledger_teachers", len(ledger.Entries)))
}
