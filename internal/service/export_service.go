package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/export"
)

// Supported ledger export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var ledgerExportHeaders = []string{"Teacher", "Debit", "Credit", "Net"}

type ledgerSnapshotter interface {
	LedgerSnapshot() (models.Ledger, bool, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportResult is a rendered ledger report ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders the ledger report.
type ExportService struct {
	ledger ledgerSnapshotter
	csv    datasetRenderer
	pdf    datasetRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(ledger ledgerSnapshotter, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		ledger: ledger,
		csv:    csv,
		pdf:    pdf,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ExportLedger renders the current ledger in the requested format.
func (s *ExportService) ExportLedger(_ context.Context, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}

	var renderer datasetRenderer
	switch format {
	case ExportFormatCSV:
		renderer = s.csv
	case ExportFormatPDF:
		renderer = s.pdf
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	ledger, stale, err := s.ledger.LedgerSnapshot()
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(ledgerDataset(ledger))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ledger report")
	}
	if stale {
		s.logger.Warn("exporting ledger that is not yet persisted", zap.Int("ledger_version", ledger.Version))
	}

	return &ExportResult{
		Filename:    s.buildFilename(ledger, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Payload:     payload,
	}, nil
}

func (s *ExportService) buildFilename(ledger models.Ledger, ext string) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("substitution_ledger_v%d_%s.%s", ledger.Version, timestamp, ext)
}

func ledgerDataset(ledger models.Ledger) export.Dataset {
	rows := make([]map[string]string, 0, len(ledger.Entries))
	for _, b := range ledger.Balances() {
		rows = append(rows, map[string]string{
			"Teacher": b.Name,
			"Debit":   strconv.Itoa(b.Debit),
			"Credit":  strconv.Itoa(b.Credit),
			"Net":     strconv.Itoa(b.Net),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Substitution Ledger (version %d)", ledger.Version),
		Headers: ledgerExportHeaders,
		Rows:    rows,
	}
}
