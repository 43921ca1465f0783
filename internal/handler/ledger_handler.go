package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

type ledgerReader interface {
	Ledger(ctx context.Context) (*dto.LedgerResponse, error)
	SyncLedger(ctx context.Context) (*dto.LedgerResponse, error)
}

type ledgerExporter interface {
	ExportLedger(ctx context.Context, format string) (*service.ExportResult, error)
}

// LedgerHandler exposes the fairness ledger.
type LedgerHandler struct {
	ledger   ledgerReader
	exporter ledgerExporter
}

// NewLedgerHandler constructs the handler.
func NewLedgerHandler(ledger *service.SubstitutionService, exporter *service.ExportService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, exporter: exporter}
}

// Get godoc
// @Summary Current ledger with net balances
// @Tags Ledger
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ledger [get]
func (h *LedgerHandler) Get(c *gin.Context) {
	result, err := h.ledger.Ledger(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"stale": result.Stale})
}

// Sync godoc
// @Summary Write the in-memory ledger back to its source
// @Tags Ledger
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ledger/sync [post]
func (h *LedgerHandler) Sync(c *gin.Context) {
	result, err := h.ledger.SyncLedger(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Download the ledger report
// @Tags Ledger
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /ledger/export [get]
func (h *LedgerHandler) Export(c *gin.Context) {
	var query dto.LedgerExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	result, err := h.exporter.ExportLedger(c.Request.Context(), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
