package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// LoadLedger normalises the ledger sheet into name/debit/credit entries.
// Columns are matched by configured header names, case-insensitively after
// trimming. Non-numeric counters read as zero; extra columns are ignored.
func LoadLedger(table models.SheetTable, layout models.LedgerLayout) (models.Ledger, error) {
	ledger := models.Ledger{}
	if layout.HeaderRow < 0 || layout.HeaderRow >= len(table.Rows) {
		return ledger, appErrors.Clone(appErrors.ErrLedgerFormat,
			fmt.Sprintf("ledger sheet has no header row at index %d", layout.HeaderRow))
	}

	nameIdx := findColumn(table, layout.HeaderRow, layout.NameColumn)
	if nameIdx < 0 {
		return ledger, missingLedgerColumn(layout.NameColumn)
	}
	debitIdx := findColumn(table, layout.HeaderRow, layout.DebitColumn)
	if debitIdx < 0 {
		return ledger, missingLedgerColumn(layout.DebitColumn)
	}
	creditIdx := findColumn(table, layout.HeaderRow, layout.CreditColumn)
	if creditIdx < 0 {
		return ledger, missingLedgerColumn(layout.CreditColumn)
	}

	seen := make(map[string]bool)
	for row := layout.HeaderRow + 1; row < len(table.Rows); row++ {
		if table.RowBlank(row) {
			continue
		}
		name := table.Cell(row, nameIdx)
		if name == "" {
			continue
		}
		if seen[name] {
			return models.Ledger{}, appErrors.Clone(appErrors.ErrLedgerFormat,
				fmt.Sprintf("ledger lists teacher %q more than once", name))
		}
		seen[name] = true

		debit, err := parseCounter(table.Cell(row, debitIdx))
		if err != nil {
			return models.Ledger{}, appErrors.Wrap(err, appErrors.ErrLedgerFormat.Code, appErrors.ErrLedgerFormat.Status,
				fmt.Sprintf("invalid %s for %q", layout.DebitColumn, name))
		}
		credit, err := parseCounter(table.Cell(row, creditIdx))
		if err != nil {
			return models.Ledger{}, appErrors.Wrap(err, appErrors.ErrLedgerFormat.Code, appErrors.ErrLedgerFormat.Status,
				fmt.Sprintf("invalid %s for %q", layout.CreditColumn, name))
		}
		ledger.Entries = append(ledger.Entries, models.LedgerEntry{Name: name, Debit: debit, Credit: credit})
	}
	return ledger, nil
}

// CreditOf returns the teacher's credit or an UNKNOWN_TEACHER error.
func CreditOf(ledger models.Ledger, name string) (int, error) {
	entry, err := ledgerEntry(ledger, name)
	return entry.Credit, err
}

// DebitOf returns the teacher's debit or an UNKNOWN_TEACHER error.
func DebitOf(ledger models.Ledger, name string) (int, error) {
	entry, err := ledgerEntry(ledger, name)
	return entry.Debit, err
}

// NetOf returns credit minus debit or an UNKNOWN_TEACHER error.
func NetOf(ledger models.Ledger, name string) (int, error) {
	entry, err := ledgerEntry(ledger, name)
	return entry.Net(), err
}

func ledgerEntry(ledger models.Ledger, name string) (models.LedgerEntry, error) {
	entry, ok := ledger.Lookup(name)
	if !ok {
		return models.LedgerEntry{}, unknownTeacher(name)
	}
	return entry, nil
}

func unknownTeacher(name string) error {
	return appErrors.Clone(appErrors.ErrUnknownTeacher, fmt.Sprintf("teacher %q is not in the ledger", name))
}

func missingLedgerColumn(column string) error {
	return appErrors.Clone(appErrors.ErrLedgerFormat, fmt.Sprintf("ledger sheet is missing the %q column", column))
}

func findColumn(table models.SheetTable, headerRow int, column string) int {
	column = strings.TrimSpace(column)
	if column == "" {
		return -1
	}
	for col := 0; col < table.Width(); col++ {
		if strings.EqualFold(table.Cell(headerRow, col), column) {
			return col
		}
	}
	return -1
}

// parseCounter coerces a sheet cell to a non-negative count. Spreadsheets
// export whole numbers as "3.0", so decimals are truncated.
func parseCounter(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, nil
	}
	if value < 0 {
		return 0, fmt.Errorf("negative counter %s", raw)
	}
	return int(value), nil
}
