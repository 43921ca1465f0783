package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

const ledgerFileName = "ledger.csv"

// CSVWorkbookRepository serves day sheets and the ledger from a directory of
// CSV exports, one file per weekday plus ledger.csv.
type CSVWorkbookRepository struct {
	dir    string
	layout models.LedgerLayout
}

// NewCSVWorkbookRepository checks the workbook directory and returns a handle.
func NewCSVWorkbookRepository(dir string, layout models.LedgerLayout) (*CSVWorkbookRepository, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workbook %s is not a directory", dir)
	}
	return &CSVWorkbookRepository{dir: dir, layout: layout}, nil
}

// ReadDay reads <day>.csv, matching the file name case-insensitively.
func (r *CSVWorkbookRepository) ReadDay(ctx context.Context, day string) (models.SheetTable, error) {
	if err := ctx.Err(); err != nil {
		return models.SheetTable{}, err
	}
	path, err := r.findSheet(day + ".csv")
	if err != nil {
		return models.SheetTable{}, err
	}
	return readCSV(path)
}

// Read reads ledger.csv.
func (r *CSVWorkbookRepository) Read(ctx context.Context) (models.SheetTable, error) {
	if err := ctx.Err(); err != nil {
		return models.SheetTable{}, err
	}
	path, err := r.findSheet(ledgerFileName)
	if err != nil {
		return models.SheetTable{}, err
	}
	return readCSV(path)
}

// Write replaces ledger.csv through a temp file and rename. Rows above the
// configured header row are carried over from the current file, or written
// blank when it has none, so the result reads back with the same layout.
func (r *CSVWorkbookRepository) Write(ctx context.Context, ledger models.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	header := []string{r.layout.NameColumn, r.layout.DebitColumn, r.layout.CreditColumn}
	records, err := r.ledgerPreamble(len(header))
	if err != nil {
		return err
	}
	records = append(records, header)
	for _, entry := range ledger.Entries {
		records = append(records, []string{entry.Name, strconv.Itoa(entry.Debit), strconv.Itoa(entry.Credit)})
	}

	tmp, err := os.CreateTemp(r.dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write ledger csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync ledger csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(r.dir, ledgerFileName)); err != nil {
		return fmt.Errorf("replace ledger csv: %w", err)
	}
	return nil
}

// ledgerPreamble returns the rows that precede the header. Every row has at
// least width cells: the CSV reader drops empty lines, which would shift the
// header up.
func (r *CSVWorkbookRepository) ledgerPreamble(width int) ([][]string, error) {
	if r.layout.HeaderRow <= 0 {
		return nil, nil
	}
	var current models.SheetTable
	path, err := r.findSheet(ledgerFileName)
	switch {
	case err == nil:
		if current, err = readCSV(path); err != nil {
			return nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	rows := make([][]string, r.layout.HeaderRow)
	for i := range rows {
		var row []string
		if i < len(current.Rows) {
			row = append(row, current.Rows[i]...)
		}
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	return rows, nil
}

func (r *CSVWorkbookRepository) findSheet(name string) (string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", fmt.Errorf("list workbook %s: %w", r.dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return filepath.Join(r.dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("sheet %s: %w", name, os.ErrNotExist)
}

func readCSV(path string) (models.SheetTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.SheetTable{}, fmt.Errorf("open sheet %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	table := models.SheetTable{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.SheetTable{}, fmt.Errorf("parse sheet %s: %w", path, err)
		}
		if len(table.Rows) == 0 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}
