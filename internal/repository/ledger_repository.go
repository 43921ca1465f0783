package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

type ledgerRow struct {
	Name   string `db:"teacher_name"`
	Debit  int    `db:"debit"`
	Credit int    `db:"credit"`
}

// LedgerRepository persists the substitution ledger in PostgreSQL.
type LedgerRepository struct {
	db     *sqlx.DB
	layout models.LedgerLayout
}

// NewLedgerRepository constructs the repository. The layout names the header
// row produced by Read so the same loader validates every source.
func NewLedgerRepository(db *sqlx.DB, layout models.LedgerLayout) *LedgerRepository {
	return &LedgerRepository{db: db, layout: layout}
}

// Read returns the ledger as a sheet with a single header row.
func (r *LedgerRepository) Read(ctx context.Context) (models.SheetTable, error) {
	const query = `SELECT teacher_name, debit, credit FROM substitution_ledger ORDER BY position ASC, teacher_name ASC`
	var rows []ledgerRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return models.SheetTable{}, fmt.Errorf("read ledger: %w", err)
	}

	table := models.SheetTable{Rows: make([][]string, 0, len(rows)+r.layout.HeaderRow+1)}
	for i := 0; i < r.layout.HeaderRow; i++ {
		table.Rows = append(table.Rows, nil)
	}
	table.Rows = append(table.Rows, []string{r.layout.NameColumn, r.layout.DebitColumn, r.layout.CreditColumn})
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{row.Name, strconv.Itoa(row.Debit), strconv.Itoa(row.Credit)})
	}
	return table, nil
}

// Write replaces the whole ledger in one transaction.
func (r *LedgerRepository) Write(ctx context.Context, ledger models.Ledger) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM substitution_ledger`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear ledger: %w", err)
	}
	const insert = `INSERT INTO substitution_ledger (teacher_name, debit, credit, position, updated_at) VALUES ($1, $2, $3, $4, $5)`
	now := time.Now().UTC()
	for i, entry := range ledger.Entries {
		if _, err := tx.ExecContext(ctx, insert, entry.Name, entry.Debit, entry.Credit, i, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write ledger entry %s: %w", entry.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}
