package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

type scheduleSheetRow struct {
	RowIndex int            `db:"row_index"`
	Cells    types.JSONText `db:"cells"`
}

// ScheduleSheetRepository reads day sheets stored row by row in PostgreSQL.
// Each row keeps its raw cells as a JSON array so title and header rows are
// preserved exactly as imported.
type ScheduleSheetRepository struct {
	db *sqlx.DB
}

// NewScheduleSheetRepository constructs a ScheduleSheetRepository.
func NewScheduleSheetRepository(db *sqlx.DB) *ScheduleSheetRepository {
	return &ScheduleSheetRepository{db: db}
}

// ReadDay returns the raw sheet for day ordered by row index.
func (r *ScheduleSheetRepository) ReadDay(ctx context.Context, day string) (models.SheetTable, error) {
	const query = `SELECT row_index, cells FROM schedule_sheet_rows WHERE LOWER(day) = LOWER($1) ORDER BY row_index ASC`
	var rows []scheduleSheetRow
	if err := r.db.SelectContext(ctx, &rows, query, day); err != nil {
		return models.SheetTable{}, fmt.Errorf("read %s schedule sheet: %w", day, err)
	}

	table := models.SheetTable{Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		var cells []*string
		if len(row.Cells) > 0 {
			if err := json.Unmarshal(row.Cells, &cells); err != nil {
				return models.SheetTable{}, fmt.Errorf("decode %s schedule row %d: %w", day, row.RowIndex, err)
			}
		}
		values := make([]string, len(cells))
		for i, cell := range cells {
			if cell != nil {
				values[i] = *cell
			}
		}
		table.Rows = append(table.Rows, values)
	}
	return table, nil
}

// ReplaceDay stores table as the sheet for day, replacing any previous rows.
func (r *ScheduleSheetRepository) ReplaceDay(ctx context.Context, day string, table models.SheetTable) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s schedule tx: %w", day, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_sheet_rows WHERE LOWER(day) = LOWER($1)`, day); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear %s schedule: %w", day, err)
	}
	const insert = `INSERT INTO schedule_sheet_rows (day, row_index, cells, imported_at) VALUES ($1, $2, $3, $4)`
	now := time.Now().UTC()
	for i, row := range table.Rows {
		cells, err := json.Marshal(row)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode %s schedule row %d: %w", day, i, err)
		}
		if _, err := tx.ExecContext(ctx, insert, day, i, types.JSONText(cells), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write %s schedule row %d: %w", day, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s schedule tx: %w", day, err)
	}
	return nil
}
