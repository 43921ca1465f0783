package models

import "strings"

// SheetTable is a raw grid of cells as read from a schedule or ledger sheet.
// Rows may be ragged; missing cells read as empty strings.
type SheetTable struct {
	Rows [][]string `json:"rows"`
}

// Cell returns the trimmed value at (row, col) or "" when out of range.
func (t SheetTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	cells := t.Rows[row]
	if col < 0 || col >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col])
}

// Width returns the widest row length.
func (t SheetTable) Width() int {
	width := 0
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// RowBlank reports whether every cell of the row is empty after trimming.
func (t SheetTable) RowBlank(row int) bool {
	if row < 0 || row >= len(t.Rows) {
		return true
	}
	for _, cell := range t.Rows[row] {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ScheduleLayout names the header row and the special columns of a day sheet.
type ScheduleLayout struct {
	HeaderRow  int
	NameColumn string
	RoleColumn string
}

// LedgerLayout names the header row and the canonical columns of the ledger sheet.
type LedgerLayout struct {
	HeaderRow    int
	NameColumn   string
	DebitColumn  string
	CreditColumn string
}
