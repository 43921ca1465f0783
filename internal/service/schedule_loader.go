package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// LoadDaySchedule turns a raw day sheet into a DaySchedule. The header row is
// taken from layout.HeaderRow; headers are trimmed and nothing else is guessed.
func LoadDaySchedule(day string, table models.SheetTable, layout models.ScheduleLayout) (models.DaySchedule, error) {
	schedule := models.DaySchedule{Day: day}
	nameColumn := strings.TrimSpace(layout.NameColumn)
	if nameColumn == "" {
		return schedule, appErrors.Clone(appErrors.ErrMalformedSchedule, "schedule name column is not configured")
	}
	if layout.HeaderRow < 0 || layout.HeaderRow >= len(table.Rows) {
		return schedule, appErrors.Clone(appErrors.ErrMalformedSchedule,
			fmt.Sprintf("%s sheet has no header row at index %d", day, layout.HeaderRow))
	}

	nameIdx, roleIdx := -1, -1
	roleColumn := strings.TrimSpace(layout.RoleColumn)
	sessionIdx := make([]int, 0)
	seenHeaders := make(map[string]bool)
	for col := 0; col < table.Width(); col++ {
		header := table.Cell(layout.HeaderRow, col)
		switch {
		case header == "":
			continue
		case header == nameColumn && nameIdx < 0:
			nameIdx = col
		case roleColumn != "" && header == roleColumn && roleIdx < 0:
			roleIdx = col
		default:
			if seenHeaders[header] {
				return schedule, appErrors.Clone(appErrors.ErrMalformedSchedule,
					fmt.Sprintf("%s sheet repeats column %q", day, header))
			}
			seenHeaders[header] = true
			sessionIdx = append(sessionIdx, col)
			schedule.Sessions = append(schedule.Sessions, header)
		}
	}
	if nameIdx < 0 {
		return schedule, appErrors.Clone(appErrors.ErrMalformedSchedule,
			fmt.Sprintf("%s sheet is missing the %q column", day, nameColumn))
	}

	seenNames := make(map[string]bool)
	for row := layout.HeaderRow + 1; row < len(table.Rows); row++ {
		if table.RowBlank(row) {
			continue
		}
		name := table.Cell(row, nameIdx)
		if name == "" {
			continue
		}
		if seenNames[name] {
			return schedule, appErrors.Clone(appErrors.ErrMalformedSchedule,
				fmt.Sprintf("%s sheet lists teacher %q more than once", day, name))
		}
		seenNames[name] = true

		teacher := models.TeacherDay{Name: name, Cells: make(map[string]string, len(sessionIdx))}
		if roleIdx >= 0 {
			teacher.Role = table.Cell(row, roleIdx)
		}
		for i, col := range sessionIdx {
			teacher.Cells[schedule.Sessions[i]] = table.Cell(row, col)
		}
		schedule.Teachers = append(schedule.Teachers, teacher)
	}

	return schedule, nil
}
