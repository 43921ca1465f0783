package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// SettlementPolicy tunes how debits accrue.
type SettlementPolicy struct {
	// DebitExemptRoles lists schedule roles whose absences accrue no debit.
	// Empty means every absence is debited.
	DebitExemptRoles []string
}

func (p SettlementPolicy) exempt(role string) bool {
	role = strings.TrimSpace(role)
	if role == "" {
		return false
	}
	for _, r := range p.DebitExemptRoles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Settle applies a confirmed plan to the ledger and returns the next ledger
// version. Each absent teacher is debited one unit per occupied session
// whether or not cover was found; each filled slot credits its substitute one
// unit. The input ledger is never modified: on any error nothing is applied.
func Settle(
	ledger models.Ledger,
	schedule models.DaySchedule,
	absentTeachers []string,
	plan models.Plan,
	policy SettlementPolicy,
) (models.Ledger, error) {
	next := ledger.Clone()
	index := make(map[string]int, len(next.Entries))
	for i, entry := range next.Entries {
		index[entry.Name] = i
	}

	debited := make(map[string]bool, len(absentTeachers))
	for _, name := range absentTeachers {
		if debited[name] {
			continue
		}
		debited[name] = true
		i, ok := index[name]
		if !ok {
			return ledger, unknownTeacher(name)
		}
		teacher, onSchedule := schedule.Teacher(name)
		if onSchedule && policy.exempt(teacher.Role) {
			continue
		}
		next.Entries[i].Debit += len(schedule.OccupiedSessions(name))
	}

	held := make(map[string]string)
	for _, slot := range plan.Slots {
		if !slot.Filled() {
			continue
		}
		key := slot.Session + "\x00" + slot.Substitute
		if other, dup := held[key]; dup {
			return ledger, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("%q is assigned to %s for both %q and %q", slot.Substitute, slot.Session, other, slot.AbsentTeacher))
		}
		held[key] = slot.AbsentTeacher

		i, ok := index[slot.Substitute]
		if !ok {
			return ledger, unknownTeacher(slot.Substitute)
		}
		next.Entries[i].Credit++
	}

	next.Version = ledger.Version + 1
	return next, nil
}
