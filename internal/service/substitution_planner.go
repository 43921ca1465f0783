package service

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// BuildPlan proposes one substitute per vacated session. Absent teachers are
// visited in the given order and their sessions in column order; a teacher
// chosen for a session is excluded from that session for the rest of the pass.
// Selection draws from a generator seeded with seed, so equal inputs and seed
// always give the same plan and a reshuffle is simply another seed.
func BuildPlan(
	schedule models.DaySchedule,
	ledger models.Ledger,
	absentTeachers []string,
	seed int64,
	rules models.EligibilityRules,
) (models.Plan, error) {
	absentOrder, err := normalizeAbsent(schedule, absentTeachers)
	if err != nil {
		return models.Plan{}, err
	}

	absent := absentSet(absentOrder)

	plan := models.Plan{
		Day:            schedule.Day,
		AbsentTeachers: absentOrder,
		Seed:           seed,
		Rules:          rules,
		Slots:          make([]models.PlanSlot, 0),
		Unresolved:     unresolvedTeachers(schedule, ledger),
		LedgerVersion:  ledger.Version,
		Schedule:       schedule,
		Ledger:         ledger,
	}

	rng := rand.New(rand.NewSource(seed))
	assignedBySession := make(map[string]map[string]bool)
	for _, teacher := range absentOrder {
		for _, session := range schedule.OccupiedSessions(teacher) {
			assigned := assignedBySession[session]
			if assigned == nil {
				assigned = make(map[string]bool)
				assignedBySession[session] = assigned
			}

			eligible := EligibleSubstitutes(schedule, ledger, absent, session, assigned, rules)
			slot := models.PlanSlot{
				AbsentTeacher: teacher,
				Session:       session,
				Substitute:    models.NoCandidate,
				Eligible:      eligible,
			}
			if len(eligible) > 0 {
				slot.Substitute = eligible[rng.Intn(len(eligible))]
				assigned[slot.Substitute] = true
			}
			plan.Slots = append(plan.Slots, slot)
		}
	}
	return plan, nil
}

// Reshuffle recomputes plan from its own schedule and ledger snapshots with a
// new seed. The plan identity and creation time are kept.
func Reshuffle(plan models.Plan, seed int64) (models.Plan, error) {
	next, err := BuildPlan(plan.Schedule, plan.Ledger, plan.AbsentTeachers, seed, plan.Rules)
	if err != nil {
		return models.Plan{}, err
	}
	next.ID = plan.ID
	next.CreatedAt = plan.CreatedAt
	return next, nil
}

// Alternatives lists who could take the (absent, session) slot now: teachers
// eligible under the plan's snapshots that no other slot holds in the same
// session. The slot's Eligible list is fixed at build time, so a teacher
// released by a later override shows up here but not there.
func Alternatives(plan models.Plan, absentTeacher, session string) []string {
	idx := plan.Slot(absentTeacher, session)
	if idx < 0 {
		return nil
	}
	return EligibleSubstitutes(plan.Schedule, plan.Ledger, absentSet(plan.AbsentTeachers), session,
		plan.HeldInSession(session, idx), plan.Rules)
}

// Override replaces the substitute chosen for one slot. The new substitute
// must be eligible under the plan's snapshots and must not already cover the
// same session for another absent teacher.
func Override(plan models.Plan, absentTeacher, session, substitute string) (models.Plan, error) {
	idx := plan.Slot(absentTeacher, session)
	if idx < 0 {
		return plan, appErrors.Clone(appErrors.ErrNotFound,
			fmt.Sprintf("no vacated %s slot for %q in this plan", session, absentTeacher))
	}
	substitute = strings.TrimSpace(substitute)
	if plan.Slots[idx].Substitute == substitute {
		return plan, nil
	}
	if !eligibleFor(plan.Schedule, plan.Ledger, absentSet(plan.AbsentTeachers), session, nil, plan.Rules, substitute) {
		return plan, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("%q is not eligible to cover %s for %q", substitute, session, absentTeacher))
	}
	if plan.HeldElsewhere(idx, substitute) {
		return plan, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("%q already covers %s for another absent teacher", substitute, session))
	}

	slots := make([]models.PlanSlot, len(plan.Slots))
	copy(slots, plan.Slots)
	slots[idx].Substitute = substitute
	slots[idx].Overridden = true
	plan.Slots = slots
	return plan, nil
}

func absentSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

func normalizeAbsent(schedule models.DaySchedule, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one absent teacher is required")
	}
	seen := make(map[string]bool, len(names))
	result := make([]string, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		if !schedule.Has(name) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("teacher %q is not on the %s schedule", name, schedule.Day))
		}
		seen[name] = true
		result = append(result, name)
	}
	if len(result) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one absent teacher is required")
	}
	return result, nil
}
