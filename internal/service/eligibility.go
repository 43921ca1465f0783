package service

import "github.com/noah-isme/sma-substitution-api/internal/models"

// EligibleSubstitutes lists, in schedule order, the teachers who may cover
// session. A teacher qualifies when they are not absent, their cell for the
// session reads "free", their own workload is below rules.WorkloadCap, their
// ledger credit is below rules.FairnessCap and they are not already covering
// this session elsewhere in the plan. Teachers missing from the ledger never
// qualify. An empty result means no candidate is available.
func EligibleSubstitutes(
	schedule models.DaySchedule,
	ledger models.Ledger,
	absent map[string]bool,
	session string,
	assigned map[string]bool,
	rules models.EligibilityRules,
) []string {
	var eligible []string
	for _, teacher := range schedule.Teachers {
		if eligibleFor(schedule, ledger, absent, session, assigned, rules, teacher.Name) {
			eligible = append(eligible, teacher.Name)
		}
	}
	return eligible
}

func eligibleFor(
	schedule models.DaySchedule,
	ledger models.Ledger,
	absent map[string]bool,
	session string,
	assigned map[string]bool,
	rules models.EligibilityRules,
	name string,
) bool {
	if absent[name] || assigned[name] {
		return false
	}
	if !schedule.IsFreeAt(name, session) {
		return false
	}
	if schedule.Workload(name) >= rules.WorkloadCap {
		return false
	}
	entry, ok := ledger.Lookup(name)
	if !ok {
		return false
	}
	return entry.Credit < rules.FairnessCap
}

// unresolvedTeachers lists schedule teachers the ledger does not know, which
// can therefore never be chosen or credited.
func unresolvedTeachers(schedule models.DaySchedule, ledger models.Ledger) []string {
	var missing []string
	for _, teacher := range schedule.Teachers {
		if !ledger.Has(teacher.Name) {
			missing = append(missing, teacher.Name)
		}
	}
	return missing
}
