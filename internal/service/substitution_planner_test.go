package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

var defaultRules = models.EligibilityRules{WorkloadCap: 6, FairnessCap: 4}

// abcSchedule: A busy P1,P2; B free P1,P2; C free P1, busy P2.
func abcSchedule() models.DaySchedule {
	return models.DaySchedule{
		Day:      "Monday",
		Sessions: []string{"P1", "P2"},
		Teachers: []models.TeacherDay{
			{Name: "A", Cells: map[string]string{"P1": "Math", "P2": "Physics"}},
			{Name: "B", Cells: map[string]string{"P1": "Free", "P2": "free"}},
			{Name: "C", Cells: map[string]string{"P1": "FREE", "P2": "Chem"}},
		},
	}
}

func zeroLedger(names ...string) models.Ledger {
	ledger := models.Ledger{Version: 1}
	for _, name := range names {
		ledger.Entries = append(ledger.Entries, models.LedgerEntry{Name: name})
	}
	return ledger
}

func TestEligibleSubstitutesRespectsEveryRule(t *testing.T) {
	schedule := models.DaySchedule{
		Day:      "Monday",
		Sessions: []string{"P1", "P2", "P3"},
		Teachers: []models.TeacherDay{
			{Name: "Absent", Cells: map[string]string{"P1": "Math"}},
			{Name: "Free", Cells: map[string]string{"P1": "free"}},
			{Name: "Busy", Cells: map[string]string{"P1": "Bio"}},
			{Name: "Unset", Cells: map[string]string{}},
			{Name: "Loaded", Cells: map[string]string{"P1": "free", "P2": "x", "P3": "y"}},
			{Name: "Capped", Cells: map[string]string{"P1": "free"}},
			{Name: "Taken", Cells: map[string]string{"P1": "free"}},
			{Name: "Ghost", Cells: map[string]string{"P1": "free"}},
		},
	}
	ledger := zeroLedger("Absent", "Free", "Busy", "Unset", "Loaded", "Capped", "Taken")
	ledger.Entries[5].Credit = 4

	rules := models.EligibilityRules{WorkloadCap: 2, FairnessCap: 4}
	absent := map[string]bool{"Absent": true}
	assigned := map[string]bool{"Taken": true}

	eligible := EligibleSubstitutes(schedule, ledger, absent, "P1", assigned, rules)
	assert.Equal(t, []string{"Free"}, eligible)

	for _, name := range eligible {
		assert.True(t, schedule.IsFreeAt(name, "P1"))
		assert.Less(t, schedule.Workload(name), rules.WorkloadCap)
		entry, ok := ledger.Lookup(name)
		require.True(t, ok)
		assert.Less(t, entry.Credit, rules.FairnessCap)
		assert.False(t, absent[name])
		assert.False(t, assigned[name])
	}
}

func TestEligibleSubstitutesEmptyIsValid(t *testing.T) {
	schedule := abcSchedule()
	eligible := EligibleSubstitutes(schedule, zeroLedger("A", "B", "C"), map[string]bool{"A": true, "B": true, "C": true}, "P1", nil, defaultRules)
	assert.Empty(t, eligible)
}

func TestBuildPlanScenarioABC(t *testing.T) {
	schedule := abcSchedule()
	ledger := zeroLedger("A", "B", "C")

	for seed := int64(0); seed < 20; seed++ {
		plan, err := BuildPlan(schedule, ledger, []string{"A"}, seed, defaultRules)
		require.NoError(t, err)
		require.Len(t, plan.Slots, 2)

		p1 := plan.Slots[plan.Slot("A", "P1")]
		p2 := plan.Slots[plan.Slot("A", "P2")]
		assert.Equal(t, []string{"B", "C"}, p1.Eligible)
		assert.Contains(t, []string{"B", "C"}, p1.Substitute)
		assert.Equal(t, []string{"B"}, p2.Eligible)
		assert.Equal(t, "B", p2.Substitute)
		assert.Equal(t, 1, plan.LedgerVersion)
		assert.Empty(t, plan.Unresolved)
	}
}

func TestBuildPlanFairnessCapExcludes(t *testing.T) {
	schedule := abcSchedule()
	ledger := zeroLedger("A", "B", "C")
	ledger.Entries[1].Credit = 4

	plan, err := BuildPlan(schedule, ledger, []string{"A"}, 7, defaultRules)
	require.NoError(t, err)
	for _, slot := range plan.Slots {
		assert.NotContains(t, slot.Eligible, "B")
		assert.NotEqual(t, "B", slot.Substitute)
	}
	assert.Equal(t, models.NoCandidate, plan.Slots[plan.Slot("A", "P2")].Substitute)
}

func TestBuildPlanZeroBusySessions(t *testing.T) {
	plan, err := BuildPlan(abcSchedule(), zeroLedger("A", "B", "C"), []string{"B"}, 1, defaultRules)
	require.NoError(t, err)
	assert.Empty(t, plan.Slots)
}

func TestBuildPlanDeterministicPerSeed(t *testing.T) {
	schedule := wideSchedule(8, 6)
	ledger := zeroLedger(schedule.Names()...)
	absent := []string{"T0", "T1", "T2"}

	first, err := BuildPlan(schedule, ledger, absent, 42, defaultRules)
	require.NoError(t, err)
	second, err := BuildPlan(schedule, ledger, absent, 42, defaultRules)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildPlanCollisionFree(t *testing.T) {
	schedule := wideSchedule(10, 6)
	ledger := zeroLedger(schedule.Names()...)
	absent := []string{"T0", "T1", "T2", "T3"}

	for seed := int64(0); seed < 50; seed++ {
		plan, err := BuildPlan(schedule, ledger, absent, seed, defaultRules)
		require.NoError(t, err)
		held := map[string]bool{}
		for _, slot := range plan.Slots {
			if !slot.Filled() {
				continue
			}
			key := slot.Session + "/" + slot.Substitute
			assert.False(t, held[key], "seed %d reused %s", seed, key)
			held[key] = true
		}
	}
}

func TestBuildPlanNoCandidate(t *testing.T) {
	schedule := models.DaySchedule{
		Day:      "Monday",
		Sessions: []string{"P1"},
		Teachers: []models.TeacherDay{
			{Name: "A", Cells: map[string]string{"P1": "Math"}},
			{Name: "B", Cells: map[string]string{"P1": "Bio"}},
		},
	}
	plan, err := BuildPlan(schedule, zeroLedger("A", "B"), []string{"A"}, 3, defaultRules)
	require.NoError(t, err)
	require.Len(t, plan.Slots, 1)
	assert.Equal(t, models.NoCandidate, plan.Slots[0].Substitute)
	assert.False(t, plan.Slots[0].Filled())
	assert.Equal(t, 1, plan.Unfilled())
}

func TestBuildPlanValidatesAbsentTeachers(t *testing.T) {
	_, err := BuildPlan(abcSchedule(), zeroLedger("A", "B", "C"), []string{"Z"}, 1, defaultRules)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = BuildPlan(abcSchedule(), zeroLedger("A", "B", "C"), []string{" "}, 1, defaultRules)
	require.Error(t, err)

	plan, err := BuildPlan(abcSchedule(), zeroLedger("A", "B", "C"), []string{"A", " A "}, 1, defaultRules)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, plan.AbsentTeachers)
}

func TestBuildPlanReportsUnresolvedTeachers(t *testing.T) {
	plan, err := BuildPlan(abcSchedule(), zeroLedger("A", "C"), []string{"A"}, 1, defaultRules)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, plan.Unresolved)
	assert.Equal(t, models.NoCandidate, plan.Slots[plan.Slot("A", "P2")].Substitute)
}

func TestReshuffleKeepsIdentity(t *testing.T) {
	schedule := wideSchedule(8, 6)
	plan, err := BuildPlan(schedule, zeroLedger(schedule.Names()...), []string{"T0"}, 1, defaultRules)
	require.NoError(t, err)
	plan.ID = "plan-1"

	next, err := Reshuffle(plan, 2)
	require.NoError(t, err)
	assert.Equal(t, "plan-1", next.ID)
	assert.Equal(t, int64(2), next.Seed)

	again, err := BuildPlan(schedule, zeroLedger(schedule.Names()...), []string{"T0"}, 2, defaultRules)
	require.NoError(t, err)
	assert.Equal(t, again.Slots, next.Slots)
}

func TestOverride(t *testing.T) {
	schedule := models.DaySchedule{
		Day:      "Monday",
		Sessions: []string{"P1"},
		Teachers: []models.TeacherDay{
			{Name: "A", Cells: map[string]string{"P1": "Math"}},
			{Name: "D", Cells: map[string]string{"P1": "Bio"}},
			{Name: "B", Cells: map[string]string{"P1": "free"}},
			{Name: "C", Cells: map[string]string{"P1": "free"}},
			{Name: "E", Cells: map[string]string{"P1": "Chem"}},
		},
	}
	plan, err := BuildPlan(schedule, zeroLedger("A", "B", "C", "D", "E"), []string{"A", "D"}, 5, defaultRules)
	require.NoError(t, err)
	require.Len(t, plan.Slots, 2)

	a := plan.Slots[plan.Slot("A", "P1")]
	d := plan.Slots[plan.Slot("D", "P1")]
	require.True(t, a.Filled())
	require.True(t, d.Filled())
	assert.NotEqual(t, a.Substitute, d.Substitute)

	t.Run("held by another slot", func(t *testing.T) {
		_, err := Override(plan, "A", "P1", d.Substitute)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	})

	t.Run("not eligible", func(t *testing.T) {
		_, err := Override(plan, "A", "P1", "E")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})

	t.Run("unknown slot", func(t *testing.T) {
		_, err := Override(plan, "A", "P9", "B")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})

	t.Run("same substitute is a no-op", func(t *testing.T) {
		next, err := Override(plan, "A", "P1", a.Substitute)
		require.NoError(t, err)
		assert.False(t, next.Slots[plan.Slot("A", "P1")].Overridden)
	})

	t.Run("swap after freeing the other slot", func(t *testing.T) {
		freed := plan
		freed.Slots = append([]models.PlanSlot(nil), plan.Slots...)
		freed.Slots[plan.Slot("D", "P1")].Substitute = models.NoCandidate

		next, err := Override(freed, "A", "P1", d.Substitute)
		require.NoError(t, err)
		slot := next.Slots[next.Slot("A", "P1")]
		assert.Equal(t, d.Substitute, slot.Substitute)
		assert.True(t, slot.Overridden)
		assert.Equal(t, a.Substitute, freed.Slots[freed.Slot("A", "P1")].Substitute)
	})
}

func TestOverrideReleasesSubstituteForOtherSlots(t *testing.T) {
	schedule := models.DaySchedule{
		Day:      "Monday",
		Sessions: []string{"P1"},
		Teachers: []models.TeacherDay{
			{Name: "A", Cells: map[string]string{"P1": "Math"}},
			{Name: "D", Cells: map[string]string{"P1": "Bio"}},
			{Name: "B", Cells: map[string]string{"P1": "free"}},
			{Name: "C", Cells: map[string]string{"P1": "free"}},
			{Name: "F", Cells: map[string]string{"P1": "free"}},
		},
	}
	plan, err := BuildPlan(schedule, zeroLedger("A", "B", "C", "D", "F"), []string{"A", "D"}, 11, defaultRules)
	require.NoError(t, err)

	released := plan.Slots[plan.Slot("A", "P1")].Substitute
	kept := plan.Slots[plan.Slot("D", "P1")].Substitute
	var spare string
	for _, name := range []string{"B", "C", "F"} {
		if name != released && name != kept {
			spare = name
		}
	}
	require.NotEmpty(t, spare)
	assert.NotContains(t, plan.Slots[plan.Slot("D", "P1")].Eligible, released)
	assert.ElementsMatch(t, []string{released, spare}, Alternatives(plan, "A", "P1"))

	next, err := Override(plan, "A", "P1", spare)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{released, kept}, Alternatives(next, "D", "P1"))

	next, err = Override(next, "D", "P1", released)
	require.NoError(t, err)
	assert.Equal(t, released, next.Slots[next.Slot("D", "P1")].Substitute)
	assert.Nil(t, Alternatives(next, "A", "P9"))
}

// wideSchedule has teachers T0..Tn-1; teacher i is busy in session j when
// (i+j) is divisible by 3 and free otherwise.
func wideSchedule(teachers, sessions int) models.DaySchedule {
	schedule := models.DaySchedule{Day: "Tuesday"}
	for j := 0; j < sessions; j++ {
		schedule.Sessions = append(schedule.Sessions, fmt.Sprintf("P%d", j+1))
	}
	for i := 0; i < teachers; i++ {
		cells := map[string]string{}
		for j, session := range schedule.Sessions {
			if (i+j)%3 == 0 {
				cells[session] = "Class"
			} else {
				cells[session] = "Free"
			}
		}
		schedule.Teachers = append(schedule.Teachers, models.TeacherDay{Name: fmt.Sprintf("T%d", i), Cells: cells})
	}
	return schedule
}
