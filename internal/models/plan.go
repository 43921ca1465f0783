package models

import "time"

// NoCandidate marks a slot for which no teacher was eligible.
const NoCandidate = "N/A"

// EligibilityRules are the caps applied when choosing substitutes.
type EligibilityRules struct {
	WorkloadCap int `json:"workloadCap"`
	FairnessCap int `json:"fairnessCap"`
}

// AssignmentCandidate pairs a vacated session with a substitute.
type AssignmentCandidate struct {
	AbsentTeacher string `json:"absentTeacher"`
	Session       string `json:"session"`
	Substitute    string `json:"substitute"`
}

// PlanSlot is one vacated session of one absent teacher.
type PlanSlot struct {
	AbsentTeacher string   `json:"absentTeacher"`
	Session       string   `json:"session"`
	Substitute    string   `json:"substitute"`
	Eligible      []string `json:"eligible"` // as computed when the plan was built
	Overridden    bool     `json:"overridden,omitempty"`
}

// Filled reports whether a substitute was chosen.
func (s PlanSlot) Filled() bool {
	return s.Substitute != "" && s.Substitute != NoCandidate
}

// Plan is a proposed set of substitutions for one day. It carries the schedule
// and ledger snapshots it was computed from so reshuffles never re-read sources.
type Plan struct {
	ID             string           `json:"id"`
	Day            string           `json:"day"`
	AbsentTeachers []string         `json:"absentTeachers"`
	Seed           int64            `json:"seed"`
	Rules          EligibilityRules `json:"rules"`
	Slots          []PlanSlot       `json:"slots"`
	Unresolved     []string         `json:"unresolved,omitempty"`
	LedgerVersion  int              `json:"ledgerVersion"`
	Schedule       DaySchedule      `json:"schedule"`
	Ledger         Ledger           `json:"ledger"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Slot returns the index of the (absent, session) slot or -1.
func (p *Plan) Slot(absent, session string) int {
	for i, slot := range p.Slots {
		if slot.AbsentTeacher == absent && slot.Session == session {
			return i
		}
	}
	return -1
}

// HeldElsewhere reports whether substitute is chosen for another slot in the
// same session as slot idx.
func (p *Plan) HeldElsewhere(idx int, substitute string) bool {
	return p.HeldInSession(p.Slots[idx].Session, idx)[substitute]
}

// Assignments lists the filled slots as candidates.
func (p *Plan) Assignments() []AssignmentCandidate {
	var result []AssignmentCandidate
	for _, slot := range p.Slots {
		if slot.Filled() {
			result = append(result, AssignmentCandidate{AbsentTeacher: slot.AbsentTeacher, Session: slot.Session, Substitute: slot.Substitute})
		}
	}
	return result
}

// Unfilled counts slots left without a substitute.
func (p *Plan) Unfilled() int {
	count := 0
	for _, slot := range p.Slots {
		if !slot.Filled() {
			count++
		}
	}
	return count
}

// HeldInSession returns the substitutes chosen for session by every slot
// except skip.
func (p *Plan) HeldInSession(session string, skip int) map[string]bool {
	taken := make(map[string]bool)
	for i, slot := range p.Slots {
		if i == skip || slot.Session != session || !slot.Filled() {
			continue
		}
		taken[slot.Substitute] = true
	}
	return taken
}
