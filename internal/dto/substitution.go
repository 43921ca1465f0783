package dto

import "time"

// CreatePlanRequest asks for a substitution plan for the given day.
type CreatePlanRequest struct {
	Day            string   `json:"day" validate:"required"`
	AbsentTeachers []string `json:"absentTeachers" validate:"required,min=1,dive,required"`
	Seed           *int64   `json:"seed,omitempty"`
}

// ReshufflePlanRequest recomputes a plan with another seed. When Seed is
// omitted the previous seed plus one is used.
type ReshufflePlanRequest struct {
	Seed *int64 `json:"seed,omitempty"`
}

// OverrideSlotRequest replaces the substitute chosen for one vacated session.
type OverrideSlotRequest struct {
	AbsentTeacher string `json:"absentTeacher" validate:"required"`
	Session       string `json:"session" validate:"required"`
	Substitute    string `json:"substitute" validate:"required"`
}

// PlanSlotView is one vacated session of a plan.
type PlanSlotView struct {
	AbsentTeacher string   `json:"absentTeacher"`
	Session       string   `json:"session"`
	Substitute    string   `json:"substitute"`
	NoCandidate   bool     `json:"noCandidate"`
	Overridden    bool     `json:"overridden"`
	Eligible      []string `json:"eligible"`
	Alternatives  []string `json:"alternatives"`
}

// PlanResponse is the operator-facing view of a plan.
type PlanResponse struct {
	ID             string         `json:"id"`
	Day            string         `json:"day"`
	AbsentTeachers []string       `json:"absentTeachers"`
	Seed           int64          `json:"seed"`
	WorkloadCap    int            `json:"workloadCap"`
	FairnessCap    int            `json:"fairnessCap"`
	LedgerVersion  int            `json:"ledgerVersion"`
	Slots          []PlanSlotView `json:"slots"`
	Filled         int            `json:"filled"`
	Unfilled       int            `json:"unfilled"`
	Unresolved     []string       `json:"unresolved,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// ScheduleTeacherView summarises one teacher's day.
type ScheduleTeacherView struct {
	Name         string            `json:"name"`
	Role         string            `json:"role,omitempty"`
	Workload     int               `json:"workload"`
	FreeSessions []string          `json:"freeSessions"`
	Cells        map[string]string `json:"cells"`
}

// DayScheduleResponse is the parsed schedule of one day.
type DayScheduleResponse struct {
	Day      string                `json:"day"`
	Sessions []string              `json:"sessions"`
	Teachers []ScheduleTeacherView `json:"teachers"`
}

// LedgerBalanceView is one teacher's counters.
type LedgerBalanceView struct {
	Name   string `json:"name"`
	Debit  int    `json:"debit"`
	Credit int    `json:"credit"`
	Net    int    `json:"net"`
}

// LedgerResponse is the current ledger snapshot. Stale is set while the last
// write-back to the source has not succeeded.
type LedgerResponse struct {
	Version  int                 `json:"version"`
	Stale    bool                `json:"stale"`
	Balances []LedgerBalanceView `json:"balances"`
}

// LedgerChange records what a settlement changed for one teacher.
type LedgerChange struct {
	Name        string `json:"name"`
	DebitDelta  int    `json:"debitDelta"`
	CreditDelta int    `json:"creditDelta"`
}

// SettlementResponse reports a confirmed plan.
type SettlementResponse struct {
	PlanID    string         `json:"planId"`
	Persisted bool           `json:"persisted"`
	Ledger    LedgerResponse `json:"ledger"`
	Changes   []LedgerChange `json:"changes"`
}

// LedgerExportQuery selects the export format.
type LedgerExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
