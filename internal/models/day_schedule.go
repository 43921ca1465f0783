package models

import "strings"

// SessionStatus is the occupancy of a teacher during one session.
type SessionStatus string

const (
	SessionFree  SessionStatus = "FREE"
	SessionBusy  SessionStatus = "BUSY"
	SessionUnset SessionStatus = "UNSET"
)

// FreeToken is the cell value marking a free session, compared case-insensitively.
const FreeToken = "free"

// StatusOf classifies a raw cell value.
func StatusOf(cell string) SessionStatus {
	value := strings.TrimSpace(cell)
	switch {
	case value == "":
		return SessionUnset
	case strings.EqualFold(value, FreeToken):
		return SessionFree
	default:
		return SessionBusy
	}
}

// TeacherDay is one teacher's row of a day schedule.
type TeacherDay struct {
	Name  string            `json:"name"`
	Role  string            `json:"role,omitempty"`
	Cells map[string]string `json:"cells"`
}

// DaySchedule is the typed form of one day's sheet. Teachers keep sheet order
// and Sessions keep column order; both orders are relied on for reproducible plans.
type DaySchedule struct {
	Day      string       `json:"day"`
	Sessions []string     `json:"sessions"`
	Teachers []TeacherDay `json:"teachers"`
}

// Teacher looks a teacher up by exact name.
func (s DaySchedule) Teacher(name string) (TeacherDay, bool) {
	for _, t := range s.Teachers {
		if t.Name == name {
			return t, true
		}
	}
	return TeacherDay{}, false
}

// Has reports whether the named teacher appears on the schedule.
func (s DaySchedule) Has(name string) bool {
	_, ok := s.Teacher(name)
	return ok
}

// Status returns the teacher's occupancy for a session.
func (s DaySchedule) Status(name, session string) SessionStatus {
	t, ok := s.Teacher(name)
	if !ok {
		return SessionUnset
	}
	return StatusOf(t.Cells[session])
}

// OccupiedSessions lists, in column order, every session whose cell is neither
// empty nor "free". These are the sessions that need cover when the teacher is absent.
func (s DaySchedule) OccupiedSessions(name string) []string {
	t, ok := s.Teacher(name)
	if !ok {
		return nil
	}
	var occupied []string
	for _, session := range s.Sessions {
		if StatusOf(t.Cells[session]) == SessionBusy {
			occupied = append(occupied, session)
		}
	}
	return occupied
}

// Workload counts the teacher's own occupied sessions for the day.
func (s DaySchedule) Workload(name string) int {
	return len(s.OccupiedSessions(name))
}

// IsFreeAt reports whether the teacher's cell for session reads "free".
func (s DaySchedule) IsFreeAt(name, session string) bool {
	return s.Status(name, session) == SessionFree
}

// Names returns teacher names in sheet order.
func (s DaySchedule) Names() []string {
	names := make([]string, len(s.Teachers))
	for i, t := range s.Teachers {
		names[i] = t.Name
	}
	return names
}
