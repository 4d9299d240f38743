package attendance

import (
	"cmp"

	"qr-attendance-backend/internal/collections"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/sequence"
)

// StudentAttendance is one student's consolidated view of an event: the most
// recent morning and afternoon records, or nil for a period not attended.
type StudentAttendance struct {
	StudentID int64                   `json:"studentId"`
	Morning   *model.AttendanceRecord `json:"morningRecord"`
	Afternoon *model.AttendanceRecord `json:"afternoonRecord"`
}

// Consolidate groups the event's records by student and keeps the latest
// record per period. Rows for other events are ignored. The result is
// ordered by student id.
func Consolidate(records []model.AttendanceRecord, eventID int64) []StudentAttendance {
	byStudent := collections.NewKeyedIndex[int64, *StudentAttendance](len(records))

	for i := range records {
		r := records[i]
		if r.EventID != eventID {
			continue
		}
		row, ok := byStudent.Get(r.StudentID)
		if !ok {
			row = &StudentAttendance{StudentID: r.StudentID}
			byStudent.Set(r.StudentID, row)
		}

		slot := &row.Morning
		switch r.TimePeriod {
		case model.PeriodMorning:
		case model.PeriodAfternoon:
			slot = &row.Afternoon
		default:
			continue
		}
		if *slot == nil || moreRecent(&r, *slot) {
			rec := r
			*slot = &rec
		}
	}

	rows := make([]StudentAttendance, 0, byStudent.Len())
	for _, row := range byStudent.Values() {
		rows = append(rows, *row)
	}
	return sequence.StableSort(rows, func(a, b StudentAttendance) int {
		return cmp.Compare(a.StudentID, b.StudentID)
	})
}

// UniqueAttendees counts distinct students with at least one record for the
// event, however many sessions each of them has.
func UniqueAttendees(records []model.AttendanceRecord, eventID int64) int {
	seen := collections.NewKeyedIndex[int64, struct{}](0)
	for _, r := range records {
		if r.EventID == eventID {
			seen.Set(r.StudentID, struct{}{})
		}
	}
	return seen.Len()
}

// EventCounts returns the unique attendee count of every event present in
// records.
func EventCounts(records []model.AttendanceRecord) map[int64]int {
	perEvent := make(map[int64]*collections.KeyedIndex[int64, struct{}])
	for _, r := range records {
		students, ok := perEvent[r.EventID]
		if !ok {
			students = collections.NewKeyedIndex[int64, struct{}](0)
			perEvent[r.EventID] = students
		}
		students.Set(r.StudentID, struct{}{})
	}

	counts := make(map[int64]int, len(perEvent))
	for eventID, students := range perEvent {
		counts[eventID] = students.Len()
	}
	return counts
}
