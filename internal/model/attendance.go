package model

import "time"

// Period is the half of the event day a record belongs to.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
)

// Valid reports whether p is morning or afternoon.
func (p Period) Valid() bool {
	return p == PeriodMorning || p == PeriodAfternoon
}

// Label returns the operator-facing AM/PM label.
func (p Period) Label() string {
	if p == PeriodAfternoon {
		return "PM"
	}
	return "AM"
}

// AttendanceStatus is the state of a single attendance row.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLeft    AttendanceStatus = "left"
)

// AttendanceRecord is one time-in, optionally closed by a time-out.
// At most one record per (student, event, period) is open at any time.
type AttendanceRecord struct {
	ID         int64            `gorm:"primaryKey" json:"id"`
	StudentID  int64            `gorm:"index:idx_attendance_lookup,priority:1;not null" json:"studentId"`
	EventID    int64            `gorm:"index:idx_attendance_lookup,priority:2;index;not null" json:"eventId"`
	TimePeriod Period           `gorm:"index:idx_attendance_lookup,priority:3;size:16;not null" json:"timePeriod"`
	TimeIn     time.Time        `gorm:"not null" json:"timeIn"`
	TimeOut    *time.Time       `json:"timeOut"`
	Status     AttendanceStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// IsOpen reports whether the record still awaits a time-out.
func (r AttendanceRecord) IsOpen() bool {
	return r.Status == StatusPresent && r.TimeOut == nil
}
