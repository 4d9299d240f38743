package attendance

import (
	"cmp"

	"qr-attendance-backend/internal/collections"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/sequence"
)

// ByTimeIn orders records oldest first; ids break identical timestamps.
func ByTimeIn(a, b model.AttendanceRecord) int {
	if c := a.TimeIn.Compare(b.TimeIn); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// moreRecent reports whether a supersedes b: later time-in, then higher id.
func moreRecent(a, b *model.AttendanceRecord) bool {
	return ByTimeIn(*a, *b) > 0
}

// ArrivalOrder returns the records in time-in order as a FIFO queue, the
// order a live list displays them in.
func ArrivalOrder(records []model.AttendanceRecord) *collections.OrderedQueue[model.AttendanceRecord] {
	sorted := sequence.StableSort(records, ByTimeIn)
	q := collections.NewOrderedQueue[model.AttendanceRecord](len(sorted))
	for _, r := range sorted {
		q.Enqueue(r)
	}
	return q
}
