package scheduling

import "devlend/internal/models"

// BusySet collects resource ids bound to active bookings whose window
// overlaps w. The booking with id exclude (0 for none) is ignored.
func BusySet(w Window, bookings []models.Booking, exclude int64) map[int64]struct{} {
	busy := make(map[int64]struct{})
	for i := range bookings {
		b := &bookings[i]
		if b.ID == exclude && exclude != 0 {
			continue
		}
		if !b.Status.IsActive() || b.ResourceID == nil {
			continue
		}
		if Overlaps(w, Window{Start: b.StartAt, End: b.EndAt}) {
			busy[*b.ResourceID] = struct{}{}
		}
	}
	return busy
}

// FindFreeResource returns the first candidate, in slice order, that no
// active booking holds during w.
func FindFreeResource(candidates []int64, w Window, bookings []models.Booking) (int64, bool) {
	return FindFreeResourceExcluding(candidates, w, bookings, 0)
}

// FindFreeResourceExcluding is FindFreeResource ignoring one booking, used
// when the booking being approved is itself part of the active set.
func FindFreeResourceExcluding(candidates []int64, w Window, bookings []models.Booking, exclude int64) (int64, bool) {
	busy := BusySet(w, bookings, exclude)
	for _, id := range candidates {
		if _, taken := busy[id]; !taken {
			return id, true
		}
	}
	return 0, false
}

func IsWindowFeasible(candidates []int64, w Window, bookings []models.Booking) bool {
	_, ok := FindFreeResource(candidates, w, bookings)
	return ok
}
