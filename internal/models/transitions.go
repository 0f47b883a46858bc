package models

type BookingEvent string

const (
	EventApprove BookingEvent = "approve"
	EventReject  BookingEvent = "reject"
	EventPickup  BookingEvent = "pickup"
	EventReturn  BookingEvent = "return"
)

type transition struct {
	from BookingStatus
	to   BookingStatus
}

// Forward-only. Each event is legal from exactly one status.
var transitions = map[BookingEvent]transition{
	EventApprove: {from: StatusPending, to: StatusApproved},
	EventReject:  {from: StatusPending, to: StatusRejected},
	EventPickup:  {from: StatusApproved, to: StatusPickedUp},
	EventReturn:  {from: StatusPickedUp, to: StatusReturned},
}

// NextStatus returns the status reached by applying ev to from.
func NextStatus(from BookingStatus, ev BookingEvent) (BookingStatus, bool) {
	t, ok := transitions[ev]
	if !ok || t.from != from {
		return "", false
	}
	return t.to, true
}

// RequiredStatus returns the only status from which ev is accepted.
func RequiredStatus(ev BookingEvent) (BookingStatus, bool) {
	t, ok := transitions[ev]
	return t.from, ok
}
