// Package scheduling holds the pure admission logic: interval overlap,
// free-resource selection and price quoting. Nothing here touches the store.
package scheduling

import (
	"errors"
	"time"
)

var ErrEmptyWindow = errors.New("window end must be after start")

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, ErrEmptyWindow
	}
	return Window{Start: start, End: end}, nil
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether a and b share at least one instant.
// Windows that only touch at a boundary do not overlap.
func Overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
