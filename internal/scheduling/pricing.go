package scheduling

import "time"

const day = 24 * time.Hour

// BillableDays rounds the window up to whole days, minimum one.
func BillableDays(w Window) int64 {
	d := w.Duration()
	days := int64(d / day)
	if d%day != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// QuotePrice prices w at dailyRate per started day. ok is false when the
// rate is not positive and the booking carries no price.
func QuotePrice(dailyRate int64, w Window) (price int64, ok bool) {
	if dailyRate <= 0 {
		return 0, false
	}
	return BillableDays(w) * dailyRate, true
}
