package session

import (
	"fmt"
	"time"
)

// FormatMessageDate renders ts relative to now the way the message list shows it:
// the clock time on its own for messages less than a day old, the clock time and
// the whole number of days elapsed up to 29 days, and the clock time plus the
// calendar date beyond that.
func FormatMessageDate(ts, now time.Time) string {
	ts = ts.Local()
	clock := ts.Format("15:04")

	days := int(now.Sub(ts) / (24 * time.Hour))
	switch {
	case days <= 0:
		return clock
	case days == 1:
		return clock + ", 1 day ago"
	case days < 30:
		return fmt.Sprintf("%s, %d days ago", clock, days)
	default:
		return clock + ", " + ts.Format("Jan 2, 2006")
	}
}
