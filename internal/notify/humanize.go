package notify

import (
	"time"

	"github.com/xeonx/timeago"
)

// Relative describes t relative to now, e.g. "in 2 hours" or "5 minutes ago".
func Relative(t, now time.Time) string {
	return timeago.English.FormatReference(t, now)
}
