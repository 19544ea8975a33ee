package owner

import (
	"time"

	"github.com/inmo/backoffice/internal/platform/kpi"
)

// DefaultExclusivityWindow is how many days ahead an ending exclusivity
// agreement is flagged.
const DefaultExclusivityWindow = 30

// ExclusivityExpiringSoon reports whether o's exclusivity ends between today
// and withinDays from today, both inclusive. Inactive owners are never
// flagged.
func ExclusivityExpiringSoon(o *Owner, now time.Time, withinDays int) bool {
	if o.Status == StatusInactive {
		return false
	}
	end := parseDate(o.ExclusivityEnd)
	if end == nil {
		return false
	}
	today := kpi.StartOfDay(now)
	d := kpi.DateIn(*end, now.Location())
	return !d.Before(today) && !d.After(today.AddDate(0, 0, withinDays))
}
