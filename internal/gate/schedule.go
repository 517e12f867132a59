package gate

import (
	"time"

	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

// windowActive evaluates a one-off activation window. Both bounds are
// inclusive; a zero bound is open-ended on that side.
func windowActive(now time.Time, w models.ScheduleWindow) bool {
	ts := now.Unix()
	switch {
	case w.Start == 0 && w.End == 0:
		return false
	case w.Start == 0:
		return ts <= w.End
	case w.End == 0:
		return ts >= w.Start
	default:
		return ts >= w.Start && ts <= w.End
	}
}

// recurringActive evaluates a recurring rule against "now" translated into
// the rule's timezone. Unparseable clock strings make the rule inert.
func recurringActive(rule models.RecurringRule, now time.Time, siteLoc *time.Location) bool {
	start := models.MinuteOfDay(rule.StartTime)
	end := models.MinuteOfDay(rule.EndTime)
	if start < 0 || end < 0 {
		return false
	}

	local := now.In(resolveLocation(rule.Timezone, siteLoc))
	minute := local.Hour()*60 + local.Minute()
	if !minuteInRange(minute, start, end) {
		return false
	}

	switch rule.Frequency {
	case models.FrequencyDaily:
		return true
	case models.FrequencyWeekly:
		return containsDay(rule.DaysOfWeek, isoWeekday(local))
	case models.FrequencyMonthly:
		return containsDay(rule.DaysOfMonth, local.Day())
	default:
		return false
	}
}

// minuteInRange checks minute-of-day membership, wrapping past midnight when
// start > end (e.g. 22:00-06:00). Equal bounds never match.
func minuteInRange(value, start, end int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return value >= start && value <= end
	default:
		return value >= start || value <= end
	}
}

// resolveLocation honors an explicit zone name; empty, the "site" sentinel
// and unloadable names all fall back to the site default rather than failing
// the request.
func resolveLocation(name string, siteLoc *time.Location) *time.Location {
	if name == "" || name == "site" {
		return siteLoc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return siteLoc
	}
	return loc
}

// isoWeekday maps Go's Sunday-first weekday to ISO numbering (1=Mon..7=Sun).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
