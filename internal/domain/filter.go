package domain

import "time"

// DeliveryOutcome is the filter verdict for one recipient.
type DeliveryOutcome string

const (
	OutcomeSend     DeliveryOutcome = "SEND"
	OutcomeSuppress DeliveryOutcome = "SUPPRESS"
	OutcomeDefer    DeliveryOutcome = "DEFER"
)

// DeliveryDecision carries the verdict and, for deferrals, the resolved future
// instant at which delivery becomes eligible.
type DeliveryDecision struct {
	Outcome  DeliveryOutcome
	ResumeAt time.Time
}

// FilterOptions tunes deferral resolution.
type FilterOptions struct {
	// WeekdayMorning is the wall-clock time deferred weekend notifications
	// resume on the next weekday.
	WeekdayMorning TimeOfDay
}

// DecideDelivery gates one notification for one recipient. Urgent priority
// overrides quiet hours and weekend suppression: safety-critical alerts must
// not be silenced. nowLocal must already be in the recipient's time zone.
func DecideDelivery(pref NotificationPreference, priority Priority, nowLocal time.Time, opts FilterOptions) DeliveryDecision {
	if !pref.Enabled {
		return DeliveryDecision{Outcome: OutcomeSuppress}
	}
	if priority == PriorityUrgent {
		return DeliveryDecision{Outcome: OutcomeSend}
	}

	resume := nowLocal
	if pref.InQuietWindow(MinutesOfDay(resume)) {
		resume = quietWindowEnd(pref, resume)
	}
	if !pref.WeekendAllowed && isWeekend(resume.Weekday()) {
		resume = nextWeekdayMorning(resume, opts.WeekdayMorning)
	}

	if resume.After(nowLocal) {
		return DeliveryDecision{Outcome: OutcomeDefer, ResumeAt: resume}
	}
	return DeliveryDecision{Outcome: OutcomeSend}
}

// quietWindowEnd resolves the first instant after t at which the quiet window
// has passed. For a wrapped window entered before midnight the end lands on
// the next day.
func quietWindowEnd(pref NotificationPreference, t time.Time) time.Time {
	end := atTimeOfDay(t, pref.QuietEnd)
	if pref.QuietStart > pref.QuietEnd && MinutesOfDay(t) >= pref.QuietStart {
		end = end.AddDate(0, 0, 1)
	}
	if !end.After(t) {
		// Non-wrapped window where t == end; treat as already over.
		return t
	}
	return end
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func nextWeekdayMorning(t time.Time, morning TimeOfDay) time.Time {
	day := t
	for isWeekend(day.Weekday()) {
		day = day.AddDate(0, 0, 1)
	}
	return atTimeOfDay(day, morning)
}

func atTimeOfDay(t time.Time, tod TimeOfDay) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), tod.Hour(), tod.Minute(), 0, 0, t.Location())
}
