package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a local wall-clock time stored as minutes since midnight.
type TimeOfDay int

func (t TimeOfDay) IsValid() bool { return t >= 0 && t < 24*60 }

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ParseTimeOfDay parses "HH:MM" wall-clock strings.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: invalid time of day %q", ErrValidation, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time of day %q", ErrValidation, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time of day %q", ErrValidation, s)
	}

	t := TimeOfDay(hour*60 + minute)
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || !t.IsValid() {
		return 0, fmt.Errorf("%w: time of day %q out of range", ErrValidation, s)
	}
	return t, nil
}

// MinutesOfDay extracts the wall-clock minutes of ts in its own location.
func MinutesOfDay(ts time.Time) TimeOfDay {
	return TimeOfDay(ts.Hour()*60 + ts.Minute())
}

// NotificationPreference holds one user's delivery settings for one
// notification type. An absent record means system defaults apply.
type NotificationPreference struct {
	UserID                string
	Type                  NotificationType
	Enabled               bool
	DeliveryMethod        DeliveryMethod
	QuietHoursEnabled     bool
	QuietStart            TimeOfDay
	QuietEnd              TimeOfDay
	WeekendAllowed        bool
	UrgencyThresholdHours int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (p *NotificationPreference) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: preference is required", ErrValidation)
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, p.Type)
	}
	if !p.DeliveryMethod.IsValid() {
		return fmt.Errorf("%w: invalid delivery method %q", ErrValidation, p.DeliveryMethod)
	}
	if p.QuietHoursEnabled && (!p.QuietStart.IsValid() || !p.QuietEnd.IsValid()) {
		return fmt.Errorf("%w: quiet hours window is out of range", ErrValidation)
	}
	if p.UrgencyThresholdHours < 0 {
		return fmt.Errorf("%w: urgency threshold must not be negative", ErrValidation)
	}
	return nil
}

// InQuietWindow reports whether t falls inside the quiet window. A window with
// QuietStart > QuietEnd wraps past midnight: [start, 24:00) ∪ [00:00, end].
func (p *NotificationPreference) InQuietWindow(t TimeOfDay) bool {
	if p == nil || !p.QuietHoursEnabled {
		return false
	}
	if p.QuietStart == p.QuietEnd {
		return false
	}
	if p.QuietStart > p.QuietEnd {
		return t >= p.QuietStart || t <= p.QuietEnd
	}
	return t >= p.QuietStart && t <= p.QuietEnd
}

// PreferenceDefaults are the system-wide fallbacks applied when a user has no
// stored preference for a notification type.
type PreferenceDefaults struct {
	DeliveryMethod        DeliveryMethod
	QuietStart            TimeOfDay
	QuietEnd              TimeOfDay
	WeekendAllowed        bool
	UrgencyThresholdHours int
}

// DefaultPreference materializes the system defaults for (userID, t).
func DefaultPreference(userID string, t NotificationType, d PreferenceDefaults) NotificationPreference {
	method := d.DeliveryMethod
	if !method.IsValid() {
		method = MethodEmail
	}
	return NotificationPreference{
		UserID:                userID,
		Type:                  t,
		Enabled:               true,
		DeliveryMethod:        method,
		QuietHoursEnabled:     true,
		QuietStart:            d.QuietStart,
		QuietEnd:              d.QuietEnd,
		WeekendAllowed:        d.WeekendAllowed,
		UrgencyThresholdHours: d.UrgencyThresholdHours,
	}
}
