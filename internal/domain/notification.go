package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType is the closed set of business events that produce
// notifications. Content rendering switches over it exhaustively.
type NotificationType string

const (
	TypeStageChange  NotificationType = "STAGE_CHANGE"
	TypeAssignment   NotificationType = "ASSIGNMENT"
	TypeOverdueAlert NotificationType = "OVERDUE_ALERT"
	TypeUrgentOrder  NotificationType = "URGENT_ORDER"
	TypeDailySummary NotificationType = "DAILY_SUMMARY"
)

func (t NotificationType) String() string { return string(t) }

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeStageChange, TypeAssignment, TypeOverdueAlert, TypeUrgentOrder, TypeDailySummary:
		return true
	}
	return false
}

func ParseNotificationTypeFromString(s string) (NotificationType, error) {
	t := NotificationType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid notification type %q", ErrValidation, s)
	}
	return t, nil
}

// DeliveryMethod represents the delivery channel.
type DeliveryMethod string

const (
	MethodEmail DeliveryMethod = "EMAIL"
	MethodSMS   DeliveryMethod = "SMS"
	MethodPush  DeliveryMethod = "PUSH"
)

func (m DeliveryMethod) String() string { return string(m) }

func (m DeliveryMethod) IsValid() bool {
	switch m {
	case MethodEmail, MethodSMS, MethodPush:
		return true
	}
	return false
}

func ParseDeliveryMethodFromString(s string) (DeliveryMethod, error) {
	m := DeliveryMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery method %q", ErrValidation, s)
	}
	return m, nil
}

// EntryStatus is the lifecycle state of a queue entry. SENDING is a transient
// claim state so concurrent delivery workers never double-send one entry.
type EntryStatus string

const (
	EntryPending    EntryStatus = "PENDING"
	EntrySending    EntryStatus = "SENDING"
	EntrySent       EntryStatus = "SENT"
	EntryFailed     EntryStatus = "FAILED"
	EntrySuppressed EntryStatus = "SUPPRESSED"
)

func (s EntryStatus) String() string { return string(s) }

func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryPending, EntrySending, EntrySent, EntryFailed, EntrySuppressed:
		return true
	}
	return false
}

// Body limits per delivery method (in characters).
const (
	MaxSMSBody   = 160
	MaxPushBody  = 240
	MaxEmailBody = 10000
)

// QueueEntry is one deliverable notification. Business logic never mutates an
// entry after creation except through status transitions; the dedup invariant
// allows at most one PENDING entry per (recipient, type, relatedOrder).
type QueueEntry struct {
	ID             string
	RecipientID    string
	Type           NotificationType
	DeliveryMethod DeliveryMethod
	Priority       Priority
	Subject        string
	Body           string
	Status         EntryStatus
	ScheduledAt    time.Time
	RelatedOrderID *string
	AttemptCount   int
	MaxAttempts    int
	NextRetryAt    *time.Time
	DispatchedAt   *time.Time
	LastError      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e *QueueEntry) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: queue entry is required", ErrValidation)
	}
	if strings.TrimSpace(e.RecipientID) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, e.Type)
	}
	if !e.DeliveryMethod.IsValid() {
		return fmt.Errorf("%w: invalid delivery method %q", ErrValidation, e.DeliveryMethod)
	}
	if !e.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, e.Priority)
	}
	if e.Body == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}

	bodyLen := len([]rune(e.Body))
	switch e.DeliveryMethod {
	case MethodSMS:
		if bodyLen > MaxSMSBody {
			return fmt.Errorf("%w: SMS body exceeds %d characters (got %d)", ErrValidation, MaxSMSBody, bodyLen)
		}
	case MethodPush:
		if bodyLen > MaxPushBody {
			return fmt.Errorf("%w: push body exceeds %d characters (got %d)", ErrValidation, MaxPushBody, bodyLen)
		}
	case MethodEmail:
		if bodyLen > MaxEmailBody {
			return fmt.Errorf("%w: email body exceeds %d characters (got %d)", ErrValidation, MaxEmailBody, bodyLen)
		}
	}

	return nil
}

// DedupKey identifies the at-most-one-pending tuple for an entry.
func (e *QueueEntry) DedupKey() string {
	orderID := ""
	if e.RelatedOrderID != nil {
		orderID = *e.RelatedOrderID
	}
	return fmt.Sprintf("%s|%s|%s", e.RecipientID, e.Type, orderID)
}
