package domain

import "time"

// Event is a dispatchable business event. The dispatcher resolves its
// recipient set from the type and gates each recipient through the filter.
type Event struct {
	Type            NotificationType
	OrderID         string
	AssignedUserID  string
	FromStage       Stage
	ToStage         Stage
	ActorID         string
	Priority        Priority
	TotalValueCents int64
	// StalenessHours is set on overdue alerts so per-user urgency thresholds
	// can gate delivery.
	StalenessHours int
	// ThresholdHours is the per-stage limit that tripped the overdue scan.
	ThresholdHours int
	OccurredAt     time.Time
}

// StageChangedEvent is the exported form of a committed transition, published
// to the event stream for external integrations.
type StageChangedEvent struct {
	OrderID         string    `json:"order_id"`
	FromStage       Stage     `json:"from_stage"`
	ToStage         Stage     `json:"to_stage"`
	ActorID         string    `json:"actor_id"`
	Priority        Priority  `json:"priority"`
	TotalValueCents int64     `json:"total_value_cents"`
	OccurredAt      time.Time `json:"occurred_at"`
}
