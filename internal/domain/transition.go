package domain

import "time"

// StageTransitionRecord is one immutable line of the history ledger. One record
// is appended per committed transition; timestamp ordering is the source of
// truth for history views.
type StageTransitionRecord struct {
	ID                   string
	OrderID              string
	FromStage            Stage
	ToStage              Stage
	ActorID              string
	Notes                string
	DurationInPriorStage time.Duration
	CreatedAt            time.Time
}
