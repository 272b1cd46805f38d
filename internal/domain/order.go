package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage represents one discrete position of an order in the fixed pipeline.
type Stage string

const (
	StageQuoteRequested    Stage = "QUOTE_REQUESTED"
	StageQuotePrepared     Stage = "QUOTE_PREPARED"
	StageQuoteSent         Stage = "QUOTE_SENT"
	StageQuoteApproved     Stage = "QUOTE_APPROVED"
	StageOrderProcessing   Stage = "ORDER_PROCESSING"
	StageReadyToShip       Stage = "READY_TO_SHIP"
	StageInvoicedDelivered Stage = "INVOICED_DELIVERED"
	StageCancelled         Stage = "CANCELLED"
)

func (s Stage) String() string { return string(s) }

// Stages returns every pipeline stage in ordinal order.
func Stages() []Stage {
	return []Stage{
		StageQuoteRequested,
		StageQuotePrepared,
		StageQuoteSent,
		StageQuoteApproved,
		StageOrderProcessing,
		StageReadyToShip,
		StageInvoicedDelivered,
		StageCancelled,
	}
}

func (s Stage) IsValid() bool {
	switch s {
	case StageQuoteRequested, StageQuotePrepared, StageQuoteSent, StageQuoteApproved,
		StageOrderProcessing, StageReadyToShip, StageInvoicedDelivered, StageCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Stage) IsTerminal() bool {
	return s == StageInvoicedDelivered || s == StageCancelled
}

func ParseStageFromString(s string) (Stage, error) {
	st := Stage(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid stage %q", ErrValidation, s)
	}
	return st, nil
}

// allowedTransitions is the explicit edge table. Limited backward moves are
// legitimate (fixing a quote that was sent too early) while skipping stages is
// not, so the table is authoritative rather than the ordinal stage order.
var allowedTransitions = map[Stage][]Stage{
	StageQuoteRequested:    {StageQuotePrepared},
	StageQuotePrepared:     {StageQuoteSent, StageQuoteRequested},
	StageQuoteSent:         {StageQuoteApproved, StageQuotePrepared},
	StageQuoteApproved:     {StageOrderProcessing},
	StageOrderProcessing:   {StageReadyToShip},
	StageReadyToShip:       {StageInvoicedDelivered},
	StageInvoicedDelivered: {},
	StageCancelled:         {},
}

// CanTransitionTo reports whether the edge s -> target is in the allowed table.
// Cancellation is reachable from every non-terminal stage.
func (s Stage) CanTransitionTo(target Stage) bool {
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	if target == StageCancelled {
		return !s.IsTerminal()
	}
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// AllowedNextStages returns the full allowed set from s, cancellation included.
func (s Stage) AllowedNextStages() []Stage {
	if !s.IsValid() || s.IsTerminal() {
		return nil
	}
	next := make([]Stage, 0, len(allowedTransitions[s])+1)
	next = append(next, allowedTransitions[s]...)
	next = append(next, StageCancelled)
	return next
}

// Priority represents the business urgency of an order.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// Order is the core entity tracked through the pipeline. Stage mutation goes
// through the pipeline service only; orders are never physically deleted.
type Order struct {
	ID                     string
	Stage                  Stage
	Priority               Priority
	TotalValueCents        int64
	AssignedUserID         string
	AccountID              string
	ExpectedCloseDate      *time.Time
	StageEnteredAt         time.Time
	ClientApprovalRecorded bool
	ManufacturingComplete  bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: order is required", ErrValidation)
	}
	if strings.TrimSpace(o.AssignedUserID) == "" {
		return fmt.Errorf("%w: assigned user is required", ErrValidation)
	}
	if strings.TrimSpace(o.AccountID) == "" {
		return fmt.Errorf("%w: account is required", ErrValidation)
	}
	if !o.Stage.IsValid() {
		return fmt.Errorf("%w: invalid stage %q", ErrValidation, o.Stage)
	}
	if !o.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, o.Priority)
	}
	if o.TotalValueCents < 0 {
		return fmt.Errorf("%w: total value must not be negative", ErrValidation)
	}
	return nil
}

// GateFor returns the precondition flag name guarding entry into target, or ""
// when the edge is ungated.
func GateFor(target Stage) string {
	switch target {
	case StageOrderProcessing:
		return "clientApprovalRecorded"
	case StageReadyToShip:
		return "manufacturingComplete"
	}
	return ""
}

// GateSatisfied reports whether the order meets the precondition for target.
func (o *Order) GateSatisfied(target Stage) bool {
	switch target {
	case StageOrderProcessing:
		return o.ClientApprovalRecorded
	case StageReadyToShip:
		return o.ManufacturingComplete
	}
	return true
}

// Staleness classifies how long an order has sat in its current stage.
type Staleness string

const (
	StalenessOK      Staleness = "OK"
	StalenessAtRisk  Staleness = "AT_RISK"
	StalenessOverdue Staleness = "OVERDUE"
)

// ClassifyStaleness compares time spent in the current stage against the
// per-stage threshold. At-risk starts at half the threshold; terminal stages
// are never stale.
func ClassifyStaleness(o *Order, now time.Time, threshold time.Duration) Staleness {
	if o == nil || o.Stage.IsTerminal() || threshold <= 0 {
		return StalenessOK
	}

	elapsed := now.Sub(o.StageEnteredAt)
	switch {
	case elapsed >= threshold:
		return StalenessOverdue
	case elapsed*2 >= threshold:
		return StalenessAtRisk
	}
	return StalenessOK
}
