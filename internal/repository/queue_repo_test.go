package repository

import (
	"testing"
	"time"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

func TestPendingUpsertAssignmentsResetDispatchState(t *testing.T) {
	t.Parallel()

	scheduled := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	model := &QueueEntryModel{
		ID:             "entry-1",
		RecipientID:    "user-1",
		Type:           domain.TypeStageChange,
		DeliveryMethod: domain.MethodEmail,
		Priority:       domain.PriorityHigh,
		Subject:        "replacement subject",
		Body:           "replacement body",
		Status:         domain.EntryPending,
		ScheduledAt:    scheduled,
	}

	assignments := pendingUpsertAssignments(model)

	// A re-dispatch that replaces a pending entry starts a fresh dispatch
	// cycle. Keeping the old dispatched_at would make GetDueForDispatch skip
	// the entry after an in-flight worker claim finds it not yet due, leaving
	// it pending forever.
	for _, column := range []string{"dispatched_at", "next_retry_at"} {
		value, ok := assignments[column]
		if !ok {
			t.Fatalf("upsert does not write %s", column)
		}
		if value != nil {
			t.Fatalf("%s = %v, want NULL", column, value)
		}
	}

	if assignments["subject"] != "replacement subject" {
		t.Fatalf("subject = %v, want replacement subject", assignments["subject"])
	}
	if assignments["body"] != "replacement body" {
		t.Fatalf("body = %v, want replacement body", assignments["body"])
	}
	if got, ok := assignments["scheduled_at"].(time.Time); !ok || !got.Equal(scheduled) {
		t.Fatalf("scheduled_at = %v, want %v", assignments["scheduled_at"], scheduled)
	}
	if _, ok := assignments["status"]; ok {
		t.Fatal("upsert must not touch status, the conflict target is already PENDING")
	}
}
