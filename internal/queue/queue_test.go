package queue

import (
	"testing"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

func TestQueueNames(t *testing.T) {
	work := WorkQueueNames()
	if len(work) != 3 {
		t.Fatalf("WorkQueueNames len = %d, want 3", len(work))
	}

	expected := map[string]struct{}{
		"sms":   {},
		"email": {},
		"push":  {},
	}

	for _, name := range work {
		if _, ok := expected[name]; !ok {
			t.Fatalf("unexpected queue name: %s", name)
		}
	}

	dlq := DLQNames()
	if len(dlq) != 3 {
		t.Fatalf("DLQNames len = %d, want 3", len(dlq))
	}

	expectedDLQ := map[string]struct{}{
		"dlq.sms":   {},
		"dlq.email": {},
		"dlq.push":  {},
	}

	for _, name := range dlq {
		if _, ok := expectedDLQ[name]; !ok {
			t.Fatalf("unexpected dlq name: %s", name)
		}
	}
}

func TestQueueName(t *testing.T) {
	queueName := QueueName(domain.MethodSMS)
	if queueName != "sms" {
		t.Fatalf("QueueName = %s, want sms", queueName)
	}

	dlqName := DLQName(domain.MethodEmail)
	if dlqName != "dlq.email" {
		t.Fatalf("DLQName = %s, want dlq.email", dlqName)
	}
}

func TestPriorityValue(t *testing.T) {
	tests := []struct {
		name     string
		priority domain.Priority
		want     uint8
	}{
		{name: "urgent", priority: domain.PriorityUrgent, want: 4},
		{name: "high", priority: domain.PriorityHigh, want: 3},
		{name: "medium", priority: domain.PriorityMedium, want: 2},
		{name: "low", priority: domain.PriorityLow, want: 1},
		{name: "invalid", priority: domain.Priority("invalid"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriorityValue(tt.priority)
			if got != tt.want {
				t.Fatalf("PriorityValue(%q) = %d, want %d", tt.priority, got, tt.want)
			}
		})
	}
}

func TestDeliveryMessageValidate(t *testing.T) {
	valid := DeliveryMessage{
		EntryID:        "entry-1",
		RecipientID:    "user-1",
		DeliveryMethod: domain.MethodPush,
		Priority:       domain.PriorityMedium,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	missingEntry := valid
	missingEntry.EntryID = " "
	if err := missingEntry.Validate(); err == nil {
		t.Fatal("Validate() expected error for missing entry id")
	}

	badMethod := valid
	badMethod.DeliveryMethod = "FAX"
	if err := badMethod.Validate(); err == nil {
		t.Fatal("Validate() expected error for invalid method")
	}
}
