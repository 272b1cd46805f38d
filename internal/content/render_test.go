package content

import (
	"strings"
	"testing"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

func TestRenderStageChangePerMethod(t *testing.T) {
	t.Parallel()

	payload := StagePayload{
		OrderID:   "ORD-1001",
		FromStage: domain.StageQuoteSent,
		ToStage:   domain.StageQuoteApproved,
		ActorID:   "user-7",
		Priority:  domain.PriorityHigh,
	}

	sms := RenderStageChange(domain.MethodSMS, payload)
	if len([]rune(sms.Body)) > domain.MaxSMSBody {
		t.Fatalf("sms body length = %d, want <= %d", len([]rune(sms.Body)), domain.MaxSMSBody)
	}
	if !strings.Contains(sms.Body, "ORD-1001") {
		t.Fatalf("sms body missing order id: %q", sms.Body)
	}

	push := RenderStageChange(domain.MethodPush, payload)
	if len([]rune(push.Body)) > domain.MaxPushBody {
		t.Fatalf("push body length = %d, want <= %d", len([]rune(push.Body)), domain.MaxPushBody)
	}

	email := RenderStageChange(domain.MethodEmail, payload)
	if !strings.Contains(email.Body, "<html>") {
		t.Fatalf("email body is not html: %q", email.Body)
	}
	if !strings.Contains(email.Body, "Quote Approved") {
		t.Fatalf("email body missing target stage: %q", email.Body)
	}
	if email.Subject != "Order ORD-1001: Quote Approved" {
		t.Fatalf("email subject = %q", email.Subject)
	}
}

func TestRenderSMSTruncation(t *testing.T) {
	t.Parallel()

	payload := StagePayload{
		OrderID:   strings.Repeat("X", 300),
		FromStage: domain.StageQuoteRequested,
		ToStage:   domain.StageQuotePrepared,
	}

	got := RenderStageChange(domain.MethodSMS, payload)
	if len([]rune(got.Body)) != domain.MaxSMSBody {
		t.Fatalf("truncated sms length = %d, want %d", len([]rune(got.Body)), domain.MaxSMSBody)
	}
	if !strings.HasSuffix(got.Body, "...") {
		t.Fatalf("truncated sms should end with ellipsis: %q", got.Body)
	}
}

func TestRenderOverdueAlert(t *testing.T) {
	t.Parallel()

	got := RenderOverdueAlert(domain.MethodEmail, OverduePayload{
		OrderID:        "ORD-9",
		Stage:          domain.StageOrderProcessing,
		Priority:       domain.PriorityMedium,
		HoursInStage:   72,
		ThresholdHours: 48,
	})

	if !strings.Contains(got.Subject, "overdue") {
		t.Fatalf("subject = %q", got.Subject)
	}
	if !strings.Contains(got.Body, "72 hours") {
		t.Fatalf("body missing elapsed hours: %q", got.Body)
	}
	if !strings.Contains(got.Body, "48 hours") {
		t.Fatalf("body missing threshold: %q", got.Body)
	}
}

func TestRenderUrgentOrder(t *testing.T) {
	t.Parallel()

	got := RenderUrgentOrder(domain.MethodPush, OverduePayload{
		OrderID:      "ORD-3",
		Stage:        domain.StageReadyToShip,
		HoursInStage: 5,
	})

	if !strings.Contains(got.Subject, "URGENT") {
		t.Fatalf("subject = %q", got.Subject)
	}
	if len([]rune(got.Body)) > domain.MaxPushBody {
		t.Fatalf("push body too long: %d", len([]rune(got.Body)))
	}
}

func TestRenderDailySummary(t *testing.T) {
	t.Parallel()

	got := RenderDailySummary(domain.MethodEmail, DigestPayload{
		OpenOrders:     12,
		NewRequests:    3,
		StageChanges:   7,
		UrgentOrders:   1,
		OverdueOrders:  2,
		OpenValueCents: 1250050,
	})

	if got.Subject != "Daily summary: 12 open orders" {
		t.Fatalf("subject = %q", got.Subject)
	}
	if !strings.Contains(got.Body, "$12500.50") {
		t.Fatalf("body missing formatted value: %q", got.Body)
	}
	if !strings.Contains(got.Body, "Overdue orders: 2") {
		t.Fatalf("body missing overdue count: %q", got.Body)
	}
}
