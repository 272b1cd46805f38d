// Package content renders notification subjects and bodies per notification
// type and delivery method. Filtering and dispatch stay formatting-agnostic;
// SMS gets the terse rendering, email the rich one.
package content

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

// Rendered is one notification's deliverable content.
type Rendered struct {
	Subject string
	Body    string
}

// StagePayload feeds stage-change and assignment rendering.
type StagePayload struct {
	OrderID   string
	FromStage domain.Stage
	ToStage   domain.Stage
	ActorID   string
	Priority  domain.Priority
}

// OverduePayload feeds overdue and urgent-order rendering.
type OverduePayload struct {
	OrderID        string
	Stage          domain.Stage
	Priority       domain.Priority
	HoursInStage   int
	ThresholdHours int
}

// DigestPayload feeds daily-summary rendering.
type DigestPayload struct {
	OpenOrders      int
	NewRequests     int
	StageChanges    int
	UrgentOrders    int
	OverdueOrders   int
	OpenValueCents  int64
}

// RenderStageChange builds content for a committed transition.
func RenderStageChange(method domain.DeliveryMethod, p StagePayload) Rendered {
	subject := fmt.Sprintf("Order %s: %s", p.OrderID, stageLabel(p.ToStage))

	switch method {
	case domain.MethodSMS:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("Order %s moved %s -> %s", p.OrderID, stageLabel(p.FromStage), stageLabel(p.ToStage)), domain.MaxSMSBody),
		}
	case domain.MethodPush:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("Moved from %s to %s", stageLabel(p.FromStage), stageLabel(p.ToStage)), domain.MaxPushBody),
		}
	case domain.MethodEmail:
		return Rendered{
			Subject: subject,
			Body: emailBody(subject, []string{
				fmt.Sprintf("Order <strong>%s</strong> has moved from %s to <strong>%s</strong>.", p.OrderID, stageLabel(p.FromStage), stageLabel(p.ToStage)),
				fmt.Sprintf("Priority: %s", priorityLabel(p.Priority)),
				fmt.Sprintf("Changed by: %s", p.ActorID),
			}),
		}
	}
	return Rendered{Subject: subject, Body: subject}
}

// RenderAssignment builds content for a new order assignment.
func RenderAssignment(method domain.DeliveryMethod, p StagePayload) Rendered {
	subject := fmt.Sprintf("Order %s assigned to you", p.OrderID)

	switch method {
	case domain.MethodSMS:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("Order %s assigned to you (%s)", p.OrderID, stageLabel(p.ToStage)), domain.MaxSMSBody),
		}
	case domain.MethodPush:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("New order in %s", stageLabel(p.ToStage)), domain.MaxPushBody),
		}
	case domain.MethodEmail:
		return Rendered{
			Subject: subject,
			Body: emailBody(subject, []string{
				fmt.Sprintf("Order <strong>%s</strong> has been assigned to you.", p.OrderID),
				fmt.Sprintf("Current stage: %s", stageLabel(p.ToStage)),
				fmt.Sprintf("Priority: %s", priorityLabel(p.Priority)),
			}),
		}
	}
	return Rendered{Subject: subject, Body: subject}
}

// RenderOverdueAlert builds content for an order stuck past its threshold.
func RenderOverdueAlert(method domain.DeliveryMethod, p OverduePayload) Rendered {
	subject := fmt.Sprintf("Order %s overdue in %s", p.OrderID, stageLabel(p.Stage))

	switch method {
	case domain.MethodSMS:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("Order %s stuck in %s for %dh (limit %dh)", p.OrderID, stageLabel(p.Stage), p.HoursInStage, p.ThresholdHours), domain.MaxSMSBody),
		}
	case domain.MethodPush:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("%dh in %s, threshold %dh", p.HoursInStage, stageLabel(p.Stage), p.ThresholdHours), domain.MaxPushBody),
		}
	case domain.MethodEmail:
		return Rendered{
			Subject: subject,
			Body: emailBody(subject, []string{
				fmt.Sprintf("Order <strong>%s</strong> has been in stage %s for <strong>%d hours</strong>.", p.OrderID, stageLabel(p.Stage), p.HoursInStage),
				fmt.Sprintf("The configured threshold for this stage is %d hours.", p.ThresholdHours),
				fmt.Sprintf("Priority: %s", priorityLabel(p.Priority)),
			}),
		}
	}
	return Rendered{Subject: subject, Body: subject}
}

// RenderUrgentOrder builds content for an urgent-priority escalation.
func RenderUrgentOrder(method domain.DeliveryMethod, p OverduePayload) Rendered {
	subject := fmt.Sprintf("URGENT: order %s needs attention", p.OrderID)

	switch method {
	case domain.MethodSMS:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("URGENT order %s in %s for %dh", p.OrderID, stageLabel(p.Stage), p.HoursInStage), domain.MaxSMSBody),
		}
	case domain.MethodPush:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("Urgent order in %s for %dh", stageLabel(p.Stage), p.HoursInStage), domain.MaxPushBody),
		}
	case domain.MethodEmail:
		return Rendered{
			Subject: subject,
			Body: emailBody(subject, []string{
				fmt.Sprintf("Urgent-priority order <strong>%s</strong> has been in stage %s for %d hours.", p.OrderID, stageLabel(p.Stage), p.HoursInStage),
				"Please review it immediately.",
			}),
		}
	}
	return Rendered{Subject: subject, Body: subject}
}

// RenderDailySummary builds the aggregated digest.
func RenderDailySummary(method domain.DeliveryMethod, p DigestPayload) Rendered {
	subject := fmt.Sprintf("Daily summary: %d open orders", p.OpenOrders)

	switch method {
	case domain.MethodSMS:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("Open %d, new %d, urgent %d, overdue %d", p.OpenOrders, p.NewRequests, p.UrgentOrders, p.OverdueOrders), domain.MaxSMSBody),
		}
	case domain.MethodPush:
		return Rendered{
			Subject: subject,
			Body:    truncate(fmt.Sprintf("%d open orders, %d overdue", p.OpenOrders, p.OverdueOrders), domain.MaxPushBody),
		}
	case domain.MethodEmail:
		return Rendered{
			Subject: subject,
			Body: emailBody(subject, []string{
				fmt.Sprintf("Open orders: <strong>%d</strong>", p.OpenOrders),
				fmt.Sprintf("New quote requests: %d", p.NewRequests),
				fmt.Sprintf("Stage changes since yesterday: %d", p.StageChanges),
				fmt.Sprintf("Urgent orders: %d", p.UrgentOrders),
				fmt.Sprintf("Overdue orders: %d", p.OverdueOrders),
				fmt.Sprintf("Total open value: %s", formatCents(p.OpenValueCents)),
			}),
		}
	}
	return Rendered{Subject: subject, Body: subject}
}

func stageLabel(s domain.Stage) string {
	switch s {
	case domain.StageQuoteRequested:
		return "Quote Requested"
	case domain.StageQuotePrepared:
		return "Quote Prepared"
	case domain.StageQuoteSent:
		return "Quote Sent"
	case domain.StageQuoteApproved:
		return "Quote Approved"
	case domain.StageOrderProcessing:
		return "Order Processing"
	case domain.StageReadyToShip:
		return "Ready to Ship"
	case domain.StageInvoicedDelivered:
		return "Invoiced & Delivered"
	case domain.StageCancelled:
		return "Cancelled"
	}
	return string(s)
}

func priorityLabel(p domain.Priority) string {
	return strings.ToLower(p.String())
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func emailBody(title string, lines []string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>%s</h2>", title))
	for _, line := range lines {
		b.WriteString(fmt.Sprintf("<p>%s</p>", line))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
