package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

// DeliveryMessage is the broker payload pointing a worker at one queue entry.
// Workers re-read the entry from storage, so a stale message is harmless.
type DeliveryMessage struct {
	EntryID        string                `json:"entryId"`
	RecipientID    string                `json:"recipientId"`
	DeliveryMethod domain.DeliveryMethod `json:"deliveryMethod"`
	Priority       domain.Priority       `json:"priority"`
}

func (m DeliveryMessage) Validate() error {
	if strings.TrimSpace(m.EntryID) == "" {
		return fmt.Errorf("entryId is required")
	}
	if !m.DeliveryMethod.IsValid() {
		return fmt.Errorf("invalid delivery method %q", m.DeliveryMethod)
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", m.Priority)
	}
	return nil
}
