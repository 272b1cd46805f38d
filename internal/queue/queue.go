package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

// Publisher publishes delivery messages to a work queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DeliveryMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg DeliveryMessage) error

// Consumer consumes delivery messages from a work queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

var supportedMethods = []domain.DeliveryMethod{
	domain.MethodEmail,
	domain.MethodSMS,
	domain.MethodPush,
}

const (
	// queueMaxPriority is the RabbitMQ x-max-priority value for work queues.
	queueMaxPriority int32 = 4
)

// QueueName returns the per-method work queue name, e.g. sms.
func QueueName(method domain.DeliveryMethod) string {
	return strings.ToLower(method.String())
}

// DLQName returns the dead-letter queue name for a method, e.g. dlq.sms.
func DLQName(method domain.DeliveryMethod) string {
	return fmt.Sprintf("dlq.%s", QueueName(method))
}

// WorkQueueNames returns all per-method work queues (3 total).
func WorkQueueNames() []string {
	queues := make([]string, 0, len(supportedMethods))
	for _, method := range supportedMethods {
		queues = append(queues, QueueName(method))
	}
	return queues
}

// DLQNames returns all dead-letter queues (3 total).
func DLQNames() []string {
	queues := make([]string, 0, len(supportedMethods))
	for _, method := range supportedMethods {
		queues = append(queues, DLQName(method))
	}
	return queues
}

// PriorityValue maps order priority to RabbitMQ message priority.
func PriorityValue(priority domain.Priority) uint8 {
	switch priority {
	case domain.PriorityUrgent:
		return 4
	case domain.PriorityHigh:
		return 3
	case domain.PriorityMedium:
		return 2
	case domain.PriorityLow:
		return 1
	default:
		return 0
	}
}
