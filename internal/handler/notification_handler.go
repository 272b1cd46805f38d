package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

// NotificationStore exposes read-only queue inspection. Entries are written by
// the dispatcher and the delivery workers only; the API never mutates them.
type NotificationStore interface {
	List(ctx context.Context, params repository.QueueListParams) ([]domain.QueueEntry, int64, error)
}

type NotificationHandler struct {
	store NotificationStore
}

func NewNotificationHandler(store NotificationStore) (*NotificationHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	return &NotificationHandler{store: store}, nil
}

func RegisterNotificationRoutes(router fiber.Router, store NotificationStore) error {
	h, err := NewNotificationHandler(store)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notifications", h.ListNotifications)

	return nil
}

type queueEntryResponse struct {
	ID             string     `json:"id"`
	RecipientID    string     `json:"recipientId"`
	Type           string     `json:"type"`
	DeliveryMethod string     `json:"deliveryMethod"`
	Priority       string     `json:"priority"`
	Subject        string     `json:"subject"`
	Status         string     `json:"status"`
	ScheduledAt    time.Time  `json:"scheduledAt"`
	RelatedOrderID *string    `json:"relatedOrderId,omitempty"`
	AttemptCount   int        `json:"attemptCount"`
	MaxAttempts    int        `json:"maxAttempts"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty"`
	DispatchedAt   *time.Time `json:"dispatchedAt,omitempty"`
	LastError      *string    `json:"lastError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt,omitempty"`
}

type listNotificationsResponse struct {
	Data []queueEntryResponse `json:"data"`
	Meta listMeta             `json:"meta"`
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseQueueListParams(c)
	if err != nil {
		return err
	}

	entries, total, err := h.store.List(c.Context(), params)
	if err != nil {
		return err
	}

	data := make([]queueEntryResponse, 0, len(entries))
	for i := range entries {
		data = append(data, toQueueEntryResponse(&entries[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseQueueListParams(c *fiber.Ctx) (repository.QueueListParams, error) {
	params := repository.QueueListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.QueueListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.QueueListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := domain.EntryStatus(strings.ToUpper(raw))
		if !status.IsValid() {
			return repository.QueueListParams{}, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, raw)
		}
		params.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		t, err := domain.ParseNotificationTypeFromString(raw)
		if err != nil {
			return repository.QueueListParams{}, err
		}
		params.Type = &t
	}
	if raw := strings.TrimSpace(c.Query("recipientId")); raw != "" {
		params.RecipientID = &raw
	}

	return params, nil
}

func toQueueEntryResponse(e *domain.QueueEntry) queueEntryResponse {
	if e == nil {
		return queueEntryResponse{}
	}

	return queueEntryResponse{
		ID:             e.ID,
		RecipientID:    e.RecipientID,
		Type:           e.Type.String(),
		DeliveryMethod: e.DeliveryMethod.String(),
		Priority:       e.Priority.String(),
		Subject:        e.Subject,
		Status:         e.Status.String(),
		ScheduledAt:    e.ScheduledAt,
		RelatedOrderID: e.RelatedOrderID,
		AttemptCount:   e.AttemptCount,
		MaxAttempts:    e.MaxAttempts,
		NextRetryAt:    e.NextRetryAt,
		DispatchedAt:   e.DispatchedAt,
		LastError:      e.LastError,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}
