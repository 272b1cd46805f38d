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

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type OrderService interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, params repository.OrderListParams) ([]domain.Order, int64, error)
	RequestTransition(ctx context.Context, orderID string, toStage domain.Stage, actorID, notes string) (*domain.Order, error)
	History(ctx context.Context, orderID string) ([]domain.StageTransitionRecord, error)
	RecordClientApproval(ctx context.Context, orderID string) error
	RecordManufacturingComplete(ctx context.Context, orderID string) error
}

type OrderHandler struct {
	service OrderService
}

func NewOrderHandler(service OrderService) (*OrderHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("order service is required")
	}
	return &OrderHandler{service: service}, nil
}

func RegisterOrderRoutes(router fiber.Router, service OrderService) error {
	h, err := NewOrderHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/orders", h.CreateOrder)
	v1.Get("/orders", h.ListOrders)
	v1.Get("/orders/:id", h.GetOrder)
	v1.Post("/orders/:id/transition", h.Transition)
	v1.Get("/orders/:id/history", h.History)
	v1.Post("/orders/:id/client-approval", h.RecordClientApproval)
	v1.Post("/orders/:id/manufacturing-complete", h.RecordManufacturingComplete)

	return nil
}

type createOrderRequest struct {
	AssignedUserID    string `json:"assignedUserId"`
	AccountID         string `json:"accountId"`
	Priority          string `json:"priority,omitempty"`
	TotalValueCents   int64  `json:"totalValueCents"`
	ExpectedCloseDate string `json:"expectedCloseDate,omitempty"`
}

type transitionRequest struct {
	ToStage string `json:"toStage"`
	ActorID string `json:"actorId"`
	Notes   string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID                     string     `json:"id"`
	Stage                  string     `json:"stage"`
	Priority               string     `json:"priority"`
	TotalValueCents        int64      `json:"totalValueCents"`
	AssignedUserID         string     `json:"assignedUserId"`
	AccountID              string     `json:"accountId"`
	ExpectedCloseDate      *time.Time `json:"expectedCloseDate,omitempty"`
	StageEnteredAt         time.Time  `json:"stageEnteredAt"`
	ClientApprovalRecorded bool       `json:"clientApprovalRecorded"`
	ManufacturingComplete  bool       `json:"manufacturingComplete"`
	AllowedNextStages      []string   `json:"allowedNextStages"`
	CreatedAt              time.Time  `json:"createdAt,omitempty"`
	UpdatedAt              time.Time  `json:"updatedAt,omitempty"`
}

type transitionResponse struct {
	ID                   string    `json:"id"`
	OrderID              string    `json:"orderId"`
	FromStage            string    `json:"fromStage"`
	ToStage              string    `json:"toStage"`
	ActorID              string    `json:"actorId"`
	Notes                string    `json:"notes,omitempty"`
	DurationInPriorStage string    `json:"durationInPriorStage"`
	CreatedAt            time.Time `json:"createdAt"`
}

type listOrdersResponse struct {
	Data []orderResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order := domain.Order{
		AssignedUserID:  strings.TrimSpace(req.AssignedUserID),
		AccountID:       strings.TrimSpace(req.AccountID),
		TotalValueCents: req.TotalValueCents,
	}

	if raw := strings.TrimSpace(req.Priority); raw != "" {
		priority, err := domain.ParsePriorityFromString(raw)
		if err != nil {
			return err
		}
		order.Priority = priority
	}
	if raw := strings.TrimSpace(req.ExpectedCloseDate); raw != "" {
		closeDate, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("%w: expectedCloseDate must be RFC3339", domain.ErrValidation)
		}
		order.ExpectedCloseDate = &closeDate
	}

	created, err := h.service.CreateOrder(c.Context(), &order)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toOrderResponse(created))
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	params, err := parseOrderListParams(c)
	if err != nil {
		return err
	}

	orders, total, err := h.service.ListOrders(c.Context(), params)
	if err != nil {
		return err
	}

	data := make([]orderResponse, 0, len(orders))
	for i := range orders {
		data = append(data, toOrderResponse(&orders[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listOrdersResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *OrderHandler) Transition(c *fiber.Ctx) error {
	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	toStage, err := domain.ParseStageFromString(req.ToStage)
	if err != nil {
		return err
	}

	order, err := h.service.RequestTransition(c.Context(), c.Params("id"), toStage, req.ActorID, req.Notes)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func (h *OrderHandler) History(c *fiber.Ctx) error {
	records, err := h.service.History(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	data := make([]transitionResponse, 0, len(records))
	for _, record := range records {
		data = append(data, transitionResponse{
			ID:                   record.ID,
			OrderID:              record.OrderID,
			FromStage:            record.FromStage.String(),
			ToStage:              record.ToStage.String(),
			ActorID:              record.ActorID,
			Notes:                record.Notes,
			DurationInPriorStage: record.DurationInPriorStage.String(),
			CreatedAt:            record.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *OrderHandler) RecordClientApproval(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.RecordClientApproval(c.Context(), id); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orderId":                id,
		"clientApprovalRecorded": true,
	})
}

func (h *OrderHandler) RecordManufacturingComplete(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.RecordManufacturingComplete(c.Context(), id); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orderId":               id,
		"manufacturingComplete": true,
	})
}

func parseOrderListParams(c *fiber.Ctx) (repository.OrderListParams, error) {
	params := repository.OrderListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.OrderListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.OrderListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if raw := strings.TrimSpace(c.Query("stage")); raw != "" {
		stage, err := domain.ParseStageFromString(raw)
		if err != nil {
			return repository.OrderListParams{}, err
		}
		params.Stage = &stage
	}
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		priority, err := domain.ParsePriorityFromString(raw)
		if err != nil {
			return repository.OrderListParams{}, err
		}
		params.Priority = &priority
	}
	if raw := strings.TrimSpace(c.Query("assignedUserId")); raw != "" {
		params.AssignedUserID = &raw
	}

	return params, nil
}

func toOrderResponse(o *domain.Order) orderResponse {
	if o == nil {
		return orderResponse{}
	}

	next := o.Stage.AllowedNextStages()
	allowed := make([]string, 0, len(next))
	for _, stage := range next {
		allowed = append(allowed, stage.String())
	}

	return orderResponse{
		ID:                     o.ID,
		Stage:                  o.Stage.String(),
		Priority:               o.Priority.String(),
		TotalValueCents:        o.TotalValueCents,
		AssignedUserID:         o.AssignedUserID,
		AccountID:              o.AccountID,
		ExpectedCloseDate:      o.ExpectedCloseDate,
		StageEnteredAt:         o.StageEnteredAt,
		ClientApprovalRecorded: o.ClientApprovalRecorded,
		ManufacturingComplete:  o.ManufacturingComplete,
		AllowedNextStages:      allowed,
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
	}
}
