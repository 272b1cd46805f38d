package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

// PreferenceStore is the subset of the preference repository the HTTP layer
// needs. A user with no stored row for a type falls back to system defaults.
type PreferenceStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.NotificationPreference, error)
	Upsert(ctx context.Context, p *domain.NotificationPreference) error
}

type PreferenceHandler struct {
	store    PreferenceStore
	defaults domain.PreferenceDefaults
}

func NewPreferenceHandler(store PreferenceStore, defaults domain.PreferenceDefaults) (*PreferenceHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("preference store is required")
	}
	return &PreferenceHandler{store: store, defaults: defaults}, nil
}

func RegisterPreferenceRoutes(router fiber.Router, store PreferenceStore, defaults domain.PreferenceDefaults) error {
	h, err := NewPreferenceHandler(store, defaults)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/users/:id/preferences", h.GetPreferences)
	v1.Put("/users/:id/preferences", h.PutPreferences)

	return nil
}

type preferenceItem struct {
	Type                  string `json:"type"`
	Enabled               bool   `json:"enabled"`
	DeliveryMethod        string `json:"deliveryMethod"`
	QuietHoursEnabled     bool   `json:"quietHoursEnabled"`
	QuietStart            string `json:"quietStart"`
	QuietEnd              string `json:"quietEnd"`
	WeekendAllowed        bool   `json:"weekendAllowed"`
	UrgencyThresholdHours int    `json:"urgencyThresholdHours"`
	Stored                bool   `json:"stored"`
}

type putPreferencesRequest struct {
	Preferences []preferenceItem `json:"preferences"`
}

type preferencesResponse struct {
	UserID      string           `json:"userId"`
	Preferences []preferenceItem `json:"preferences"`
}

// GetPreferences returns the effective preference for every notification
// type: stored rows where they exist, system defaults elsewhere.
func (h *PreferenceHandler) GetPreferences(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	stored, err := h.store.ListByUser(c.Context(), userID)
	if err != nil {
		return err
	}

	byType := make(map[domain.NotificationType]domain.NotificationPreference, len(stored))
	for _, pref := range stored {
		byType[pref.Type] = pref
	}

	items := make([]preferenceItem, 0, 5)
	for _, t := range []domain.NotificationType{
		domain.TypeStageChange,
		domain.TypeAssignment,
		domain.TypeOverdueAlert,
		domain.TypeUrgentOrder,
		domain.TypeDailySummary,
	} {
		pref, ok := byType[t]
		if !ok {
			pref = domain.DefaultPreference(userID, t, h.defaults)
		}
		items = append(items, toPreferenceItem(pref, ok))
	}

	return c.Status(fiber.StatusOK).JSON(preferencesResponse{
		UserID:      userID,
		Preferences: items,
	})
}

// PutPreferences upserts the submitted preference rows for the user. Types not
// present in the body are left untouched.
func (h *PreferenceHandler) PutPreferences(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	var req putPreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Preferences) == 0 {
		return fmt.Errorf("%w: preferences is required", domain.ErrValidation)
	}

	updated := make([]preferenceItem, 0, len(req.Preferences))
	for _, item := range req.Preferences {
		pref, err := itemToPreference(userID, item)
		if err != nil {
			return err
		}
		if err := pref.Validate(); err != nil {
			return err
		}
		if err := h.store.Upsert(c.Context(), &pref); err != nil {
			return err
		}
		updated = append(updated, toPreferenceItem(pref, true))
	}

	return c.Status(fiber.StatusOK).JSON(preferencesResponse{
		UserID:      userID,
		Preferences: updated,
	})
}

func itemToPreference(userID string, item preferenceItem) (domain.NotificationPreference, error) {
	t, err := domain.ParseNotificationTypeFromString(item.Type)
	if err != nil {
		return domain.NotificationPreference{}, err
	}
	method, err := domain.ParseDeliveryMethodFromString(item.DeliveryMethod)
	if err != nil {
		return domain.NotificationPreference{}, err
	}

	pref := domain.NotificationPreference{
		UserID:                userID,
		Type:                  t,
		Enabled:               item.Enabled,
		DeliveryMethod:        method,
		QuietHoursEnabled:     item.QuietHoursEnabled,
		WeekendAllowed:        item.WeekendAllowed,
		UrgencyThresholdHours: item.UrgencyThresholdHours,
	}

	if item.QuietHoursEnabled {
		start, err := domain.ParseTimeOfDay(item.QuietStart)
		if err != nil {
			return domain.NotificationPreference{}, err
		}
		end, err := domain.ParseTimeOfDay(item.QuietEnd)
		if err != nil {
			return domain.NotificationPreference{}, err
		}
		pref.QuietStart = start
		pref.QuietEnd = end
	}

	return pref, nil
}

func toPreferenceItem(pref domain.NotificationPreference, stored bool) preferenceItem {
	return preferenceItem{
		Type:                  pref.Type.String(),
		Enabled:               pref.Enabled,
		DeliveryMethod:        pref.DeliveryMethod.String(),
		QuietHoursEnabled:     pref.QuietHoursEnabled,
		QuietStart:            pref.QuietStart.String(),
		QuietEnd:              pref.QuietEnd.String(),
		WeekendAllowed:        pref.WeekendAllowed,
		UrgencyThresholdHours: pref.UrgencyThresholdHours,
		Stored:                stored,
	}
}
