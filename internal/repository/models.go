package repository

import (
	"time"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

// OrderModel is the persistence model for the orders table.
type OrderModel struct {
	ID                     string          `gorm:"type:uuid;primaryKey"`
	Stage                  domain.Stage    `gorm:"type:varchar(30);not null"`
	Priority               domain.Priority `gorm:"type:varchar(10);not null"`
	TotalValueCents        int64           `gorm:"not null;default:0"`
	AssignedUserID         string          `gorm:"type:uuid;not null"`
	AccountID              string          `gorm:"type:uuid;not null"`
	ExpectedCloseDate      *time.Time      `gorm:"type:timestamptz"`
	StageEnteredAt         time.Time       `gorm:"type:timestamptz;not null"`
	ClientApprovalRecorded bool            `gorm:"not null;default:false"`
	ManufacturingComplete  bool            `gorm:"not null;default:false"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// StageTransitionModel is the persistence model for the append-only
// stage_transitions ledger.
type StageTransitionModel struct {
	ID                     string       `gorm:"type:uuid;primaryKey"`
	OrderID                string       `gorm:"type:uuid;not null"`
	FromStage              domain.Stage `gorm:"type:varchar(30);not null"`
	ToStage                domain.Stage `gorm:"type:varchar(30);not null"`
	ActorID                string       `gorm:"type:uuid;not null"`
	Notes                  string       `gorm:"type:text"`
	DurationInPriorStageMS int64        `gorm:"not null"`
	CreatedAt              time.Time
}

func (StageTransitionModel) TableName() string {
	return "stage_transitions"
}

// PreferenceModel is the persistence model for notification_preferences.
type PreferenceModel struct {
	UserID                string                  `gorm:"type:uuid;primaryKey"`
	Type                  domain.NotificationType `gorm:"type:varchar(20);primaryKey"`
	Enabled               bool                    `gorm:"not null;default:true"`
	DeliveryMethod        domain.DeliveryMethod   `gorm:"type:varchar(10);not null"`
	QuietHoursEnabled     bool                    `gorm:"not null;default:false"`
	QuietStartMinutes     int                     `gorm:"not null;default:0"`
	QuietEndMinutes       int                     `gorm:"not null;default:0"`
	WeekendAllowed        bool                    `gorm:"not null;default:false"`
	UrgencyThresholdHours int                     `gorm:"not null;default:0"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (PreferenceModel) TableName() string {
	return "notification_preferences"
}

// QueueEntryModel is the persistence model for notification_queue.
type QueueEntryModel struct {
	ID             string                  `gorm:"type:uuid;primaryKey"`
	RecipientID    string                  `gorm:"type:uuid;not null"`
	Type           domain.NotificationType `gorm:"type:varchar(20);not null"`
	DeliveryMethod domain.DeliveryMethod   `gorm:"type:varchar(10);not null"`
	Priority       domain.Priority         `gorm:"type:varchar(10);not null"`
	Subject        string                  `gorm:"type:varchar(255);not null"`
	Body           string                  `gorm:"type:text;not null"`
	Status         domain.EntryStatus      `gorm:"type:varchar(20);not null"`
	ScheduledAt    time.Time               `gorm:"type:timestamptz;not null"`
	RelatedOrderID *string                 `gorm:"type:uuid"`
	AttemptCount   int                     `gorm:"not null;default:0"`
	MaxAttempts    int                     `gorm:"not null;default:5"`
	NextRetryAt    *time.Time              `gorm:"type:timestamptz"`
	DispatchedAt   *time.Time              `gorm:"type:timestamptz"`
	LastError      *string                 `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (QueueEntryModel) TableName() string {
	return "notification_queue"
}

// SubscriptionModel is the persistence model for push_subscriptions.
type SubscriptionModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	UserID    string `gorm:"type:uuid;not null"`
	Endpoint  string `gorm:"type:text;not null"`
	AuthKey   string `gorm:"type:text;not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SubscriptionModel) TableName() string {
	return "push_subscriptions"
}

// UserModel is the directory view of recipients.
type UserModel struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	Name      string      `gorm:"type:varchar(255);not null"`
	Email     string      `gorm:"type:varchar(255);not null"`
	Phone     string      `gorm:"type:varchar(32)"`
	Role      domain.Role `gorm:"type:varchar(20);not null"`
	Timezone  string      `gorm:"type:varchar(64);not null;default:'UTC'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func orderModelFromDomain(o *domain.Order) *OrderModel {
	if o == nil {
		return nil
	}

	return &OrderModel{
		ID:                     o.ID,
		Stage:                  o.Stage,
		Priority:               o.Priority,
		TotalValueCents:        o.TotalValueCents,
		AssignedUserID:         o.AssignedUserID,
		AccountID:              o.AccountID,
		ExpectedCloseDate:      o.ExpectedCloseDate,
		StageEnteredAt:         o.StageEnteredAt,
		ClientApprovalRecorded: o.ClientApprovalRecorded,
		ManufacturingComplete:  o.ManufacturingComplete,
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
	}
}

func orderModelToDomain(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}

	return &domain.Order{
		ID:                     m.ID,
		Stage:                  m.Stage,
		Priority:               m.Priority,
		TotalValueCents:        m.TotalValueCents,
		AssignedUserID:         m.AssignedUserID,
		AccountID:              m.AccountID,
		ExpectedCloseDate:      m.ExpectedCloseDate,
		StageEnteredAt:         m.StageEnteredAt,
		ClientApprovalRecorded: m.ClientApprovalRecorded,
		ManufacturingComplete:  m.ManufacturingComplete,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

func transitionModelFromDomain(r *domain.StageTransitionRecord) *StageTransitionModel {
	if r == nil {
		return nil
	}

	return &StageTransitionModel{
		ID:                     r.ID,
		OrderID:                r.OrderID,
		FromStage:              r.FromStage,
		ToStage:                r.ToStage,
		ActorID:                r.ActorID,
		Notes:                  r.Notes,
		DurationInPriorStageMS: r.DurationInPriorStage.Milliseconds(),
		CreatedAt:              r.CreatedAt,
	}
}

func transitionModelToDomain(m *StageTransitionModel) *domain.StageTransitionRecord {
	if m == nil {
		return nil
	}

	return &domain.StageTransitionRecord{
		ID:                   m.ID,
		OrderID:              m.OrderID,
		FromStage:            m.FromStage,
		ToStage:              m.ToStage,
		ActorID:              m.ActorID,
		Notes:                m.Notes,
		DurationInPriorStage: time.Duration(m.DurationInPriorStageMS) * time.Millisecond,
		CreatedAt:            m.CreatedAt,
	}
}

func preferenceModelFromDomain(p *domain.NotificationPreference) *PreferenceModel {
	if p == nil {
		return nil
	}

	return &PreferenceModel{
		UserID:                p.UserID,
		Type:                  p.Type,
		Enabled:               p.Enabled,
		DeliveryMethod:        p.DeliveryMethod,
		QuietHoursEnabled:     p.QuietHoursEnabled,
		QuietStartMinutes:     int(p.QuietStart),
		QuietEndMinutes:       int(p.QuietEnd),
		WeekendAllowed:        p.WeekendAllowed,
		UrgencyThresholdHours: p.UrgencyThresholdHours,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func preferenceModelToDomain(m *PreferenceModel) *domain.NotificationPreference {
	if m == nil {
		return nil
	}

	return &domain.NotificationPreference{
		UserID:                m.UserID,
		Type:                  m.Type,
		Enabled:               m.Enabled,
		DeliveryMethod:        m.DeliveryMethod,
		QuietHoursEnabled:     m.QuietHoursEnabled,
		QuietStart:            domain.TimeOfDay(m.QuietStartMinutes),
		QuietEnd:              domain.TimeOfDay(m.QuietEndMinutes),
		WeekendAllowed:        m.WeekendAllowed,
		UrgencyThresholdHours: m.UrgencyThresholdHours,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func queueEntryModelFromDomain(e *domain.QueueEntry) *QueueEntryModel {
	if e == nil {
		return nil
	}

	return &QueueEntryModel{
		ID:             e.ID,
		RecipientID:    e.RecipientID,
		Type:           e.Type,
		DeliveryMethod: e.DeliveryMethod,
		Priority:       e.Priority,
		Subject:        e.Subject,
		Body:           e.Body,
		Status:         e.Status,
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

func queueEntryModelToDomain(m *QueueEntryModel) *domain.QueueEntry {
	if m == nil {
		return nil
	}

	return &domain.QueueEntry{
		ID:             m.ID,
		RecipientID:    m.RecipientID,
		Type:           m.Type,
		DeliveryMethod: m.DeliveryMethod,
		Priority:       m.Priority,
		Subject:        m.Subject,
		Body:           m.Body,
		Status:         m.Status,
		ScheduledAt:    m.ScheduledAt,
		RelatedOrderID: m.RelatedOrderID,
		AttemptCount:   m.AttemptCount,
		MaxAttempts:    m.MaxAttempts,
		NextRetryAt:    m.NextRetryAt,
		DispatchedAt:   m.DispatchedAt,
		LastError:      m.LastError,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func subscriptionModelToDomain(m *SubscriptionModel) *domain.PushSubscription {
	if m == nil {
		return nil
	}

	return &domain.PushSubscription{
		ID:        m.ID,
		UserID:    m.UserID,
		Endpoint:  m.Endpoint,
		AuthKey:   m.AuthKey,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	return &domain.User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Role:      m.Role,
		Timezone:  m.Timezone,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
