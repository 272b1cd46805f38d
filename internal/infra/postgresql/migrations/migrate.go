package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_users",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.UserModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_users_role ON users (role)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.UserModel{})
			},
		},
		{
			ID: "000002_create_orders",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.OrderModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_orders_stage_entered ON orders (stage, stage_entered_at)`,
					`CREATE INDEX IF NOT EXISTS idx_orders_assigned_user ON orders (assigned_user_id)`,
					`CREATE INDEX IF NOT EXISTS idx_orders_account ON orders (account_id)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.OrderModel{})
			},
		},
		{
			ID: "000003_create_stage_transitions",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.StageTransitionModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_stage_transitions_order_created ON stage_transitions (order_id, created_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.StageTransitionModel{})
			},
		},
		{
			ID: "000004_create_notification_preferences",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.PreferenceModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.PreferenceModel{})
			},
		},
		{
			ID: "000005_create_notification_queue",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.QueueEntryModel{}); err != nil {
					return err
				}
				indexes := []string{
					// The dedup invariant: one PENDING entry per
					// (recipient, type, related order). Entries without a
					// related order (digests) are deduped by the digest
					// sweep's already-sent check instead.
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_pending_dedup
						ON notification_queue (recipient_id, type, related_order_id)
						WHERE status = 'PENDING'`,
					`CREATE INDEX IF NOT EXISTS idx_queue_due_dispatch ON notification_queue (scheduled_at) WHERE status = 'PENDING' AND dispatched_at IS NULL`,
					`CREATE INDEX IF NOT EXISTS idx_queue_due_retry ON notification_queue (next_retry_at) WHERE status = 'PENDING' AND next_retry_at IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_queue_recipient_type_created ON notification_queue (recipient_id, type, created_at)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.QueueEntryModel{})
			},
		},
		{
			ID: "000006_create_push_subscriptions",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.SubscriptionModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user_active ON push_subscriptions (user_id) WHERE active`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.SubscriptionModel{})
			},
		},
	})

	return m.Migrate()
}
