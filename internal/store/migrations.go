package store

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_preferences",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&PreferenceModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&PreferenceModel{})
			},
		},
		{
			ID: "000002_create_ledger_entries",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&LedgerEntryModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_ledger_entries_recorded_at ON ledger_entries (recorded_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&LedgerEntryModel{})
			},
		},
		{
			ID: "000003_create_counters",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&CategoryCounterModel{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&DailyCounterModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Migrator().DropTable(&CategoryCounterModel{}); err != nil {
					return err
				}
				return tx.Migrator().DropTable(&DailyCounterModel{})
			},
		},
		{
			ID: "000004_create_push_subscriptions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SubscriptionModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&SubscriptionModel{})
			},
		},
		{
			ID: "000005_create_deliveries",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&DeliveryModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_deliveries_status_due ON deliveries (status, due_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&DeliveryModel{})
			},
		},
	})

	return m.Migrate()
}
