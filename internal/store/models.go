package store

import (
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
)

// PreferenceModel persists one PreferenceSet per user. Toggle maps are stored
// as JSON since the engine only ever reads the full set.
type PreferenceModel struct {
	UserID    string `gorm:"type:varchar(64);primaryKey"`
	Document  string `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (PreferenceModel) TableName() string {
	return "preferences"
}

// LedgerEntryModel persists one dismissed/read marker. RecordedAt exists so
// entries can be pruned by age.
type LedgerEntryModel struct {
	NotificationID string `gorm:"type:varchar(255);primaryKey"`
	Kind           string `gorm:"type:varchar(16);primaryKey"`
	RecordedAt     time.Time
}

func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// CategoryCounterModel persists per-category analytics counters.
type CategoryCounterModel struct {
	Category  domain.Category `gorm:"type:varchar(20);primaryKey"`
	Sent      int64           `gorm:"not null;default:0"`
	Delivered int64           `gorm:"not null;default:0"`
	Clicked   int64           `gorm:"not null;default:0"`
	Dismissed int64           `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (CategoryCounterModel) TableName() string {
	return "category_counters"
}

// DailyCounterModel persists the daily sent histogram.
type DailyCounterModel struct {
	Day   string `gorm:"type:varchar(10);primaryKey"` // "2006-01-02"
	Count int64  `gorm:"not null;default:0"`
}

func (DailyCounterModel) TableName() string {
	return "daily_counters"
}

// SubscriptionModel persists the local copy of the push subscription.
type SubscriptionModel struct {
	Endpoint   string `gorm:"type:text;primaryKey"`
	PublicKey  string `gorm:"type:text;not null"`
	AuthSecret string `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

func (SubscriptionModel) TableName() string {
	return "push_subscriptions"
}

// DeliveryModel is the tracked-entity table read by the snapshot evaluator.
// Rows are written by the upstream datastore sync, not by this engine.
type DeliveryModel struct {
	ID        string                `gorm:"type:varchar(64);primaryKey"`
	Reference string                `gorm:"type:varchar(64);not null"`
	Status    domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	WeightKG  float64               `gorm:"column:weight_kg;not null;default:0"`
	Value     float64               `gorm:"not null;default:0"`
	DueAt     *time.Time
	UpdatedAt time.Time
}

func (DeliveryModel) TableName() string {
	return "deliveries"
}

func deliveryModelToDomain(m *DeliveryModel) domain.Delivery {
	return domain.Delivery{
		ID:        m.ID,
		Reference: m.Reference,
		Status:    m.Status,
		WeightKG:  m.WeightKG,
		Value:     m.Value,
		DueAt:     m.DueAt,
		UpdatedAt: m.UpdatedAt,
	}
}
