package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger entry kinds.
const (
	LedgerKindDismissed = "dismissed"
	LedgerKindRead      = "read"
)

// PreferenceRepository persists the per-user PreferenceSet.
type PreferenceRepository interface {
	Get(ctx context.Context, userID string) (*domain.PreferenceSet, error)
	Save(ctx context.Context, userID string, prefs domain.PreferenceSet) error
}

// LedgerRepository persists dismissed/read markers.
type LedgerRepository interface {
	Add(ctx context.Context, notificationID, kind string, recordedAt time.Time) error
	LoadIDs(ctx context.Context, kind string) ([]string, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AnalyticsRepository persists the analytics counters.
type AnalyticsRepository interface {
	IncCategory(ctx context.Context, category domain.Category, field string) error
	IncDaily(ctx context.Context, day string) error
	LoadCategories(ctx context.Context) ([]CategoryCounterModel, error)
	LoadDaily(ctx context.Context) ([]DailyCounterModel, error)
}

// SubscriptionRepository persists the local push subscription copy.
type SubscriptionRepository interface {
	Get(ctx context.Context) (*domain.PushSubscriptionRecord, error)
	Save(ctx context.Context, record domain.PushSubscriptionRecord) error
	Delete(ctx context.Context, endpoint string) error
}

// DeliveryRepository is the snapshot query over the tracked entity collection.
type DeliveryRepository interface {
	Snapshot(ctx context.Context) ([]domain.Delivery, error)
}

type GormPreferenceRepo struct {
	db *gorm.DB
}

func NewGormPreferenceRepo(db *gorm.DB) *GormPreferenceRepo {
	return &GormPreferenceRepo{db: db}
}

func (r *GormPreferenceRepo) Get(ctx context.Context, userID string) (*domain.PreferenceSet, error) {
	var model PreferenceModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var prefs domain.PreferenceSet
	if err := json.Unmarshal([]byte(model.Document), &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode stored preferences: %w", err)
	}
	prefs.Normalize()
	return &prefs, nil
}

func (r *GormPreferenceRepo) Save(ctx context.Context, userID string, prefs domain.PreferenceSet) error {
	document, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	model := PreferenceModel{
		UserID:    userID,
		Document:  string(document),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
		}).
		Create(&model).Error
}

type GormLedgerRepo struct {
	db *gorm.DB
}

func NewGormLedgerRepo(db *gorm.DB) *GormLedgerRepo {
	return &GormLedgerRepo{db: db}
}

func (r *GormLedgerRepo) Add(ctx context.Context, notificationID, kind string, recordedAt time.Time) error {
	entry := LedgerEntryModel{
		NotificationID: notificationID,
		Kind:           kind,
		RecordedAt:     recordedAt.UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)
	}
	return nil
}

func (r *GormLedgerRepo) LoadIDs(ctx context.Context, kind string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&LedgerEntryModel{}).
		Where("kind = ?", kind).
		Pluck("notification_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormLedgerRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff.UTC()).
		Delete(&LedgerEntryModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

type GormAnalyticsRepo struct {
	db *gorm.DB
}

func NewGormAnalyticsRepo(db *gorm.DB) *GormAnalyticsRepo {
	return &GormAnalyticsRepo{db: db}
}

// Analytics counter field names.
const (
	CounterSent      = "sent"
	CounterDelivered = "delivered"
	CounterClicked   = "clicked"
	CounterDismissed = "dismissed"
)

func (r *GormAnalyticsRepo) IncCategory(ctx context.Context, category domain.Category, field string) error {
	switch field {
	case CounterSent, CounterDelivered, CounterClicked, CounterDismissed:
	default:
		return fmt.Errorf("%w: unknown counter field %q", domain.ErrValidation, field)
	}

	model := CategoryCounterModel{Category: category, UpdatedAt: time.Now().UTC()}
	switch field {
	case CounterSent:
		model.Sent = 1
	case CounterDelivered:
		model.Delivered = 1
	case CounterClicked:
		model.Clicked = 1
	case CounterDismissed:
		model.Dismissed = 1
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "category"}},
			DoUpdates: clause.Assignments(map[string]any{
				field:        gorm.Expr(fmt.Sprintf("category_counters.%s + 1", field)),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&model).Error
}

func (r *GormAnalyticsRepo) IncDaily(ctx context.Context, day string) error {
	model := DailyCounterModel{Day: day, Count: 1}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count": gorm.Expr("daily_counters.count + 1"),
			}),
		}).
		Create(&model).Error
}

func (r *GormAnalyticsRepo) LoadCategories(ctx context.Context) ([]CategoryCounterModel, error) {
	var models []CategoryCounterModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

func (r *GormAnalyticsRepo) LoadDaily(ctx context.Context) ([]DailyCounterModel, error) {
	var models []DailyCounterModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

type GormSubscriptionRepo struct {
	db *gorm.DB
}

func NewGormSubscriptionRepo(db *gorm.DB) *GormSubscriptionRepo {
	return &GormSubscriptionRepo{db: db}
}

func (r *GormSubscriptionRepo) Get(ctx context.Context) (*domain.PushSubscriptionRecord, error) {
	var model SubscriptionModel
	err := r.db.WithContext(ctx).Order("created_at DESC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.PushSubscriptionRecord{
		Endpoint:   model.Endpoint,
		PublicKey:  model.PublicKey,
		AuthSecret: model.AuthSecret,
		CreatedAt:  model.CreatedAt,
	}, nil
}

func (r *GormSubscriptionRepo) Save(ctx context.Context, record domain.PushSubscriptionRecord) error {
	model := SubscriptionModel{
		Endpoint:   record.Endpoint,
		PublicKey:  record.PublicKey,
		AuthSecret: record.AuthSecret,
		CreatedAt:  record.CreatedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"public_key", "auth_secret"}),
		}).
		Create(&model).Error
}

func (r *GormSubscriptionRepo) Delete(ctx context.Context, endpoint string) error {
	return r.db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Delete(&SubscriptionModel{}).Error
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) Snapshot(ctx context.Context) ([]domain.Delivery, error) {
	var models []DeliveryModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load delivery snapshot: %w", err)
	}

	deliveries := make([]domain.Delivery, 0, len(models))
	for i := range models {
		deliveries = append(deliveries, deliveryModelToDomain(&models[i]))
	}
	return deliveries, nil
}
