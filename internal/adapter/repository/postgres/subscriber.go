package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
	"github.com/comunidadednb/billing-service/pkg/snowflake"
)

// SubscriberModel is the database DTO with Gorm tags.
type SubscriberModel struct {
	ID                   int64  `gorm:"primaryKey"`
	UserID               string `gorm:"type:varchar(64);uniqueIndex"`
	Email                string `gorm:"type:varchar(255);uniqueIndex"`
	DisplayName          string `gorm:"type:varchar(255)"`
	Subscribed           bool
	PlanSlug             string `gorm:"type:varchar(64)"`
	PreviousPlanSlug     string `gorm:"type:varchar(64)"`
	SubscriptionEnd      *time.Time
	StripeCustomerID     string `gorm:"type:varchar(255)"`
	StripeSubscriptionID string `gorm:"type:varchar(255);index"`
	CancelAtPeriodEnd    bool
	PendingDowngradeTo   string `gorm:"type:varchar(64)"`
	PendingDowngradeDate *time.Time
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (SubscriberModel) TableName() string {
	return "subscribers"
}

type SubscriberRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewSubscriberRepository(db *gorm.DB, node *snowflake.Node) *SubscriberRepository {
	return &SubscriberRepository{db: db, node: node}
}

func (r *SubscriberRepository) FindByUserID(ctx context.Context, userID string) (*subscriber.Subscriber, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

func (r *SubscriberRepository) FindByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *SubscriberRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*subscriber.Subscriber, error) {
	return r.findOne(ctx, "stripe_subscription_id = ?", subscriptionID)
}

func (r *SubscriberRepository) findOne(ctx context.Context, query string, arg any) (*subscriber.Subscriber, error) {
	var model SubscriberModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return subscriberToDomain(model), nil
}

// Save persists the record with an optimistic version check. The row must
// still carry the version the entity was loaded with; otherwise a
// concurrent writer won and the caller retries from a fresh read.
func (r *SubscriberRepository) Save(ctx context.Context, sub *subscriber.Subscriber) error {
	model := subscriberToModel(sub)

	if model.ID == 0 {
		model.ID = r.node.GenerateID()
		model.Version = 1
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return err
		}
		sub.ID = model.ID
		sub.Version = model.Version
		return nil
	}

	loadedVersion := model.Version
	model.Version = loadedVersion + 1
	result := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("id = ? AND version = ?", model.ID, loadedVersion).
		Select("*").Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return subscriber.ErrVersionConflict
	}
	sub.Version = model.Version
	return nil
}

// UpsertByEmail converges the row keyed by contact email. Replayed provider
// events land here, so the write is idempotent by construction.
func (r *SubscriberRepository) UpsertByEmail(ctx context.Context, sub *subscriber.Subscriber) error {
	model := subscriberToModel(sub)
	if model.ID == 0 {
		model.ID = r.node.GenerateID()
		model.Version = 1
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "display_name", "subscribed", "plan_slug",
			"previous_plan_slug", "subscription_end", "stripe_customer_id",
			"stripe_subscription_id", "cancel_at_period_end",
			"pending_downgrade_to", "pending_downgrade_date", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return err
	}
	sub.ID = model.ID
	return nil
}

func subscriberToDomain(m SubscriberModel) *subscriber.Subscriber {
	return &subscriber.Subscriber{
		ID:                   m.ID,
		UserID:               m.UserID,
		Email:                m.Email,
		DisplayName:          m.DisplayName,
		Subscribed:           m.Subscribed,
		PlanSlug:             m.PlanSlug,
		PreviousPlanSlug:     m.PreviousPlanSlug,
		SubscriptionEnd:      m.SubscriptionEnd,
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		CancelAtPeriodEnd:    m.CancelAtPeriodEnd,
		PendingDowngradeTo:   m.PendingDowngradeTo,
		PendingDowngradeDate: m.PendingDowngradeDate,
		Version:              m.Version,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func subscriberToModel(d *subscriber.Subscriber) SubscriberModel {
	return SubscriberModel{
		ID:                   d.ID,
		UserID:               d.UserID,
		Email:                d.Email,
		DisplayName:          d.DisplayName,
		Subscribed:           d.Subscribed,
		PlanSlug:             d.PlanSlug,
		PreviousPlanSlug:     d.PreviousPlanSlug,
		SubscriptionEnd:      d.SubscriptionEnd,
		StripeCustomerID:     d.StripeCustomerID,
		StripeSubscriptionID: d.StripeSubscriptionID,
		CancelAtPeriodEnd:    d.CancelAtPeriodEnd,
		PendingDowngradeTo:   d.PendingDowngradeTo,
		PendingDowngradeDate: d.PendingDowngradeDate,
		Version:              d.Version,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}
