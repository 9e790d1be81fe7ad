package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comunidadednb/billing-service/internal/domain/plan"
)

// PlanModel is the database DTO with Gorm tags.
type PlanModel struct {
	Slug        string `gorm:"primaryKey;type:varchar(64)"`
	Name        string `gorm:"type:varchar(255)"`
	AmountCents int64
	Interval    string `gorm:"type:varchar(16)"`
	SortOrder   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (PlanModel) TableName() string {
	return "plans"
}

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) List(ctx context.Context) ([]plan.Record, error) {
	var models []PlanModel
	if err := r.db.WithContext(ctx).Order("sort_order asc").Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]plan.Record, 0, len(models))
	for _, model := range models {
		records = append(records, planToDomain(model))
	}
	return records, nil
}

func (r *PlanRepository) FindBySlug(ctx context.Context, slug string) (*plan.Record, error) {
	var model PlanModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	record := planToDomain(model)
	return &record, nil
}

func (r *PlanRepository) Save(ctx context.Context, record *plan.Record) error {
	model := planToModel(record)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "amount_cents", "interval", "sort_order", "active", "updated_at",
		}),
	}).Create(&model).Error
}

func planToDomain(m PlanModel) plan.Record {
	return plan.Record{
		Slug:        m.Slug,
		Name:        m.Name,
		AmountCents: m.AmountCents,
		Interval:    m.Interval,
		SortOrder:   m.SortOrder,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func planToModel(d *plan.Record) PlanModel {
	return PlanModel{
		Slug:        d.Slug,
		Name:        d.Name,
		AmountCents: d.AmountCents,
		Interval:    d.Interval,
		SortOrder:   d.SortOrder,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
