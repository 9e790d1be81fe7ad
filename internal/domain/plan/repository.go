package plan

import (
	"context"
	"time"
)

// Record mirrors the catalog into the plans table so administrators can
// edit display names and deactivate tiers without a deploy. Billing fields
// (price id, sort order) stay authoritative in the compiled catalog.
type Record struct {
	Slug        string
	Name        string
	AmountCents int64
	Interval    string
	SortOrder   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository persists the admin-facing plan records.
type Repository interface {
	List(ctx context.Context) ([]Record, error)
	FindBySlug(ctx context.Context, slug string) (*Record, error)
	Save(ctx context.Context, record *Record) error
}
