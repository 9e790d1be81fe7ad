package plan

import (
	"sort"
	"time"
)

// Interval is the billing interval of a plan.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Definition is one entry of the static plan catalog. The catalog is
// compiled configuration: the orchestrator only reads it, administrators
// edit the mirrored plans table for display purposes.
type Definition struct {
	Slug          string
	Tier          string
	PriceID       string
	AmountCents   int64
	Interval      Interval
	IntervalCount int
	SortOrder     int
	Active        bool
}

const (
	SlugMonthly    = "premium-monthly"
	SlugQuarterly  = "premium-quarterly"
	SlugSemiannual = "premium-semiannual"
	SlugYearly     = "premium-yearly"
)

// Catalog maps plan slugs to their billing configuration. Sort order is
// what classifies a change as upgrade (higher) or downgrade (lower or equal).
var Catalog = map[string]Definition{
	SlugMonthly: {
		Slug:          SlugMonthly,
		Tier:          "Premium Mensal",
		PriceID:       "price_premium_monthly",
		AmountCents:   3000,
		Interval:      IntervalMonth,
		IntervalCount: 1,
		SortOrder:     0,
		Active:        true,
	},
	SlugQuarterly: {
		Slug:          SlugQuarterly,
		Tier:          "Premium Trimestral",
		PriceID:       "price_premium_quarterly",
		AmountCents:   8500,
		Interval:      IntervalMonth,
		IntervalCount: 3,
		SortOrder:     1,
		Active:        true,
	},
	SlugSemiannual: {
		Slug:          SlugSemiannual,
		Tier:          "Premium Semestral",
		PriceID:       "price_premium_semiannual",
		AmountCents:   16200,
		Interval:      IntervalMonth,
		IntervalCount: 6,
		SortOrder:     2,
		Active:        true,
	},
	SlugYearly: {
		Slug:          SlugYearly,
		Tier:          "Premium Anual",
		PriceID:       "price_premium_yearly",
		AmountCents:   18500,
		Interval:      IntervalYear,
		IntervalCount: 1,
		SortOrder:     3,
		Active:        true,
	},
}

// Lookup returns the catalog entry for a slug.
func Lookup(slug string) (Definition, bool) {
	def, ok := Catalog[slug]
	return def, ok
}

// Ordered returns the catalog entries sorted by rank, cheapest first.
func Ordered() []Definition {
	defs := make([]Definition, 0, len(Catalog))
	for _, def := range Catalog {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].SortOrder < defs[j].SortOrder })
	return defs
}

// SortOrder returns the comparison rank of a slug, -1 if unknown.
func SortOrder(slug string) int {
	if def, ok := Catalog[slug]; ok {
		return def.SortOrder
	}
	return -1
}

// PriceIDFor returns the billing-provider price id for a slug.
func PriceIDFor(slug string) (string, bool) {
	def, ok := Catalog[slug]
	if !ok {
		return "", false
	}
	return def.PriceID, true
}

// PeriodDays returns the nominal length of a plan's billing interval in
// whole days, used by the proration credit calculation.
func (d Definition) PeriodDays() int {
	if d.Interval == IntervalYear {
		return 365
	}
	return 30 * d.IntervalCount
}

// PeriodDuration is PeriodDays as a time.Duration.
func (d Definition) PeriodDuration() time.Duration {
	return time.Duration(d.PeriodDays()) * 24 * time.Hour
}
