package plan

// Resolved is the tier/slug pair the webhook reconciler derives from a
// provider-side price.
type Resolved struct {
	Tier string
	Slug string
}

// fallback keeps reconciliation moving when a price id is unrecognized:
// an unknown subscription is still a premium subscription.
var fallback = Resolved{Tier: "Premium", Slug: SlugMonthly}

// ResolvePlan maps a billing-provider price id back to a tier and slug.
// Never fails; unmapped price ids resolve to the base monthly plan.
func ResolvePlan(priceID string) Resolved {
	for _, def := range Catalog {
		if def.PriceID == priceID {
			return Resolved{Tier: def.Tier, Slug: def.Slug}
		}
	}
	return fallback
}

// DeterminePlanFromPrice derives a tier and slug from raw price attributes
// when the price id itself is unmapped. Pure function: yearly interval wins
// outright, monthly intervals bucket by interval count, anything else
// defaults to the base monthly tier.
func DeterminePlanFromPrice(amountCents int64, interval string, intervalCount int) Resolved {
	switch Interval(interval) {
	case IntervalYear:
		return Resolved{Tier: Catalog[SlugYearly].Tier, Slug: SlugYearly}
	case IntervalMonth:
		switch {
		case intervalCount >= 6:
			return Resolved{Tier: Catalog[SlugSemiannual].Tier, Slug: SlugSemiannual}
		case intervalCount >= 3:
			return Resolved{Tier: Catalog[SlugQuarterly].Tier, Slug: SlugQuarterly}
		default:
			return Resolved{Tier: Catalog[SlugMonthly].Tier, Slug: SlugMonthly}
		}
	default:
		return fallback
	}
}
