package planchange

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/comunidadednb/billing-service/internal/domain/plan"
)

// MinChargeCents is the floor for an instant-transfer charge. Provider
// rejects zero-amount QR codes, so a fully-credited upgrade still collects
// this much.
const MinChargeCents = 100

// Proration is the instant-transfer upgrade price breakdown.
type Proration struct {
	CreditCents    int64
	AmountDueCents int64
}

// prorate computes the amount due for an instant-transfer upgrade:
// the target plan price minus a credit for remaining whole days on the
// current plan, never below MinChargeCents.
//
//	credit = floor(daysRemaining / intervalDays * currentPrice)
func prorate(current plan.Definition, target plan.Definition, subscriptionEnd *time.Time, now time.Time) Proration {
	newPrice := target.AmountCents

	if subscriptionEnd == nil || !subscriptionEnd.After(now) {
		return Proration{CreditCents: 0, AmountDueCents: maxCharge(newPrice)}
	}

	daysRemaining := int64(subscriptionEnd.Sub(now).Hours() / 24)
	intervalDays := int64(current.PeriodDays())
	if daysRemaining > intervalDays {
		daysRemaining = intervalDays
	}
	if daysRemaining <= 0 || intervalDays <= 0 {
		return Proration{CreditCents: 0, AmountDueCents: maxCharge(newPrice)}
	}

	credit := decimal.NewFromInt(daysRemaining).
		Div(decimal.NewFromInt(intervalDays)).
		Mul(decimal.NewFromInt(current.AmountCents)).
		Floor().
		IntPart()

	return Proration{
		CreditCents:    credit,
		AmountDueCents: maxCharge(newPrice - credit),
	}
}

func maxCharge(amount int64) int64 {
	if amount < MinChargeCents {
		return MinChargeCents
	}
	return amount
}
