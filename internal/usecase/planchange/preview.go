package planchange

import (
	"context"
	"fmt"
	"time"

	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
)

// PreviewResponse is the read-only cost breakdown shown before the user
// confirms an upgrade.
type PreviewResponse struct {
	AmountDueCents int64     `json:"amountDue"`
	CreditCents    int64     `json:"credit"`
	TotalCents     int64     `json:"total"`
	NewPlan        string    `json:"newPlan"`
	NewPlanSlug    string    `json:"newPlanSlug"`
	EffectiveDate  time.Time `json:"effectiveDate"`
}

// Preview computes the would-be proration for an upgrade without mutating
// anything. Card-billing subscribers get the provider's own invoice
// preview; everyone else gets the same local credit arithmetic the
// instant-transfer path charges with.
func (uc *UseCase) Preview(ctx context.Context, userID, targetSlug string) (*PreviewResponse, error) {
	sub, err := uc.subscribers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}
	if sub == nil {
		return nil, subscriber.ErrNoActiveSubscription
	}

	target, ok := plan.Lookup(targetSlug)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, targetSlug)
	}

	if sub.HasCardBilling() {
		preview, err := uc.card.PreviewProration(ctx, sub.StripeSubscriptionID, target.PriceID)
		if err != nil {
			return nil, err
		}
		return &PreviewResponse{
			AmountDueCents: preview.AmountDueCents,
			CreditCents:    preview.CreditCents,
			TotalCents:     preview.TotalCents,
			NewPlan:        target.Tier,
			NewPlanSlug:    target.Slug,
			EffectiveDate:  preview.EffectiveDate,
		}, nil
	}

	proration := Proration{AmountDueCents: target.AmountCents}
	if current, ok := plan.Lookup(sub.PlanSlug); ok && sub.Subscribed {
		proration = prorate(current, target, sub.SubscriptionEnd, uc.now())
	}
	return &PreviewResponse{
		AmountDueCents: proration.AmountDueCents,
		CreditCents:    proration.CreditCents,
		TotalCents:     proration.AmountDueCents,
		NewPlan:        target.Tier,
		NewPlanSlug:    target.Slug,
		EffectiveDate:  uc.now(),
	}, nil
}
