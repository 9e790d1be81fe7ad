package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
)

// Status is the caller-facing subscription snapshot.
type Status struct {
	Subscribed           bool       `json:"subscribed"`
	PlanSlug             string     `json:"planSlug,omitempty"`
	PlanName             string     `json:"planName,omitempty"`
	SubscriptionEnd      *time.Time `json:"subscriptionEnd,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancelAtPeriodEnd"`
	PendingDowngradeTo   string     `json:"pendingDowngradeTo,omitempty"`
	PendingDowngradeDate *time.Time `json:"pendingDowngradeDate,omitempty"`
	PaymentMethod        string     `json:"paymentMethod,omitempty"`
}

// Refresh re-derives local subscription state from provider truth. Local
// writes are best-effort projections; this is the manual reconstruction
// path when a webhook was missed or a write half-failed.
func (uc *UseCase) Refresh(ctx context.Context, userID string) (*Status, error) {
	sub, err := uc.subscribers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}
	if sub == nil {
		return nil, subscriber.ErrNoActiveSubscription
	}

	providerSub, customerID, err := uc.card.FindActiveSubscription(ctx, sub.Email)
	if err != nil {
		return nil, fmt.Errorf("query provider: %w", err)
	}

	switch {
	case providerSub != nil:
		resolved := plan.ResolvePlan(providerSub.PriceID)
		sub.StripeCustomerID = customerID
		sub.StripeSubscriptionID = providerSub.ID
		sub.Activate(resolved.Slug, providerSub.CurrentPeriodEnd)
		sub.CancelAtPeriodEnd = providerSub.CancelAtPeriodEnd
		if err := uc.subscribers.UpsertByEmail(ctx, sub); err != nil {
			return nil, fmt.Errorf("upsert subscriber: %w", err)
		}
		uc.logger.Info("subscription_refreshed",
			zap.String("user_id", userID),
			zap.String("plan", resolved.Slug),
		)

	case sub.HasCardBilling() && sub.Subscribed:
		// Provider no longer has the subscription the local record claims.
		sub.Deactivate()
		if err := uc.subscribers.UpsertByEmail(ctx, sub); err != nil {
			return nil, fmt.Errorf("upsert subscriber: %w", err)
		}
		uc.logger.Info("subscription_refresh_deactivated",
			zap.String("user_id", userID),
		)

	case sub.Subscribed && sub.SubscriptionEnd != nil && sub.SubscriptionEnd.Before(uc.now()):
		// Instant-transfer subscriptions have no provider object to ask;
		// they lapse when the prepaid period ends.
		sub.Deactivate()
		if err := uc.subscribers.UpsertByEmail(ctx, sub); err != nil {
			return nil, fmt.Errorf("upsert subscriber: %w", err)
		}
	}

	return statusOf(sub), nil
}

func statusOf(sub *subscriber.Subscriber) *Status {
	status := &Status{
		Subscribed:           sub.Subscribed,
		PlanSlug:             sub.PlanSlug,
		SubscriptionEnd:      sub.SubscriptionEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		PendingDowngradeTo:   sub.PendingDowngradeTo,
		PendingDowngradeDate: sub.PendingDowngradeDate,
	}
	if def, ok := plan.Lookup(sub.PlanSlug); ok {
		status.PlanName = def.Tier
	}
	if sub.Subscribed {
		if sub.HasCardBilling() {
			status.PaymentMethod = "stripe"
		} else {
			status.PaymentMethod = "pix"
		}
	}
	return status
}
