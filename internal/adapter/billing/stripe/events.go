package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/billing"
)

// ErrInvalidSignature is returned before any payload field is read when the
// Stripe-Signature header does not match the webhook secret.
var ErrInvalidSignature = errors.New("stripe: invalid webhook signature")

// ErrIgnoredEvent marks event types the reconciler does not act on.
var ErrIgnoredEvent = errors.New("stripe: event type not handled")

// ParseEvent verifies the webhook signature and translates the raw Stripe
// event into a provider-neutral one. Resolving a pending schedule phase may
// require one extra API read.
func (a *Adapter) ParseEvent(ctx context.Context, payload []byte, signature string) (*billing.ProviderEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, a.secret)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	switch event.Type {
	case stripe.EventTypeInvoicePaid:
		return a.translateInvoicePaid(event)
	case stripe.EventTypeCustomerSubscriptionUpdated:
		return a.translateSubscription(ctx, event, billing.EventSubscriptionUpdated)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		return a.translateSubscription(ctx, event, billing.EventSubscriptionDeleted)
	default:
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}
}

func (a *Adapter) translateInvoicePaid(event stripe.Event) (*billing.ProviderEvent, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, fmt.Errorf("decode invoice payload: %w", err)
	}

	out := &billing.ProviderEvent{
		ID:            event.ID,
		Kind:          billing.EventInvoicePaid,
		CustomerEmail: invoice.CustomerEmail,
		AmountCents:   invoice.AmountPaid,
		FirstPayment:  invoice.BillingReason == stripe.InvoiceBillingReasonSubscriptionCreate,
	}
	if invoice.Customer != nil {
		out.CustomerID = invoice.Customer.ID
	}
	if invoice.Parent != nil && invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		out.SubscriptionID = invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return out, nil
}

func (a *Adapter) translateSubscription(ctx context.Context, event stripe.Event, kind billing.EventKind) (*billing.ProviderEvent, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription payload: %w", err)
	}

	out := &billing.ProviderEvent{
		ID:                event.ID,
		Kind:              kind,
		SubscriptionID:    sub.ID,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
			out.AmountCents = item.Price.UnitAmount
			if item.Price.Recurring != nil {
				out.Interval = string(item.Price.Recurring.Interval)
				out.IntervalCount = int(item.Price.Recurring.IntervalCount)
			}
		}
		if item.CurrentPeriodEnd > 0 {
			out.PeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}

	if kind == billing.EventSubscriptionUpdated && sub.Schedule != nil {
		if err := a.resolvePendingPhase(ctx, sub.Schedule.ID, out); err != nil {
			// The update itself is still applied; the scheduled phase
			// will surface again on the next subscription event.
			a.logger.Warn("resolve schedule phase failed", zap.Error(err))
		}
	}
	return out, nil
}

// resolvePendingPhase reads the subscription schedule and, when a future
// phase changes the price, records it as a pending downgrade.
func (a *Adapter) resolvePendingPhase(ctx context.Context, scheduleID string, out *billing.ProviderEvent) error {
	schedule, err := a.client.V1SubscriptionSchedules.Retrieve(ctx, scheduleID, nil)
	if err != nil {
		return fmt.Errorf("retrieve subscription schedule: %w", err)
	}
	if schedule.CurrentPhase == nil {
		return nil
	}
	for _, phase := range schedule.Phases {
		if phase.StartDate < schedule.CurrentPhase.EndDate || len(phase.Items) == 0 {
			continue
		}
		price := phase.Items[0].Price
		if price == nil || price.ID == out.PriceID {
			continue
		}
		out.PendingPriceID = price.ID
		out.PendingEffectiveAt = time.Unix(phase.StartDate, 0).UTC()
		return nil
	}
	return nil
}
