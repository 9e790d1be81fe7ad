package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/billing"
	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
	"github.com/comunidadednb/billing-service/internal/mailer"
)

// Notifier enqueues a notification keyed by the provider event that caused
// it, so replayed events do not re-send.
type Notifier interface {
	Enqueue(ctx context.Context, providerEventID string, emailType mailer.EmailType, recipient string, data map[string]string) error
}

// UseCase converges local subscriber state to provider truth.
type UseCase struct {
	subscribers subscriber.Repository
	card        billing.CardBilling
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewUseCase(subscribers subscriber.Repository, card billing.CardBilling, notifier Notifier, logger *zap.Logger) *UseCase {
	return &UseCase{
		subscribers: subscribers,
		card:        card,
		notifier:    notifier,
		logger:      logger.Named("reconcile"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ApplyCardEvent applies one recurring-billing provider event. Writes are
// upserts keyed by contact email, so replaying the same event converges to
// the same state.
func (uc *UseCase) ApplyCardEvent(ctx context.Context, event *billing.ProviderEvent) error {
	switch event.Kind {
	case billing.EventInvoicePaid:
		return uc.applyInvoicePaid(ctx, event)
	case billing.EventSubscriptionUpdated:
		return uc.applySubscriptionUpdated(ctx, event)
	case billing.EventSubscriptionDeleted:
		return uc.applySubscriptionDeleted(ctx, event)
	default:
		return fmt.Errorf("unsupported event kind: %s", event.Kind)
	}
}

func (uc *UseCase) applyInvoicePaid(ctx context.Context, event *billing.ProviderEvent) error {
	// Invoice payloads carry no price; provider truth fills in the plan
	// and the period end.
	if event.PriceID == "" && event.SubscriptionID != "" {
		providerSub, err := uc.card.GetSubscription(ctx, event.SubscriptionID)
		if err != nil {
			return fmt.Errorf("load provider subscription: %w", err)
		}
		event.PriceID = providerSub.PriceID
		event.PeriodEnd = providerSub.CurrentPeriodEnd
		if event.CustomerID == "" {
			event.CustomerID = providerSub.CustomerID
		}
	}
	if event.CustomerEmail == "" {
		return fmt.Errorf("invoice event %s has no customer email", event.ID)
	}

	resolved := plan.ResolvePlan(event.PriceID)
	periodEnd := event.PeriodEnd
	if periodEnd.IsZero() {
		def, _ := plan.Lookup(resolved.Slug)
		periodEnd = uc.now().Add(def.PeriodDuration())
	}

	sub, err := uc.subscribers.FindByEmail(ctx, event.CustomerEmail)
	if err != nil {
		return fmt.Errorf("load subscriber: %w", err)
	}
	if sub == nil {
		sub = subscriber.New("", event.CustomerEmail, "")
	}

	sub.StripeCustomerID = event.CustomerID
	sub.StripeSubscriptionID = event.SubscriptionID
	sub.Activate(resolved.Slug, periodEnd)

	if err := uc.subscribers.UpsertByEmail(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	uc.logger.Info("subscription_activated",
		zap.String("email", event.CustomerEmail),
		zap.String("plan", resolved.Slug),
		zap.Time("end", periodEnd),
	)

	emailType := mailer.TypeRenewalReceipt
	if event.FirstPayment {
		emailType = mailer.TypeSubscriptionConfirmed
	}
	uc.enqueueEmail(ctx, event.ID, emailType, sub, map[string]string{
		"plan": resolved.Tier,
		"date": periodEnd.Format("02/01/2006"),
	})
	return nil
}

func (uc *UseCase) applySubscriptionUpdated(ctx context.Context, event *billing.ProviderEvent) error {
	sub, err := uc.findForEvent(ctx, event)
	if err != nil || sub == nil {
		return err
	}

	resolved := resolveEventPlan(event)
	previousSlug := sub.PlanSlug
	planChanged := previousSlug != resolved.Slug
	scheduledDowngrade := planChanged && sub.PendingDowngradeTo == resolved.Slug

	sub.StripeSubscriptionID = event.SubscriptionID
	if event.CustomerID != "" {
		sub.StripeCustomerID = event.CustomerID
	}
	sub.CancelAtPeriodEnd = event.CancelAtPeriodEnd
	if planChanged {
		periodEnd := event.PeriodEnd
		if periodEnd.IsZero() && sub.SubscriptionEnd != nil {
			periodEnd = *sub.SubscriptionEnd
		}
		if periodEnd.IsZero() {
			def, _ := plan.Lookup(resolved.Slug)
			periodEnd = uc.now().Add(def.PeriodDuration())
		}
		sub.Activate(resolved.Slug, periodEnd)
	} else if !event.PeriodEnd.IsZero() {
		end := event.PeriodEnd
		sub.SubscriptionEnd = &end
	}

	// A future-dated schedule phase is a pending downgrade.
	if event.PendingPriceID != "" && !event.PendingEffectiveAt.IsZero() {
		pending := plan.ResolvePlan(event.PendingPriceID)
		if err := sub.ScheduleDowngrade(pending.Slug, event.PendingEffectiveAt); err != nil {
			return err
		}
		uc.enqueueEmail(ctx, event.ID, mailer.TypeDowngrade, sub, map[string]string{
			"plan": pending.Tier,
			"date": event.PendingEffectiveAt.Format("02/01/2006"),
		})
	}

	if err := uc.subscribers.UpsertByEmail(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	if planChanged {
		switch {
		case plan.SortOrder(resolved.Slug) > plan.SortOrder(previousSlug):
			uc.enqueueEmail(ctx, event.ID, mailer.TypeUpgrade, sub, map[string]string{
				"plan": resolved.Tier,
			})
		case scheduledDowngrade:
			// Announced when the downgrade was scheduled; the second
			// phase starting is the same transition.
		default:
			uc.enqueueEmail(ctx, event.ID, mailer.TypeDowngrade, sub, map[string]string{
				"plan": resolved.Tier,
				"date": uc.now().Format("02/01/2006"),
			})
		}
	}
	return nil
}

func (uc *UseCase) applySubscriptionDeleted(ctx context.Context, event *billing.ProviderEvent) error {
	sub, err := uc.findForEvent(ctx, event)
	if err != nil || sub == nil {
		return err
	}
	if !sub.Subscribed {
		// Replay of a deletion already applied.
		return nil
	}

	previousTier := sub.PlanSlug
	if def, ok := plan.Lookup(sub.PlanSlug); ok {
		previousTier = def.Tier
	}
	sub.Deactivate()

	if err := uc.subscribers.UpsertByEmail(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	uc.logger.Info("subscription_cancelled",
		zap.String("email", sub.Email),
		zap.String("previous_plan", sub.PreviousPlanSlug),
	)

	uc.enqueueEmail(ctx, event.ID, mailer.TypeSubscriptionCancelled, sub, map[string]string{
		"plan": previousTier,
	})
	return nil
}

// findForEvent locates the subscriber a subscription event refers to, by
// subscription id first and contact email second. Unknown subscriptions are
// logged and skipped, not failed, so the provider stops retrying them.
func (uc *UseCase) findForEvent(ctx context.Context, event *billing.ProviderEvent) (*subscriber.Subscriber, error) {
	sub, err := uc.subscribers.FindByStripeSubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}
	if sub == nil && event.CustomerEmail != "" {
		sub, err = uc.subscribers.FindByEmail(ctx, event.CustomerEmail)
		if err != nil {
			return nil, fmt.Errorf("load subscriber: %w", err)
		}
	}
	if sub == nil {
		uc.logger.Warn("event_for_unknown_subscriber",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", event.SubscriptionID),
		)
	}
	return sub, nil
}

func resolveEventPlan(event *billing.ProviderEvent) plan.Resolved {
	if event.PriceID != "" {
		return plan.ResolvePlan(event.PriceID)
	}
	return plan.DeterminePlanFromPrice(event.AmountCents, event.Interval, event.IntervalCount)
}

// enqueueEmail never fails the state transition that preceded it.
func (uc *UseCase) enqueueEmail(ctx context.Context, eventID string, emailType mailer.EmailType, sub *subscriber.Subscriber, data map[string]string) {
	if data == nil {
		data = map[string]string{}
	}
	data["name"] = sub.DisplayName
	if err := uc.notifier.Enqueue(ctx, eventID, emailType, sub.Email, data); err != nil {
		uc.logger.Error("notification_enqueue_failed",
			zap.String("event_id", eventID),
			zap.String("email_type", string(emailType)),
			zap.Error(err),
		)
	}
}
