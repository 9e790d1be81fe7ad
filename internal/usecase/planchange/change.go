package planchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/billing"
	"github.com/comunidadednb/billing-service/internal/domain/payment"
	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
	"github.com/comunidadednb/billing-service/internal/locker"
)

var (
	// ErrUnknownPlan is returned when the target slug is not in the catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrSamePlan rejects a change request targeting the current plan.
	ErrSamePlan = errors.New("already on the requested plan")
)

// Request is one plan-change intent. It lives for the duration of a single
// call; its outcome lands on the subscriber record or on a provider-side
// object.
type Request struct {
	UserID     string                `json:"-"`
	Email      string                `json:"-"`
	TargetSlug string                `json:"planSlug" binding:"required"`
	Method     billing.PaymentMethod `json:"paymentMethod"`
}

// PixData is the QR payload the client renders for an instant-transfer
// charge.
type PixData struct {
	ID           string `json:"id"`
	BRCode       string `json:"brCode"`
	QRCodeBase64 string `json:"qrCodeBase64"`
	AmountCents  int64  `json:"amount"`
	ExpiresAt    string `json:"expiresAt"`
}

// Response tells the client what UI step comes next: an embedded checkout,
// a QR code, or a scheduled-change confirmation.
type Response struct {
	Success       bool                  `json:"success"`
	Type          string                `json:"type"`
	PaymentMethod billing.PaymentMethod `json:"paymentMethod"`
	ClientSecret  string                `json:"clientSecret,omitempty"`
	PixData       *PixData              `json:"pixData,omitempty"`
	NewPlan       string                `json:"newPlan"`
	NewPlanSlug   string                `json:"newPlanSlug"`
	EffectiveDate *time.Time            `json:"effectiveDate,omitempty"`
}

// UseCase orchestrates a plan change across the two payment providers.
type UseCase struct {
	subscribers subscriber.Repository
	payments    payment.Repository
	card        billing.CardBilling
	pix         billing.InstantTransfer
	locks       locker.Locker
	logger      *zap.Logger
	now         func() time.Time
}

func NewUseCase(
	subscribers subscriber.Repository,
	payments payment.Repository,
	card billing.CardBilling,
	pix billing.InstantTransfer,
	locks locker.Locker,
	logger *zap.Logger,
) *UseCase {
	return &UseCase{
		subscribers: subscribers,
		payments:    payments,
		card:        card,
		pix:         pix,
		locks:       locks,
		logger:      logger.Named("planchange"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs the read-decide-write sequence under a per-subscriber lock,
// so at most one plan change per user is in flight.
func (uc *UseCase) Execute(ctx context.Context, req Request) (*Response, error) {
	release, err := uc.locks.Acquire(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	sub, err := uc.subscribers.FindByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}
	if sub == nil {
		return nil, subscriber.ErrNoActiveSubscription
	}

	target, ok := plan.Lookup(req.TargetSlug)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, req.TargetSlug)
	}
	if sub.Subscribed && sub.PlanSlug == target.Slug {
		return nil, ErrSamePlan
	}

	// Equal sort order counts as a downgrade.
	isUpgrade := target.SortOrder > plan.SortOrder(sub.PlanSlug)

	method := req.Method
	if method == "" {
		if sub.HasCardBilling() {
			method = billing.MethodCard
		} else {
			method = billing.MethodPix
		}
	}

	uc.logger.Info("plan_change_requested",
		zap.String("user_id", req.UserID),
		zap.String("current_plan", sub.PlanSlug),
		zap.String("target_plan", target.Slug),
		zap.Bool("upgrade", isUpgrade),
		zap.String("method", string(method)),
	)

	if isUpgrade {
		if method == billing.MethodCard {
			return uc.upgradeWithCard(ctx, sub, target)
		}
		return uc.upgradeWithPix(ctx, sub, target)
	}
	return uc.downgrade(ctx, sub, target, method)
}

// upgradeWithCard opens an embedded checkout session. No local write
// happens here; the subscriber flips to the new plan only when the paid
// invoice event arrives.
func (uc *UseCase) upgradeWithCard(ctx context.Context, sub *subscriber.Subscriber, target plan.Definition) (*Response, error) {
	clientSecret, err := uc.card.CreateEmbeddedCheckout(ctx, billing.CheckoutParams{
		CustomerID:    sub.StripeCustomerID,
		CustomerEmail: sub.Email,
		PriceID:       target.PriceID,
		UserID:        sub.UserID,
		TargetSlug:    target.Slug,
		PreviousSlug:  sub.PlanSlug,
	})
	if err != nil {
		uc.logger.Error("plan_change_step_failed",
			zap.String("step", "create_checkout"),
			zap.String("user_id", sub.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	return &Response{
		Success:       true,
		Type:          "upgrade",
		PaymentMethod: billing.MethodCard,
		ClientSecret:  clientSecret,
		NewPlan:       target.Tier,
		NewPlanSlug:   target.Slug,
	}, nil
}

// upgradeWithPix creates a QR charge for the prorated amount and records a
// local tracking row carrying the plan-change intent. The subscriber record
// itself is untouched until the paid webhook or a poll observes settlement.
func (uc *UseCase) upgradeWithPix(ctx context.Context, sub *subscriber.Subscriber, target plan.Definition) (*Response, error) {
	intent := payment.IntentUpgrade
	proration := Proration{AmountDueCents: target.AmountCents}
	if !sub.Subscribed || sub.PlanSlug == "" {
		intent = payment.IntentNewSubscription
	} else if current, ok := plan.Lookup(sub.PlanSlug); ok {
		proration = prorate(current, target, sub.SubscriptionEnd, uc.now())
	}

	charge, err := uc.pix.CreateCharge(ctx, billing.PixChargeParams{
		AmountCents:   proration.AmountDueCents,
		Description:   fmt.Sprintf("Assinatura %s", target.Tier),
		CustomerName:  sub.DisplayName,
		CustomerEmail: sub.Email,
		Metadata: map[string]string{
			"user_id":       sub.UserID,
			"plan_slug":     target.Slug,
			"previous_plan": sub.PlanSlug,
			"intent":        string(intent),
		},
	})
	if err != nil {
		uc.logger.Error("plan_change_step_failed",
			zap.String("step", "create_pix_charge"),
			zap.String("user_id", sub.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	now := uc.now()
	err = uc.payments.Create(ctx, &payment.Payment{
		TxID:             charge.ID,
		ProviderChargeID: charge.ID,
		UserID:           sub.UserID,
		Email:            sub.Email,
		AmountCents:      proration.AmountDueCents,
		Status:           "pending",
		Intent:           intent,
		PlanSlug:         target.Slug,
		PreviousPlanSlug: sub.PlanSlug,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		// The charge exists provider-side; without the tracking row its
		// webhook would 404, so the whole request fails here.
		uc.logger.Error("plan_change_step_failed",
			zap.String("step", "record_pix_payment"),
			zap.String("user_id", sub.UserID),
			zap.String("txid", charge.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record payment: %w", err)
	}

	return &Response{
		Success:       true,
		Type:          "upgrade",
		PaymentMethod: billing.MethodPix,
		PixData: &PixData{
			ID:           charge.ID,
			BRCode:       charge.BRCode,
			QRCodeBase64: charge.QRCodeBase64,
			AmountCents:  proration.AmountDueCents,
			ExpiresAt:    charge.ExpiresAt,
		},
		NewPlan:     target.Tier,
		NewPlanSlug: target.Slug,
	}, nil
}

// downgrade schedules the cheaper plan. With card billing on file, the
// provider schedule is created first and the local pending pair only after
// it succeeded; nothing is persisted if the provider call fails. The
// requested payment method cannot override this: a local-only downgrade
// would leave the provider subscription renewing at the old price, and the
// next invoice would clear the pending pair.
func (uc *UseCase) downgrade(ctx context.Context, sub *subscriber.Subscriber, target plan.Definition, method billing.PaymentMethod) (*Response, error) {
	var effectiveAt time.Time

	if sub.HasCardBilling() {
		method = billing.MethodCard
		at, err := uc.card.ScheduleDowngrade(ctx, billing.ScheduleParams{
			SubscriptionID: sub.StripeSubscriptionID,
			NewPriceID:     target.PriceID,
		})
		if err != nil {
			uc.logger.Error("plan_change_step_failed",
				zap.String("step", "schedule_downgrade"),
				zap.String("user_id", sub.UserID),
				zap.Error(err),
			)
			return nil, err
		}
		effectiveAt = at
	} else if sub.SubscriptionEnd != nil {
		effectiveAt = *sub.SubscriptionEnd
	} else {
		effectiveAt = uc.now()
	}

	if err := sub.ScheduleDowngrade(target.Slug, effectiveAt); err != nil {
		return nil, err
	}
	if err := uc.subscribers.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("persist pending downgrade: %w", err)
	}

	return &Response{
		Success:       true,
		Type:          "downgrade",
		PaymentMethod: method,
		NewPlan:       target.Tier,
		NewPlanSlug:   target.Slug,
		EffectiveDate: &effectiveAt,
	}, nil
}
