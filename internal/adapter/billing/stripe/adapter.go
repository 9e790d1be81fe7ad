package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/config"
	"github.com/comunidadednb/billing-service/internal/domain/billing"
)

// Adapter implements billing.CardBilling on top of the Stripe API.
type Adapter struct {
	client    *stripe.Client
	returnURL string
	secret    string
	logger    *zap.Logger
}

func NewAdapter(cfg *config.Config, logger *zap.Logger) *Adapter {
	return &Adapter{
		client:    stripe.NewClient(cfg.StripeAPIKey),
		returnURL: cfg.CheckoutReturnURL,
		secret:    cfg.StripeWebhookSecret,
		logger:    logger.Named("stripe"),
	}
}

// CreateEmbeddedCheckout opens an embedded-mode checkout session for the
// target price. The old subscription is not cancelled here; replacement is
// reconciled when the new subscription's payment event arrives.
func (a *Adapter) CreateEmbeddedCheckout(ctx context.Context, params billing.CheckoutParams) (string, error) {
	sessionParams := &stripe.CheckoutSessionCreateParams{
		Mode:      stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		UIMode:    stripe.String(string(stripe.CheckoutSessionUIModeEmbedded)),
		ReturnURL: stripe.String(a.returnURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id":       params.UserID,
				"plan_slug":     params.TargetSlug,
				"previous_plan": params.PreviousSlug,
				"intent":        "upgrade",
			},
		},
	}
	if params.CustomerID != "" {
		sessionParams.Customer = stripe.String(params.CustomerID)
	} else {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	session, err := a.client.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session.ClientSecret == "" {
		return "", fmt.Errorf("checkout session %s has no client secret", session.ID)
	}
	return session.ClientSecret, nil
}

// ScheduleDowngrade converts the subscription into a two-phase schedule:
// phase 1 keeps the current price until period end, phase 2 runs the lower
// price for one iteration and then releases the schedule.
func (a *Adapter) ScheduleDowngrade(ctx context.Context, params billing.ScheduleParams) (time.Time, error) {
	sub, err := a.client.V1Subscriptions.Retrieve(ctx, params.SubscriptionID, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("retrieve subscription: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return time.Time{}, fmt.Errorf("subscription %s has no items", params.SubscriptionID)
	}
	item := sub.Items.Data[0]
	periodEnd := item.CurrentPeriodEnd

	schedule, err := a.client.V1SubscriptionSchedules.Create(ctx, &stripe.SubscriptionScheduleCreateParams{
		FromSubscription: stripe.String(params.SubscriptionID),
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("create subscription schedule: %w", err)
	}

	phaseStart := schedule.CurrentPhase.StartDate

	_, err = a.client.V1SubscriptionSchedules.Update(ctx, schedule.ID, &stripe.SubscriptionScheduleUpdateParams{
		EndBehavior: stripe.String("release"),
		Phases: []*stripe.SubscriptionScheduleUpdatePhaseParams{
			{
				StartDate: stripe.Int64(phaseStart),
				EndDate:   stripe.Int64(periodEnd),
				Items: []*stripe.SubscriptionScheduleUpdatePhaseItemParams{
					{
						Price:    stripe.String(item.Price.ID),
						Quantity: stripe.Int64(1),
					},
				},
			},
			{
				Iterations: stripe.Int64(1),
				Items: []*stripe.SubscriptionScheduleUpdatePhaseItemParams{
					{
						Price:    stripe.String(params.NewPriceID),
						Quantity: stripe.Int64(1),
					},
				},
			},
		},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("update subscription schedule: %w", err)
	}

	return time.Unix(periodEnd, 0).UTC(), nil
}

// PreviewProration asks Stripe for the upcoming invoice if the
// subscription's price were substituted right now. Negative lines are the
// unused-time credit.
func (a *Adapter) PreviewProration(ctx context.Context, subscriptionID, newPriceID string) (*billing.ProrationPreview, error) {
	sub, err := a.client.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", subscriptionID)
	}
	item := sub.Items.Data[0]

	invoice, err := a.client.V1Invoices.CreatePreview(ctx, &stripe.InvoiceCreatePreviewParams{
		Customer:     stripe.String(sub.Customer.ID),
		Subscription: stripe.String(subscriptionID),
		SubscriptionDetails: &stripe.InvoiceCreatePreviewSubscriptionDetailsParams{
			Items: []*stripe.InvoiceCreatePreviewSubscriptionDetailsItemParams{
				{
					ID:    stripe.String(item.ID),
					Price: stripe.String(newPriceID),
				},
			},
			ProrationBehavior: stripe.String("create_prorations"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice preview: %w", err)
	}

	var credit int64
	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			if line.Amount < 0 {
				credit += -line.Amount
			}
		}
	}

	return &billing.ProrationPreview{
		AmountDueCents: invoice.AmountDue,
		CreditCents:    credit,
		TotalCents:     invoice.Total,
		EffectiveDate:  time.Now().UTC(),
	}, nil
}

func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*billing.ProviderSubscription, error) {
	sub, err := a.client.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription: %w", err)
	}
	return toProviderSubscription(sub), nil
}

// FindActiveSubscription re-derives provider truth from a contact email:
// first matching customer, then their first active subscription.
func (a *Adapter) FindActiveSubscription(ctx context.Context, email string) (*billing.ProviderSubscription, string, error) {
	customerParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	customerParams.Limit = stripe.Int64(1)

	var customerID string
	for customer, err := range a.client.V1Customers.List(ctx, customerParams) {
		if err != nil {
			return nil, "", fmt.Errorf("list customers: %w", err)
		}
		customerID = customer.ID
		break
	}
	if customerID == "" {
		return nil, "", nil
	}

	subParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("active"),
	}
	subParams.Limit = stripe.Int64(1)

	for sub, err := range a.client.V1Subscriptions.List(ctx, subParams) {
		if err != nil {
			return nil, "", fmt.Errorf("list subscriptions: %w", err)
		}
		return toProviderSubscription(sub), customerID, nil
	}
	return nil, customerID, nil
}

func toProviderSubscription(sub *stripe.Subscription) *billing.ProviderSubscription {
	out := &billing.ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		if item.CurrentPeriodEnd > 0 {
			out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	return out
}
