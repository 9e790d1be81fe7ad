package billing

import (
	"context"
	"time"
)

// PaymentMethod selects which provider collects a plan change.
type PaymentMethod string

const (
	// MethodCard is the recurring card-billing provider (Stripe).
	MethodCard PaymentMethod = "stripe"
	// MethodPix is the instant bank-transfer provider.
	MethodPix PaymentMethod = "pix"
)

// CheckoutParams describes an embedded checkout session for an upgrade.
// Metadata links the session back to the user and the plan being replaced,
// so the webhook can reconcile it later.
type CheckoutParams struct {
	CustomerID    string // empty when the user has no provider customer yet
	CustomerEmail string
	PriceID       string
	UserID        string
	TargetSlug    string
	PreviousSlug  string
}

// ScheduleParams describes a two-phase downgrade schedule: the current
// price runs until period end, then the new price takes over for one
// iteration.
type ScheduleParams struct {
	SubscriptionID string
	NewPriceID     string
}

// ProrationPreview is the read-only cost preview for a card upgrade.
// Amounts are in minor currency units.
type ProrationPreview struct {
	AmountDueCents int64
	CreditCents    int64
	TotalCents     int64
	EffectiveDate  time.Time
}

// ProviderSubscription is the provider-truth view of a subscription used
// by reconciliation.
type ProviderSubscription struct {
	ID                string
	CustomerID        string
	PriceID           string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// CardBilling is the port to the recurring-billing provider.
type CardBilling interface {
	// CreateEmbeddedCheckout opens an embedded checkout session for the
	// given price and returns its client secret.
	CreateEmbeddedCheckout(ctx context.Context, params CheckoutParams) (string, error)

	// ScheduleDowngrade creates the two-phase schedule and returns when
	// phase two (the lower price) becomes effective.
	ScheduleDowngrade(ctx context.Context, params ScheduleParams) (time.Time, error)

	// PreviewProration asks the provider what substituting newPriceID on
	// the subscription would cost right now.
	PreviewProration(ctx context.Context, subscriptionID, newPriceID string) (*ProrationPreview, error)

	// GetSubscription retrieves provider truth for a subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)

	// FindActiveSubscription locates a customer's active subscription by
	// contact email. Returns (nil, "", nil) when the customer or the
	// subscription does not exist.
	FindActiveSubscription(ctx context.Context, email string) (*ProviderSubscription, string, error)
}

// PixChargeParams describes an instant-transfer charge request.
type PixChargeParams struct {
	AmountCents   int64
	Description   string
	CustomerName  string
	CustomerEmail string
	Metadata      map[string]string
}

// PixStatus collapses the provider's charge lifecycle to what the flow
// acts on.
type PixStatus string

const (
	PixPending  PixStatus = "pending"
	PixPaid     PixStatus = "paid"
	PixExpired  PixStatus = "expired"
	PixRefunded PixStatus = "refunded"
)

// Terminal reports whether the charge can no longer change state.
func (s PixStatus) Terminal() bool {
	return s == PixPaid || s == PixExpired || s == PixRefunded
}

// PixCharge is the QR code payload returned to the client.
type PixCharge struct {
	ID           string
	BRCode       string
	QRCodeBase64 string
	AmountCents  int64
	Status       PixStatus
	ExpiresAt    string
}

// InstantTransfer is the port to the PIX-shaped provider.
type InstantTransfer interface {
	// CreateCharge creates a QR-code charge for the given amount.
	CreateCharge(ctx context.Context, params PixChargeParams) (*PixCharge, error)

	// ChargeStatus returns the provider-side view of a charge.
	ChargeStatus(ctx context.Context, chargeID string) (*PixCharge, error)
}
