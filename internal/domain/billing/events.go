package billing

import "time"

// EventKind classifies the provider events reconciliation consumes.
type EventKind string

const (
	EventInvoicePaid         EventKind = "invoice_paid"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"
)

// ProviderEvent is the domain-level view of a card-billing webhook event.
// The stripe adapter translates raw payloads into this shape so the
// reconciler never touches provider types.
type ProviderEvent struct {
	ID             string
	Kind           EventKind
	SubscriptionID string
	CustomerID     string
	CustomerEmail  string

	// Price attributes of the subscription's (single) item.
	PriceID       string
	AmountCents   int64
	Interval      string
	IntervalCount int

	PeriodEnd         time.Time
	CancelAtPeriodEnd bool

	// Set when the update carries a future-dated schedule phase.
	PendingPriceID     string
	PendingEffectiveAt time.Time

	// FirstPayment distinguishes a brand-new subscription's first invoice
	// from a renewal of an existing one.
	FirstPayment bool
}
