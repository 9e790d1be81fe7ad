package payment

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a webhook references a transaction this
// service never created.
var ErrNotFound = errors.New("payment not found")

// Intent records what a paid charge should do to the subscriber.
type Intent string

const (
	IntentNewSubscription Intent = "new_subscription"
	IntentUpgrade         Intent = "upgrade"
)

// Payment is the local tracking row for an instant-transfer charge. The
// provider owns the charge itself; this row carries the plan-change intent
// and the payer-declared identity fields for audit and receipts.
type Payment struct {
	ID               int64  `json:"id,string"`
	TxID             string `json:"txid"`
	ProviderChargeID string `json:"provider_charge_id"`
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	AmountCents      int64  `json:"amount_cents"`
	Status           string `json:"status"`
	Intent           Intent `json:"intent"`
	PlanSlug         string `json:"plan_slug"`
	PreviousPlanSlug string `json:"previous_plan_slug"`

	// Payer identity as declared by the bank on settlement.
	ReceiptName string `json:"receipt_name"`
	ReceiptDoc  string `json:"receipt_cpf_cnpj"`
	EndToEndID  string `json:"pix_end2end_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists payment tracking rows.
type Repository interface {
	// Create inserts a new tracking row when a charge is created.
	Create(ctx context.Context, p *Payment) error

	// FindByTxID locates a payment by provider transaction id. Returns
	// ErrNotFound when absent.
	FindByTxID(ctx context.Context, txid string) (*Payment, error)

	// UpdateStatus records a provider status transition, upserting the
	// payer receipt fields when the bank supplies them.
	UpdateStatus(ctx context.Context, txid, status, receiptName, receiptDoc, endToEndID string) error
}
