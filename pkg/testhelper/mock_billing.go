package testhelper

import (
	"context"
	"fmt"
	"time"

	"github.com/comunidadednb/billing-service/internal/domain/billing"
)

// MockCardBilling is a mock implementation of billing.CardBilling for testing
type MockCardBilling struct {
	CheckoutCalls []billing.CheckoutParams
	ScheduleCalls []billing.ScheduleParams
	PreviewCalls  []string

	ClientSecret string
	EffectiveAt  time.Time
	Preview      *billing.ProrationPreview
	Subscription *billing.ProviderSubscription
	CustomerID   string

	ShouldFail bool
}

func (m *MockCardBilling) CreateEmbeddedCheckout(ctx context.Context, params billing.CheckoutParams) (string, error) {
	if m.ShouldFail {
		return "", fmt.Errorf("mock card billing: checkout failed")
	}
	m.CheckoutCalls = append(m.CheckoutCalls, params)
	if m.ClientSecret == "" {
		return "cs_test_secret", nil
	}
	return m.ClientSecret, nil
}

func (m *MockCardBilling) ScheduleDowngrade(ctx context.Context, params billing.ScheduleParams) (time.Time, error) {
	if m.ShouldFail {
		return time.Time{}, fmt.Errorf("mock card billing: schedule failed")
	}
	m.ScheduleCalls = append(m.ScheduleCalls, params)
	if m.EffectiveAt.IsZero() {
		return time.Now().UTC().Add(15 * 24 * time.Hour), nil
	}
	return m.EffectiveAt, nil
}

func (m *MockCardBilling) PreviewProration(ctx context.Context, subscriptionID, newPriceID string) (*billing.ProrationPreview, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock card billing: preview failed")
	}
	m.PreviewCalls = append(m.PreviewCalls, subscriptionID)
	if m.Preview == nil {
		return &billing.ProrationPreview{}, nil
	}
	return m.Preview, nil
}

func (m *MockCardBilling) GetSubscription(ctx context.Context, subscriptionID string) (*billing.ProviderSubscription, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock card billing: get subscription failed")
	}
	return m.Subscription, nil
}

func (m *MockCardBilling) FindActiveSubscription(ctx context.Context, email string) (*billing.ProviderSubscription, string, error) {
	if m.ShouldFail {
		return nil, "", fmt.Errorf("mock card billing: find subscription failed")
	}
	return m.Subscription, m.CustomerID, nil
}

// MockInstantTransfer is a mock implementation of billing.InstantTransfer for testing
type MockInstantTransfer struct {
	CreateCalls []billing.PixChargeParams
	StatusCalls []string

	Charge   *billing.PixCharge
	Statuses []billing.PixStatus // consumed in order by ChargeStatus; last repeats

	ShouldFail bool
}

func (m *MockInstantTransfer) CreateCharge(ctx context.Context, params billing.PixChargeParams) (*billing.PixCharge, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock instant transfer: create failed")
	}
	m.CreateCalls = append(m.CreateCalls, params)
	if m.Charge != nil {
		return m.Charge, nil
	}
	return &billing.PixCharge{
		ID:           "pix_charge_test",
		BRCode:       "00020126test",
		QRCodeBase64: "aGVsbG8=",
		AmountCents:  params.AmountCents,
		Status:       billing.PixPending,
	}, nil
}

func (m *MockInstantTransfer) ChargeStatus(ctx context.Context, chargeID string) (*billing.PixCharge, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock instant transfer: status failed")
	}
	m.StatusCalls = append(m.StatusCalls, chargeID)

	status := billing.PixPending
	if len(m.Statuses) > 0 {
		idx := len(m.StatusCalls) - 1
		if idx >= len(m.Statuses) {
			idx = len(m.Statuses) - 1
		}
		status = m.Statuses[idx]
	}
	return &billing.PixCharge{ID: chargeID, Status: status}, nil
}
