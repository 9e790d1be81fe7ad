package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	stripeadapter "github.com/comunidadednb/billing-service/internal/adapter/billing/stripe"
	"github.com/comunidadednb/billing-service/internal/auth"
	"github.com/comunidadednb/billing-service/internal/config"
	"github.com/comunidadednb/billing-service/internal/domain/billing"
	"github.com/comunidadednb/billing-service/internal/domain/payment"
	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
	"github.com/comunidadednb/billing-service/internal/locker"
	"github.com/comunidadednb/billing-service/internal/usecase/planchange"
	"github.com/comunidadednb/billing-service/internal/usecase/reconcile"
	"github.com/comunidadednb/billing-service/pkg/pixclient"
	"github.com/comunidadednb/billing-service/pkg/testhelper"
)

const (
	testJWTSecret = "test-jwt-secret"
	testPixSecret = "test-pix-secret"
)

type routerFixture struct {
	router      *Router
	subscribers *testhelper.MockSubscriberRepository
	payments    *testhelper.MockPaymentRepository
	card        *testhelper.MockCardBilling
	pix         *testhelper.MockInstantTransfer
	plans       *testhelper.MockPlanRepository
	notifier    *testhelper.MockNotifier
	parser      *stubEventParser
}

// stubEventParser skips real signature verification; adapter behavior is
// covered by its own tests.
type stubEventParser struct {
	event *billing.ProviderEvent
	err   error
}

func (s *stubEventParser) ParseEvent(ctx context.Context, payload []byte, signature string) (*billing.ProviderEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.event, nil
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		subscribers: testhelper.NewMockSubscriberRepository(),
		payments:    testhelper.NewMockPaymentRepository(),
		card:        &testhelper.MockCardBilling{},
		pix:         &testhelper.MockInstantTransfer{},
		plans:       testhelper.NewMockPlanRepository(),
		notifier:    &testhelper.MockNotifier{},
		parser:      &stubEventParser{},
	}

	cfg := &config.Config{Port: "8080", AuthJWTSecret: testJWTSecret}
	logger := zap.NewNop()
	changeUC := planchange.NewUseCase(f.subscribers, f.payments, f.card, f.pix, locker.NoopLocker{}, logger)
	reconcileUC := reconcile.NewUseCase(f.subscribers, f.card, f.notifier, logger)
	pixUC := reconcile.NewPixUseCase(f.subscribers, f.payments, f.notifier, logger)

	f.router = NewRouter(cfg, changeUC, reconcileUC, pixUC, f.pix, f.parser,
		f.plans, f.notifier, auth.NewMiddleware(cfg), testPixSecret, logger)
	return f
}

func (f *routerFixture) bearerToken(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.engine.ServeHTTP(w, req)
	return w
}

func TestChangePlan_RequiresAuth(t *testing.T) {
	f := newRouterFixture(t)
	body := bytes.NewBufferString(`{"planSlug":"premium-yearly"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/subscription/change-plan", body)

	w := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	// Aborted before any side effect.
	assert.Empty(t, f.card.CheckoutCalls)
	assert.Empty(t, f.pix.CreateCalls)
}

func TestChangePlan_UpgradeReturnsClientSecret(t *testing.T) {
	f := newRouterFixture(t)
	end := time.Now().UTC().Add(15 * 24 * time.Hour)
	f.subscribers.Seed(&subscriber.Subscriber{
		UserID:          "user-1",
		Email:           "ana@example.com",
		Subscribed:      true,
		PlanSlug:        plan.SlugMonthly,
		SubscriptionEnd: &end,
	})
	f.card.ClientSecret = "cs_live_123"

	body := bytes.NewBufferString(`{"planSlug":"premium-yearly","paymentMethod":"stripe"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/subscription/change-plan", body)
	req.Header.Set("Authorization", "Bearer "+f.bearerToken(t, ""))

	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp planchange.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "upgrade", resp.Type)
	assert.Equal(t, "cs_live_123", resp.ClientSecret)
}

func TestChangePlan_UnknownSlug(t *testing.T) {
	f := newRouterFixture(t)
	f.subscribers.Seed(&subscriber.Subscriber{UserID: "user-1", Email: "ana@example.com"})

	body := bytes.NewBufferString(`{"planSlug":"premium-forever"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/subscription/change-plan", body)
	req.Header.Set("Authorization", "Bearer "+f.bearerToken(t, ""))

	w := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPixWebhook_InvalidSignatureRejectedBeforeParsing(t *testing.T) {
	f := newRouterFixture(t)
	payload := []byte(`{"status":"PAID","txid":"abc"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", bytes.NewReader(payload))
	req.Header.Set("X-Webhook-Signature", "not-the-signature")

	w := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.payments.UpdateCalls)
}

func TestPixWebhook_UnknownTransactionIs404(t *testing.T) {
	f := newRouterFixture(t)
	payload := []byte(`{"status":"PAID","txid":"abc"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", bytes.NewReader(payload))
	req.Header.Set("X-Webhook-Signature", pixclient.Sign(testPixSecret, payload))

	w := f.do(req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPixWebhook_PaidActivatesSubscriber(t *testing.T) {
	f := newRouterFixture(t)
	f.payments.Seed(&payment.Payment{
		TxID:     "tx_1",
		UserID:   "user-1",
		Email:    "ana@example.com",
		Status:   "pending",
		Intent:   payment.IntentNewSubscription,
		PlanSlug: plan.SlugMonthly,
	})
	payload := []byte(`{"status":"PAID","txid":"tx_1","receipt_name":"Ana Souza"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", bytes.NewReader(payload))
	req.Header.Set("X-Webhook-Signature", pixclient.Sign(testPixSecret, payload))

	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	sub, _ := f.subscribers.FindByEmail(context.Background(), "ana@example.com")
	require.NotNil(t, sub)
	assert.True(t, sub.Subscribed)
	assert.Equal(t, plan.SlugMonthly, sub.PlanSlug)
}

func TestStripeWebhook_SignatureMismatchIs401(t *testing.T) {
	f := newRouterFixture(t)
	f.parser.err = stripeadapter.ErrInvalidSignature

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString("{}"))
	w := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStripeWebhook_AppliesEvent(t *testing.T) {
	f := newRouterFixture(t)
	f.parser.event = &billing.ProviderEvent{
		ID:             "evt_1",
		Kind:           billing.EventInvoicePaid,
		SubscriptionID: "sub_1",
		CustomerEmail:  "ana@example.com",
		PriceID:        "price_premium_yearly",
		PeriodEnd:      time.Now().UTC().Add(365 * 24 * time.Hour),
		FirstPayment:   true,
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString("{}"))
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	sub, _ := f.subscribers.FindByEmail(context.Background(), "ana@example.com")
	require.NotNil(t, sub)
	assert.Equal(t, plan.SlugYearly, sub.PlanSlug)
}

func TestSendEmail_UserTokenForbidden(t *testing.T) {
	f := newRouterFixture(t)
	body := bytes.NewBufferString(`{"to":"ana@example.com","type":"welcome"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/emails/send", body)
	req.Header.Set("Authorization", "Bearer "+f.bearerToken(t, ""))

	w := f.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.notifier.Enqueued)
}

func TestSendEmail_ServiceTokenBypassesAdminCheck(t *testing.T) {
	f := newRouterFixture(t)
	body := bytes.NewBufferString(`{"to":"ana@example.com","type":"welcome","data":{"name":"Ana"}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/emails/send", body)
	req.Header.Set("Authorization", "Bearer "+f.bearerToken(t, auth.ServiceRole))

	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.notifier.Enqueued, 1)
	assert.Equal(t, "ana@example.com", f.notifier.Enqueued[0].Recipient)
}

func TestSendEmail_UnknownTypeRejected(t *testing.T) {
	f := newRouterFixture(t)
	body := bytes.NewBufferString(`{"to":"ana@example.com","type":"spam_blast"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/emails/send", body)
	req.Header.Set("Authorization", "Bearer "+f.bearerToken(t, auth.AdminRole))

	w := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPlans_IsPublicAndOrdered(t *testing.T) {
	f := newRouterFixture(t)
	// Table overrides the display name; billing fields stay in the catalog.
	f.plans.Seed(&plan.Record{Slug: plan.SlugMonthly, Name: "Mensal Promo", Active: true})

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/plans", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Plans []struct {
			Slug        string `json:"slug"`
			Name        string `json:"name"`
			AmountCents int64  `json:"amountCents"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Plans, 4)
	assert.Equal(t, plan.SlugMonthly, resp.Plans[0].Slug)
	assert.Equal(t, "Mensal Promo", resp.Plans[0].Name)
	assert.Equal(t, plan.SlugYearly, resp.Plans[3].Slug)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}
