package planchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/billing"
	"github.com/comunidadednb/billing-service/internal/domain/payment"
	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
	"github.com/comunidadednb/billing-service/internal/locker"
	"github.com/comunidadednb/billing-service/pkg/testhelper"
)

type fixture struct {
	uc          *UseCase
	subscribers *testhelper.MockSubscriberRepository
	payments    *testhelper.MockPaymentRepository
	card        *testhelper.MockCardBilling
	pix         *testhelper.MockInstantTransfer
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		subscribers: testhelper.NewMockSubscriberRepository(),
		payments:    testhelper.NewMockPaymentRepository(),
		card:        &testhelper.MockCardBilling{},
		pix:         &testhelper.MockInstantTransfer{},
		now:         time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.uc = NewUseCase(f.subscribers, f.payments, f.card, f.pix, locker.NoopLocker{}, zap.NewNop())
	f.uc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) seedMonthlySubscriber(daysRemaining int) *subscriber.Subscriber {
	end := f.now.Add(time.Duration(daysRemaining) * 24 * time.Hour)
	sub := &subscriber.Subscriber{
		UserID:      "user-1",
		Email:       "ana@example.com",
		DisplayName: "Ana",
		Subscribed:  true,
		PlanSlug:    plan.SlugMonthly,
	}
	sub.SubscriptionEnd = &end
	f.subscribers.Seed(sub)
	return sub
}

func TestExecute_UpgradeWithCard_NoLocalWrite(t *testing.T) {
	f := newFixture(t)
	f.seedMonthlySubscriber(15)
	f.card.ClientSecret = "cs_test_abc"

	resp, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugYearly,
		Method:     billing.MethodCard,
	})
	require.NoError(t, err)

	assert.Equal(t, "upgrade", resp.Type)
	assert.Equal(t, billing.MethodCard, resp.PaymentMethod)
	assert.Equal(t, "cs_test_abc", resp.ClientSecret)
	assert.Equal(t, plan.SlugYearly, resp.NewPlanSlug)
	assert.Nil(t, resp.PixData)

	// The subscriber flips only when the paid invoice arrives.
	assert.Zero(t, f.subscribers.SaveCalls)
	stored, _ := f.subscribers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, plan.SlugMonthly, stored.PlanSlug)

	require.Len(t, f.card.CheckoutCalls, 1)
	assert.Equal(t, plan.SlugMonthly, f.card.CheckoutCalls[0].PreviousSlug)
	assert.Equal(t, "price_premium_yearly", f.card.CheckoutCalls[0].PriceID)
}

func TestExecute_UpgradeWithPix_ProratedAmount(t *testing.T) {
	f := newFixture(t)
	f.seedMonthlySubscriber(15)

	resp, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugYearly,
		Method:     billing.MethodPix,
	})
	require.NoError(t, err)

	// 15 of 30 days remaining on a 3000-cent plan: credit 1500,
	// due 18500 - 1500 = 17000.
	require.NotNil(t, resp.PixData)
	assert.Equal(t, int64(17000), resp.PixData.AmountCents)
	assert.Equal(t, billing.MethodPix, resp.PaymentMethod)

	require.Len(t, f.pix.CreateCalls, 1)
	assert.Equal(t, int64(17000), f.pix.CreateCalls[0].AmountCents)
	assert.Equal(t, plan.SlugYearly, f.pix.CreateCalls[0].Metadata["plan_slug"])
	assert.Equal(t, string(payment.IntentUpgrade), f.pix.CreateCalls[0].Metadata["intent"])

	// A tracking row carries the intent for the webhook.
	require.Len(t, f.payments.CreateCalls, 1)
	created := f.payments.CreateCalls[0]
	assert.Equal(t, resp.PixData.ID, created.TxID)
	assert.Equal(t, payment.IntentUpgrade, created.Intent)
	assert.Equal(t, plan.SlugMonthly, created.PreviousPlanSlug)
	assert.Equal(t, "pending", created.Status)
}

func TestExecute_UnsubscribedUserPaysFullPrice(t *testing.T) {
	f := newFixture(t)
	f.subscribers.Seed(&subscriber.Subscriber{
		UserID: "user-1",
		Email:  "ana@example.com",
	})

	resp, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugMonthly,
	})
	require.NoError(t, err)

	// No card billing on file, so the method defaults to pix.
	assert.Equal(t, billing.MethodPix, resp.PaymentMethod)
	require.NotNil(t, resp.PixData)
	assert.Equal(t, int64(3000), resp.PixData.AmountCents)

	require.Len(t, f.payments.CreateCalls, 1)
	assert.Equal(t, payment.IntentNewSubscription, f.payments.CreateCalls[0].Intent)
}

func TestExecute_DowngradeWithCard_SchedulesThenPersists(t *testing.T) {
	f := newFixture(t)
	periodEnd := f.now.Add(200 * 24 * time.Hour)
	end := periodEnd
	f.subscribers.Seed(&subscriber.Subscriber{
		UserID:               "user-1",
		Email:                "ana@example.com",
		Subscribed:           true,
		PlanSlug:             plan.SlugYearly,
		SubscriptionEnd:      &end,
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_123",
	})
	f.card.EffectiveAt = periodEnd

	resp, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugMonthly,
	})
	require.NoError(t, err)

	assert.Equal(t, "downgrade", resp.Type)
	require.NotNil(t, resp.EffectiveDate)
	assert.Equal(t, periodEnd, *resp.EffectiveDate)

	require.Len(t, f.card.ScheduleCalls, 1)
	assert.Equal(t, "sub_123", f.card.ScheduleCalls[0].SubscriptionID)
	assert.Equal(t, "price_premium_monthly", f.card.ScheduleCalls[0].NewPriceID)

	stored, _ := f.subscribers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, plan.SlugMonthly, stored.PendingDowngradeTo)
	require.NotNil(t, stored.PendingDowngradeDate)
	assert.Equal(t, periodEnd, *stored.PendingDowngradeDate)
	// Still on the old plan until the schedule's second phase starts.
	assert.Equal(t, plan.SlugYearly, stored.PlanSlug)
}

func TestExecute_ExplicitPixDowngradeStillUsesProviderSchedule(t *testing.T) {
	// A local-only downgrade would leave the provider subscription
	// renewing at the old price, so the requested method cannot skip
	// the schedule when card billing is on file.
	f := newFixture(t)
	periodEnd := f.now.Add(120 * 24 * time.Hour)
	end := periodEnd
	f.subscribers.Seed(&subscriber.Subscriber{
		UserID:               "user-1",
		Email:                "ana@example.com",
		Subscribed:           true,
		PlanSlug:             plan.SlugYearly,
		SubscriptionEnd:      &end,
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_123",
	})
	f.card.EffectiveAt = periodEnd

	resp, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugMonthly,
		Method:     billing.MethodPix,
	})
	require.NoError(t, err)

	assert.Equal(t, "downgrade", resp.Type)
	assert.Equal(t, billing.MethodCard, resp.PaymentMethod)
	require.Len(t, f.card.ScheduleCalls, 1)
	assert.Equal(t, "sub_123", f.card.ScheduleCalls[0].SubscriptionID)
	assert.Empty(t, f.pix.CreateCalls)

	stored, _ := f.subscribers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, plan.SlugMonthly, stored.PendingDowngradeTo)
	require.NotNil(t, stored.PendingDowngradeDate)
	assert.Equal(t, periodEnd, *stored.PendingDowngradeDate)
}

func TestExecute_DowngradeProviderFailureLeavesNoPendingState(t *testing.T) {
	f := newFixture(t)
	end := f.now.Add(100 * 24 * time.Hour)
	f.subscribers.Seed(&subscriber.Subscriber{
		UserID:               "user-1",
		Email:                "ana@example.com",
		Subscribed:           true,
		PlanSlug:             plan.SlugYearly,
		SubscriptionEnd:      &end,
		StripeSubscriptionID: "sub_123",
	})
	f.card.ShouldFail = true

	_, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugMonthly,
	})
	require.Error(t, err)

	stored, _ := f.subscribers.FindByUserID(context.Background(), "user-1")
	assert.Empty(t, stored.PendingDowngradeTo)
	assert.Nil(t, stored.PendingDowngradeDate)
}

func TestExecute_DowngradeWithoutCardBilling_PersistsLocally(t *testing.T) {
	f := newFixture(t)
	end := f.now.Add(40 * 24 * time.Hour)
	f.subscribers.Seed(&subscriber.Subscriber{
		UserID:          "user-1",
		Email:           "ana@example.com",
		Subscribed:      true,
		PlanSlug:        plan.SlugQuarterly,
		SubscriptionEnd: &end,
	})

	resp, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugMonthly,
	})
	require.NoError(t, err)

	assert.Equal(t, "downgrade", resp.Type)
	assert.Empty(t, f.card.ScheduleCalls)
	require.NotNil(t, resp.EffectiveDate)
	assert.Equal(t, end, *resp.EffectiveDate)

	stored, _ := f.subscribers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, plan.SlugMonthly, stored.PendingDowngradeTo)
}

func TestExecute_EqualSortOrderIsDowngrade(t *testing.T) {
	// Classification property: strictly greater sort order is an upgrade,
	// lower or equal is a downgrade.
	slugs := []string{plan.SlugMonthly, plan.SlugQuarterly, plan.SlugSemiannual, plan.SlugYearly}
	for _, current := range slugs {
		for _, target := range slugs {
			if current == target {
				continue
			}
			f := newFixture(t)
			end := f.now.Add(10 * 24 * time.Hour)
			f.subscribers.Seed(&subscriber.Subscriber{
				UserID:          "user-1",
				Email:           "ana@example.com",
				Subscribed:      true,
				PlanSlug:        current,
				SubscriptionEnd: &end,
			})

			resp, err := f.uc.Execute(context.Background(), Request{
				UserID:     "user-1",
				TargetSlug: target,
			})
			require.NoError(t, err, "%s -> %s", current, target)

			wantUpgrade := plan.SortOrder(target) > plan.SortOrder(current)
			if wantUpgrade {
				assert.Equal(t, "upgrade", resp.Type, "%s -> %s", current, target)
			} else {
				assert.Equal(t, "downgrade", resp.Type, "%s -> %s", current, target)
			}
		}
	}
}

func TestExecute_SamePlanRejected(t *testing.T) {
	f := newFixture(t)
	f.seedMonthlySubscriber(10)

	_, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugMonthly,
	})
	assert.ErrorIs(t, err, ErrSamePlan)
}

func TestExecute_UnknownPlanRejected(t *testing.T) {
	f := newFixture(t)
	f.seedMonthlySubscriber(10)

	_, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: "premium-forever",
	})
	assert.ErrorIs(t, err, ErrUnknownPlan)
	assert.Empty(t, f.card.CheckoutCalls)
	assert.Empty(t, f.pix.CreateCalls)
}

func TestExecute_MissingSubscriber(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Execute(context.Background(), Request{
		UserID:     "ghost",
		TargetSlug: plan.SlugMonthly,
	})
	assert.ErrorIs(t, err, subscriber.ErrNoActiveSubscription)
}

func TestExecute_LockHeldRejectsConcurrentChange(t *testing.T) {
	f := newFixture(t)
	f.seedMonthlySubscriber(10)
	f.uc.locks = heldLocker{}

	_, err := f.uc.Execute(context.Background(), Request{
		UserID:     "user-1",
		TargetSlug: plan.SlugYearly,
	})
	assert.ErrorIs(t, err, locker.ErrLockHeld)
	assert.Empty(t, f.card.CheckoutCalls)
	assert.Empty(t, f.pix.CreateCalls)
}

type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return nil, locker.ErrLockHeld
}

func TestProrate_Property(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	current := plan.Catalog[plan.SlugMonthly]

	for _, targetSlug := range []string{plan.SlugQuarterly, plan.SlugSemiannual, plan.SlugYearly} {
		target := plan.Catalog[targetSlug]
		for days := 0; days <= current.PeriodDays(); days++ {
			end := now.Add(time.Duration(days) * 24 * time.Hour)
			p := prorate(current, target, &end, now)

			assert.GreaterOrEqual(t, p.AmountDueCents, int64(MinChargeCents),
				"amount due below floor for %s with %d days left", targetSlug, days)
			assert.LessOrEqual(t, p.AmountDueCents, target.AmountCents)
			assert.GreaterOrEqual(t, p.CreditCents, int64(0))
			assert.LessOrEqual(t, p.CreditCents, current.AmountCents)
		}
	}
}

func TestProrate_HalfPeriodExample(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := now.Add(15 * 24 * time.Hour)

	p := prorate(plan.Catalog[plan.SlugMonthly], plan.Catalog[plan.SlugYearly], &end, now)
	assert.Equal(t, int64(1500), p.CreditCents)
	assert.Equal(t, int64(17000), p.AmountDueCents)
}

func TestProrate_NoSubscriptionEnd(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	p := prorate(plan.Catalog[plan.SlugMonthly], plan.Catalog[plan.SlugYearly], nil, now)
	assert.Zero(t, p.CreditCents)
	assert.Equal(t, int64(18500), p.AmountDueCents)
}
