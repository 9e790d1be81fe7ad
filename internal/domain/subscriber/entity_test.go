package subscriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	sub := New("user-1", "ana@example.com", "Ana")

	assert.Equal(t, "user-1", sub.UserID)
	assert.Equal(t, "ana@example.com", sub.Email)
	assert.False(t, sub.Subscribed)
	assert.True(t, sub.PendingDowngradeConsistent())
	assert.NotZero(t, sub.CreatedAt)
}

func TestActivate(t *testing.T) {
	sub := New("user-1", "ana@example.com", "Ana")
	end := time.Now().Add(30 * 24 * time.Hour)

	sub.Activate("premium-monthly", end)

	assert.True(t, sub.Subscribed)
	assert.Equal(t, "premium-monthly", sub.PlanSlug)
	assert.Equal(t, end.UTC(), *sub.SubscriptionEnd)
	assert.True(t, sub.PendingDowngradeConsistent())
}

func TestActivate_PlanChangeRetainsPrevious(t *testing.T) {
	sub := New("user-1", "ana@example.com", "Ana")
	sub.Activate("premium-monthly", time.Now().Add(30*24*time.Hour))
	sub.Activate("premium-yearly", time.Now().Add(365*24*time.Hour))

	assert.Equal(t, "premium-yearly", sub.PlanSlug)
	assert.Equal(t, "premium-monthly", sub.PreviousPlanSlug)
}

func TestActivate_ConsumesPendingDowngrade(t *testing.T) {
	sub := New("user-1", "ana@example.com", "Ana")
	sub.Activate("premium-yearly", time.Now().Add(365*24*time.Hour))
	assert.NoError(t, sub.ScheduleDowngrade("premium-monthly", time.Now().Add(300*24*time.Hour)))

	sub.Activate("premium-yearly", time.Now().Add(365*24*time.Hour))

	assert.Empty(t, sub.PendingDowngradeTo)
	assert.Nil(t, sub.PendingDowngradeDate)
	assert.True(t, sub.PendingDowngradeConsistent())
}

func TestScheduleDowngrade_Invariant(t *testing.T) {
	sub := New("user-1", "ana@example.com", "Ana")

	assert.ErrorIs(t, sub.ScheduleDowngrade("", time.Now()), ErrPendingDowngradeInvariant)
	assert.ErrorIs(t, sub.ScheduleDowngrade("premium-monthly", time.Time{}), ErrPendingDowngradeInvariant)
	assert.True(t, sub.PendingDowngradeConsistent())

	assert.NoError(t, sub.ScheduleDowngrade("premium-monthly", time.Now().Add(time.Hour)))
	assert.True(t, sub.PendingDowngradeConsistent())
	assert.Equal(t, "premium-monthly", sub.PendingDowngradeTo)
	assert.NotNil(t, sub.PendingDowngradeDate)
}

func TestDeactivate_RetainsPreviousPlan(t *testing.T) {
	sub := New("user-1", "ana@example.com", "Ana")
	sub.Activate("premium-quarterly", time.Now().Add(90*24*time.Hour))
	sub.StripeSubscriptionID = "sub_123"

	sub.Deactivate()

	assert.False(t, sub.Subscribed)
	assert.Empty(t, sub.PlanSlug)
	assert.Equal(t, "premium-quarterly", sub.PreviousPlanSlug)
	assert.Empty(t, sub.StripeSubscriptionID)
	assert.Nil(t, sub.SubscriptionEnd)
	assert.True(t, sub.PendingDowngradeConsistent())
}

func TestHasCardBilling(t *testing.T) {
	sub := New("user-1", "ana@example.com", "Ana")
	assert.False(t, sub.HasCardBilling())

	sub.StripeSubscriptionID = "sub_123"
	assert.True(t, sub.HasCardBilling())
}
