package subscriber

import (
	"errors"
	"time"
)

var (
	// ErrNoActiveSubscription is returned when an operation requires a
	// subscriber record that does not exist or is inactive.
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrVersionConflict is returned when a version-checked save loses a
	// race with a concurrent writer.
	ErrVersionConflict = errors.New("subscriber record modified concurrently")

	// ErrPendingDowngradeInvariant guards the both-or-neither rule on the
	// pending downgrade pair.
	ErrPendingDowngradeInvariant = errors.New("pending downgrade requires both target and date")
)

// Subscriber is the per-user subscription record. Unique on UserID and on
// Email. Never hard-deleted: deactivation clears the plan in place and
// keeps the previous plan slug for audit.
type Subscriber struct {
	ID               int64      `json:"id,string"`
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	DisplayName      string     `json:"display_name"`
	Subscribed       bool       `json:"subscribed"`
	PlanSlug         string     `json:"plan_slug"`
	PreviousPlanSlug string     `json:"previous_plan_slug"`
	SubscriptionEnd  *time.Time `json:"subscription_end"`

	// Present only once the card-billing path has been used.
	StripeCustomerID     string `json:"stripe_customer_id"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
	CancelAtPeriodEnd    bool   `json:"cancel_at_period_end"`

	PendingDowngradeTo   string     `json:"pending_downgrade_to"`
	PendingDowngradeDate *time.Time `json:"pending_downgrade_date"`

	// Version is the optimistic-concurrency token checked on save.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an unsubscribed record for a user.
func New(userID, email, displayName string) *Subscriber {
	now := time.Now().UTC()
	return &Subscriber{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasCardBilling reports whether a recurring-billing subscription is on file.
func (s *Subscriber) HasCardBilling() bool {
	return s.StripeSubscriptionID != ""
}

// Activate marks the subscriber active on a plan until end. Any scheduled
// downgrade is consumed by the activation.
func (s *Subscriber) Activate(planSlug string, end time.Time) {
	if s.PlanSlug != "" && s.PlanSlug != planSlug {
		s.PreviousPlanSlug = s.PlanSlug
	}
	s.Subscribed = true
	s.PlanSlug = planSlug
	endUTC := end.UTC()
	s.SubscriptionEnd = &endUTC
	s.CancelAtPeriodEnd = false
	s.clearPendingDowngrade()
	s.UpdatedAt = time.Now().UTC()
}

// ScheduleDowngrade records a not-yet-effective plan change. Target and
// date travel together; scheduling with either missing is rejected.
func (s *Subscriber) ScheduleDowngrade(targetSlug string, effectiveAt time.Time) error {
	if targetSlug == "" || effectiveAt.IsZero() {
		return ErrPendingDowngradeInvariant
	}
	at := effectiveAt.UTC()
	s.PendingDowngradeTo = targetSlug
	s.PendingDowngradeDate = &at
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearPendingDowngrade drops a scheduled change, e.g. when an upgrade
// supersedes it.
func (s *Subscriber) ClearPendingDowngrade() {
	s.clearPendingDowngrade()
	s.UpdatedAt = time.Now().UTC()
}

func (s *Subscriber) clearPendingDowngrade() {
	s.PendingDowngradeTo = ""
	s.PendingDowngradeDate = nil
}

// Deactivate turns the record off in place, retaining the previous plan
// slug for audit. The row itself is never deleted.
func (s *Subscriber) Deactivate() {
	if s.PlanSlug != "" {
		s.PreviousPlanSlug = s.PlanSlug
	}
	s.Subscribed = false
	s.PlanSlug = ""
	s.SubscriptionEnd = nil
	s.StripeSubscriptionID = ""
	s.CancelAtPeriodEnd = false
	s.clearPendingDowngrade()
	s.UpdatedAt = time.Now().UTC()
}

// PendingDowngradeConsistent reports the both-or-neither invariant on the
// pending downgrade pair.
func (s *Subscriber) PendingDowngradeConsistent() bool {
	hasTarget := s.PendingDowngradeTo != ""
	hasDate := s.PendingDowngradeDate != nil && !s.PendingDowngradeDate.IsZero()
	return hasTarget == hasDate
}
