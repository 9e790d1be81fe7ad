package subscriber

import "context"

// Repository defines persistence for subscriber records.
type Repository interface {
	// FindByUserID retrieves a subscriber by user id. Returns (nil, nil)
	// when absent.
	FindByUserID(ctx context.Context, userID string) (*Subscriber, error)

	// FindByEmail retrieves a subscriber by contact email. Returns
	// (nil, nil) when absent.
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)

	// FindByStripeSubscriptionID locates the subscriber holding a given
	// provider subscription id. Returns (nil, nil) when absent.
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*Subscriber, error)

	// Save persists a subscriber. The write is version-checked: it fails
	// with ErrVersionConflict when the stored version no longer matches
	// the entity's, and increments the version on success.
	Save(ctx context.Context, sub *Subscriber) error

	// UpsertByEmail creates or replaces a subscriber keyed by email.
	// Reconciliation handlers use it so replayed provider events converge
	// to the same state.
	UpsertByEmail(ctx context.Context, sub *Subscriber) error
}
