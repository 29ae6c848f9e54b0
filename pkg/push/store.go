package push

import "context"

// SubscriptionStore tracks the topics the installation is subscribed to.
// Neither FCM nor OneSignal exposes a cheap "list my topics" call, so the
// kit records membership itself; the store is the source of truth for
// Subscriptions.
type SubscriptionStore interface {
	// Add records a topic subscription. Adding an existing topic is an
	// upsert, not an error.
	Add(ctx context.Context, topic string) error

	// Remove deletes a topic subscription. Removing an absent topic is a
	// no-op.
	Remove(ctx context.Context, topic string) error

	// List returns the active topics. Empty slice, never nil.
	List(ctx context.Context) ([]string, error)

	// Clear removes every subscription.
	Clear(ctx context.Context) error
}
