package firebase

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
// Note: *messaging.Client automatically satisfies this interface.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}
