package push

import (
	"context"
	"time"
)

// Native bridge event names. Payload shapes are provider-defined maps that
// providers normalize with PayloadFromBridge.
const (
	EventPushReceived        = "pushNotificationReceived"
	EventPushActionPerformed = "pushNotificationActionPerformed"
	EventRegistration        = "registration"
	EventRegistrationError   = "registrationError"
)

// BridgeHandle identifies one bridge listener registration.
type BridgeHandle interface {
	// Remove detaches the listener. Calling Remove twice is a no-op.
	Remove()
}

// Channel describes an Android-style notification channel.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Importance int    `json:"importance"`
	Sound      string `json:"sound"`
}

// LocalNotification is a device-local scheduled notification.
type LocalNotification struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	At      time.Time `json:"at"`
	Repeats bool      `json:"repeats"`
}

// NativeBridge is the plugin boundary to a native mobile shell. The kit
// treats it as an opaque, host-supplied dependency: its absence simply means
// the code is running on the web. Implementations must be safe for
// concurrent use.
type NativeBridge interface {
	// Available reports whether the host shell is actually attached.
	// It must be side-effect free.
	Available() bool

	// Platform names the native OS, e.g. "ios" or "android".
	Platform() string

	RequestPermissions(ctx context.Context) (PermissionStatus, error)
	CheckPermissions(ctx context.Context) (PermissionStatus, error)

	// Register asks the shell to obtain a registration token. The token is
	// delivered asynchronously through an EventRegistration listener.
	Register(ctx context.Context) error
	Unregister(ctx context.Context) error

	// AddListener subscribes to a named bridge event.
	AddListener(event string, fn func(data map[string]any)) (BridgeHandle, error)

	SubscribeToTopic(ctx context.Context, topic string) error
	UnsubscribeFromTopic(ctx context.Context, topic string) error

	CreateChannel(ctx context.Context, ch Channel) error
	DeleteChannel(ctx context.Context, id string) error
	ListChannels(ctx context.Context) ([]Channel, error)

	Schedule(ctx context.Context, n LocalNotification) error
	CancelSchedule(ctx context.Context, id string) error
	PendingSchedules(ctx context.Context) ([]LocalNotification, error)
}
