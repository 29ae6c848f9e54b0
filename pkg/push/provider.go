package push

import "context"

// Kind identifies a notification back end.
type Kind string

const (
	KindFirebase  Kind = "firebase"
	KindOneSignal Kind = "onesignal"
)

// Provider is the capability contract every notification back end implements.
// Implementations branch internally on the execution environment (native
// shell vs. web) because permission flows, token formats, and event names
// differ materially between the two.
//
// Lifecycle: uninitialized -> initializing -> ready -> destroyed. Every
// operation other than Init and Destroy requires ready and fails with
// ErrNotInitialized otherwise. A destroyed provider is not reusable.
type Provider interface {
	// Init validates configuration, establishes the SDK or bridge
	// connection, and attaches event listeners. It fails with *InitError
	// wrapping the cause, or ErrAlreadyInitialized on a ready provider.
	Init(ctx context.Context) error

	// Destroy clears internal state and all listener registries. It is safe
	// to call on a provider that was never initialized.
	Destroy(ctx context.Context) error

	// RequestPermission prompts for notification permission. It is
	// best-effort: internal failures are swallowed and reported as false.
	// The error reports precondition violations only (ErrNotInitialized).
	RequestPermission(ctx context.Context) (bool, error)

	// CheckPermission reports the current permission status. Internal
	// failures collapse to PermissionDenied as the conservative default.
	// The error reports precondition violations only (ErrNotInitialized).
	CheckPermission(ctx context.Context) (PermissionStatus, error)

	// Token returns the current registration identifier, or
	// ErrTokenUnavailable when the platform has not registered yet.
	Token(ctx context.Context) (string, error)

	// RefreshToken re-derives the registration identifier and notifies all
	// token listeners with the new value before returning.
	RefreshToken(ctx context.Context) (string, error)

	// DeleteToken invalidates the remote registration.
	DeleteToken(ctx context.Context) error

	// HandleRegistration accepts a registration identifier supplied by the
	// host, used on web where tokens are minted client-side. Native
	// registrations arrive through bridge events instead.
	HandleRegistration(ctx context.Context, token string) error

	// Subscribe adds the installation to a topic. OneSignal models topics
	// as tags; the difference is not visible to callers.
	Subscribe(ctx context.Context, topic string) error

	// Unsubscribe removes the installation from a topic.
	Unsubscribe(ctx context.Context, topic string) error

	// Subscriptions returns the active topic identifiers. The slice is
	// empty, never nil, when there are none.
	Subscriptions(ctx context.Context) ([]string, error)

	// SendNotification performs a direct send through the provider's
	// delivery endpoint. It requires a server-side credential and fails
	// with ErrMissingCredential, before any network I/O, without one.
	SendNotification(ctx context.Context, payload Payload) error

	// OnMessage registers a callback for incoming notifications. The
	// returned func removes exactly that registration; calling it twice is
	// a no-op.
	OnMessage(fn func(Payload)) (remove func())

	// OnTokenRefresh registers a callback for registration token changes.
	OnTokenRefresh(fn func(string)) (remove func())

	// OnError registers a callback for asynchronous provider errors.
	OnError(fn func(error)) (remove func())

	// Supported reports whether the provider can deliver on the current
	// platform. Native shells are assumed supported; web requires the
	// provider's web delivery prerequisites. Internal failures collapse to
	// false; the error reports precondition violations only.
	Supported(ctx context.Context) (bool, error)

	// Capabilities is a pure function of (kind, environment, credentials);
	// it performs no I/O.
	Capabilities() Capabilities

	// Kind identifies the back end.
	Kind() Kind
}
