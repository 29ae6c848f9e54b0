// Package pushkit is the facade application code talks to. A Kit owns at
// most one active provider, selected and configured through Init, and
// forwards the notification surface to it. Listener registrations live on
// the Kit, so they survive provider swaps.
package pushkit

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-push-kit/internal/env"
	"github.com/tinywideclouds/go-push-kit/internal/listeners"
	fbprovider "github.com/tinywideclouds/go-push-kit/internal/platform/firebase"
	osprovider "github.com/tinywideclouds/go-push-kit/internal/platform/onesignal"
	"github.com/tinywideclouds/go-push-kit/internal/storage/memory"
	"github.com/tinywideclouds/go-push-kit/pkg/push"
	"github.com/tinywideclouds/go-push-kit/pushkit/config"
)

// Option customizes a Kit.
type Option func(*Kit)

// WithNativeBridge attaches the host's native shell. Without one the Kit
// operates in web mode.
func WithNativeBridge(b push.NativeBridge) Option {
	return func(k *Kit) { k.bridge = b }
}

// WithSubscriptionStore substitutes the topic membership store, e.g. the
// Firestore or Redis-cached implementations. Defaults to in-memory.
func WithSubscriptionStore(s push.SubscriptionStore) Option {
	return func(k *Kit) { k.store = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(k *Kit) { k.logger = l }
}

// WithHTTPClient substitutes the HTTP client used for web push and REST
// delivery paths.
func WithHTTPClient(h *http.Client) Option {
	return func(k *Kit) { k.httpClient = h }
}

// WithInstallationID pins the stable identifier for this installation.
// Defaults to a random UUID.
func WithInstallationID(id string) Option {
	return func(k *Kit) { k.installationID = id }
}

// Kit is the orchestrator. The zero value is not usable; construct with New.
type Kit struct {
	bridge         push.NativeBridge
	detector       *env.Detector
	store          push.SubscriptionStore
	logger         *slog.Logger
	httpClient     *http.Client
	installationID string

	mu       sync.Mutex
	provider push.Provider

	messageListeners listeners.Registry[push.Payload]
	tokenListeners   listeners.Registry[string]
	errorListeners   listeners.Registry[error]
}

func New(opts ...Option) *Kit {
	k := &Kit{
		logger:     slog.Default(),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.installationID == "" {
		k.installationID = uuid.NewString()
	}
	if k.store == nil {
		k.store = memory.NewStore()
	}
	k.detector = env.NewDetector(k.bridge)
	k.logger = k.logger.With("component", "PushKit")
	return k
}

// InstallationID returns the stable identifier for this installation.
func (k *Kit) InstallationID() string { return k.installationID }

// IsNativePlatform reports whether a native shell is attached and available.
func (k *Kit) IsNativePlatform() bool { return k.detector.IsNativePlatform() }

// Init validates cfg, destroys any previously active provider, and brings up
// a fresh one for cfg.Kind. On failure the Kit is left without an active
// provider; a previously active one is already destroyed by then.
func (k *Kit) Init(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return &push.ConfigurationError{MissingFields: []string{"config"}}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	k.mu.Lock()
	previous := k.provider
	k.provider = nil
	k.mu.Unlock()

	if previous != nil {
		if err := previous.Destroy(ctx); err != nil {
			k.logger.Warn("Previous provider destroy failed", "kind", previous.Kind(), "err", err)
		}
	}

	provider := k.buildProvider(cfg)

	// Bridge the provider's events into the Kit registries before Init so
	// registrations arriving during setup are not lost.
	provider.OnMessage(func(p push.Payload) {
		k.messageListeners.Notify(p, k.routeListenerFailure)
	})
	provider.OnTokenRefresh(func(tok string) {
		k.tokenListeners.Notify(tok, k.routeListenerFailure)
	})
	provider.OnError(func(err error) {
		k.errorListeners.Notify(err, nil)
	})

	if err := provider.Init(ctx); err != nil {
		return err
	}

	k.mu.Lock()
	k.provider = provider
	k.mu.Unlock()
	k.logger.Info("Provider initialized", "kind", provider.Kind(), "native", k.detector.IsNativePlatform())
	return nil
}

func (k *Kit) buildProvider(cfg *config.Config) push.Provider {
	switch cfg.Kind {
	case push.KindOneSignal:
		return osprovider.NewProvider(cfg.OneSignal, osprovider.Options{
			Detector:   k.detector,
			Store:      k.store,
			Logger:     k.logger,
			HTTPClient: k.httpClient,
		})
	default:
		return fbprovider.NewProvider(cfg.Firebase, fbprovider.Options{
			Detector:   k.detector,
			Store:      k.store,
			Logger:     k.logger,
			HTTPClient: k.httpClient,
		})
	}
}

func (k *Kit) routeListenerFailure(err error) {
	k.errorListeners.Notify(err, nil)
}

func (k *Kit) current() (push.Provider, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.provider == nil {
		return nil, push.ErrNotInitialized
	}
	return k.provider, nil
}

// Destroy tears down the active provider. Safe to call when none is active.
func (k *Kit) Destroy(ctx context.Context) error {
	k.mu.Lock()
	provider := k.provider
	k.provider = nil
	k.mu.Unlock()

	if provider == nil {
		return nil
	}
	return provider.Destroy(ctx)
}

func (k *Kit) RequestPermission(ctx context.Context) (bool, error) {
	p, err := k.current()
	if err != nil {
		return false, err
	}
	return p.RequestPermission(ctx)
}

func (k *Kit) CheckPermission(ctx context.Context) (push.PermissionStatus, error) {
	p, err := k.current()
	if err != nil {
		return push.PermissionDenied, err
	}
	return p.CheckPermission(ctx)
}

func (k *Kit) Token(ctx context.Context) (string, error) {
	p, err := k.current()
	if err != nil {
		return "", err
	}
	return p.Token(ctx)
}

func (k *Kit) RefreshToken(ctx context.Context) (string, error) {
	p, err := k.current()
	if err != nil {
		return "", err
	}
	return p.RefreshToken(ctx)
}

func (k *Kit) DeleteToken(ctx context.Context) error {
	p, err := k.current()
	if err != nil {
		return err
	}
	return p.DeleteToken(ctx)
}

func (k *Kit) HandleRegistration(ctx context.Context, token string) error {
	p, err := k.current()
	if err != nil {
		return err
	}
	return p.HandleRegistration(ctx, token)
}

func (k *Kit) Subscribe(ctx context.Context, topic string) error {
	p, err := k.current()
	if err != nil {
		return err
	}
	return p.Subscribe(ctx, topic)
}

func (k *Kit) Unsubscribe(ctx context.Context, topic string) error {
	p, err := k.current()
	if err != nil {
		return err
	}
	return p.Unsubscribe(ctx, topic)
}

func (k *Kit) Subscriptions(ctx context.Context) ([]string, error) {
	p, err := k.current()
	if err != nil {
		return nil, err
	}
	return p.Subscriptions(ctx)
}

func (k *Kit) SendNotification(ctx context.Context, payload push.Payload) error {
	p, err := k.current()
	if err != nil {
		return err
	}
	return p.SendNotification(ctx, payload)
}

// OnMessage registers a callback for incoming notifications. Registrations
// are held by the Kit and survive provider swaps; registering before Init is
// allowed.
func (k *Kit) OnMessage(fn func(push.Payload)) func() {
	return k.messageListeners.Add(fn)
}

func (k *Kit) OnTokenRefresh(fn func(string)) func() {
	return k.tokenListeners.Add(fn)
}

func (k *Kit) OnError(fn func(error)) func() {
	return k.errorListeners.Add(fn)
}

func (k *Kit) Supported(ctx context.Context) (bool, error) {
	p, err := k.current()
	if err != nil {
		return false, err
	}
	return p.Supported(ctx)
}

// Capabilities returns the active provider's capability set, or the zero
// set when no provider is active.
func (k *Kit) Capabilities() push.Capabilities {
	p, err := k.current()
	if err != nil {
		return push.Capabilities{}
	}
	return p.Capabilities()
}

// Kind identifies the active provider, empty when none is active.
func (k *Kit) Kind() push.Kind {
	p, err := k.current()
	if err != nil {
		return ""
	}
	return p.Kind()
}

func (k *Kit) requireNativeBridge() (push.NativeBridge, error) {
	if _, err := k.current(); err != nil {
		return nil, err
	}
	if !k.detector.IsNativePlatform() {
		return nil, push.ErrNotSupported
	}
	return k.detector.Bridge(), nil
}

// CreateChannel forwards Android notification channel creation to the native
// shell. Fails with ErrNotSupported on the web.
func (k *Kit) CreateChannel(ctx context.Context, ch push.Channel) error {
	bridge, err := k.requireNativeBridge()
	if err != nil {
		return err
	}
	return bridge.CreateChannel(ctx, ch)
}

func (k *Kit) DeleteChannel(ctx context.Context, id string) error {
	bridge, err := k.requireNativeBridge()
	if err != nil {
		return err
	}
	return bridge.DeleteChannel(ctx, id)
}

func (k *Kit) ListChannels(ctx context.Context) ([]push.Channel, error) {
	bridge, err := k.requireNativeBridge()
	if err != nil {
		return nil, err
	}
	return bridge.ListChannels(ctx)
}

// Schedule forwards a local notification to the native shell's scheduler.
func (k *Kit) Schedule(ctx context.Context, n push.LocalNotification) error {
	bridge, err := k.requireNativeBridge()
	if err != nil {
		return err
	}
	return bridge.Schedule(ctx, n)
}

func (k *Kit) CancelSchedule(ctx context.Context, id string) error {
	bridge, err := k.requireNativeBridge()
	if err != nil {
		return err
	}
	return bridge.CancelSchedule(ctx, id)
}

func (k *Kit) PendingSchedules(ctx context.Context) ([]push.LocalNotification, error) {
	bridge, err := k.requireNativeBridge()
	if err != nil {
		return nil, err
	}
	return bridge.PendingSchedules(ctx)
}
