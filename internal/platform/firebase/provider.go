// Package firebase implements the kit's Firebase Cloud Messaging provider. One provider drives two delivery paths: the native bridge when a
// mobile shell is attached, and the messaging/web-push APIs on the web.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/SherClockHolmes/webpush-go"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-push-kit/internal/env"
	"github.com/tinywideclouds/go-push-kit/internal/listeners"
	"github.com/tinywideclouds/go-push-kit/internal/platform/apns"
	"github.com/tinywideclouds/go-push-kit/internal/storage/memory"
	"github.com/tinywideclouds/go-push-kit/pkg/push"
	"github.com/tinywideclouds/go-push-kit/pushkit/config"
)

type state int

const (
	stateUninitialized state = iota
	stateInitializing
	stateReady
	stateDestroyed
)

// Options carries the collaborators a provider needs. Zero values get
// sensible defaults; Messaging may be injected for tests.
type Options struct {
	Detector   *env.Detector
	Store      push.SubscriptionStore
	Logger     *slog.Logger
	HTTPClient *http.Client

	// Messaging overrides the client normally derived from the config.
	Messaging MessagingClient
}

// Provider implements push.Provider for Firebase.
type Provider struct {
	cfg        *config.FirebaseConfig
	detector   *env.Detector
	store      push.SubscriptionStore
	logger     *slog.Logger
	httpClient *http.Client
	injected   MessagingClient

	mu      sync.Mutex
	state   state
	token   string
	webSub  *webpush.Subscription
	msg     MessagingClient
	web     *webSender
	apnsLeg *apns.Sender
	handles []push.BridgeHandle

	messageListeners listeners.Registry[push.Payload]
	tokenListeners   listeners.Registry[string]
	errorListeners   listeners.Registry[error]
}

func NewProvider(cfg *config.FirebaseConfig, opts Options) *Provider {
	if opts.Detector == nil {
		opts.Detector = env.NewDetector(nil)
	}
	if opts.Store == nil {
		opts.Store = memory.NewStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Provider{
		cfg:        cfg,
		detector:   opts.Detector,
		store:      opts.Store,
		logger:     opts.Logger.With("component", "FirebaseProvider"),
		httpClient: opts.HTTPClient,
		injected:   opts.Messaging,
	}
}

// Init validates the config, builds the SDK clients, and on native attaches
// the bridge listeners before requesting registration. The ready flag is set
// only after every step succeeds, so a concurrent caller never observes a
// half-initialized provider.
func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case stateReady, stateInitializing:
		p.mu.Unlock()
		return push.ErrAlreadyInitialized
	case stateDestroyed:
		p.mu.Unlock()
		return &push.InitError{Kind: push.KindFirebase, Err: errors.New("provider destroyed; construct a new instance")}
	}
	p.state = stateInitializing
	p.mu.Unlock()

	if err := p.setup(ctx); err != nil {
		p.mu.Lock()
		p.state = stateUninitialized
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.state = stateReady
	p.mu.Unlock()
	p.logger.Info("Firebase provider ready", "native", p.detector.IsNativePlatform())
	return nil
}

func (p *Provider) setup(ctx context.Context) error {
	if p.cfg == nil {
		return &push.ConfigurationError{Kind: push.KindFirebase, MissingFields: []string{"firebase"}}
	}
	// Validation errors surface before any I/O begins.
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	web := &webSender{
		subscriber: p.cfg.VapidSubscriber,
		publicKey:  p.cfg.VapidKey,
		privateKey: p.cfg.VapidPrivateKey,
		httpClient: p.httpClient,
	}

	msg := p.injected
	if msg == nil {
		client, err := p.buildMessaging(ctx)
		if err != nil {
			return &push.InitError{Kind: push.KindFirebase, Err: err}
		}
		msg = client
	}

	var apnsLeg *apns.Sender
	if p.cfg.APNS != nil {
		sender, err := apns.NewSender(apns.Config{
			KeyID:        p.cfg.APNS.KeyID,
			TeamID:       p.cfg.APNS.TeamID,
			BundleID:     p.cfg.APNS.BundleID,
			P8KeyContent: p.cfg.APNS.P8KeyContent,
		}, p.logger)
		if err != nil {
			return &push.InitError{Kind: push.KindFirebase, Err: err}
		}
		apnsLeg = sender
	}

	var handles []push.BridgeHandle
	if p.detector.IsNativePlatform() {
		attached, err := p.attachBridge(ctx, p.detector.Bridge())
		if err != nil {
			for _, h := range attached {
				h.Remove()
			}
			return &push.InitError{Kind: push.KindFirebase, Err: err}
		}
		handles = attached
	}

	p.mu.Lock()
	p.msg = msg
	p.web = web
	p.apnsLeg = apnsLeg
	p.handles = handles
	p.mu.Unlock()
	return nil
}

// buildMessaging derives the messaging client from the config. Client-style
// credentials alone cannot drive the admin SDK; in that case topic
// management and direct sends stay unavailable until the host supplies a
// service account or an app reference, which is not an init failure.
func (p *Provider) buildMessaging(ctx context.Context) (MessagingClient, error) {
	app := p.cfg.App
	if app == nil {
		if len(p.cfg.ServiceAccountJSON) == 0 {
			return nil, nil
		}
		built, err := firebase.NewApp(ctx, &firebase.Config{
			ProjectID:     p.cfg.ProjectID,
			StorageBucket: p.cfg.StorageBucket,
		}, option.WithCredentialsJSON(p.cfg.ServiceAccountJSON))
		if err != nil {
			return nil, fmt.Errorf("firebase app: %w", err)
		}
		app = built
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client: %w", err)
	}
	return client, nil
}

func (p *Provider) attachBridge(ctx context.Context, bridge push.NativeBridge) ([]push.BridgeHandle, error) {
	var handles []push.BridgeHandle
	add := func(event string, fn func(map[string]any)) error {
		h, err := bridge.AddListener(event, fn)
		if err != nil {
			return fmt.Errorf("attach %s listener: %w", event, err)
		}
		handles = append(handles, h)
		return nil
	}

	if err := add(push.EventRegistration, p.handleBridgeRegistration); err != nil {
		return handles, err
	}
	if err := add(push.EventRegistrationError, func(data map[string]any) {
		msg, _ := data["error"].(string)
		p.errorListeners.Notify(&push.OpError{
			Op:   "registration",
			Kind: push.KindFirebase,
			Err:  errors.New(msg),
		}, nil)
	}); err != nil {
		return handles, err
	}
	if err := add(push.EventPushReceived, func(data map[string]any) {
		p.messageListeners.Notify(push.PayloadFromBridge(data), p.routeListenerFailure)
	}); err != nil {
		return handles, err
	}
	if err := add(push.EventPushActionPerformed, func(data map[string]any) {
		// Action events nest the originating notification.
		if nested, ok := data["notification"].(map[string]any); ok {
			data = nested
		}
		p.messageListeners.Notify(push.PayloadFromBridge(data), p.routeListenerFailure)
	}); err != nil {
		return handles, err
	}

	if err := bridge.Register(ctx); err != nil {
		return handles, fmt.Errorf("bridge registration: %w", err)
	}
	return handles, nil
}

func (p *Provider) handleBridgeRegistration(data map[string]any) {
	token, _ := data["value"].(string)
	if token == "" {
		return
	}
	p.mu.Lock()
	changed := p.token != token
	p.token = token
	p.mu.Unlock()
	if changed {
		p.tokenListeners.Notify(token, p.routeListenerFailure)
	}
}

// routeListenerFailure isolates a misbehaving subscriber: its failure goes to
// the error listeners instead of the notifying code path.
func (p *Provider) routeListenerFailure(err error) {
	p.errorListeners.Notify(err, nil)
}

func (p *Provider) requireReady() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateReady {
		return push.ErrNotInitialized
	}
	return nil
}

// Destroy clears all state and listener registries. Safe to call at any
// point in the lifecycle; a destroyed provider is not reusable.
func (p *Provider) Destroy(_ context.Context) error {
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.token = ""
	p.webSub = nil
	p.state = stateDestroyed
	p.mu.Unlock()

	for _, h := range handles {
		h.Remove()
	}
	p.messageListeners.Clear()
	p.tokenListeners.Clear()
	p.errorListeners.Clear()
	return nil
}

func (p *Provider) RequestPermission(ctx context.Context) (bool, error) {
	if err := p.requireReady(); err != nil {
		return false, err
	}
	if p.detector.IsNativePlatform() {
		status, err := p.detector.Bridge().RequestPermissions(ctx)
		if err != nil {
			p.logger.Warn("Permission request failed", "err", err)
			return false, nil
		}
		return status == push.PermissionGranted, nil
	}
	// The browser owns the web prompt; a registered token implies consent.
	status, _ := p.CheckPermission(ctx)
	return status == push.PermissionGranted, nil
}

func (p *Provider) CheckPermission(ctx context.Context) (push.PermissionStatus, error) {
	if err := p.requireReady(); err != nil {
		return push.PermissionDenied, err
	}
	if p.detector.IsNativePlatform() {
		status, err := p.detector.Bridge().CheckPermissions(ctx)
		if err != nil {
			p.logger.Warn("Permission check failed", "err", err)
			return push.PermissionDenied, nil
		}
		return status, nil
	}
	p.mu.Lock()
	registered := p.token != ""
	p.mu.Unlock()
	if registered {
		return push.PermissionGranted, nil
	}
	return push.PermissionPrompt, nil
}

func (p *Provider) Token(_ context.Context) (string, error) {
	if err := p.requireReady(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" {
		return "", push.ErrTokenUnavailable
	}
	return p.token, nil
}

func (p *Provider) RefreshToken(ctx context.Context) (string, error) {
	if err := p.requireReady(); err != nil {
		return "", err
	}
	if p.detector.IsNativePlatform() {
		if err := p.detector.Bridge().Register(ctx); err != nil {
			return "", &push.OpError{Op: "refreshToken", Kind: push.KindFirebase, Err: err}
		}
	}
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()
	if token == "" {
		return "", push.ErrTokenUnavailable
	}
	// Listeners observe the refreshed value before the caller does.
	p.tokenListeners.Notify(token, p.routeListenerFailure)
	return token, nil
}

func (p *Provider) DeleteToken(ctx context.Context) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	if p.detector.IsNativePlatform() {
		if err := p.detector.Bridge().Unregister(ctx); err != nil {
			return &push.OpError{Op: "deleteToken", Kind: push.KindFirebase, Err: err}
		}
	}
	p.mu.Lock()
	p.token = ""
	p.webSub = nil
	p.mu.Unlock()
	return nil
}

// HandleRegistration accepts a host-supplied registration: either an FCM
// token or a serialized browser push subscription, whose endpoint then
// serves as the token.
func (p *Provider) HandleRegistration(_ context.Context, token string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	if token == "" {
		return &push.OpError{Op: "handleRegistration", Kind: push.KindFirebase, Err: errors.New("empty token")}
	}

	if sub, ok := parseWebSubscription(token); ok {
		token = sub.Endpoint
		p.mu.Lock()
		changed := p.token != token
		p.token = token
		p.webSub = sub
		p.mu.Unlock()
		if changed {
			p.tokenListeners.Notify(token, p.routeListenerFailure)
		}
		return nil
	}

	p.mu.Lock()
	changed := p.token != token
	p.token = token
	p.webSub = nil
	p.mu.Unlock()
	if changed {
		p.tokenListeners.Notify(token, p.routeListenerFailure)
	}
	return nil
}

func (p *Provider) Subscribe(ctx context.Context, topic string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	if p.detector.IsNativePlatform() {
		if err := p.detector.Bridge().SubscribeToTopic(ctx, topic); err != nil {
			return &push.OpError{Op: "subscribe", Kind: push.KindFirebase, Err: err}
		}
	} else if err := p.updateWebTopic(ctx, topic, true); err != nil {
		return &push.OpError{Op: "subscribe", Kind: push.KindFirebase, Err: err}
	}
	if err := p.store.Add(ctx, topic); err != nil {
		return &push.OpError{Op: "subscribe", Kind: push.KindFirebase, Err: err}
	}
	return nil
}

func (p *Provider) Unsubscribe(ctx context.Context, topic string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	if p.detector.IsNativePlatform() {
		if err := p.detector.Bridge().UnsubscribeFromTopic(ctx, topic); err != nil {
			return &push.OpError{Op: "unsubscribe", Kind: push.KindFirebase, Err: err}
		}
	} else if err := p.updateWebTopic(ctx, topic, false); err != nil {
		return &push.OpError{Op: "unsubscribe", Kind: push.KindFirebase, Err: err}
	}
	if err := p.store.Remove(ctx, topic); err != nil {
		return &push.OpError{Op: "unsubscribe", Kind: push.KindFirebase, Err: err}
	}
	return nil
}

func (p *Provider) updateWebTopic(ctx context.Context, topic string, subscribe bool) error {
	p.mu.Lock()
	msg, token, webSub := p.msg, p.token, p.webSub
	p.mu.Unlock()

	if webSub != nil {
		// Raw web push subscriptions are not addressable by FCM topics;
		// membership is tracked locally and filtered at send time.
		return nil
	}
	if msg == nil {
		return errors.New("messaging client unavailable without server credentials")
	}
	if token == "" {
		return push.ErrTokenUnavailable
	}

	var (
		resp *messaging.TopicManagementResponse
		err  error
	)
	if subscribe {
		resp, err = msg.SubscribeToTopic(ctx, []string{token}, topic)
	} else {
		resp, err = msg.UnsubscribeFromTopic(ctx, []string{token}, topic)
	}
	if err != nil {
		return err
	}
	if resp != nil && resp.FailureCount > 0 {
		reason := "unknown"
		if len(resp.Errors) > 0 {
			reason = resp.Errors[0].Reason
		}
		return fmt.Errorf("topic update rejected: %s", reason)
	}
	return nil
}

func (p *Provider) Subscriptions(ctx context.Context) ([]string, error) {
	if err := p.requireReady(); err != nil {
		return nil, err
	}
	topics, err := p.store.List(ctx)
	if err != nil {
		return nil, &push.OpError{Op: "getSubscriptions", Kind: push.KindFirebase, Err: err}
	}
	if topics == nil {
		topics = []string{}
	}
	return topics, nil
}

// SendNotification is the privileged direct-send escape hatch. The
// credential check runs before any network I/O.
func (p *Provider) SendNotification(ctx context.Context, payload push.Payload) error {
	if err := p.requireReady(); err != nil {
		return err
	}

	p.mu.Lock()
	msg, web, apnsLeg := p.msg, p.web, p.apnsLeg
	token, webSub := p.token, p.webSub
	p.mu.Unlock()

	if msg == nil && apnsLeg == nil && !web.configured() {
		return push.ErrMissingCredential
	}

	normalized := payload.Normalized()

	switch {
	case apnsLeg != nil && p.detector.IsNativePlatform() && p.detector.Platform() == "ios":
		if token == "" {
			return push.ErrTokenUnavailable
		}
		if err := apnsLeg.Send(token, normalized); err != nil {
			return &push.OpError{Op: "sendNotification", Kind: push.KindFirebase, Err: err}
		}

	case webSub != nil && web.configured():
		if err := web.send(webSub, normalized); err != nil {
			return &push.OpError{Op: "sendNotification", Kind: push.KindFirebase, Err: err}
		}

	case msg != nil:
		if token == "" {
			return push.ErrTokenUnavailable
		}
		fcmMsg := &messaging.Message{
			Token: token,
			Data:  normalized.Data,
			Notification: &messaging.Notification{
				Title:    normalized.Title,
				Body:     normalized.Body,
				ImageURL: normalized.Image,
			},
		}
		if _, err := msg.Send(ctx, fcmMsg); err != nil {
			return &push.OpError{Op: "sendNotification", Kind: push.KindFirebase, Err: err}
		}

	default:
		// A credential exists but not one usable for the current target,
		// e.g. VAPID keys without a registered web subscription.
		return push.ErrMissingCredential
	}
	return nil
}

func (p *Provider) OnMessage(fn func(push.Payload)) func() {
	return p.messageListeners.Add(fn)
}

func (p *Provider) OnTokenRefresh(fn func(string)) func() {
	return p.tokenListeners.Add(fn)
}

func (p *Provider) OnError(fn func(error)) func() {
	return p.errorListeners.Add(fn)
}

func (p *Provider) Supported(_ context.Context) (bool, error) {
	if err := p.requireReady(); err != nil {
		return false, err
	}
	if p.detector.IsNativePlatform() {
		return true, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msg != nil || p.cfg.VapidKey != "", nil
}

func (p *Provider) Capabilities() push.Capabilities {
	native := p.detector.IsNativePlatform()
	p.mu.Lock()
	msg, web, apnsLeg := p.msg, p.web, p.apnsLeg
	p.mu.Unlock()

	return push.Capabilities{
		Topics:             native || msg != nil,
		Scheduling:         native,
		RichMedia:          true,
		Badges:             native,
		ForegroundMessages: true,
		DirectSend:         msg != nil || apnsLeg != nil || web.configured(),
	}
}

func (p *Provider) Kind() push.Kind { return push.KindFirebase }

var _ push.Provider = (*Provider)(nil)
