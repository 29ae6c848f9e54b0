// Package onesignal implements the kit's OneSignal provider on the REST
// API. Topics are expressed as player tags; the registration identifier is
// the OneSignal player ID.
package onesignal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	rest "github.com/tinywideclouds/go-push-kit/pkg/onesignal"

	"github.com/tinywideclouds/go-push-kit/internal/env"
	"github.com/tinywideclouds/go-push-kit/internal/listeners"
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
// sensible defaults; Client may be injected for tests.
type Options struct {
	Detector   *env.Detector
	Store      push.SubscriptionStore
	Logger     *slog.Logger
	HTTPClient *http.Client

	// Client overrides the REST client normally derived from the config.
	Client *rest.Client
}

// Provider implements push.Provider for OneSignal.
type Provider struct {
	cfg        *config.OneSignalConfig
	detector   *env.Detector
	store      push.SubscriptionStore
	logger     *slog.Logger
	httpClient *http.Client
	injected   *rest.Client

	mu      sync.Mutex
	state   state
	token   string
	client  *rest.Client
	handles []push.BridgeHandle

	messageListeners listeners.Registry[push.Payload]
	tokenListeners   listeners.Registry[string]
	errorListeners   listeners.Registry[error]
}

func NewProvider(cfg *config.OneSignalConfig, opts Options) *Provider {
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
		logger:     opts.Logger.With("component", "OneSignalProvider"),
		httpClient: opts.HTTPClient,
		injected:   opts.Client,
	}
}

func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case stateReady, stateInitializing:
		p.mu.Unlock()
		return push.ErrAlreadyInitialized
	case stateDestroyed:
		p.mu.Unlock()
		return &push.InitError{Kind: push.KindOneSignal, Err: errors.New("provider destroyed; construct a new instance")}
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
	p.logger.Info("OneSignal provider ready", "native", p.detector.IsNativePlatform())
	return nil
}

func (p *Provider) setup(ctx context.Context) error {
	if p.cfg == nil {
		return &push.ConfigurationError{Kind: push.KindOneSignal, MissingFields: []string{"onesignal"}}
	}
	// An injected client is itself a credential source, so config validation
	// only applies when the client must be derived from the config.
	if p.injected == nil {
		if err := p.cfg.Validate(); err != nil {
			return err
		}
	} else if p.cfg.Client != nil {
		return config.ErrAmbiguousVariant
	}

	client := p.cfg.Client
	if client == nil {
		client = p.injected
	}
	if client == nil {
		client = rest.NewClient(p.cfg.AppID, p.cfg.RestAPIKey, rest.WithHTTPClient(p.httpClient))
	}

	var handles []push.BridgeHandle
	if p.detector.IsNativePlatform() {
		attached, err := p.attachBridge(ctx, p.detector.Bridge())
		if err != nil {
			for _, h := range attached {
				h.Remove()
			}
			return &push.InitError{Kind: push.KindOneSignal, Err: err}
		}
		handles = attached
	}

	p.mu.Lock()
	p.client = client
	p.handles = handles
	p.mu.Unlock()
	return nil
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
			Kind: push.KindOneSignal,
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

// handleBridgeRegistration records the player ID the native SDK minted.
func (p *Provider) handleBridgeRegistration(data map[string]any) {
	playerID, _ := data["value"].(string)
	if playerID == "" {
		return
	}
	p.mu.Lock()
	changed := p.token != playerID
	p.token = playerID
	p.mu.Unlock()
	if changed {
		p.tokenListeners.Notify(playerID, p.routeListenerFailure)
	}
}

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

func (p *Provider) snapshot() (*rest.Client, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client, p.token
}

func (p *Provider) Destroy(_ context.Context) error {
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.token = ""
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
	// The OneSignal web SDK owns the browser prompt; a player ID implies the
	// user subscribed.
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
			return "", &push.OpError{Op: "refreshToken", Kind: push.KindOneSignal, Err: err}
		}
	}
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()
	if token == "" {
		return "", push.ErrTokenUnavailable
	}
	p.tokenListeners.Notify(token, p.routeListenerFailure)
	return token, nil
}

// DeleteToken marks the player unsubscribed remotely and forgets the ID.
func (p *Provider) DeleteToken(ctx context.Context) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	client, token := p.snapshot()
	if token != "" {
		if err := client.Unsubscribe(ctx, token); err != nil {
			return &push.OpError{Op: "deleteToken", Kind: push.KindOneSignal, Err: err}
		}
	}
	if p.detector.IsNativePlatform() {
		if err := p.detector.Bridge().Unregister(ctx); err != nil {
			return &push.OpError{Op: "deleteToken", Kind: push.KindOneSignal, Err: err}
		}
	}
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
	return nil
}

// HandleRegistration accepts a player ID minted by the OneSignal web SDK.
func (p *Provider) HandleRegistration(_ context.Context, playerID string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	if playerID == "" {
		return &push.OpError{Op: "handleRegistration", Kind: push.KindOneSignal, Err: errors.New("empty player id")}
	}
	p.mu.Lock()
	changed := p.token != playerID
	p.token = playerID
	p.mu.Unlock()
	if changed {
		p.tokenListeners.Notify(playerID, p.routeListenerFailure)
	}
	return nil
}

// Subscribe expresses topic membership as a player tag set to "true".
func (p *Provider) Subscribe(ctx context.Context, topic string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	client, token := p.snapshot()
	if token == "" {
		return push.ErrTokenUnavailable
	}
	if err := client.UpdateTags(ctx, token, map[string]string{topic: "true"}); err != nil {
		return &push.OpError{Op: "subscribe", Kind: push.KindOneSignal, Err: err}
	}
	if err := p.store.Add(ctx, topic); err != nil {
		return &push.OpError{Op: "subscribe", Kind: push.KindOneSignal, Err: err}
	}
	return nil
}

// Unsubscribe clears the tag; OneSignal removes tags with empty values.
func (p *Provider) Unsubscribe(ctx context.Context, topic string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	client, token := p.snapshot()
	if token == "" {
		return push.ErrTokenUnavailable
	}
	if err := client.UpdateTags(ctx, token, map[string]string{topic: ""}); err != nil {
		return &push.OpError{Op: "unsubscribe", Kind: push.KindOneSignal, Err: err}
	}
	if err := p.store.Remove(ctx, topic); err != nil {
		return &push.OpError{Op: "unsubscribe", Kind: push.KindOneSignal, Err: err}
	}
	return nil
}

// Subscriptions reads the authoritative tag set from the player record when
// one exists, falling back to the local store before registration.
func (p *Provider) Subscriptions(ctx context.Context) ([]string, error) {
	if err := p.requireReady(); err != nil {
		return nil, err
	}
	client, token := p.snapshot()
	if token == "" {
		topics, err := p.store.List(ctx)
		if err != nil {
			return nil, &push.OpError{Op: "getSubscriptions", Kind: push.KindOneSignal, Err: err}
		}
		if topics == nil {
			topics = []string{}
		}
		return topics, nil
	}

	player, err := client.GetPlayer(ctx, token)
	if err != nil {
		return nil, &push.OpError{Op: "getSubscriptions", Kind: push.KindOneSignal, Err: err}
	}
	topics := make([]string, 0, len(player.Tags))
	for tag, value := range player.Tags {
		if value != "" {
			topics = append(topics, tag)
		}
	}
	sort.Strings(topics)
	return topics, nil
}

// SendNotification requires the REST API key; the check happens inside the
// client before any network I/O.
func (p *Provider) SendNotification(ctx context.Context, payload push.Payload) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	client, token := p.snapshot()
	if !client.HasRESTKey() {
		return push.ErrMissingCredential
	}
	if token == "" {
		return push.ErrTokenUnavailable
	}

	normalized := payload.Normalized()
	n := &rest.Notification{
		IncludePlayerIDs: []string{token},
		Headings:         map[string]string{"en": normalized.Title},
		Contents:         map[string]string{"en": normalized.Body},
		Data:             normalized.Data,
		BigPicture:       normalized.Image,
	}
	if err := client.CreateNotification(ctx, n); err != nil {
		return &push.OpError{Op: "sendNotification", Kind: push.KindOneSignal, Err: err}
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
	// The web SDK needs only an app ID, which init already validated.
	return true, nil
}

func (p *Provider) Capabilities() push.Capabilities {
	native := p.detector.IsNativePlatform()
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	return push.Capabilities{
		Topics:             client != nil,
		Scheduling:         native,
		RichMedia:          true,
		Badges:             native,
		ForegroundMessages: true,
		DirectSend:         client != nil && client.HasRESTKey(),
	}
}

func (p *Provider) Kind() push.Kind { return push.KindOneSignal }

var _ push.Provider = (*Provider)(nil)
