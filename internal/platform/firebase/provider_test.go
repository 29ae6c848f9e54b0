package firebase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-kit/internal/bridgetest"
	"github.com/tinywideclouds/go-push-kit/internal/env"
	"github.com/tinywideclouds/go-push-kit/pkg/push"
	"github.com/tinywideclouds/go-push-kit/pushkit/config"
)

// MockMessagingClient is a testify mock for the MessagingClient interface.
type MockMessagingClient struct {
	mock.Mock
}

func (m *MockMessagingClient) Send(ctx context.Context, message *messaging.Message) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func (m *MockMessagingClient) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error) {
	args := m.Called(ctx, tokens, topic)
	resp, _ := args.Get(0).(*messaging.TopicManagementResponse)
	return resp, args.Error(1)
}

func (m *MockMessagingClient) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error) {
	args := m.Called(ctx, tokens, topic)
	resp, _ := args.Get(0).(*messaging.TopicManagementResponse)
	return resp, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func webCredentials() *config.FirebaseConfig {
	return &config.FirebaseConfig{
		APIKey:            "key",
		AuthDomain:        "p.firebaseapp.com",
		ProjectID:         "p",
		StorageBucket:     "p.appspot.com",
		MessagingSenderID: "123",
		AppID:             "1:123:web:abc",
	}
}

func TestProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(webCredentials(), Options{
		Logger:    testLogger(),
		Messaging: new(MockMessagingClient),
	})

	t.Run("operations before init fail", func(t *testing.T) {
		_, err := p.Token(ctx)
		assert.ErrorIs(t, err, push.ErrNotInitialized)
		assert.ErrorIs(t, p.Subscribe(ctx, "news"), push.ErrNotInitialized)
	})

	t.Run("init succeeds once", func(t *testing.T) {
		require.NoError(t, p.Init(ctx))
		assert.ErrorIs(t, p.Init(ctx), push.ErrAlreadyInitialized)
	})

	t.Run("token unavailable before registration", func(t *testing.T) {
		_, err := p.Token(ctx)
		assert.ErrorIs(t, err, push.ErrTokenUnavailable)
	})

	t.Run("destroyed provider is not reusable", func(t *testing.T) {
		require.NoError(t, p.Destroy(ctx))
		_, err := p.Token(ctx)
		assert.ErrorIs(t, err, push.ErrNotInitialized)

		var initErr *push.InitError
		require.ErrorAs(t, p.Init(ctx), &initErr)
		assert.Equal(t, push.KindFirebase, initErr.Kind)
	})
}

func TestDestroyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(webCredentials(), Options{
		Logger:    testLogger(),
		Messaging: new(MockMessagingClient),
	})
	require.NoError(t, p.Init(ctx))

	p.OnMessage(func(push.Payload) {})
	p.OnTokenRefresh(func(string) {})
	p.OnError(func(error) {})

	require.NoError(t, p.Destroy(ctx))
	require.NoError(t, p.Destroy(ctx))

	assert.Equal(t, 0, p.messageListeners.Len())
	assert.Equal(t, 0, p.tokenListeners.Len())
	assert.Equal(t, 0, p.errorListeners.Len())
}

func TestInitReportsAllMissingFields(t *testing.T) {
	p := NewProvider(&config.FirebaseConfig{ProjectID: "p"}, Options{Logger: testLogger()})

	var cfgErr *push.ConfigurationError
	require.ErrorAs(t, p.Init(context.Background()), &cfgErr)
	assert.ElementsMatch(t,
		[]string{"apiKey", "authDomain", "storageBucket", "messagingSenderId", "appId"},
		cfgErr.MissingFields)
}

func TestNativeRegistrationFlow(t *testing.T) {
	ctx := context.Background()
	bridge := &bridgetest.Bridge{Token: "tok-1"}
	p := NewProvider(webCredentials(), Options{
		Detector: env.NewDetector(bridge),
		Logger:   testLogger(),
	})

	var refreshed []string
	p.OnTokenRefresh(func(tok string) { refreshed = append(refreshed, tok) })

	require.NoError(t, p.Init(ctx))

	t.Run("registration event delivers the token", func(t *testing.T) {
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
		assert.Equal(t, []string{"tok-1"}, refreshed)
	})

	t.Run("duplicate registration does not re-notify", func(t *testing.T) {
		bridge.Emit(push.EventRegistration, map[string]any{"value": "tok-1"})
		assert.Len(t, refreshed, 1)
	})

	t.Run("rotated token notifies again", func(t *testing.T) {
		bridge.Emit(push.EventRegistration, map[string]any{"value": "tok-2"})
		assert.Equal(t, []string{"tok-1", "tok-2"}, refreshed)

		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-2", tok)
	})

	t.Run("destroy detaches the bridge listeners", func(t *testing.T) {
		require.NoError(t, p.Destroy(ctx))
		assert.Equal(t, 0, bridge.ListenerCount(push.EventRegistration))
		assert.Equal(t, 0, bridge.ListenerCount(push.EventPushReceived))
	})
}

func TestInitFailsWhenBridgeRegistrationFails(t *testing.T) {
	bridge := &bridgetest.Bridge{RegisterErr: errors.New("play services unavailable")}
	p := NewProvider(webCredentials(), Options{
		Detector: env.NewDetector(bridge),
		Logger:   testLogger(),
	})

	var initErr *push.InitError
	require.ErrorAs(t, p.Init(context.Background()), &initErr)

	// Failed init reverts to uninitialized and leaves no dangling listeners.
	assert.Equal(t, 0, bridge.ListenerCount(push.EventRegistration))
	_, err := p.Token(context.Background())
	assert.ErrorIs(t, err, push.ErrNotInitialized)
}

func TestBridgeMessageEvents(t *testing.T) {
	ctx := context.Background()
	bridge := &bridgetest.Bridge{}
	p := NewProvider(webCredentials(), Options{
		Detector: env.NewDetector(bridge),
		Logger:   testLogger(),
	})
	require.NoError(t, p.Init(ctx))

	var got []push.Payload
	remove := p.OnMessage(func(pl push.Payload) { got = append(got, pl) })

	bridge.Emit(push.EventPushReceived, map[string]any{
		"id":    "m1",
		"title": "Hello",
		"body":  "World",
		"data":  map[string]any{"route": "/inbox"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "Hello", got[0].Title)
	assert.Equal(t, "/inbox", got[0].Data["route"])

	// Tap events carry the notification nested under an action wrapper.
	bridge.Emit(push.EventPushActionPerformed, map[string]any{
		"actionId":     "tap",
		"notification": map[string]any{"id": "m2", "title": "Tapped"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Tapped", got[1].Title)

	remove()
	bridge.Emit(push.EventPushReceived, map[string]any{"title": "after remove"})
	assert.Len(t, got, 2)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	ctx := context.Background()
	bridge := &bridgetest.Bridge{}
	p := NewProvider(webCredentials(), Options{
		Detector: env.NewDetector(bridge),
		Logger:   testLogger(),
	})
	require.NoError(t, p.Init(ctx))

	var errs []error
	p.OnError(func(err error) { errs = append(errs, err) })

	var delivered bool
	p.OnMessage(func(push.Payload) { panic("subscriber bug") })
	p.OnMessage(func(push.Payload) { delivered = true })

	bridge.Emit(push.EventPushReceived, map[string]any{"title": "x"})

	assert.True(t, delivered, "later listeners must still run")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "subscriber bug")
}

func TestHandleRegistrationWeb(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(webCredentials(), Options{
		Logger:    testLogger(),
		Messaging: new(MockMessagingClient),
	})
	require.NoError(t, p.Init(ctx))

	t.Run("plain token", func(t *testing.T) {
		require.NoError(t, p.HandleRegistration(ctx, "fcm-web-token"))
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fcm-web-token", tok)
	})

	t.Run("serialized push subscription", func(t *testing.T) {
		sub := `{"endpoint":"https://push.example.com/sub/abc","keys":{"p256dh":"pk","auth":"ak"}}`
		require.NoError(t, p.HandleRegistration(ctx, sub))
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://push.example.com/sub/abc", tok)
	})

	t.Run("empty token rejected", func(t *testing.T) {
		var opErr *push.OpError
		require.ErrorAs(t, p.HandleRegistration(ctx, ""), &opErr)
		assert.Equal(t, "handleRegistration", opErr.Op)
	})
}

func TestSubscribeNative(t *testing.T) {
	ctx := context.Background()
	bridge := &bridgetest.Bridge{}
	p := NewProvider(webCredentials(), Options{
		Detector: env.NewDetector(bridge),
		Logger:   testLogger(),
	})
	require.NoError(t, p.Init(ctx))

	require.NoError(t, p.Subscribe(ctx, "news"))
	require.NoError(t, p.Subscribe(ctx, "alerts"))
	assert.Equal(t, []string{"news", "alerts"}, bridge.SubscribedTopics)

	topics, err := p.Subscriptions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"news", "alerts"}, topics)

	require.NoError(t, p.Unsubscribe(ctx, "news"))
	assert.Equal(t, []string{"news"}, bridge.UnsubscribedTopics)

	topics, err = p.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alerts"}, topics)
}

func TestSubscribeWebUsesMessagingAPI(t *testing.T) {
	ctx := context.Background()
	mockClient := new(MockMessagingClient)
	p := NewProvider(webCredentials(), Options{
		Logger:    testLogger(),
		Messaging: mockClient,
	})
	require.NoError(t, p.Init(ctx))
	require.NoError(t, p.HandleRegistration(ctx, "web-token"))

	t.Run("success", func(t *testing.T) {
		mockClient.On("SubscribeToTopic", mock.Anything, []string{"web-token"}, "news").
			Return(&messaging.TopicManagementResponse{SuccessCount: 1}, nil).Once()

		require.NoError(t, p.Subscribe(ctx, "news"))
		mockClient.AssertExpectations(t)
	})

	t.Run("per-token rejection surfaces as an operation error", func(t *testing.T) {
		mockClient.On("SubscribeToTopic", mock.Anything, []string{"web-token"}, "bad topic").
			Return(&messaging.TopicManagementResponse{
				FailureCount: 1,
				Errors:       []*messaging.ErrorInfo{{Index: 0, Reason: "INVALID_ARGUMENT"}},
			}, nil).Once()

		var opErr *push.OpError
		require.ErrorAs(t, p.Subscribe(ctx, "bad topic"), &opErr)
		assert.Contains(t, opErr.Error(), "INVALID_ARGUMENT")
	})

	t.Run("subscribe without a token fails", func(t *testing.T) {
		fresh := NewProvider(webCredentials(), Options{
			Logger:    testLogger(),
			Messaging: mockClient,
		})
		require.NoError(t, fresh.Init(ctx))
		assert.ErrorIs(t, fresh.Subscribe(ctx, "news"), push.ErrTokenUnavailable)
	})
}

func TestSendNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("missing credential fails before any send", func(t *testing.T) {
		p := NewProvider(webCredentials(), Options{Logger: testLogger()})
		require.NoError(t, p.Init(ctx))
		err := p.SendNotification(ctx, push.Payload{Title: "hi"})
		assert.ErrorIs(t, err, push.ErrMissingCredential)
	})

	t.Run("sends through the messaging API", func(t *testing.T) {
		mockClient := new(MockMessagingClient)
		p := NewProvider(webCredentials(), Options{
			Logger:    testLogger(),
			Messaging: mockClient,
		})
		require.NoError(t, p.Init(ctx))
		require.NoError(t, p.HandleRegistration(ctx, "device-token"))

		mockClient.On("Send", mock.Anything, mock.MatchedBy(func(m *messaging.Message) bool {
			return m.Token == "device-token" &&
				m.Notification.Title == "Order shipped" &&
				m.Data["orderId"] == "o-77"
		})).Return("projects/p/messages/1", nil).Once()

		err := p.SendNotification(ctx, push.Payload{
			Title: "Order shipped",
			Body:  "Your order is on its way",
			Data:  map[string]string{"orderId": "o-77"},
		})
		require.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("send without a token fails", func(t *testing.T) {
		p := NewProvider(webCredentials(), Options{
			Logger:    testLogger(),
			Messaging: new(MockMessagingClient),
		})
		require.NoError(t, p.Init(ctx))
		err := p.SendNotification(ctx, push.Payload{Title: "hi"})
		assert.ErrorIs(t, err, push.ErrTokenUnavailable)
	})

	t.Run("transport failure is wrapped", func(t *testing.T) {
		mockClient := new(MockMessagingClient)
		p := NewProvider(webCredentials(), Options{
			Logger:    testLogger(),
			Messaging: mockClient,
		})
		require.NoError(t, p.Init(ctx))
		require.NoError(t, p.HandleRegistration(ctx, "device-token"))

		mockClient.On("Send", mock.Anything, mock.Anything).
			Return("", errors.New("quota exceeded")).Once()

		var opErr *push.OpError
		require.ErrorAs(t, p.SendNotification(ctx, push.Payload{Title: "hi"}), &opErr)
		assert.Equal(t, "sendNotification", opErr.Op)
	})
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("native grant", func(t *testing.T) {
		bridge := &bridgetest.Bridge{}
		p := NewProvider(webCredentials(), Options{
			Detector: env.NewDetector(bridge),
			Logger:   testLogger(),
		})
		require.NoError(t, p.Init(ctx))

		granted, err := p.RequestPermission(ctx)
		require.NoError(t, err)
		assert.True(t, granted)
	})

	t.Run("native denial", func(t *testing.T) {
		bridge := &bridgetest.Bridge{Permission: push.PermissionDenied}
		p := NewProvider(webCredentials(), Options{
			Detector: env.NewDetector(bridge),
			Logger:   testLogger(),
		})
		require.NoError(t, p.Init(ctx))

		granted, err := p.RequestPermission(ctx)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("bridge failure collapses to safe defaults", func(t *testing.T) {
		bridge := &bridgetest.Bridge{PermissionErr: errors.New("shell gone")}
		p := NewProvider(webCredentials(), Options{
			Detector: env.NewDetector(bridge),
			Logger:   testLogger(),
		})
		require.NoError(t, p.Init(ctx))

		granted, err := p.RequestPermission(ctx)
		require.NoError(t, err)
		assert.False(t, granted)

		status, err := p.CheckPermission(ctx)
		require.NoError(t, err)
		assert.Equal(t, push.PermissionDenied, status)
	})

	t.Run("web permission tracks registration", func(t *testing.T) {
		p := NewProvider(webCredentials(), Options{
			Logger:    testLogger(),
			Messaging: new(MockMessagingClient),
		})
		require.NoError(t, p.Init(ctx))

		status, err := p.CheckPermission(ctx)
		require.NoError(t, err)
		assert.Equal(t, push.PermissionPrompt, status)

		require.NoError(t, p.HandleRegistration(ctx, "tok"))
		status, err = p.CheckPermission(ctx)
		require.NoError(t, err)
		assert.Equal(t, push.PermissionGranted, status)
	})
}

func TestCapabilities(t *testing.T) {
	ctx := context.Background()

	t.Run("web with server credentials", func(t *testing.T) {
		p := NewProvider(webCredentials(), Options{
			Logger:    testLogger(),
			Messaging: new(MockMessagingClient),
		})
		require.NoError(t, p.Init(ctx))

		caps := p.Capabilities()
		assert.True(t, caps.Topics)
		assert.True(t, caps.DirectSend)
		assert.False(t, caps.Scheduling)
		assert.False(t, caps.Badges)
	})

	t.Run("native without server credentials", func(t *testing.T) {
		p := NewProvider(webCredentials(), Options{
			Detector: env.NewDetector(&bridgetest.Bridge{}),
			Logger:   testLogger(),
		})
		require.NoError(t, p.Init(ctx))

		caps := p.Capabilities()
		assert.True(t, caps.Topics)
		assert.True(t, caps.Scheduling)
		assert.True(t, caps.Badges)
		assert.False(t, caps.DirectSend)
	})
}

func TestSupported(t *testing.T) {
	ctx := context.Background()

	t.Run("native always supported", func(t *testing.T) {
		p := NewProvider(webCredentials(), Options{
			Detector: env.NewDetector(&bridgetest.Bridge{}),
			Logger:   testLogger(),
		})
		require.NoError(t, p.Init(ctx))
		ok, err := p.Supported(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("web requires a delivery path", func(t *testing.T) {
		p := NewProvider(webCredentials(), Options{Logger: testLogger()})
		require.NoError(t, p.Init(ctx))
		ok, err := p.Supported(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
