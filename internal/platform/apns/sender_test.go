package apns_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-kit/internal/platform/apns"
	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// MockClient satisfies the APNSClient interface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Push(n *apns2.Notification) (*apns2.Response, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apns2.Response), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSender_Send(t *testing.T) {
	p := push.Payload{Title: "Test", Body: "Body", Badge: "2"}.Normalized()

	t.Run("Happy Path", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := apns.NewSenderWithClient(mockClient, "com.tinywide.demo", newTestLogger())

		mockClient.On("Push", mock.MatchedBy(func(n *apns2.Notification) bool {
			return n.DeviceToken == "device-1" && n.Topic == "com.tinywide.demo"
		})).Return(&apns2.Response{StatusCode: 200}, nil)

		err := sender.Send("device-1", p)

		require.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Transport Failure", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := apns.NewSenderWithClient(mockClient, "com.tinywide.demo", newTestLogger())

		mockClient.On("Push", mock.Anything).Return(nil, errors.New("network down"))

		err := sender.Send("device-1", p)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "transport")
	})

	t.Run("Rejection surfaces the reason", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := apns.NewSenderWithClient(mockClient, "com.tinywide.demo", newTestLogger())

		mockClient.On("Push", mock.Anything).Return(&apns2.Response{
			StatusCode: 410,
			Reason:     apns2.ReasonUnregistered,
		}, nil)

		err := sender.Send("dead-token", p)

		require.Error(t, err)
		assert.Contains(t, err.Error(), apns2.ReasonUnregistered)
	})
}

func TestNewSender_BadKeyFailsFast(t *testing.T) {
	_, err := apns.NewSender(apns.Config{
		KeyID:        "K1",
		TeamID:       "T1",
		BundleID:     "com.tinywide.demo",
		P8KeyContent: "not a pem key",
	}, newTestLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "P8")
}
