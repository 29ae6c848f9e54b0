package firebase

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// webSender delivers direct sends over the Web Push protocol when the host
// registered a raw VAPID subscription instead of an FCM token.
type webSender struct {
	subscriber string
	publicKey  string
	privateKey string
	httpClient *http.Client
}

func (w *webSender) configured() bool {
	return w != nil && w.privateKey != "" && w.publicKey != ""
}

// send pushes one normalized payload to a browser subscription.
func (w *webSender) send(sub *webpush.Subscription, p push.Payload) error {
	payloadBytes, err := json.Marshal(map[string]any{
		"notification": map[string]string{
			"title": p.Title,
			"body":  p.Body,
			"icon":  p.Image,
		},
		"data": p.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(payloadBytes, sub, &webpush.Options{
		Subscriber:      w.subscriber,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             60,
		HTTPClient:      w.httpClient,
	})
	if err != nil {
		return fmt.Errorf("webpush transport: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusGone, http.StatusNotFound:
		// The subscription is dead; the caller should re-register.
		return fmt.Errorf("webpush subscription expired (status %d)", resp.StatusCode)
	default:
		return fmt.Errorf("webpush rejected (status %d)", resp.StatusCode)
	}
}

// parseWebSubscription recognizes a registration identifier that is actually
// a serialized browser push subscription rather than an FCM token.
func parseWebSubscription(token string) (*webpush.Subscription, bool) {
	if len(token) == 0 || token[0] != '{' {
		return nil, false
	}
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil || sub.Endpoint == "" {
		return nil, false
	}
	return &sub, true
}
