// Package apns provides the direct delivery leg for the Apple Push
// Notification Service, used for native iOS sends when P8 credentials are
// configured.
package apns

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID  string
	TeamID string
	// BundleID is the app bundle identifier used as the APNs topic.
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file.
	P8KeyContent string
}

type Sender struct {
	client APNSClient
	topic  string
	logger *slog.Logger
}

// NewSender creates a configured APNs sender. It parses the P8 key
// immediately to fail fast on startup if credentials are bad.
func NewSender(cfg Config, logger *slog.Logger) (*Sender, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	tokenSource := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	// Token-based auth uses the production endpoint; it routes to sandbox
	// devices as needed.
	client := apns2.NewTokenClient(tokenSource)

	return &Sender{
		client: client,
		topic:  cfg.BundleID,
		logger: logger.With("component", "APNSSender"),
	}, nil
}

// NewSenderWithClient injects a pre-built client, used in tests.
func NewSenderWithClient(client APNSClient, bundleID string, logger *slog.Logger) *Sender {
	return &Sender{
		client: client,
		topic:  bundleID,
		logger: logger.With("component", "APNSSender"),
	}
}

// Send delivers one normalized payload to a device token.
func (s *Sender) Send(deviceToken string, p push.Payload) error {
	builder := payload.NewPayload().
		AlertTitle(p.Title).
		AlertBody(p.Body)

	if badge, err := strconv.Atoi(p.Badge); err == nil {
		builder.Badge(badge)
	}
	for k, v := range p.Data {
		builder.Custom(k, v)
	}
	if p.Image != "" {
		builder.MutableContent().Custom("image", p.Image)
	}

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		Payload:     builder,
	}

	res, err := s.client.Push(notification)
	if err != nil {
		return fmt.Errorf("apns transport: %w", err)
	}

	if !res.Sent() {
		s.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
		return fmt.Errorf("apns rejected: %s", res.Reason)
	}
	return nil
}
